package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stego_gateway/internal/stego/transport"
	"stego_gateway/platform/config"
	"stego_gateway/platform/logger"
)

func newTestClient(url string, timeout time.Duration) *Client {
	return New(&config.Config{UpstreamURL: url, UpstreamTimeout: timeout, UpstreamBurst: 1}, logger.Discard())
}

func encodeRequest(t *testing.T) *Request {
	t.Helper()
	req, err := Translate(&transport.Submission{
		Operation: transport.OperationEncode,
		Image:     []byte("image-bytes"),
		Filename:  "cat.png",
		MimeType:  "image/png",
		Message:   "hi",
		Password:  "pw",
	})
	require.NoError(t, err)
	return req
}

func TestForwardSuccessRelaysBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/encode", r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "hi", r.FormValue("message"))
		assert.Equal(t, "pw", r.FormValue("password"))
		if _, header, err := r.FormFile("image"); assert.NoError(t, err) {
			assert.Equal(t, "cat.png", header.Filename)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"stego_image":"aGVsbG8="}`))
	}))
	defer server.Close()

	outcome := newTestClient(server.URL, time.Second).Forward(context.Background(), encodeRequest(t))

	require.Equal(t, OutcomeSuccess, outcome.Kind)
	assert.Equal(t, http.StatusOK, outcome.StatusCode)
	assert.Equal(t, "application/json", outcome.ContentType)
	assert.Equal(t, `{"stego_image":"aGVsbG8="}`, string(outcome.Body))
}

func TestForwardNon2xxIsRejected(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusInternalServerError} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"Invalid password"}`))
		}))

		outcome := newTestClient(server.URL, time.Second).Forward(context.Background(), encodeRequest(t))
		server.Close()

		assert.Equal(t, OutcomeRejected, outcome.Kind)
		assert.Equal(t, status, outcome.StatusCode)
		assert.Equal(t, `{"error":"Invalid password"}`, string(outcome.Body))
	}
}

func TestForwardTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	outcome := newTestClient(server.URL, 50*time.Millisecond).Forward(context.Background(), encodeRequest(t))

	assert.Equal(t, OutcomeTimeout, outcome.Kind)
	assert.Error(t, outcome.Err)
}

func TestForwardUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	outcome := newTestClient(url, time.Second).Forward(context.Background(), encodeRequest(t))

	assert.Equal(t, OutcomeUnreachable, outcome.Kind)
}

func TestForwardThrottleCountsAsTimeout(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(&config.Config{
		UpstreamURL:     server.URL,
		UpstreamTimeout: 50 * time.Millisecond,
		UpstreamMaxRPS:  0.001,
		UpstreamBurst:   1,
	}, logger.Discard())

	first := client.Forward(context.Background(), encodeRequest(t))
	second := client.Forward(context.Background(), encodeRequest(t))

	assert.Equal(t, OutcomeSuccess, first.Kind)
	assert.Equal(t, OutcomeTimeout, second.Kind)
	assert.Equal(t, int32(1), calls.Load())
}

func TestForwardPropagatesRequestID(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Request-ID")
	}))
	defer server.Close()

	ctx := context.WithValue(context.Background(), logger.RequestIDKey, "req-42")
	newTestClient(server.URL, time.Second).Forward(ctx, encodeRequest(t))

	assert.Equal(t, "req-42", got)
}

func TestHealth(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer healthy.Close()

	body, err := newTestClient(healthy.URL, time.Second).Health(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	_, err = newTestClient(failing.URL, time.Second).Health(context.Background())
	assert.ErrorContains(t, err, "status 503")
}
