package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"stego_gateway/internal/stego/transport"
	"stego_gateway/internal/stego/upload"
	"stego_gateway/internal/stego/upstream"
	"stego_gateway/platform/logger"
)

type stubForwarder struct {
	outcome   upstream.Outcome
	forwarded []*upstream.Request
	healthErr error
}

func (s *stubForwarder) Forward(_ context.Context, req *upstream.Request) upstream.Outcome {
	s.forwarded = append(s.forwarded, req)
	return s.outcome
}

func (s *stubForwarder) Health(context.Context) ([]byte, error) {
	if s.healthErr != nil {
		return nil, s.healthErr
	}
	return []byte(`{"status":"ok"}`), nil
}

func (s *stubForwarder) BaseURL() string { return "http://upstream:5000" }

type recorded struct {
	calls     []string
	rejected  []string
	acceptedN int
}

func (r *recorded) RecordUpstreamCall(operation, outcome string, _ time.Duration) {
	r.calls = append(r.calls, operation+":"+outcome)
}

func (r *recorded) RecordUploadRejected(operation, kind string) {
	r.rejected = append(r.rejected, operation+":"+kind)
}

func (r *recorded) RecordUploadAccepted(_ string, imageBytes int) {
	r.acceptedN += imageBytes
}

func TestSubmitForwardsOnce(t *testing.T) {
	fwd := &stubForwarder{outcome: upstream.Outcome{Kind: upstream.OutcomeTimeout, Err: context.DeadlineExceeded}}
	rec := &recorded{}
	svc := New(fwd, rec, logger.Discard())

	outcome, err := svc.Submit(context.Background(), &transport.Submission{
		Operation: transport.OperationDecode,
		Image:     []byte("12345"),
		Filename:  "a.png",
		MimeType:  "image/png",
		Password:  "pw",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != upstream.OutcomeTimeout {
		t.Fatalf("expected timeout outcome, got %s", outcome.Kind)
	}
	if len(fwd.forwarded) != 1 || fwd.forwarded[0].Operation != transport.OperationDecode {
		t.Fatalf("expected one decode call, got %d", len(fwd.forwarded))
	}
	if len(rec.calls) != 1 || rec.calls[0] != "decode:timeout" || rec.acceptedN != 5 {
		t.Fatalf("unexpected metrics: %+v", rec)
	}
}

func TestRejectRecordsKind(t *testing.T) {
	rec := &recorded{}
	svc := New(&stubForwarder{}, rec, logger.Discard())

	svc.Reject(context.Background(), transport.OperationEncode, &upload.ValidationError{Kind: upload.KindMissingField, Field: "message"})

	if len(rec.rejected) != 1 || rec.rejected[0] != "encode:missing_field" {
		t.Fatalf("unexpected rejections: %v", rec.rejected)
	}
}

func TestProbe(t *testing.T) {
	svc := New(&stubForwarder{}, &recorded{}, logger.Discard())
	body, err := svc.Probe(context.Background())
	if err != nil || string(body) != `{"status":"ok"}` {
		t.Fatalf("unexpected probe result: %s, %v", body, err)
	}

	down := New(&stubForwarder{healthErr: errors.New("connection refused")}, &recorded{}, logger.Discard())
	if _, err := down.Probe(context.Background()); err == nil {
		t.Fatal("expected probe error")
	}
	if down.UpstreamURL() != "http://upstream:5000" {
		t.Fatalf("unexpected upstream url %q", down.UpstreamURL())
	}
}
