// Package upstream forwards validated submissions to the steganography
// service and classifies what came back.
package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"stego_gateway/platform/config"
	"stego_gateway/platform/httpkit"
	"stego_gateway/platform/logger"
	"stego_gateway/platform/telemetry"
)

const healthPath = "/health"

// Client is the HTTP client for the upstream steganography service.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *logger.Logger
}

// New creates a client for the configured upstream. A positive
// UpstreamMaxRPS throttles outbound calls.
func New(cfg config.UpstreamConfig, log *logger.Logger) *Client {
	var limiter *rate.Limiter
	if rps := cfg.GetUpstreamMaxRPS(); rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), cfg.GetUpstreamBurst())
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	return &Client{
		baseURL:    cfg.GetUpstreamURL(),
		timeout:    cfg.GetUpstreamTimeout(),
		httpClient: &http.Client{Transport: telemetry.InstrumentTransport(base)},
		limiter:    limiter,
		log:        log,
	}
}

// BaseURL returns the upstream root URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Forward posts req to the operation's upstream path. It never returns an
// error; every failure is folded into the Outcome. The whole exchange,
// including reading the response body, is bounded by the upstream timeout.
func (c *Client) Forward(ctx context.Context, req *Request) Outcome {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.wait(ctx); err != nil {
		return classify(ctx, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+req.Operation.Path(), bytes.NewReader(req.Body))
	if err != nil {
		return failed(OutcomeFailed, fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", req.ContentType)
	httpReq.Header.Set("Accept", "application/json")
	setRequestID(ctx, httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.log.WithContext(ctx).Debug("upstream request failed", "operation", req.Operation.String(), "error", err)
		return classify(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return classify(ctx, fmt.Errorf("read response: %w", err))
	}

	return answered(resp.StatusCode, resp.Header.Get("Content-Type"), body)
}

// Health calls the upstream health endpoint and returns its raw body.
func (c *Client) Health(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	setRequestID(ctx, req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream health: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read health response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("upstream health returned status %d", resp.StatusCode)
	}
	return body, nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		// Wait fails early when the next token lies beyond the deadline.
		if ctx.Err() == nil {
			if _, ok := ctx.Deadline(); ok {
				return fmt.Errorf("throttled past deadline: %w", context.DeadlineExceeded)
			}
		}
		return err
	}
	return nil
}

func setRequestID(ctx context.Context, req *http.Request) {
	if id, ok := ctx.Value(logger.RequestIDKey).(string); ok && id != "" {
		req.Header.Set(httpkit.HeaderRequestID, id)
	}
}

// classify maps a transport error to an outcome kind. Deadline checks come
// first so a dial that timed out counts as a timeout, not unreachable.
func classify(ctx context.Context, err error) Outcome {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return failed(OutcomeTimeout, err)
	case isNetTimeout(err):
		return failed(OutcomeTimeout, err)
	case isUnreachable(err):
		return failed(OutcomeUnreachable, err)
	default:
		return failed(OutcomeFailed, err)
	}
}

func isNetTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isUnreachable(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
