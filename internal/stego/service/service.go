// Package service runs a validated submission through the upstream and keeps
// the logs and metrics for each exchange.
package service

import (
	"context"
	"time"

	"stego_gateway/internal/stego/transport"
	"stego_gateway/internal/stego/upload"
	"stego_gateway/internal/stego/upstream"
	"stego_gateway/platform/apperr"
	"stego_gateway/platform/logger"
)

// Forwarder is the upstream client as seen by the service.
type Forwarder interface {
	Forward(ctx context.Context, req *upstream.Request) upstream.Outcome
	Health(ctx context.Context) ([]byte, error)
	BaseURL() string
}

// Recorder receives per-request measurements.
type Recorder interface {
	RecordUpstreamCall(operation, outcome string, duration time.Duration)
	RecordUploadRejected(operation, kind string)
	RecordUploadAccepted(operation string, imageBytes int)
}

// Service forwards submissions. It is stateless between requests.
type Service struct {
	client  Forwarder
	metrics Recorder
	log     *logger.Logger
}

// New creates a new stego service.
func New(client Forwarder, metrics Recorder, log *logger.Logger) *Service {
	return &Service{client: client, metrics: metrics, log: log}
}

// Submit translates sub and makes exactly one upstream call. The returned
// error is only set when the request could not be built.
func (s *Service) Submit(ctx context.Context, sub *transport.Submission) (upstream.Outcome, error) {
	log := s.log.WithContext(ctx)

	req, err := upstream.Translate(sub)
	if err != nil {
		log.Error("failed to build upstream request", "operation", sub.Operation.String(), "error", err)
		return upstream.Outcome{}, apperr.Wrap(apperr.KindInternal, "build upstream request", err).WithOp("stego.Submit")
	}
	s.metrics.RecordUploadAccepted(sub.Operation.String(), len(sub.Image))
	log.Debug("forwarding submission",
		"operation", sub.Operation.String(),
		"filename", sub.Filename,
		"mime_type", sub.MimeType,
		"image_bytes", len(sub.Image),
	)

	start := time.Now()
	outcome := s.client.Forward(ctx, req)
	elapsed := time.Since(start)

	log.UpstreamCall(sub.Operation.String(), outcome.Kind.String(), outcome.StatusCode, float64(elapsed.Milliseconds()))
	if outcome.Err != nil {
		log.Warn("upstream exchange failed", "operation", sub.Operation.String(), "error", outcome.Err)
	}
	s.metrics.RecordUpstreamCall(sub.Operation.String(), outcome.Kind.String(), elapsed)

	return outcome, nil
}

// Reject records a submission refused before forwarding.
func (s *Service) Reject(ctx context.Context, op transport.Operation, vErr *upload.ValidationError) {
	s.log.WithContext(ctx).UploadRejected(op.String(), string(vErr.Kind), vErr.Field)
	s.metrics.RecordUploadRejected(op.String(), string(vErr.Kind))
}

// Probe checks upstream reachability through its health endpoint.
func (s *Service) Probe(ctx context.Context) ([]byte, error) {
	body, err := s.client.Health(ctx)
	if err != nil {
		s.log.WithContext(ctx).Warn("upstream probe failed", "error", err)
		return nil, err
	}
	return body, nil
}

// UpstreamURL returns the configured upstream root.
func (s *Service) UpstreamURL() string {
	return s.client.BaseURL()
}
