// Package stego provides the steganography gateway bounded context.
// This file defines the public interfaces exposed to the composition root.
package stego

import "context"

// UpstreamProber checks that the upstream service answers its health check.
type UpstreamProber interface {
	// Probe returns the upstream health payload.
	Probe(ctx context.Context) ([]byte, error)
	// UpstreamURL returns the configured upstream root.
	UpstreamURL() string
}
