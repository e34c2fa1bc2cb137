// Package stego provides the steganography gateway module.
// This file defines the module that wires validator, client, relay and handler.
package stego

import (
	apphttp "stego_gateway/internal/http"
	"stego_gateway/internal/stego/handler"
	"stego_gateway/internal/stego/relay"
	"stego_gateway/internal/stego/service"
	"stego_gateway/internal/stego/upload"
	"stego_gateway/internal/stego/upstream"
	"stego_gateway/platform/config"
	"stego_gateway/platform/logger"
	"stego_gateway/platform/validator"
)

// Config combines the config interfaces the module reads.
type Config interface {
	config.UpstreamConfig
	config.UploadConfig
	IsProduction() bool
}

// Module is the stego module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the stego module.
func NewModule(cfg Config, val *validator.Validator, metrics service.Recorder, log *logger.Logger) *Module {
	client := upstream.New(cfg, log)
	svc := service.New(client, metrics, log)
	h := handler.New(upload.New(cfg, val), svc, relay.New(!cfg.IsProduction()))

	log.Info("stego module initialized", "upstream", cfg.GetUpstreamURL())

	return &Module{handler: h, service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "stego"
}

// Service returns the service layer, used by the CLI probe.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts the upload endpoints and the upstream probe.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Engine.GET("/test-python", m.handler.TestUpstream)

	uploads := ctx.API.Group("")
	uploads.Use(ctx.UploadLimiter.Limit())
	uploads.POST("/encode", m.handler.Encode)
	uploads.POST("/decode", m.handler.Decode)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
