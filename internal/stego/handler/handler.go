package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"stego_gateway/internal/stego/relay"
	"stego_gateway/internal/stego/service"
	"stego_gateway/internal/stego/transport"
	"stego_gateway/internal/stego/upload"
	"stego_gateway/platform/httpkit"
)

const (
	msgProbeOK     = "Connected to upstream API"
	msgProbeFailed = "Cannot connect to upstream API"
)

// Handler handles HTTP requests for encode and decode.
type Handler struct {
	uploads *upload.Validator
	svc     *service.Service
	relay   *relay.Relay
}

// New creates a new stego handler.
func New(uploads *upload.Validator, svc *service.Service, relay *relay.Relay) *Handler {
	return &Handler{uploads: uploads, svc: svc, relay: relay}
}

// Encode hides a message in the uploaded image.
// POST /api/encode
func (h *Handler) Encode(c *gin.Context) {
	h.process(c, transport.OperationEncode)
}

// Decode recovers a message from the uploaded image.
// POST /api/decode
func (h *Handler) Decode(c *gin.Context) {
	h.process(c, transport.OperationDecode)
}

func (h *Handler) process(c *gin.Context, op transport.Operation) {
	ctx := c.Request.Context()

	sub, err := h.uploads.Parse(c.Request, op)
	if err != nil {
		var vErr *upload.ValidationError
		if errors.As(err, &vErr) {
			h.svc.Reject(ctx, op, vErr)
		}
		write(c, h.relay.FromError(err))
		return
	}

	outcome, err := h.svc.Submit(ctx, sub)
	if err != nil {
		write(c, h.relay.FromError(err))
		return
	}
	write(c, h.relay.FromOutcome(outcome))
}

// TestUpstream reports whether the upstream health endpoint answers.
// GET /test-python
func (h *Handler) TestUpstream(c *gin.Context) {
	body, err := h.svc.Probe(c.Request.Context())
	if err != nil {
		httpkit.JSON(c, http.StatusInternalServerError, transport.ProbeFailureResponse{
			Status:       "error",
			Message:      msgProbeFailed,
			Error:        err.Error(),
			PythonAPIURL: h.svc.UpstreamURL(),
		})
		return
	}

	httpkit.OK(c, transport.ProbeSuccessResponse{
		Status:         "success",
		Message:        msgProbeOK,
		PythonResponse: asJSON(body),
	})
}

func write(c *gin.Context, resp relay.Response) {
	httpkit.Raw(c, resp.Status, resp.ContentType, resp.Body)
}

// asJSON embeds body as-is when it is JSON and as a string otherwise.
func asJSON(body []byte) json.RawMessage {
	if len(body) > 0 && json.Valid(body) {
		return json.RawMessage(body)
	}
	quoted, _ := json.Marshal(string(body))
	return json.RawMessage(quoted)
}
