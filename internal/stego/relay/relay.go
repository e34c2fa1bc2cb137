// Package relay maps upstream outcomes and pipeline errors to the response
// sent back to the client.
package relay

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"stego_gateway/internal/stego/upload"
	"stego_gateway/internal/stego/upstream"
	"stego_gateway/platform/apperr"
	"stego_gateway/platform/httpkit"
)

const jsonContentType = "application/json; charset=utf-8"

const (
	msgUnavailable = "upstream service is not available"
	msgTimeout     = "request timed out"
	msgInternal    = "internal server error"
)

// Response is what the gateway writes for one request.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// Relay renders responses. exposeDetails adds the cause of internal faults
// to the body; it is off in production.
type Relay struct {
	exposeDetails bool
}

// New creates a Relay.
func New(exposeDetails bool) *Relay {
	return &Relay{exposeDetails: exposeDetails}
}

// FromOutcome maps an upstream outcome. Answers from the upstream are passed
// through unchanged; transport failures become gateway errors.
func (r *Relay) FromOutcome(o upstream.Outcome) Response {
	switch o.Kind {
	case upstream.OutcomeSuccess:
		return Response{Status: http.StatusOK, ContentType: o.ContentType, Body: o.Body}
	case upstream.OutcomeRejected:
		return Response{Status: o.StatusCode, ContentType: o.ContentType, Body: o.Body}
	case upstream.OutcomeUnreachable:
		return r.render(withCause(apperr.Unavailable(msgUnavailable), o.Err))
	case upstream.OutcomeTimeout:
		return r.render(withCause(apperr.Timeout(msgTimeout), o.Err))
	default:
		return r.internal(o.Err)
	}
}

// FromError maps an error raised before the upstream was called.
func (r *Relay) FromError(err error) Response {
	var vErr *upload.ValidationError
	if errors.As(err, &vErr) {
		if vErr.Kind == upload.KindMalformed {
			return r.render(withCause(apperr.BadRequest(vErr.Message()), err))
		}
		return r.render(withCause(apperr.Validation(vErr.Message()), err))
	}
	if apperr.GetKind(err) == apperr.KindUnknown || apperr.Is(err, apperr.KindInternal) {
		return r.internal(err)
	}
	var domainErr *apperr.Error
	errors.As(err, &domainErr)
	return r.render(domainErr)
}

func withCause(e *apperr.Error, err error) *apperr.Error {
	e.Err = err
	return e
}

func (r *Relay) internal(err error) Response {
	e := apperr.Wrap(apperr.KindInternal, msgInternal, err)
	if r.exposeDetails && err != nil {
		e = e.WithDetails(describe(err))
	}
	return r.render(e)
}

func (r *Relay) render(e *apperr.Error) Response {
	body, err := json.Marshal(httpkit.ErrorResponse{Error: e.Message, Details: e.Details})
	if err != nil {
		body = []byte(`{"error":"` + msgInternal + `"}`)
		return Response{Status: http.StatusInternalServerError, ContentType: jsonContentType, Body: body}
	}
	return Response{Status: e.HTTPStatus(), ContentType: jsonContentType, Body: body}
}

// describe drops the request URL from transport errors so upstream
// addresses stay out of client responses.
func describe(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err.Error()
	}
	return err.Error()
}
