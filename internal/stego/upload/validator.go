// Package upload parses and validates inbound multipart submissions.
package upload

import (
	"errors"
	"io"
	"net/http"

	"stego_gateway/internal/stego/transport"
	"stego_gateway/platform/config"
	"stego_gateway/platform/validator"
)

const defaultMimeType = "application/octet-stream"

// multipartOverhead bounds the bytes spent on part headers and boundaries.
const multipartOverhead = 1 << 20

var errLimitExceeded = errors.New("limit exceeded")

type encodeFields struct {
	Message  string `form:"message" validate:"notblank"`
	Password string `form:"password" validate:"notblank"`
}

type decodeFields struct {
	Password string `form:"password" validate:"notblank"`
}

// Validator turns a multipart request into a Submission or a *ValidationError.
type Validator struct {
	maxFileBytes  int64
	maxFieldBytes int64
	fields        *validator.Validator
}

// New creates a Validator bounded by the configured limits.
func New(cfg config.UploadConfig, val *validator.Validator) *Validator {
	return &Validator{
		maxFileBytes:  cfg.GetMaxUploadBytes(),
		maxFieldBytes: cfg.GetMaxFieldBytes(),
		fields:        val,
	}
}

// Parse streams the request body part by part. The file is checked first,
// then the operation's text fields in order. Nothing is read past the first
// violated limit.
func (v *Validator) Parse(r *http.Request, op transport.Operation) (*transport.Submission, error) {
	if r.Body != nil {
		r.Body = http.MaxBytesReader(nil, r.Body, v.bodyLimit())
	}

	mr, err := r.MultipartReader()
	if errors.Is(err, http.ErrNotMultipart) {
		return nil, &ValidationError{Kind: KindMissingFile, Err: err}
	}
	if err != nil {
		return nil, &ValidationError{Kind: KindMalformed, Err: err}
	}

	sub := &transport.Submission{Operation: op}
	var (
		hasFile     bool
		hasMessage  bool
		hasPassword bool
	)

	for {
		part, err := mr.NextPart()
		// Truncated bodies come back as a wrapped io.EOF, so compare directly.
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, v.readError(err)
		}

		name := part.FormName()
		if filename := part.FileName(); filename != "" {
			if name != transport.FieldImage {
				part.Close()
				return nil, &ValidationError{Kind: KindUnexpectedFile, Field: name}
			}
			if hasFile {
				part.Close()
				return nil, &ValidationError{Kind: KindTooManyFiles}
			}
			data, err := readLimited(part, v.maxFileBytes)
			part.Close()
			if errors.Is(err, errLimitExceeded) {
				return nil, &ValidationError{Kind: KindFileTooLarge, Limit: v.maxFileBytes}
			}
			if err != nil {
				return nil, v.readError(err)
			}

			hasFile = true
			sub.Image = data
			sub.Filename = filename
			sub.MimeType = part.Header.Get("Content-Type")
			if sub.MimeType == "" {
				sub.MimeType = defaultMimeType
			}
			continue
		}

		if name != transport.FieldMessage && name != transport.FieldPassword {
			// Unknown fields are skipped; NextPart drains what is left of them.
			part.Close()
			continue
		}

		value, err := readLimited(part, v.maxFieldBytes)
		part.Close()
		if errors.Is(err, errLimitExceeded) {
			return nil, &ValidationError{Kind: KindFieldTooLarge, Field: name, Limit: v.maxFieldBytes}
		}
		if err != nil {
			return nil, v.readError(err)
		}

		// First occurrence wins.
		switch {
		case name == transport.FieldMessage && !hasMessage:
			hasMessage = true
			sub.Message = string(value)
		case name == transport.FieldPassword && !hasPassword:
			hasPassword = true
			sub.Password = string(value)
		}
	}

	if len(sub.Image) == 0 {
		return nil, &ValidationError{Kind: KindMissingFile}
	}
	if err := v.checkFields(sub); err != nil {
		return nil, err
	}
	if op == transport.OperationDecode {
		sub.Message = ""
	}

	return sub, nil
}

func (v *Validator) checkFields(sub *transport.Submission) error {
	var fields interface{}
	switch sub.Operation {
	case transport.OperationEncode:
		fields = encodeFields{Message: sub.Message, Password: sub.Password}
	default:
		fields = decodeFields{Password: sub.Password}
	}

	err := v.fields.Struct(fields)
	if err == nil {
		return nil
	}
	name, ok := validator.FirstInvalidField(err)
	if !ok {
		return &ValidationError{Kind: KindMalformed, Err: err}
	}
	return &ValidationError{Kind: KindMissingField, Field: name, Err: err}
}

func (v *Validator) readError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &ValidationError{Kind: KindFileTooLarge, Limit: v.maxFileBytes, Err: err}
	}
	return &ValidationError{Kind: KindMalformed, Err: err}
}

func (v *Validator) bodyLimit() int64 {
	return v.maxFileBytes + 2*v.maxFieldBytes + multipartOverhead
}

// readLimited reads at most limit bytes and reports errLimitExceeded if the
// reader holds more.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errLimitExceeded
	}
	return data, nil
}
