package upload

import "github.com/dustin/go-humanize"

// Kind classifies why a submission was rejected.
type Kind string

const (
	KindMissingFile    Kind = "missing_file"
	KindMissingField   Kind = "missing_field"
	KindFileTooLarge   Kind = "file_too_large"
	KindTooManyFiles   Kind = "too_many_files"
	KindUnexpectedFile Kind = "unexpected_file"
	KindFieldTooLarge  Kind = "field_too_large"
	KindMalformed      Kind = "malformed"
)

// ValidationError reports a client submission that cannot be forwarded.
// Field is set for MissingField, UnexpectedFile and FieldTooLarge;
// Limit for FileTooLarge and FieldTooLarge.
type ValidationError struct {
	Kind  Kind
	Field string
	Limit int64
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Message()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Message is the client-facing text for the rejection.
func (e *ValidationError) Message() string {
	switch e.Kind {
	case KindMissingFile:
		return "no image file provided"
	case KindMissingField:
		return "no " + e.Field + " provided"
	case KindFileTooLarge:
		return "file is too large. Maximum size is " + formatLimit(e.Limit)
	case KindTooManyFiles:
		return "too many files. Only one image can be uploaded"
	case KindUnexpectedFile:
		return "unexpected file field " + e.Field
	case KindFieldTooLarge:
		return "field " + e.Field + " is too large. Maximum size is " + formatLimit(e.Limit)
	default:
		return "invalid multipart form data"
	}
}

func formatLimit(limit int64) string {
	if limit <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(limit))
}
