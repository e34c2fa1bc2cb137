// Package transport defines the request-scoped data carried through the
// gateway pipeline and the JSON shapes of the upstream probe.
package transport

import "encoding/json"

// Operation selects the upstream transform.
type Operation string

const (
	OperationEncode Operation = "encode"
	OperationDecode Operation = "decode"
)

// Multipart field names shared by the inbound form and the upstream request.
const (
	FieldImage    = "image"
	FieldMessage  = "message"
	FieldPassword = "password"
)

// Path returns the upstream path for the operation.
func (o Operation) Path() string {
	return "/" + string(o)
}

func (o Operation) String() string {
	return string(o)
}

// Submission is a validated upload. Message is empty for decode.
// Text values are kept exactly as received.
type Submission struct {
	Operation Operation
	Image     []byte
	Filename  string
	MimeType  string
	Message   string
	Password  string
}

// ProbeSuccessResponse is returned when the upstream health check passes.
type ProbeSuccessResponse struct {
	Status         string          `json:"status"`
	Message        string          `json:"message"`
	PythonResponse json.RawMessage `json:"pythonResponse"`
}

// ProbeFailureResponse is returned when the upstream health check fails.
type ProbeFailureResponse struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	Error        string `json:"error"`
	PythonAPIURL string `json:"pythonApiUrl"`
}
