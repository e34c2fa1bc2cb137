package upstream

// OutcomeKind classifies one upstream exchange.
type OutcomeKind string

const (
	OutcomeSuccess     OutcomeKind = "success"
	OutcomeRejected    OutcomeKind = "rejected"
	OutcomeUnreachable OutcomeKind = "unreachable"
	OutcomeTimeout     OutcomeKind = "timeout"
	OutcomeFailed      OutcomeKind = "failed"
)

func (k OutcomeKind) String() string {
	return string(k)
}

// Outcome is the result of forwarding a request. StatusCode, ContentType and
// Body are set when the upstream answered; Err is set when it did not.
type Outcome struct {
	Kind        OutcomeKind
	StatusCode  int
	ContentType string
	Body        []byte
	Err         error
}

func answered(status int, contentType string, body []byte) Outcome {
	kind := OutcomeRejected
	if status >= 200 && status < 300 {
		kind = OutcomeSuccess
	}
	return Outcome{Kind: kind, StatusCode: status, ContentType: contentType, Body: body}
}

func failed(kind OutcomeKind, err error) Outcome {
	return Outcome{Kind: kind, Err: err}
}
