package extract

import (
	"errors"
	"fmt"
)

// ErrEmptyTranscript is returned for blank input before any upstream call.
var ErrEmptyTranscript = errors.New("no transcript provided")

// Kind classifies extraction failures.
type Kind int

const (
	// KindConfig - upstream rejected the credentials.
	KindConfig Kind = iota + 1
	// KindRateLimited - upstream throttled the request.
	KindRateLimited
	// KindUpstream - transport failure or non-success status.
	KindUpstream
	// KindMalformed - the response body was not valid JSON.
	KindMalformed
	// KindIncomplete - valid JSON without a patient object or symptoms array.
	KindIncomplete
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config_error"
	case KindRateLimited:
		return "rate_limited"
	case KindUpstream:
		return "upstream_error"
	case KindMalformed:
		return "malformed_response"
	case KindIncomplete:
		return "incomplete_record"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Error is an extraction failure. Raw holds the model output for
// malformed and incomplete responses.
type Error struct {
	Kind Kind
	Raw  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "extract: " + e.Kind.String()
	}
	return fmt.Sprintf("extract: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of an extraction error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsKind reports whether err is an extraction error of kind k.
func IsKind(err error, k Kind) bool {
	got, ok := KindOf(err)
	return ok && got == k
}
