package fitbit

import (
	"errors"
	"fmt"
)

// Kind classifies a failed fetch.
type Kind int

const (
	KindTransientNetwork Kind = iota + 1
	KindRateLimited
	KindAuthExpired
	KindServerFault
	KindClientFault
	KindParseFault
)

func (k Kind) String() string {
	switch k {
	case KindTransientNetwork:
		return "transient_network"
	case KindRateLimited:
		return "rate_limited"
	case KindAuthExpired:
		return "auth_expired"
	case KindServerFault:
		return "server_fault"
	case KindClientFault:
		return "client_fault"
	case KindParseFault:
		return "parse_fault"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ErrSkipped marks a request abandoned after repeated server errors, or one
// that could never be sent. It is distinct from a successful response with an
// empty payload.
var ErrSkipped = errors.New("fitbit: request skipped")

// maxBodyInError bounds how much of a response body is kept for diagnostics.
const maxBodyInError = 2048

// FetchError describes a request that did not produce a payload.
type FetchError struct {
	Kind    Kind
	Name    string
	URL     string
	Status  int
	Body    string
	Skipped bool
	Err     error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fitbit %s %s: %s", e.Name, e.Kind, e.URL)
	if e.Status != 0 {
		msg += fmt.Sprintf(" status=%d", e.Status)
	}
	if e.Body != "" {
		msg += " body=" + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fatal reports whether the error must stop the process: an exhausted 401
// recovery, a non-retryable 4xx, or exhausted 5xx retries when skipping is off.
// A skipped request is never fatal.
func (e *FetchError) Fatal() bool {
	if e.Skipped {
		return false
	}
	switch e.Kind {
	case KindAuthExpired, KindClientFault:
		return true
	case KindServerFault:
		return true
	default:
		return false
	}
}

// IsFatal reports whether any error in err's chain declares itself fatal.
func IsFatal(err error) bool {
	var f interface{ Fatal() bool }
	return errors.As(err, &f) && f.Fatal()
}

// NewParseError wraps a payload that decoded but lacked expected content.
func NewParseError(name, url string, err error) *FetchError {
	return &FetchError{Kind: KindParseFault, Name: name, URL: url, Err: err}
}

func truncate(b []byte) string {
	if len(b) > maxBodyInError {
		return string(b[:maxBodyInError]) + "...(truncated)"
	}
	return string(b)
}
