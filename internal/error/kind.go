// Package derror holds the failure taxonomy shared by the call layer, the key
// rotation executor and the pipeline. Adapters tag every remote failure with a
// Kind so callers decide on retries with a plain switch.
package derror

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindQuotaExceeded
	KindUpstreamRejected
	KindAllKeysExhausted
	KindMalformedResponse
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindUpstreamRejected:
		return "upstream_rejected"
	case KindAllKeysExhausted:
		return "all_keys_exhausted"
	case KindMalformedResponse:
		return "malformed_response"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is a tagged failure. Op names the call that failed ("script.generate",
// "video.poll", ...). Status carries the upstream HTTP status when known.
type Error struct {
	Kind   Kind
	Op     string
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the outermost tagged error in err's chain.
// Untagged errors are KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// StatusOf returns the upstream HTTP status recorded on err, or 0.
func StatusOf(err error) int {
	var e *Error
	for errors.As(err, &e) {
		if e.Status != 0 {
			return e.Status
		}
		err = e.Err
	}
	return 0
}

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Configuration(op, msg string) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Err: errors.New(msg)}
}

func Quota(op string, status int, err error) *Error {
	return &Error{Kind: KindQuotaExceeded, Op: op, Status: status, Err: err}
}

func Rejected(op string, status int, err error) *Error {
	return &Error{Kind: KindUpstreamRejected, Op: op, Status: status, Err: err}
}

func Malformed(op string, format string, args ...any) *Error {
	return &Error{Kind: KindMalformedResponse, Op: op, Err: fmt.Errorf(format, args...)}
}

func Timeout(op string, format string, args ...any) *Error {
	return &Error{Kind: KindTimeout, Op: op, Err: fmt.Errorf(format, args...)}
}

// Exhausted wraps the last observed failure once the rotation budget is spent.
func Exhausted(op string, keys int, last error) *Error {
	return &Error{
		Kind: KindAllKeysExhausted,
		Op:   op,
		Err:  fmt.Errorf("all %d keys failed or hit their quota, last error: %w", keys, last),
	}
}

// OperatorAction reports failures that need someone to change configuration
// (add or replace credentials) rather than wait.
func OperatorAction(err error) bool {
	switch KindOf(err) {
	case KindConfiguration, KindAllKeysExhausted:
		return true
	case KindUpstreamRejected:
		s := StatusOf(err)
		return s == 401 || s == 403 || s == 404
	}
	return false
}

// SelfResolving reports failures that clear by waiting (quota windows, slow renders).
func SelfResolving(err error) bool {
	switch KindOf(err) {
	case KindQuotaExceeded, KindTimeout:
		return true
	}
	return false
}
