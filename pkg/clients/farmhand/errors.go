package farmhand

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure of the upstream client.
type ErrorKind int

const (
	// KindUnknown covers transport failures, undecodable bodies, an open
	// circuit and cancelled requests.
	KindUnknown ErrorKind = iota
	// KindInvalidToken means the upstream answered with a non-success status.
	KindInvalidToken
)

func (k ErrorKind) String() string {
	if k == KindInvalidToken {
		return "INVALID_TOKEN"
	}
	return "UNKNOWN"
}

var (
	ErrInvalidToken = errors.New("INVALID_TOKEN")
	ErrUnknown      = errors.New("UNKNOWN")
)

// Error is the only error type returned by Client operations.
type Error struct {
	Op         string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("farmhand %s: %s (status %d)", e.Op, e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("farmhand %s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("farmhand %s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrInvalidToken:
		return e.Kind == KindInvalidToken
	case ErrUnknown:
		return e.Kind == KindUnknown
	}
	return false
}

// KindOf returns the kind of err. Errors that did not come from the client
// are UNKNOWN.
func KindOf(err error) ErrorKind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, ErrInvalidToken) {
		return KindInvalidToken
	}
	return KindUnknown
}

// IsInvalidToken reports whether err is an INVALID_TOKEN failure.
func IsInvalidToken(err error) bool {
	return err != nil && KindOf(err) == KindInvalidToken
}

func invalidToken(op string, status int) *Error {
	return &Error{Op: op, Kind: KindInvalidToken, StatusCode: status}
}

// classify passes client errors through and wraps anything else as UNKNOWN.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return &Error{Op: op, Kind: KindUnknown, Err: err}
}
