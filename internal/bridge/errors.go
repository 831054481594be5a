package bridge

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies why a Send failed.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindTransport means the request never reached the endpoint or the
	// response could not be read off the wire.
	KindTransport
	// KindStatus means the endpoint answered with a non-2xx status.
	KindStatus
	// KindDecode means the request or response body was not valid text/JSON.
	KindDecode
	// KindCanceled means the caller's context ended before completion.
	KindCanceled
)

var (
	ErrTransport = errors.New("transport error")
	ErrStatus    = errors.New("status error")
	ErrDecode    = errors.New("decode error")
	ErrCanceled  = errors.New("canceled")
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindStatus:
		return "status"
	case KindDecode:
		return "decode"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindTransport:
		return ErrTransport
	case KindStatus:
		return ErrStatus
	case KindDecode:
		return ErrDecode
	case KindCanceled:
		return ErrCanceled
	default:
		return nil
	}
}

// Error is the failure variant of a Send outcome.
type Error struct {
	Kind Kind
	// Op names the step that failed, e.g. "do request".
	Op string
	// StatusCode and Status are set for KindStatus only.
	StatusCode int
	Status     string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder

	if s := e.Kind.sentinel(); s != nil {
		b.WriteString(s.Error())
	} else {
		b.WriteString("bridge error")
	}

	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}

	if e.Kind == KindStatus {
		fmt.Fprintf(&b, ": unexpected status: %s", e.statusText())
	}

	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}

	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrStatus) and friends match on the kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

func (e *Error) statusText() string {
	status := strings.TrimSpace(e.Status)
	if status == "" {
		return fmt.Sprintf("%d", e.StatusCode)
	}
	if strings.HasPrefix(status, fmt.Sprintf("%d", e.StatusCode)) {
		return status
	}
	return fmt.Sprintf("%d %s", e.StatusCode, status)
}

// KindOf reports the Kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var bridgeErr *Error
	if errors.As(err, &bridgeErr) {
		return bridgeErr.Kind
	}

	return KindUnknown
}

// StatusCodeOf returns the HTTP status carried by a KindStatus error, or 0.
func StatusCodeOf(err error) int {
	var bridgeErr *Error
	if errors.As(err, &bridgeErr) {
		return bridgeErr.StatusCode
	}

	return 0
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}
