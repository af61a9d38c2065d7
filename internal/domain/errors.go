package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrDuplicateID       = errors.New("video id already exists")
	ErrStatusConflict    = errors.New("video status changed concurrently")
	ErrInvalidTransition = errors.New("invalid status transition")
)

type ErrorKind string

const (
	KindConfiguration         ErrorKind = "ConfigurationError"
	KindTransientNetwork      ErrorKind = "TransientNetworkError"
	KindDispatchFailure       ErrorKind = "DispatchFailure"
	KindPartialStorageFailure ErrorKind = "PartialStorageFailure"
	KindCapabilityUnsupported ErrorKind = "CapabilityUnsupported"
)

// Sentinels for errors.Is. Any *Error with the same kind matches.
var (
	ErrConfiguration         = &Error{Kind: KindConfiguration}
	ErrTransientNetwork      = &Error{Kind: KindTransientNetwork}
	ErrDispatchFailure       = &Error{Kind: KindDispatchFailure}
	ErrPartialStorage        = &Error{Kind: KindPartialStorageFailure}
	ErrCapabilityUnsupported = &Error{Kind: KindCapabilityUnsupported}
)

// Error carries one of the lifecycle error kinds along with the failing operation.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// ClassifyTransport wraps err as a TransientNetworkError when it comes from the
// network or an expired deadline, and as a plain wrapped error otherwise.
func ClassifyTransport(op string, err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return NewError(KindTransientNetwork, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// EngineError is a non-2xx answer from the Encoding Engine.
type EngineError struct {
	StatusCode int
	Message    string
}

func (e *EngineError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("engine returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("engine returned status %d: %s", e.StatusCode, e.Message)
}
