package types

import (
	"errors"
	"fmt"
)

// Error kinds surfaced to the host. Every error returned by the shim matches
// exactly one of these with errors.Is.
var (
	ErrConnect    = errors.New("libsql: connect error")
	ErrEngine     = errors.New("libsql: engine error")
	ErrHandleGone = errors.New("libsql: handle gone")
	ErrBind       = errors.New("libsql: bind error")
	ErrExtension  = errors.New("libsql: extension error")
)

// ErrorKind is the wire name of an error kind.
type ErrorKind string

const (
	KindConnect    ErrorKind = "connect"
	KindEngine     ErrorKind = "engine"
	KindHandleGone ErrorKind = "handle_gone"
	KindBind       ErrorKind = "bind"
	KindExtension  ErrorKind = "extension"
)

var kindSentinels = map[ErrorKind]error{
	KindConnect:    ErrConnect,
	KindEngine:     ErrEngine,
	KindHandleGone: ErrHandleGone,
	KindBind:       ErrBind,
	KindExtension:  ErrExtension,
}

// Error carries a kind, an engine-provided message and, on the native side,
// the underlying cause.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	sentinel, ok := kindSentinels[e.Kind]
	if !ok {
		sentinel = ErrEngine
	}
	if e.Message == "" {
		return sentinel.Error()
	}
	return fmt.Sprintf("%s: %s", sentinel.Error(), e.Message)
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if sentinel, ok := kindSentinels[e.Kind]; ok {
		errs = append(errs, sentinel)
	} else {
		errs = append(errs, ErrEngine)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewError builds an error of the given kind with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError classifies err under kind unless it already carries a kind.
func WrapError(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	return &Error{Kind: kind, Message: err.Error(), Err: err}
}

// KindOf returns the kind of err. Errors that were never classified are
// engine errors.
func KindOf(err error) ErrorKind {
	var typed *Error
	if errors.As(err, &typed) {
		if _, ok := kindSentinels[typed.Kind]; ok {
			return typed.Kind
		}
		return KindEngine
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindEngine
}

// MessageOf returns the message of err without the kind prefix.
func MessageOf(err error) string {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Message
	}
	return err.Error()
}
