package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// UnavailableError marks a failure of the backing store that the user may retry.
// Kind is the user facing sentinel, Err the cause.
type UnavailableError struct {
	Kind error
	Err  error
}

func NewUnavailableError(kind, err error) error {
	return &UnavailableError{Kind: kind, Err: err}
}

func (err UnavailableError) Error() string {
	if err.Err == nil {
		return err.Kind.Error()
	}
	return err.Kind.Error() + ": " + err.Err.Error()
}

func (err UnavailableError) Unwrap() error { return err.Err }

func (err UnavailableError) Is(target error) bool { return target == err.Kind }

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
