package sizing

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSize              = errors.New("InvalidSize")
	ErrNotTopLevel              = errors.New("NotTopLevel")
	ErrNotFibonacci             = errors.New("NotFibonacci")
	ErrTopLevelCannotHavePoints = errors.New("TopLevelCannotHavePoints")
	ErrExceedsCap               = errors.New("ExceedsCap")
)

// ValidationError is a deterministic sizing rule failure.
// Kind is one of the sentinel errors above; errors.Is matches on it.
type ValidationError struct {
	Kind  error
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *ValidationError) Unwrap() error { return e.Kind }

func invalidf(kind error, field, format string, args ...any) error {
	return &ValidationError{Kind: kind, Field: field, Msg: fmt.Sprintf(format, args...)}
}
