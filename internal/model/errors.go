package model

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies adapter failures so callers can map them to exit codes or
// HTTP statuses without string matching.
type Kind int

const (
	KindConfiguration Kind = iota + 1
	KindLoad
	KindNotFound
	KindInput
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration error"
	case KindLoad:
		return "load error"
	case KindNotFound:
		return "not found"
	case KindInput:
		return "invalid input"
	default:
		return "unknown error"
	}
}

// Sentinels usable with errors.Is.
var (
	ErrConfiguration = &Error{Kind: KindConfiguration}
	ErrLoad          = &Error{Kind: KindLoad}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrInput         = &Error{Kind: KindInput}
)

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewError builds an adapter error of the given kind.
func NewError(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func configErrorf(op, format string, args ...interface{}) error {
	return NewError(KindConfiguration, op, errors.Errorf(format, args...))
}

func loadError(op string, err error, msg string) error {
	return NewError(KindLoad, op, errors.Wrap(err, msg))
}

// KindOf reports the kind of err, or 0 when err is not an adapter error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
