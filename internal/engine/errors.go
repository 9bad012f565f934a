package engine

import (
	"errors"
	"fmt"
)

// Kind classifies run failures.
type Kind int

const (
	// KindIO covers failures opening or reading the input.
	KindIO Kind = iota + 1
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	// ErrIO matches any *RunError of KindIO via errors.Is.
	ErrIO = errors.New("i/o error")

	// ErrClosed is reported by runs submitted after Close.
	ErrClosed = errors.New("engine closed")
)

// RunError describes why a run failed.
type RunError struct {
	Kind Kind
	Op   string // "open" or "read"
	Path string
	Err  error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind.
func (e *RunError) Is(target error) bool {
	return target == ErrIO && e.Kind == KindIO
}
