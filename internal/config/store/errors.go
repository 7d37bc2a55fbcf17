package store

import (
	"errors"
	"fmt"
	"strings"
)

// Errors returned by stores.
var (
	// ErrUnknownFormat indicates a file extension with no matching store.
	ErrUnknownFormat = errors.New("unknown store format")

	// ErrClosed indicates the store was closed.
	ErrClosed = errors.New("store closed")

	// ErrStale indicates a pushed change was based on an outdated value.
	ErrStale = errors.New("stale change")
)

// ParseError reports a backing file that cannot be parsed.
type ParseError struct {
	Path   string
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s (%s): %v", e.Path, e.Format, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// StaleError is returned by Mirror.Push when the authority changed a path
// after the pusher last saw it. The pusher should fetch and reconcile.
type StaleError struct {
	Paths []string
}

func (e *StaleError) Error() string {
	return fmt.Sprintf("stale change: authority modified %s", strings.Join(e.Paths, ", "))
}

func (e *StaleError) Is(target error) bool {
	return target == ErrStale
}
