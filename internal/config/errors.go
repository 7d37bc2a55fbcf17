package config

import (
	"errors"
)

// Errors returned by the Manager.
var (
	// ErrClosed indicates the Manager was used after Close.
	ErrClosed = errors.New("config manager closed")

	// ErrNothingToWatch indicates Watch was called without a watch path or
	// an announcing sync channel.
	ErrNothingToWatch = errors.New("nothing to watch")

	// ErrWatching indicates Watch was called while another Watch is running.
	ErrWatching = errors.New("already watching")
)
