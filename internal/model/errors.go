package model

import "errors"

var (
	// ErrInvalidOwner rejects a malformed owner address before any
	// network call is issued.
	ErrInvalidOwner = errors.New("invalid owner address")

	// ErrUpstreamUnavailable marks a whole external dependency as
	// unreachable for this refresh cycle.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)
