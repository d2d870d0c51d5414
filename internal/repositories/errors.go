package repositories

import "errors"

var (
	// ErrNotFound means the referenced chat or message does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized means the actor is not the sender or a participant
	// required for the scoped mutation.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidState means the mutation is structurally invalid, e.g. a
	// reply target in a different chat or an edit on a non-text message.
	ErrInvalidState = errors.New("invalid state")
	// ErrUpstreamUnavailable wraps persistence failures so callers can make
	// retry decisions.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)
