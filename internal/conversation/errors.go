// ABOUTME: Caller-facing error kinds returned by the conversation service
// ABOUTME: Store errors are translated into these at the service boundary

package conversation

import "errors"

var (
	// ErrNotFound means a participant, item or conversation does not exist
	ErrNotFound = errors.New("not found")

	// ErrForbidden means the caller is not a participant of the conversation
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidInput means the request itself is malformed (self-conversation, bad content)
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal hides storage failures from callers; details are logged
	ErrInternal = errors.New("internal error")
)
