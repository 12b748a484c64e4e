// Package protocol declares the error kinds every operation in the system
// reports. Handlers translate these into HTTP status codes; callers match
// them with errors.Is.
package protocol

import "errors"

// Error kinds shared by the tracker and peer surfaces. Every failure an
// operation can produce wraps exactly one of these sentinels so that it stays
// observable to the caller rather than being logged and dropped.
var (
	// ErrNotFound reports an unknown peer or channel.
	ErrNotFound = errors.New("not found")

	// ErrNotMember reports a post to a channel the sender has not joined.
	ErrNotMember = errors.New("not a channel member")

	// ErrBadRequest reports malformed input; the operation mutated no state.
	ErrBadRequest = errors.New("bad request")

	// ErrUnreachablePeer reports a target that cannot be resolved to an address.
	ErrUnreachablePeer = errors.New("unreachable peer")

	// ErrDeliveryFailed reports a remote call that errored or timed out.
	ErrDeliveryFailed = errors.New("delivery failed")

	// ErrResourceExhausted reports a full peer directory or exhausted pool.
	ErrResourceExhausted = errors.New("resource exhausted")
)
