package call

import "errors"

// ErrNoActiveCall is returned by JoinCall when the room has no call record.
// This is the expected answer to "is anyone calling?", not a fault; the user
// should be told to wait or to ask the other side to start the call.
var ErrNoActiveCall = errors.New("no active call in this room")

// ErrMediaUnavailable marks a failed local media acquisition (permission
// denied, no device). It always fires before any relay write, so a failed
// StartCall leaves the room's record untouched.
var ErrMediaUnavailable = errors.New("local media unavailable")
