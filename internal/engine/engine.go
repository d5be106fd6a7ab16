// Package engine abstracts the peer negotiation/transport engine (SDP + ICE).
// The call core drives it through the Engine interface; the default
// implementation wraps a pion PeerConnection.
package engine

import "github.com/aldisr/ngobrol/internal/media"

// Description is a session description as it travels through the relay:
// "offer" or "answer" plus the SDP payload.
type Description struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// Candidate is one serialized connectivity candidate. It is opaque to the
// signaling layer and passed verbatim between the engine and the relay.
type Candidate string

// Engine is one peer connection. Callbacks registered via On* fire on the
// engine's own goroutines; implementations must tolerate Close racing with a
// late callback.
type Engine interface {
	CreateOffer() (Description, error)
	CreateAnswer() (Description, error)
	SetLocalDescription(Description) error
	SetRemoteDescription(Description) error

	// AddCandidate applies a remote connectivity candidate.
	AddCandidate(Candidate) error

	// OnCandidate registers a callback for locally discovered candidates.
	// Gathering may begin as soon as a local description is set.
	OnCandidate(fn func(Candidate))

	// AddTrack attaches a local track to be sent to the peer.
	AddTrack(t media.Track) error

	// OnTrack registers a callback for tracks received from the peer.
	OnTrack(fn func(media.Track))

	// Close tears down the connection. Idempotent.
	Close() error
}

// Factory creates engines, one per call session.
type Factory func() (Engine, error)
