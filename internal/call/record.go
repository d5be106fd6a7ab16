package call

import (
	"github.com/aldisr/ngobrol/internal/engine"
)

// Status is the lifecycle state of a call record. Within one record's life it
// only moves forward: ringing → in_call → ended. A new ringing record appears
// only after the next StartCall rewrites the slot.
type Status string

const (
	StatusRinging Status = "ringing"
	StatusInCall  Status = "in_call"
	StatusEnded   Status = "ended"
)

// Kind selects the media of a call. Fixed at creation by the caller.
type Kind string

const (
	KindVoice Kind = "voice"
	KindVideo Kind = "video"
)

// Record is the shared signaling document, one fixed slot per room. The
// caller writes it whole with the offer; the callee merges in the answer;
// either side merges status=ended. Offer and answer are each written once
// and never mutated.
type Record struct {
	Status     Status              `json:"status"`
	Kind       Kind                `json:"kind"`
	CallerName string              `json:"callerName"`
	CreatedAt  int64               `json:"createdAt"`
	Offer      *engine.Description `json:"offer,omitempty"`
	Answer     *engine.Description `json:"answer,omitempty"`
}

// candidateEnvelope is one entry of a candidate channel. The candidate is
// opaque: whatever the engine produced goes through verbatim.
type candidateEnvelope struct {
	Candidate engine.Candidate `json:"candidate"`
}

// recordPath returns the call record address for a room. One slot per room —
// only one concurrent call per room is representable.
func recordPath(roomID string) string {
	return "rooms/" + roomID + "/calls/active"
}

// offerCandidatesPath is the caller's candidate channel.
func offerCandidatesPath(roomID string) string {
	return recordPath(roomID) + "/offerCandidates"
}

// answerCandidatesPath is the callee's candidate channel.
func answerCandidatesPath(roomID string) string {
	return recordPath(roomID) + "/answerCandidates"
}
