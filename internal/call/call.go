// Package call implements the signaling state machine that establishes a
// two-party audio/video session through the relay. The caller publishes an
// offer into the room's single call slot, the callee merges in an answer, and
// both sides trickle connectivity candidates through their own append-only
// channel until the engine connects.
package call

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aldisr/ngobrol/internal/engine"
	"github.com/aldisr/ngobrol/internal/media"
	"github.com/aldisr/ngobrol/internal/relay"
	"github.com/aldisr/ngobrol/internal/util"
)

// Client creates call sessions against one relay store. It is cheap and
// stateless; each StartCall/JoinCall produces an independent Session.
type Client struct {
	store  relay.Store
	engine engine.Factory
	source media.Source
}

// NewClient wires a Client from its three collaborators.
func NewClient(store relay.Store, factory engine.Factory, source media.Source) *Client {
	return &Client{store: store, engine: factory, source: source}
}

// StartCall begins a call in the room as the caller. It drains both candidate
// channels, acquires local media, publishes a fresh ringing record carrying
// the offer, and subscribes to the record (for the answer and for ended) and
// to the callee's candidate channel.
//
// The setup sequence is strict: each step completes before the next starts,
// and any failure releases whatever was already acquired before the error is
// returned. onStatus, if non-nil, is invoked with every status observed on
// the record, starting with our own ringing write.
func (c *Client) StartCall(ctx context.Context, roomID, callerName string, kind Kind, onStatus func(Status)) (*Session, error) {
	// A room must never carry candidates from a previous call into a new
	// negotiation. Drain both channels before anything else; this is
	// idempotent and cheap when they are already empty.
	if err := c.clearCandidates(ctx, roomID); err != nil {
		return nil, err
	}

	local, err := c.source.Capture(ctx, kind == KindVideo)
	if err != nil {
		return nil, errors.Join(ErrMediaUnavailable, err)
	}

	eng, err := c.engine()
	if err != nil {
		local.StopAll()
		return nil, fmt.Errorf("create engine: %w", err)
	}

	s := newSession(c.store, roomID, eng, local, kind)
	if err := attachTracks(eng, local); err != nil {
		s.cleanup()
		return nil, err
	}

	// Publish locally discovered candidates as soon as they appear. This may
	// start firing before the record write below lands; the channel exists
	// independently, so no candidate is lost either way.
	publishCandidates(s, offerCandidatesPath(roomID))

	offer, err := eng.CreateOffer()
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("create offer: %w", err)
	}
	if err := eng.SetLocalDescription(offer); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("set local description: %w", err)
	}

	rec := Record{
		Status:     StatusRinging,
		Kind:       kind,
		CallerName: callerName,
		CreatedAt:  time.Now().UnixMilli(),
		Offer:      &offer,
	}
	doc, err := relay.Encode(rec)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("encode call record: %w", err)
	}
	// Full replace: nothing from an earlier record may survive into this one.
	if err := c.store.SetDoc(ctx, recordPath(roomID), doc); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("write call record: %w", err)
	}

	if err := c.subscribe(ctx, s, roomID, true, onStatus, answerCandidatesPath(roomID)); err != nil {
		s.cleanup()
		return nil, err
	}
	util.Stats.AddCallStarted()
	return s, nil
}

// JoinCall answers the room's pending call as the callee. It reads the record
// (failing with ErrNoActiveCall before touching media or the relay if there
// is none), applies the offer, publishes an answer by merging into the
// record, and subscribes symmetrically to the caller's side.
func (c *Client) JoinCall(ctx context.Context, roomID string, onStatus func(Status)) (*Session, error) {
	doc, err := c.store.GetDoc(ctx, recordPath(roomID))
	if err != nil {
		if errors.Is(err, relay.ErrNotFound) {
			return nil, ErrNoActiveCall
		}
		return nil, fmt.Errorf("read call record: %w", err)
	}

	var rec Record
	if err := relay.Decode(doc, &rec); err != nil {
		return nil, fmt.Errorf("decode call record: %w", err)
	}
	kind := rec.Kind
	if kind == "" {
		// Records written before the kind field existed are voice calls.
		kind = KindVoice
	}
	if rec.Offer == nil {
		return nil, fmt.Errorf("call record for room %s has no offer", roomID)
	}

	local, err := c.source.Capture(ctx, kind == KindVideo)
	if err != nil {
		return nil, errors.Join(ErrMediaUnavailable, err)
	}

	eng, err := c.engine()
	if err != nil {
		local.StopAll()
		return nil, fmt.Errorf("create engine: %w", err)
	}

	s := newSession(c.store, roomID, eng, local, kind)
	if err := attachTracks(eng, local); err != nil {
		s.cleanup()
		return nil, err
	}

	publishCandidates(s, answerCandidatesPath(roomID))

	if err := s.applyRemoteDescription(*rec.Offer); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("apply remote offer: %w", err)
	}

	answer, err := eng.CreateAnswer()
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("create answer: %w", err)
	}
	if err := eng.SetLocalDescription(answer); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("set local description: %w", err)
	}

	// Merge, not replace: offer, callerName and createdAt stay as written.
	fields := relay.Doc{
		"status": string(StatusInCall),
		"answer": relay.Doc{"type": answer.Type, "sdp": answer.SDP},
	}
	if err := c.store.MergeDoc(ctx, recordPath(roomID), fields); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("write answer: %w", err)
	}

	if err := c.subscribe(ctx, s, roomID, false, onStatus, offerCandidatesPath(roomID)); err != nil {
		s.cleanup()
		return nil, err
	}
	util.Stats.AddCallJoined()
	return s, nil
}

func (c *Client) clearCandidates(ctx context.Context, roomID string) error {
	if err := c.store.Clear(ctx, offerCandidatesPath(roomID)); err != nil {
		return fmt.Errorf("clear offer candidates: %w", err)
	}
	if err := c.store.Clear(ctx, answerCandidatesPath(roomID)); err != nil {
		return fmt.Errorf("clear answer candidates: %w", err)
	}
	return nil
}

// subscribe registers the record watch and the remote candidate watch on the
// session. Both are cancelled as the first step of cleanup.
func (c *Client) subscribe(ctx context.Context, s *Session, roomID string, applyAnswer bool, onStatus func(Status), candidatePath string) error {
	cancelRec, err := c.store.WatchDoc(ctx, recordPath(roomID), s.recordHandler(applyAnswer, onStatus))
	if err != nil {
		return fmt.Errorf("watch call record: %w", err)
	}
	s.addCancel(cancelRec)

	cancelCand, err := c.store.WatchAdded(ctx, candidatePath, s.handleCandidate)
	if err != nil {
		return fmt.Errorf("watch candidates: %w", err)
	}
	s.addCancel(cancelCand)
	return nil
}

// attachTracks adds every local track to the engine.
func attachTracks(eng engine.Engine, local *media.Stream) error {
	for _, t := range local.Tracks() {
		if err := eng.AddTrack(t); err != nil {
			return fmt.Errorf("attach %s track: %w", t.Kind(), err)
		}
	}
	return nil
}

// publishCandidates forwards locally discovered candidates into the given
// channel. Appends are best-effort: a failed write only costs one candidate
// pair, and the engine keeps gathering.
func publishCandidates(s *Session, path string) {
	s.Engine.OnCandidate(func(c engine.Candidate) {
		env, err := relay.Encode(candidateEnvelope{Candidate: c})
		if err != nil {
			return
		}
		if err := s.store.Add(s.ctx, path, env); err != nil {
			util.LogWarning("publish candidate: %v", err)
		}
	})
}
