package call

import (
	"context"
	"sync"

	"github.com/aldisr/ngobrol/internal/engine"
	"github.com/aldisr/ngobrol/internal/media"
	"github.com/aldisr/ngobrol/internal/relay"
	"github.com/aldisr/ngobrol/internal/util"
)

// Session is one active or pending call from this client's perspective. It
// owns the engine, the local stream, the filling remote stream, and the two
// relay subscriptions. A Session ends on End, on the remote side's ended
// status, or when the engine fails; all three paths funnel into the same
// idempotent cleanup.
type Session struct {
	// Engine is the live peer connection.
	Engine engine.Engine

	// Local is the captured local stream.
	Local *media.Stream

	// Remote starts empty and fills as the peer's tracks arrive.
	Remote *media.Stream

	// Kind is the call's media kind. For the callee, resolved from the record.
	Kind Kind

	store  relay.Store
	record string

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	remoteSet bool
	pending   []engine.Candidate
	applied   map[string]bool
	cancels   []relay.CancelFunc
	closed    bool
}

func newSession(store relay.Store, roomID string, eng engine.Engine, local *media.Stream, kind Kind) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		Engine:  eng,
		Local:   local,
		Remote:  media.NewStream(),
		Kind:    kind,
		store:   store,
		record:  recordPath(roomID),
		ctx:     ctx,
		cancel:  cancel,
		applied: make(map[string]bool),
	}
	eng.OnTrack(func(t media.Track) {
		s.Remote.AddTrack(t)
	})
	return s
}

// Done is closed once the session has been torn down, whether locally or by
// the remote side.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

// End hangs up: it marks the record ended so the peer can tear down, then
// releases local resources. The relay write is best-effort — hanging up must
// work even when the relay doesn't, so a write failure is logged and
// swallowed.
func (s *Session) End(ctx context.Context) {
	if err := s.store.MergeDoc(ctx, s.record, relay.Doc{"status": string(StatusEnded)}); err != nil {
		util.LogWarning("could not mark call ended on relay: %v", err)
	}
	s.cleanup()
}

// SetMuted toggles the local audio tracks.
func (s *Session) SetMuted(muted bool) {
	s.Local.SetEnabled(media.TrackAudio, !muted)
}

// SetCameraOff toggles the local video tracks.
func (s *Session) SetCameraOff(off bool) {
	s.Local.SetEnabled(media.TrackVideo, !off)
}

// applyRemoteDescription applies desc exactly once per session. Duplicate
// record notifications carrying the same answer are dropped here; subscribers
// may redeliver and handlers may overlap, so the guard lives in session
// state, not in delivery order.
func (s *Session) applyRemoteDescription(desc engine.Description) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.remoteSet || s.closed {
		return nil
	}
	if err := s.Engine.SetRemoteDescription(desc); err != nil {
		return err
	}
	s.remoteSet = true

	// Flush candidates that arrived before the remote description.
	for _, c := range s.pending {
		if err := s.Engine.AddCandidate(c); err != nil {
			util.LogWarning("apply buffered candidate: %v", err)
		}
	}
	s.pending = nil
	return nil
}

// handleCandidate applies one remote candidate entry. Entries seen before the
// remote description is set are buffered and flushed on application; replayed
// entry IDs are ignored.
func (s *Session) handleCandidate(entry relay.Entry) {
	var env candidateEnvelope
	if err := relay.Decode(entry.Doc, &env); err != nil {
		util.LogWarning("malformed candidate entry %s: %v", entry.ID, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.applied[entry.ID] {
		return
	}
	s.applied[entry.ID] = true

	if !s.remoteSet {
		s.pending = append(s.pending, env.Candidate)
		return
	}
	if err := s.Engine.AddCandidate(env.Candidate); err != nil {
		util.LogWarning("apply candidate: %v", err)
	}
}

// recordHandler builds the call-record subscription handler. applyAnswer is
// set on the caller side only; the callee already consumed the offer and only
// watches for status changes.
func (s *Session) recordHandler(applyAnswer bool, onStatus func(Status)) func(relay.Doc) {
	return func(doc relay.Doc) {
		var rec Record
		if err := relay.Decode(doc, &rec); err != nil {
			util.LogWarning("malformed call record: %v", err)
			return
		}
		if rec.Status != "" && onStatus != nil {
			onStatus(rec.Status)
		}
		if applyAnswer && rec.Answer != nil {
			if err := s.applyRemoteDescription(*rec.Answer); err != nil {
				util.LogWarning("apply remote answer: %v", err)
			}
		}
		if rec.Status == StatusEnded {
			s.cleanup()
		}
	}
}

func (s *Session) addCancel(c relay.CancelFunc) {
	s.mu.Lock()
	s.cancels = append(s.cancels, c)
	s.mu.Unlock()
}

// cleanup cancels both subscriptions, stops local tracks, and closes the
// engine. Idempotent: a local hangup racing a remote ended notification runs
// the release sequence exactly once.
func (s *Session) cleanup() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancels := s.cancels
	s.cancels = nil
	s.mu.Unlock()

	// Subscriptions go first so a late update cannot re-enter teardown on an
	// already-closed engine.
	for _, c := range cancels {
		c()
	}
	s.Local.StopAll()
	if err := s.Engine.Close(); err != nil {
		util.LogWarning("close engine: %v", err)
	}
	s.cancel()
}
