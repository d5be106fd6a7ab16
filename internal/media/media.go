// Package media models the capture/rendering collaborator. Acquiring real
// devices is outside this repo; callers provide a Source, and the call core
// only moves Tracks between a Source and the peer connection engine.
package media

import (
	"context"
	"sync"
)

// TrackKind separates audio from video tracks.
type TrackKind string

const (
	TrackAudio TrackKind = "audio"
	TrackVideo TrackKind = "video"
)

// Track is one audio or video track, local or remote.
type Track interface {
	ID() string
	Kind() TrackKind

	// SetEnabled toggles the track without stopping it (mute / camera off).
	SetEnabled(enabled bool)
	Enabled() bool

	// Stop releases the underlying capture resource. Idempotent.
	Stop()
}

// Source acquires local capture tracks. withVideo selects audio+video;
// audio is always captured.
type Source interface {
	Capture(ctx context.Context, withVideo bool) (*Stream, error)
}

// Stream is an ordered set of tracks. A local stream is filled once by
// Capture; a remote stream starts empty and fills as the engine surfaces
// incoming tracks.
type Stream struct {
	mu     sync.Mutex
	tracks []Track
}

// NewStream creates an empty stream.
func NewStream() *Stream {
	return &Stream{}
}

// AddTrack appends a track to the stream.
func (s *Stream) AddTrack(t Track) {
	s.mu.Lock()
	s.tracks = append(s.tracks, t)
	s.mu.Unlock()
}

// Tracks returns a snapshot of the stream's tracks.
func (s *Stream) Tracks() []Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Track, len(s.tracks))
	copy(out, s.tracks)
	return out
}

// SetEnabled toggles every track of the given kind.
func (s *Stream) SetEnabled(kind TrackKind, enabled bool) {
	for _, t := range s.Tracks() {
		if t.Kind() == kind {
			t.SetEnabled(enabled)
		}
	}
}

// StopAll stops every track. Idempotent, because Track.Stop is.
func (s *Stream) StopAll() {
	for _, t := range s.Tracks() {
		t.Stop()
	}
}
