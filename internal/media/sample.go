package media

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
)

// SampleTrack is a local track backed by a pion TrackLocalStaticSample.
// Whatever feeds it (a device reader, a file, a test tone) pushes encoded
// samples via WriteSample; a disabled track drops samples instead of
// sending them.
type SampleTrack struct {
	kind    TrackKind
	local   *webrtc.TrackLocalStaticSample
	enabled atomic.Bool
	stop    sync.Once
	onStop  func()
}

// NewSampleTrack creates a SampleTrack with the given codec capability.
func NewSampleTrack(kind TrackKind, capability webrtc.RTPCodecCapability) (*SampleTrack, error) {
	local, err := webrtc.NewTrackLocalStaticSample(capability, string(kind), uuid.NewString())
	if err != nil {
		return nil, err
	}
	t := &SampleTrack{kind: kind, local: local}
	t.enabled.Store(true)
	return t, nil
}

func (t *SampleTrack) ID() string         { return t.local.ID() }
func (t *SampleTrack) Kind() TrackKind    { return t.kind }
func (t *SampleTrack) SetEnabled(on bool) { t.enabled.Store(on) }
func (t *SampleTrack) Enabled() bool      { return t.enabled.Load() }

// OnStop registers the hook Stop runs, typically cancelling the feeder.
func (t *SampleTrack) OnStop(fn func()) { t.onStop = fn }

// RTPTrack exposes the underlying pion track for the engine to add.
func (t *SampleTrack) RTPTrack() webrtc.TrackLocal { return t.local }

// WriteSample forwards one encoded sample to the peer, unless the track is
// disabled.
func (t *SampleTrack) WriteSample(sample pionmedia.Sample) error {
	if !t.enabled.Load() {
		return nil
	}
	return t.local.WriteSample(sample)
}

// Stop runs the OnStop hook once.
func (t *SampleTrack) Stop() {
	t.stop.Do(func() {
		if t.onStop != nil {
			t.onStop()
		}
	})
}

// SampleSource is a Source producing SampleTracks with Opus and VP8
// capabilities. The Feed callback, if set, is started per track in its own
// goroutine and should push samples until its context is cancelled.
type SampleSource struct {
	Feed func(ctx context.Context, t *SampleTrack)
}

type trackSpec struct {
	kind TrackKind
	cap  webrtc.RTPCodecCapability
}

// Capture implements Source.
func (s *SampleSource) Capture(ctx context.Context, withVideo bool) (*Stream, error) {
	specs := []trackSpec{
		{TrackAudio, webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}},
	}
	if withVideo {
		specs = append(specs, trackSpec{TrackVideo, webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}})
	}

	stream := NewStream()
	for _, spec := range specs {
		track, err := NewSampleTrack(spec.kind, spec.cap)
		if err != nil {
			stream.StopAll()
			return nil, err
		}
		if s.Feed != nil {
			feedCtx, cancel := context.WithCancel(ctx)
			track.OnStop(cancel)
			go s.Feed(feedCtx, track)
		}
		stream.AddTrack(track)
	}
	return stream, nil
}
