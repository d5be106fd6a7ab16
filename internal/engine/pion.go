package engine

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/pion/webrtc/v4"

	"github.com/aldisr/ngobrol/internal/media"
)

// STUN servers for ICE candidate gathering. No TURN — connectivity is
// expected to be direct or via the caller's own infrastructure.
var stunServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// Pion wraps a pion PeerConnection behind the Engine interface.
type Pion struct {
	pc *webrtc.PeerConnection
}

// NewPion creates a PeerConnection configured with Google STUN servers.
func NewPion() (Engine, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: stunServers},
		},
	})
	if err != nil {
		return nil, err
	}
	return &Pion{pc: pc}, nil
}

// CreateOffer implements Engine.
func (e *Pion) CreateOffer() (Description, error) {
	offer, err := e.pc.CreateOffer(nil)
	if err != nil {
		return Description{}, err
	}
	return fromPion(offer), nil
}

// CreateAnswer implements Engine.
func (e *Pion) CreateAnswer() (Description, error) {
	answer, err := e.pc.CreateAnswer(nil)
	if err != nil {
		return Description{}, err
	}
	return fromPion(answer), nil
}

// SetLocalDescription implements Engine.
func (e *Pion) SetLocalDescription(desc Description) error {
	sd, err := toPion(desc)
	if err != nil {
		return err
	}
	return e.pc.SetLocalDescription(sd)
}

// SetRemoteDescription implements Engine.
func (e *Pion) SetRemoteDescription(desc Description) error {
	sd, err := toPion(desc)
	if err != nil {
		return err
	}
	return e.pc.SetRemoteDescription(sd)
}

// AddCandidate implements Engine. The candidate is the JSON form of an
// ICECandidateInit, exactly what OnCandidate produced on the remote side.
func (e *Pion) AddCandidate(c Candidate) error {
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal([]byte(c), &init); err != nil {
		return fmt.Errorf("decode candidate: %w", err)
	}
	return e.pc.AddICECandidate(init)
}

// OnCandidate implements Engine. The end-of-gathering nil candidate is not
// forwarded; the signaling layer only relays concrete candidates.
func (e *Pion) OnCandidate(fn func(Candidate)) {
	e.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		data, err := json.Marshal(c.ToJSON())
		if err != nil {
			return
		}
		fn(Candidate(data))
	})
}

// AddTrack implements Engine. Local tracks must expose their pion form via
// the RTPTrack method (media.SampleTrack does).
func (e *Pion) AddTrack(t media.Track) error {
	rtp, ok := t.(interface{ RTPTrack() webrtc.TrackLocal })
	if !ok {
		return fmt.Errorf("track %s is not backed by an RTP track", t.ID())
	}
	_, err := e.pc.AddTrack(rtp.RTPTrack())
	return err
}

// OnTrack implements Engine.
func (e *Pion) OnTrack(fn func(media.Track)) {
	e.pc.OnTrack(func(tr *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		fn(newRemoteTrack(tr))
	})
}

// Close implements Engine.
func (e *Pion) Close() error {
	return e.pc.Close()
}

// ConnectionState returns the current PeerConnection state, for display.
func (e *Pion) ConnectionState() webrtc.PeerConnectionState {
	return e.pc.ConnectionState()
}

func fromPion(sd webrtc.SessionDescription) Description {
	return Description{Type: sd.Type.String(), SDP: sd.SDP}
}

func toPion(desc Description) (webrtc.SessionDescription, error) {
	var t webrtc.SDPType
	switch desc.Type {
	case "offer":
		t = webrtc.SDPTypeOffer
	case "answer":
		t = webrtc.SDPTypeAnswer
	default:
		return webrtc.SessionDescription{}, fmt.Errorf("unknown description type %q", desc.Type)
	}
	return webrtc.SessionDescription{Type: t, SDP: desc.SDP}, nil
}

// remoteTrack adapts a pion TrackRemote to media.Track. Remote tracks stop
// when the peer connection closes; Stop only marks them disabled so renderers
// drop their output.
type remoteTrack struct {
	tr      *webrtc.TrackRemote
	enabled atomic.Bool
}

func newRemoteTrack(tr *webrtc.TrackRemote) *remoteTrack {
	t := &remoteTrack{tr: tr}
	t.enabled.Store(true)
	return t
}

func (t *remoteTrack) ID() string { return t.tr.ID() }

func (t *remoteTrack) Kind() media.TrackKind {
	if t.tr.Kind() == webrtc.RTPCodecTypeVideo {
		return media.TrackVideo
	}
	return media.TrackAudio
}

func (t *remoteTrack) SetEnabled(on bool) { t.enabled.Store(on) }
func (t *remoteTrack) Enabled() bool      { return t.enabled.Load() }
func (t *remoteTrack) Stop()              { t.enabled.Store(false) }
