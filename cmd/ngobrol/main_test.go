package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aldisr/ngobrol/internal/call"
	"github.com/aldisr/ngobrol/internal/engine"
	"github.com/aldisr/ngobrol/internal/media"
	"github.com/aldisr/ngobrol/internal/relay/memory"
)

type stubEngine struct{}

func (stubEngine) CreateOffer() (engine.Description, error) {
	return engine.Description{Type: "offer", SDP: "sdp"}, nil
}
func (stubEngine) CreateAnswer() (engine.Description, error) {
	return engine.Description{Type: "answer", SDP: "sdp"}, nil
}
func (stubEngine) SetLocalDescription(engine.Description) error  { return nil }
func (stubEngine) SetRemoteDescription(engine.Description) error { return nil }
func (stubEngine) AddCandidate(engine.Candidate) error           { return nil }
func (stubEngine) OnCandidate(func(engine.Candidate))            {}
func (stubEngine) AddTrack(media.Track) error                    { return nil }
func (stubEngine) OnTrack(func(media.Track))                     {}
func (stubEngine) Close() error                                  { return nil }

type stubSource struct{}

func (stubSource) Capture(context.Context, bool) (*media.Stream, error) {
	return media.NewStream(), nil
}

func newTestRepl(t *testing.T) *repl {
	t.Helper()
	caller := call.NewClient(memory.NewStore(),
		func() (engine.Engine, error) { return stubEngine{}, nil }, stubSource{})
	return &repl{caller: caller}
}

func startSession(t *testing.T, r *repl, room string) *call.Session {
	t.Helper()
	s, err := r.caller.StartCall(context.Background(), room, "Ani", call.KindVoice, nil)
	if err != nil {
		t.Fatalf("StartCall: %v", err)
	}
	return s
}

// The attach goroutine clears the session once the call ends, while the main
// goroutine keeps reading it through current.
func TestReplClearsSessionWhenCallEnds(t *testing.T) {
	r := newTestRepl(t)
	s := startSession(t, r, "abcd")
	r.attach(s)

	if r.current() != s {
		t.Fatal("session not attached")
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			r.current()
		}
	}()
	s.End(context.Background())
	wg.Wait()

	deadline := time.After(5 * time.Second)
	for r.current() != nil {
		select {
		case <-deadline:
			t.Fatal("session not cleared after the call ended")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestReplDetachIsExclusive(t *testing.T) {
	r := newTestRepl(t)
	s := startSession(t, r, "abcd")
	defer s.End(context.Background())
	r.attach(s)

	if got := r.detach(); got != s {
		t.Fatalf("detach = %v, want the attached session", got)
	}
	if got := r.detach(); got != nil {
		t.Fatalf("second detach = %v, want nil", got)
	}
	if r.current() != nil {
		t.Fatal("session still current after detach")
	}
}

// Ending a detached session must not clear a newer one attached afterwards.
func TestReplLateDoneKeepsNewerSession(t *testing.T) {
	r := newTestRepl(t)
	first := startSession(t, r, "room-1")
	r.attach(first)

	if got := r.detach(); got != first {
		t.Fatalf("detach = %v, want first session", got)
	}
	second := startSession(t, r, "room-2")
	r.attach(second)
	defer second.End(context.Background())

	first.End(context.Background())

	// Give the first session's attach goroutine time to observe Done.
	time.Sleep(50 * time.Millisecond)
	if r.current() != second {
		t.Fatal("ending the old session cleared the new one")
	}
}
