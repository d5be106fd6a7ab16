package wsrelay

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aldisr/ngobrol/internal/relay"
	"github.com/aldisr/ngobrol/internal/relay/memory"
)

func newTestRelay(t *testing.T) string {
	t.Helper()
	srv := NewServer(memory.NewStore())
	ts := httptest.NewServer(http.HandlerFunc(srv.HandleWS))
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dial(t *testing.T, url string) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, url)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRoundTripAcrossClients(t *testing.T) {
	url := newTestRelay(t)
	a := dial(t, url)
	b := dial(t, url)
	ctx := context.Background()

	if _, err := a.GetDoc(ctx, "rooms/x/calls/active"); !errors.Is(err, relay.ErrNotFound) {
		t.Fatalf("GetDoc on empty relay = %v, want ErrNotFound", err)
	}

	if err := a.SetDoc(ctx, "rooms/x/calls/active", relay.Doc{"status": "ringing"}); err != nil {
		t.Fatalf("SetDoc: %v", err)
	}
	doc, err := b.GetDoc(ctx, "rooms/x/calls/active")
	if err != nil {
		t.Fatalf("GetDoc from second client: %v", err)
	}
	if doc["status"] != "ringing" {
		t.Errorf("status = %v, want ringing", doc["status"])
	}

	if err := b.MergeDoc(ctx, "rooms/x/calls/active", relay.Doc{"status": "in_call"}); err != nil {
		t.Fatalf("MergeDoc: %v", err)
	}
	doc, _ = a.GetDoc(ctx, "rooms/x/calls/active")
	if doc["status"] != "in_call" {
		t.Errorf("status = %v, want in_call", doc["status"])
	}
}

func TestWatchDocAcrossClients(t *testing.T) {
	url := newTestRelay(t)
	a := dial(t, url)
	b := dial(t, url)
	ctx := context.Background()

	if err := a.SetDoc(ctx, "d", relay.Doc{"v": "initial"}); err != nil {
		t.Fatalf("SetDoc: %v", err)
	}

	got := make(chan string, 8)
	cancel, err := b.WatchDoc(ctx, "d", func(doc relay.Doc) {
		v, _ := doc["v"].(string)
		got <- v
	})
	if err != nil {
		t.Fatalf("WatchDoc: %v", err)
	}
	defer cancel()

	if v := recv(t, got); v != "initial" {
		t.Errorf("initial delivery = %q, want initial", v)
	}

	if err := a.SetDoc(ctx, "d", relay.Doc{"v": "changed"}); err != nil {
		t.Fatalf("SetDoc: %v", err)
	}
	if v := recv(t, got); v != "changed" {
		t.Errorf("update delivery = %q, want changed", v)
	}
}

func TestWatchAddedAcrossClients(t *testing.T) {
	url := newTestRelay(t)
	a := dial(t, url)
	b := dial(t, url)
	ctx := context.Background()

	if err := a.Add(ctx, "col", relay.Doc{"v": "one"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got := make(chan relay.Entry, 8)
	cancel, err := b.WatchAdded(ctx, "col", func(e relay.Entry) { got <- e })
	if err != nil {
		t.Fatalf("WatchAdded: %v", err)
	}
	defer cancel()

	e := recvEntry(t, got)
	if e.Doc["v"] != "one" || e.ID == "" {
		t.Errorf("existing entry = %+v", e)
	}

	if err := a.Add(ctx, "col", relay.Doc{"v": "two"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	e = recvEntry(t, got)
	if e.Doc["v"] != "two" {
		t.Errorf("new entry = %+v", e)
	}
}

func TestOnDisconnectMarksOffline(t *testing.T) {
	url := newTestRelay(t)
	a := dial(t, url)
	b := dial(t, url)
	ctx := context.Background()

	if err := a.MergeDoc(ctx, "presence/x", relay.Doc{"u1": relay.Doc{"state": "online"}}); err != nil {
		t.Fatalf("MergeDoc: %v", err)
	}
	if err := a.OnDisconnect(ctx, "presence/x", relay.Doc{"u1": relay.Doc{"state": "offline"}}); err != nil {
		t.Fatalf("OnDisconnect: %v", err)
	}

	got := make(chan relay.Doc, 8)
	cancel, err := b.WatchDoc(ctx, "presence/x", func(doc relay.Doc) { got <- doc })
	if err != nil {
		t.Fatalf("WatchDoc: %v", err)
	}
	defer cancel()
	recvDoc(t, got) // initial online state

	a.Close()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case doc := <-got:
			u1, _ := doc["u1"].(map[string]any)
			if u1 != nil && u1["state"] == "offline" {
				return
			}
		case <-deadline:
			t.Fatal("offline merge never observed after disconnect")
		}
	}
}

func recv(t *testing.T, ch chan string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for delivery")
		return ""
	}
}

func recvEntry(t *testing.T, ch chan relay.Entry) relay.Entry {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for entry")
		return relay.Entry{}
	}
}

func recvDoc(t *testing.T, ch chan relay.Doc) relay.Doc {
	t.Helper()
	select {
	case d := <-ch:
		return d
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for doc")
		return nil
	}
}
