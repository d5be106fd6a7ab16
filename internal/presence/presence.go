// Package presence tracks who is online in a room. Each room has one
// presence document whose fields are uid → {name, state, ts}; members merge
// their own field in, and backends with a live connection additionally mark
// the member offline when that connection drops.
package presence

import (
	"context"
	"sort"
	"time"

	"github.com/aldisr/ngobrol/internal/relay"
	"github.com/aldisr/ngobrol/internal/util"
)

// State is a member's liveness.
type State string

const (
	StateOnline  State = "online"
	StateOffline State = "offline"
)

// Info is one member's presence value.
type Info struct {
	Name  string `json:"name"`
	State State  `json:"state"`
	TS    int64  `json:"ts"`
}

// Tracker maintains one member's presence in one room.
type Tracker struct {
	store relay.Store
	path  string
	uid   string
	name  string
}

// NewTracker creates a Tracker for the member.
func NewTracker(store relay.Store, roomID, uid, name string) *Tracker {
	return &Tracker{
		store: store,
		path:  "presence/" + roomID,
		uid:   uid,
		name:  name,
	}
}

// Join marks the member online and, when the backend supports it, registers
// an automatic offline transition for connection loss. Registration failure
// is not fatal: presence degrades to explicit Leave only.
func (t *Tracker) Join(ctx context.Context) error {
	if err := t.set(ctx, StateOnline); err != nil {
		return err
	}
	if dn, ok := t.store.(relay.DisconnectNotifier); ok {
		if err := dn.OnDisconnect(ctx, t.path, t.field(StateOffline)); err != nil {
			util.LogWarning("register disconnect hook: %v", err)
		}
	}
	return nil
}

// Leave marks the member offline.
func (t *Tracker) Leave(ctx context.Context) error {
	return t.set(ctx, StateOffline)
}

func (t *Tracker) set(ctx context.Context, state State) error {
	return t.store.MergeDoc(ctx, t.path, t.field(state))
}

func (t *Tracker) field(state State) relay.Doc {
	return relay.Doc{
		t.uid: relay.Doc{
			"name":  t.name,
			"state": string(state),
			"ts":    time.Now().UnixMilli(),
		},
	}
}

// Watch subscribes to the room's roster. fn receives the online members,
// sorted by name, on every presence change.
func (t *Tracker) Watch(ctx context.Context, fn func([]Info)) (relay.CancelFunc, error) {
	return t.store.WatchDoc(ctx, t.path, func(doc relay.Doc) {
		var members map[string]Info
		if err := relay.Decode(doc, &members); err != nil {
			util.LogWarning("malformed presence document: %v", err)
			return
		}
		online := make([]Info, 0, len(members))
		for _, info := range members {
			if info.State == StateOnline {
				online = append(online, info)
			}
		}
		sort.Slice(online, func(i, j int) bool { return online[i].Name < online[j].Name })
		fn(online)
	})
}
