package presence

import (
	"context"
	"testing"

	"github.com/aldisr/ngobrol/internal/relay/memory"
)

func TestJoinLeaveRoster(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	ani := NewTracker(store, "abcd", "uid-ani", "Ani")
	budi := NewTracker(store, "abcd", "uid-budi", "Budi")

	if err := ani.Join(ctx); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if err := budi.Join(ctx); err != nil {
		t.Fatalf("Join: %v", err)
	}

	var roster []Info
	cancel, err := ani.Watch(ctx, func(online []Info) { roster = online })
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer cancel()

	if len(roster) != 2 || roster[0].Name != "Ani" || roster[1].Name != "Budi" {
		t.Fatalf("roster = %+v, want [Ani Budi]", roster)
	}

	if err := budi.Leave(ctx); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if len(roster) != 1 || roster[0].Name != "Ani" {
		t.Errorf("roster after leave = %+v, want [Ani]", roster)
	}

	// Re-joining flips the member back online.
	if err := budi.Join(ctx); err != nil {
		t.Fatalf("re-Join: %v", err)
	}
	if len(roster) != 2 {
		t.Errorf("roster after re-join = %+v", roster)
	}
}

func TestRoomsAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	if err := NewTracker(store, "room-1", "u1", "Ani").Join(ctx); err != nil {
		t.Fatalf("Join: %v", err)
	}

	var roster []Info
	seen := false
	cancel, err := NewTracker(store, "room-2", "u2", "Budi").Watch(ctx, func(online []Info) {
		roster = online
		seen = true
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer cancel()

	if seen && len(roster) != 0 {
		t.Errorf("room-2 roster sees room-1 members: %+v", roster)
	}
}
