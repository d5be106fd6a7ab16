package config

import (
	"regexp"
	"testing"
)

func TestWSURL(t *testing.T) {
	testCases := []struct {
		relay string
		want  string
	}{
		{"http://localhost:8080", "ws://localhost:8080/ws"},
		{"https://relay.example.com", "wss://relay.example.com/ws"},
		{"http://localhost:8080/", "ws://localhost:8080/ws"},
		{"ws://localhost:8080", "ws://localhost:8080/ws"},
	}
	for _, tc := range testCases {
		got := Config{RelayURL: tc.relay}.WSURL()
		if got != tc.want {
			t.Errorf("WSURL(%q) = %q, want %q", tc.relay, got, tc.want)
		}
	}
}

func TestRandomRoomFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^[0-9a-z]{4}-[0-9a-z]{4}$`)
	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		room := RandomRoom()
		if !pattern.MatchString(room) {
			t.Fatalf("room %q does not match xxxx-xxxx", room)
		}
		seen[room] = true
	}
	if len(seen) < 2 {
		t.Error("room codes are not random")
	}
}
