// Package wsrelay carries the relay.Store protocol over a single WebSocket:
// request/response frames for reads and writes, push frames for watch
// delivery. The Client side implements relay.Store for the application; the
// Server side applies requests to a shared in-process store and fans watch
// notifications back out.
package wsrelay

import "github.com/aldisr/ngobrol/internal/relay"

// Op identifies a frame's meaning.
type Op string

const (
	// Client → server requests.
	OpGet          Op = "get"
	OpSet          Op = "set"
	OpMerge        Op = "merge"
	OpDelete       Op = "delete"
	OpAdd          Op = "add"
	OpList         Op = "list"
	OpClear        Op = "clear"
	OpWatchDoc     Op = "watchDoc"
	OpWatchAdded   Op = "watchAdded"
	OpUnwatch      Op = "unwatch"
	OpOnDisconnect Op = "onDisconnect"

	// Server → client.
	OpResult     Op = "result"     // response, correlated by ID
	OpDocChanged Op = "docChanged" // push, correlated by WatchID
	OpEntryAdded Op = "entryAdded" // push, correlated by WatchID
)

// Frame is the single JSON structure exchanged in both directions. Fields
// are populated per Op; unknown fields are ignored on both ends.
type Frame struct {
	Op      Op     `json:"op"`
	ID      uint64 `json:"id,omitempty"`      // request/response correlation
	WatchID uint64 `json:"watchId,omitempty"` // subscription correlation

	Path    string      `json:"path,omitempty"`
	Doc     relay.Doc   `json:"doc,omitempty"`
	Entry   *wireEntry  `json:"entry,omitempty"`
	Entries []wireEntry `json:"entries,omitempty"`

	NotFound bool   `json:"notFound,omitempty"`
	Error    string `json:"error,omitempty"`
}

type wireEntry struct {
	ID  string    `json:"id"`
	Doc relay.Doc `json:"doc"`
}
