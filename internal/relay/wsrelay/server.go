package wsrelay

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/aldisr/ngobrol/internal/relay"
	"github.com/aldisr/ngobrol/internal/relay/memory"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server terminates client WebSockets and applies their requests to one
// shared in-process store. Watches registered by one connection observe
// writes made by any other, which is all the fan-out the protocol needs.
type Server struct {
	store *memory.Store
}

// NewServer creates a Server over the given shared store.
func NewServer(store *memory.Store) *Server {
	return &Server{store: store}
}

// HandleWS upgrades the request and serves the connection until it drops.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &serverConn{
		id:      uuid.NewString()[:8],
		ws:      ws,
		store:   s.store,
		watches: make(map[uint64]relay.CancelFunc),
	}
	log.Info().Str("conn", c.id).Str("remote", r.RemoteAddr).Msg("relay client connected")
	c.serve()
}

// serverConn is one client connection's state: its registered watches and
// its pending disconnect merges.
type serverConn struct {
	id    string
	ws    *websocket.Conn
	store *memory.Store

	writeMu sync.Mutex

	mu         sync.Mutex
	watches    map[uint64]relay.CancelFunc
	disconnect []Frame
}

func (c *serverConn) serve() {
	defer c.teardown()
	ctx := context.Background()

	for {
		var f Frame
		if err := c.ws.ReadJSON(&f); err != nil {
			return
		}
		c.handle(ctx, f)
	}
}

func (c *serverConn) handle(ctx context.Context, f Frame) {
	switch f.Op {
	case OpGet:
		doc, err := c.store.GetDoc(ctx, f.Path)
		if errors.Is(err, relay.ErrNotFound) {
			c.reply(Frame{Op: OpResult, ID: f.ID, NotFound: true})
			return
		}
		c.result(f.ID, Frame{Doc: doc}, err)

	case OpSet:
		c.result(f.ID, Frame{}, c.store.SetDoc(ctx, f.Path, f.Doc))

	case OpMerge:
		c.result(f.ID, Frame{}, c.store.MergeDoc(ctx, f.Path, f.Doc))

	case OpDelete:
		c.result(f.ID, Frame{}, c.store.DeleteDoc(ctx, f.Path))

	case OpAdd:
		c.result(f.ID, Frame{}, c.store.Add(ctx, f.Path, f.Doc))

	case OpList:
		entries, err := c.store.List(ctx, f.Path)
		wire := make([]wireEntry, 0, len(entries))
		for _, e := range entries {
			wire = append(wire, wireEntry{ID: e.ID, Doc: e.Doc})
		}
		c.result(f.ID, Frame{Entries: wire}, err)

	case OpClear:
		c.result(f.ID, Frame{}, c.store.Clear(ctx, f.Path))

	case OpWatchDoc:
		watchID := f.WatchID
		cancel, err := c.store.WatchDoc(ctx, f.Path, func(doc relay.Doc) {
			c.push(Frame{Op: OpDocChanged, WatchID: watchID, Doc: doc})
		})
		if err == nil {
			c.addWatch(watchID, cancel)
		}
		c.result(f.ID, Frame{}, err)

	case OpWatchAdded:
		watchID := f.WatchID
		cancel, err := c.store.WatchAdded(ctx, f.Path, func(e relay.Entry) {
			c.push(Frame{Op: OpEntryAdded, WatchID: watchID, Entry: &wireEntry{ID: e.ID, Doc: e.Doc}})
		})
		if err == nil {
			c.addWatch(watchID, cancel)
		}
		c.result(f.ID, Frame{}, err)

	case OpUnwatch:
		// Fire-and-forget: no result frame.
		c.mu.Lock()
		cancel, ok := c.watches[f.WatchID]
		delete(c.watches, f.WatchID)
		c.mu.Unlock()
		if ok {
			cancel()
		}

	case OpOnDisconnect:
		c.mu.Lock()
		c.disconnect = append(c.disconnect, Frame{Path: f.Path, Doc: f.Doc})
		c.mu.Unlock()
		c.result(f.ID, Frame{}, nil)

	default:
		c.reply(Frame{Op: OpResult, ID: f.ID, Error: "unknown op " + string(f.Op)})
	}
}

// teardown cancels the connection's watches and applies its registered
// disconnect merges, in registration order.
func (c *serverConn) teardown() {
	c.ws.Close()

	c.mu.Lock()
	watches := c.watches
	c.watches = nil
	disconnect := c.disconnect
	c.disconnect = nil
	c.mu.Unlock()

	for _, cancel := range watches {
		cancel()
	}
	for _, d := range disconnect {
		if err := c.store.MergeDoc(context.Background(), d.Path, d.Doc); err != nil {
			log.Warn().Err(err).Str("conn", c.id).Str("path", d.Path).Msg("disconnect merge failed")
		}
	}
	log.Info().Str("conn", c.id).Msg("relay client disconnected")
}

func (c *serverConn) addWatch(watchID uint64, cancel relay.CancelFunc) {
	c.mu.Lock()
	if c.watches == nil {
		// Connection already torn down; drop the subscription immediately.
		c.mu.Unlock()
		cancel()
		return
	}
	c.watches[watchID] = cancel
	c.mu.Unlock()
}

func (c *serverConn) result(id uint64, f Frame, err error) {
	f.Op = OpResult
	f.ID = id
	if err != nil {
		f = Frame{Op: OpResult, ID: id, Error: err.Error()}
	}
	c.reply(f)
}

func (c *serverConn) reply(f Frame) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteJSON(f); err != nil {
		log.Debug().Err(err).Str("conn", c.id).Msg("write to relay client failed")
	}
}

func (c *serverConn) push(f Frame) {
	c.reply(f)
}
