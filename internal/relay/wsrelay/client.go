package wsrelay

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/aldisr/ngobrol/internal/relay"
	"github.com/aldisr/ngobrol/internal/util"
)

// ErrClosed is returned for operations on a closed client.
var ErrClosed = errors.New("wsrelay: connection closed")

// Client is a relay.Store backed by a WebSocket connection to the relay
// server. All methods are safe for concurrent use; writes are serialized on
// the connection and responses are correlated by request id.
type Client struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan Frame
	watches map[uint64]func(Frame)
	closed  bool

	done chan struct{}
}

// Dial connects to the relay server's /ws endpoint, e.g.
// "ws://localhost:8080/ws", and starts the read loop.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to relay: %w", err)
	}

	c := &Client{
		conn:    conn,
		nextID:  1,
		pending: make(map[uint64]chan Frame),
		watches: make(map[uint64]func(Frame)),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Close shuts the connection down. Outstanding requests fail with ErrClosed;
// watch handlers stop firing.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.conn.Close()
}

// Done is closed when the connection is gone, locally or remotely.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// readLoop routes inbound frames: results to their waiting request, pushes
// to the registered watch handler. It exits when the connection closes.
func (c *Client) readLoop() {
	defer close(c.done)
	for {
		var f Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			c.failPending()
			return
		}

		switch f.Op {
		case OpResult:
			c.mu.Lock()
			ch, ok := c.pending[f.ID]
			delete(c.pending, f.ID)
			c.mu.Unlock()
			if ok {
				ch <- f
			}

		case OpDocChanged, OpEntryAdded:
			c.mu.Lock()
			fn, ok := c.watches[f.WatchID]
			c.mu.Unlock()
			if ok {
				fn(f)
			}

		default:
			util.LogDebug("wsrelay: unexpected frame op %q", f.Op)
		}
	}
}

func (c *Client) failPending() {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[uint64]chan Frame)
	c.closed = true
	c.mu.Unlock()
	for _, ch := range pending {
		ch <- Frame{Op: OpResult, Error: ErrClosed.Error()}
	}
}

// request sends one frame and waits for its result.
func (c *Client) request(ctx context.Context, f Frame) (Frame, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Frame{}, ErrClosed
	}
	f.ID = c.nextID
	c.nextID++
	ch := make(chan Frame, 1)
	c.pending[f.ID] = ch
	c.mu.Unlock()

	if err := c.write(f); err != nil {
		c.mu.Lock()
		delete(c.pending, f.ID)
		c.mu.Unlock()
		return Frame{}, err
	}

	select {
	case resp := <-ch:
		if resp.Error != "" {
			if resp.Error == ErrClosed.Error() {
				return Frame{}, ErrClosed
			}
			return Frame{}, errors.New(resp.Error)
		}
		return resp, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, f.ID)
		c.mu.Unlock()
		return Frame{}, ctx.Err()
	case <-c.done:
		return Frame{}, ErrClosed
	}
}

func (c *Client) write(f Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(f)
}

// GetDoc implements relay.Store.
func (c *Client) GetDoc(ctx context.Context, path string) (relay.Doc, error) {
	resp, err := c.request(ctx, Frame{Op: OpGet, Path: path})
	if err != nil {
		return nil, err
	}
	if resp.NotFound {
		return nil, relay.ErrNotFound
	}
	return resp.Doc, nil
}

// SetDoc implements relay.Store.
func (c *Client) SetDoc(ctx context.Context, path string, doc relay.Doc) error {
	_, err := c.request(ctx, Frame{Op: OpSet, Path: path, Doc: doc})
	return err
}

// MergeDoc implements relay.Store.
func (c *Client) MergeDoc(ctx context.Context, path string, fields relay.Doc) error {
	_, err := c.request(ctx, Frame{Op: OpMerge, Path: path, Doc: fields})
	return err
}

// DeleteDoc implements relay.Store.
func (c *Client) DeleteDoc(ctx context.Context, path string) error {
	_, err := c.request(ctx, Frame{Op: OpDelete, Path: path})
	return err
}

// Add implements relay.Store.
func (c *Client) Add(ctx context.Context, path string, doc relay.Doc) error {
	_, err := c.request(ctx, Frame{Op: OpAdd, Path: path, Doc: doc})
	return err
}

// List implements relay.Store.
func (c *Client) List(ctx context.Context, path string) ([]relay.Entry, error) {
	resp, err := c.request(ctx, Frame{Op: OpList, Path: path})
	if err != nil {
		return nil, err
	}
	entries := make([]relay.Entry, 0, len(resp.Entries))
	for _, e := range resp.Entries {
		entries = append(entries, relay.Entry{ID: e.ID, Doc: e.Doc})
	}
	return entries, nil
}

// Clear implements relay.Store.
func (c *Client) Clear(ctx context.Context, path string) error {
	_, err := c.request(ctx, Frame{Op: OpClear, Path: path})
	return err
}

// WatchDoc implements relay.Store. The handler is registered before the
// request goes out, so the server's initial push is never missed.
//
// Handlers run on the connection's read loop. A handler must not issue a
// Store request through the same Client: the blocked read loop could never
// deliver that request's result. Cancelling a watch is fine.
func (c *Client) WatchDoc(ctx context.Context, path string, fn func(relay.Doc)) (relay.CancelFunc, error) {
	return c.watch(ctx, OpWatchDoc, path, func(f Frame) {
		if f.Op == OpDocChanged {
			fn(f.Doc)
		}
	})
}

// WatchAdded implements relay.Store. The same handler constraint as WatchDoc
// applies: no Store requests through this Client from inside the handler.
func (c *Client) WatchAdded(ctx context.Context, path string, fn func(relay.Entry)) (relay.CancelFunc, error) {
	return c.watch(ctx, OpWatchAdded, path, func(f Frame) {
		if f.Op == OpEntryAdded && f.Entry != nil {
			fn(relay.Entry{ID: f.Entry.ID, Doc: f.Entry.Doc})
		}
	})
}

func (c *Client) watch(ctx context.Context, op Op, path string, fn func(Frame)) (relay.CancelFunc, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	watchID := c.nextID
	c.nextID++
	c.watches[watchID] = fn
	c.mu.Unlock()

	if _, err := c.request(ctx, Frame{Op: op, Path: path, WatchID: watchID}); err != nil {
		c.mu.Lock()
		delete(c.watches, watchID)
		c.mu.Unlock()
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.watches, watchID)
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				// Best-effort: the server also drops watches on disconnect.
				_ = c.write(Frame{Op: OpUnwatch, WatchID: watchID})
			}
		})
	}, nil
}

// OnDisconnect implements relay.DisconnectNotifier: the server merges the
// fields into the document when this connection drops.
func (c *Client) OnDisconnect(ctx context.Context, path string, fields relay.Doc) error {
	_, err := c.request(ctx, Frame{Op: OpOnDisconnect, Path: path, Doc: fields})
	return err
}
