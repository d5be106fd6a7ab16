// Package memory is an in-process relay.Store. It backs the relay server's
// shared state and the call/chat package tests; both participants of a call
// can share one instance inside a single process.
package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/aldisr/ngobrol/internal/relay"
)

// Store keeps documents and collections in maps. Watch handlers run
// synchronously on the mutating goroutine, outside the store lock, so a
// handler may freely call back into the Store.
type Store struct {
	mu          sync.Mutex
	docs        map[string]relay.Doc
	collections map[string][]relay.Entry
	docWatchers map[string]map[int64]*watcher[relay.Doc]
	colWatchers map[string]map[int64]*watcher[relay.Entry]
	nextWatch   int64
}

type watcher[T any] struct {
	fn     func(T)
	cancel atomic.Bool
}

func (w *watcher[T]) deliver(v T) {
	if !w.cancel.Load() {
		w.fn(v)
	}
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		docs:        make(map[string]relay.Doc),
		collections: make(map[string][]relay.Entry),
		docWatchers: make(map[string]map[int64]*watcher[relay.Doc]),
		colWatchers: make(map[string]map[int64]*watcher[relay.Entry]),
	}
}

// GetDoc implements relay.Store.
func (s *Store) GetDoc(_ context.Context, path string) (relay.Doc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[path]
	if !ok {
		return nil, relay.ErrNotFound
	}
	return cloneDoc(doc), nil
}

// SetDoc implements relay.Store. The write replaces the whole document.
func (s *Store) SetDoc(_ context.Context, path string, doc relay.Doc) error {
	s.mu.Lock()
	s.docs[path] = cloneDoc(doc)
	current := cloneDoc(doc)
	targets := s.docWatcherSnapshot(path)
	s.mu.Unlock()

	for _, w := range targets {
		w.deliver(current)
	}
	return nil
}

// MergeDoc implements relay.Store.
func (s *Store) MergeDoc(_ context.Context, path string, fields relay.Doc) error {
	s.mu.Lock()
	doc, ok := s.docs[path]
	if !ok {
		doc = relay.Doc{}
	}
	for k, v := range fields {
		doc[k] = cloneValue(v)
	}
	s.docs[path] = doc
	current := cloneDoc(doc)
	targets := s.docWatcherSnapshot(path)
	s.mu.Unlock()

	for _, w := range targets {
		w.deliver(current)
	}
	return nil
}

// DeleteDoc implements relay.Store. Watchers are not notified of deletion;
// the next write to the path reaches them. Matches the single-call-slot
// protocol, where a record is only ever deleted right before being rewritten.
func (s *Store) DeleteDoc(_ context.Context, path string) error {
	s.mu.Lock()
	delete(s.docs, path)
	s.mu.Unlock()
	return nil
}

// Add implements relay.Store.
func (s *Store) Add(_ context.Context, path string, doc relay.Doc) error {
	entry := relay.Entry{ID: uuid.NewString(), Doc: cloneDoc(doc)}

	s.mu.Lock()
	s.collections[path] = append(s.collections[path], entry)
	targets := s.colWatcherSnapshot(path)
	s.mu.Unlock()

	for _, w := range targets {
		w.deliver(cloneEntry(entry))
	}
	return nil
}

// List implements relay.Store.
func (s *Store) List(_ context.Context, path string) ([]relay.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]relay.Entry, 0, len(s.collections[path]))
	for _, e := range s.collections[path] {
		entries = append(entries, cloneEntry(e))
	}
	return entries, nil
}

// Clear implements relay.Store.
func (s *Store) Clear(_ context.Context, path string) error {
	s.mu.Lock()
	delete(s.collections, path)
	s.mu.Unlock()
	return nil
}

// WatchDoc implements relay.Store. The handler receives the current document
// synchronously before WatchDoc returns, if one exists.
func (s *Store) WatchDoc(_ context.Context, path string, fn func(relay.Doc)) (relay.CancelFunc, error) {
	w := &watcher[relay.Doc]{fn: fn}

	s.mu.Lock()
	id := s.nextWatch
	s.nextWatch++
	if s.docWatchers[path] == nil {
		s.docWatchers[path] = make(map[int64]*watcher[relay.Doc])
	}
	s.docWatchers[path][id] = w
	var initial relay.Doc
	if doc, ok := s.docs[path]; ok {
		initial = cloneDoc(doc)
	}
	s.mu.Unlock()

	if initial != nil {
		w.deliver(initial)
	}

	return func() {
		w.cancel.Store(true)
		s.mu.Lock()
		delete(s.docWatchers[path], id)
		s.mu.Unlock()
	}, nil
}

// WatchAdded implements relay.Store. Existing entries are delivered
// synchronously before WatchAdded returns, in insertion order.
func (s *Store) WatchAdded(_ context.Context, path string, fn func(relay.Entry)) (relay.CancelFunc, error) {
	w := &watcher[relay.Entry]{fn: fn}

	s.mu.Lock()
	id := s.nextWatch
	s.nextWatch++
	if s.colWatchers[path] == nil {
		s.colWatchers[path] = make(map[int64]*watcher[relay.Entry])
	}
	s.colWatchers[path][id] = w
	existing := make([]relay.Entry, 0, len(s.collections[path]))
	for _, e := range s.collections[path] {
		existing = append(existing, cloneEntry(e))
	}
	s.mu.Unlock()

	for _, entry := range existing {
		w.deliver(entry)
	}

	return func() {
		w.cancel.Store(true)
		s.mu.Lock()
		delete(s.colWatchers[path], id)
		s.mu.Unlock()
	}, nil
}

func (s *Store) docWatcherSnapshot(path string) []*watcher[relay.Doc] {
	targets := make([]*watcher[relay.Doc], 0, len(s.docWatchers[path]))
	for _, w := range s.docWatchers[path] {
		targets = append(targets, w)
	}
	return targets
}

func (s *Store) colWatcherSnapshot(path string) []*watcher[relay.Entry] {
	targets := make([]*watcher[relay.Entry], 0, len(s.colWatchers[path]))
	for _, w := range s.colWatchers[path] {
		targets = append(targets, w)
	}
	return targets
}

// cloneDoc deep-copies a document. Callers and watch handlers may mutate what
// they get back without corrupting store state, and nothing they keep is
// aliased by later writes.
func cloneDoc(doc relay.Doc) relay.Doc {
	out := make(relay.Doc, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case relay.Doc:
		return cloneDoc(t)
	case map[string]any:
		return cloneDoc(relay.Doc(t))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	}
	return v
}

func cloneEntry(e relay.Entry) relay.Entry {
	return relay.Entry{ID: e.ID, Doc: cloneDoc(e.Doc)}
}
