// Package relay defines the signaling relay abstraction: a small synchronized
// document store with push notifications. The call core and the chat/presence
// layers talk only to the Store interface; concrete backends live in the
// memory and wsrelay subpackages.
package relay

import (
	"context"
	"errors"
)

// ErrNotFound is returned by GetDoc when no document exists at the path.
var ErrNotFound = errors.New("relay: document not found")

// Doc is a schemaless document, field name → JSON-compatible value.
type Doc map[string]any

// Entry is one element of an append-only collection.
type Entry struct {
	ID  string
	Doc Doc
}

// CancelFunc stops a subscription. Safe to call more than once.
type CancelFunc func()

// Store is the external relay collaborator. Paths are slash-separated, e.g.
// "rooms/abcd/calls/active" for a document and
// "rooms/abcd/calls/active/offerCandidates" for a collection.
//
// Subscriptions deliver asynchronously until cancelled. WatchDoc invokes the
// handler with the full current document on every change, including the
// initial value if one exists. WatchAdded invokes the handler once per entry,
// existing entries first, then each new addition; entries are never modified
// or removed individually, so additions are the only event kind.
type Store interface {
	// GetDoc reads the document at path. Returns ErrNotFound if absent.
	GetDoc(ctx context.Context, path string) (Doc, error)

	// SetDoc writes the document at path, replacing any existing content.
	SetDoc(ctx context.Context, path string, doc Doc) error

	// MergeDoc sets the given fields on the document at path, leaving other
	// fields untouched. Creates the document if absent.
	MergeDoc(ctx context.Context, path string, fields Doc) error

	// DeleteDoc removes the document at path. Absent documents are a no-op.
	DeleteDoc(ctx context.Context, path string) error

	// Add appends a new entry to the collection at path.
	Add(ctx context.Context, path string, doc Doc) error

	// List returns all entries of the collection at path in insertion order.
	List(ctx context.Context, path string) ([]Entry, error)

	// Clear deletes every entry of the collection at path.
	Clear(ctx context.Context, path string) error

	// WatchDoc subscribes to the document at path.
	WatchDoc(ctx context.Context, path string, fn func(Doc)) (CancelFunc, error)

	// WatchAdded subscribes to additions on the collection at path.
	WatchAdded(ctx context.Context, path string, fn func(Entry)) (CancelFunc, error)
}

// DisconnectNotifier is implemented by backends that can apply a merge on the
// server side when the client's connection drops, firebase-onDisconnect
// style. Backends without a connection (in-process stores) don't implement
// it; callers must treat registration as best-effort.
type DisconnectNotifier interface {
	// OnDisconnect registers fields to be merged into the document at path
	// when the connection to the relay is lost or closed.
	OnDisconnect(ctx context.Context, path string, fields Doc) error
}
