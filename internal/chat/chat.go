// Package chat is the room message log: an append-only, ordered sequence of
// text/image/file/voice events per room, stored and watched through the
// relay. Media messages carry a blob URL produced by the blob store.
package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aldisr/ngobrol/internal/relay"
	"github.com/aldisr/ngobrol/internal/util"
)

// Type discriminates message payloads.
type Type string

const (
	TypeText  Type = "text"
	TypeImage Type = "image"
	TypeFile  Type = "file"
	TypeVoice Type = "voice"
)

// Message is one chat event. Only the fields matching Type are set.
type Message struct {
	Type      Type   `json:"type"`
	Name      string `json:"name"`
	UID       string `json:"uid"`
	CreatedAt int64  `json:"createdAt"`

	Text     string `json:"text,omitempty"`     // text
	URL      string `json:"url,omitempty"`      // image, file, voice
	Caption  string `json:"caption,omitempty"`  // image
	FileName string `json:"fileName,omitempty"` // file
	SizeText string `json:"sizeText,omitempty"` // file, human-readable

	id string
}

// ID is the relay entry id, unique per message.
func (m Message) ID() string { return m.id }

// Log sends and watches messages of one room on behalf of one user.
type Log struct {
	store relay.Store
	path  string
	name  string
	uid   string
}

// NewLog creates a Log for the room, stamping outgoing messages with the
// user's display name and stable uid.
func NewLog(store relay.Store, roomID, name, uid string) *Log {
	return &Log{
		store: store,
		path:  "rooms/" + roomID + "/messages",
		name:  name,
		uid:   uid,
	}
}

// SendText appends a text message. Empty text is rejected.
func (l *Log) SendText(ctx context.Context, text string) error {
	if text == "" {
		return errors.New("message text cannot be empty")
	}
	return l.send(ctx, Message{Type: TypeText, Text: text})
}

// SendImage appends an image message pointing at an uploaded blob.
func (l *Log) SendImage(ctx context.Context, url, caption string) error {
	return l.send(ctx, Message{Type: TypeImage, URL: url, Caption: caption})
}

// SendFile appends a file message with its display name and size.
func (l *Log) SendFile(ctx context.Context, url, fileName string, size int64) error {
	return l.send(ctx, Message{
		Type:     TypeFile,
		URL:      url,
		FileName: fileName,
		SizeText: util.FormatBytes(size),
	})
}

// SendVoice appends a voice-note message pointing at an uploaded blob.
func (l *Log) SendVoice(ctx context.Context, url string) error {
	return l.send(ctx, Message{Type: TypeVoice, URL: url})
}

func (l *Log) send(ctx context.Context, m Message) error {
	m.Name = l.name
	m.UID = l.uid
	m.CreatedAt = time.Now().UnixMilli()
	doc, err := relay.Encode(m)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := l.store.Add(ctx, l.path, doc); err != nil {
		return err
	}
	util.Stats.AddMessage()
	return nil
}

// Watch subscribes to the room's messages. fn receives the full log, oldest
// first, on every addition; the initial delivery carries the history that
// existed at subscription time. Malformed entries are skipped.
func (l *Log) Watch(ctx context.Context, fn func([]Message)) (relay.CancelFunc, error) {
	var mu sync.Mutex
	var history []Message

	return l.store.WatchAdded(ctx, l.path, func(entry relay.Entry) {
		var m Message
		if err := relay.Decode(entry.Doc, &m); err != nil {
			util.LogWarning("malformed chat entry %s: %v", entry.ID, err)
			return
		}
		m.id = entry.ID

		mu.Lock()
		history = append(history, m)
		sort.SliceStable(history, func(i, j int) bool {
			return history[i].CreatedAt < history[j].CreatedAt
		})
		snapshot := make([]Message, len(history))
		copy(snapshot, history)
		mu.Unlock()

		fn(snapshot)
	})
}
