// Package config holds the CLI configuration types.
package config

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// Config stores all parameters gathered from flags or the interactive
// prompts before the client joins a room.
type Config struct {
	RelayURL string // base URL of the relay server, e.g. "http://localhost:8080"
	Room     string // room code, e.g. "abcd-1234"
	Name     string // display name shown to other members
	DataDir  string // directory for the persisted anonymous identity
}

// WSURL derives the relay's WebSocket endpoint from RelayURL.
func (c Config) WSURL() string {
	u := c.RelayURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return strings.TrimSuffix(u, "/") + "/ws"
}

// RandomRoom generates a shareable room code of the form "xxxx-xxxx".
func RandomRoom() string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	code := make([]byte, 9)
	for i := range code {
		if i == 4 {
			code[i] = '-'
			continue
		}
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		code[i] = alphabet[n.Int64()]
	}
	return string(code)
}
