// Package identity issues the anonymous stable identifier a client carries
// across sessions, the equivalent of an anonymous auth uid.
package identity

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const idFile = "identity"

// Anonymous returns the client's stable anonymous id, generating and
// persisting one under dir on first use.
func Anonymous(dir string) (string, error) {
	p := filepath.Join(dir, idFile)

	data, err := os.ReadFile(p)
	if err == nil {
		id := strings.TrimSpace(string(data))
		if _, parseErr := uuid.Parse(id); parseErr == nil {
			return id, nil
		}
		// Corrupt file: fall through and mint a fresh id.
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("read identity: %w", err)
	}

	id := uuid.NewString()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create identity directory: %w", err)
	}
	if err := os.WriteFile(p, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("persist identity: %w", err)
	}
	return id, nil
}
