// Package auth resolves the current user identity.
//
// Maquette's collaborators scope every artifact operation by user id. The
// id is stable per machine user: it lives in identity.json under the state
// directory and is minted on first use. Creation is guarded by a file lock
// so concurrent invocations (two terminals, the TUI plus a CLI command)
// agree on a single identity instead of racing to mint two.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/maquette-dev/maquette/internal/log"
)

const (
	identityFile = "identity.json"
	lockFile     = "identity.lock"

	// lockRetryDelay is the poll interval while waiting for the lock.
	lockRetryDelay = 50 * time.Millisecond
)

// ErrNoIdentity indicates the identity file is missing or unreadable.
var ErrNoIdentity = errors.New("no identity")

// Identity is the persisted per-machine user identity.
type Identity struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Manager loads and mints identities in a state directory.
type Manager struct {
	dir    string
	logger log.Logger
}

// NewManager returns a manager over dir. The directory must exist.
func NewManager(dir string, logger log.Logger) *Manager {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Manager{dir: dir, logger: logger}
}

// CurrentUser returns the stored identity, minting one on first use.
func (m *Manager) CurrentUser(ctx context.Context) (Identity, error) {
	// Fast path: the file already exists and no lock is needed to read a
	// fully written identity.
	if id, err := m.read(); err == nil {
		return id, nil
	}

	lock := flock.New(filepath.Join(m.dir, lockFile))
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return Identity{}, fmt.Errorf("acquiring identity lock: %w", err)
	}
	if !locked {
		return Identity{}, errors.New("identity lock unavailable")
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			m.logger.Warn("releasing identity lock failed", "error", err)
		}
	}()

	// Re-check under the lock: another process may have minted meanwhile.
	if id, err := m.read(); err == nil {
		return id, nil
	}

	id := Identity{UserID: uuid.NewString(), CreatedAt: time.Now().UTC()}
	if err := m.write(id); err != nil {
		return Identity{}, err
	}
	m.logger.Info("minted new user identity", "user_id", id.UserID)
	return id, nil
}

func (m *Manager) read() (Identity, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, identityFile))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrNoIdentity, err)
	}
	var id Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return Identity{}, fmt.Errorf("%w: corrupt identity file: %v", ErrNoIdentity, err)
	}
	if id.UserID == "" {
		return Identity{}, fmt.Errorf("%w: identity file has no user_id", ErrNoIdentity)
	}
	return id, nil
}

func (m *Manager) write(id Identity) error {
	data, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	path := filepath.Join(m.dir, identityFile)

	// Write-then-rename so a reader never observes a half-written file.
	tmp, err := os.CreateTemp(m.dir, identityFile+".tmp")
	if err != nil {
		return fmt.Errorf("create identity temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write identity: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close identity temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("chmod identity file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("install identity file: %w", err)
	}
	return nil
}
