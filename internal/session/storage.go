package session

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// State is the persisted credential record.
type State struct {
	Token     string    `toml:"token"`
	Cookies   []Cookie  `toml:"cookies"`
	UpdatedAt time.Time `toml:"updated_at"`
}

// Cookie is a persisted API cookie, typically the long-lived refresh credential.
// ExpiresAt is in Unix seconds; zero means the cookie does not expire.
type Cookie struct {
	Name      string `toml:"name"`
	Value     string `toml:"value"`
	Path      string `toml:"path,omitempty"`
	Secure    bool   `toml:"secure,omitempty"`
	ExpiresAt int64  `toml:"expires_at,omitempty"`
}

// Expired reports whether the cookie has expired at now.
func (c Cookie) Expired(now time.Time) bool {
	return c.ExpiresAt != 0 && now.Unix() >= c.ExpiresAt
}

// Storage persists session state outside the process.
type Storage interface {
	Load() (State, error)
	Save(State) error
	Clear() error
}

// FileStorage keeps the session in a TOML file readable only by the owner.
type FileStorage struct {
	Path string
}

// Load reads the session file. A missing or unreadable-as-TOML file yields an
// empty state so a corrupt session only forces a new login.
func (f FileStorage) Load() (State, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return State{}, nil
		}
		return State{}, fmt.Errorf("open session: %w", err)
	}
	defer func() { _ = file.Close() }()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return State{}, fmt.Errorf("read session: %w", err)
	}

	var st State
	if err := toml.Unmarshal(bytes, &st); err != nil {
		return State{}, nil
	}
	return st, nil
}

// Save writes the session file, creating its directory as needed.
func (f FileStorage) Save(st State) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	bytes, err := toml.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := os.WriteFile(f.Path, bytes, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// Clear removes the session file.
func (f FileStorage) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// MemoryStorage keeps the session for the lifetime of the process only.
type MemoryStorage struct {
	mu    sync.Mutex
	state State
}

func (m *MemoryStorage) Load() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneState(m.state), nil
}

func (m *MemoryStorage) Save(st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = cloneState(st)
	return nil
}

func (m *MemoryStorage) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = State{}
	return nil
}

func cloneState(st State) State {
	if len(st.Cookies) > 0 {
		st.Cookies = append([]Cookie(nil), st.Cookies...)
	}
	return st
}
