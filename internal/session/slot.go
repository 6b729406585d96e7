package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/intelliparse/console/internal/cache"
)

// Slot is a persisted key-value slot holding one serialized session.
type Slot interface {
	Load(ctx context.Context) ([]byte, bool, error)
	Save(ctx context.Context, data []byte) error
	Delete(ctx context.Context) error
}

// FileSlot keeps the session in a single file so it survives a restart
// of the console under the same user profile.
type FileSlot struct {
	path string
}

// NewFileSlot creates a FileSlot at path. The parent directory is created on first save.
func NewFileSlot(path string) *FileSlot {
	return &FileSlot{path: path}
}

// DefaultFilePath is the session file location inside the user's config directory.
func DefaultFilePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating user config dir: %w", err)
	}
	return filepath.Join(dir, "intelliparse", "session.json"), nil
}

func (s *FileSlot) Load(_ context.Context) ([]byte, bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading session file: %w", err)
	}
	return data, true, nil
}

// Save replaces the file atomically: readers see either the old or the new session.
func (s *FileSlot) Save(_ context.Context, data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating session dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("creating temp session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing session file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing session file: %w", err)
	}
	return nil
}

func (s *FileSlot) Delete(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing session file: %w", err)
	}
	return nil
}

// CacheSlot keeps the session under a fixed key in a Cache, for consoles
// that run without a local profile directory.
type CacheSlot struct {
	cache cache.Cache
}

func NewCacheSlot(c cache.Cache) *CacheSlot {
	return &CacheSlot{cache: c}
}

func (s *CacheSlot) Load(ctx context.Context) ([]byte, bool, error) {
	return s.cache.Get(ctx, cache.SessionKey())
}

// Save stores the session without expiry; the server decides when it is stale.
func (s *CacheSlot) Save(ctx context.Context, data []byte) error {
	return s.cache.Set(ctx, cache.SessionKey(), data, 0)
}

func (s *CacheSlot) Delete(ctx context.Context) error {
	return s.cache.Delete(ctx, cache.SessionKey())
}

var (
	_ Slot = (*FileSlot)(nil)
	_ Slot = (*CacheSlot)(nil)
)
