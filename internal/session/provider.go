// Package session holds the console's cached identity of the signed-in user.
//
// There is exactly one Provider per process. It is built once at startup,
// loaded from a persisted Slot, and handed to every component that needs
// identity. Readers never block: the current session is swapped atomically
// on every write, and writes go through Set and Clear only.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/intelliparse/console/pkg/models"
)

// Provider is the process-wide session cache.
type Provider struct {
	slot    Slot
	current atomic.Pointer[models.Session]
}

// NewProvider creates a Provider and loads any persisted session from slot.
// Unreadable or corrupt slot content is treated as signed out.
func NewProvider(ctx context.Context, slot Slot) (*Provider, error) {
	p := &Provider{slot: slot}

	data, found, err := slot.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if !found {
		return p, nil
	}

	var s models.Session
	if err := json.Unmarshal(data, &s); err != nil || !s.Valid() {
		slog.Warn("discarding unreadable cached session", "error", err)
		if err := slot.Delete(ctx); err != nil {
			slog.Warn("failed to delete unreadable session", "error", err)
		}
		return p, nil
	}

	p.current.Store(&s)
	return p, nil
}

// Get returns a copy of the cached session, or false when signed out.
func (p *Provider) Get() (models.Session, bool) {
	s := p.current.Load()
	if s == nil {
		return models.Session{}, false
	}
	return *s, true
}

// Token returns the cached credential, or "" when signed out.
func (p *Provider) Token() string {
	if s := p.current.Load(); s != nil {
		return s.CredentialToken
	}
	return ""
}

// Set persists s and makes it the current session.
func (p *Provider) Set(ctx context.Context, s models.Session) error {
	if !s.Valid() {
		return fmt.Errorf("session for %q has no credential", s.Identity)
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := p.slot.Save(ctx, data); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	p.current.Store(&s)
	return nil
}

// Clear signs out locally. The in-memory session is dropped even if the
// persisted slot cannot be removed, so a rejected credential is never reused.
func (p *Provider) Clear(ctx context.Context) error {
	p.current.Store(nil)
	if err := p.slot.Delete(ctx); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}
