package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/intelliparse/console/internal/intelliparse"
	"github.com/intelliparse/console/pkg/models"
)

// LoginPath is where a rejected visitor is sent.
const LoginPath = "/login"

// State is the outcome of an identity check.
type State string

const (
	StateLoading     State = "loading"
	StateAuthorized  State = "authorized"
	StateRedirecting State = "redirecting"
)

// Decision is what a protected view should do.
type Decision struct {
	State      State
	Profile    models.Profile
	RedirectTo string
}

// IdentityChecker asks the server who the current credential belongs to.
type IdentityChecker interface {
	Me(ctx context.Context) (models.Profile, error)
}

// SessionStore is the subset of session.Provider the guard needs.
type SessionStore interface {
	Get() (models.Session, bool)
	Clear(ctx context.Context) error
}

// Guard runs the authoritative identity check for protected views. A cached
// session is never trusted on its own: the server decides.
type Guard struct {
	checker  IdentityChecker
	sessions SessionStore
	signOut  []func()
}

// NewGuard creates a new Guard.
func NewGuard(checker IdentityChecker, sessions SessionStore) *Guard {
	return &Guard{checker: checker, sessions: sessions}
}

// OnSignOut registers fn to run whenever the server rejects the cached
// session. Register hooks before serving requests.
func (g *Guard) OnSignOut(fn func()) {
	g.signOut = append(g.signOut, fn)
}

// Check calls the server's identity endpoint. A rejection clears the cached
// session and yields StateRedirecting. Any other failure leaves the view in
// StateLoading and returns the error so it can offer a retry.
func (g *Guard) Check(ctx context.Context) (Decision, error) {
	profile, err := g.checker.Me(ctx)
	switch {
	case err == nil:
		return Decision{State: StateAuthorized, Profile: profile}, nil
	case errors.Is(err, intelliparse.ErrUnauthorized):
		if _, ok := g.sessions.Get(); ok {
			slog.Info("server rejected cached session, signing out")
		}
		if clearErr := g.sessions.Clear(ctx); clearErr != nil {
			slog.Warn("failed to clear rejected session", "error", clearErr)
		}
		for _, fn := range g.signOut {
			fn()
		}
		return Decision{State: StateRedirecting, RedirectTo: LoginPath}, nil
	default:
		return Decision{State: StateLoading}, fmt.Errorf("checking identity: %w", err)
	}
}

// Protect runs fetch only once the identity check authorizes the view, so a
// redirected visitor never loads account data.
func (g *Guard) Protect(ctx context.Context, fetch func(context.Context, models.Profile) error) (Decision, error) {
	d, err := g.Check(ctx)
	if err != nil || d.State != StateAuthorized {
		return d, err
	}
	if fetch == nil {
		return d, nil
	}
	if err := fetch(ctx, d.Profile); err != nil {
		return d, err
	}
	return d, nil
}
