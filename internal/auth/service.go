package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/intelliparse/console/internal/intelliparse"
	"github.com/intelliparse/console/pkg/models"
)

// DashboardPath is where a successful login lands.
const DashboardPath = "/dashboard"

// InvalidCredentialsMessage is shown for every failed login.
const InvalidCredentialsMessage = "Invalid email or password"

// Authenticator exchanges credentials for a session.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (models.Session, error)
}

// SessionWriter is the subset of session.Provider the login flow needs.
type SessionWriter interface {
	Set(ctx context.Context, s models.Session) error
	Clear(ctx context.Context) error
}

// Service implements sign-in and sign-out.
type Service struct {
	client   Authenticator
	sessions SessionWriter
	signOut  []func()
}

// NewService creates a new Service.
func NewService(client Authenticator, sessions SessionWriter) *Service {
	return &Service{client: client, sessions: sessions}
}

// Login signs in and caches the session. Any rejection by the server comes
// back as intelliparse.ErrInvalidCredentials and leaves the cached session
// untouched.
func (s *Service) Login(ctx context.Context, email, password string) (models.Session, error) {
	sess, err := s.client.Login(ctx, email, password)
	if err != nil {
		if errors.Is(err, intelliparse.ErrInvalidCredentials) {
			slog.Info("login rejected", "email", email)
		}
		return models.Session{}, err
	}

	if err := s.sessions.Set(ctx, sess); err != nil {
		return models.Session{}, fmt.Errorf("storing session: %w", err)
	}
	slog.Info("signed in", "identity", sess.Identity)
	return sess, nil
}

// OnSignOut registers fn to run on every logout. Register hooks before
// serving requests.
func (s *Service) OnSignOut(fn func()) {
	s.signOut = append(s.signOut, fn)
}

// Logout drops the cached session and runs the sign-out hooks. The hooks
// run even when clearing the session fails.
func (s *Service) Logout(ctx context.Context) error {
	for _, fn := range s.signOut {
		fn()
	}
	if err := s.sessions.Clear(ctx); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

// LoginMessage returns the text a login form shows for err.
func LoginMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, intelliparse.ErrInvalidCredentials):
		return InvalidCredentialsMessage
	case errors.Is(err, intelliparse.ErrTransport):
		return "The server could not be reached, try again."
	default:
		return "Sign in failed, try again."
	}
}
