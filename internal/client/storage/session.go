package storage

import (
	"context"
	"time"
)

// SessionStorage хранит сессию CLI между запусками.
type SessionStorage interface {
	// SaveSession replaces the stored session.
	SaveSession(ctx context.Context, session *Session) error

	// GetSession returns ErrSessionNotFound if nobody is logged in.
	GetSession(ctx context.Context) (*Session, error)

	// DeleteSession removes the stored session (logout).
	// Returns ErrSessionNotFound if there was none.
	DeleteSession(ctx context.Context) error
}

// Session is what login remembers: where to connect, as whom, and the
// default space and environment for later commands.
type Session struct {
	Server      string `json:"server"`
	UserID      string `json:"user_id"`
	Name        string `json:"name,omitempty"`
	AccessToken string `json:"access_token"`
	Space       string `json:"space,omitempty"`
	Environment string `json:"environment,omitempty"`
	// ExpiresAt is a unix timestamp, 0 when the token has no expiry.
	ExpiresAt int64 `json:"expires_at"`
}

// Expired reports whether the access token is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt > 0 && !now.Before(time.Unix(s.ExpiresAt, 0))
}
