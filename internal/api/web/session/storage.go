package session

import (
	"context"
	"golang.org/x/oauth2"
)

// TokenLength is the length of raw session tokens handed out to browsers
const TokenLength = 64

// Create is used to create a new session
type Create struct {
	OAuth2Token *oauth2.Token
	Subject     string
	DisplayName string
	Expires     int64
}

// Storage defines the session storage API
type Storage interface {
	// GetByRawToken retrieves a session by its raw (prior hashing) token.
	// Unknown and expired sessions both result in a nil session.
	GetByRawToken(ctx context.Context, rawToken string) (*Session, error)

	// Create creates a new session and returns its raw token
	Create(ctx context.Context, create *Create) (*Session, string, error)

	// TerminateByRawToken terminates the session identified by the given raw token
	TerminateByRawToken(ctx context.Context, rawToken string) error

	// TerminateExpired terminates all sessions that are expired
	TerminateExpired(ctx context.Context) (int, error)
}
