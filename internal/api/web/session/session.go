package session

import (
	"crypto/sha256"
	"encoding/hex"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"time"
)

// Session represents a browser session at the inbox portal.
// A session is looked up by the hash of its token; the raw token only ever lives in the browser's cookie jar.
type Session struct {
	ID          uuid.UUID
	TokenHash   string
	OAuth2Token *oauth2.Token
	Subject     string
	DisplayName string
	Expires     int64
}

// IsExpired returns whether the session lifetime has passed at the given point in time
func (ses *Session) IsExpired(now time.Time) bool {
	return ses.Expires <= now.Unix()
}

// HashToken returns the hex encoded SHA256 hash of a raw session token
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
