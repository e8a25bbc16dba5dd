package auth

import (
	"time"

	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// maskedPrefixLen is how much of a bearer token responses may show
const maskedPrefixLen = 10

// SessionMetadata is the optional device and network context of a session
type SessionMetadata struct {
	UserAgent string
	IP        string
	Geo       *GeoLocation
}

// Provenance returns the network part of the metadata
func (m SessionMetadata) Provenance() Provenance {
	return Provenance{IP: m.IP, Geo: m.Geo}
}

// Session is one active bearer credential for one account on one device
type Session struct {
	ID        string
	AccountID int64
	Token     string
	CreatedAt time.Time
	LastUsed  time.Time
	ExpiresAt time.Time
	UserAgent string
	IP        string
	Geo       *GeoLocation
}

// Expired reports whether the session is no longer valid at now.
// A session expiring exactly at now is expired.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionView is the client facing representation of a session
type SessionView struct {
	ID        string       `json:"id"`
	Token     string       `json:"token"`
	CreatedAt time.Time    `json:"created_at"`
	LastUsed  time.Time    `json:"last_used"`
	ExpiresAt time.Time    `json:"expires_at"`
	UserAgent string       `json:"user_agent,omitempty"`
	IP        string       `json:"ip_address,omitempty"`
	Geo       *GeoLocation `json:"geo_location,omitempty"`
	Current   bool         `json:"is_current"`
}

// View masks the token and flags the session matching currentToken
func (s Session) View(currentToken string) SessionView {
	return SessionView{
		ID:        s.ID,
		Token:     MaskToken(s.Token),
		CreatedAt: s.CreatedAt,
		LastUsed:  s.LastUsed,
		ExpiresAt: s.ExpiresAt,
		UserAgent: s.UserAgent,
		IP:        s.IP,
		Geo:       s.Geo,
		Current:   currentToken != "" && s.Token == currentToken,
	}
}

// SessionViews masks a list of sessions
func SessionViews(sessions []Session, currentToken string) []SessionView {
	out := make([]SessionView, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.View(currentToken))
	}
	return out
}

// MaskToken keeps a short prefix of token
func MaskToken(token string) string {
	if len(token) <= maskedPrefixLen {
		return "..."
	}
	return token[:maskedPrefixLen] + "..."
}

// SessionID derives a stable, non reversible identifier from a token
func SessionID(token string) string {
	id, err := hashid.NewUUID(token)
	if err != nil {
		return uuid.NewSHA1(uuid.NameSpaceOID, []byte(token)).String()
	}
	return id.String()
}
