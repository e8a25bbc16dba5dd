package social

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// DefaultStateTTL bounds how long a user may take at the provider
const DefaultStateTTL = 10 * time.Minute

// StateStore issues opaque OAuth state tokens and resolves them exactly once.
type StateStore interface {
	Issue(state *OAuthState) (string, error)
	Consume(token string) (*OAuthState, error)
}

// OAuthState is kept server side for the duration of the provider round trip.
type OAuthState struct {
	Provider     string
	CodeVerifier string
	RedirectURL  string
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

// CacheStateStore keeps states in an in process go-cache.
type CacheStateStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	states *cache.Cache
	now    func() time.Time
}

// NewCacheStateStore creates a store whose states expire after ttl
func NewCacheStateStore(ttl time.Duration) *CacheStateStore {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &CacheStateStore{
		ttl: ttl,
		// entries outlive their ttl so Consume can tell expired from unknown
		states: cache.New(2*ttl, ttl),
		now:    time.Now,
	}
}

// WithClock replaces the clock used to stamp and check states
func (s *CacheStateStore) WithClock(now func() time.Time) *CacheStateStore {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *CacheStateStore) Issue(state *OAuthState) (string, error) {
	if state == nil {
		return "", ErrInvalidState
	}

	token, err := randomToken(32)
	if err != nil {
		return "", err
	}

	now := s.now()
	stored := *state
	stored.IssuedAt = now
	stored.ExpiresAt = now.Add(s.ttl)

	s.states.SetDefault(token, &stored)
	return token, nil
}

// Consume resolves token and deletes it, so replays fail
func (s *CacheStateStore) Consume(token string) (*OAuthState, error) {
	if token == "" {
		return nil, ErrInvalidState
	}

	s.mu.Lock()
	raw, ok := s.states.Get(token)
	if ok {
		s.states.Delete(token)
	}
	s.mu.Unlock()

	if !ok {
		return nil, ErrInvalidState
	}

	state := raw.(*OAuthState)
	if !s.now().Before(state.ExpiresAt) {
		return nil, ErrStateExpired
	}
	return state, nil
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func generateCodeVerifier() (string, error) {
	return randomToken(32)
}

func computeCodeChallenge(verifier string) string {
	h := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(h[:])
}
