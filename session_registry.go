package auth

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
)

// DefaultRegistryShards is the shard count used when none is configured
const DefaultRegistryShards = 32

// ErrDuplicateToken is returned when a token is already registered
var ErrDuplicateToken = errors.New("token already registered", errors.CategoryConflict).
	WithTextCode("TOKEN_DUPLICATE").
	WithCode(errors.CodeConflict)

// SessionRegistry is the in-process store of active sessions.
// Operations on one account are linearized by that account's shard lock;
// accounts on different shards never contend. Lock order is always
// account shard first, token shard second.
type SessionRegistry struct {
	accounts []*accountShard
	tokens   []*tokenShard
	now      func() time.Time
	logger   Logger
}

type accountShard struct {
	mu       sync.Mutex
	sessions map[int64][]*Session
}

type tokenShard struct {
	mu     sync.Mutex
	owners map[string]int64
}

// RegistryOption configures a SessionRegistry
type RegistryOption func(*SessionRegistry)

// WithRegistryClock overrides the time source
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *SessionRegistry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithRegistryLogger sets the logger
func WithRegistryLogger(l Logger) RegistryOption {
	return func(r *SessionRegistry) {
		r.logger = normalizeLogger(l)
	}
}

// NewSessionRegistry creates an empty registry with shards partitions
func NewSessionRegistry(shards int, opts ...RegistryOption) *SessionRegistry {
	if shards <= 0 {
		shards = DefaultRegistryShards
	}

	r := &SessionRegistry{
		accounts: make([]*accountShard, shards),
		tokens:   make([]*tokenShard, shards),
		now:      time.Now,
		logger:   defLogger{},
	}
	for i := 0; i < shards; i++ {
		r.accounts[i] = &accountShard{sessions: map[int64][]*Session{}}
		r.tokens[i] = &tokenShard{owners: map[string]int64{}}
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *SessionRegistry) accountShard(accountID int64) *accountShard {
	return r.accounts[uint64(accountID)%uint64(len(r.accounts))]
}

func (r *SessionRegistry) tokenShard(token string) *tokenShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return r.tokens[h.Sum32()%uint32(len(r.tokens))]
}

// Create appends a new session for accountID. Sessions per account are unbounded.
func (r *SessionRegistry) Create(accountID int64, token string, ttl time.Duration, meta SessionMetadata) (Session, error) {
	if token == "" {
		return Session{}, ErrTokenMalformed
	}
	if ttl <= 0 {
		return Session{}, errors.New("session ttl must be positive", errors.CategoryBadInput)
	}

	shard := r.accountShard(accountID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	return r.insertLocked(shard, accountID, token, ttl, meta)
}

func (r *SessionRegistry) insertLocked(shard *accountShard, accountID int64, token string, ttl time.Duration, meta SessionMetadata) (Session, error) {
	ts := r.tokenShard(token)
	ts.mu.Lock()
	if _, exists := ts.owners[token]; exists {
		ts.mu.Unlock()
		return Session{}, ErrDuplicateToken
	}
	ts.owners[token] = accountID
	ts.mu.Unlock()

	now := r.now()
	s := &Session{
		ID:        SessionID(token),
		AccountID: accountID,
		Token:     token,
		CreatedAt: now,
		LastUsed:  now,
		ExpiresAt: now.Add(ttl),
		UserAgent: meta.UserAgent,
		IP:        meta.IP,
		Geo:       meta.Geo,
	}
	shard.sessions[accountID] = append(shard.sessions[accountID], s)
	return *s, nil
}

// Validate returns the session for token and touches its last used time.
// Unknown, revoked and expired tokens yield ErrTokenUnregistered.
func (r *SessionRegistry) Validate(accountID int64, token string) (Session, error) {
	shard := r.accountShard(accountID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	now := r.now()
	for _, s := range shard.sessions[accountID] {
		if s.Token != token {
			continue
		}
		if s.Expired(now) {
			r.removeLocked(shard, accountID, func(c *Session) bool { return c.Token == token })
			return Session{}, ErrTokenUnregistered
		}
		s.LastUsed = now
		return *s, nil
	}
	return Session{}, ErrTokenUnregistered
}

// ListActive prunes expired sessions and returns the rest in creation order
func (r *SessionRegistry) ListActive(accountID int64) []Session {
	shard := r.accountShard(accountID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	r.pruneLocked(shard, accountID, r.now())
	return snapshot(shard.sessions[accountID])
}

// Prune removes expired sessions of accountID and returns how many were dropped
func (r *SessionRegistry) Prune(accountID int64) int {
	shard := r.accountShard(accountID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	return r.pruneLocked(shard, accountID, r.now())
}

// Revoke removes token. Revoking an absent token is a no-op.
func (r *SessionRegistry) Revoke(accountID int64, token string) bool {
	shard := r.accountShard(accountID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	return r.removeLocked(shard, accountID, func(s *Session) bool { return s.Token == token }) > 0
}

// RevokeByID removes the session whose derived id is sessionID
func (r *SessionRegistry) RevokeByID(accountID int64, sessionID string) bool {
	shard := r.accountShard(accountID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	return r.removeLocked(shard, accountID, func(s *Session) bool { return s.ID == sessionID }) > 0
}

// RevokeAllExcept keeps only keepToken. It returns the remaining sessions and
// how many were removed, both observed under the same account lock.
func (r *SessionRegistry) RevokeAllExcept(accountID int64, keepToken string) ([]Session, int) {
	shard := r.accountShard(accountID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	removed := r.removeLocked(shard, accountID, func(s *Session) bool { return s.Token != keepToken })
	return snapshot(shard.sessions[accountID]), removed
}

// RevokeAll drops every session of accountID and returns how many were removed
func (r *SessionRegistry) RevokeAll(accountID int64) int {
	shard := r.accountShard(accountID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	return r.removeLocked(shard, accountID, func(*Session) bool { return true })
}

// Replace swaps oldToken for newToken under a single account lock, so no
// observer sees both or neither. It fails with ErrTokenUnregistered when
// oldToken is not active.
func (r *SessionRegistry) Replace(accountID int64, oldToken, newToken string, ttl time.Duration, meta SessionMetadata) (Session, error) {
	if newToken == "" {
		return Session{}, ErrTokenMalformed
	}
	if ttl <= 0 {
		return Session{}, errors.New("session ttl must be positive", errors.CategoryBadInput)
	}

	shard := r.accountShard(accountID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	now := r.now()
	var current *Session
	for _, s := range shard.sessions[accountID] {
		if s.Token == oldToken && !s.Expired(now) {
			current = s
			break
		}
	}
	if current == nil {
		return Session{}, ErrTokenUnregistered
	}

	if meta.UserAgent == "" {
		meta.UserAgent = current.UserAgent
	}
	if meta.IP == "" {
		meta.IP = current.IP
		if meta.Geo == nil {
			meta.Geo = current.Geo
		}
	}

	created, err := r.insertLocked(shard, accountID, newToken, ttl, meta)
	if err != nil {
		return Session{}, err
	}
	r.removeLocked(shard, accountID, func(s *Session) bool { return s.Token == oldToken })
	return created, nil
}

// Owner returns the account that registered token
func (r *SessionRegistry) Owner(token string) (int64, bool) {
	ts := r.tokenShard(token)
	ts.mu.Lock()
	defer ts.mu.Unlock()

	id, ok := ts.owners[token]
	return id, ok
}

// Sweep prunes expired sessions of every account, one shard at a time.
// Nothing in the package calls it on a timer.
func (r *SessionRegistry) Sweep() int {
	removed := 0
	for _, shard := range r.accounts {
		shard.mu.Lock()
		now := r.now()
		for accountID := range shard.sessions {
			removed += r.pruneLocked(shard, accountID, now)
		}
		shard.mu.Unlock()
	}
	if removed > 0 {
		r.logger.Debug("session registry sweep", "removed", removed)
	}
	return removed
}

// Count returns the number of registered sessions, expired ones included
func (r *SessionRegistry) Count() int {
	total := 0
	for _, shard := range r.accounts {
		shard.mu.Lock()
		for _, list := range shard.sessions {
			total += len(list)
		}
		shard.mu.Unlock()
	}
	return total
}

func (r *SessionRegistry) pruneLocked(shard *accountShard, accountID int64, now time.Time) int {
	return r.removeLocked(shard, accountID, func(s *Session) bool { return s.Expired(now) })
}

// removeLocked drops the sessions matching drop, preserving the order of the rest
func (r *SessionRegistry) removeLocked(shard *accountShard, accountID int64, drop func(*Session) bool) int {
	list := shard.sessions[accountID]
	if len(list) == 0 {
		return 0
	}

	kept := list[:0]
	var dropped []string
	for _, s := range list {
		if drop(s) {
			dropped = append(dropped, s.Token)
			continue
		}
		kept = append(kept, s)
	}
	for i := len(kept); i < len(list); i++ {
		list[i] = nil
	}

	if len(kept) == 0 {
		delete(shard.sessions, accountID)
	} else {
		shard.sessions[accountID] = kept
	}

	for _, token := range dropped {
		ts := r.tokenShard(token)
		ts.mu.Lock()
		delete(ts.owners, token)
		ts.mu.Unlock()
	}
	return len(dropped)
}

func snapshot(list []*Session) []Session {
	out := make([]Session, 0, len(list))
	for _, s := range list {
		out = append(out, *s)
	}
	return out
}
