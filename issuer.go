package auth

import (
	"time"

	"github.com/goliatone/go-errors"
)

// DefaultTokenTTL is the validity window of a bearer credential
const DefaultTokenTTL = 24 * time.Hour

// IssuedCredential is the result of a successful issue or refresh
type IssuedCredential struct {
	Token     string
	ExpiresAt time.Time
	Session   Session
	Sessions  []Session
}

// CredentialIssuer mints bearer credentials and registers their sessions
type CredentialIssuer struct {
	tokens   *TokenService
	registry *SessionRegistry
	metrics  *Metrics
	logger   Logger
}

// NewCredentialIssuer wires the token service to the registry
func NewCredentialIssuer(tokens *TokenService, registry *SessionRegistry) *CredentialIssuer {
	return &CredentialIssuer{
		tokens:   tokens,
		registry: registry,
		logger:   defLogger{},
	}
}

func (i *CredentialIssuer) WithLogger(l Logger) *CredentialIssuer {
	i.logger = normalizeLogger(l)
	return i
}

func (i *CredentialIssuer) WithMetrics(m *Metrics) *CredentialIssuer {
	i.metrics = m
	return i
}

// Issue mints a token for account, registers the session and returns the
// account's full active session list.
func (i *CredentialIssuer) Issue(account *Account, meta SessionMetadata) (*IssuedCredential, error) {
	if account == nil || account.ID == 0 {
		return nil, ErrAccountNotFound
	}

	token, claims, err := i.tokens.Generate(account.ID, account.RoleID)
	if err != nil {
		return nil, err
	}

	session, err := i.registry.Create(account.ID, token, claims.Expires().Sub(claims.Issued()), meta)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to register session")
	}
	i.metrics.sessionIssued()

	i.logger.Debug("credential issued", "account_id", account.ID, "token", MaskToken(token))

	return &IssuedCredential{
		Token:     token,
		ExpiresAt: claims.Expires(),
		Session:   session,
		Sessions:  i.registry.ListActive(account.ID),
	}, nil
}

// Refresh revokes oldToken and issues a replacement atomically with
// respect to the account's session collection.
func (i *CredentialIssuer) Refresh(account *Account, oldToken string, meta SessionMetadata) (*IssuedCredential, error) {
	if account == nil || account.ID == 0 {
		return nil, ErrAccountNotFound
	}

	token, claims, err := i.tokens.Generate(account.ID, account.RoleID)
	if err != nil {
		return nil, err
	}

	session, err := i.registry.Replace(account.ID, oldToken, token, claims.Expires().Sub(claims.Issued()), meta)
	if err != nil {
		return nil, err
	}
	i.metrics.sessionIssued()
	i.metrics.sessionsRevoked(1)

	return &IssuedCredential{
		Token:     token,
		ExpiresAt: claims.Expires(),
		Session:   session,
		Sessions:  i.registry.ListActive(account.ID),
	}, nil
}
