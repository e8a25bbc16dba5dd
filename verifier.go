package auth

import (
	"context"
	"database/sql"
	"strings"
	"sync"

	"github.com/goliatone/go-errors"
)

// CredentialVerifier validates local email/password credentials.
// It is read only: callers update activity flags after success.
type CredentialVerifier struct {
	store  AccountStore
	hasher PasswordAuthenticator
	logger Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewCredentialVerifier creates a verifier backed by store
func NewCredentialVerifier(store AccountStore, hasher PasswordAuthenticator) *CredentialVerifier {
	if hasher == nil {
		hasher = NewBcryptHasher(DefaultBcryptCost)
	}
	return &CredentialVerifier{
		store:  store,
		hasher: hasher,
		logger: defLogger{},
	}
}

func (v *CredentialVerifier) WithLogger(l Logger) *CredentialVerifier {
	v.logger = normalizeLogger(l)
	return v
}

// VerifyLocal finds the local account for email and compares password.
// Unknown email and wrong password both yield ErrInvalidCredentials, and
// both paths pay for one bcrypt comparison.
func (v *CredentialVerifier) VerifyLocal(ctx context.Context, email, password string) (*Account, error) {
	email = NormalizeEmail(email)

	account, err := v.store.GetLocalByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			v.burnComparison(password)
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve account during verification")
	}

	if account.PasswordHash == "" {
		v.burnComparison(password)
		return nil, ErrInvalidCredentials
	}

	if err := v.hasher.ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		if !errors.Is(err, ErrInvalidCredentials) {
			v.logger.Error("password comparison failed", "account_id", account.ID, "error", err)
		}
		return nil, ErrInvalidCredentials
	}

	return account, nil
}

func (v *CredentialVerifier) burnComparison(password string) {
	v.dummyOnce.Do(func() {
		h, err := v.hasher.HashPassword("lms-auth-placeholder-secret")
		if err != nil {
			v.logger.Error("failed to prepare placeholder hash", "error", err)
			return
		}
		v.dummyHash = h
	})
	if v.dummyHash == "" {
		return
	}
	_ = v.hasher.ComparePasswordAndHash(password, v.dummyHash)
}

// NormalizeEmail trims and lowercases an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	return errors.IsNotFound(err) || errors.Is(err, sql.ErrNoRows)
}
