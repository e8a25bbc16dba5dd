package auth

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Logger is the logging contract used across the package.
// Arguments after the message are key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() int
	GetIssuer() string
	GetAudience() []string
	GetContextKey() string
	GetTokenLookup() string
	GetAuthScheme() string
	GetDefaultRoleID() int64
	GetBcryptCost() int
	GetRegistryShards() int
	GetLoginRatePerMinute() int
	GetLoginBurst() int
}

// AccountStore is the persistent store for accounts.
// Lookups return an error satisfying errors.IsNotFound when no row matches.
type AccountStore interface {
	GetByID(ctx context.Context, id int64) (*Account, error)
	GetLocalByEmail(ctx context.Context, email string) (*Account, error)
	GetByProvider(ctx context.Context, provider, providerID string) (*Account, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, account *Account) (*Account, error)
	UpdateProfile(ctx context.Context, account *Account) error
	MarkActive(ctx context.Context, id int64, at time.Time, prov *Provenance) error
	MarkInactive(ctx context.Context, id int64, at time.Time) error
	// TrackFailedLogin bumps the suspicious activity counter of the local
	// account owning email. Unknown emails are a no-op, not an error.
	TrackFailedLogin(ctx context.Context, email string) error
}

// AccessStore loads and mutates the data the permission resolver consumes.
type AccessStore interface {
	GetRole(ctx context.Context, id int64) (*Role, error)
	RoleCapabilities(ctx context.Context, roleID int64) ([]string, error)
	AccountGrants(ctx context.Context, accountID int64) ([]string, error)
	AccountBlocks(ctx context.Context, accountID int64) ([]string, error)
	GetCapabilityByName(ctx context.Context, name string) (*Capability, error)
	AddGrant(ctx context.Context, accountID, capabilityID int64) error
	RemoveGrant(ctx context.Context, accountID, capabilityID int64) (bool, error)
	AddBlock(ctx context.Context, accountID, capabilityID int64, reason string) error
	RemoveBlock(ctx context.Context, accountID, capabilityID int64) (bool, error)
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Print("[ERR] AUTH " + line(msg, args))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Print("[WRN] AUTH " + line(msg, args))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Print("[INF] AUTH " + line(msg, args))
}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Print("[DBG] AUTH " + line(msg, args))
}

func line(msg string, args []any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, " %v", args[i])
		}
	}
	b.WriteString("\n")
	return b.String()
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
