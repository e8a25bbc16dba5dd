package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

var accountCtxKey = &contextKey{"account"}
var sessionCtxKey = &contextKey{"session"}

type contextKey struct {
	name string
}

// Principal is what the request gate attaches to an authenticated request
type Principal struct {
	Account *Account
	Session Session
	Claims  *TokenClaims
}

// Token returns the raw bearer token of the request
func (p *Principal) Token() string {
	if p == nil {
		return ""
	}
	return p.Session.Token
}

// WithContext sets the Account in the given context
func WithContext(r context.Context, account *Account) context.Context {
	return context.WithValue(r, accountCtxKey, account)
}

// FromContext finds the account from the context.
func FromContext(ctx context.Context) (*Account, bool) {
	raw, ok := ctx.Value(accountCtxKey).(*Account)
	return raw, ok && raw != nil
}

// WithSessionContext sets the Session in the given context
func WithSessionContext(r context.Context, session Session) context.Context {
	return context.WithValue(r, sessionCtxKey, session)
}

// SessionFromContext finds the session from the context
func SessionFromContext(ctx context.Context) (Session, bool) {
	raw, ok := ctx.Value(sessionCtxKey).(Session)
	return raw, ok
}

// PrincipalFromLocals reads the principal stored by the gate under key
func PrincipalFromLocals(c *fiber.Ctx, key string) (*Principal, bool) {
	if key == "" {
		key = DefaultContextKey
	}
	p, ok := c.Locals(key).(*Principal)
	return p, ok && p != nil
}
