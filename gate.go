package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"

	"github.com/goliatone/go-lms-auth/middleware/jwtware"
)

// DefaultContextKey is the fiber locals key holding the *Principal
const DefaultContextKey = "user"

// RequestGate is the per request entry point. Its states run strictly in
// order: token extraction, signature check, registry lookup, account load,
// expired session sweep, capability check.
type RequestGate struct {
	tokens      *TokenService
	registry    *SessionRegistry
	accounts    AccountStore
	resolver    *PermissionResolver
	metrics     *Metrics
	logger      Logger
	contextKey  string
	tokenLookup string
	authScheme  string
}

// NewRequestGate wires the gate to its collaborators
func NewRequestGate(tokens *TokenService, registry *SessionRegistry, accounts AccountStore, resolver *PermissionResolver) *RequestGate {
	return &RequestGate{
		tokens:     tokens,
		registry:   registry,
		accounts:   accounts,
		resolver:   resolver,
		logger:     defLogger{},
		contextKey: DefaultContextKey,
	}
}

func (g *RequestGate) WithLogger(l Logger) *RequestGate {
	g.logger = normalizeLogger(l)
	return g
}

func (g *RequestGate) WithMetrics(m *Metrics) *RequestGate {
	g.metrics = m
	return g
}

// WithConfig applies context key and token lookup settings
func (g *RequestGate) WithConfig(cfg Config) *RequestGate {
	if key := cfg.GetContextKey(); key != "" {
		g.contextKey = key
	}
	g.tokenLookup = cfg.GetTokenLookup()
	g.authScheme = cfg.GetAuthScheme()
	return g
}

// ContextKey is the locals key the principal is stored under
func (g *RequestGate) ContextKey() string {
	return g.contextKey
}

// Authenticate validates a raw bearer token down to a loaded account.
func (g *RequestGate) Authenticate(ctx context.Context, raw string) (*Principal, error) {
	claims, err := g.tokens.Validate(raw)
	if err != nil {
		return nil, err
	}

	session, err := g.registry.Validate(claims.AccountID, raw)
	if err != nil {
		return nil, err
	}

	account, err := g.accounts.GetByID(ctx, claims.AccountID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load account")
	}

	g.registry.Prune(account.ID)

	return &Principal{Account: account, Session: session, Claims: claims}, nil
}

// Protect returns the authentication middleware
func (g *RequestGate) Protect() fiber.Handler {
	return jwtware.New(jwtware.Config{
		ContextKey:        g.contextKey,
		TokenLookup:       g.tokenLookup,
		AuthScheme:        g.authScheme,
		MissingTokenError: ErrMissingToken,
		ErrorHandler:      g.handleError,
		Authenticator: jwtware.AuthenticatorFunc(func(ctx context.Context, token string) (any, error) {
			return g.Authenticate(ctx, token)
		}),
		ContextEnricher: func(ctx context.Context, principal any) context.Context {
			p, ok := principal.(*Principal)
			if !ok {
				return ctx
			}
			return WithSessionContext(WithContext(ctx, p.Account), p.Session)
		},
	})
}

// Require returns middleware allowing the request only when every
// capability is effective for the authenticated account.
func (g *RequestGate) Require(capabilities ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromLocals(c, g.contextKey)
		if !ok {
			return g.handleError(c, ErrMissingToken)
		}

		decision, err := g.resolver.Authorize(c.UserContext(), principal.Account, capabilities...)
		if err != nil {
			return g.handleError(c, err)
		}

		if !decision.Allowed {
			g.logger.Warn("capability check denied",
				"account_id", principal.Account.ID,
				"path", c.Path(),
				"blocked", decision.Blocked,
				"missing", decision.Missing,
			)
			return g.handleError(c, ErrCapabilityDenied)
		}

		g.metrics.gateDecision("allowed")
		return c.Next()
	}
}

func (g *RequestGate) handleError(c *fiber.Ctx, err error) error {
	g.metrics.gateDecision(gateOutcome(err))

	status, body := ErrorResponse(err)
	if status >= fiber.StatusInternalServerError {
		g.logger.Error("request gate failure", "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(body)
}

func gateOutcome(err error) string {
	switch {
	case errors.Is(err, ErrMissingToken):
		return "missing_token"
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, ErrTokenUnregistered):
		return "unregistered"
	case errors.Is(err, ErrAccountNotFound):
		return "account_missing"
	case errors.Is(err, ErrCapabilityDenied):
		return "denied"
	default:
		return "error"
	}
}
