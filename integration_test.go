package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-lms-auth"
	"github.com/goliatone/go-lms-auth/repository"
)

type serviceEnv struct {
	service  *auth.Service
	manager  *repository.Manager
	registry *auth.SessionRegistry
	tokens   *auth.TokenService
	roleIDs  map[string]int64
	events   *eventRecorder
}

type eventRecorder struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (r *eventRecorder) Record(_ context.Context, event auth.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) types() []auth.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

func (r *eventRecorder) last(eventType auth.ActivityEventType) (auth.ActivityEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].EventType == eventType {
			return r.events[i], true
		}
	}
	return auth.ActivityEvent{}, false
}

func newServiceEnv(t *testing.T) *serviceEnv {
	t.Helper()

	db, err := repository.Open(repository.DriverSQLite, ":memory:")
	require.NoError(t, err)

	mgr := repository.NewManager(db)
	ctx := context.Background()
	require.NoError(t, mgr.Migrate(ctx))
	roleIDs, err := mgr.Seed(ctx, auth.DefaultCatalog())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })

	tokens, err := auth.NewTokenService([]byte(testSigningKey), time.Hour, "lms-auth", []string{"lms"})
	require.NoError(t, err)
	registry := auth.NewSessionRegistry(4)
	events := &eventRecorder{}

	service := auth.NewService(mgr.Accounts(), mgr.Access(), auth.NewCredentialIssuer(tokens, registry), registry).
		WithHasher(auth.NewBcryptHasher(4)).
		WithDefaultRole(roleIDs[auth.RoleStudent]).
		WithActivitySink(events)

	return &serviceEnv{
		service:  service,
		manager:  mgr,
		registry: registry,
		tokens:   tokens,
		roleIDs:  roleIDs,
		events:   events,
	}
}

// principal mirrors what the request gate attaches for token
func (e *serviceEnv) principal(t *testing.T, token string) *auth.Principal {
	t.Helper()
	claims, err := e.tokens.Validate(token)
	require.NoError(t, err)
	session, err := e.registry.Validate(claims.AccountID, token)
	require.NoError(t, err)
	account, err := e.manager.Accounts().GetByID(context.Background(), claims.AccountID)
	require.NoError(t, err)
	return &auth.Principal{Account: account, Session: session, Claims: claims}
}

func (e *serviceEnv) register(t *testing.T, email string) *auth.AuthResult {
	t.Helper()
	result, err := e.service.Register(context.Background(), auth.RegisterPayload{
		Name:     "Test Learner",
		Email:    email,
		Password: "Secret123",
	}, auth.SessionMetadata{IP: "10.0.0.1", UserAgent: "test"})
	require.NoError(t, err)
	return result
}

func TestServiceLocalLoginFlow(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	registered := env.register(t, "a@x.com")
	assert.Equal(t, "a@x.com", registered.Account.Email)
	assert.Equal(t, env.roleIDs[auth.RoleStudent], registered.Account.RoleID)
	require.Len(t, registered.Sessions, 1)
	assert.True(t, registered.Sessions[0].Current)

	login, err := env.service.Login(ctx, "A@X.com", "Secret123", auth.SessionMetadata{IP: "10.0.0.2", UserAgent: "phone"})
	require.NoError(t, err)
	assert.NotEqual(t, registered.Token, login.Token)
	assert.Len(t, login.Sessions, 2)

	me, err := env.service.Me(ctx, env.principal(t, login.Token))
	require.NoError(t, err)
	assert.Equal(t, auth.RoleStudent, me.RoleName)
	assert.Contains(t, me.Capabilities, "enroll:courses")
	assert.NotContains(t, me.Capabilities, "create:courses")
	assert.Equal(t, 2, me.ActiveSessions)

	details, err := env.service.SecurityDetails(ctx, registered.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", details.RegistrationIP)
	assert.Equal(t, "10.0.0.2", details.LastLoginIP)
	assert.True(t, details.IsActiveSession)

	_, err = env.service.Login(ctx, "a@x.com", "wrong-password", auth.SessionMetadata{})
	assert.True(t, errors.Is(err, auth.ErrInvalidCredentials))
	_, err = env.service.Login(ctx, "nobody@x.com", "Secret123", auth.SessionMetadata{})
	assert.True(t, errors.Is(err, auth.ErrInvalidCredentials))

	details, err = env.service.SecurityDetails(ctx, registered.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, details.SuspiciousActivities)

	assert.Subset(t, env.events.types(), []auth.ActivityEventType{
		auth.ActivityEventRegistered,
		auth.ActivityEventLoginSuccess,
		auth.ActivityEventLoginFailure,
	})
}

func TestServiceRegisterRejectsDuplicateEmail(t *testing.T) {
	env := newServiceEnv(t)
	env.register(t, "dup@x.com")

	_, err := env.service.Register(context.Background(), auth.RegisterPayload{
		Name:     "Other",
		Email:    " DUP@x.com ",
		Password: "Secret123",
	}, auth.SessionMetadata{})
	assert.True(t, errors.Is(err, auth.ErrEmailTaken))
}

func TestServiceRegisterNormalizesEmailBeforeValidation(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	registered, err := env.service.Register(ctx, auth.RegisterPayload{
		Name:     "Padded",
		Email:    "  Padded@X.com ",
		Password: "Secret123",
	}, auth.SessionMetadata{})
	require.NoError(t, err)
	assert.Equal(t, "padded@x.com", registered.Account.Email)

	_, err = env.service.Login(ctx, "padded@x.com", "Secret123", auth.SessionMetadata{})
	require.NoError(t, err)

	_, err = env.service.Register(ctx, auth.RegisterPayload{
		Name:     "Again",
		Email:    "PADDED@x.com  ",
		Password: "Secret123",
	}, auth.SessionMetadata{})
	assert.True(t, errors.Is(err, auth.ErrEmailTaken))
}

func TestServiceRegisterValidatesPayload(t *testing.T) {
	env := newServiceEnv(t)

	_, err := env.service.Register(context.Background(), auth.RegisterPayload{
		Name:     "X",
		Email:    "not-an-email",
		Password: "short",
	}, auth.SessionMetadata{})
	require.Error(t, err)

	status, _ := auth.ErrorResponse(err)
	assert.Equal(t, 400, status)
}

func TestServiceLogoutRevokesOnlyCurrentSession(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	first := env.register(t, "a@x.com")
	second, err := env.service.Login(ctx, "a@x.com", "Secret123", auth.SessionMetadata{})
	require.NoError(t, err)

	require.NoError(t, env.service.Logout(ctx, env.principal(t, first.Token)))

	_, err = env.registry.Validate(first.Account.ID, first.Token)
	assert.True(t, errors.Is(err, auth.ErrTokenUnregistered))
	_, err = env.registry.Validate(first.Account.ID, second.Token)
	assert.NoError(t, err)
}

func TestServiceSessionManagement(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	first := env.register(t, "a@x.com")
	var tokens []string
	for i := 0; i < 3; i++ {
		r, err := env.service.Login(ctx, "a@x.com", "Secret123", auth.SessionMetadata{})
		require.NoError(t, err)
		tokens = append(tokens, r.Token)
	}

	current := env.principal(t, tokens[0])
	views := env.service.Sessions(current)
	require.Len(t, views, 4)

	var other string
	for _, v := range views {
		assert.Len(t, v.Token, 13)
		if !v.Current && other == "" {
			other = v.ID
		}
	}
	require.NotEmpty(t, other)

	require.NoError(t, env.service.RevokeSession(ctx, current, other))
	assert.True(t, errors.Is(env.service.RevokeSession(ctx, current, other), auth.ErrSessionNotFound))

	remaining := env.service.RevokeOtherSessions(ctx, current)
	require.Len(t, remaining, 1)
	assert.True(t, remaining[0].Current)

	event, ok := env.events.last(auth.ActivityEventSessionRevoked)
	require.True(t, ok)
	assert.Equal(t, "others", event.Metadata["scope"])
	assert.Equal(t, 2, event.Metadata["removed"])

	refreshed, err := env.service.Refresh(ctx, current, auth.SessionMetadata{})
	require.NoError(t, err)
	_, err = env.registry.Validate(first.Account.ID, tokens[0])
	assert.True(t, errors.Is(err, auth.ErrTokenUnregistered))

	removed, err := env.service.RevokeAllSessions(ctx, nil, first.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	_, err = env.registry.Validate(first.Account.ID, refreshed.Token)
	assert.True(t, errors.Is(err, auth.ErrTokenUnregistered))

	_, err = env.service.RevokeAllSessions(ctx, nil, 9999)
	assert.True(t, errors.Is(err, auth.ErrTargetAccountNotFound))
}

func TestServiceExternalIdentity(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	attrs := map[string]any{"username": "gh_user", "email": "g@x.com"}

	first, err := env.service.CompleteExternal(ctx, auth.ProviderGitHub, "42", attrs, auth.SessionMetadata{IP: "10.1.1.1"})
	require.NoError(t, err)
	assert.True(t, first.IsNewAccount)
	assert.Equal(t, "g@x.com", first.Account.Email)

	second, err := env.service.CompleteExternal(ctx, auth.ProviderGitHub, "42",
		map[string]any{"username": "gh_renamed"}, auth.SessionMetadata{IP: "10.1.1.2"})
	require.NoError(t, err)
	assert.False(t, second.IsNewAccount)
	assert.Equal(t, first.Account.ID, second.Account.ID)
	assert.Equal(t, "gh_renamed", second.Account.Username)
	assert.Len(t, second.Sessions, 2)

	// same email through another provider is a separate account
	other, err := env.service.CompleteExternal(ctx, auth.ProviderDiscord, "42", attrs, auth.SessionMetadata{})
	require.NoError(t, err)
	assert.True(t, other.IsNewAccount)
	assert.NotEqual(t, first.Account.ID, other.Account.ID)
	assert.Empty(t, other.Account.Email)

	// local credentials never authenticate an external account
	_, err = env.service.Login(ctx, "g@x.com", "anything-at-all", auth.SessionMetadata{})
	assert.True(t, errors.Is(err, auth.ErrInvalidCredentials))
}

func TestServiceCapabilityOverlays(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	learner := env.register(t, "a@x.com")
	accountID := learner.Account.ID
	principal := env.principal(t, learner.Token)
	resolver := env.service.Resolver()

	decision, err := resolver.Authorize(ctx, principal.Account, "create:courses")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	require.NoError(t, env.service.GrantCapability(ctx, nil, accountID, "create:courses"))
	decision, err = resolver.Authorize(ctx, principal.Account, "create:courses")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	require.NoError(t, env.service.BlockCapability(ctx, nil, accountID, "create:courses", "abuse"))
	decision, err = resolver.Authorize(ctx, principal.Account, "create:courses")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, []string{"create:courses"}, decision.Blocked)

	// blocks also remove role baseline capabilities
	require.NoError(t, env.service.BlockCapability(ctx, nil, accountID, "comment:resources", ""))
	report, err := env.service.CapabilityReport(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, []string{"comment:resources", "create:courses"}, report.Blocked)
	for _, entry := range report.Available {
		assert.NotEqual(t, "comment:resources", entry.Name)
		assert.NotEqual(t, "create:courses", entry.Name)
	}

	require.NoError(t, env.service.UnblockCapability(ctx, nil, accountID, "create:courses"))
	report, err = env.service.CapabilityReport(ctx, accountID)
	require.NoError(t, err)
	assert.Contains(t, report.Available, auth.CapabilityEntry{Name: "create:courses", Source: auth.SourceGrant})
	assert.Contains(t, report.Available, auth.CapabilityEntry{Name: "read:courses", Source: auth.SourceRole})

	require.NoError(t, env.service.RevokeGrant(ctx, nil, accountID, "create:courses"))
	assert.True(t, errors.Is(env.service.RevokeGrant(ctx, nil, accountID, "create:courses"), auth.ErrGrantNotFound))
	assert.True(t, errors.Is(env.service.UnblockCapability(ctx, nil, accountID, "create:courses"), auth.ErrBlockNotFound))
	assert.True(t, errors.Is(env.service.GrantCapability(ctx, nil, accountID, "fly:planes"), auth.ErrCapabilityNotFound))
	assert.True(t, errors.Is(env.service.GrantCapability(ctx, nil, 9999, "create:courses"), auth.ErrTargetAccountNotFound))

	assert.Contains(t, env.events.types(), auth.ActivityEventCapabilityBlocked)
}

func TestServiceGrantIsIdempotent(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	learner := env.register(t, "a@x.com")

	require.NoError(t, env.service.GrantCapability(ctx, nil, learner.Account.ID, "create:courses"))
	require.NoError(t, env.service.GrantCapability(ctx, nil, learner.Account.ID, "create:courses"))
	require.NoError(t, env.service.RevokeGrant(ctx, nil, learner.Account.ID, "create:courses"))
	assert.True(t, errors.Is(env.service.RevokeGrant(ctx, nil, learner.Account.ID, "create:courses"), auth.ErrGrantNotFound))
}

func TestServiceLoginLimiter(t *testing.T) {
	env := newServiceEnv(t)
	env.register(t, "a@x.com")
	env.service.WithLoginLimiter(auth.NewLoginLimiter(1, 2))

	meta := auth.SessionMetadata{IP: "192.0.2.10"}
	ctx := context.Background()

	_, err := env.service.Login(ctx, "a@x.com", "Secret123", meta)
	require.NoError(t, err)
	_, err = env.service.Login(ctx, "a@x.com", "bad", meta)
	assert.True(t, errors.Is(err, auth.ErrInvalidCredentials))
	_, err = env.service.Login(ctx, "a@x.com", "Secret123", meta)
	assert.True(t, errors.Is(err, auth.ErrTooManyLoginAttempts))

	_, err = env.service.Login(ctx, "a@x.com", "Secret123", auth.SessionMetadata{IP: "192.0.2.11"})
	assert.NoError(t, err)
}
