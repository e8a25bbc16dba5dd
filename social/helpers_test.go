package social

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-lms-auth"
	"github.com/goliatone/go-lms-auth/repository"
)

type mockProvider struct {
	mock.Mock
	name    string
	mapping auth.AttributeMapping
}

func (m *mockProvider) Name() string {
	return m.name
}

func (m *mockProvider) Mapping() auth.AttributeMapping {
	return m.mapping
}

func (m *mockProvider) AuthCodeURL(state string, opts ...AuthCodeOption) string {
	cfg := ApplyAuthCodeOptions([]string{"identify"}, opts...)
	return "https://provider.test/authorize?state=" + state + "&code_challenge=" + cfg.CodeChallenge
}

func (m *mockProvider) Exchange(ctx context.Context, code string, opts ...ExchangeOption) (*Token, error) {
	cfg := ApplyExchangeOptions(opts...)
	args := m.Called(code, cfg.CodeVerifier)
	token, _ := args.Get(0).(*Token)
	return token, args.Error(1)
}

func (m *mockProvider) UserInfo(ctx context.Context, token *Token) (*SocialProfile, error) {
	args := m.Called(token.AccessToken)
	profile, _ := args.Get(0).(*SocialProfile)
	return profile, args.Error(1)
}

func newMockProvider(name string) *mockProvider {
	return &mockProvider{
		name: name,
		mapping: auth.AttributeMapping{
			Name:        []string{"global_name", "username"},
			Username:    []string{"username"},
			DisplayName: []string{"global_name", "username"},
			Avatar:      []string{"avatar_url"},
			Email:       []string{"email"},
		},
	}
}

type testEnv struct {
	service  *auth.Service
	manager  *repository.Manager
	registry *auth.SessionRegistry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := repository.Open(repository.DriverSQLite, ":memory:")
	require.NoError(t, err)

	mgr := repository.NewManager(db)
	ctx := context.Background()
	require.NoError(t, mgr.Migrate(ctx))
	roleIDs, err := mgr.Seed(ctx, auth.DefaultCatalog())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })

	tokens, err := auth.NewTokenService([]byte("social-test-signing-key-0123456789abcdef"), time.Hour, "lms-test", []string{"lms"})
	require.NoError(t, err)

	registry := auth.NewSessionRegistry(4)
	issuer := auth.NewCredentialIssuer(tokens, registry)

	service := auth.NewService(mgr.Accounts(), mgr.Access(), issuer, registry).
		WithHasher(auth.NewBcryptHasher(4)).
		WithDefaultRole(roleIDs[auth.RoleStudent])

	return &testEnv{service: service, manager: mgr, registry: registry}
}

var mockAnyVerifier = mock.AnythingOfType("string")
