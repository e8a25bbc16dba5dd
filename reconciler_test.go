package auth_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-lms-auth"
)

func TestAttributeMappingApply(t *testing.T) {
	mapping := auth.AttributeMapping{
		Name:        []string{"name", "login"},
		Username:    []string{"login"},
		DisplayName: []string{"name", "login"},
		Avatar:      []string{"avatar_url"},
		Email:       []string{"email"},
	}

	profile := mapping.Apply(map[string]any{
		"name":       "  ",
		"login":      "octo",
		"avatar_url": "https://example.com/a.png",
		"email":      " Octo@Example.COM ",
		"id":         42,
	})

	assert.Equal(t, "octo", profile.Name)
	assert.Equal(t, "octo", profile.Username)
	assert.Equal(t, "octo", profile.DisplayName)
	assert.Equal(t, "https://example.com/a.png", profile.Avatar)
	assert.Equal(t, "octo@example.com", profile.Email)
}

func TestIdentityReconciler_CreatesThenReuses(t *testing.T) {
	ctx := context.Background()
	prov := auth.Provenance{IP: "10.0.0.1"}
	attrs := map[string]any{"username": "gh_user", "email": "g@x.com"}

	store := new(MockAccountStore)
	store.On("GetByProvider", mock.Anything, "github", "42").Return(nil, sql.ErrNoRows).Once()
	store.On("EmailTaken", mock.Anything, "g@x.com").Return(false, nil).Once()
	store.On("Create", mock.Anything, mock.MatchedBy(func(a *auth.Account) bool {
		return a.AuthProvider == "github" && a.ProviderID == "42" && a.RoleID == 3 &&
			a.EmailValue() == "g@x.com" && a.Name == "gh_user" && a.RegistrationIP == "10.0.0.1"
	})).Return(func(_ context.Context, a *auth.Account) *auth.Account {
		a.ID = 100
		return a
	}, nil).Once()

	reconciler := auth.NewIdentityReconciler(store, 3)

	first, created, err := reconciler.Reconcile(ctx, "github", "42", attrs, prov)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(100), first.ID)

	// second login updates the stored profile and keeps the same account
	store.On("GetByProvider", mock.Anything, "github", "42").Return(first, nil).Once()
	store.On("UpdateProfile", mock.Anything, mock.MatchedBy(func(a *auth.Account) bool {
		return a.ID == 100 && a.Username == "renamed" && a.LastLoginIP == "10.0.0.2"
	})).Return(nil).Once()

	second, created, err := reconciler.Reconcile(ctx, "github", "42",
		map[string]any{"username": "renamed"}, auth.Provenance{IP: "10.0.0.2"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(3), second.RoleID)

	store.AssertExpectations(t)
}

func TestIdentityReconciler_EmailCollisionDoesNotMerge(t *testing.T) {
	store := new(MockAccountStore)
	store.On("GetByProvider", mock.Anything, "discord", "7").Return(nil, sql.ErrNoRows)
	store.On("EmailTaken", mock.Anything, "a@x.com").Return(true, nil)
	store.On("Create", mock.Anything, mock.MatchedBy(func(a *auth.Account) bool {
		return a.Email == nil
	})).Return(func(_ context.Context, a *auth.Account) *auth.Account {
		a.ID = 5
		return a
	}, nil)

	account, created, err := auth.NewIdentityReconciler(store, 1).Reconcile(context.Background(), "discord", "7",
		map[string]any{"username": "d", "email": "a@x.com"}, auth.Provenance{})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Nil(t, account.Email)

	profile, ok := account.ProviderMetadata["profile"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "a@x.com", profile["email"])
}

func TestIdentityReconciler_ConcurrentCreateFallsBackToLookup(t *testing.T) {
	winner := &auth.Account{ID: 11, AuthProvider: "github", ProviderID: "9", RoleID: 1}

	store := new(MockAccountStore)
	store.On("GetByProvider", mock.Anything, "github", "9").Return(nil, sql.ErrNoRows).Once()
	store.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("unique constraint", errors.CategoryConflict)).Once()
	store.On("GetByProvider", mock.Anything, "github", "9").Return(winner, nil).Once()
	store.On("UpdateProfile", mock.Anything, winner).Return(nil).Once()

	account, created, err := auth.NewIdentityReconciler(store, 1).Reconcile(context.Background(), "github", "9",
		map[string]any{"username": "late"}, auth.Provenance{})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(11), account.ID)
	store.AssertExpectations(t)
}

func TestIdentityReconciler_RejectsEmptyIdentity(t *testing.T) {
	_, _, err := auth.NewIdentityReconciler(new(MockAccountStore), 1).Reconcile(context.Background(), "github", "", nil, auth.Provenance{})
	require.Error(t, err)

	status, _ := auth.ErrorResponse(err)
	assert.Equal(t, 400, status)
}

func TestIdentityReconciler_UsesProviderMapping(t *testing.T) {
	store := new(MockAccountStore)
	store.On("GetByProvider", mock.Anything, "custom", "1").Return(nil, sql.ErrNoRows)
	store.On("Create", mock.Anything, mock.MatchedBy(func(a *auth.Account) bool {
		return a.Name == "Full Name" && a.Username == "handle" && a.Email == nil
	})).Return(func(_ context.Context, a *auth.Account) *auth.Account { return a }, nil)

	reconciler := auth.NewIdentityReconciler(store, 1).WithMapping("custom", auth.AttributeMapping{
		Name:     []string{"full_name"},
		Username: []string{"handle"},
	})

	_, created, err := reconciler.Reconcile(context.Background(), "custom", "1",
		map[string]any{"full_name": "Full Name", "handle": "handle", "email": "ignored@x.com"}, auth.Provenance{})
	require.NoError(t, err)
	assert.True(t, created)
	store.AssertExpectations(t)
}
