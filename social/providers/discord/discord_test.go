package discord

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-lms-auth/social"
)

func TestProviderAuthCodeURL(t *testing.T) {
	provider := New(Config{ClientID: "discord-client", CallbackURL: "https://example.com/cb"})

	parsed, err := url.Parse(provider.AuthCodeURL("state", social.WithPrompt("consent")))
	require.NoError(t, err)
	assert.Equal(t, "discord.com", parsed.Host)
	assert.Equal(t, "/oauth2/authorize", parsed.Path)

	query := parsed.Query()
	assert.Equal(t, "identify email", query.Get("scope"))
	assert.Equal(t, "code", query.Get("response_type"))
	assert.Equal(t, "consent", query.Get("prompt"))
}

func TestProviderUserInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/oauth2/token":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "discord-token",
				"token_type":   "Bearer",
				"expires_in":   604800,
				"scope":        "identify email",
			})
		case "/api/users/@me":
			assert.Equal(t, "Bearer discord-token", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":          "80351110224678912",
				"username":    "nelly",
				"global_name": "Nelly",
				"avatar":      "8342729096ea3675442027381ff50dfe",
				"email":       "nelly@example.com",
				"verified":    true,
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	provider := New(Config{
		ClientID:     "discord-client",
		ClientSecret: "secret",
		CallbackURL:  "https://example.com/cb",
		TokenURL:     server.URL + "/api/oauth2/token",
		UserURL:      server.URL + "/api/users/@me",
	})

	token, err := provider.Exchange(context.Background(), "code")
	require.NoError(t, err)
	assert.Equal(t, []string{"identify", "email"}, token.Scopes)
	assert.False(t, token.ExpiresAt.IsZero())

	profile, err := provider.UserInfo(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "80351110224678912", profile.ProviderUserID)
	assert.True(t, profile.EmailVerified)

	mapped := Mapping.Apply(profile.ReconcileAttributes())
	assert.Equal(t, "Nelly", mapped.Name)
	assert.Equal(t, "nelly", mapped.Username)
	assert.Equal(t, "Nelly", mapped.DisplayName)
	assert.Equal(t, "nelly@example.com", mapped.Email)
	assert.Equal(t, "https://cdn.discordapp.com/avatars/80351110224678912/8342729096ea3675442027381ff50dfe.png", mapped.Avatar)
}

func TestMappingWithoutGlobalNameOrAvatar(t *testing.T) {
	profile := mapProfile(&discordUser{ID: "1", Username: "plain"}, defaultCDNURL)
	mapped := Mapping.Apply(profile.ReconcileAttributes())

	assert.Equal(t, "plain", mapped.Name)
	assert.Equal(t, "plain", mapped.DisplayName)
	assert.Empty(t, mapped.Avatar)
	assert.Empty(t, mapped.Email)
}

func TestProviderUserInfoError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"message": "401: Unauthorized", "code": 0})
	}))
	defer server.Close()

	provider := New(Config{UserURL: server.URL})
	_, err := provider.UserInfo(context.Background(), &social.Token{AccessToken: "expired"})
	require.Error(t, err)

	var perr *social.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "discord", perr.Provider)
	assert.Equal(t, "user_info", perr.Operation)
	assert.Equal(t, http.StatusUnauthorized, perr.Status)
	assert.Equal(t, "401: Unauthorized", perr.Description)
}
