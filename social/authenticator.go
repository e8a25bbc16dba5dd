package social

import (
	"context"
	"sort"

	"github.com/goliatone/go-errors"

	auth "github.com/goliatone/go-lms-auth"
)

// SocialAuthenticator orchestrates social login flows. Every provider
// funnels into the same identity reconciliation through auth.Service.
type SocialAuthenticator struct {
	providers map[string]SocialProvider
	states    StateStore
	service   *auth.Service
	logger    auth.Logger
	config    SocialAuthConfig
}

// SocialAuthConfig configures the social authenticator.
type SocialAuthConfig struct {
	DefaultRedirectURL string
}

// SocialAuthOption configures the social authenticator.
type SocialAuthOption func(*SocialAuthenticator)

// NewSocialAuthenticator creates a new social authenticator.
func NewSocialAuthenticator(service *auth.Service, config SocialAuthConfig, opts ...SocialAuthOption) *SocialAuthenticator {
	sa := &SocialAuthenticator{
		providers: make(map[string]SocialProvider),
		service:   service,
		logger:    auth.NewZapLogger(nil),
		config:    config,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sa)
		}
	}

	if sa.states == nil {
		sa.states = NewCacheStateStore(DefaultStateTTL)
	}

	return sa
}

// WithProvider registers a social provider. Providers carrying their own
// attribute mapping get it registered with the reconciler.
func WithProvider(provider SocialProvider) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		if provider == nil {
			return
		}
		sa.providers[provider.Name()] = provider
		if mapped, ok := provider.(MappedProvider); ok && sa.service != nil {
			sa.service.WithAttributeMapping(provider.Name(), mapped.Mapping())
		}
	}
}

// WithStateStore sets a custom state store.
func WithStateStore(store StateStore) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		sa.states = store
	}
}

// WithLogger sets the logger.
func WithLogger(l auth.Logger) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		if l != nil {
			sa.logger = l
		}
	}
}

// BeginAuth starts the OAuth flow for a provider.
func (sa *SocialAuthenticator) BeginAuth(ctx context.Context, providerName string, opts ...BeginAuthOption) (*AuthRedirect, error) {
	provider, ok := sa.providers[providerName]
	if !ok {
		return nil, ErrProviderNotFound
	}

	cfg := &beginAuthConfig{
		redirectURL: sa.config.DefaultRedirectURL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	codeVerifier, err := generateCodeVerifier()
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to generate code verifier")
	}

	stateToken, err := sa.states.Issue(&OAuthState{
		Provider:     providerName,
		CodeVerifier: codeVerifier,
		RedirectURL:  cfg.redirectURL,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to issue oauth state")
	}

	authURL := provider.AuthCodeURL(stateToken, WithPKCE(computeCodeChallenge(codeVerifier), "S256"))

	return &AuthRedirect{
		URL:      authURL,
		State:    stateToken,
		Provider: providerName,
	}, nil
}

// CompleteAuth finishes the OAuth flow after callback.
func (sa *SocialAuthenticator) CompleteAuth(ctx context.Context, providerName, code, stateToken string, meta auth.SessionMetadata) (*AuthResult, error) {
	provider, ok := sa.providers[providerName]
	if !ok {
		return nil, ErrProviderNotFound
	}

	if code == "" {
		return nil, ErrMissingCode
	}

	state, err := sa.states.Consume(stateToken)
	if err != nil {
		return nil, err
	}

	if state.Provider != providerName {
		sa.logger.Warn("oauth state provider mismatch", "expected", state.Provider, "got", providerName)
		return nil, ErrInvalidState
	}

	token, err := provider.Exchange(ctx, code, WithCodeVerifier(state.CodeVerifier))
	if err != nil {
		sa.logger.Warn("oauth token exchange failed", "provider", providerName, "error", err)
		return nil, wrapProviderError(ErrTokenExchangeFailed, providerName, "exchange", err)
	}

	profile, err := provider.UserInfo(ctx, token)
	if err != nil {
		sa.logger.Warn("oauth user info failed", "provider", providerName, "error", err)
		return nil, wrapProviderError(ErrUserInfoFailed, providerName, "user_info", err)
	}

	result, err := sa.service.CompleteExternal(ctx, providerName, profile.ProviderUserID, profile.ReconcileAttributes(), meta)
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		AuthResult:  result,
		Provider:    providerName,
		RedirectURL: state.RedirectURL,
	}, nil
}

// ListProviders returns all registered providers sorted by name.
func (sa *SocialAuthenticator) ListProviders() []ProviderInfo {
	providers := make([]ProviderInfo, 0, len(sa.providers))
	for name := range sa.providers {
		providers = append(providers, ProviderInfo{Name: name})
	}
	sort.Slice(providers, func(i, j int) bool {
		return providers[i].Name < providers[j].Name
	})
	return providers
}

// ProviderInfo describes an available provider.
type ProviderInfo struct {
	Name string `json:"name"`
}

// AuthRedirect contains the authorization URL for redirecting users.
type AuthRedirect struct {
	URL      string `json:"url"`
	State    string `json:"state"`
	Provider string `json:"provider"`
}

// AuthResult contains the result of a successful authentication.
type AuthResult struct {
	*auth.AuthResult
	Provider    string `json:"provider"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

// BeginAuthOption configures the auth initiation.
type BeginAuthOption func(*beginAuthConfig)

type beginAuthConfig struct {
	redirectURL string
}

// WithRedirectURL sets the post-auth redirect URL.
func WithRedirectURL(url string) BeginAuthOption {
	return func(c *beginAuthConfig) {
		if url != "" {
			c.redirectURL = url
		}
	}
}
