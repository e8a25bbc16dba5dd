package github

import (
	"context"
	"net/http"

	auth "github.com/goliatone/go-lms-auth"
	"github.com/goliatone/go-lms-auth/social"
)

const (
	defaultAuthURL   = "https://github.com/login/oauth/authorize"
	defaultTokenURL  = "https://github.com/login/oauth/access_token"
	defaultUserURL   = "https://api.github.com/user"
	defaultEmailsURL = "https://api.github.com/user/emails"
)

// ProviderName is the provider tag stored on accounts
const ProviderName = auth.ProviderGitHub

// Mapping maps the GitHub user payload onto account fields
var Mapping = auth.AttributeMapping{
	Name:        []string{"name", "login"},
	Username:    []string{"login"},
	DisplayName: []string{"name", "login"},
	Avatar:      []string{"avatar_url"},
	Email:       []string{"email"},
}

// Config holds GitHub OAuth configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scopes       []string

	AuthURL   string
	TokenURL  string
	UserURL   string
	EmailsURL string

	HTTPClient *http.Client
}

// DefaultScopes returns the default GitHub scopes.
func DefaultScopes() []string {
	return []string{"user:email", "read:user"}
}

// Provider implements social.SocialProvider for GitHub.
type Provider struct {
	oauth     *social.OAuthClient
	scopes    []string
	userURL   string
	emailsURL string
}

// New creates a new GitHub provider.
func New(cfg Config) *Provider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes()
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.UserURL == "" {
		cfg.UserURL = defaultUserURL
	}
	if cfg.EmailsURL == "" {
		cfg.EmailsURL = defaultEmailsURL
	}

	return &Provider{
		oauth: &social.OAuthClient{
			Provider:     ProviderName,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			CallbackURL:  cfg.CallbackURL,
			AuthURL:      cfg.AuthURL,
			TokenURL:     cfg.TokenURL,
			HTTPClient:   cfg.HTTPClient,
			AcceptHeader: "application/vnd.github.v3+json",
		},
		scopes:    cfg.Scopes,
		userURL:   cfg.UserURL,
		emailsURL: cfg.EmailsURL,
	}
}

// Name implements social.SocialProvider.
func (p *Provider) Name() string {
	return ProviderName
}

// Mapping implements social.MappedProvider.
func (p *Provider) Mapping() auth.AttributeMapping {
	return Mapping
}

// AuthCodeURL implements social.SocialProvider.
func (p *Provider) AuthCodeURL(state string, opts ...social.AuthCodeOption) string {
	return p.oauth.AuthCodeURL(state, p.scopes, opts...)
}

// Exchange implements social.SocialProvider.
func (p *Provider) Exchange(ctx context.Context, code string, opts ...social.ExchangeOption) (*social.Token, error) {
	return p.oauth.Exchange(ctx, code, opts...)
}

// UserInfo implements social.SocialProvider.
func (p *Provider) UserInfo(ctx context.Context, token *social.Token) (*social.SocialProfile, error) {
	var user githubUser
	if err := p.oauth.GetJSON(ctx, "user_info", p.userURL, token.AccessToken, &user); err != nil {
		return nil, err
	}

	// the emails endpoint needs the user:email scope, fall back to the public email
	email, verified, err := p.primaryEmail(ctx, token.AccessToken)
	if err != nil {
		email = user.Email
	}

	return mapProfile(&user, email, verified), nil
}

func (p *Provider) primaryEmail(ctx context.Context, accessToken string) (string, bool, error) {
	var emails []githubEmail
	if err := p.oauth.GetJSON(ctx, "emails", p.emailsURL, accessToken, &emails); err != nil {
		return "", false, err
	}

	for _, e := range emails {
		if e.Primary {
			return e.Email, e.Verified, nil
		}
	}

	for _, e := range emails {
		if e.Verified {
			return e.Email, true, nil
		}
	}

	return "", false, social.NewProviderError(ProviderName, "emails", http.StatusOK, "email_not_found", "no valid email found", nil)
}
