package discord

import (
	"context"
	"net/http"

	auth "github.com/goliatone/go-lms-auth"
	"github.com/goliatone/go-lms-auth/social"
)

const (
	defaultAuthURL  = "https://discord.com/oauth2/authorize"
	defaultTokenURL = "https://discord.com/api/oauth2/token"
	defaultUserURL  = "https://discord.com/api/users/@me"
	defaultCDNURL   = "https://cdn.discordapp.com"
)

// ProviderName is the provider tag stored on accounts
const ProviderName = auth.ProviderDiscord

// Mapping maps the Discord user payload onto account fields.
// global_name is the display name, username the unique handle.
var Mapping = auth.AttributeMapping{
	Name:        []string{"global_name", "username"},
	Username:    []string{"username"},
	DisplayName: []string{"global_name", "username"},
	Avatar:      []string{"avatar_url"},
	Email:       []string{"email"},
}

// Config holds Discord OAuth configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scopes       []string

	AuthURL  string
	TokenURL string
	UserURL  string
	CDNURL   string

	HTTPClient *http.Client
}

// DefaultScopes returns the default Discord scopes.
func DefaultScopes() []string {
	return []string{"identify", "email"}
}

// Provider implements social.SocialProvider for Discord.
type Provider struct {
	oauth   *social.OAuthClient
	scopes  []string
	userURL string
	cdnURL  string
}

// New creates a new Discord provider.
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
	if cfg.CDNURL == "" {
		cfg.CDNURL = defaultCDNURL
	}

	return &Provider{
		oauth: &social.OAuthClient{
			Provider:       ProviderName,
			ClientID:       cfg.ClientID,
			ClientSecret:   cfg.ClientSecret,
			CallbackURL:    cfg.CallbackURL,
			AuthURL:        cfg.AuthURL,
			TokenURL:       cfg.TokenURL,
			HTTPClient:     cfg.HTTPClient,
			ScopeSeparator: " ",
		},
		scopes:  cfg.Scopes,
		userURL: cfg.UserURL,
		cdnURL:  cfg.CDNURL,
	}
}

func (p *Provider) Name() string {
	return ProviderName
}

func (p *Provider) Mapping() auth.AttributeMapping {
	return Mapping
}

func (p *Provider) AuthCodeURL(state string, opts ...social.AuthCodeOption) string {
	return p.oauth.AuthCodeURL(state, p.scopes, opts...)
}

func (p *Provider) Exchange(ctx context.Context, code string, opts ...social.ExchangeOption) (*social.Token, error) {
	return p.oauth.Exchange(ctx, code, opts...)
}

func (p *Provider) UserInfo(ctx context.Context, token *social.Token) (*social.SocialProfile, error) {
	var user discordUser
	if err := p.oauth.GetJSON(ctx, "user_info", p.userURL, token.AccessToken, &user); err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, social.NewProviderError(ProviderName, "user_info", http.StatusOK, "missing_id", "discord user payload has no id", nil)
	}
	return mapProfile(&user, p.cdnURL), nil
}
