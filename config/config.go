// Package config loads the service configuration from an optional file,
// a .env file and LMS_AUTH_* environment variables.
package config

import (
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	auth "github.com/goliatone/go-lms-auth"
)

// EnvPrefix scopes environment overrides, e.g. LMS_AUTH_AUTH_SIGNING_KEY
const EnvPrefix = "LMS_AUTH"

// Config is the full service configuration. It implements auth.Config.
type Config struct {
	Debug    bool           `mapstructure:"debug"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Sessions SessionsConfig `mapstructure:"sessions"`
	Login    LoginConfig    `mapstructure:"login"`
	Social   SocialConfig   `mapstructure:"social"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MetricsPath  string        `mapstructure:"metrics_path"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type AuthConfig struct {
	SigningKey      string   `mapstructure:"signing_key"`
	TokenExpiration int      `mapstructure:"token_expiration"`
	Issuer          string   `mapstructure:"issuer"`
	Audience        []string `mapstructure:"audience"`
	ContextKey      string   `mapstructure:"context_key"`
	TokenLookup     string   `mapstructure:"token_lookup"`
	AuthScheme      string   `mapstructure:"auth_scheme"`
	DefaultRoleID   int64    `mapstructure:"default_role_id"`
	BcryptCost      int      `mapstructure:"bcrypt_cost"`
}

type SessionsConfig struct {
	Shards        int           `mapstructure:"shards"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type LoginConfig struct {
	RatePerMinute int `mapstructure:"rate_per_minute"`
	Burst         int `mapstructure:"burst"`
}

type SocialConfig struct {
	RedirectURL string         `mapstructure:"redirect_url"`
	GitHub      ProviderConfig `mapstructure:"github"`
	Discord     ProviderConfig `mapstructure:"discord"`
}

// ProviderConfig holds one OAuth client registration
type ProviderConfig struct {
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	CallbackURL  string   `mapstructure:"callback_url"`
	Scopes       []string `mapstructure:"scopes"`
}

// Enabled reports whether the provider has credentials
func (p ProviderConfig) Enabled() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.metrics_path", "/metrics")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:lms_auth.db?cache=shared")

	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.token_expiration", 24)
	v.SetDefault("auth.issuer", "lms-auth")
	v.SetDefault("auth.audience", []string{"lms"})
	v.SetDefault("auth.context_key", "principal")
	v.SetDefault("auth.token_lookup", "header:Authorization")
	v.SetDefault("auth.auth_scheme", "Bearer")
	v.SetDefault("auth.default_role_id", 1)
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("sessions.shards", auth.DefaultRegistryShards)
	v.SetDefault("sessions.sweep_interval", "0s")

	v.SetDefault("login.rate_per_minute", 5)
	v.SetDefault("login.burst", 5)

	v.SetDefault("social.redirect_url", "")
	for _, provider := range []string{"github", "discord"} {
		v.SetDefault("social."+provider+".client_id", "")
		v.SetDefault("social."+provider+".client_secret", "")
		v.SetDefault("social."+provider+".callback_url", "")
		v.SetDefault("social."+provider+".scopes", []string{})
	}

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads configuration. Dotenv files are loaded first and never
// override variables already set in the environment. path may be empty.
func Load(path string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load env file "+file)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to read config file "+path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to decode config")
	}
	return cfg, nil
}

// Validate checks the values the service cannot start without. Failures
// carry auth.TextCodeConfiguration.
func (c *Config) Validate() error {
	err := validation.Errors{
		"auth": validation.ValidateStruct(&c.Auth,
			validation.Field(&c.Auth.SigningKey, validation.Required, validation.Length(auth.MinSigningKeyLength, 0)),
			validation.Field(&c.Auth.TokenExpiration, validation.Required, validation.Min(1)),
			validation.Field(&c.Auth.BcryptCost, validation.Min(4), validation.Max(31)),
		),
		"database": validation.ValidateStruct(&c.Database,
			validation.Field(&c.Database.Driver, validation.Required, validation.In("sqlite", "postgres")),
			validation.Field(&c.Database.DSN, validation.Required),
		),
		"sessions": validation.ValidateStruct(&c.Sessions,
			validation.Field(&c.Sessions.Shards, validation.Min(0)),
			validation.Field(&c.Sessions.SweepInterval, validation.Min(time.Duration(0))),
		),
	}.Filter()
	if err == nil {
		return nil
	}

	meta := map[string]any{}
	if groups, ok := err.(validation.Errors); ok {
		for group, gerr := range groups {
			meta[group] = gerr.Error()
		}
	}

	clone := auth.ErrConfiguration.Clone()
	clone.Source = err
	return clone.WithMetadata(meta)
}

func (c *Config) GetSigningKey() string      { return c.Auth.SigningKey }
func (c *Config) GetTokenExpiration() int    { return c.Auth.TokenExpiration }
func (c *Config) GetIssuer() string          { return c.Auth.Issuer }
func (c *Config) GetAudience() []string      { return c.Auth.Audience }
func (c *Config) GetContextKey() string      { return c.Auth.ContextKey }
func (c *Config) GetTokenLookup() string     { return c.Auth.TokenLookup }
func (c *Config) GetAuthScheme() string      { return c.Auth.AuthScheme }
func (c *Config) GetDefaultRoleID() int64    { return c.Auth.DefaultRoleID }
func (c *Config) GetBcryptCost() int         { return c.Auth.BcryptCost }
func (c *Config) GetRegistryShards() int     { return c.Sessions.Shards }
func (c *Config) GetLoginRatePerMinute() int { return c.Login.RatePerMinute }
func (c *Config) GetLoginBurst() int         { return c.Login.Burst }

var _ auth.Config = (*Config)(nil)
