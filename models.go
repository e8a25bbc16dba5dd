package auth

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// Authentication provider tags
const (
	ProviderLocal   = "local"
	ProviderGitHub  = "github"
	ProviderDiscord = "discord"
)

// Account is the unified user identity, regardless of provider
type Account struct {
	bun.BaseModel        `bun:"table:accounts,alias:acc"`
	ID                   int64          `bun:"id,pk,autoincrement" json:"id"`
	Name                 string         `bun:"name,notnull" json:"name"`
	Username             string         `bun:"username" json:"username,omitempty"`
	DisplayName          string         `bun:"display_name" json:"display_name,omitempty"`
	Email                *string        `bun:"email,unique,nullzero" json:"email,omitempty"`
	Phone                string         `bun:"phone" json:"phone,omitempty"`
	PasswordHash         string         `bun:"password_hash" json:"-"`
	AuthProvider         string         `bun:"auth_provider,notnull,unique:account_provider_identity" json:"auth_provider"`
	ProviderID           string         `bun:"provider_id,notnull,unique:account_provider_identity" json:"provider_id"`
	RoleID               int64          `bun:"role_id,notnull" json:"role_id"`
	Avatar               string         `bun:"avatar" json:"avatar,omitempty"`
	ProviderMetadata     map[string]any `bun:"provider_metadata" json:"provider_metadata,omitempty"`
	RegistrationIP       string         `bun:"registration_ip" json:"registration_ip,omitempty"`
	RegistrationGeo      *GeoLocation   `bun:"registration_geo,type:text" json:"registration_geo,omitempty"`
	LastLoginIP          string         `bun:"last_login_ip" json:"last_login_ip,omitempty"`
	LastLoginGeo         *GeoLocation   `bun:"last_login_geo,type:text" json:"last_login_geo,omitempty"`
	SuspiciousActivities int            `bun:"suspicious_activities,notnull,default:0" json:"suspicious_activities"`
	IsActiveSession      bool           `bun:"is_active_session,notnull,default:false" json:"is_active_session"`
	LastActiveAt         *time.Time     `bun:"last_active_at,nullzero" json:"last_active_at,omitempty"`
	CreatedAt            time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt            time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// EmailValue returns the email or an empty string
func (a *Account) EmailValue() string {
	if a == nil || a.Email == nil {
		return ""
	}
	return *a.Email
}

// AccountSummary is the client facing view of an account
type AccountSummary struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Username     string `json:"username,omitempty"`
	DisplayName  string `json:"display_name,omitempty"`
	Email        string `json:"email,omitempty"`
	Avatar       string `json:"avatar,omitempty"`
	AuthProvider string `json:"auth_provider"`
	RoleID       int64  `json:"role_id"`
}

// Summary strips credentials and provenance from the account
func (a *Account) Summary() AccountSummary {
	return AccountSummary{
		ID:           a.ID,
		Name:         a.Name,
		Username:     a.Username,
		DisplayName:  a.DisplayName,
		Email:        a.EmailValue(),
		Avatar:       a.Avatar,
		AuthProvider: a.AuthProvider,
		RoleID:       a.RoleID,
	}
}

// Role is a named baseline capability set
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:rol"`
	ID            int64  `bun:"id,pk,autoincrement" json:"id"`
	Name          string `bun:"name,notnull,unique" json:"name"`
	Description   string `bun:"description" json:"description"`
}

// Capability is an atomic named permission, e.g. "create:courses"
type Capability struct {
	bun.BaseModel `bun:"table:capabilities,alias:cap"`
	ID            int64  `bun:"id,pk,autoincrement" json:"id"`
	Name          string `bun:"name,notnull,unique" json:"name"`
	Description   string `bun:"description" json:"description"`
}

// RoleCapability links a role to one of its baseline capabilities
type RoleCapability struct {
	bun.BaseModel `bun:"table:role_capabilities,alias:rc"`
	RoleID        int64 `bun:"role_id,pk"`
	CapabilityID  int64 `bun:"capability_id,pk"`
}

// AccountGrant adds a capability to one account's effective set
type AccountGrant struct {
	bun.BaseModel `bun:"table:account_grants,alias:ag"`
	AccountID     int64     `bun:"account_id,pk"`
	CapabilityID  int64     `bun:"capability_id,pk"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// AccountBlock removes a capability from one account's effective set.
// A block always wins over the role baseline and over grants.
type AccountBlock struct {
	bun.BaseModel `bun:"table:account_blocks,alias:ab"`
	AccountID     int64     `bun:"account_id,pk"`
	CapabilityID  int64     `bun:"capability_id,pk"`
	Reason        string    `bun:"reason"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// GeoLocation is best effort provenance supplied by a GeoAnnotator
type GeoLocation struct {
	City     string `json:"city,omitempty"`
	Region   string `json:"region,omitempty"`
	Country  string `json:"country,omitempty"`
	Loc      string `json:"loc,omitempty"`
	Timezone string `json:"timezone,omitempty"`
	IsProxy  bool   `json:"is_proxy,omitempty"`
	Org      string `json:"org,omitempty"`
}

// Value implements driver.Valuer
func (g *GeoLocation) Value() (driver.Value, error) {
	if g == nil {
		return nil, nil
	}
	b, err := json.Marshal(g)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (g *GeoLocation) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("geo location: unsupported source %T", src)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, g)
}

// Provenance is the network origin of a registration or login
type Provenance struct {
	IP  string       `json:"ip,omitempty"`
	Geo *GeoLocation `json:"geo,omitempty"`
}
