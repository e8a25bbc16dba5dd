package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
)

// AttributeMapping lists, per account field, the provider profile keys to
// try in order. The first non empty value wins.
type AttributeMapping struct {
	Name        []string
	Username    []string
	DisplayName []string
	Avatar      []string
	Email       []string
}

// DefaultAttributeMapping is used for providers without a registered mapping
var DefaultAttributeMapping = AttributeMapping{
	Name:        []string{"name", "username"},
	Username:    []string{"username"},
	DisplayName: []string{"display_name", "name", "username"},
	Avatar:      []string{"avatar_url"},
	Email:       []string{"email"},
}

// MappedProfile holds the account fields extracted from a provider profile
type MappedProfile struct {
	Name        string
	Username    string
	DisplayName string
	Avatar      string
	Email       string
}

// Apply extracts account fields from attrs
func (m AttributeMapping) Apply(attrs map[string]any) MappedProfile {
	return MappedProfile{
		Name:        firstAttr(attrs, m.Name),
		Username:    firstAttr(attrs, m.Username),
		DisplayName: firstAttr(attrs, m.DisplayName),
		Avatar:      firstAttr(attrs, m.Avatar),
		Email:       NormalizeEmail(firstAttr(attrs, m.Email)),
	}
}

func firstAttr(attrs map[string]any, keys []string) string {
	for _, key := range keys {
		raw, ok := attrs[key]
		if !ok || raw == nil {
			continue
		}
		var s string
		switch v := raw.(type) {
		case string:
			s = v
		case fmt.Stringer:
			s = v.String()
		default:
			s = fmt.Sprint(v)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// IdentityReconciler maps an external provider assertion onto exactly one
// account, keyed strictly on (provider, provider id).
type IdentityReconciler struct {
	store         AccountStore
	mappings      map[string]AttributeMapping
	defaultRoleID int64
	logger        Logger
	now           func() time.Time
}

// NewIdentityReconciler creates a reconciler assigning defaultRoleID to new accounts
func NewIdentityReconciler(store AccountStore, defaultRoleID int64) *IdentityReconciler {
	return &IdentityReconciler{
		store:         store,
		mappings:      map[string]AttributeMapping{},
		defaultRoleID: defaultRoleID,
		logger:        defLogger{},
		now:           time.Now,
	}
}

func (r *IdentityReconciler) WithLogger(l Logger) *IdentityReconciler {
	r.logger = normalizeLogger(l)
	return r
}

// WithMapping registers the attribute mapping for provider
func (r *IdentityReconciler) WithMapping(provider string, m AttributeMapping) *IdentityReconciler {
	r.mappings[provider] = m
	return r
}

func (r *IdentityReconciler) mapping(provider string) AttributeMapping {
	if m, ok := r.mappings[provider]; ok {
		return m
	}
	return DefaultAttributeMapping
}

// Reconcile finds or creates the account for (provider, providerID).
// Existing accounts get their mutable profile fields and last login
// provenance refreshed; role and capability overlays are never touched.
func (r *IdentityReconciler) Reconcile(ctx context.Context, provider, providerID string, attrs map[string]any, prov Provenance) (*Account, bool, error) {
	if provider == "" || providerID == "" {
		return nil, false, errors.New("provider and provider id are required", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest)
	}

	profile := r.mapping(provider).Apply(attrs)

	existing, err := r.store.GetByProvider(ctx, provider, providerID)
	switch {
	case err == nil:
		if err := r.refresh(ctx, existing, profile, attrs, prov); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	case !isNotFound(err):
		return nil, false, errors.Wrap(err, errors.CategoryInternal, "failed to look up external identity")
	}

	account, err := r.create(ctx, provider, providerID, profile, attrs, prov)
	if err == nil {
		return account, true, nil
	}

	// a concurrent callback for the same identity may have won the insert
	existing, lookupErr := r.store.GetByProvider(ctx, provider, providerID)
	if lookupErr != nil {
		return nil, false, err
	}
	if err := r.refresh(ctx, existing, profile, attrs, prov); err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *IdentityReconciler) refresh(ctx context.Context, account *Account, profile MappedProfile, attrs map[string]any, prov Provenance) error {
	now := r.now()

	if profile.Username != "" {
		account.Username = profile.Username
	}
	if profile.DisplayName != "" {
		account.DisplayName = profile.DisplayName
	}
	if profile.Avatar != "" {
		account.Avatar = profile.Avatar
	}
	account.ProviderMetadata = profileMetadata(attrs)
	account.LastLoginIP = prov.IP
	account.LastLoginGeo = prov.Geo
	account.IsActiveSession = true
	account.LastActiveAt = &now

	if err := r.store.UpdateProfile(ctx, account); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to update external identity")
	}
	return nil
}

func (r *IdentityReconciler) create(ctx context.Context, provider, providerID string, profile MappedProfile, attrs map[string]any, prov Provenance) (*Account, error) {
	now := r.now()

	name := profile.Name
	if name == "" {
		name = profile.Username
	}
	if name == "" {
		name = provider + "-" + providerID
	}

	account := &Account{
		Name:             name,
		Username:         profile.Username,
		DisplayName:      profile.DisplayName,
		Avatar:           profile.Avatar,
		AuthProvider:     provider,
		ProviderID:       providerID,
		RoleID:           r.defaultRoleID,
		ProviderMetadata: profileMetadata(attrs),
		RegistrationIP:   prov.IP,
		RegistrationGeo:  prov.Geo,
		LastLoginIP:      prov.IP,
		LastLoginGeo:     prov.Geo,
		IsActiveSession:  true,
		LastActiveAt:     &now,
	}

	if profile.Email != "" {
		taken, err := r.store.EmailTaken(ctx, profile.Email)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to check email availability")
		}
		if taken {
			// identities never merge on email, the asserted address stays in metadata
			r.logger.Warn("external identity email already in use, account created without email",
				"provider", provider, "provider_id", providerID)
		} else {
			email := profile.Email
			account.Email = &email
		}
	}

	created, err := r.store.Create(ctx, account)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to create external identity")
	}
	return created, nil
}

func profileMetadata(attrs map[string]any) map[string]any {
	profile := make(map[string]any, len(attrs))
	for k, v := range attrs {
		profile[k] = v
	}
	return map[string]any{"profile": profile}
}
