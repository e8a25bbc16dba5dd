package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
)

// AuthResult is returned by every flow that issues a credential
type AuthResult struct {
	Token        string         `json:"token"`
	ExpiresAt    time.Time      `json:"expires_at"`
	Account      AccountSummary `json:"user"`
	Sessions     []SessionView  `json:"sessions"`
	IsNewAccount bool           `json:"is_new_account,omitempty"`
}

// MeResult describes the authenticated account and its current session
type MeResult struct {
	Account        AccountSummary `json:"user"`
	RoleName       string         `json:"role"`
	Capabilities   []string       `json:"permissions"`
	CurrentSession SessionView    `json:"current_session"`
	ActiveSessions int            `json:"active_sessions"`
}

// SecurityDetails is the operator view of an account's provenance and sessions
type SecurityDetails struct {
	Account              AccountSummary `json:"user"`
	RegistrationIP       string         `json:"registration_ip,omitempty"`
	RegistrationGeo      *GeoLocation   `json:"registration_geo,omitempty"`
	LastLoginIP          string         `json:"last_login_ip,omitempty"`
	LastLoginGeo         *GeoLocation   `json:"last_login_geo,omitempty"`
	SuspiciousActivities int            `json:"suspicious_activities"`
	IsActiveSession      bool           `json:"is_active_session"`
	LastActiveAt         *time.Time     `json:"last_active_at,omitempty"`
	Sessions             []SessionView  `json:"sessions"`
}

// Service composes verifier, reconciler, issuer, registry and resolver
// into the account facing flows.
type Service struct {
	accounts      AccountStore
	access        AccessStore
	hasher        PasswordAuthenticator
	verifier      *CredentialVerifier
	reconciler    *IdentityReconciler
	issuer        *CredentialIssuer
	registry      *SessionRegistry
	resolver      *PermissionResolver
	limiter       *LoginLimiter
	activitySink  ActivitySink
	metrics       *Metrics
	logger        Logger
	defaultRoleID int64
	now           func() time.Time
}

// NewService returns a Service using bcrypt at the default cost and role 1
// as the default role.
func NewService(accounts AccountStore, access AccessStore, issuer *CredentialIssuer, registry *SessionRegistry) *Service {
	hasher := NewBcryptHasher(DefaultBcryptCost)
	return &Service{
		accounts:      accounts,
		access:        access,
		hasher:        hasher,
		verifier:      NewCredentialVerifier(accounts, hasher),
		reconciler:    NewIdentityReconciler(accounts, 1),
		issuer:        issuer,
		registry:      registry,
		resolver:      NewPermissionResolver(access),
		activitySink:  noopActivitySink{},
		logger:        defLogger{},
		defaultRoleID: 1,
		now:           time.Now,
	}
}

func (s *Service) WithLogger(l Logger) *Service {
	s.logger = normalizeLogger(l)
	s.verifier.WithLogger(s.logger)
	s.reconciler.WithLogger(s.logger)
	s.resolver.WithLogger(s.logger)
	return s
}

// WithHasher replaces the password hasher used for registration and verification
func (s *Service) WithHasher(h PasswordAuthenticator) *Service {
	if h == nil {
		return s
	}
	s.hasher = h
	s.verifier = NewCredentialVerifier(s.accounts, h).WithLogger(s.logger)
	return s
}

// WithDefaultRole sets the role assigned to new accounts
func (s *Service) WithDefaultRole(roleID int64) *Service {
	s.defaultRoleID = roleID
	s.reconciler.defaultRoleID = roleID
	return s
}

// WithReconciler replaces the identity reconciler
func (s *Service) WithReconciler(r *IdentityReconciler) *Service {
	if r != nil {
		s.reconciler = r
	}
	return s
}

// WithAttributeMapping registers how a provider's profile maps onto accounts
func (s *Service) WithAttributeMapping(provider string, m AttributeMapping) *Service {
	s.reconciler.WithMapping(provider, m)
	return s
}

// WithLoginLimiter enables login throttling
func (s *Service) WithLoginLimiter(l *LoginLimiter) *Service {
	s.limiter = l
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Service) WithActivitySink(sink ActivitySink) *Service {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

func (s *Service) WithMetrics(m *Metrics) *Service {
	s.metrics = m
	return s
}

// Resolver exposes the permission resolver
func (s *Service) Resolver() *PermissionResolver {
	return s.resolver
}

// Register creates a local account and signs it in
func (s *Service) Register(ctx context.Context, payload RegisterPayload, meta SessionMetadata) (*AuthResult, error) {
	payload.Email = NormalizeEmail(payload.Email)
	if err := payload.Validate(); err != nil {
		return nil, validationError(err)
	}

	email := payload.Email
	taken, err := s.accounts.EmailTaken(ctx, email)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to check email availability")
	}
	if taken {
		return nil, ErrEmailTaken
	}

	phone, err := NormalizePhone(payload.Phone)
	if err != nil {
		return nil, validationError(err)
	}

	hash, err := s.hasher.HashPassword(payload.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	account, err := s.accounts.Create(ctx, &Account{
		Name:            payload.Name,
		Username:        payload.Username,
		DisplayName:     payload.Name,
		Email:           &email,
		Phone:           phone,
		PasswordHash:    hash,
		AuthProvider:    ProviderLocal,
		ProviderID:      email,
		RoleID:          s.defaultRoleID,
		RegistrationIP:  meta.IP,
		RegistrationGeo: meta.Geo,
		LastLoginIP:     meta.IP,
		LastLoginGeo:    meta.Geo,
		IsActiveSession: true,
		LastActiveAt:    &now,
	})
	if err != nil {
		if errors.IsCategory(err, errors.CategoryConflict) {
			return nil, ErrEmailTaken
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to create account")
	}

	s.emitAuthEvent(ctx, ActivityEventRegistered, ActorRef{Type: "account", ID: account.ID}, account.ID, map[string]any{
		"provider": ProviderLocal,
	})

	return s.issue(account, meta, false)
}

// Login verifies local credentials and issues a credential
func (s *Service) Login(ctx context.Context, email, password string, meta SessionMetadata) (*AuthResult, error) {
	if s.limiter != nil && !s.limiter.Allow(meta.IP) {
		s.metrics.login("throttled")
		return nil, ErrTooManyLoginAttempts
	}

	account, err := s.verifier.VerifyLocal(ctx, email, password)
	if err != nil {
		s.metrics.login("failure")
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, 0, map[string]any{
			"ip": meta.IP,
		})
		if errors.Is(err, ErrInvalidCredentials) {
			s.trackFailedAttempt(ctx, email)
		}
		return nil, err
	}

	prov := meta.Provenance()
	if err := s.accounts.MarkActive(ctx, account.ID, s.now(), &prov); err != nil {
		s.logger.Error("failed to mark account active", "account_id", account.ID, "error", err)
	}

	result, err := s.issue(account, meta, false)
	if err != nil {
		return nil, err
	}

	s.metrics.login("success")
	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, ActorRef{Type: "account", ID: account.ID}, account.ID, map[string]any{
		"ip":         meta.IP,
		"user_agent": meta.UserAgent,
	})
	return result, nil
}

// trackFailedAttempt issues the same single update for known and unknown
// emails so the response time does not reveal which one it was.
func (s *Service) trackFailedAttempt(ctx context.Context, email string) {
	if err := s.accounts.TrackFailedLogin(ctx, NormalizeEmail(email)); err != nil {
		s.logger.Warn("failed to track suspicious activity", "error", err)
	}
}

// CompleteExternal reconciles a provider identity and issues a credential
func (s *Service) CompleteExternal(ctx context.Context, provider, providerID string, attrs map[string]any, meta SessionMetadata) (*AuthResult, error) {
	account, isNew, err := s.reconciler.Reconcile(ctx, provider, providerID, attrs, meta.Provenance())
	if err != nil {
		return nil, err
	}

	result, err := s.issue(account, meta, isNew)
	if err != nil {
		return nil, err
	}

	s.metrics.login("external")
	s.emitAuthEvent(ctx, ActivityEventSocialLogin, ActorRef{Type: "social"}, account.ID, map[string]any{
		"provider":         provider,
		"provider_user_id": providerID,
		"is_new_account":   isNew,
	})
	return result, nil
}

func (s *Service) issue(account *Account, meta SessionMetadata, isNew bool) (*AuthResult, error) {
	cred, err := s.issuer.Issue(account, meta)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		Token:        cred.Token,
		ExpiresAt:    cred.ExpiresAt,
		Account:      account.Summary(),
		Sessions:     SessionViews(cred.Sessions, cred.Token),
		IsNewAccount: isNew,
	}, nil
}

// Logout revokes the current session and marks the account inactive
func (s *Service) Logout(ctx context.Context, p *Principal) error {
	if s.registry.Revoke(p.Account.ID, p.Token()) {
		s.metrics.sessionsRevoked(1)
	}
	if err := s.accounts.MarkInactive(ctx, p.Account.ID, s.now()); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to mark account inactive")
	}
	s.emitAuthEvent(ctx, ActivityEventLogout, ActorRef{Type: "account", ID: p.Account.ID}, p.Account.ID, nil)
	return nil
}

// Refresh swaps the current token for a new one
func (s *Service) Refresh(ctx context.Context, p *Principal, meta SessionMetadata) (*AuthResult, error) {
	cred, err := s.issuer.Refresh(p.Account, p.Token(), meta)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		Token:     cred.Token,
		ExpiresAt: cred.ExpiresAt,
		Account:   p.Account.Summary(),
		Sessions:  SessionViews(cred.Sessions, cred.Token),
	}, nil
}

// Me reports the account, its effective capabilities and its sessions
func (s *Service) Me(ctx context.Context, p *Principal) (*MeResult, error) {
	profile, err := s.resolver.Load(ctx, p.Account)
	if err != nil {
		return nil, err
	}
	return &MeResult{
		Account:        p.Account.Summary(),
		RoleName:       profile.RoleName,
		Capabilities:   EffectiveCapabilities(profile),
		CurrentSession: p.Session.View(p.Token()),
		ActiveSessions: len(s.registry.ListActive(p.Account.ID)),
	}, nil
}

// Sessions lists the account's active sessions with masked tokens
func (s *Service) Sessions(p *Principal) []SessionView {
	return SessionViews(s.registry.ListActive(p.Account.ID), p.Token())
}

// RevokeSession revokes one of the caller's sessions by its id
func (s *Service) RevokeSession(ctx context.Context, p *Principal, sessionID string) error {
	if !s.registry.RevokeByID(p.Account.ID, sessionID) {
		return ErrSessionNotFound
	}
	s.metrics.sessionsRevoked(1)
	s.emitAuthEvent(ctx, ActivityEventSessionRevoked, ActorRef{Type: "account", ID: p.Account.ID}, p.Account.ID, map[string]any{
		"session_id": sessionID,
	})
	return nil
}

// RevokeOtherSessions logs out every other device
func (s *Service) RevokeOtherSessions(ctx context.Context, p *Principal) []SessionView {
	remaining, removed := s.registry.RevokeAllExcept(p.Account.ID, p.Token())
	s.metrics.sessionsRevoked(removed)
	s.emitAuthEvent(ctx, ActivityEventSessionRevoked, ActorRef{Type: "account", ID: p.Account.ID}, p.Account.ID, map[string]any{
		"scope":   "others",
		"removed": removed,
	})
	return SessionViews(remaining, p.Token())
}

// RevokeAllSessions forcibly logs an account out of every device
func (s *Service) RevokeAllSessions(ctx context.Context, actor *Account, accountID int64) (int, error) {
	if _, err := s.targetAccount(ctx, accountID); err != nil {
		return 0, err
	}
	removed := s.registry.RevokeAll(accountID)
	s.metrics.sessionsRevoked(removed)
	if err := s.accounts.MarkInactive(ctx, accountID, s.now()); err != nil {
		s.logger.Warn("failed to mark account inactive", "account_id", accountID, "error", err)
	}
	s.emitAuthEvent(ctx, ActivityEventSessionRevoked, actorRef(actor), accountID, map[string]any{
		"scope":   "all",
		"removed": removed,
	})
	return removed, nil
}

// GrantCapability adds name to the account's overlay grants
func (s *Service) GrantCapability(ctx context.Context, actor *Account, accountID int64, name string) error {
	capability, err := s.overlayTarget(ctx, accountID, name)
	if err != nil {
		return err
	}
	if err := s.access.AddGrant(ctx, accountID, capability.ID); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to grant capability")
	}
	s.emitAuthEvent(ctx, ActivityEventCapabilityGranted, actorRef(actor), accountID, map[string]any{"capability": name})
	return nil
}

// RevokeGrant removes a previously granted capability
func (s *Service) RevokeGrant(ctx context.Context, actor *Account, accountID int64, name string) error {
	capability, err := s.overlayTarget(ctx, accountID, name)
	if err != nil {
		return err
	}
	removed, err := s.access.RemoveGrant(ctx, accountID, capability.ID)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to revoke grant")
	}
	if !removed {
		return ErrGrantNotFound
	}
	s.emitAuthEvent(ctx, ActivityEventCapabilityUngranted, actorRef(actor), accountID, map[string]any{"capability": name})
	return nil
}

// BlockCapability denies name to the account regardless of role or grants
func (s *Service) BlockCapability(ctx context.Context, actor *Account, accountID int64, name, reason string) error {
	capability, err := s.overlayTarget(ctx, accountID, name)
	if err != nil {
		return err
	}
	if err := s.access.AddBlock(ctx, accountID, capability.ID, reason); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to block capability")
	}
	s.emitAuthEvent(ctx, ActivityEventCapabilityBlocked, actorRef(actor), accountID, map[string]any{
		"capability": name,
		"reason":     reason,
	})
	return nil
}

// UnblockCapability lifts a block
func (s *Service) UnblockCapability(ctx context.Context, actor *Account, accountID int64, name string) error {
	capability, err := s.overlayTarget(ctx, accountID, name)
	if err != nil {
		return err
	}
	removed, err := s.access.RemoveBlock(ctx, accountID, capability.ID)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to unblock capability")
	}
	if !removed {
		return ErrBlockNotFound
	}
	s.emitAuthEvent(ctx, ActivityEventCapabilityUnblocked, actorRef(actor), accountID, map[string]any{"capability": name})
	return nil
}

// CapabilityReport returns the account's effective capabilities with sources
func (s *Service) CapabilityReport(ctx context.Context, accountID int64) (CapabilityReport, error) {
	account, err := s.targetAccount(ctx, accountID)
	if err != nil {
		return CapabilityReport{}, err
	}
	return s.resolver.Report(ctx, account)
}

// SecurityDetails returns provenance, suspicious activity count and sessions
func (s *Service) SecurityDetails(ctx context.Context, accountID int64) (*SecurityDetails, error) {
	account, err := s.targetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &SecurityDetails{
		Account:              account.Summary(),
		RegistrationIP:       account.RegistrationIP,
		RegistrationGeo:      account.RegistrationGeo,
		LastLoginIP:          account.LastLoginIP,
		LastLoginGeo:         account.LastLoginGeo,
		SuspiciousActivities: account.SuspiciousActivities,
		IsActiveSession:      account.IsActiveSession,
		LastActiveAt:         account.LastActiveAt,
		Sessions:             SessionViews(s.registry.ListActive(accountID), ""),
	}, nil
}

func (s *Service) targetAccount(ctx context.Context, accountID int64) (*Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrTargetAccountNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load account")
	}
	return account, nil
}

func (s *Service) overlayTarget(ctx context.Context, accountID int64, name string) (*Capability, error) {
	if _, err := s.targetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	capability, err := s.access.GetCapabilityByName(ctx, name)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrCapabilityNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load capability")
	}
	return capability, nil
}

func actorRef(actor *Account) ActorRef {
	if actor == nil {
		return ActorRef{Type: "system"}
	}
	return ActorRef{Type: "account", ID: actor.ID}
}

func (s *Service) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, accountID int64, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType:  eventType,
		Actor:      actor,
		AccountID:  accountID,
		Metadata:   metadata,
		OccurredAt: s.now(),
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error", "error", err)
	}
}
