package auth

import (
	"context"

	"github.com/goliatone/go-errors"
	"golang.org/x/sync/errgroup"
)

// PermissionResolver loads an account's access data and applies the pure
// resolution functions to it. It holds no cache: every call reflects the
// role and overlay state at call time.
type PermissionResolver struct {
	store  AccessStore
	logger Logger
}

// NewPermissionResolver creates a resolver reading from store
func NewPermissionResolver(store AccessStore) *PermissionResolver {
	return &PermissionResolver{store: store, logger: defLogger{}}
}

func (r *PermissionResolver) WithLogger(l Logger) *PermissionResolver {
	r.logger = normalizeLogger(l)
	return r
}

// Load fetches role, role capabilities, grants and blocks concurrently
func (r *PermissionResolver) Load(ctx context.Context, account *Account) (AccessProfile, error) {
	if account == nil {
		return AccessProfile{}, ErrAccountNotFound
	}

	profile := AccessProfile{AccountID: account.ID, RoleID: account.RoleID}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		role, err := r.store.GetRole(gctx, account.RoleID)
		if err != nil {
			if isNotFound(err) {
				// an account pointing at a deleted role keeps only its grants
				return nil
			}
			return err
		}
		profile.RoleName = role.Name
		return nil
	})
	g.Go(func() error {
		caps, err := r.store.RoleCapabilities(gctx, account.RoleID)
		profile.RoleCapabilities = caps
		return err
	})
	g.Go(func() error {
		grants, err := r.store.AccountGrants(gctx, account.ID)
		profile.Grants = grants
		return err
	})
	g.Go(func() error {
		blocks, err := r.store.AccountBlocks(gctx, account.ID)
		profile.Blocks = blocks
		return err
	})

	if err := g.Wait(); err != nil {
		return AccessProfile{}, errors.Wrap(err, errors.CategoryInternal, "failed to load access profile")
	}
	return profile, nil
}

// EffectiveCapabilities loads and resolves the account's capability names
func (r *PermissionResolver) EffectiveCapabilities(ctx context.Context, account *Account) ([]string, error) {
	profile, err := r.Load(ctx, account)
	if err != nil {
		return nil, err
	}
	return EffectiveCapabilities(profile), nil
}

// Authorize loads the account's access data and decides
func (r *PermissionResolver) Authorize(ctx context.Context, account *Account, required ...string) (Decision, error) {
	profile, err := r.Load(ctx, account)
	if err != nil {
		return Decision{}, err
	}
	return Authorize(profile, required), nil
}

// IsCapabilityBlocked reports whether name is blocked for account
func (r *PermissionResolver) IsCapabilityBlocked(ctx context.Context, account *Account, name string) (bool, error) {
	blocks, err := r.store.AccountBlocks(ctx, account.ID)
	if err != nil {
		return false, errors.Wrap(err, errors.CategoryInternal, "failed to load account blocks")
	}
	return IsCapabilityBlocked(AccessProfile{Blocks: blocks}, name), nil
}

// Report builds the operator facing capability report
func (r *PermissionResolver) Report(ctx context.Context, account *Account) (CapabilityReport, error) {
	profile, err := r.Load(ctx, account)
	if err != nil {
		return CapabilityReport{}, err
	}
	return BuildCapabilityReport(profile), nil
}
