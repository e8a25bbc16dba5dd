package repository

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-lms-auth"
)

// AccessRepository implements auth.AccessStore over the explicit join tables
// role_capabilities, account_grants and account_blocks.
type AccessRepository struct {
	db  *bun.DB
	now func() time.Time
}

var _ auth.AccessStore = (*AccessRepository)(nil)

func NewAccessRepository(db *bun.DB) *AccessRepository {
	return &AccessRepository{db: db, now: time.Now}
}

func (r *AccessRepository) GetRole(ctx context.Context, id int64) (*auth.Role, error) {
	role := new(auth.Role)
	if err := r.db.NewSelect().Model(role).Where("?TableAlias.id = ?", id).Scan(ctx); err != nil {
		return nil, notFound(err, "role not found")
	}
	return role, nil
}

// GetRoleByName is used by seeding and configuration checks
func (r *AccessRepository) GetRoleByName(ctx context.Context, name string) (*auth.Role, error) {
	role := new(auth.Role)
	if err := r.db.NewSelect().Model(role).Where("?TableAlias.name = ?", name).Scan(ctx); err != nil {
		return nil, notFound(err, "role not found")
	}
	return role, nil
}

func (r *AccessRepository) RoleCapabilities(ctx context.Context, roleID int64) ([]string, error) {
	var names []string
	err := r.db.NewSelect().
		Model((*auth.Capability)(nil)).
		Column("cap.name").
		Join("JOIN role_capabilities AS rc ON rc.capability_id = cap.id").
		Where("rc.role_id = ?", roleID).
		OrderExpr("cap.name ASC").
		Scan(ctx, &names)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load role capabilities")
	}
	return names, nil
}

func (r *AccessRepository) AccountGrants(ctx context.Context, accountID int64) ([]string, error) {
	var names []string
	err := r.db.NewSelect().
		Model((*auth.Capability)(nil)).
		Column("cap.name").
		Join("JOIN account_grants AS ag ON ag.capability_id = cap.id").
		Where("ag.account_id = ?", accountID).
		OrderExpr("cap.name ASC").
		Scan(ctx, &names)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load account grants")
	}
	return names, nil
}

func (r *AccessRepository) AccountBlocks(ctx context.Context, accountID int64) ([]string, error) {
	var names []string
	err := r.db.NewSelect().
		Model((*auth.Capability)(nil)).
		Column("cap.name").
		Join("JOIN account_blocks AS ab ON ab.capability_id = cap.id").
		Where("ab.account_id = ?", accountID).
		OrderExpr("cap.name ASC").
		Scan(ctx, &names)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load account blocks")
	}
	return names, nil
}

func (r *AccessRepository) GetCapabilityByName(ctx context.Context, name string) (*auth.Capability, error) {
	capability := new(auth.Capability)
	if err := r.db.NewSelect().Model(capability).Where("?TableAlias.name = ?", name).Scan(ctx); err != nil {
		return nil, notFound(err, "capability not found")
	}
	return capability, nil
}

// AddGrant is idempotent
func (r *AccessRepository) AddGrant(ctx context.Context, accountID, capabilityID int64) error {
	_, err := r.db.NewInsert().
		Model(&auth.AccountGrant{
			AccountID:    accountID,
			CapabilityID: capabilityID,
			CreatedAt:    r.now(),
		}).
		On("CONFLICT (account_id, capability_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to insert grant")
	}
	return nil
}

func (r *AccessRepository) RemoveGrant(ctx context.Context, accountID, capabilityID int64) (bool, error) {
	res, err := r.db.NewDelete().
		Model((*auth.AccountGrant)(nil)).
		Where("account_id = ?", accountID).
		Where("capability_id = ?", capabilityID).
		Exec(ctx)
	if err != nil {
		return false, errors.Wrap(err, errors.CategoryInternal, "failed to delete grant")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, errors.CategoryInternal, "failed to delete grant")
	}
	return n > 0, nil
}

// AddBlock is idempotent and keeps the latest reason
func (r *AccessRepository) AddBlock(ctx context.Context, accountID, capabilityID int64, reason string) error {
	_, err := r.db.NewInsert().
		Model(&auth.AccountBlock{
			AccountID:    accountID,
			CapabilityID: capabilityID,
			Reason:       reason,
			CreatedAt:    r.now(),
		}).
		On("CONFLICT (account_id, capability_id) DO UPDATE").
		Set("reason = EXCLUDED.reason").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to insert block")
	}
	return nil
}

func (r *AccessRepository) RemoveBlock(ctx context.Context, accountID, capabilityID int64) (bool, error) {
	res, err := r.db.NewDelete().
		Model((*auth.AccountBlock)(nil)).
		Where("account_id = ?", accountID).
		Where("capability_id = ?", capabilityID).
		Exec(ctx)
	if err != nil {
		return false, errors.Wrap(err, errors.CategoryInternal, "failed to delete block")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, errors.CategoryInternal, "failed to delete block")
	}
	return n > 0, nil
}
