package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-lms-auth"
)

// AccountRepository implements auth.AccountStore using Bun.
type AccountRepository struct {
	db  *bun.DB
	now func() time.Time
}

var _ auth.AccountStore = (*AccountRepository)(nil)

// NewAccountRepository creates a new repository.
func NewAccountRepository(db *bun.DB) *AccountRepository {
	return &AccountRepository{db: db, now: time.Now}
}

func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*auth.Account, error) {
	return r.GetByIDTx(ctx, r.db, id)
}

func (r *AccountRepository) GetByIDTx(ctx context.Context, tx bun.IDB, id int64) (*auth.Account, error) {
	account := new(auth.Account)
	err := tx.NewSelect().
		Model(account).
		Where("?TableAlias.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "account not found")
	}
	return account, nil
}

// GetLocalByEmail only matches accounts registered with a password
func (r *AccountRepository) GetLocalByEmail(ctx context.Context, email string) (*auth.Account, error) {
	account := new(auth.Account)
	err := r.db.NewSelect().
		Model(account).
		Where("?TableAlias.email = ?", email).
		Where("?TableAlias.auth_provider = ?", auth.ProviderLocal).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "account not found")
	}
	return account, nil
}

func (r *AccountRepository) GetByProvider(ctx context.Context, provider, providerID string) (*auth.Account, error) {
	return r.GetByProviderTx(ctx, r.db, provider, providerID)
}

func (r *AccountRepository) GetByProviderTx(ctx context.Context, tx bun.IDB, provider, providerID string) (*auth.Account, error) {
	account := new(auth.Account)
	err := tx.NewSelect().
		Model(account).
		Where("?TableAlias.auth_provider = ?", provider).
		Where("?TableAlias.provider_id = ?", providerID).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "account not found")
	}
	return account, nil
}

// EmailTaken reports whether any account, local or external, holds email
func (r *AccountRepository) EmailTaken(ctx context.Context, email string) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*auth.Account)(nil)).
		Where("?TableAlias.email = ?", email).
		Exists(ctx)
	if err != nil {
		return false, errors.Wrap(err, errors.CategoryInternal, "failed to check email")
	}
	return exists, nil
}

func (r *AccountRepository) Create(ctx context.Context, account *auth.Account) (*auth.Account, error) {
	return r.CreateTx(ctx, r.db, account)
}

func (r *AccountRepository) CreateTx(ctx context.Context, tx bun.IDB, account *auth.Account) (*auth.Account, error) {
	now := r.now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	if account.ProviderMetadata == nil {
		account.ProviderMetadata = map[string]any{}
	}

	if _, err := tx.NewInsert().Model(account).Returning("*").Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, errors.Wrap(err, errors.CategoryConflict, "account already exists").
				WithCode(errors.CodeConflict)
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to insert account")
	}
	return account, nil
}

// UpdateProfile persists the fields refreshed on every external login
func (r *AccountRepository) UpdateProfile(ctx context.Context, account *auth.Account) error {
	account.UpdatedAt = r.now()
	res, err := r.db.NewUpdate().
		Model(account).
		Column(
			"name",
			"username",
			"display_name",
			"avatar",
			"provider_metadata",
			"last_login_ip",
			"last_login_geo",
			"is_active_session",
			"last_active_at",
			"updated_at",
		).
		WherePK().
		Exec(ctx)
	return affected(res, err, "failed to update account")
}

func (r *AccountRepository) MarkActive(ctx context.Context, id int64, at time.Time, prov *auth.Provenance) error {
	q := r.db.NewUpdate().
		Model((*auth.Account)(nil)).
		Set("is_active_session = ?", true).
		Set("last_active_at = ?", at).
		Set("updated_at = ?", r.now()).
		Where("id = ?", id)

	if prov != nil {
		q = q.Set("last_login_ip = ?", prov.IP)
		if prov.Geo != nil {
			q = q.Set("last_login_geo = ?", prov.Geo)
		}
	}

	res, err := q.Exec(ctx)
	return affected(res, err, "failed to mark account active")
}

func (r *AccountRepository) MarkInactive(ctx context.Context, id int64, at time.Time) error {
	res, err := r.db.NewUpdate().
		Model((*auth.Account)(nil)).
		Set("is_active_session = ?", false).
		Set("last_active_at = ?", at).
		Set("updated_at = ?", r.now()).
		Where("id = ?", id).
		Exec(ctx)
	return affected(res, err, "failed to mark account inactive")
}

func (r *AccountRepository) TrackFailedLogin(ctx context.Context, email string) error {
	_, err := r.db.NewUpdate().
		Model((*auth.Account)(nil)).
		Set("suspicious_activities = suspicious_activities + 1").
		Set("updated_at = ?", r.now()).
		Where("email = ?", email).
		Where("auth_provider = ?", auth.ProviderLocal).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to track suspicious activity")
	}
	return nil
}

func affected(res sql.Result, err error, message string) error {
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, message)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, message)
	}
	if n == 0 {
		return errors.New("account not found", errors.CategoryNotFound).
			WithCode(errors.CodeNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
