package repository

import (
	"context"
	"database/sql"
	"log"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-lms-auth"
)

// Manager groups the stores sharing one database handle
type Manager struct {
	db       *bun.DB
	accounts *AccountRepository
	access   *AccessRepository
}

func NewManager(db *bun.DB) *Manager {
	return &Manager{
		db:       db,
		accounts: NewAccountRepository(db),
		access:   NewAccessRepository(db),
	}
}

func (m *Manager) Validate() error {
	if m.db == nil {
		return errors.New("repository database should be initialized", errors.CategoryInternal)
	}

	if m.accounts == nil {
		return errors.New("repository accounts should be initialized", errors.CategoryInternal)
	}

	if m.access == nil {
		return errors.New("repository access should be initialized", errors.CategoryInternal)
	}

	return nil
}

func (m *Manager) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m *Manager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

// Migrate creates the schema
func (m *Manager) Migrate(ctx context.Context) error {
	return m.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return Migrate(ctx, tx)
	})
}

// Seed loads the role catalog inside one transaction
func (m *Manager) Seed(ctx context.Context, catalog auth.Catalog) (map[string]int64, error) {
	var roleIDs map[string]int64
	err := m.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		ids, err := Seed(ctx, tx, catalog)
		roleIDs = ids
		return err
	})
	return roleIDs, err
}

func (m *Manager) Accounts() *AccountRepository {
	return m.accounts
}

func (m *Manager) Access() *AccessRepository {
	return m.access
}

func (m *Manager) DB() *bun.DB {
	return m.db
}

func (m *Manager) Close() error {
	return m.db.Close()
}
