package repository

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-lms-auth"
)

type tableSpec struct {
	model       any
	foreignKeys []string
}

var tables = []tableSpec{
	{model: (*auth.Role)(nil)},
	{model: (*auth.Capability)(nil)},
	{
		model: (*auth.Account)(nil),
		foreignKeys: []string{
			`("role_id") REFERENCES "roles" ("id")`,
		},
	},
	{
		model: (*auth.RoleCapability)(nil),
		foreignKeys: []string{
			`("role_id") REFERENCES "roles" ("id") ON DELETE CASCADE`,
			`("capability_id") REFERENCES "capabilities" ("id") ON DELETE CASCADE`,
		},
	},
	{
		model: (*auth.AccountGrant)(nil),
		foreignKeys: []string{
			`("account_id") REFERENCES "accounts" ("id") ON DELETE CASCADE`,
			`("capability_id") REFERENCES "capabilities" ("id") ON DELETE CASCADE`,
		},
	},
	{
		model: (*auth.AccountBlock)(nil),
		foreignKeys: []string{
			`("account_id") REFERENCES "accounts" ("id") ON DELETE CASCADE`,
			`("capability_id") REFERENCES "capabilities" ("id") ON DELETE CASCADE`,
		},
	},
}

type indexSpec struct {
	model   any
	name    string
	columns []string
}

var indexes = []indexSpec{
	{(*auth.Account)(nil), "idx_accounts_role_id", []string{"role_id"}},
	{(*auth.RoleCapability)(nil), "idx_role_capabilities_capability_id", []string{"capability_id"}},
	{(*auth.AccountGrant)(nil), "idx_account_grants_capability_id", []string{"capability_id"}},
	{(*auth.AccountBlock)(nil), "idx_account_blocks_capability_id", []string{"capability_id"}},
}

// Migrate creates the schema. It is safe to run more than once.
func Migrate(ctx context.Context, db bun.IDB) error {
	for _, t := range tables {
		q := db.NewCreateTable().Model(t.model).IfNotExists()
		for _, fk := range t.foreignKeys {
			q = q.ForeignKey(fk)
		}
		if _, err := q.Exec(ctx); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to create table")
		}
	}

	for _, idx := range indexes {
		_, err := db.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			Column(idx.columns...).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to create index "+idx.name)
		}
	}

	return nil
}
