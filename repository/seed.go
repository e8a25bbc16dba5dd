package repository

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-lms-auth"
)

// Seed upserts the catalog and returns the role ids keyed by name.
// Role baselines are replaced wholesale so capabilities removed from the
// catalog stop being granted.
func Seed(ctx context.Context, db bun.IDB, catalog auth.Catalog) (map[string]int64, error) {
	capabilityIDs := map[string]int64{}
	for _, def := range catalog.Capabilities {
		capability := &auth.Capability{Name: def.Name, Description: def.Description}
		_, err := db.NewInsert().
			Model(capability).
			On("CONFLICT (name) DO UPDATE").
			Set("description = EXCLUDED.description").
			Returning("id").
			Exec(ctx)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to seed capability "+def.Name)
		}
		capabilityIDs[def.Name] = capability.ID
	}

	roleIDs := map[string]int64{}
	for _, def := range catalog.Roles {
		role := &auth.Role{Name: def.Name, Description: def.Description}
		_, err := db.NewInsert().
			Model(role).
			On("CONFLICT (name) DO UPDATE").
			Set("description = EXCLUDED.description").
			Returning("id").
			Exec(ctx)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to seed role "+def.Name)
		}
		roleIDs[def.Name] = role.ID

		_, err = db.NewDelete().
			Model((*auth.RoleCapability)(nil)).
			Where("role_id = ?", role.ID).
			Exec(ctx)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to reset role capabilities")
		}

		links := make([]auth.RoleCapability, 0, len(def.Capabilities))
		for _, name := range def.Capabilities {
			id, ok := capabilityIDs[name]
			if !ok {
				return nil, errors.New("role "+def.Name+" references unknown capability "+name, errors.CategoryValidation)
			}
			links = append(links, auth.RoleCapability{RoleID: role.ID, CapabilityID: id})
		}
		if len(links) == 0 {
			continue
		}
		if _, err := db.NewInsert().Model(&links).Exec(ctx); err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to seed role capabilities")
		}
	}

	return roleIDs, nil
}
