package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinea-his/clinea-his/internal/shared"
)

// Grant columns were added in schema version 2; deployments still on an
// older schema treat every grant row as a full grant.
const granularSchemaVersion = 2

// Repository persists the capability catalog and role grants.
type Repository struct {
	pool     *pgxpool.Pool
	logger   *slog.Logger
	granular bool
}

// NewRepository constructs a Repository. The schema version is read once:
// when the granular grant columns are not yet present the repository serves
// full-grant rows, which is logged here rather than on every load.
func NewRepository(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) (*Repository, error) {
	var version int
	err := pool.QueryRow(ctx, `SELECT version FROM schema_info LIMIT 1`).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			version = 0
		} else {
			return nil, fmt.Errorf("authz: read schema version: %w", err)
		}
	}
	r := &Repository{pool: pool, logger: logger, granular: version >= granularSchemaVersion}
	if !r.granular && logger != nil {
		logger.Warn("granular grant columns missing, serving full grants",
			slog.Int("schema_version", version))
	}
	return r, nil
}

// Granular reports whether per-grant booleans are available.
func (r *Repository) Granular() bool {
	return r.granular
}

// GrantsForRole loads the grant set for one role, keyed by capability code.
func (r *Repository) GrantsForRole(ctx context.Context, roleID int64) (map[string]shared.GrantRights, error) {
	query := `SELECT capability_code, can_create, can_update, can_delete FROM role_grants WHERE role_id = $1`
	if !r.granular {
		query = `SELECT capability_code, TRUE, TRUE, TRUE FROM role_grants WHERE role_id = $1`
	}
	rows, err := r.pool.Query(ctx, query, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	grants := make(map[string]shared.GrantRights)
	for rows.Next() {
		var code string
		var rights shared.GrantRights
		if err := rows.Scan(&code, &rights.CanCreate, &rights.CanUpdate, &rights.CanDelete); err != nil {
			return nil, err
		}
		grants[code] = rights
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grants, nil
}

// ListCapabilities returns the stored catalog ordered by category and rank.
func (r *Repository) ListCapabilities(ctx context.Context) ([]Capability, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, label, category, icon, sort_order, is_active FROM capabilities ORDER BY category, sort_order`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var caps []Capability
	for rows.Next() {
		var c Capability
		if err := rows.Scan(&c.ID, &c.Code, &c.Label, &c.Category, &c.Icon, &c.SortOrder, &c.IsActive); err != nil {
			return nil, err
		}
		caps = append(caps, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return caps, nil
}

// ReplaceGrants swaps the full grant set for a role.
func (r *Repository) ReplaceGrants(ctx context.Context, roleID int64, grants []Grant) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM role_grants WHERE role_id = $1`, roleID); err != nil {
		return err
	}
	for _, g := range grants {
		if !Known(g.CapabilityCode) {
			return ErrUnknownCapability
		}
		if r.granular {
			_, err = tx.Exec(ctx,
				`INSERT INTO role_grants (role_id, capability_code, can_create, can_update, can_delete) VALUES ($1, $2, $3, $4, $5)`,
				roleID, g.CapabilityCode, g.CanCreate, g.CanUpdate, g.CanDelete)
		} else {
			_, err = tx.Exec(ctx,
				`INSERT INTO role_grants (role_id, capability_code) VALUES ($1, $2)`,
				roleID, g.CapabilityCode)
		}
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// SetGrantVerb toggles a single stored right on an existing grant.
func (r *Repository) SetGrantVerb(ctx context.Context, roleID int64, code Code, verb Verb, allowed bool) error {
	if !Known(code) {
		return ErrUnknownCapability
	}
	if !r.granular {
		return nil
	}
	var column string
	switch verb {
	case VerbCreate:
		column = "can_create"
	case VerbUpdate:
		column = "can_update"
	case VerbDelete:
		column = "can_delete"
	default:
		return ErrInvalidVerb
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE role_grants SET `+column+` = $1 WHERE role_id = $2 AND capability_code = $3`,
		allowed, roleID, code)
	return err
}

// SeedCatalog upserts the capability catalog so labels and ordering follow
// the current build while preserving row identities.
func (r *Repository) SeedCatalog(ctx context.Context) error {
	for _, d := range Catalog() {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO capabilities (code, label, category, icon, sort_order, is_active)
			VALUES ($1, $2, $3, $4, $5, TRUE)
			ON CONFLICT (code) DO UPDATE
			SET label = EXCLUDED.label,
			    category = EXCLUDED.category,
			    icon = EXCLUDED.icon,
			    sort_order = EXCLUDED.sort_order`,
			d.Code, d.Label, d.Category, d.Icon, d.SortOrder)
		if err != nil {
			return fmt.Errorf("authz: seed %s: %w", d.Code, err)
		}
	}
	return nil
}
