// Package sqlite implements the durable tenant store over SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/neomorfeo/modgate/internal/domain"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

//go:embed migrations/*.sql
var migrations embed.FS

// Compile-time check: TenantStore implements domain.TenantStore.
var _ domain.TenantStore = (*TenantStore)(nil)

// TenantStore persists tenant records and their enabled-module sets. The
// enable order is kept in a position column so rehydrated tenants see the
// same insertion order the registry published.
type TenantStore struct {
	db *sql.DB
}

// New opens a SQLite database, runs migrations, and returns a ready store.
func New(dataSourceName string) (*TenantStore, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	// Enable foreign keys (off by default in SQLite).
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return NewFromDB(db)
}

// NewFromDB wraps an existing database connection, runs migrations, and
// returns a ready store. Use this when the *sql.DB has been pre-configured
// (e.g., with otelsql instrumentation).
func NewFromDB(db *sql.DB) (*TenantStore, error) {
	if err := runMigrations(db); err != nil {
		return nil, err
	}
	return &TenantStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *TenantStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for use by other adapters
// (e.g., river).
func (s *TenantStore) DB() *sql.DB {
	return s.db
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

const timeFormat = "2006-01-02T15:04:05.000Z"

// Insert writes a new tenant record with its enabled set.
func (s *TenantStore) Insert(ctx context.Context, t *domain.Tenant) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.InternalWrap("beginning insert", err)
	}
	defer tx.Rollback()

	td := t.Descriptor
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO tenants (id, name, description) VALUES (?, ?, ?)`,
		td.ID, td.Name, td.Description,
	); err != nil {
		if isUniqueViolation(err) {
			return domain.UserErrorf("Duplicate tenant id %s", td.ID)
		}
		return domain.InternalWrap("inserting tenant", err)
	}
	if err := insertModules(ctx, tx, td.ID, t.Activations()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return domain.InternalWrap("committing insert", err)
	}
	return nil
}

// UpdateDescriptor upserts the human-facing fields, leaving the module
// rows alone.
func (s *TenantStore) UpdateDescriptor(ctx context.Context, td domain.TenantDescriptor) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tenants (id, name, description) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name, description = excluded.description`,
		td.ID, td.Name, td.Description,
	)
	if err != nil {
		return domain.InternalWrap("updating tenant descriptor", err)
	}
	return nil
}

// UpdateModules replaces the tenant's enabled set.
func (s *TenantStore) UpdateModules(ctx context.Context, id string, enabled []domain.ModuleActivation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.InternalWrap("beginning module update", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tenants WHERE id = ?`, id,
	).Scan(&exists); err != nil {
		return domain.InternalWrap("checking tenant", err)
	}
	if exists == 0 {
		return domain.NotFoundf("tenant %s not found", id)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM tenant_modules WHERE tenant_id = ?`, id,
	); err != nil {
		return domain.InternalWrap("clearing tenant modules", err)
	}
	if err := insertModules(ctx, tx, id, enabled); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return domain.InternalWrap("committing module update", err)
	}
	return nil
}

// Delete removes the tenant and, via cascade, its module rows.
func (s *TenantStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tenants WHERE id = ?`, id)
	if err != nil {
		return domain.InternalWrap("deleting tenant", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return domain.InternalWrap("checking rows affected", err)
	}
	if rows == 0 {
		return domain.NotFoundf("tenant %s not found", id)
	}
	return nil
}

// List returns every stored tenant with its enabled set in enable order.
func (s *TenantStore) List(ctx context.Context) ([]*domain.Tenant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description FROM tenants ORDER BY id`)
	if err != nil {
		return nil, domain.InternalWrap("listing tenants", err)
	}
	defer rows.Close()

	var out []*domain.Tenant
	for rows.Next() {
		var td domain.TenantDescriptor
		if err := rows.Scan(&td.ID, &td.Name, &td.Description); err != nil {
			return nil, domain.InternalWrap("scanning tenant row", err)
		}
		enabled, err := s.loadModules(ctx, td.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.NewTenantWithModules(td, enabled))
	}
	if err := rows.Err(); err != nil {
		return nil, domain.InternalWrap("iterating tenant rows", err)
	}
	return out, nil
}

func (s *TenantStore) loadModules(ctx context.Context, id string) ([]domain.ModuleActivation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT module_id, enabled_at FROM tenant_modules
		 WHERE tenant_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, domain.InternalWrap("loading tenant modules", err)
	}
	defer rows.Close()

	var out []domain.ModuleActivation
	for rows.Next() {
		var a domain.ModuleActivation
		var enabledAt string
		if err := rows.Scan(&a.ModuleID, &enabledAt); err != nil {
			return nil, domain.InternalWrap("scanning module row", err)
		}
		a.EnabledAt, _ = time.Parse(timeFormat, enabledAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

func insertModules(ctx context.Context, tx *sql.Tx, id string, enabled []domain.ModuleActivation) error {
	for i, a := range enabled {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tenant_modules (tenant_id, module_id, position, enabled_at)
			 VALUES (?, ?, ?, ?)`,
			id, a.ModuleID, i, a.EnabledAt.UTC().Format(timeFormat),
		); err != nil {
			return domain.InternalWrap("inserting tenant module", err)
		}
	}
	return nil
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint
// violation.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
