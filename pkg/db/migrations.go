package db

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/jingkaihe/pluginreg/pkg/logger"
)

// Step is one direction of a migration, run inside the migration's
// transaction.
type Step func(ctx context.Context, tx *sqlx.Tx) error

// Migration is a schema change versioned by timestamp (YYYYMMDDHHmmss).
type Migration struct {
	Version     int64
	Description string
	Up          Step
	Down        Step // optional
}

// MigrationStatus reports whether a known migration has been applied.
type MigrationStatus struct {
	Version     int64      `db:"version" json:"version"`
	Description string     `db:"description" json:"description"`
	AppliedAt   *time.Time `db:"applied_at" json:"appliedAt,omitempty"`
}

// Applied reports whether the migration has run.
func (s MigrationStatus) Applied() bool { return s.AppliedAt != nil }

// MigrationRunner applies migrations and records them in schema_migrations.
type MigrationRunner struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewMigrationRunner creates a new migration runner
func NewMigrationRunner(db *sqlx.DB) *MigrationRunner {
	return &MigrationRunner{db: db, now: time.Now}
}

// sortMigrations returns migrations in version order and rejects duplicate
// versions and migrations without an Up step.
func sortMigrations(migrations []Migration) ([]Migration, error) {
	sorted := slices.SortedFunc(slices.Values(migrations), func(a, b Migration) int {
		return cmp.Compare(a.Version, b.Version)
	})
	for i, m := range sorted {
		if m.Up == nil {
			return nil, errors.Errorf("migration %d has no up step", m.Version)
		}
		if i > 0 && sorted[i-1].Version == m.Version {
			return nil, errors.Errorf("duplicate migration version %d", m.Version)
		}
	}
	return sorted, nil
}

// Run applies every pending migration in version order, each in its own
// transaction. A failed migration leaves no record and stops the run.
func (r *MigrationRunner) Run(ctx context.Context, migrations []Migration) error {
	sorted, err := sortMigrations(migrations)
	if err != nil {
		return err
	}
	if err := r.ensureMigrationsTable(ctx); err != nil {
		return err
	}

	applied, err := r.appliedSet(ctx)
	if err != nil {
		return err
	}

	for _, m := range sorted {
		if applied[m.Version] {
			continue
		}
		err := r.inTx(ctx, func(tx *sqlx.Tx) error {
			if err := m.Up(ctx, tx); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, applied_at, description) VALUES (?, ?, ?)",
				m.Version, r.now().UTC(), m.Description)
			return errors.Wrap(err, "failed to record migration")
		})
		if err != nil {
			return errors.Wrapf(err, "failed to apply migration %d: %s", m.Version, m.Description)
		}
		logger.G(ctx).WithField("version", m.Version).Debugf("applied migration: %s", m.Description)
	}

	return nil
}

// Rollback reverts the most recently applied migration. It is a no-op on a
// database with nothing applied.
func (r *MigrationRunner) Rollback(ctx context.Context, migrations []Migration) error {
	if err := r.ensureMigrationsTable(ctx); err != nil {
		return err
	}

	var version int64
	if err := r.db.GetContext(ctx, &version, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations"); err != nil {
		return errors.Wrap(err, "failed to get latest migration version")
	}
	if version == 0 {
		return nil
	}

	i := slices.IndexFunc(migrations, func(m Migration) bool { return m.Version == version })
	if i < 0 {
		return errors.Errorf("migration %d not found in provided migrations", version)
	}
	m := migrations[i]
	if m.Down == nil {
		return errors.Errorf("migration %d has no rollback function", version)
	}

	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := m.Down(ctx, tx); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = ?", m.Version)
		return errors.Wrap(err, "failed to remove migration record")
	})
	if err != nil {
		return errors.Wrapf(err, "failed to roll back migration %d: %s", m.Version, m.Description)
	}
	logger.G(ctx).WithField("version", m.Version).Debugf("rolled back migration: %s", m.Description)
	return nil
}

// Status lists migrations with their applied time, in version order.
func (r *MigrationRunner) Status(ctx context.Context, migrations []Migration) ([]MigrationStatus, error) {
	sorted, err := sortMigrations(migrations)
	if err != nil {
		return nil, err
	}
	if err := r.ensureMigrationsTable(ctx); err != nil {
		return nil, err
	}

	var rows []MigrationStatus
	if err := r.db.SelectContext(ctx, &rows, "SELECT version, description, applied_at FROM schema_migrations"); err != nil {
		return nil, errors.Wrap(err, "failed to read applied migrations")
	}
	appliedAt := make(map[int64]*time.Time, len(rows))
	for _, row := range rows {
		appliedAt[row.Version] = row.AppliedAt
	}

	out := make([]MigrationStatus, len(sorted))
	for i, m := range sorted {
		out[i] = MigrationStatus{Version: m.Version, Description: m.Description, AppliedAt: appliedAt[m.Version]}
	}
	return out, nil
}

// GetAppliedVersions returns the applied versions in ascending order.
func (r *MigrationRunner) GetAppliedVersions(ctx context.Context) ([]int64, error) {
	if err := r.ensureMigrationsTable(ctx); err != nil {
		return nil, err
	}

	var versions []int64
	err := r.db.SelectContext(ctx, &versions, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, errors.Wrap(err, "failed to get applied versions")
	}
	return versions, nil
}

func (r *MigrationRunner) ensureMigrationsTable(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME NOT NULL,
			description TEXT NOT NULL DEFAULT ''
		)
	`)
	return errors.Wrap(err, "failed to create schema_migrations table")
}

func (r *MigrationRunner) appliedSet(ctx context.Context) (map[int64]bool, error) {
	versions, err := r.GetAppliedVersions(ctx)
	if err != nil {
		return nil, err
	}
	applied := make(map[int64]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}

func (r *MigrationRunner) inTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "failed to commit migration")
}
