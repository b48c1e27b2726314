package migrations

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/jingkaihe/pluginreg/pkg/db"
)

// Migration20260901100001CreateActivations creates the activation log.
// Rows outlive uninstalls so history stays complete.
func Migration20260901100001CreateActivations() db.Migration {
	return db.Migration{
		Version:     20260901100001,
		Description: "Create activations table",
		Up: func(ctx context.Context, tx *sqlx.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS activations (
					id TEXT PRIMARY KEY,
					plugin_id TEXT NOT NULL,
					category TEXT NOT NULL,
					entity_id TEXT NOT NULL,
					catalog_digest TEXT NOT NULL,
					activated_at DATETIME NOT NULL
				)
			`); err != nil {
				return errors.Wrap(err, "failed to create activations table")
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE INDEX IF NOT EXISTS idx_activations_activated_at ON activations(activated_at DESC)
			`); err != nil {
				return errors.Wrap(err, "failed to create activations index")
			}
			return nil
		},
		Down: func(ctx context.Context, tx *sqlx.Tx) error {
			if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS activations"); err != nil {
				return errors.Wrap(err, "failed to drop activations table")
			}
			return nil
		},
	}
}
