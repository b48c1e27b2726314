package migrations

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/jingkaihe/pluginreg/pkg/db"
)

// Migration20260901100000CreateInstalls creates the installs table.
func Migration20260901100000CreateInstalls() db.Migration {
	return db.Migration{
		Version:     20260901100000,
		Description: "Create installs table",
		Up: func(ctx context.Context, tx *sqlx.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS installs (
					plugin_id TEXT PRIMARY KEY,
					version TEXT NOT NULL DEFAULT '',
					catalog_digest TEXT NOT NULL,
					origin TEXT NOT NULL DEFAULT '',
					installed_at DATETIME NOT NULL
				)
			`); err != nil {
				return errors.Wrap(err, "failed to create installs table")
			}
			return nil
		},
		Down: func(ctx context.Context, tx *sqlx.Tx) error {
			if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS installs"); err != nil {
				return errors.Wrap(err, "failed to drop installs table")
			}
			return nil
		},
	}
}
