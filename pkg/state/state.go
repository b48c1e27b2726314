// Package state records which plugins a host has installed and which
// entities it has activated. Only metadata is stored; entity bodies stay in
// the marketplace and are read through the catalog on activation.
package state

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jingkaihe/pluginreg/pkg/catalog"
	"github.com/jingkaihe/pluginreg/pkg/content"
	"github.com/jingkaihe/pluginreg/pkg/db"
	"github.com/jingkaihe/pluginreg/pkg/db/migrations"
	"github.com/jingkaihe/pluginreg/pkg/logger"
	"github.com/jingkaihe/pluginreg/pkg/manifest"
	"github.com/jingkaihe/pluginreg/pkg/telemetry"
)

// ErrNotInstalled is returned for plugins with no install record.
var ErrNotInstalled = errors.New("plugin is not installed")

// Installation is one installed plugin.
type Installation struct {
	PluginID      string    `db:"plugin_id" json:"pluginId"`
	Version       string    `db:"version" json:"version,omitempty"`
	CatalogDigest string    `db:"catalog_digest" json:"catalogDigest"`
	Origin        string    `db:"origin" json:"origin,omitempty"`
	InstalledAt   time.Time `db:"installed_at" json:"installedAt"`
}

// Activation is one recorded entity activation.
type Activation struct {
	ID            string    `db:"id" json:"id"`
	PluginID      string    `db:"plugin_id" json:"pluginId"`
	Category      string    `db:"category" json:"category"`
	EntityID      string    `db:"entity_id" json:"entityId"`
	CatalogDigest string    `db:"catalog_digest" json:"catalogDigest"`
	ActivatedAt   time.Time `db:"activated_at" json:"activatedAt"`
}

// Ref returns the activated entity reference.
func (a Activation) Ref() catalog.Ref {
	return catalog.Ref{Plugin: a.PluginID, Kind: manifest.EntityKind(a.Category), Entity: a.EntityID}
}

// Store persists install state in SQLite.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open opens the state database at path, migrating it as needed.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	sqlDB, err := db.OpenMigrated(ctx, path, migrations.All())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open state database %s", path)
	}

	s := &Store{db: sqlDB, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Install records plugin id from c as installed. Reinstalling refreshes the
// recorded version and digest.
func (s *Store) Install(ctx context.Context, c *catalog.Catalog, id string) (Installation, error) {
	p, err := c.Resolve(id)
	if err != nil {
		return Installation{}, err
	}

	inst := Installation{
		PluginID:      p.ID,
		Version:       p.Version,
		CatalogDigest: c.Digest().String(),
		Origin:        c.Origin(),
		InstalledAt:   s.now().UTC(),
	}

	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO installs (plugin_id, version, catalog_digest, origin, installed_at)
		VALUES (:plugin_id, :version, :catalog_digest, :origin, :installed_at)
		ON CONFLICT(plugin_id) DO UPDATE SET
			version = excluded.version,
			catalog_digest = excluded.catalog_digest,
			origin = excluded.origin,
			installed_at = excluded.installed_at
	`, inst)
	if err != nil {
		return Installation{}, errors.Wrapf(err, "failed to record install of %s", id)
	}

	logger.G(ctx).WithFields(logrus.Fields{"plugin": id, "digest": inst.CatalogDigest}).Info("plugin installed")
	return inst, nil
}

// Uninstall removes the install record of id.
func (s *Store) Uninstall(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM installs WHERE plugin_id = ?", id)
	if err != nil {
		return errors.Wrapf(err, "failed to uninstall %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to count removed installs")
	}
	if n == 0 {
		return errors.Wrapf(ErrNotInstalled, "plugin %q", id)
	}

	logger.G(ctx).WithField("plugin", id).Info("plugin uninstalled")
	return nil
}

// Installation returns the install record of id.
func (s *Store) Installation(ctx context.Context, id string) (Installation, error) {
	var inst Installation
	err := s.db.GetContext(ctx, &inst, `
		SELECT plugin_id, version, catalog_digest, origin, installed_at
		FROM installs WHERE plugin_id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Installation{}, errors.Wrapf(ErrNotInstalled, "plugin %q", id)
		}
		return Installation{}, errors.Wrapf(err, "failed to load install of %s", id)
	}
	return inst, nil
}

// Installed lists install records by plugin id.
func (s *Store) Installed(ctx context.Context) ([]Installation, error) {
	var out []Installation
	err := s.db.SelectContext(ctx, &out, `
		SELECT plugin_id, version, catalog_digest, origin, installed_at
		FROM installs ORDER BY plugin_id`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list installs")
	}
	return out, nil
}

// Activate loads the body of ref from c and records the activation. The
// owning plugin must be installed.
func (s *Store) Activate(ctx context.Context, c *catalog.Catalog, ref catalog.Ref) (_ *content.Body, _ Activation, err error) {
	ctx, span := telemetry.Start(ctx, "state.activate", telemetry.KeyRef.String(ref.String()))
	defer telemetry.Finish(span, &err)

	if _, err := s.Installation(ctx, ref.Plugin); err != nil {
		return nil, Activation{}, err
	}

	body, err := c.LoadEntityBody(ctx, ref)
	if err != nil {
		return nil, Activation{}, err
	}

	act := Activation{
		ID:            uuid.NewString(),
		PluginID:      ref.Plugin,
		Category:      string(ref.Kind),
		EntityID:      ref.Entity,
		CatalogDigest: c.Digest().String(),
		ActivatedAt:   s.now().UTC(),
	}
	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO activations (id, plugin_id, category, entity_id, catalog_digest, activated_at)
		VALUES (:id, :plugin_id, :category, :entity_id, :catalog_digest, :activated_at)
	`, act)
	if err != nil {
		return nil, Activation{}, errors.Wrapf(err, "failed to record activation of %s", ref)
	}

	logger.G(ctx).WithFields(logrus.Fields{"ref": ref.String(), "activation": act.ID}).Debug("entity activated")
	return body, act, nil
}

// History returns the most recent activations, newest first. A limit of
// zero or less returns all of them.
func (s *Store) History(ctx context.Context, limit int) ([]Activation, error) {
	if limit <= 0 {
		limit = -1
	}

	var out []Activation
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, plugin_id, category, entity_id, catalog_digest, activated_at
		FROM activations ORDER BY activated_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list activations")
	}
	return out, nil
}
