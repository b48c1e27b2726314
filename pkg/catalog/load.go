package catalog

import (
	"context"
	"fmt"
	"io/fs"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/jingkaihe/pluginreg/pkg/content"
	"github.com/jingkaihe/pluginreg/pkg/logger"
	"github.com/jingkaihe/pluginreg/pkg/manifest"
	"github.com/jingkaihe/pluginreg/pkg/telemetry"
)

const defaultConcurrency = 8

type loadOptions struct {
	concurrency int
	now         func() time.Time
	origin      string
}

// Option configures catalog loading.
type Option func(*loadOptions)

// WithConcurrency bounds parallel existence checks against sources that
// cannot list their files.
func WithConcurrency(n int) Option {
	return func(o *loadOptions) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithClock overrides the clock used for LoadedAt.
func WithClock(now func() time.Time) Option {
	return func(o *loadOptions) {
		o.now = now
	}
}

func newLoadOptions(opts []Option) *loadOptions {
	o := &loadOptions{
		concurrency: defaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Load reads the manifest at loc and builds a Catalog. It returns either a
// fully validated catalog or an error; manifest problems are reported as
// *manifest.ManifestError values, all of them at once.
func Load(ctx context.Context, loc content.Location, opts ...Option) (cat *Catalog, err error) {
	ctx, span := telemetry.Start(ctx, "catalog.load", telemetry.KeyManifest.String(loc.Manifest))
	defer telemetry.Finish(span, &err)

	data, err := loc.Source.ReadFile(ctx, loc.Manifest)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(ErrNotFound, "manifest %s", loc.Manifest)
		}
		return nil, errors.Wrap(err, "failed to read manifest")
	}

	m, err := manifest.Parse(data)
	if err != nil {
		return nil, err
	}

	origin := loc.Origin
	if origin == "" {
		origin = loc.Manifest
	}
	cat, err = New(ctx, m, loc.Source, append(opts, withOrigin(origin))...)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		telemetry.KeyPlugins.Int(cat.Len()),
		telemetry.KeyDigest.String(cat.Digest().String()),
	)
	return cat, nil
}

func withOrigin(origin string) Option {
	return func(o *loadOptions) {
		o.origin = origin
	}
}

// New builds a Catalog from an already parsed marketplace, checking every
// declared entity against src.
func New(ctx context.Context, m *manifest.Marketplace, src content.Source, opts ...Option) (*Catalog, error) {
	o := newLoadOptions(opts)

	if err := manifest.Check(m); err != nil {
		return nil, err
	}
	if err := checkReferences(ctx, m, src, o.concurrency); err != nil {
		return nil, err
	}

	c := &Catalog{
		name:     m.Name,
		origin:   o.origin,
		plugins:  make([]Plugin, 0, len(m.Plugins)),
		byID:     make(map[string]int, len(m.Plugins)),
		source:   src,
		loadedAt: o.now(),
	}
	if m.Owner != nil {
		owner := *m.Owner
		c.owner = &owner
	}
	if m.Metadata != nil {
		c.metadata = *m.Metadata
	}

	for i, entry := range m.Plugins {
		p := Plugin{
			ID:          entry.ID,
			Name:        entry.Name,
			Category:    entry.Category,
			Version:     entry.Version,
			Description: entry.Description,
			Author:      entry.Author,
			Keywords:    entry.Keywords,
			Source:      entry.SourceDir(),
			Entities: EntitySet{
				Agents:   cloneIDs(entry.Agents),
				Commands: cloneIDs(entry.Commands),
				Skills:   cloneIDs(entry.Skills),
			},
		}
		c.plugins = append(c.plugins, p.clone())
		c.byID[p.ID] = i
	}

	d, err := computeDigest(c.Snapshot())
	if err != nil {
		return nil, err
	}
	c.digest = d

	logger.G(ctx).
		WithField("manifest", c.origin).
		WithField("plugins", len(c.plugins)).
		WithField("digest", d.String()).
		Debug("catalog built")
	return c, nil
}

// declaredEntity is one entity reference from the manifest.
type declaredEntity struct {
	plugin      string
	pluginIndex int
	kind        manifest.EntityKind
	position    int
	id          string
	path        string
}

func (d declaredEntity) field() string {
	return fmt.Sprintf("/plugins/%d/%s/%d", d.pluginIndex, d.kind, d.position)
}

func declaredEntities(m *manifest.Marketplace) []declaredEntity {
	var out []declaredEntity
	for i, p := range m.Plugins {
		dir := p.SourceDir()
		for _, kind := range manifest.EntityKinds {
			for j, id := range p.Entities(kind) {
				out = append(out, declaredEntity{
					plugin:      p.ID,
					pluginIndex: i,
					kind:        kind,
					position:    j,
					id:          id,
					path:        content.EntityPath(dir, kind, id),
				})
			}
		}
	}
	return out
}

// checkReferences reports every declared entity without a definition.
func checkReferences(ctx context.Context, m *manifest.Marketplace, src content.Source, concurrency int) error {
	declared := declaredEntities(m)

	var (
		missing []declaredEntity
		err     error
	)
	lister, canList := src.(content.Lister)
	if canList {
		missing, err = missingByIndex(ctx, m, declared, lister)
	} else {
		missing, err = missingByStat(ctx, declared, src, concurrency)
	}
	if err != nil {
		return err
	}

	var errs manifest.Collector
	for _, d := range missing {
		msg := fmt.Sprintf("not defined, expected %s", d.path)
		if canList {
			if hint := definedElsewhere(ctx, m, lister, d); hint != "" {
				msg += "; " + hint
			}
		}
		errs.Add(&manifest.ManifestError{
			Kind:     manifest.DanglingReference,
			Plugin:   d.plugin,
			Category: d.kind,
			Entity:   d.id,
			Field:    d.field(),
			Message:  msg,
		})
	}
	return errs.Err()
}

// missingByIndex lists each plugin's definitions once and compares the
// declared ids against that index.
func missingByIndex(ctx context.Context, m *manifest.Marketplace, declared []declaredEntity, lister content.Lister) ([]declaredEntity, error) {
	type indexKey struct {
		plugin string
		kind   manifest.EntityKind
	}
	index := make(map[indexKey]map[string]bool)

	for _, p := range m.Plugins {
		for _, kind := range manifest.EntityKinds {
			if len(p.Entities(kind)) == 0 {
				continue
			}
			matches, err := lister.Glob(ctx, content.DefinitionPattern(p.SourceDir(), kind))
			if err != nil {
				return nil, errors.Wrapf(err, "failed to index %s of plugin %q", kind, p.ID)
			}
			defined := make(map[string]bool, len(matches))
			for _, match := range matches {
				defined[content.EntityID(kind, match)] = true
			}
			index[indexKey{plugin: p.ID, kind: kind}] = defined
		}
	}

	var missing []declaredEntity
	for _, d := range declared {
		if !index[indexKey{plugin: d.plugin, kind: d.kind}][d.id] {
			missing = append(missing, d)
		}
	}
	return missing, nil
}

// missingByStat probes each definition, bounded by concurrency.
func missingByStat(ctx context.Context, declared []declaredEntity, src content.Source, concurrency int) ([]declaredEntity, error) {
	found := make([]bool, len(declared))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, d := range declared {
		g.Go(func() error {
			err := src.Stat(gctx, d.path)
			switch {
			case err == nil:
				found[i] = true
			case errors.Is(err, fs.ErrNotExist):
			default:
				return errors.Wrapf(err, "failed to check %s", d.path)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var missing []declaredEntity
	for i, d := range declared {
		if !found[i] {
			missing = append(missing, d)
		}
	}
	return missing, nil
}

// definedElsewhere explains a dangling reference whose definition exists
// under another directory, usually another plugin's.
func definedElsewhere(ctx context.Context, m *manifest.Marketplace, lister content.Lister, d declaredEntity) string {
	matches, err := lister.Glob(ctx, content.AnywherePattern(d.kind, d.id))
	if err != nil || len(matches) == 0 {
		return ""
	}

	owners := make(map[string]string, len(m.Plugins))
	for _, p := range m.Plugins {
		owners[p.SourceDir()] = p.ID
	}

	dir := content.OwnerDir(d.kind, matches[0])
	if owner, ok := owners[dir]; ok && owner != d.plugin {
		return fmt.Sprintf("a definition exists in plugin %q, but plugins do not share entities", owner)
	}
	return fmt.Sprintf("a definition exists at %s, outside the plugin source", matches[0])
}
