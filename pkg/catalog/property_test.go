package catalog_test

import (
	"context"
	"maps"
	"slices"
	"testing"
	"testing/fstest"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/jingkaihe/pluginreg/pkg/catalog"
	"github.com/jingkaihe/pluginreg/pkg/catalog/catalogtest"
	"github.com/jingkaihe/pluginreg/pkg/content"
	"github.com/jingkaihe/pluginreg/pkg/manifest"
)

var (
	pluginIDGen = rapid.StringMatching(`[a-z][a-z0-9-]{0,10}`)
	entityIDGen = rapid.StringMatching(`[a-z][a-z0-9.-]{0,8}`)
)

func drawMarketplace(t *rapid.T) *manifest.Marketplace {
	ids := rapid.SliceOfNDistinct(pluginIDGen, 1, 6, rapid.ID[string]).Draw(t, "plugin-ids")

	m := &manifest.Marketplace{Name: "generated"}
	for _, id := range ids {
		entities := func(kind manifest.EntityKind) []string {
			return rapid.SliceOfNDistinct(entityIDGen, 0, 4, rapid.ID[string]).Draw(t, id+"-"+string(kind))
		}
		m.Plugins = append(m.Plugins, manifest.PluginEntry{
			ID:       id,
			Name:     "Plugin " + id,
			Category: rapid.SampledFrom([]string{"infrastructure", "languages", "quality"}).Draw(t, id+"-category"),
			Agents:   entities(manifest.KindAgent),
			Commands: entities(manifest.KindCommand),
			Skills:   entities(manifest.KindSkill),
		})
	}
	return m
}

func definitions(m *manifest.Marketplace) fstest.MapFS {
	fsys := fstest.MapFS{}
	for _, p := range m.Plugins {
		for _, kind := range manifest.EntityKinds {
			for _, id := range p.Entities(kind) {
				fsys[content.EntityPath(p.SourceDir(), kind, id)] = &fstest.MapFile{
					Data: []byte(catalogtest.EntityBody(kind, id)),
				}
			}
		}
	}
	return fsys
}

func TestPropertyPluginsMatchDeclaration(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := drawMarketplace(t)
		c, err := catalog.New(context.Background(), m, content.NewFSSource(definitions(m)))
		require.NoError(t, err)

		summaries := c.Plugins()
		require.Len(t, summaries, len(m.Plugins))
		for i, entry := range m.Plugins {
			assert.Equal(t, entry.ID, summaries[i].ID)
			assert.Equal(t, entry.Name, summaries[i].Name)
			assert.Equal(t, entry.Category, summaries[i].Category)
		}
	})
}

func TestPropertyDeclaredEntitiesLoad(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := drawMarketplace(t)
		c, err := catalog.New(context.Background(), m, content.NewFSSource(definitions(m)))
		require.NoError(t, err)

		for _, s := range c.Plugins() {
			set, err := c.EntitiesFor(s.ID)
			require.NoError(t, err)
			for _, kind := range manifest.EntityKinds {
				for _, id := range set.Get(kind) {
					_, err := c.LoadEntityBody(context.Background(), catalog.Ref{Plugin: s.ID, Kind: kind, Entity: id})
					assert.False(t, errors.Is(err, catalog.ErrNotFound), "%s/%s/%s", s.ID, kind, id)
					assert.NoError(t, err)
				}
			}
		}
	})
}

func TestPropertyMissingDefinitionNeverLoads(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := drawMarketplace(t)
		fsys := definitions(m)
		if len(fsys) == 0 {
			m.Plugins[0].Skills = []string{"seed"}
			fsys = definitions(m)
		}

		victim := rapid.SampledFrom(slices.Sorted(maps.Keys(fsys))).Draw(t, "removed")
		delete(fsys, victim)

		c, err := catalog.New(context.Background(), m, content.NewFSSource(fsys))
		require.Error(t, err)
		assert.Nil(t, c)

		errs := manifest.Errors(err)
		require.Len(t, errs, 1)
		assert.Equal(t, manifest.DanglingReference, errs[0].Kind)
		assert.Equal(t, victim, content.EntityPath(
			manifest.PluginEntry{ID: errs[0].Plugin}.SourceDir(), errs[0].Category, errs[0].Entity))

		// Restoring the definition makes the same manifest load.
		fsys[victim] = &fstest.MapFile{Data: []byte("restored")}
		_, err = catalog.New(context.Background(), m, content.NewFSSource(fsys))
		require.NoError(t, err)
	})
}

func TestPropertyLoadIsDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := drawMarketplace(t)
		src := content.NewFSSource(definitions(m))

		first, err := catalog.New(context.Background(), m, src)
		require.NoError(t, err)
		second, err := catalog.New(context.Background(), m, src)
		require.NoError(t, err)

		assert.Equal(t, first.Digest(), second.Digest())
		assert.Equal(t, first.Snapshot(), second.Snapshot())
	})
}

func TestPropertyUnknownIDNotFound(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := drawMarketplace(t)
		c, err := catalog.New(context.Background(), m, content.NewFSSource(definitions(m)))
		require.NoError(t, err)

		// Generated ids never contain an underscore.
		unknown := rapid.StringMatching(`[a-z]{1,6}_[a-z]{1,6}`).Draw(t, "unknown")
		_, err = c.Resolve(unknown)
		assert.True(t, errors.Is(err, catalog.ErrNotFound))
		assert.Empty(t, manifest.Errors(err))
	})
}
