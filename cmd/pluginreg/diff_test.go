package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/pluginreg/pkg/catalog"
	"github.com/jingkaihe/pluginreg/pkg/catalog/catalogtest"
)

func TestDiffExports(t *testing.T) {
	c := catalogtest.Load(t)
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, catalog.WriteExport(path, c))

	saved, err := catalog.ReadExport(path)
	require.NoError(t, err)
	current := c.Export()

	diff, changed, err := diffExports(path, saved, "current", &current)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, diff)

	updated := c.Export()
	updated.Catalog.Plugins = updated.Catalog.Plugins[:2]
	updated.Digest = "sha256:0000"

	diff, changed, err = diffExports(path, saved, "current", &updated)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Contains(t, diff, `-      "id": "code-review",`)
}
