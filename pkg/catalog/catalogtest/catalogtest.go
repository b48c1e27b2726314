// Package catalogtest writes marketplace fixtures for tests.
package catalogtest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/pluginreg/pkg/catalog"
	"github.com/jingkaihe/pluginreg/pkg/content"
	"github.com/jingkaihe/pluginreg/pkg/manifest"
)

// ManifestPath is where fixtures place the manifest, relative to the root.
const ManifestPath = ".claude-plugin/marketplace.yaml"

// Manifest is the standard fixture manifest.
const Manifest = `name: test-marketplace
owner:
  name: Platform Team
plugins:
  - id: kubernetes-operations
    name: Kubernetes Operations
    category: infrastructure
    version: 1.2.0
    skills: [k8s-manifests, helm-charts, gitops, security-policies]
  - id: python-development
    name: Python Development
    category: languages
    agents: [python-pro]
    commands: [python-scaffold]
    skills: [async-patterns]
  - id: code-review
    name: Code Review
    category: quality
    agents: [reviewer]
    commands: [review]
`

// WriteFile writes body to root/rel, creating parent directories.
func WriteFile(t testing.TB, root, rel, body string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
}

// WriteManifest writes manifest text to the fixture manifest path and
// returns its absolute path.
func WriteManifest(t testing.TB, root, text string) string {
	t.Helper()
	WriteFile(t, root, ManifestPath, text)
	return filepath.Join(root, filepath.FromSlash(ManifestPath))
}

// EntityBody returns the fixture body of an entity.
func EntityBody(kind manifest.EntityKind, id string) string {
	return fmt.Sprintf("---\nname: %s\ndescription: %s %s\n---\n\n# %s\n\nBody of %s.\n",
		id, id, kind.Singular(), id, id)
}

// WriteEntity writes the fixture body of one entity under the default
// plugin source directory.
func WriteEntity(t testing.TB, root, plugin string, kind manifest.EntityKind, id string) {
	t.Helper()
	dir := manifest.PluginEntry{ID: plugin}.SourceDir()
	WriteFile(t, root, content.EntityPath(dir, kind, id), EntityBody(kind, id))
}

// WriteEntities writes a body for every entity m declares.
func WriteEntities(t testing.TB, root string, m *manifest.Marketplace) {
	t.Helper()
	for _, p := range m.Plugins {
		for _, kind := range manifest.EntityKinds {
			for _, id := range p.Entities(kind) {
				WriteFile(t, root, content.EntityPath(p.SourceDir(), kind, id), EntityBody(kind, id))
			}
		}
	}
}

// Marketplace writes a complete marketplace for text into a temporary
// directory and returns the root and manifest path.
func Marketplace(t testing.TB, text string) (root, manifestPath string) {
	t.Helper()
	root = t.TempDir()
	m, err := manifest.Parse([]byte(text))
	require.NoError(t, err)
	WriteEntities(t, root, m)
	return root, WriteManifest(t, root, text)
}

// Location opens the fixture manifest.
func Location(t testing.TB, manifestPath string) content.Location {
	t.Helper()
	loc, err := content.Open(manifestPath, "")
	require.NoError(t, err)
	return loc
}

// Load writes the standard marketplace and loads it.
func Load(t testing.TB) *catalog.Catalog {
	t.Helper()
	_, manifestPath := Marketplace(t, Manifest)
	c, err := catalog.Load(context.Background(), Location(t, manifestPath))
	require.NoError(t, err)
	return c
}
