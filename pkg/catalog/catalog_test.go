package catalog_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/pluginreg/pkg/catalog"
	"github.com/jingkaihe/pluginreg/pkg/catalog/catalogtest"
	"github.com/jingkaihe/pluginreg/pkg/content"
	"github.com/jingkaihe/pluginreg/pkg/manifest"
)

func TestLoadKubernetesOperations(t *testing.T) {
	c := catalogtest.Load(t)

	p, err := c.Resolve("kubernetes-operations")
	require.NoError(t, err)
	assert.Equal(t, "Kubernetes Operations", p.Name)
	assert.Equal(t, "infrastructure", p.Category)
	assert.Equal(t, "1.2.0", p.Version)
	assert.Equal(t, "plugins/kubernetes-operations", p.Source)

	set, err := c.EntitiesFor("kubernetes-operations")
	require.NoError(t, err)
	assert.Equal(t, []string{"k8s-manifests", "helm-charts", "gitops", "security-policies"}, set.Skills)
	assert.Empty(t, set.Agents)
	assert.Empty(t, set.Commands)

	assert.Equal(t, "test-marketplace", c.Name())
	require.NotNil(t, c.Owner())
	assert.Equal(t, "Platform Team", c.Owner().Name)
}

func TestPluginsInDeclarationOrder(t *testing.T) {
	c := catalogtest.Load(t)

	summaries := c.Plugins()
	ids := make([]string, len(summaries))
	for i, s := range summaries {
		ids[i] = s.ID
	}
	assert.Equal(t, []string{"kubernetes-operations", "python-development", "code-review"}, ids)
	assert.Equal(t, 3, c.Len())
}

func TestResolveNotFound(t *testing.T) {
	c := catalogtest.Load(t)

	_, err := c.Resolve("nonexistent")
	require.Error(t, err)
	assert.True(t, errors.Is(err, catalog.ErrNotFound))
	assert.Empty(t, manifest.Errors(err))

	_, err = c.Resolve("Kubernetes-Operations")
	assert.True(t, errors.Is(err, catalog.ErrNotFound), "lookups are case-sensitive")

	_, err = c.EntitiesFor("nonexistent")
	assert.True(t, errors.Is(err, catalog.ErrNotFound))
}

func TestReturnedValuesDoNotAliasCatalog(t *testing.T) {
	c := catalogtest.Load(t)

	set, err := c.EntitiesFor("kubernetes-operations")
	require.NoError(t, err)
	set.Skills[0] = "mutated"

	p, err := c.Resolve("kubernetes-operations")
	require.NoError(t, err)
	assert.Equal(t, "k8s-manifests", p.Entities.Skills[0])
}

func TestEveryDeclaredEntityLoads(t *testing.T) {
	c := catalogtest.Load(t)
	ctx := context.Background()

	for _, s := range c.Plugins() {
		p, err := c.Resolve(s.ID)
		require.NoError(t, err)
		for _, ref := range p.Refs() {
			body, err := c.LoadEntityBody(ctx, ref)
			require.NoError(t, err, ref.String())
			assert.Contains(t, body.Text, "Body of "+ref.Entity)
		}
	}
}

func TestLoadEntityBody(t *testing.T) {
	root, manifestPath := catalogtest.Marketplace(t, catalogtest.Manifest)
	c, err := catalog.Load(context.Background(), catalogtest.Location(t, manifestPath))
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("skill body and activation", func(t *testing.T) {
		ref := catalog.Ref{Plugin: "kubernetes-operations", Kind: manifest.KindSkill, Entity: "gitops"}
		body, err := c.LoadEntityBody(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, "# gitops\n\nBody of gitops.\n", body.Text)
		assert.Equal(t, "gitops skill", body.Activation)
	})

	t.Run("entity not declared by plugin", func(t *testing.T) {
		ref := catalog.Ref{Plugin: "kubernetes-operations", Kind: manifest.KindAgent, Entity: "python-pro"}
		_, err := c.LoadEntityBody(ctx, ref)
		assert.True(t, errors.Is(err, catalog.ErrNotFound))
	})

	t.Run("unknown plugin", func(t *testing.T) {
		ref := catalog.Ref{Plugin: "nope", Kind: manifest.KindSkill, Entity: "gitops"}
		_, err := c.LoadEntityBody(ctx, ref)
		assert.True(t, errors.Is(err, catalog.ErrNotFound))
	})

	t.Run("definition removed after load", func(t *testing.T) {
		path := filepath.Join(root, "plugins", "code-review", "commands", "review.md")
		require.NoError(t, os.Remove(path))

		ref := catalog.Ref{Plugin: "code-review", Kind: manifest.KindCommand, Entity: "review"}
		_, err := c.LoadEntityBody(ctx, ref)
		assert.True(t, errors.Is(err, catalog.ErrNotFound))
	})
}

func TestDanglingReference(t *testing.T) {
	text := `plugins:
  - id: x
    name: X
    category: misc
    skills: [y-skill]
`
	root := t.TempDir()
	manifestPath := catalogtest.WriteManifest(t, root, text)

	c, err := catalog.Load(context.Background(), catalogtest.Location(t, manifestPath))
	require.Error(t, err)
	assert.Nil(t, c)

	var me *manifest.ManifestError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, manifest.DanglingReference, me.Kind)
	assert.Equal(t, "x", me.Plugin)
	assert.Equal(t, "y-skill", me.Entity)
	assert.Equal(t, manifest.KindSkill, me.Category)
	assert.Equal(t, "/plugins/0/skills/0", me.Field)
	assert.Contains(t, err.Error(), `plugin "x" skill "y-skill"`)

	catalogtest.WriteEntity(t, root, "x", manifest.KindSkill, "y-skill")
	c, err = catalog.Load(context.Background(), catalogtest.Location(t, manifestPath))
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
}

func TestDanglingReferencesReportedTogether(t *testing.T) {
	text := `plugins:
  - {id: a, name: A, category: c, agents: [one], skills: [two]}
  - {id: b, name: B, category: c, commands: [three]}
`
	root := t.TempDir()
	manifestPath := catalogtest.WriteManifest(t, root, text)

	_, err := catalog.Load(context.Background(), catalogtest.Location(t, manifestPath))
	require.Error(t, err)

	errs := manifest.Errors(err)
	require.Len(t, errs, 3)
	assert.Equal(t, "one", errs[0].Entity)
	assert.Equal(t, "two", errs[1].Entity)
	assert.Equal(t, "three", errs[2].Entity)
	assert.Equal(t, "b", errs[2].Plugin)
}

func TestEntitiesAreNotSharedAcrossPlugins(t *testing.T) {
	text := `plugins:
  - {id: owner, name: Owner, category: c, agents: [shared]}
  - {id: borrower, name: Borrower, category: c, agents: [shared]}
`
	root := t.TempDir()
	manifestPath := catalogtest.WriteManifest(t, root, text)
	catalogtest.WriteEntity(t, root, "owner", manifest.KindAgent, "shared")

	_, err := catalog.Load(context.Background(), catalogtest.Location(t, manifestPath))
	require.Error(t, err)

	errs := manifest.Errors(err)
	require.Len(t, errs, 1)
	assert.Equal(t, "borrower", errs[0].Plugin)
	assert.Equal(t, manifest.DanglingReference, errs[0].Kind)
	assert.Contains(t, errs[0].Message, `plugin "owner"`)
}

func TestMalformedShortCircuitsReferenceCheck(t *testing.T) {
	text := `plugins:
  - {id: a, name: A, category: c, skills: [missing, missing]}
`
	root := t.TempDir()
	manifestPath := catalogtest.WriteManifest(t, root, text)

	_, err := catalog.Load(context.Background(), catalogtest.Location(t, manifestPath))
	require.Error(t, err)
	assert.True(t, manifest.IsKind(err, manifest.MalformedStructure))
	assert.False(t, manifest.IsKind(err, manifest.DanglingReference))
}

func TestLoadMissingManifest(t *testing.T) {
	loc, err := content.Open(filepath.Join(t.TempDir(), "marketplace.yaml"), "")
	require.NoError(t, err)

	_, err = catalog.Load(context.Background(), loc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, catalog.ErrNotFound))
}

func TestLoadIsIdempotent(t *testing.T) {
	_, manifestPath := catalogtest.Marketplace(t, catalogtest.Manifest)
	loc := catalogtest.Location(t, manifestPath)

	first, err := catalog.Load(context.Background(), loc)
	require.NoError(t, err)
	second, err := catalog.Load(context.Background(), loc)
	require.NoError(t, err)

	assert.Equal(t, first.Digest(), second.Digest())
	assert.Equal(t, first.Plugins(), second.Plugins())
	assert.Equal(t, first.Snapshot(), second.Snapshot())
	assert.NotEmpty(t, first.Digest().String())
	assert.NoError(t, first.Digest().Validate())
}

func TestLoadOverHTTP(t *testing.T) {
	root, _ := catalogtest.Marketplace(t, catalogtest.Manifest)
	server := httptest.NewServer(http.FileServer(http.Dir(root)))
	defer server.Close()

	loc, err := content.Open(server.URL+"/"+catalogtest.ManifestPath, "")
	require.NoError(t, err)

	c, err := catalog.Load(context.Background(), loc, catalog.WithConcurrency(2))
	require.NoError(t, err)
	assert.Equal(t, 3, c.Len())

	body, err := c.LoadEntityBody(context.Background(), catalog.Ref{
		Plugin: "python-development", Kind: manifest.KindAgent, Entity: "python-pro",
	})
	require.NoError(t, err)
	assert.Contains(t, body.Text, "Body of python-pro")

	require.NoError(t, os.Remove(filepath.Join(root, "plugins", "python-development", "agents", "python-pro.md")))
	_, err = catalog.Load(context.Background(), loc)
	require.Error(t, err)
	assert.True(t, manifest.IsKind(err, manifest.DanglingReference))
}

func TestParseRef(t *testing.T) {
	tests := []struct {
		in      string
		want    catalog.Ref
		wantErr bool
	}{
		{in: "p/skills/s", want: catalog.Ref{Plugin: "p", Kind: manifest.KindSkill, Entity: "s"}},
		{in: "p/agent/a", want: catalog.Ref{Plugin: "p", Kind: manifest.KindAgent, Entity: "a"}},
		{in: "p:review", want: catalog.Ref{Plugin: "p", Kind: manifest.KindCommand, Entity: "review"}},
		{in: "p", wantErr: true},
		{in: "p/widgets/w", wantErr: true},
		{in: ":review", wantErr: true},
		{in: "p/skills/", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			ref, err := catalog.ParseRef(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ref)
		})
	}

	assert.Equal(t, "p/commands/review", catalog.Ref{Plugin: "p", Kind: manifest.KindCommand, Entity: "review"}.String())
	assert.Equal(t, "p:review", catalog.CommandName("p", "review"))
}
