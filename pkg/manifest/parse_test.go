package manifest

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validManifest = `
name: claude-code-workflows
owner:
  name: Platform Team
  email: platform@example.com
metadata:
  description: Workflow plugins
  version: 2.0.0
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
`

func TestParse(t *testing.T) {
	m, err := Parse([]byte(validManifest))
	require.NoError(t, err)

	assert.Equal(t, "claude-code-workflows", m.Name)
	require.NotNil(t, m.Owner)
	assert.Equal(t, "Platform Team", m.Owner.Name)
	require.Len(t, m.Plugins, 2)

	k8s := m.Plugins[0]
	assert.Equal(t, "kubernetes-operations", k8s.ID)
	assert.Equal(t, "infrastructure", k8s.Category)
	assert.Equal(t, []string{"k8s-manifests", "helm-charts", "gitops", "security-policies"}, k8s.Skills)
	assert.Empty(t, k8s.Agents)
	assert.Empty(t, k8s.Commands)
	assert.Equal(t, "plugins/kubernetes-operations", k8s.SourceDir())

	py := m.Plugins[1]
	assert.Equal(t, []string{"python-pro"}, py.Entities(KindAgent))
	assert.Equal(t, []string{"python-scaffold"}, py.Entities(KindCommand))
}

func TestParseJSON(t *testing.T) {
	data := `{
  "name": "market",
  "plugins": [
    {"id": "git", "name": "Git", "category": "vcs", "source": "./tools/git", "commands": ["commit"]}
  ]
}`
	m, err := Parse([]byte(data))
	require.NoError(t, err)
	require.Len(t, m.Plugins, 1)
	assert.Equal(t, "tools/git", m.Plugins[0].SourceDir())
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantField string
		wantMsg   string
	}{
		{
			name:    "syntax error",
			input:   "plugins: [\n  - id: a",
			wantMsg: "invalid manifest syntax",
		},
		{
			name:    "empty document",
			input:   "",
			wantMsg: "manifest is empty",
		},
		{
			name:      "missing plugins",
			input:     "name: market\n",
			wantField: "",
			wantMsg:   "plugins",
		},
		{
			name:      "missing required plugin field",
			input:     "plugins:\n  - id: a\n    name: A\n",
			wantField: "/plugins/0",
			wantMsg:   "category",
		},
		{
			name:      "wrong value type",
			input:     "plugins:\n  - id: a\n    name: A\n    category: c\n    skills: not-a-list\n",
			wantField: "/plugins/0/skills",
		},
		{
			name:      "invalid plugin id",
			input:     "plugins:\n  - id: Bad_ID\n    name: A\n    category: c\n",
			wantField: "/plugins/0/id",
		},
		{
			name:      "duplicate plugin id",
			input:     "plugins:\n  - {id: a, name: A, category: c}\n  - {id: a, name: B, category: c}\n",
			wantField: "/plugins/1/id",
			wantMsg:   "duplicate plugin id",
		},
		{
			name:      "duplicate entity id",
			input:     "plugins:\n  - {id: a, name: A, category: c, skills: [s, s]}\n",
			wantField: "/plugins/0/skills/1",
			wantMsg:   "duplicate skill id",
		},
		{
			name:      "invalid version",
			input:     "plugins:\n  - {id: a, name: A, category: c, version: not-semver}\n",
			wantField: "/plugins/0/version",
			wantMsg:   "invalid version",
		},
		{
			name:      "source escapes root",
			input:     "plugins:\n  - {id: a, name: A, category: c, source: ../elsewhere}\n",
			wantField: "/plugins/0/source",
		},
		{
			name:      "shared source",
			input:     "plugins:\n  - {id: a, name: A, category: c, source: ./shared}\n  - {id: b, name: B, category: c, source: shared}\n",
			wantField: "/plugins/1/source",
			wantMsg:   `already used by plugin "a"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse([]byte(tt.input))
			require.Error(t, err)
			assert.Nil(t, m)

			errs := Errors(err)
			require.NotEmpty(t, errs)
			for _, me := range errs {
				assert.Equal(t, MalformedStructure, me.Kind)
			}

			var first *ManifestError
			require.True(t, errors.As(err, &first))

			if tt.wantField != "" {
				fields := make([]string, 0, len(errs))
				for _, me := range errs {
					fields = append(fields, me.Field)
				}
				assert.Contains(t, fields, tt.wantField)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestParseReportsAllProblems(t *testing.T) {
	input := `
plugins:
  - {id: a, name: A, category: c, skills: [x, x], agents: [Bad]}
  - {id: a, name: B, category: c}
`
	_, err := Parse([]byte(input))
	require.Error(t, err)

	errs := Errors(err)
	assert.Len(t, errs, 3)
	assert.Contains(t, err.Error(), "3 manifest errors")
}

func TestParseNamesPluginOnSchemaIssue(t *testing.T) {
	input := "plugins:\n  - id: broken\n    category: c\n"
	_, err := Parse([]byte(input))
	require.Error(t, err)

	errs := Errors(err)
	require.NotEmpty(t, errs)
	assert.Equal(t, "broken", errs[0].Plugin)
}

func TestSchema(t *testing.T) {
	data, err := Schema()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "object", doc["type"])
	assert.Contains(t, doc["required"], "plugins")

	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "plugins")
	assert.Contains(t, props, "owner")
}

func TestParseEntityKind(t *testing.T) {
	for _, in := range []string{"skills", "skill", "Skill"} {
		k, ok := ParseEntityKind(in)
		assert.True(t, ok, in)
		assert.Equal(t, KindSkill, k)
	}
	_, ok := ParseEntityKind("widgets")
	assert.False(t, ok)
}

func TestManifestErrorString(t *testing.T) {
	err := &ManifestError{
		Kind:     DanglingReference,
		Plugin:   "x",
		Category: KindSkill,
		Entity:   "y-skill",
		Message:  "not defined",
	}
	assert.Equal(t, `dangling reference: plugin "x" skill "y-skill": not defined`, err.Error())
	assert.True(t, IsKind(err, DanglingReference))
	assert.False(t, IsKind(err, MalformedStructure))
}
