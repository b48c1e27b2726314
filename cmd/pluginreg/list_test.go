package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/pluginreg/pkg/catalog"
	"github.com/jingkaihe/pluginreg/pkg/catalog/catalogtest"
)

func pluginIDs(plugins []catalog.PluginSummary) []string {
	ids := make([]string, len(plugins))
	for i, p := range plugins {
		ids[i] = p.ID
	}
	return ids
}

func TestFilterPlugins(t *testing.T) {
	plugins := catalogtest.Load(t).Plugins()

	tests := []struct {
		name          string
		config        *ListConfig
		expected      []string
		expectedError string
	}{
		{
			name:     "no filter keeps declaration order",
			config:   &ListConfig{},
			expected: []string{"kubernetes-operations", "python-development", "code-review"},
		},
		{
			name:     "category",
			config:   &ListConfig{Category: "languages"},
			expected: []string{"python-development"},
		},
		{
			name:     "glob",
			config:   &ListConfig{Match: "*-*"},
			expected: []string{"kubernetes-operations", "python-development", "code-review"},
		},
		{
			name:     "prefix glob",
			config:   &ListConfig{Match: "py*"},
			expected: []string{"python-development"},
		},
		{
			name:     "alternatives",
			config:   &ListConfig{Match: "{code,kubernetes}-*"},
			expected: []string{"kubernetes-operations", "code-review"},
		},
		{
			name:     "category and glob",
			config:   &ListConfig{Category: "quality", Match: "py*"},
			expected: []string{},
		},
		{
			name:          "invalid glob",
			config:        &ListConfig{Match: "[a-"},
			expectedError: "invalid match pattern",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := filterPlugins(plugins, tt.config)
			if tt.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, pluginIDs(got))
		})
	}
}

func TestRunListCommandJSON(t *testing.T) {
	_, manifestPath := catalogtest.Marketplace(t, catalogtest.Manifest)
	useManifest(t, manifestPath)

	var out bytes.Buffer
	require.NoError(t, runListCommand(context.Background(), &out, &ListConfig{Category: "infrastructure", JSON: true}))

	var plugins []catalog.PluginSummary
	require.NoError(t, json.Unmarshal(out.Bytes(), &plugins))
	require.Len(t, plugins, 1)
	assert.Equal(t, "kubernetes-operations", plugins[0].ID)
	assert.Equal(t, "1.2.0", plugins[0].Version)
}
