package migrations

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/pluginreg/pkg/db"
)

func TestAllApplyAndRollBack(t *testing.T) {
	sqlDB, err := db.Open(context.Background(), filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer sqlDB.Close()

	runner := db.NewMigrationRunner(sqlDB)
	require.NoError(t, runner.Run(context.Background(), All()))

	versions, err := runner.GetAppliedVersions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{20260901100000, 20260901100001}, versions)

	tables := func() []string {
		var names []string
		require.NoError(t, sqlDB.Select(&names,
			"SELECT name FROM sqlite_master WHERE type='table' AND name IN ('installs', 'activations') ORDER BY name"))
		return names
	}
	assert.Equal(t, []string{"activations", "installs"}, tables())

	status, err := runner.Status(context.Background(), All())
	require.NoError(t, err)
	for _, st := range status {
		assert.True(t, st.Applied(), st.Description)
	}

	for range All() {
		require.NoError(t, runner.Rollback(context.Background(), All()))
	}
	assert.Empty(t, tables())
}
