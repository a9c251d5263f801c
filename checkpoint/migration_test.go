package checkpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateAppliesChainInOrder(t *testing.T) {
	data := map[string]any{"state": map[string]any{"phase": "resolving"}, "config": map[string]any{"threshold": 0.8}}

	migrated, version, err := Migrate("1.0.0", data)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)
	assert.Equal(t, []any{}, migrated["artifacts"])
	assert.Equal(t, map[string]any{"threshold": 0.8}, migrated["configuration"])
	_, hasConfig := migrated["config"]
	assert.False(t, hasConfig)
}

func TestMigrateFromCurrentIsNoop(t *testing.T) {
	data := map[string]any{"artifacts": []any{"a"}}
	migrated, version, err := Migrate(CurrentSchemaVersion, data)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)
	assert.Equal(t, data, migrated)
}

func TestMigrateMissingPathIsMigrationFailure(t *testing.T) {
	_, _, err := Migrate("0.1.0", map[string]any{})
	assert.Error(t, err)
}

func TestMigrationPathExists(t *testing.T) {
	assert.True(t, migrationPathExists("1.0.0"))
	assert.True(t, migrationPathExists("1.1.0"))
	assert.True(t, migrationPathExists(CurrentSchemaVersion))
	assert.False(t, migrationPathExists("0.1.0"))
}
