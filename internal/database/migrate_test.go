package database

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsEmbedded(t *testing.T) {
	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"migrations/000001_create_locations.up.sql",
		"migrations/000001_create_locations.down.sql",
	}, names)

	up, err := fs.ReadFile(migrationsFS, "migrations/000001_create_locations.up.sql")
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(up), "REFERENCES locations(id) ON DELETE CASCADE"))
	assert.True(t, strings.Contains(string(up), "idx_locations_parent_id"))
}
