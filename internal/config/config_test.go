package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.env"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.HTTP.Addr)
	assert.True(t, cfg.DBEnabled)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.True(t, cfg.Database.SnapshotReads)
	assert.False(t, cfg.Database.Migrate)
	assert.Equal(t, "recursive", cfg.Tree.Strategy)
	assert.Equal(t, 256, cfg.Tree.MaxDepth)
	assert.Equal(t, "none", cfg.Events.Backend)
	assert.Equal(t, "locations:events", cfg.Events.Stream)
	assert.Equal(t, "locations", cfg.Events.TopicPrefix)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("HTTP_ADDR=:4000\nTREE_STRATEGY=frontier\nDB_PORT=6543\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DB_PORT", "7000")
	t.Setenv("EVENTS_BACKEND", "REDIS")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":4000", cfg.HTTP.Addr)
	assert.Equal(t, "frontier", cfg.Tree.Strategy)
	assert.Equal(t, 7000, cfg.Database.Port)
	assert.Equal(t, "redis", cfg.Events.Backend)
}

func TestLoad_Rejections(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.env"))

	t.Setenv("EVENTS_BACKEND", "kafka")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("EVENTS_BACKEND", "none")
	t.Setenv("TREE_MAX_DEPTH", "0")
	_, err = Load()
	assert.Error(t, err)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "owl", SSLMode: "disable"}

	assert.Equal(t, "host=db port=5432 user=u password=p dbname=owl sslmode=disable", c.GetDSN())
	assert.Equal(t, "postgres://u:p@db:5432/owl?sslmode=disable", c.URL())
}
