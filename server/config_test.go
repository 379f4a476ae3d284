package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	data := `server:
  http_port: 9090
mongo:
  uri: mongodb://db:27017
  database: shop
cache:
  address: localhost:6379
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, config.Server.HTTPPort)
	assert.Equal(t, 8081, config.Server.GRPCPort)
	assert.Equal(t, "mongodb://db:27017", config.Mongo.URI)
	assert.Equal(t, "shop", config.Mongo.Database)
	assert.Equal(t, "localhost:6379", config.Cache.Address)
	assert.Equal(t, 3600, config.Cache.TTL)
	assert.Equal(t, "us-east-1", config.AWS.Region)
}

func TestLoadConfigBadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: ["), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestApplyDefaults(t *testing.T) {
	config := &Config{}
	applyDefaults(config)

	assert.Equal(t, 8080, config.Server.HTTPPort)
	assert.Equal(t, 8081, config.Server.GRPCPort)
	assert.Equal(t, "mongodb://localhost:27017", config.Mongo.URI)
	assert.Equal(t, "resourcedb", config.Mongo.Database)
	assert.Equal(t, 3600, config.Cache.TTL)
}
