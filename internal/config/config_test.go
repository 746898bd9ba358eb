package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "retail_sales.csv", cfg.Data.Source)
	assert.Equal(t, 10, cfg.Dashboard.TopN)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout())
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "salesboard.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
addr = ":9090"
rate_limit = 20

[data]
source = "s3://sales/retail_sales.csv"

[data.s3]
region = "eu-central-1"
endpoint = "http://minio:9000"
path_style = true

[dashboard]
top_n = 5

[log]
level = "debug"
`), 0o600))

	t.Setenv("SALESBOARD_LOG_LEVEL", "warn")
	t.Setenv("SALESBOARD_ALLOW_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 20.0, cfg.Server.RateLimit)
	assert.Equal(t, "s3://sales/retail_sales.csv", cfg.Data.Source)
	assert.Equal(t, "eu-central-1", cfg.Data.S3.Region)
	assert.True(t, cfg.Data.S3.PathStyle)
	assert.Equal(t, 5, cfg.Dashboard.TopN)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowOrigins)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Run("level", func(t *testing.T) {
		t.Setenv("SALESBOARD_LOG_LEVEL", "loud")
		_, err := Load("")
		require.Error(t, err)
	})
	t.Run("top_n", func(t *testing.T) {
		t.Setenv("SALESBOARD_TOP_N", "0")
		_, err := Load("")
		require.Error(t, err)
	})
	t.Run("top_n not a number", func(t *testing.T) {
		t.Setenv("SALESBOARD_TOP_N", "ten")
		_, err := Load("")
		require.Error(t, err)
	})
	t.Run("secret without key", func(t *testing.T) {
		t.Setenv("SALESBOARD_S3_ACCESS_KEY_ID", "AKIA")
		_, err := Load("")
		require.Error(t, err)
	})
	t.Run("empty source", func(t *testing.T) {
		t.Setenv("SALESBOARD_DATA_SOURCE", "")
		_, err := Load("")
		require.Error(t, err)
	})
	t.Run("malformed toml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.toml")
		require.NoError(t, os.WriteFile(path, []byte("[server\naddr="), 0o600))
		_, err := Load(path)
		require.Error(t, err)
	})
}
