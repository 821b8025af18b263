package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
mysql:
  host: db.local
  database: cardstock
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 3306, cfg.MySQL.Port)
	assert.Equal(t, "db.local", cfg.MySQL.Host)
	assert.Equal(t, 5, cfg.Business.OutboxMaxRetry)
	assert.Equal(t, "cardstock.stock", cfg.Kafka.Topic.StockEvents)
	assert.Same(t, cfg, GlobalConfig)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
mysql:
  host: db.local
  database: cardstock
`)
	t.Setenv("MYSQL_HOST", "db.override")
	t.Setenv("SMTP_HOST", "smtp.example.com")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "db.override", cfg.MySQL.Host)
	assert.Equal(t, "smtp.example.com", cfg.SMTP.Host)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{Port: 0},
		SMTP:   SMTPConfig{Host: "smtp.local", Port: 70000},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "server.mode")
	assert.Contains(t, err.Error(), "mysql.host")
	assert.Contains(t, err.Error(), "mysql.database")
	assert.Contains(t, err.Error(), "smtp.port")
	assert.Contains(t, err.Error(), "business.stock_lock_seconds")
}
