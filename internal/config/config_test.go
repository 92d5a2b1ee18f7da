package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsAndDerived(t *testing.T) {
	path := writeConfig(t, `
jwt:
  secret: test-secret
mongo:
  uri: mongodb://localhost:27017
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, 15*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 25*time.Second, cfg.PingInterval)
	assert.Equal(t, 10*time.Second, cfg.WriteDeadline)
	assert.Equal(t, int64(64*1024), cfg.WS.MaxMessageSizeBytes)
	assert.Equal(t, 256, cfg.WS.SendBufferSize)
	assert.Equal(t, 15*time.Minute, cfg.ResetTokenTTL)
	assert.Equal(t, "pairchat", cfg.Redis.Prefix)
}

func TestLoad_RequiredFields(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing jwt secret", body: "mongo:\n  uri: mongodb://localhost:27017\n"},
		{name: "missing mongo uri", body: "jwt:\n  secret: s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_ExplicitValues(t *testing.T) {
	path := writeConfig(t, `
app:
  port: 9000
jwt:
  secret: s
  ttl_minutes: 60
mongo:
  uri: mongodb://db:27017
  database: chat
ws:
  ping_interval_seconds: 5
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.App.Port)
	assert.Equal(t, time.Hour, cfg.JWTTTL)
	assert.Equal(t, "chat", cfg.Mongo.Database)
	assert.Equal(t, 5*time.Second, cfg.PingInterval)
}
