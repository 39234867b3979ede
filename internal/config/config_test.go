package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "remote", cfg.Auth.Provider)
	assert.Equal(t, "memory", cfg.Session.Store)
	assert.Equal(t, 10, cfg.List.PageSize)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.Equal(t, "meditrack.audit", cfg.Audit.Channel)
	assert.True(t, cfg.IsDev())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("MEDITRACK_PORT", "9090")
	t.Setenv("MEDITRACK_UPSTREAM_URL", "http://patients.internal/api/v1")
	t.Setenv("MEDITRACK_UPSTREAM_TIMEOUT", "3s")
	t.Setenv("MEDITRACK_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "http://patients.internal/api/v1", cfg.Upstream.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.AllowedOrigins)
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	content := `
server:
  port: 7000
auth:
  provider: local
  users:
    - username: admin
      email: admin@meditrack.local
      password_hash: "$2a$10$abcdefghijklmnopqrstuu"
      role: admin
      first_name: Ada
      last_name: Admin
      active: true
list:
  page_size: 25
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, 25, cfg.List.PageSize)
	require.Len(t, cfg.Auth.Users, 1)
	assert.Equal(t, "admin", cfg.Auth.Users[0].Username)
	assert.Equal(t, "Ada", cfg.Auth.Users[0].FirstName)
	assert.True(t, cfg.Auth.Users[0].Active)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server:   ServerConfig{Env: "development"},
			Upstream: UpstreamConfig{BaseURL: "http://x"},
			Auth:     AuthConfig{Provider: "remote"},
			Session:  SessionConfig{Store: "memory"},
			List:     ListConfig{PageSize: 10},
		}
	}

	assert.NoError(t, base().Validate())

	c := base()
	c.Auth.Provider = "local"
	assert.ErrorContains(t, c.Validate(), "auth.users")

	c = base()
	c.Session.Store = "redis"
	assert.ErrorContains(t, c.Validate(), "redis.url")

	c = base()
	c.Server.Env = "production"
	assert.ErrorContains(t, c.Validate(), "session.secret")

	c = base()
	c.Auth.Provider = "ldap"
	assert.ErrorContains(t, c.Validate(), "unknown auth.provider")
}
