package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sample = `
[server]
addr = ":9443"
jwt_key = "k"
access_ttl = "20m"

[server.limiter]
max_fails = 3

[client]
addr = "planner.example.com:443"
request_timeout = "5s"
`

func TestRead_OverlaysDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Read(strings.NewReader(sample))
	require.NoError(t, err)

	require.Equal(t, ":9443", cfg.Server.Addr)
	require.Equal(t, 20*time.Minute, cfg.Server.AccessTTL.Duration)
	require.Equal(t, time.Hour, cfg.Server.ResetTTL.Duration)
	require.Equal(t, 3, cfg.Server.Limiter.MaxFails)
	require.Equal(t, 15*time.Minute, cfg.Server.Limiter.Window.Duration)
	require.Equal(t, "planner.example.com:443", cfg.Client.Addr)
	require.Equal(t, 5*time.Second, cfg.Client.RequestTimeout.Duration)
	require.NoError(t, cfg.Server.Validate())
}

func TestRead_Errors(t *testing.T) {
	t.Parallel()

	_, err := Read(strings.NewReader(`[server]
access_ttl = "soon"`))
	require.Error(t, err)

	_, err = Read(strings.NewReader(`[server]
listen = ":1"`))
	require.ErrorContains(t, err, "server.listen")
}

func TestServerConfig_Validate(t *testing.T) {
	t.Parallel()

	base := Default().Server
	base.JWTKey = "k"
	require.NoError(t, base.Validate())

	c := base
	c.JWTKey = ""
	require.ErrorContains(t, c.Validate(), "jwt")

	c = base
	c.Limiter.MaxFails = 0
	require.Error(t, c.Validate())

	c = base
	c.TLSCert = ""
	require.Error(t, c.Validate())
	c.Dev = true
	require.NoError(t, c.Validate())
}

func TestLoad_PathResolution(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv(EnvPath, "")

	// nothing configured
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "mealplanner", "token.json"), cfg.Client.TokenFile)

	// default location
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "mealplanner"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mealplanner", "config.toml"), []byte(sample), 0o600))
	cfg, err = Load("")
	require.NoError(t, err)
	require.Equal(t, ":9443", cfg.Server.Addr)

	// env wins over the default location
	other := filepath.Join(dir, "other.toml")
	require.NoError(t, os.WriteFile(other, []byte(`[client]
addr = "env:1"`), 0o600))
	t.Setenv(EnvPath, other)
	cfg, err = Load("")
	require.NoError(t, err)
	require.Equal(t, "env:1", cfg.Client.Addr)

	// explicit path wins over env
	_, err = Load(filepath.Join(dir, "missing.toml"))
	require.ErrorContains(t, err, "failed to open config file")
}
