package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metricsbridge.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 8765, cfg.HTTPPort)
	assert.Empty(t, cfg.Token)
	assert.Equal(t, HostModeLocal, cfg.Host.Mode)
	assert.Equal(t, 24*time.Hour, cfg.SessionTimeout)
	assert.Equal(t, 1000, cfg.ConsoleMaxLines)
	assert.Equal(t, "@every 1m", cfg.History.RecordSchedule)
	assert.Equal(t, 24*time.Hour, cfg.History.Retention)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `{
		"httpPort": 9000,
		"token": "legacy",
		"allowedOrigins": ["https://dash.example.com"],
		"sessionTimeout": "2h",
		"log": {"level": "debug", "pretty": false},
		"host": {"mode": "rcon"},
		"rcon": {"addr": "127.0.0.1:25575", "password": "pw"}
	}`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.HTTPPort)
	assert.Equal(t, "legacy", cfg.Token)
	assert.Equal(t, []string{"https://dash.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, 2*time.Hour, cfg.SessionTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Log.Pretty)
	assert.Equal(t, HostModeRCON, cfg.Host.Mode)
	assert.Equal(t, "127.0.0.1:25575", cfg.RCON.Addr)
}

func TestLoad_EnvAndFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, `{"httpPort": 9000, "token": "from-file"}`)
	t.Setenv("METRICSBRIDGE_TOKEN", "from-env")
	t.Setenv("METRICSBRIDGE_LOG_LEVEL", "warn")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("port", 8765, "")
	flags.String("log-level", "info", "")
	require.NoError(t, flags.Parse([]string{"--port", "9100"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.HTTPPort)
	assert.Equal(t, "from-env", cfg.Token)
	assert.Equal(t, "warn", cfg.Log.Level, "an unchanged flag does not override env")
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.Error(t, err, "an explicit config file must exist")

	_, err = Load(writeConfig(t, `{not json`), nil)
	assert.Error(t, err)

	_, err = Load(writeConfig(t, `{"httpPort": 70000}`), nil)
	assert.ErrorContains(t, err, "httpPort")
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	valid := func() Config {
		var c Config
		c.HTTPPort = 8765
		c.UsersPath = "users.json"
		c.Host.Mode = HostModeLocal
		return c
	}

	assert.NoError(t, valid().Validate())

	c := valid()
	c.UsersPath = ""
	assert.Error(t, c.Validate())

	c = valid()
	c.Host.Mode = "bogus"
	assert.ErrorContains(t, c.Validate(), "bogus")

	c = valid()
	c.Host.Mode = HostModeRCON
	assert.Error(t, c.Validate())
	c.RCON.Container = "minecraft"
	assert.NoError(t, c.Validate())
}
