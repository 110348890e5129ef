package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultConfigFile is read when no --config flag is given. It is optional.
const DefaultConfigFile = "config/metricsbridge.json"

const (
	HostModeLocal = "local"
	HostModeRCON  = "rcon"
)

// Config holds the application configuration.
type Config struct {
	HTTPPort        int           `mapstructure:"httpPort"`
	Token           string        `mapstructure:"token"`
	UsersPath       string        `mapstructure:"usersPath"`
	DatabasePath    string        `mapstructure:"databasePath"`
	WebDir          string        `mapstructure:"webDir"`
	WorldDir        string        `mapstructure:"worldDir"`
	AllowedOrigins  []string      `mapstructure:"allowedOrigins"`
	ConsoleMaxLines int           `mapstructure:"consoleMaxLines"`
	SessionTimeout  time.Duration `mapstructure:"sessionTimeout"`

	Log struct {
		Level  string `mapstructure:"level"`
		Pretty bool   `mapstructure:"pretty"`
	} `mapstructure:"log"`

	Host struct {
		Mode    string `mapstructure:"mode"`
		Version string `mapstructure:"version"`
	} `mapstructure:"host"`

	RCON struct {
		Addr      string `mapstructure:"addr"`
		Password  string `mapstructure:"password"`
		Container string `mapstructure:"container"`
	} `mapstructure:"rcon"`

	History struct {
		RecordSchedule string        `mapstructure:"recordSchedule"`
		PruneSchedule  string        `mapstructure:"pruneSchedule"`
		Retention      time.Duration `mapstructure:"retention"`
	} `mapstructure:"history"`
}

// Load reads configuration from defaults, an optional JSON config file,
// METRICSBRIDGE_* environment variables and finally command-line flags.
// An empty configFile means DefaultConfigFile, which may be absent.
func Load(configFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("METRICSBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("httpPort", 8765)
	v.SetDefault("token", "")
	v.SetDefault("usersPath", "config/metricsbridge-users.json")
	v.SetDefault("databasePath", "config/metricsbridge.db")
	v.SetDefault("webDir", "")
	v.SetDefault("worldDir", "world")
	v.SetDefault("allowedOrigins", []string{})
	v.SetDefault("consoleMaxLines", 1000)
	v.SetDefault("sessionTimeout", "24h")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)
	v.SetDefault("host.mode", HostModeLocal)
	v.SetDefault("host.version", "1.21.1")
	v.SetDefault("rcon.addr", "")
	v.SetDefault("rcon.password", "")
	v.SetDefault("rcon.container", "")
	v.SetDefault("history.recordSchedule", "@every 1m")
	v.SetDefault("history.pruneSchedule", "@hourly")
	v.SetDefault("history.retention", "24h")

	explicit := configFile != ""
	if !explicit {
		configFile = DefaultConfigFile
	}
	v.SetConfigFile(configFile)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		if explicit || !isNotExist(err) {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	if flags != nil {
		for key, name := range map[string]string{
			"httpPort":  "port",
			"webDir":    "web-dir",
			"log.level": "log-level",
			"host.mode": "host-mode",
			"rcon.addr": "rcon-addr",
		} {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

// Validate checks values that would otherwise fail late at startup.
func (c Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid httpPort %d", c.HTTPPort)
	}
	if c.UsersPath == "" {
		return errors.New("usersPath must not be empty")
	}
	switch c.Host.Mode {
	case HostModeLocal:
	case HostModeRCON:
		if c.RCON.Addr == "" && c.RCON.Container == "" {
			return errors.New("host mode rcon needs rcon.addr or rcon.container")
		}
	default:
		return fmt.Errorf("unknown host.mode %q (want %s or %s)", c.Host.Mode, HostModeLocal, HostModeRCON)
	}
	return nil
}
