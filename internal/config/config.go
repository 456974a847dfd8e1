package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"

	"github.com/sekai02/redcloud-nvs/internal/storage"
)

var ErrInvalid = errors.New("config: invalid value")

// Config holds server configuration.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
}

// StorageConfig selects the engine behind the NVS context.
type StorageConfig struct {
	Backend string `mapstructure:"backend" env:"NVS_STORAGE_BACKEND"`
	Path    string `mapstructure:"path" env:"NVS_STORAGE_PATH"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" env:"NVS_SERVER_ADDR"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" env:"NVS_LOG_LEVEL"`
	Format string `mapstructure:"format" env:"NVS_LOG_FORMAT"`
}

// Load reads defaults, then the TOML file at path when path is non-empty,
// then NVS_* environment overrides.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetDefault("storage.backend", storage.BackendMemory)
	v.SetDefault("storage.path", "./data/nvs")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects unknown backends, log levels and log formats.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case storage.BackendMemory, storage.BackendBadger, storage.BackendBolt, storage.BackendSQLite:
	default:
		return fmt.Errorf("%w: storage.backend %q", ErrInvalid, c.Storage.Backend)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q", ErrInvalid, c.Log.Format)
	}
	return nil
}

// StorageOptions converts the storage section for storage.Open.
func (c Config) StorageOptions() storage.Config {
	return storage.Config{
		Backend: c.Storage.Backend,
		Path:    c.Storage.Path,
	}
}

func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("%w: log.level %q", ErrInvalid, l.Level)
	}
	return level, nil
}
