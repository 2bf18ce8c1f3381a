// Package config loads runtime settings for recs from an optional file and
// RECS_* environment variables, and validates settings structs.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/roach88/recstream/internal/bridge"
	"github.com/roach88/recstream/internal/logging"
)

// EnvPrefix prefixes every environment override: RECS_LOG_LEVEL,
// RECS_BRIDGE_CAPACITY and so on.
const EnvPrefix = "RECS"

// Config is the process-wide configuration.
type Config struct {
	Log    logging.Config `mapstructure:"log"`
	Bridge BridgeConfig   `mapstructure:"bridge"`
	Store  StoreConfig    `mapstructure:"store"`
}

// BridgeConfig sizes the queues of process-backed stages.
type BridgeConfig struct {
	Capacity int `mapstructure:"capacity" validate:"min=1,max=1000000"`
}

// StoreConfig is the default target of the todb operator.
type StoreConfig struct {
	Path  string `mapstructure:"path"`
	Table string `mapstructure:"table" validate:"required,max=64"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log:    logging.Config{Level: "warn", Format: "console"},
		Bridge: BridgeConfig{Capacity: bridge.DefaultCapacity},
		Store:  StoreConfig{Table: "records"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.no_color", d.Log.NoColor)
	v.SetDefault("bridge.capacity", d.Bridge.Capacity)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.table", d.Store.Table)
}

// Load reads file (or recs.yaml from the working directory when file is
// empty and it exists), applies RECS_* overrides and validates the result.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", file, err)
		}
	} else {
		v.SetConfigName("recs")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: read recs.yaml: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := ValidateStruct(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
