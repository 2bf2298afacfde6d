// Package config loads YARRD's optional YAML configuration file with
// viper, the same way the rest of this codebase's ambient stack does.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the tunables an operator can override; every field has a
// sensible built-in default via Default().
type Config struct {
	DataDir string `mapstructure:"data_dir"`

	Pager struct {
		PageSize     int `mapstructure:"page_size"`
		CacheSize    int `mapstructure:"cache_size"`
	} `mapstructure:"pager"`

	HashIndex struct {
		LoadFactorPercent int `mapstructure:"load_factor_percent"`
	} `mapstructure:"hash_index"`

	History struct {
		Path    string `mapstructure:"path"`
		MaxSize int    `mapstructure:"max_size"`
	} `mapstructure:"history"`
}

// Default returns the built-in configuration used when no config file is
// supplied.
func Default() *Config {
	cfg := &Config{DataDir: "."}
	cfg.Pager.PageSize = 4096
	cfg.Pager.CacheSize = 16
	cfg.HashIndex.LoadFactorPercent = 50
	cfg.History.Path = ".yarrd_history"
	cfg.History.MaxSize = 1000
	return cfg
}

// Load reads a YAML config file at path, falling back to Default() for
// any field the file does not set.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	return cfg, nil
}
