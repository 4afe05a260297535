package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/forscht/filedeck/pkg/filestore"
)

// Config is the client side of config.yaml.
type Config struct {
	Remote filestore.Config `mapstructure:"remote"`

	Download struct {
		Dir string `mapstructure:"dir"`
	} `mapstructure:"download"`

	UI struct {
		ViewMode string `mapstructure:"view_mode"`
	} `mapstructure:"ui"`
}

func loadConfig(v *viper.Viper, file string) (*Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/filedeck/")
	if file != "" {
		v.SetConfigFile(file)
	}

	v.SetDefault("remote.base_url", "http://localhost:2525")
	v.SetDefault("remote.timeout", "30s")
	v.SetDefault("remote.retry_max", 3)
	v.SetDefault("download.dir", ".")
	v.SetDefault("ui.view_mode", "grid")

	if err := v.ReadInConfig(); err != nil {
		// defaults and env are enough to talk to a local store
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// Bind env
	_ = v.BindEnv("remote.base_url", "FILEDECK_URL")
	_ = v.BindEnv("remote.auth_token", "FILEDECK_TOKEN")
	_ = v.BindEnv("remote.timeout", "FILEDECK_TIMEOUT")
	_ = v.BindEnv("remote.retry_max", "FILEDECK_RETRY_MAX")
	_ = v.BindEnv("download.dir", "FILEDECK_DOWNLOAD_DIR")
	_ = v.BindEnv("ui.view_mode", "FILEDECK_VIEW_MODE")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// saveToken stores token in the config file in use, or in the per-user
// config file when none was found.
func saveToken(v *viper.Viper, token string) (string, error) {
	path := v.ConfigFileUsed()
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, ".config", "filedeck", "config.yaml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", err
	}
	// The file holds a bearer token. Create it private before viper writes
	// to it and tighten an existing one afterwards.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return "", err
	}
	_ = f.Close()

	v.Set("remote.auth_token", token)
	if err = v.WriteConfigAs(path); err != nil {
		return "", err
	}
	return path, os.Chmod(path, 0o600)
}
