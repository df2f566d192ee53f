// Package config loads the early configuration file and resolves the
// directory layout.
//
// The early configuration is read before any dependency work starts. It is
// a small JSON file in the config directory; when absent, a file with the
// defaults is written so users have something to edit.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"github.com/spf13/viper"

	"github.com/matzehuels/deploader/pkg/errors"
)

const (
	// EarlyConfigFile is the name of the early configuration file.
	EarlyConfigFile = "deploader-early.json"

	// EnvEnableDownloads overrides enableLibraryDownloads.
	EnvEnableDownloads = "DEPLOADER_ENABLE_LIBRARY_DOWNLOADS"
)

// Early is the configuration consulted before any loading happens.
type Early struct {
	// EnableLibraryDownloads allows remote repositories to be used.
	EnableLibraryDownloads bool `mapstructure:"enableLibraryDownloads" json:"enableLibraryDownloads"`

	// EnableLetsEncryptRoot is kept for compatibility with existing files.
	// Go clients trust the system roots, which already carry ISRG Root X1.
	EnableLetsEncryptRoot bool `mapstructure:"enableLetsEncryptRoot" json:"enableLetsEncryptRoot"`
}

// DefaultEarly returns the defaults written for new installations.
func DefaultEarly() Early {
	return Early{
		EnableLibraryDownloads: true,
		EnableLetsEncryptRoot:  true,
	}
}

// LoadEarly reads dir/deploader-early.json. A missing file is created with
// the defaults. It returns the configuration and the file path.
func LoadEarly(dir string) (Early, string, error) {
	path := filepath.Join(dir, EarlyConfigFile)
	defaults := DefaultEarly()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return defaults, path, errors.Wrap(errors.ErrCodeInvalidPath, err, "create config directory %s", dir)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeEarly(path, defaults); err != nil {
			return defaults, path, err
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetDefault("enableLibraryDownloads", defaults.EnableLibraryDownloads)
	v.SetDefault("enableLetsEncryptRoot", defaults.EnableLetsEncryptRoot)
	if err := v.BindEnv("enableLibraryDownloads", EnvEnableDownloads); err != nil {
		return defaults, path, err
	}

	if err := v.ReadInConfig(); err != nil {
		return defaults, path, errors.Wrap(errors.ErrCodeInvalidInput, err, "read %s", path)
	}

	var cfg Early
	if err := v.Unmarshal(&cfg); err != nil {
		return defaults, path, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse %s", path)
	}
	return cfg, path, nil
}

func writeEarly(path string, cfg Early) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}
