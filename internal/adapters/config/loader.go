// Package config provides the YAML configuration loader for tsl.
package config

import (
	"bytes"
	"errors"
	"io"
	"os"

	"go.trai.ch/tsl/internal/core/domain"
	"go.trai.ch/tsl/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

var _ ports.ConfigLoader = (*Loader)(nil)

// Loader implements ports.ConfigLoader using a YAML file.
type Loader struct {
	logger ports.Logger
	getenv func(string) string
}

// NewLoader creates a Loader that logs to logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{logger: logger, getenv: os.Getenv}
}

// Load reads the file at path and merges it over domain.DefaultConfig.
// Keys absent from the file keep their default. TSL_CACHE_DIR, when set,
// replaces cache.dir.
func (l *Loader) Load(path string) (domain.Config, error) {
	cfg := domain.DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // path is provided by user
		if err != nil {
			return domain.Config{}, zerr.With(zerr.Wrap(err, domain.ErrConfigReadFailed.Error()), "path", path)
		}
		if err := decode(data, &cfg); err != nil {
			return domain.Config{}, zerr.With(zerr.Wrap(err, domain.ErrConfigParseFailed.Error()), "path", path)
		}
		l.logger.Debug("config loaded", "path", path)
	}

	if dir := l.getenv(domain.CacheDirEnv); dir != "" {
		cfg.Cache.Dir = dir
	}

	if err := cfg.Validate(); err != nil {
		return domain.Config{}, err
	}
	return cfg, nil
}

// decode unmarshals data over cfg, rejecting unknown keys.
func decode(data []byte, cfg *domain.Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
