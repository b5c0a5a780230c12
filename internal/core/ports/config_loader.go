package ports

import "go.trai.ch/tsl/internal/core/domain"

// ConfigLoader loads the pipeline configuration.
//
//go:generate mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load reads the file at path and merges it over the defaults.
	// An empty path returns the defaults.
	Load(path string) (domain.Config, error)
}
