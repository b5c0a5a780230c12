// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/tsl/internal/adapters/config"
	_ "go.trai.ch/tsl/internal/adapters/frontend"
	_ "go.trai.ch/tsl/internal/adapters/fs"
	_ "go.trai.ch/tsl/internal/adapters/logger"
	_ "go.trai.ch/tsl/internal/adapters/metrics"
	_ "go.trai.ch/tsl/internal/adapters/telemetry"
	_ "go.trai.ch/tsl/internal/adapters/watcher"
	// Register app nodes.
	_ "go.trai.ch/tsl/internal/app"
)
