package app

import (
	"context"
	"os"

	"github.com/grindlemire/graft"
	"go.trai.ch/tsl/internal/adapters/config"    //nolint:depguard // Wired in app layer
	"go.trai.ch/tsl/internal/adapters/frontend"  //nolint:depguard // Wired in app layer
	"go.trai.ch/tsl/internal/adapters/fs"        //nolint:depguard // Wired in app layer
	"go.trai.ch/tsl/internal/adapters/logger"    //nolint:depguard // Wired in app layer
	"go.trai.ch/tsl/internal/adapters/metrics"   //nolint:depguard // Wired in app layer
	"go.trai.ch/tsl/internal/adapters/telemetry" //nolint:depguard // Wired in app layer
	"go.trai.ch/tsl/internal/adapters/watcher"   //nolint:depguard // Wired in app layer
	"go.trai.ch/tsl/internal/core/ports"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

func init() {
	// App Node
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			fs.NodeID,
			frontend.NodeID,
			logger.NodeID,
			telemetry.TracerNodeID,
			metrics.NodeID,
			watcher.NodeID,
		},
		Run: runAppNode,
	})

	// Components Node
	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Components, error) {
			app, err := graft.Dep[*App](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			return &Components{App: app, Logger: log}, nil
		},
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	loader, err := graft.Dep[ports.ConfigLoader](ctx)
	if err != nil {
		return nil, err
	}

	fileSystem, err := graft.Dep[ports.FileSystem](ctx)
	if err != nil {
		return nil, err
	}

	fe, err := graft.Dep[ports.Frontend](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	tracer, err := graft.Dep[ports.Tracer](ctx)
	if err != nil {
		return nil, err
	}

	m, err := graft.Dep[*metrics.Prometheus](ctx)
	if err != nil {
		return nil, err
	}

	watchers, err := graft.Dep[ports.WatcherFactory](ctx)
	if err != nil {
		return nil, err
	}

	return New(loader, fileSystem, fe, log, tracer, m, watchers, os.Stdout), nil
}
