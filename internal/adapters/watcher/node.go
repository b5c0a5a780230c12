package watcher

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/tsl/internal/adapters/logger"
	"go.trai.ch/tsl/internal/core/ports"
)

// NodeID is the unique identifier for the watcher factory Graft node.
const NodeID graft.ID = "adapter.watcher"

func init() {
	graft.Register(graft.Node[ports.WatcherFactory]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (ports.WatcherFactory, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return func(exclude []string) (ports.Watcher, error) {
				return NewWatcher(log, exclude)
			}, nil
		},
	})
}
