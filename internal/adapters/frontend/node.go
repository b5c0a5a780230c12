package frontend

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/tsl/internal/core/ports"
)

// NodeID is the unique identifier for the frontend Graft node.
const NodeID graft.ID = "adapter.frontend"

func init() {
	graft.Register(graft.Node[ports.Frontend]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Frontend, error) {
			return New(), nil
		},
	})
}
