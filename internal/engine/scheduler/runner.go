package scheduler

import (
	"context"

	"go.trai.ch/tsl/internal/core/domain"
	"go.trai.ch/tsl/internal/core/ports"
)

var _ ports.TaskRunner = (*FrontendRunner)(nil)

// FrontendRunner executes tasks by invoking a Frontend in the worker goroutine.
type FrontendRunner struct {
	frontend ports.Frontend
	metrics  ports.Metrics
}

// NewFrontendRunner creates a FrontendRunner. metrics may be nil.
func NewFrontendRunner(frontend ports.Frontend, metrics ports.Metrics) *FrontendRunner {
	return &FrontendRunner{frontend: frontend, metrics: metrics}
}

// Run invokes the frontend unless ctx is already done.
func (r *FrontendRunner) Run(ctx context.Context, task domain.Task) (domain.FrontendResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.FrontendResult{}, err
	}
	if r.metrics != nil {
		r.metrics.FrontendInvoked(task.Kind)
	}
	p := task.Payload
	return r.frontend.Run(task.Kind, p.Source, p.Options), nil
}
