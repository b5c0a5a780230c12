// Package ports defines the core interfaces for the application.
package ports

import (
	"context"

	"go.trai.ch/tsl/internal/core/domain"
)

// Frontend parses, type-checks and optionally generates code for one source text.
// Implementations must be deterministic and must report internal failures as an
// unsuccessful result rather than panicking.
//
//go:generate mockgen -source=frontend.go -destination=mocks/mock_frontend.go -package=mocks
type Frontend interface {
	Run(kind domain.TaskKind, source string, opts domain.Options) domain.FrontendResult
}

// TaskRunner executes a task on behalf of a worker.
type TaskRunner interface {
	// Run must return once ctx is done. Returning an error wrapping
	// domain.ErrWorkerCrashed terminates the worker.
	Run(ctx context.Context, task domain.Task) (domain.FrontendResult, error)
}

// TaskRunnerFunc adapts a function to TaskRunner.
type TaskRunnerFunc func(ctx context.Context, task domain.Task) (domain.FrontendResult, error)

// Run calls f.
func (f TaskRunnerFunc) Run(ctx context.Context, task domain.Task) (domain.FrontendResult, error) {
	return f(ctx, task)
}
