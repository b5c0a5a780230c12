// Package main is the entry point for the tsl compiler.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/grindlemire/graft"
	"go.trai.ch/tsl/cmd/tsl/commands"
	"go.trai.ch/tsl/internal/app"
	"go.trai.ch/tsl/internal/core/domain"
	_ "go.trai.ch/tsl/internal/wiring"
)

// Exit codes returned by the tsl binary.
const (
	exitOK = 0
	// exitDiagnostics means sources were checked and reported errors.
	exitDiagnostics = 1
	// exitError means the command itself failed (configuration, I/O, usage).
	exitError = 2
	// exitScheduling means a task timed out or crashed its worker.
	exitScheduling = 3
)

// ComponentProvider is a function that returns the application components.
type ComponentProvider func(context.Context) (*app.Components, func(), error)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stderr, func(ctx context.Context) (*app.Components, func(), error) {
		c, _, err := graft.ExecuteFor[*app.Components](ctx)
		return c, func() {}, err
	}))
}

func run(
	ctx context.Context,
	args []string,
	stderr io.Writer,
	provider ComponentProvider,
	opts ...func(*app.App),
) int {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	components, cleanup, err := provider(ctx)
	if err != nil {
		// No logger without components.
		_, _ = fmt.Fprintln(stderr, "Error: "+err.Error())
		return exitError
	}
	defer cleanup()

	for _, opt := range opts {
		opt(components.App)
	}

	cli := commands.New(components.App)
	cli.SetArgs(args)
	cli.SetOutput(os.Stdout, stderr)

	err = cli.Execute(ctx)
	// Diagnostics and task failures have already been rendered.
	if err != nil && !errors.Is(err, domain.ErrDiagnosticsReported) {
		components.Logger.Error(err)
	}
	return exitCode(err)
}

// exitCode maps the error of a command to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, domain.ErrTaskTimeout), errors.Is(err, domain.ErrWorkerCrashed):
		return exitScheduling
	case errors.Is(err, domain.ErrDiagnosticsReported):
		return exitDiagnostics
	default:
		return exitError
	}
}
