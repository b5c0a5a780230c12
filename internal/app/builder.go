package app

import (
	"context"
	"errors"

	"go.trai.ch/tsl/internal/adapters/cas"
	"go.trai.ch/tsl/internal/adapters/memory"
	"go.trai.ch/tsl/internal/core/domain"
	"go.trai.ch/tsl/internal/core/ports"
	"go.trai.ch/tsl/internal/engine/cache"
	"go.trai.ch/tsl/internal/engine/compiler"
	"go.trai.ch/tsl/internal/engine/scheduler"
	"go.trai.ch/zerr"
)

// Components contains all the initialized application components.
// This struct provides controlled access to components needed by the CLI layer.
type Components struct {
	App    *App
	Logger ports.Logger
}

// pipeline is the per-command assembly of cache tiers, worker pool and compiler.
type pipeline struct {
	cfg      domain.Config
	compiler *compiler.Compiler
	pool     *scheduler.Pool
	store    *cas.Store
}

// build loads the configuration, applies the overrides of opts and starts a pipeline.
func (a *App) build(ctx context.Context, opts RunOptions) (*pipeline, error) {
	cfg, err := a.configLoader.Load(opts.ConfigPath)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load configuration")
	}
	if opts.Workers > 0 {
		cfg.Workers.Size = opts.Workers
	}
	if opts.NoCache {
		cfg.Cache.Persistent.Enabled = false
	}

	mem, err := memory.New(
		cfg.Cache.Memory.MaxEntries,
		cfg.Cache.Memory.TTL,
		cfg.Cache.Memory.CleanupThreshold,
		memory.WithMetrics(a.metrics),
	)
	if err != nil {
		return nil, err
	}

	p := &pipeline{cfg: cfg}
	tierOpts := []cache.Option{cache.WithMetrics(a.metrics)}
	if cfg.Cache.Persistent.Enabled {
		p.store = cas.New(domain.ResultsPath(cfg.Cache.Dir), cfg.Cache.Persistent, a.logger, cas.WithMetrics(a.metrics))
		if err := p.store.Initialize(ctx); err != nil {
			_ = p.store.Close()
			return nil, err
		}
		tierOpts = append(tierOpts, cache.WithPersistent(p.store))
	}

	p.pool = scheduler.NewPool(
		scheduler.NewFrontendRunner(a.frontend, a.metrics),
		scheduler.Options{
			Size:          cfg.Workers.Size,
			TaskTimeout:   cfg.Workers.TaskTimeout,
			RetryAttempts: cfg.Workers.RetryAttempts,
		},
		a.logger,
		a.metrics,
	)
	if err := p.pool.Initialize(ctx); err != nil {
		return nil, errors.Join(err, p.close(ctx))
	}

	defaults := domain.Merge(cfg.Options(), opts.options()...)
	p.compiler = compiler.New(
		cache.New(mem, tierOpts...),
		a.frontend,
		p.pool,
		a.fs,
		domain.NewDependencyGraph(),
		compiler.WithDefaults(defaults),
		compiler.WithLogger(a.logger),
		compiler.WithTracer(a.tracer),
		compiler.WithMetrics(a.metrics),
		compiler.WithExtensions(cfg.Compiler.Extensions...),
		compiler.WithFileStatusTTL(cfg.Cache.FileStatusTTL),
		compiler.WithFileRecords(cfg.Cache.FileRecords),
		compiler.WithDependencies(cfg.Dependencies.Enabled, cfg.Dependencies.MaxDependencies),
	)

	a.logger.Debug("pipeline ready",
		"workers", cfg.Workers.Size,
		"persistent", cfg.Cache.Persistent.Enabled,
		"target", string(defaults.Target),
	)
	return p, nil
}

// close stops the pool and releases the persistent store.
func (p *pipeline) close(ctx context.Context) error {
	var errs error
	if p.pool != nil {
		errs = errors.Join(errs, p.pool.Shutdown(ctx))
	}
	if p.store != nil {
		errs = errors.Join(errs, p.store.Close())
	}
	return errs
}
