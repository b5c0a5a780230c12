// Package app implements the application layer for tsl.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.trai.ch/tsl/internal/adapters/cas"
	"go.trai.ch/tsl/internal/adapters/reporter"
	"go.trai.ch/tsl/internal/adapters/watcher"
	"go.trai.ch/tsl/internal/core/domain"
	"go.trai.ch/tsl/internal/core/ports"
	"go.trai.ch/tsl/internal/engine/compiler"
	"go.trai.ch/tsl/internal/ui/output"
	"go.trai.ch/zerr"
)

// MetricsSink records pipeline counters and can persist them.
type MetricsSink interface {
	ports.Metrics
	WriteToTextfile(path string) error
}

// levelSetter is implemented by loggers supporting runtime reconfiguration.
type levelSetter interface {
	SetJSON(enable bool)
	SetLevel(level slog.Level)
}

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	fs           ports.FileSystem
	frontend     ports.Frontend
	logger       ports.Logger
	tracer       ports.Tracer
	metrics      MetricsSink
	watchers     ports.WatcherFactory
	reporter     ports.Reporter
	debounce     time.Duration
}

// New creates a new App instance rendering results to stdout.
func New(
	loader ports.ConfigLoader,
	fs ports.FileSystem,
	frontend ports.Frontend,
	log ports.Logger,
	tracer ports.Tracer,
	metrics MetricsSink,
	watchers ports.WatcherFactory,
	stdout io.Writer,
) *App {
	return &App{
		configLoader: loader,
		fs:           fs,
		frontend:     frontend,
		logger:       log,
		tracer:       tracer,
		metrics:      metrics,
		watchers:     watchers,
		reporter:     reporter.New(stdout, output.ProfileFor(stdout)),
		debounce:     watcher.DefaultDebounceWindow,
	}
}

// WithReporter replaces the diagnostics renderer.
// This is primarily used for testing to capture output.
func (a *App) WithReporter(r ports.Reporter) *App {
	a.reporter = r
	return a
}

// WithDebounce sets the window over which watch events are coalesced.
func (a *App) WithDebounce(window time.Duration) *App {
	a.debounce = window
	return a
}

// RunOptions configuration for the Compile, Check and Watch methods.
// Nil and zero values keep the configured setting.
type RunOptions struct {
	ConfigPath string
	Target     string
	Strict     *bool
	NoEmit     *bool
	SourceMap  *bool
	Workers    int
	NoCache    bool
	OutDir     string
	MetricsOut string
}

// options returns the compile options the flags override.
func (o RunOptions) options() []domain.Option {
	var opts []domain.Option
	if o.Target != "" {
		opts = append(opts, domain.WithTarget(domain.ParseTarget(o.Target)))
	}
	if o.Strict != nil {
		opts = append(opts, domain.WithStrict(*o.Strict))
	}
	if o.NoEmit != nil {
		opts = append(opts, domain.WithNoEmit(*o.NoEmit))
	}
	if o.SourceMap != nil {
		opts = append(opts, domain.WithSourceMap(*o.SourceMap))
	}
	return opts
}

// CacheOptions configuration for the CacheStats and Clean methods.
type CacheOptions struct {
	ConfigPath string
}

// ConfigureLogging switches the logger to JSON output and debug level when requested.
func (a *App) ConfigureLogging(json, verbose bool) {
	l, ok := a.logger.(levelSetter)
	if !ok {
		return
	}
	l.SetJSON(json)
	if verbose {
		l.SetLevel(slog.LevelDebug)
	}
}

// Compile type-checks the files below paths and writes the emitted code.
func (a *App) Compile(ctx context.Context, paths []string, opts RunOptions) error {
	return a.process(ctx, domain.KindCompile, paths, opts)
}

// Check type-checks the files below paths.
func (a *App) Check(ctx context.Context, paths []string, opts RunOptions) error {
	return a.process(ctx, domain.KindCheck, paths, opts)
}

func (a *App) process(ctx context.Context, kind domain.TaskKind, paths []string, opts RunOptions) (err error) {
	p, err := a.build(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, p.close(context.WithoutCancel(ctx)), a.writeMetrics(opts.MetricsOut))
	}()

	files, err := a.expand(paths, p.cfg)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return zerr.With(domain.ErrNoInputs, "paths", strings.Join(paths, ","))
	}

	a.logger.Debug("processing", "kind", string(kind), "files", len(files), "workers", p.cfg.Workers.Size)
	return a.pass(ctx, p, kind, files, opts)
}

// pass runs kind over files, writes outputs and renders the results. Failures
// return ErrDiagnosticsReported joined with any task scheduling errors.
func (a *App) pass(ctx context.Context, p *pipeline, kind domain.TaskKind, files []string, opts RunOptions) error {
	var outcomes []compiler.FileOutcome
	if kind == domain.KindCompile {
		outcomes = p.compiler.CompileFiles(ctx, files)
	} else {
		outcomes = p.compiler.CheckFiles(ctx, files)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	units := make([]ports.UnitReport, 0, len(outcomes))
	failed := false
	var scheduling []error
	for _, o := range outcomes {
		u := ports.UnitReport{Path: o.Path, Result: o.Result, Err: o.Err}
		if u.Err == nil && len(u.Result.Diagnostics) > 0 {
			if data, err := a.fs.ReadFile(u.Path); err == nil {
				u.Source = string(data)
			}
		}
		if u.Err == nil && kind == domain.KindCompile && u.Result.Emitted {
			if err := a.fs.WriteFile(outputPath(u.Path, opts.OutDir), []byte(u.Result.Code)); err != nil {
				u.Err = err
			}
		}
		if u.Err != nil || !u.Result.Success {
			failed = true
		}
		var taskErr *domain.TaskError
		if errors.As(u.Err, &taskErr) {
			scheduling = append(scheduling, taskErr)
		}
		units = append(units, u)
	}

	a.reporter.Report(units)
	a.reporter.Summary(kind, units)

	if failed {
		return errors.Join(append([]error{domain.ErrDiagnosticsReported}, scheduling...)...)
	}
	return nil
}

// expand resolves every path to the sorted, deduplicated source files below it.
func (a *App) expand(paths []string, cfg domain.Config) ([]string, error) {
	if len(paths) == 0 {
		paths = []string{"."}
	}

	var files []string
	for _, root := range paths {
		found, err := a.fs.ListSources(root, cfg.Compiler.Extensions, cfg.Compiler.Exclude)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			files = append(files, filepath.Clean(f))
		}
	}
	slices.Sort(files)
	return slices.Compact(files), nil
}

// Watch checks the files below root, then rechecks changed files and their
// dependents until ctx is done.
//
//nolint:cyclop // event loop
func (a *App) Watch(ctx context.Context, root string, opts RunOptions) (err error) {
	if root == "" {
		root = "."
	}

	p, err := a.build(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, p.close(context.WithoutCancel(ctx)), a.writeMetrics(opts.MetricsOut))
	}()

	files, err := a.expand([]string{root}, p.cfg)
	if err != nil {
		return err
	}
	if len(files) > 0 {
		if err := a.pass(ctx, p, domain.KindCheck, files, opts); err != nil && !errors.Is(err, domain.ErrDiagnosticsReported) {
			return err
		}
	}

	w, err := a.watchers(p.cfg.Compiler.Exclude)
	if err != nil {
		return err
	}
	if err := w.Start(ctx, root); err != nil {
		return err
	}
	defer func() {
		_ = w.Stop()
	}()

	batches := make(chan []string, 1)
	done := make(chan struct{})
	defer close(done)
	deb := watcher.NewDebouncer(a.debounce, func(paths []string) {
		select {
		case batches <- paths:
		case <-done:
		}
	})
	defer deb.Stop()

	go func() {
		for ev := range w.Events() {
			if slices.Contains(p.cfg.Compiler.Extensions, filepath.Ext(ev.Path)) {
				deb.Add(filepath.Clean(ev.Path))
			}
		}
	}()

	a.logger.Info("watching for changes", "root", root, "files", len(files))
	for {
		select {
		case <-ctx.Done():
			return nil
		case changed := <-batches:
			if err := a.recheck(ctx, p, changed, opts); err != nil && !errors.Is(err, domain.ErrDiagnosticsReported) {
				if ctx.Err() != nil {
					return nil
				}
				a.logger.Error(err)
			}
		}
	}
}

// recheck invalidates changed and rechecks it together with its dependents.
// Files that no longer exist are dropped from the graph.
func (a *App) recheck(ctx context.Context, p *pipeline, changed []string, opts RunOptions) error {
	affected := p.compiler.Invalidate(changed...)

	targets := append(slices.Clone(changed), affected...)
	slices.Sort(targets)
	targets = slices.Compact(targets)

	existing := make([]string, 0, len(targets))
	for _, path := range targets {
		_, ok, err := a.fs.Stat(path)
		if err != nil {
			return err
		}
		if !ok {
			p.compiler.RemoveFile(path)
			a.logger.Debug("file removed", "path", path)
			continue
		}
		existing = append(existing, path)
	}

	a.logger.Info("change detected", "changed", len(changed), "affected", len(affected))
	if len(existing) == 0 {
		return nil
	}
	return a.pass(ctx, p, domain.KindCheck, existing, opts)
}

// CacheStats writes the occupancy of the persistent result store to w.
func (a *App) CacheStats(ctx context.Context, w io.Writer, opts CacheOptions) error {
	cfg, err := a.configLoader.Load(opts.ConfigPath)
	if err != nil {
		return zerr.Wrap(err, "failed to load configuration")
	}

	store := cas.New(domain.ResultsPath(cfg.Cache.Dir), cfg.Cache.Persistent, a.logger)
	if err := store.Initialize(ctx); err != nil {
		return err
	}
	defer func() {
		_ = store.Close()
	}()

	stats := store.Stats()
	_, err = fmt.Fprintf(w,
		"directory  %s\nentries    %d\nsize       %s / %s\nttl        %s\n",
		store.Dir(),
		stats.Entries,
		humanize.IBytes(uint64(max(stats.Bytes, 0))),
		humanize.IBytes(uint64(max(stats.MaxBytes, 0))),
		cfg.Cache.Persistent.TTL,
	)
	return err
}

// Clean removes the cache directory.
func (a *App) Clean(_ context.Context, opts CacheOptions) error {
	cfg, err := a.configLoader.Load(opts.ConfigPath)
	if err != nil {
		return zerr.Wrap(err, "failed to load configuration")
	}

	a.logger.Info(fmt.Sprintf("removing %s...", cfg.Cache.Dir))
	if err := os.RemoveAll(cfg.Cache.Dir); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCacheCleanFailed.Error()), "dir", cfg.Cache.Dir)
	}
	a.logger.Info(fmt.Sprintf("removed %s", cfg.Cache.Dir))
	return nil
}

func (a *App) writeMetrics(path string) error {
	if path == "" || a.metrics == nil {
		return nil
	}
	return a.metrics.WriteToTextfile(path)
}

// outputPath returns where the code emitted for src is written. Below outDir
// the path relative to the working directory is kept.
func outputPath(src, outDir string) string {
	out := strings.TrimSuffix(src, filepath.Ext(src)) + domain.OutputExt
	if outDir == "" {
		return out
	}

	rel := out
	if filepath.IsAbs(out) {
		rel = filepath.Base(out)
		if cwd, err := os.Getwd(); err == nil {
			if r, err := filepath.Rel(cwd, out); err == nil && !strings.HasPrefix(r, "..") {
				rel = r
			}
		}
	}
	if strings.HasPrefix(rel, "..") {
		rel = filepath.Base(rel)
	}
	return filepath.Join(outDir, rel)
}
