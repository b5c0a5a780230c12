// Package compiler implements the compile and check entry points over the
// result cache, the worker pool and the dependency graph.
package compiler

import (
	"context"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"go.trai.ch/tsl/internal/core/domain"
	"go.trai.ch/tsl/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// Executor runs a task on a worker.
type Executor interface {
	Execute(ctx context.Context, task domain.Task) (domain.FrontendResult, error)
}

// Outcome is the positional result of one batch member.
type Outcome struct {
	Result domain.FrontendResult
	Err    error
}

// FileOutcome is the positional result of one file in a batch.
type FileOutcome struct {
	Path   string
	Result domain.FrontendResult
	Err    error
}

// Stats describes the orchestration state.
type Stats struct {
	Cache    domain.CacheStats
	Graph    domain.GraphStats
	Records  int
	Statuses int
}

type statusEntry struct {
	status    domain.FileStatus
	exists    bool
	checkedAt time.Time
}

// fileRecord is the last result produced for a file under one kind and option set.
type fileRecord struct {
	path        string
	status      domain.FileStatus
	fingerprint domain.Fingerprint
	result      domain.FrontendResult
}

// Compiler composes fingerprinting, cache lookup and frontend invocation.
// Single sources run in the caller's goroutine; batches go through the pool.
type Compiler struct {
	cache    ports.ResultCache
	frontend ports.Frontend
	pool     Executor
	fs       ports.FileSystem
	graph    *domain.DependencyGraph

	logger  ports.Logger
	tracer  ports.Tracer
	metrics ports.Metrics
	now     func() time.Time

	defaults   domain.Options
	extensions []string
	statusTTL  time.Duration
	maxRecords int
	trackDeps  bool
	maxDeps    int

	mu        sync.Mutex
	statuses  *simplelru.LRU[string, statusEntry]
	records   *simplelru.LRU[string, fileRecord]
	capWarned bool
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithDefaults sets the options every call is merged over.
func WithDefaults(opts domain.Options) Option {
	return func(c *Compiler) {
		c.defaults = opts
	}
}

// WithLogger sets the logger.
func WithLogger(l ports.Logger) Option {
	return func(c *Compiler) {
		c.logger = l
	}
}

// WithTracer sets the tracer.
func WithTracer(t ports.Tracer) Option {
	return func(c *Compiler) {
		c.tracer = t
	}
}

// WithMetrics reports direct frontend invocations to m.
func WithMetrics(m ports.Metrics) Option {
	return func(c *Compiler) {
		c.metrics = m
	}
}

// WithClock replaces the wall clock of the file status cache.
func WithClock(now func() time.Time) Option {
	return func(c *Compiler) {
		c.now = now
	}
}

// WithExtensions sets the source extensions; the first one completes extensionless imports.
func WithExtensions(exts ...string) Option {
	return func(c *Compiler) {
		c.extensions = exts
	}
}

// WithFileStatusTTL sets how long a stat result is reused.
func WithFileStatusTTL(ttl time.Duration) Option {
	return func(c *Compiler) {
		c.statusTTL = ttl
	}
}

// WithFileRecords bounds the number of remembered file results.
func WithFileRecords(n int) Option {
	return func(c *Compiler) {
		c.maxRecords = n
	}
}

// WithDependencies toggles import tracking and bounds the number of tracked files.
func WithDependencies(enabled bool, maxFiles int) Option {
	return func(c *Compiler) {
		c.trackDeps = enabled
		c.maxDeps = maxFiles
	}
}

// New creates a Compiler. pool may be nil, in which case batches run in the caller's process.
func New(
	cache ports.ResultCache,
	frontend ports.Frontend,
	pool Executor,
	fs ports.FileSystem,
	graph *domain.DependencyGraph,
	opts ...Option,
) *Compiler {
	c := &Compiler{
		cache:      cache,
		frontend:   frontend,
		pool:       pool,
		fs:         fs,
		graph:      graph,
		logger:     nopLogger{},
		tracer:     nopTracer{},
		now:        time.Now,
		defaults:   domain.DefaultOptions(),
		extensions: []string{".ts"},
		statusTTL:  domain.DefaultFileStatusTTL,
		maxRecords: domain.DefaultFileRecords,
		trackDeps:  true,
		maxDeps:    domain.DefaultMaxDependencies,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.graph == nil {
		c.graph = domain.NewDependencyGraph()
	}
	//nolint:errcheck // NewLRU only fails for non-positive sizes
	c.records, _ = simplelru.NewLRU[string, fileRecord](max(1, c.maxRecords), nil)
	//nolint:errcheck // as above
	c.statuses, _ = simplelru.NewLRU[string, statusEntry](max(1, c.maxRecords), nil)
	return c
}

// Graph returns the dependency graph fed by file compilations.
func (c *Compiler) Graph() *domain.DependencyGraph {
	return c.graph
}

// Compile type-checks and emits code for source.
func (c *Compiler) Compile(ctx context.Context, source string, opts ...domain.Option) (domain.FrontendResult, error) {
	return c.resolve(ctx, domain.KindCompile, source, "", domain.Merge(c.defaults, opts...), false)
}

// Check type-checks source.
func (c *Compiler) Check(ctx context.Context, source string, opts ...domain.Option) (domain.FrontendResult, error) {
	return c.resolve(ctx, domain.KindCheck, source, "", domain.Merge(c.defaults, opts...), false)
}

// CompileFile compiles the file at path, reusing the previous result when the file is unchanged.
func (c *Compiler) CompileFile(ctx context.Context, path string, opts ...domain.Option) (domain.FrontendResult, error) {
	return c.file(ctx, domain.KindCompile, path, domain.Merge(c.defaults, opts...), false)
}

// CheckFile checks the file at path, reusing the previous result when the file is unchanged.
func (c *Compiler) CheckFile(ctx context.Context, path string, opts ...domain.Option) (domain.FrontendResult, error) {
	return c.file(ctx, domain.KindCheck, path, domain.Merge(c.defaults, opts...), false)
}

// CompileMany compiles every source on the pool. Outcomes match the input order.
func (c *Compiler) CompileMany(ctx context.Context, sources []string, opts ...domain.Option) []Outcome {
	return c.many(ctx, domain.KindCompile, sources, domain.Merge(c.defaults, opts...))
}

// CheckMany checks every source on the pool. Outcomes match the input order.
func (c *Compiler) CheckMany(ctx context.Context, sources []string, opts ...domain.Option) []Outcome {
	return c.many(ctx, domain.KindCheck, sources, domain.Merge(c.defaults, opts...))
}

// CompileFiles compiles every file on the pool. Outcomes match the input order.
func (c *Compiler) CompileFiles(ctx context.Context, paths []string, opts ...domain.Option) []FileOutcome {
	return c.files(ctx, domain.KindCompile, paths, domain.Merge(c.defaults, opts...))
}

// CheckFiles checks every file on the pool. Outcomes match the input order.
func (c *Compiler) CheckFiles(ctx context.Context, paths []string, opts ...domain.Option) []FileOutcome {
	return c.files(ctx, domain.KindCheck, paths, domain.Merge(c.defaults, opts...))
}

func (c *Compiler) many(ctx context.Context, kind domain.TaskKind, sources []string, opts domain.Options) []Outcome {
	ctx, span := c.tracer.Start(ctx, "tsl.batch")
	defer span.End()
	span.SetAttribute("tsl.kind", string(kind))
	span.SetAttribute("tsl.batch.size", len(sources))

	out := make([]Outcome, len(sources))
	var g errgroup.Group
	for i, source := range sources {
		g.Go(func() error {
			res, err := c.resolve(ctx, kind, source, "", opts, true)
			out[i] = Outcome{Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (c *Compiler) files(ctx context.Context, kind domain.TaskKind, paths []string, opts domain.Options) []FileOutcome {
	ctx, span := c.tracer.Start(ctx, "tsl.batch")
	defer span.End()
	span.SetAttribute("tsl.kind", string(kind))
	span.SetAttribute("tsl.batch.size", len(paths))

	out := make([]FileOutcome, len(paths))
	var g errgroup.Group
	for i, path := range paths {
		g.Go(func() error {
			res, err := c.file(ctx, kind, path, opts, true)
			out[i] = FileOutcome{Path: path, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// resolve returns the cached result for the triple or produces and caches it.
// Frontend failures are cached; scheduling failures are not.
func (c *Compiler) resolve(
	ctx context.Context,
	kind domain.TaskKind,
	source, path string,
	opts domain.Options,
	pooled bool,
) (domain.FrontendResult, error) {
	ctx, span := c.tracer.Start(ctx, "tsl."+string(kind))
	defer span.End()
	if path != "" {
		span.SetAttribute("tsl.path", path)
	}

	fp := domain.NewFingerprint(kind, source, opts)
	span.SetAttribute("tsl.fingerprint", fp.String())

	if res, ok := c.cache.Get(fp); ok {
		span.SetAttribute("tsl.cached", true)
		return res, nil
	}
	span.SetAttribute("tsl.cached", false)

	var res domain.FrontendResult
	if pooled && c.pool != nil {
		var err error
		res, err = c.pool.Execute(ctx, domain.Task{
			Kind:    kind,
			Payload: domain.Payload{Source: source, Options: opts, Path: path},
		})
		if err != nil {
			span.RecordError(err)
			return domain.FrontendResult{}, err
		}
	} else {
		if err := ctx.Err(); err != nil {
			return domain.FrontendResult{}, err
		}
		if c.metrics != nil {
			c.metrics.FrontendInvoked(kind)
		}
		res = c.frontend.Run(kind, source, opts)
	}

	c.cache.Set(fp, res)
	return res, nil
}

func (c *Compiler) file(
	ctx context.Context,
	kind domain.TaskKind,
	path string,
	opts domain.Options,
	pooled bool,
) (domain.FrontendResult, error) {
	path = filepath.Clean(path)

	status, exists, err := c.stat(path)
	if err != nil {
		return domain.FrontendResult{}, zerr.With(zerr.Wrap(err, domain.ErrPathStatFailed.Error()), "path", path)
	}
	if !exists {
		return domain.FrontendResult{}, zerr.With(domain.ErrFileNotFound, "path", path)
	}

	key := recordKey(kind, path, opts)
	c.mu.Lock()
	rec, ok := c.records.Get(key)
	c.mu.Unlock()
	if ok && rec.status.Same(status) {
		return rec.result, nil
	}

	data, err := c.fs.ReadFile(path)
	if err != nil {
		return domain.FrontendResult{}, zerr.With(zerr.Wrap(err, domain.ErrFileReadFailed.Error()), "path", path)
	}
	source := string(data)

	res, err := c.resolve(ctx, kind, source, path, opts, pooled)
	if err != nil {
		return domain.FrontendResult{}, err
	}

	c.mu.Lock()
	c.records.Add(key, fileRecord{
		path:        path,
		status:      status,
		fingerprint: domain.NewFingerprint(kind, source, opts),
		result:      res,
	})
	c.mu.Unlock()

	c.track(path, res.Imports)
	return res, nil
}

// stat returns the status of path, reusing a lookup younger than the status TTL.
func (c *Compiler) stat(path string) (domain.FileStatus, bool, error) {
	now := c.now()

	c.mu.Lock()
	e, ok := c.statuses.Get(path)
	c.mu.Unlock()
	if ok && now.Sub(e.checkedAt) < c.statusTTL {
		return e.status, e.exists, nil
	}

	status, exists, err := c.fs.Stat(path)
	if err != nil {
		return domain.FileStatus{}, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses.Add(path, statusEntry{status: status, exists: exists, checkedAt: now})
	return status, exists, nil
}

// track replaces the outgoing edges of path with its resolved imports.
func (c *Compiler) track(path string, imports []string) {
	if !c.trackDeps {
		return
	}
	if !c.graph.Has(path) && c.graph.Stats().Files >= c.maxDeps {
		c.mu.Lock()
		warned := c.capWarned
		c.capWarned = true
		c.mu.Unlock()
		if !warned {
			c.logger.Warn("dependency tracking limit reached", "files", c.maxDeps)
		}
		return
	}

	c.graph.RemoveEdges(path)
	for _, imp := range imports {
		c.graph.AddEdge(path, c.resolveImport(path, imp))
	}
}

func (c *Compiler) resolveImport(from, spec string) string {
	dep := spec
	if !filepath.IsAbs(dep) {
		dep = filepath.Join(filepath.Dir(from), dep)
	}
	if filepath.Ext(dep) == "" && len(c.extensions) > 0 {
		dep += c.extensions[0]
	}
	return filepath.Clean(dep)
}

// Invalidate drops the cached results of paths and of every file depending on
// them. It returns the sorted dependents, excluding paths unless they lie on a cycle.
func (c *Compiler) Invalidate(paths ...string) []string {
	forget := make(map[string]struct{})
	dependents := make(map[string]struct{})
	for _, p := range paths {
		p = filepath.Clean(p)
		forget[p] = struct{}{}
		for _, a := range c.graph.AffectedBy(p) {
			forget[a] = struct{}{}
			dependents[a] = struct{}{}
		}
	}

	c.mu.Lock()
	removed := 0
	for _, key := range c.records.Keys() {
		rec, ok := c.records.Peek(key)
		if !ok {
			continue
		}
		if _, hit := forget[rec.path]; hit {
			c.cache.Delete(rec.fingerprint)
			c.records.Remove(key)
			removed++
		}
	}
	for p := range forget {
		c.statuses.Remove(p)
	}
	c.mu.Unlock()

	c.logger.Debug("invalidated", "files", len(forget), "records", removed)

	out := make([]string, 0, len(dependents))
	for p := range dependents {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// RemoveFile invalidates path and its dependents, then drops path from the graph.
func (c *Compiler) RemoveFile(path string) []string {
	affected := c.Invalidate(path)
	c.graph.RemoveFile(filepath.Clean(path))
	return affected
}

// Clear empties the result cache, the dependency graph and all file records.
func (c *Compiler) Clear() {
	c.mu.Lock()
	c.records.Purge()
	c.statuses.Purge()
	c.capWarned = false
	c.mu.Unlock()

	c.cache.Clear()
	c.graph.Clear()
	c.logger.Debug("cache cleared")
}

// Stats returns the cache, graph and file record statistics.
func (c *Compiler) Stats() Stats {
	c.mu.Lock()
	records, statuses := c.records.Len(), c.statuses.Len()
	c.mu.Unlock()
	return Stats{
		Cache:    c.cache.Stats(),
		Graph:    c.graph.Stats(),
		Records:  records,
		Statuses: statuses,
	}
}

func recordKey(kind domain.TaskKind, path string, opts domain.Options) string {
	return string(kind) + "|" + path + "|" + opts.Key()
}
