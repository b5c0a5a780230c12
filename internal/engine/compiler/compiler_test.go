package compiler_test

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/tsl/internal/adapters/logger"
	"go.trai.ch/tsl/internal/adapters/memory"
	"go.trai.ch/tsl/internal/core/domain"
	"go.trai.ch/tsl/internal/core/ports/mocks"
	"go.trai.ch/tsl/internal/engine/cache"
	"go.trai.ch/tsl/internal/engine/compiler"
	"go.trai.ch/tsl/internal/engine/scheduler"
	"go.uber.org/mock/gomock"
)

const (
	goodSource = "let x: number = 1;"
	badSource  = "let y: number = \"bad\";"
)

// typecheck stands in for the frontend: sources assigning a string literal to a number fail.
func typecheck(kind domain.TaskKind, source string, opts domain.Options) domain.FrontendResult {
	if strings.Contains(source, "number = \"") {
		return domain.Failed("TS-203", "Type 'string' is not assignable to type 'number'", 1, 5)
	}
	res := domain.FrontendResult{Success: true, Diagnostics: []domain.Diagnostic{}}
	if kind == domain.KindCompile && !opts.NoEmit {
		res.Code = strings.ReplaceAll(source, ": number", "")
		res.Emitted = true
	}
	return res
}

func newCache(t *testing.T) *cache.Tier {
	t.Helper()
	m, err := memory.New(100, time.Hour, 0.8)
	require.NoError(t, err)
	return cache.New(m)
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func status(sec int64, size int64) domain.FileStatus {
	return domain.FileStatus{ModTime: time.Unix(sec, 0), Size: size}
}

func TestCompiler_CompileIsCached(t *testing.T) {
	ctrl := gomock.NewController(t)
	frontend := mocks.NewMockFrontend(ctrl)
	frontend.EXPECT().
		Run(domain.KindCompile, goodSource, domain.DefaultOptions()).
		DoAndReturn(typecheck).
		Times(1)

	c := compiler.New(newCache(t), frontend, nil, nil, nil)

	first, err := c.Compile(context.Background(), goodSource)
	require.NoError(t, err)
	second, err := c.Compile(context.Background(), goodSource)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, first.Success)
	assert.Equal(t, "let x = 1;", first.Code)
}

func TestCompiler_OptionChangeBypassesCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	frontend := mocks.NewMockFrontend(ctrl)
	frontend.EXPECT().Run(gomock.Any(), goodSource, gomock.Any()).DoAndReturn(typecheck).Times(3)

	c := compiler.New(newCache(t), frontend, nil, nil, nil)
	ctx := context.Background()

	_, err := c.Compile(ctx, goodSource)
	require.NoError(t, err)
	_, err = c.Compile(ctx, goodSource, domain.WithTarget(domain.TargetES5))
	require.NoError(t, err)
	_, err = c.Check(ctx, goodSource)
	require.NoError(t, err)

	// Explicitly passing the defaults hits the first entry.
	_, err = c.Compile(ctx, goodSource, domain.WithTarget(domain.DefaultTarget))
	require.NoError(t, err)
}

func TestCompiler_FailuresAreCached(t *testing.T) {
	ctrl := gomock.NewController(t)
	frontend := mocks.NewMockFrontend(ctrl)
	frontend.EXPECT().Run(domain.KindCheck, badSource, gomock.Any()).DoAndReturn(typecheck).Times(1)

	c := compiler.New(newCache(t), frontend, nil, nil, nil)

	for range 2 {
		res, err := c.Check(context.Background(), badSource)
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, 1, res.ErrorCount())
	}
}

func TestCompiler_CompileFile(t *testing.T) {
	const path = "/src/a.ts"

	t.Run("unchanged file skips the frontend", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		frontend := mocks.NewMockFrontend(ctrl)
		fs := mocks.NewMockFileSystem(ctrl)

		fs.EXPECT().Stat(path).Return(status(100, 18), true, nil).Times(2)
		fs.EXPECT().ReadFile(path).Return([]byte(goodSource), nil).Times(1)
		frontend.EXPECT().Run(domain.KindCompile, goodSource, gomock.Any()).DoAndReturn(typecheck).Times(1)

		c := compiler.New(newCache(t), frontend, nil, fs, nil, compiler.WithFileStatusTTL(0))

		first, err := c.CompileFile(context.Background(), path)
		require.NoError(t, err)
		second, err := c.CompileFile(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("touched file is compiled again", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		frontend := mocks.NewMockFrontend(ctrl)
		fs := mocks.NewMockFileSystem(ctrl)

		edited := "let x: number = 2;"
		gomock.InOrder(
			fs.EXPECT().Stat(path).Return(status(100, 18), true, nil),
			fs.EXPECT().ReadFile(path).Return([]byte(goodSource), nil),
			fs.EXPECT().Stat(path).Return(status(200, 18), true, nil),
			fs.EXPECT().ReadFile(path).Return([]byte(edited), nil),
		)
		frontend.EXPECT().Run(domain.KindCompile, goodSource, gomock.Any()).DoAndReturn(typecheck)
		frontend.EXPECT().Run(domain.KindCompile, edited, gomock.Any()).DoAndReturn(typecheck)

		c := compiler.New(newCache(t), frontend, nil, fs, nil, compiler.WithFileStatusTTL(0))

		_, err := c.CompileFile(context.Background(), path)
		require.NoError(t, err)
		res, err := c.CompileFile(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, "let x = 2;", res.Code)
	})

	t.Run("touched file with identical content hits the cache", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		frontend := mocks.NewMockFrontend(ctrl)
		fs := mocks.NewMockFileSystem(ctrl)

		gomock.InOrder(
			fs.EXPECT().Stat(path).Return(status(100, 18), true, nil),
			fs.EXPECT().Stat(path).Return(status(100, 19), true, nil),
		)
		fs.EXPECT().ReadFile(path).Return([]byte(goodSource), nil).Times(2)
		frontend.EXPECT().Run(domain.KindCompile, goodSource, gomock.Any()).DoAndReturn(typecheck).Times(1)

		c := compiler.New(newCache(t), frontend, nil, fs, nil, compiler.WithFileStatusTTL(0))

		for range 2 {
			_, err := c.CompileFile(context.Background(), path)
			require.NoError(t, err)
		}
	})

	t.Run("status lookups are reused within the ttl", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		frontend := mocks.NewMockFrontend(ctrl)
		fs := mocks.NewMockFileSystem(ctrl)
		clock := &fakeClock{now: time.Unix(1000, 0)}

		fs.EXPECT().Stat(path).Return(status(100, 18), true, nil).Times(2)
		fs.EXPECT().ReadFile(path).Return([]byte(goodSource), nil).Times(1)
		frontend.EXPECT().Run(gomock.Any(), goodSource, gomock.Any()).DoAndReturn(typecheck).Times(1)

		c := compiler.New(newCache(t), frontend, nil, fs, nil, compiler.WithClock(clock.Now))
		ctx := context.Background()

		for range 3 {
			_, err := c.CheckFile(ctx, path)
			require.NoError(t, err)
		}
		clock.Advance(domain.DefaultFileStatusTTL)
		_, err := c.CheckFile(ctx, path)
		require.NoError(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		fs := mocks.NewMockFileSystem(ctrl)
		fs.EXPECT().Stat(path).Return(domain.FileStatus{}, false, nil)

		c := compiler.New(newCache(t), mocks.NewMockFrontend(ctrl), nil, fs, nil)

		_, err := c.CompileFile(context.Background(), path)
		require.Error(t, err)
		assert.ErrorContains(t, err, domain.ErrFileNotFound.Error())
	})
}

func TestCompiler_InvalidateCascades(t *testing.T) {
	ctrl := gomock.NewController(t)
	frontend := mocks.NewMockFrontend(ctrl)
	fs := mocks.NewMockFileSystem(ctrl)

	const (
		a    = "/src/a.ts"
		b    = "/src/b.ts"
		srcA = "export const a: number = 1;"
		srcB = "import { a } from './a';"
	)

	fs.EXPECT().Stat(a).Return(status(1, 10), true, nil).AnyTimes()
	fs.EXPECT().Stat(b).Return(status(1, 20), true, nil).AnyTimes()
	fs.EXPECT().ReadFile(a).Return([]byte(srcA), nil).Times(1)
	fs.EXPECT().ReadFile(b).Return([]byte(srcB), nil).Times(2)

	frontend.EXPECT().Run(domain.KindCheck, srcA, gomock.Any()).DoAndReturn(typecheck).Times(1)
	frontend.EXPECT().Run(domain.KindCheck, srcB, gomock.Any()).
		Return(domain.FrontendResult{Success: true, Imports: []string{"./a"}}).
		Times(2)

	c := compiler.New(newCache(t), frontend, nil, fs, nil, compiler.WithFileStatusTTL(0))
	ctx := context.Background()

	_, err := c.CheckFile(ctx, a)
	require.NoError(t, err)
	_, err = c.CheckFile(ctx, b)
	require.NoError(t, err)

	assert.Equal(t, []string{a}, c.Graph().DependenciesOf(b))
	assert.Equal(t, 2, c.Stats().Records)

	affected := c.Invalidate(a)
	assert.Equal(t, []string{b}, affected)
	assert.Equal(t, 0, c.Stats().Records)

	// b is re-read and re-checked; a is unchanged and was never re-read.
	_, err = c.CheckFile(ctx, b)
	require.NoError(t, err)
}

func TestCompiler_RemoveFile(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := compiler.New(newCache(t), mocks.NewMockFrontend(ctrl), nil, mocks.NewMockFileSystem(ctrl), nil)

	g := c.Graph()
	g.AddEdge("/src/b.ts", "/src/a.ts")
	g.AddEdge("/src/c.ts", "/src/b.ts")

	assert.Equal(t, []string{"/src/b.ts", "/src/c.ts"}, c.RemoveFile("/src/a.ts"))
	assert.False(t, g.Has("/src/a.ts"))
	assert.Empty(t, g.DependenciesOf("/src/b.ts"))
}

func TestCompiler_Clear(t *testing.T) {
	ctrl := gomock.NewController(t)
	frontend := mocks.NewMockFrontend(ctrl)
	frontend.EXPECT().Run(domain.KindCheck, goodSource, gomock.Any()).DoAndReturn(typecheck).Times(2)

	c := compiler.New(newCache(t), frontend, nil, nil, nil)
	c.Graph().AddEdge("/src/b.ts", "/src/a.ts")
	ctx := context.Background()

	_, err := c.Check(ctx, goodSource)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Stats().Cache.Memory.Entries)

	c.Clear()
	assert.Equal(t, 0, c.Stats().Cache.Memory.Entries)
	assert.Equal(t, domain.GraphStats{}, c.Stats().Graph)

	_, err = c.Check(ctx, goodSource)
	require.NoError(t, err)
}

func TestCompiler_StatusCacheIsBounded(t *testing.T) {
	ctrl := gomock.NewController(t)
	fs := mocks.NewMockFileSystem(ctrl)
	fs.EXPECT().Stat(gomock.Any()).Return(domain.FileStatus{}, false, nil).Times(5)

	c := compiler.New(newCache(t), mocks.NewMockFrontend(ctrl), nil, fs, nil,
		compiler.WithFileRecords(2),
		compiler.WithFileStatusTTL(time.Hour),
	)
	ctx := context.Background()

	for _, path := range []string{"/src/a.ts", "/src/b.ts", "/src/c.ts", "/src/d.ts"} {
		_, err := c.CheckFile(ctx, path)
		require.ErrorContains(t, err, domain.ErrFileNotFound.Error())
	}
	assert.Equal(t, 2, c.Stats().Statuses)

	// d is still cached, a was evicted and is stat'ed again.
	_, err := c.CheckFile(ctx, "/src/d.ts")
	require.ErrorContains(t, err, domain.ErrFileNotFound.Error())
	_, err = c.CheckFile(ctx, "/src/a.ts")
	require.ErrorContains(t, err, domain.ErrFileNotFound.Error())
	assert.Equal(t, 2, c.Stats().Statuses)
}

func TestCompiler_DependencyLimit(t *testing.T) {
	ctrl := gomock.NewController(t)
	frontend := mocks.NewMockFrontend(ctrl)
	fs := mocks.NewMockFileSystem(ctrl)

	fs.EXPECT().Stat(gomock.Any()).Return(status(1, 1), true, nil).AnyTimes()
	fs.EXPECT().ReadFile("/src/b.ts").Return([]byte("b"), nil)
	fs.EXPECT().ReadFile("/src/c.ts").Return([]byte("c"), nil)
	frontend.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(domain.FrontendResult{Success: true, Imports: []string{"./a"}}).
		Times(2)

	c := compiler.New(newCache(t), frontend, nil, fs, nil,
		compiler.WithDependencies(true, 2),
		compiler.WithLogger(logger.Discard()),
	)
	ctx := context.Background()

	_, err := c.CheckFile(ctx, "/src/b.ts")
	require.NoError(t, err)
	_, err = c.CheckFile(ctx, "/src/c.ts")
	require.NoError(t, err)

	assert.Equal(t, []string{"/src/b.ts"}, c.Graph().DependentsOf("/src/a.ts"))
	assert.False(t, c.Graph().Has("/src/c.ts"))
}

func TestCompiler_CheckMany(t *testing.T) {
	ctrl := gomock.NewController(t)
	frontend := mocks.NewMockFrontend(ctrl)
	frontend.EXPECT().Run(domain.KindCheck, gomock.Any(), gomock.Any()).DoAndReturn(typecheck).Times(2)

	pool := scheduler.NewPool(scheduler.NewFrontendRunner(frontend, nil), scheduler.DefaultOptions(), logger.Discard(), nil)
	require.NoError(t, pool.Initialize(context.Background()))
	t.Cleanup(func() { _ = pool.Shutdown(context.Background()) })

	c := compiler.New(newCache(t), frontend, pool, nil, nil)

	outcomes := c.CheckMany(context.Background(), []string{goodSource, badSource})
	require.Len(t, outcomes, 2)
	require.NoError(t, outcomes[0].Err)
	require.NoError(t, outcomes[1].Err)
	assert.True(t, outcomes[0].Result.Success)
	assert.False(t, outcomes[1].Result.Success)
	assert.NotEmpty(t, outcomes[1].Result.Diagnostics)

	// The second batch is served from the cache.
	again := c.CheckMany(context.Background(), []string{badSource, goodSource})
	assert.False(t, again[0].Result.Success)
	assert.True(t, again[1].Result.Success)
}

type flakyExecutor struct {
	calls atomic.Int32
}

func (e *flakyExecutor) Execute(_ context.Context, task domain.Task) (domain.FrontendResult, error) {
	if e.calls.Add(1) == 1 {
		return domain.FrontendResult{}, &domain.TaskError{TaskID: 1, Kind: task.Kind, Attempts: 4, Err: domain.ErrTaskTimeout}
	}
	return typecheck(task.Kind, task.Payload.Source, task.Payload.Options), nil
}

func TestCompiler_SchedulingErrorsAreNotCached(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := &flakyExecutor{}
	c := compiler.New(newCache(t), mocks.NewMockFrontend(ctrl), exec, nil, nil)

	first := c.CompileMany(context.Background(), []string{goodSource})
	require.ErrorIs(t, first[0].Err, domain.ErrTaskTimeout)

	second := c.CompileMany(context.Background(), []string{goodSource})
	require.NoError(t, second[0].Err)
	assert.True(t, second[0].Result.Success)
	assert.Equal(t, int32(2), exec.calls.Load())
}

func TestCompiler_CheckFiles(t *testing.T) {
	ctrl := gomock.NewController(t)
	frontend := mocks.NewMockFrontend(ctrl)
	fs := mocks.NewMockFileSystem(ctrl)

	fs.EXPECT().Stat("/src/ok.ts").Return(status(1, 18), true, nil)
	fs.EXPECT().Stat("/src/gone.ts").Return(domain.FileStatus{}, false, nil)
	fs.EXPECT().ReadFile("/src/ok.ts").Return([]byte(goodSource), nil)
	frontend.EXPECT().Run(domain.KindCheck, goodSource, gomock.Any()).DoAndReturn(typecheck)

	pool := scheduler.NewPool(scheduler.NewFrontendRunner(frontend, nil), scheduler.DefaultOptions(), logger.Discard(), nil)
	require.NoError(t, pool.Initialize(context.Background()))
	t.Cleanup(func() { _ = pool.Shutdown(context.Background()) })

	c := compiler.New(newCache(t), frontend, pool, fs, nil)

	outcomes := c.CheckFiles(context.Background(), []string{"/src/gone.ts", "/src/ok.ts"})
	require.Len(t, outcomes, 2)
	assert.Equal(t, "/src/gone.ts", outcomes[0].Path)
	assert.ErrorContains(t, outcomes[0].Err, domain.ErrFileNotFound.Error())
	assert.Equal(t, "/src/ok.ts", outcomes[1].Path)
	require.NoError(t, outcomes[1].Err)
	assert.True(t, outcomes[1].Result.Success)
}
