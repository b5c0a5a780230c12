// Package scheduler implements the bounded worker pool executing frontend tasks.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.trai.ch/tsl/internal/core/domain"
	"go.trai.ch/tsl/internal/core/ports"
)

// Options configures a Pool.
type Options struct {
	// Size is the number of workers.
	Size int
	// TaskTimeout bounds a single execution attempt.
	TaskTimeout time.Duration
	// RetryAttempts is the number of re-executions after a timeout.
	RetryAttempts int
	// RestartDelay is the pause before a crashed worker is replaced.
	RestartDelay time.Duration
}

// DefaultOptions returns the pool defaults.
func DefaultOptions() Options {
	return Options{
		Size:          domain.DefaultPoolSize,
		TaskTimeout:   domain.DefaultTaskTimeout,
		RetryAttempts: domain.DefaultRetryAttempts,
	}
}

type poolState int32

const (
	stateNew poolState = iota
	stateRunning
	stateStopping
	stateStopped
)

type reply struct {
	result domain.FrontendResult
	err    error
}

// pending is a submitted task awaiting its reply.
type pending struct {
	task     domain.Task
	attempts int
	reply    chan reply
}

type assignment struct {
	ctx   context.Context
	task  domain.Task
	slot  int
	token uint64
}

type slot struct {
	state   domain.WorkerState
	token   uint64
	inbox   chan assignment
	current *pending
	cancel  context.CancelFunc
	timer   *time.Timer
}

type eventKind int

const (
	eventDone eventKind = iota
	eventCrashed
	eventTimeout
	eventRestarted
)

type event struct {
	kind   eventKind
	slot   int
	token  uint64
	result domain.FrontendResult
	err    error
}

// Pool runs tasks on a fixed number of workers. A single loop goroutine owns
// the queue and the worker table; workers and timers talk to it over channels.
type Pool struct {
	runner  ports.TaskRunner
	opts    Options
	logger  ports.Logger
	metrics ports.Metrics

	state atomicState
	ids   atomic.Uint64

	submitCh   chan *pending
	events     chan event
	snapshotCh chan chan []domain.WorkerState
	quit       chan struct{}
	done       chan struct{}
	workers    sync.WaitGroup

	ctx       context.Context
	cancelAll context.CancelFunc

	// Owned by the loop goroutine.
	slots []*slot
	queue []*pending
	seq   uint64
}

type atomicState struct {
	v atomic.Int32
}

func (s *atomicState) load() poolState { return poolState(s.v.Load()) }

func (s *atomicState) store(st poolState) { s.v.Store(int32(st)) }

func (s *atomicState) swap(from, to poolState) bool {
	return s.v.CompareAndSwap(int32(from), int32(to))
}

// NewPool creates a Pool executing tasks with runner. metrics may be nil.
func NewPool(runner ports.TaskRunner, opts Options, logger ports.Logger, metrics ports.Metrics) *Pool {
	return &Pool{
		runner:     runner,
		opts:       opts,
		logger:     logger,
		metrics:    metrics,
		submitCh:   make(chan *pending),
		events:     make(chan event),
		snapshotCh: make(chan chan []domain.WorkerState),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Initialize starts the workers. Calling it on a running pool is a no-op.
func (p *Pool) Initialize(ctx context.Context) error {
	if p.opts.Size < 1 {
		return domain.ErrInvalidPoolSize
	}
	if !p.state.swap(stateNew, stateRunning) {
		if p.state.load() == stateRunning {
			return nil
		}
		return domain.ErrPoolShutdown
	}

	p.ctx, p.cancelAll = context.WithCancel(context.WithoutCancel(ctx))
	p.slots = make([]*slot, p.opts.Size)
	for i := range p.slots {
		p.slots[i] = &slot{state: domain.WorkerIdle}
		p.spawn(i)
	}

	go p.loop()
	p.logger.Debug("worker pool started", "workers", p.opts.Size)
	return nil
}

// Execute submits task and waits for its result. The returned error is a
// *domain.TaskError for scheduling failures, or ctx.Err() when the caller
// stops waiting; the task itself may still run in that case.
func (p *Pool) Execute(ctx context.Context, task domain.Task) (domain.FrontendResult, error) {
	switch p.state.load() {
	case stateNew:
		return domain.FrontendResult{}, domain.ErrPoolNotInitialized
	case stateStopping, stateStopped:
		return domain.FrontendResult{}, shutdownError(task)
	case stateRunning:
	}

	task.ID = p.ids.Add(1)
	pd := &pending{task: task, reply: make(chan reply, 1)}

	select {
	case p.submitCh <- pd:
	case <-p.done:
		return domain.FrontendResult{}, shutdownError(task)
	case <-ctx.Done():
		return domain.FrontendResult{}, ctx.Err()
	}

	select {
	case r := <-pd.reply:
		return r.result, r.err
	case <-ctx.Done():
		return domain.FrontendResult{}, ctx.Err()
	}
}

// Snapshot returns the state of every worker slot.
func (p *Pool) Snapshot() []domain.WorkerState {
	if p.state.load() == stateNew {
		return nil
	}
	ch := make(chan []domain.WorkerState, 1)
	select {
	case p.snapshotCh <- ch:
		return <-ch
	case <-p.done:
		return nil
	}
}

// Shutdown stops accepting tasks, rejects queued and active ones with
// domain.ErrPoolShutdown, and waits for the workers to exit or ctx to end.
func (p *Pool) Shutdown(ctx context.Context) error {
	if p.state.swap(stateNew, stateStopped) {
		return nil
	}
	if p.state.swap(stateRunning, stateStopping) {
		close(p.quit)
	}

	stopped := make(chan struct{})
	go func() {
		<-p.done
		p.workers.Wait()
		close(stopped)
	}()

	select {
	case <-stopped:
		p.state.store(stateStopped)
		p.logger.Debug("worker pool stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) loop() {
	defer close(p.done)

	for {
		select {
		case pd := <-p.submitCh:
			p.queue = append(p.queue, pd)
		case ev := <-p.events:
			p.handle(ev)
		case ch := <-p.snapshotCh:
			ch <- p.snapshot()
			continue
		case <-p.quit:
			p.stop()
			return
		}
		p.drain()
	}
}

// drain assigns queued tasks to idle workers in FIFO order.
func (p *Pool) drain() {
	for len(p.queue) > 0 {
		idx := p.idle()
		if idx < 0 {
			return
		}
		pd := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.assign(idx, pd)
	}
}

func (p *Pool) idle() int {
	for i, s := range p.slots {
		if s.state == domain.WorkerIdle {
			return i
		}
	}
	return -1
}

func (p *Pool) assign(idx int, pd *pending) {
	s := p.slots[idx]
	p.seq++
	token := p.seq

	ctx, cancel := context.WithCancel(p.ctx)
	s.state = domain.WorkerBusy
	s.token = token
	s.current = pd
	s.cancel = cancel
	s.timer = time.AfterFunc(p.opts.TaskTimeout, func() {
		p.post(event{kind: eventTimeout, slot: idx, token: token})
	})
	s.inbox <- assignment{ctx: ctx, task: pd.task, slot: idx, token: token}
}

// release detaches the current assignment from s.
func (p *Pool) release(s *slot) *pending {
	pd := s.current
	s.current = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return pd
}

func (p *Pool) handle(ev event) {
	s := p.slots[ev.slot]
	if ev.token != s.token {
		return
	}

	if ev.kind == eventRestarted {
		if s.state != domain.WorkerCrashed {
			return
		}
		s.state = domain.WorkerRestarting
		p.spawn(ev.slot)
		s.state = domain.WorkerIdle
		p.logger.Info("worker restarted", "worker", ev.slot)
		if p.metrics != nil {
			p.metrics.WorkerRestarted()
		}
		return
	}

	if s.current == nil {
		return
	}

	switch ev.kind {
	case eventDone:
		pd := p.release(s)
		s.state = domain.WorkerIdle
		p.finished(pd.task, outcome(ev))
		pd.reply <- reply{result: ev.result, err: ev.err}

	case eventCrashed:
		pd := p.release(s)
		s.state = domain.WorkerCrashed
		close(s.inbox)
		s.inbox = nil
		p.logger.Warn("worker crashed", "worker", ev.slot, "task", pd.task.Label(), "error", ev.err.Error())
		p.finished(pd.task, ports.OutcomeCrash)
		pd.reply <- reply{err: &domain.TaskError{
			TaskID: pd.task.ID,
			Kind:   pd.task.Kind,
			Err:    domain.ErrWorkerCrashed,
			Cause:  ev.err,
		}}
		p.scheduleRestart(ev.slot)

	case eventTimeout:
		pd := p.release(s)
		// The timed-out goroutine is abandoned; the slot gets a fresh one.
		close(s.inbox)
		p.spawn(ev.slot)
		s.state = domain.WorkerIdle

		pd.attempts++
		if pd.attempts <= p.opts.RetryAttempts {
			p.logger.Warn("task timed out, retrying", "task", pd.task.Label(), "attempt", pd.attempts)
			if p.metrics != nil {
				p.metrics.TaskRetried(pd.task.Kind)
			}
			p.queue = append([]*pending{pd}, p.queue...)
			return
		}
		p.finished(pd.task, ports.OutcomeTimeout)
		pd.reply <- reply{err: &domain.TaskError{
			TaskID:   pd.task.ID,
			Kind:     pd.task.Kind,
			Attempts: pd.attempts,
			Err:      domain.ErrTaskTimeout,
		}}

	case eventRestarted:
	}
}

func (p *Pool) scheduleRestart(idx int) {
	p.seq++
	token := p.seq
	p.slots[idx].token = token

	p.workers.Add(1)
	go func() {
		defer p.workers.Done()
		if p.opts.RestartDelay > 0 {
			t := time.NewTimer(p.opts.RestartDelay)
			defer t.Stop()
			select {
			case <-t.C:
			case <-p.done:
				return
			}
		}
		p.post(event{kind: eventRestarted, slot: idx, token: token})
	}()
}

func (p *Pool) stop() {
	p.cancelAll()
	for _, s := range p.slots {
		if pd := p.release(s); pd != nil {
			p.finished(pd.task, ports.OutcomeShutdown)
			pd.reply <- reply{err: shutdownError(pd.task)}
		}
		if s.inbox != nil {
			close(s.inbox)
			s.inbox = nil
		}
	}
	for _, pd := range p.queue {
		p.finished(pd.task, ports.OutcomeShutdown)
		pd.reply <- reply{err: shutdownError(pd.task)}
	}
	p.queue = nil
}

func (p *Pool) snapshot() []domain.WorkerState {
	states := make([]domain.WorkerState, len(p.slots))
	for i, s := range p.slots {
		states[i] = s.state
	}
	return states
}

// spawn starts a worker goroutine reading a fresh inbox for slot idx.
func (p *Pool) spawn(idx int) {
	inbox := make(chan assignment, 1)
	p.slots[idx].inbox = inbox

	p.workers.Add(1)
	go func() {
		defer p.workers.Done()
		for a := range inbox {
			ev := p.run(a)
			if !p.post(ev) || ev.kind == eventCrashed {
				return
			}
		}
	}()
}

// run executes one assignment, turning a panic into a crash event.
func (p *Pool) run(a assignment) (ev event) {
	ev = event{kind: eventDone, slot: a.slot, token: a.token}
	defer func() {
		if r := recover(); r != nil {
			ev.kind = eventCrashed
			ev.err = fmt.Errorf("panic: %v", r)
		}
	}()

	ev.result, ev.err = p.runner.Run(a.ctx, a.task)
	if ev.err != nil && errors.Is(ev.err, domain.ErrWorkerCrashed) {
		ev.kind = eventCrashed
	}
	return ev
}

// post delivers ev to the loop. It reports false once the loop has exited.
func (p *Pool) post(ev event) bool {
	select {
	case p.events <- ev:
		return true
	case <-p.done:
		return false
	}
}

func (p *Pool) finished(task domain.Task, outcome string) {
	if p.metrics != nil {
		p.metrics.TaskFinished(task.Kind, outcome)
	}
}

func outcome(ev event) string {
	switch {
	case ev.err != nil:
		return ports.OutcomeError
	case ev.result.Success:
		return ports.OutcomeSuccess
	default:
		return ports.OutcomeFailure
	}
}

func shutdownError(task domain.Task) error {
	return &domain.TaskError{TaskID: task.ID, Kind: task.Kind, Err: domain.ErrPoolShutdown}
}
