package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrDispatcherClosed is returned once Shutdown has been called
var ErrDispatcherClosed = errors.New("dispatcher is shut down")

// Dispatcher starts a generation run without blocking the caller
type Dispatcher interface {
	Dispatch(ctx context.Context, taskID, runID string) error
}

// Run is the handle of one background generation run
type Run struct {
	TaskID string
	RunID  string

	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Done is closed when the run has finished
func (r *Run) Done() <-chan struct{} { return r.done }

// Err returns the run's result; valid after Done is closed.
func (r *Run) Err() error {
	<-r.done
	return r.err
}

// Cancel aborts the run at its next suspension point
func (r *Run) Cancel() { r.cancel() }

// GoroutineDispatcher runs generation in-process on at most poolSize
// goroutines at a time. A new run for a task cancels the previous one.
type GoroutineDispatcher struct {
	runner Runner
	sem    chan struct{}
	logger *zap.Logger

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	mu     sync.Mutex
	runs   map[string]*Run
	closed bool
}

func NewGoroutineDispatcher(runner Runner, poolSize int, logger *zap.Logger) *GoroutineDispatcher {
	if poolSize < 1 {
		poolSize = 1
	}
	ctx, stop := context.WithCancel(context.Background())
	return &GoroutineDispatcher{
		runner:  runner,
		sem:     make(chan struct{}, poolSize),
		logger:  logger.With(zap.String("component", "dispatcher")),
		baseCtx: ctx,
		stop:    stop,
		runs:    make(map[string]*Run),
	}
}

func (d *GoroutineDispatcher) Dispatch(ctx context.Context, taskID, runID string) error {
	_, err := d.Start(taskID, runID)
	return err
}

// Start schedules run runID for taskID and returns its handle. The run waits
// for a free pool slot before doing any work.
func (d *GoroutineDispatcher) Start(taskID, runID string) (*Run, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrDispatcherClosed
	}
	if prev, ok := d.runs[taskID]; ok {
		d.logger.Info("cancelling previous run", zap.String("task_id", taskID))
		prev.Cancel()
	}

	ctx, cancel := context.WithCancel(d.baseCtx)
	run := &Run{TaskID: taskID, RunID: runID, cancel: cancel, done: make(chan struct{})}
	d.runs[taskID] = run

	d.wg.Add(1)
	go d.execute(ctx, run)
	return run, nil
}

func (d *GoroutineDispatcher) execute(ctx context.Context, run *Run) {
	defer d.wg.Done()
	defer close(run.done)
	defer run.cancel()
	defer d.forget(run)

	select {
	case d.sem <- struct{}{}:
	case <-ctx.Done():
		run.err = ctx.Err()
		return
	}
	defer func() { <-d.sem }()

	run.err = d.runner.Run(ctx, run.TaskID, run.RunID)
	switch {
	case run.err == nil:
	case errors.Is(run.err, ErrRunSuperseded):
		d.logger.Info("run superseded", zap.String("task_id", run.TaskID), zap.String("run_id", run.RunID))
	default:
		d.logger.Warn("run finished with error", zap.String("task_id", run.TaskID), zap.String("run_id", run.RunID), zap.Error(run.err))
	}
}

func (d *GoroutineDispatcher) forget(run *Run) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.runs[run.TaskID] == run {
		delete(d.runs, run.TaskID)
	}
}

// Active returns the handle of the run currently registered for taskID.
func (d *GoroutineDispatcher) Active(taskID string) (*Run, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	run, ok := d.runs[taskID]
	return run, ok
}

// Shutdown stops accepting runs and waits for the running ones. When ctx
// expires first the remaining runs are cancelled.
func (d *GoroutineDispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		d.stop()
		return nil
	case <-ctx.Done():
		d.stop()
		<-finished
		return ctx.Err()
	}
}
