package learner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

const DefaultProgressBuffer = 64

type StatusKind string

const (
	StatusProgress  StatusKind = "progress"
	StatusFinished  StatusKind = "finished"
	StatusFailed    StatusKind = "failed"
	StatusCancelled StatusKind = "cancelled"
)

// Status is one message on a task channel. Only the last message of a task
// is terminal; the channel is closed right after it.
type Status struct {
	Kind     StatusKind
	Message  string
	Progress *Progress
	Result   *Result
	Err      error
}

func (s Status) Terminal() bool {
	return s.Kind != StatusProgress
}

type TaskConfig struct {
	Env   Env
	Train Config
	// Dir receives the artifact on success. Empty skips saving.
	Dir    string
	Buffer int
}

// Task is a training run on its own goroutine.
type Task struct {
	msgs    chan Status
	done    chan struct{}
	cancel  context.CancelFunc
	dropped atomic.Int64

	mu     sync.Mutex
	result Result
	err    error
}

// Start launches training. The task stops when ctx is cancelled or Cancel is
// called.
func Start(ctx context.Context, cfg TaskConfig) *Task {
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultProgressBuffer
	}
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		msgs:   make(chan Status, cfg.Buffer),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go t.run(ctx, cfg)
	return t
}

// Messages streams progress. A slow consumer loses the oldest progress
// messages, never the terminal one.
func (t *Task) Messages() <-chan Status { return t.msgs }

func (t *Task) Done() <-chan struct{} { return t.done }

func (t *Task) Cancel() { t.cancel() }

// Dropped counts progress messages discarded because the buffer was full.
func (t *Task) Dropped() int64 { return t.dropped.Load() }

// Await blocks until the task ends or ctx is done.
func (t *Task) Await(ctx context.Context) (Result, error) {
	select {
	case <-t.done:
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.result, t.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (t *Task) run(ctx context.Context, cfg TaskConfig) {
	var final Status
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("learner: training panicked: %v\n%s", r, debug.Stack())
			final = Status{Kind: StatusFailed, Message: fmt.Sprintf("Training failed: %v", r), Err: err}
			t.finish(Result{}, err)
		}
		t.publish(final)
		close(t.msgs)
		close(t.done)
		t.cancel()
	}()

	res, err := Train(ctx, cfg.Env, cfg.Train, func(p Progress) {
		t.publish(Status{Kind: StatusProgress, Message: p.Message(), Progress: &p})
	})
	if err == nil && cfg.Dir != "" {
		err = res.Policy.Save(cfg.Dir)
	}
	switch {
	case err == nil:
		final = Status{Kind: StatusFinished, Message: fmt.Sprintf("Training finished: %d steps, mean reward %.2f", res.Steps, res.MeanReward), Result: &res}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		final = Status{Kind: StatusCancelled, Message: fmt.Sprintf("Training cancelled after %d steps", res.Steps), Result: &res, Err: err}
	default:
		final = Status{Kind: StatusFailed, Message: fmt.Sprintf("Training failed: %v", err), Result: &res, Err: err}
	}
	t.finish(res, err)
}

func (t *Task) finish(res Result, err error) {
	t.mu.Lock()
	t.result = res
	t.err = err
	t.mu.Unlock()
}

// publish never blocks: when the buffer is full the oldest message is
// discarded to make room. Only the worker goroutine sends.
func (t *Task) publish(s Status) {
	for {
		select {
		case t.msgs <- s:
			return
		default:
		}
		select {
		case <-t.msgs:
			t.dropped.Add(1)
		default:
		}
	}
}
