package segment

import (
	"context"
	"sync"

	"github.com/ironsheep/segment-tools-mcp/internal/raster"
)

// Task is a single-shot handle on a segmentation running in the background.
// It completes exactly once, with either a result or an error.
type Task struct {
	done chan struct{}

	mu        sync.Mutex
	state     State
	res       *Result
	err       error
	onSuccess []func(*Result)
	onFailure []func(error)
}

// Start launches Run on a new goroutine and returns immediately.
func Start(ctx context.Context, in *raster.Raster, p Provider, opts ...RunOption) *Task {
	t := &Task{done: make(chan struct{}), state: StateIdle}
	opts = append(opts[:len(opts):len(opts)], WithObserver(ObserverFunc(t.observe)))
	go func() {
		res, err := Run(ctx, in, p, opts...)
		t.complete(res, err)
	}()
	return t
}

func (t *Task) observe(tr Transition) {
	t.mu.Lock()
	t.state = tr.To
	t.mu.Unlock()
}

func (t *Task) complete(res *Result, err error) {
	t.mu.Lock()
	t.res, t.err = res, err
	success, failure := t.onSuccess, t.onFailure
	t.onSuccess, t.onFailure = nil, nil
	close(t.done)
	t.mu.Unlock()

	if err != nil {
		for _, f := range failure {
			f(err)
		}
		return
	}
	for _, f := range success {
		f(res)
	}
}

// Done is closed once the task has finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task finishes.
func (t *Task) Wait() (*Result, error) {
	<-t.done
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.res, t.err
}

// State returns the latest lifecycle state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Then registers continuations; exactly one of them runs, once. Either may be
// nil. If the task has already finished the continuation runs immediately on
// the calling goroutine, otherwise on the task's goroutine.
func (t *Task) Then(onSuccess func(*Result), onFailure func(error)) {
	t.mu.Lock()
	select {
	case <-t.done:
		res, err := t.res, t.err
		t.mu.Unlock()
		if err != nil {
			if onFailure != nil {
				onFailure(err)
			}
		} else if onSuccess != nil {
			onSuccess(res)
		}
		return
	default:
	}
	if onSuccess != nil {
		t.onSuccess = append(t.onSuccess, onSuccess)
	}
	if onFailure != nil {
		t.onFailure = append(t.onFailure, onFailure)
	}
	t.mu.Unlock()
}
