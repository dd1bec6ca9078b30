package segment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/segment-tools-mcp/internal/logger"
	"github.com/ironsheep/segment-tools-mcp/internal/raster"
)

// State is a step of a single request's lifecycle.
type State string

// Request lifecycle: Idle -> Running -> {Succeeded, Failed}. Requests
// rejected before the provider is called go straight from Idle to Failed.
const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

const (
	eventStart   = "start"
	eventSucceed = "succeed"
	eventFail    = "fail"
)

// Transition is delivered to observers on every state change.
type Transition struct {
	RequestID string
	From, To  State
	// Err is set on the transition into StateFailed.
	Err error
}

// Observer receives lifecycle transitions. Calls happen on the goroutine
// running the request.
type Observer interface {
	Observe(Transition)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Transition)

// Observe implements Observer.
func (f ObserverFunc) Observe(t Transition) { f(t) }

type runOptions struct {
	requestID string
	observers []Observer
}

// RunOption configures a single Run.
type RunOption func(*runOptions)

// WithObserver adds an observer for the request's transitions.
func WithObserver(o Observer) RunOption {
	return func(ro *runOptions) {
		if o != nil {
			ro.observers = append(ro.observers, o)
		}
	}
}

// WithRequestID tags the request; a random UUID is used otherwise.
func WithRequestID(id string) RunOption {
	return func(ro *runOptions) { ro.requestID = id }
}

// request tracks one invocation through its state machine.
type request struct {
	id  string
	fsm *fsm.FSM
	log *logrus.Entry
}

func newRequest(ctx context.Context, p Provider, o runOptions) *request {
	r := &request{id: o.requestID}
	if r.id == "" {
		r.id = uuid.NewString()
	}

	fields := logrus.Fields{"request_id": r.id}
	if n, ok := p.(Named); ok {
		fields["provider"] = n.Name()
	}
	r.log = logger.Entry(ctx).WithFields(fields)

	r.fsm = fsm.NewFSM(
		string(StateIdle),
		fsm.Events{
			{Name: eventStart, Src: []string{string(StateIdle)}, Dst: string(StateRunning)},
			{Name: eventSucceed, Src: []string{string(StateRunning)}, Dst: string(StateSucceeded)},
			{Name: eventFail, Src: []string{string(StateIdle), string(StateRunning)}, Dst: string(StateFailed)},
		},
		fsm.Callbacks{
			"enter_state": func(e *fsm.Event) {
				t := Transition{RequestID: r.id, From: State(e.Src), To: State(e.Dst)}
				if len(e.Args) > 0 {
					if err, ok := e.Args[0].(error); ok {
						t.Err = err
					}
				}
				r.log.WithField("state", e.Dst).Debugf("segmentation %s -> %s", e.Src, e.Dst)
				for _, obs := range o.observers {
					obs.Observe(t)
				}
			},
		},
	)
	return r
}

func (r *request) event(name string, args ...interface{}) {
	if err := r.fsm.Event(name, args...); err != nil {
		r.log.WithError(err).Warnf("unexpected lifecycle event %s in state %s", name, r.fsm.Current())
	}
}

// Run drives one segmentation request to completion.
//
// The provider is called only when it is non-nil and ready, and only for a
// valid raster; otherwise ErrProviderNotReady or an error wrapping
// ErrInvalidInput is returned. A provider error, panic, or unrenderable
// result yields a *FailedError carrying the cause. On success the provider's
// result is returned unchanged. Run keeps no state between calls.
//
// Parameters:
//   - ctx: Passed to the provider. Run itself does not cancel anything.
//   - in: The image to segment. Providers must treat it as read-only.
//   - p: The provider. It may implement Readiness to report an unloaded model.
//   - opts: WithObserver to follow lifecycle transitions, WithRequestID to
//     tag log entries with a caller-chosen id.
//
// Returns:
//   - *Result: A 4-channel raster and the legend of the classes it contains.
//   - error: Non-nil if the request could not be served.
//
// # Errors
//
// Checks run in this order, and the provider is untouched if one fails:
//   - ErrProviderNotReady if p is nil or reports not ready
//   - an error matching ErrInvalidInput if in is nil or fails Validate
//
// After the provider runs:
//   - *FailedError (matching ErrSegmentationFailed) if it returns an error,
//     panics, or returns a raster that is missing or not valid RGBA
func Run(ctx context.Context, in *raster.Raster, p Provider, opts ...RunOption) (*Result, error) {
	var o runOptions
	for _, opt := range opts {
		opt(&o)
	}
	req := newRequest(ctx, p, o)

	if !providerReady(p) {
		req.event(eventFail, ErrProviderNotReady)
		return nil, ErrProviderNotReady
	}
	if err := in.Validate(); err != nil {
		err = invalidInput(err)
		req.event(eventFail, err)
		return nil, err
	}

	req.event(eventStart)
	start := time.Now()

	res, err := invoke(ctx, p, in)
	if err == nil {
		err = checkResult(res)
	}
	if err != nil {
		failed := &FailedError{Cause: err}
		if n, ok := p.(Named); ok {
			failed.Provider = n.Name()
		}
		req.log.WithError(err).Warn("segmentation failed")
		req.event(eventFail, failed)
		return nil, failed
	}

	req.log.WithFields(logrus.Fields{
		"width":   res.Raster.Width,
		"height":  res.Raster.Height,
		"classes": len(res.Legend),
		"elapsed": time.Since(start).String(),
	}).Info("segmentation complete")
	req.event(eventSucceed)
	return res, nil
}

func providerReady(p Provider) bool {
	if p == nil {
		return false
	}
	if r, ok := p.(Readiness); ok {
		return r.Ready()
	}
	return true
}

// invoke calls the provider, converting a panic into an error.
func invoke(ctx context.Context, p Provider, in *raster.Raster) (res *Result, err error) {
	defer func() {
		if v := recover(); v != nil {
			res = nil
			err = fmt.Errorf("provider panic: %v", v)
		}
	}()
	return p.Segment(ctx, in)
}

// checkResult rejects results that could not be rendered.
func checkResult(res *Result) error {
	if res == nil || res.Raster == nil {
		return fmt.Errorf("provider returned no raster")
	}
	if err := res.Raster.Validate(); err != nil {
		return fmt.Errorf("provider returned a malformed raster: %w", err)
	}
	if res.Raster.Channels != raster.RGBA {
		return fmt.Errorf("provider returned %d channels, want RGBA", res.Raster.Channels)
	}
	return nil
}
