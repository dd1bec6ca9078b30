package controller

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State is the coarse state shown to the user.
type State string

// Controller states, in the order a typical session walks them.
const (
	StateIdle        State = "idle"
	StateLoading     State = "loading"
	StateReady       State = "ready"
	StateImageLoaded State = "image_loaded"
	StateRunning     State = "running"
	StateComplete    State = "complete"
	StateError       State = "error"
)

// Status is a user-facing progress message.
type Status struct {
	State   State     `json:"state"`
	Message string    `json:"message"`
	Model   string    `json:"model,omitempty"`
	Error   string    `json:"error,omitempty"`
	Time    time.Time `json:"time"`
}

// Reporter receives every status change.
type Reporter interface {
	Report(Status)
}

// LogReporter writes statuses to a logrus entry.
type LogReporter struct {
	Entry *logrus.Entry
}

// Report implements Reporter.
func (r LogReporter) Report(s Status) {
	e := r.Entry
	if e == nil {
		e = logrus.NewEntry(logrus.StandardLogger())
	}
	e = e.WithField("state", s.State)
	if s.Model != "" {
		e = e.WithField("model", s.Model)
	}
	if s.Error != "" {
		e.WithField("error", s.Error).Warn(s.Message)
		return
	}
	e.Info(s.Message)
}

// Recorder keeps every status it receives.
type Recorder struct {
	mu       sync.Mutex
	statuses []Status
}

// Report implements Reporter.
func (r *Recorder) Report(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

// Statuses returns a copy of the recorded statuses.
func (r *Recorder) Statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Status, len(r.statuses))
	copy(out, r.statuses)
	return out
}

// States returns the recorded states in order.
func (r *Recorder) States() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, len(r.statuses))
	for i, s := range r.statuses {
		out[i] = s.State
	}
	return out
}

type multiReporter []Reporter

func (m multiReporter) Report(s Status) {
	for _, r := range m {
		r.Report(s)
	}
}

// MultiReporter fans statuses out to several reporters.
func MultiReporter(rs ...Reporter) Reporter {
	return multiReporter(rs)
}
