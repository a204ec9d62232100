// Package status holds the process-lifetime state shared by the handlers.
package status

import (
	"sync/atomic"
	"time"
)

// State owns the request counter and the service start time. It is created
// once at process start and injected wherever either value is needed.
type State struct {
	requests  atomic.Uint64
	startTime time.Time
	now       func() time.Time
}

// New creates a State whose start time is now(). A nil clock means time.Now.
func New(now func() time.Time) *State {
	if now == nil {
		now = time.Now
	}
	return &State{
		startTime: now(),
		now:       now,
	}
}

// Increment counts one inbound request and returns the new total.
func (s *State) Increment() uint64 {
	return s.requests.Add(1)
}

// RequestCount returns the number of requests counted so far.
func (s *State) RequestCount() uint64 {
	return s.requests.Load()
}

// StartTime returns the time the state was created.
func (s *State) StartTime() time.Time {
	return s.startTime
}

// Now returns the current time from the state's clock.
func (s *State) Now() time.Time {
	return s.now()
}

// Uptime returns the time elapsed since StartTime.
func (s *State) Uptime() time.Duration {
	return s.now().Sub(s.startTime)
}
