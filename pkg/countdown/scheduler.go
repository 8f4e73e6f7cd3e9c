// Package countdown implements the tick-driven auto-close countdown.
//
// The scheduler owns no timer. The engine feeds it one Tick per second from
// its event queue, so a tick can never interleave with a tab removal.
package countdown

import (
	"fmt"

	"github.com/b/procrastabs/pkg/tabs"
)

// State is the scheduler's phase.
type State int

const (
	Idle State = iota
	Running
	Expiring
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Expiring:
		return "expiring"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Step is the outcome of one tick.
type Step struct {
	Remaining int // seconds left after this tick
	Expired   bool
	Target    tabs.ID
}

// Scheduler counts a single countdown in whole seconds.
type Scheduler struct {
	state   State
	elapsed int
	total   int
	target  tabs.ID
	gen     uint64
}

// New returns an idle scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// Start begins a countdown of totalSeconds aimed at target. It is a no-op
// returning false when a countdown is already running.
func (s *Scheduler) Start(totalSeconds int, target tabs.ID) bool {
	if s.state == Running {
		return false
	}
	if totalSeconds < 1 {
		totalSeconds = 1
	}
	s.state = Running
	s.elapsed = 0
	s.total = totalSeconds
	s.target = target
	s.gen++
	return true
}

// Stop cancels any countdown and resets elapsed time. Safe to call in any state.
func (s *Scheduler) Stop() {
	s.state = Idle
	s.elapsed = 0
	s.total = 0
	s.target = ""
}

// Restart stops and starts again from zero under the new duration.
func (s *Scheduler) Restart(totalSeconds int, target tabs.ID) {
	s.Stop()
	s.Start(totalSeconds, target)
}

// Tick advances a running countdown by one second. When elapsed time reaches
// the total the scheduler moves to Expiring and the step reports Expired
// exactly once; the caller acts on it and then calls Stop.
func (s *Scheduler) Tick() Step {
	if s.state != Running {
		return Step{Remaining: s.Remaining(), Target: s.target}
	}
	s.elapsed++
	if s.elapsed >= s.total {
		s.state = Expiring
		return Step{Expired: true, Target: s.target}
	}
	return Step{Remaining: s.total - s.elapsed, Target: s.target}
}

// SetTarget re-aims a running countdown, e.g. after the target was closed.
func (s *Scheduler) SetTarget(id tabs.ID) {
	if s.state != Idle {
		s.target = id
	}
}

func (s *Scheduler) State() State    { return s.state }
func (s *Scheduler) Running() bool   { return s.state == Running }
func (s *Scheduler) Elapsed() int    { return s.elapsed }
func (s *Scheduler) Total() int      { return s.total }
func (s *Scheduler) Target() tabs.ID { return s.target }

// Generation identifies the current countdown run. It changes on every
// Start, including the one inside Restart.
func (s *Scheduler) Generation() uint64 { return s.gen }

// Remaining returns the seconds left, or 0 when idle.
func (s *Scheduler) Remaining() int {
	if s.state == Idle || s.elapsed >= s.total {
		return 0
	}
	return s.total - s.elapsed
}

// FormatRemaining renders seconds the way the badge shows them: plain seconds
// under a minute, otherwise whole minutes rounded up with an "m" suffix.
func FormatRemaining(seconds int) string {
	if seconds < 60 {
		if seconds < 0 {
			seconds = 0
		}
		return fmt.Sprintf("%d", seconds)
	}
	return fmt.Sprintf("%dm", (seconds+59)/60)
}
