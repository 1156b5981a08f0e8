package simulator

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/withaibuild/site/internal/scheduler"
)

// Phase is the lifecycle stage of a run.
type Phase string

const (
	PhaseForm     Phase = "form"
	PhaseBuilding Phase = "building"
	PhaseDone     Phase = "done"
)

// NextActionSignup is the call to action offered once a run is done.
const NextActionSignup = "signup"

var (
	// ErrAlreadyStarted is returned by Start on a run that left the form phase.
	ErrAlreadyStarted = errors.New("build already started")
	// ErrCancelled is returned by Start on a torn-down run.
	ErrCancelled = errors.New("build cancelled")
)

// Config controls the timing of a run.
type Config struct {
	TotalDuration time.Duration
	TickInterval  time.Duration
	BaseDomain    string
	Sequence      []LogEntry
}

// DefaultConfig returns the stock timing: 18s total, 100ms ticks.
func DefaultConfig() Config {
	return Config{
		TotalDuration: 18 * time.Second,
		TickInterval:  100 * time.Millisecond,
		BaseDomain:    "withaibuild.com",
		Sequence:      DefaultSequence(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", c.TickInterval)
	}
	if c.TotalDuration < c.TickInterval {
		return fmt.Errorf("total duration %s is shorter than tick interval %s", c.TotalDuration, c.TickInterval)
	}
	if c.BaseDomain == "" {
		return errors.New("base domain is required")
	}
	return nil
}

// Increment is the progress added on each tick.
func (c Config) Increment() float64 {
	return 100 / (float64(c.TotalDuration) / float64(c.TickInterval))
}

// State is a point-in-time view of a run.
type State struct {
	Phase      Phase      `json:"phase"`
	Progress   float64    `json:"progress"`
	Log        []LogEntry `json:"log"`
	Subdomain  string     `json:"subdomain,omitempty"`
	LiveURL    string     `json:"live_url,omitempty"`
	NextAction string     `json:"next_action,omitempty"`
	Cancelled  bool       `json:"cancelled,omitempty"`
}

// Terminal reports whether the run will not change any more.
func (s State) Terminal() bool {
	return s.Phase == PhaseDone || s.Cancelled
}

func (s State) clone() State {
	out := s
	out.Log = make([]LogEntry, len(s.Log))
	copy(out.Log, s.Log)
	return out
}

// Simulation is one build run. It is safe for concurrent use: timer
// callbacks and callers serialize on the same mutex.
type Simulation struct {
	cfg   Config
	sched scheduler.Scheduler
	group *scheduler.Group

	mu        sync.Mutex
	state     State
	form      Form
	startedAt time.Time
	endedAt   time.Time
	cancelled bool
	subs      map[chan State]struct{}
}

// New creates a run in the form phase.
func New(cfg Config, sched scheduler.Scheduler) *Simulation {
	return &Simulation{
		cfg:   cfg,
		sched: sched,
		group: scheduler.NewGroup(sched),
		state: State{Phase: PhaseForm, Log: []LogEntry{}},
		subs:  make(map[chan State]struct{}),
	}
}

// Start validates form and enters the building phase. A validation failure
// is returned as FieldErrors and leaves the run in the form phase.
func (s *Simulation) Start(form Form) error {
	form = form.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelled {
		return ErrCancelled
	}
	if s.state.Phase != PhaseForm {
		return ErrAlreadyStarted
	}
	if errs := form.Validate(); errs != nil {
		return errs
	}

	s.form = form
	s.startedAt = s.sched.Now()
	s.state.Phase = PhaseBuilding
	s.state.Subdomain = form.Subdomain

	// Each entry fires at its own offset from the start so jitter in one
	// callback never shifts the next.
	for _, e := range s.cfg.Sequence {
		e := e
		s.group.AfterFunc(e.Delay, func() { s.appendLog(e) })
	}

	var ticker scheduler.Timer
	ticker = s.group.Every(s.cfg.TickInterval, func() {
		if s.tick() {
			ticker.Stop()
		}
	})

	s.group.AfterFunc(s.cfg.TotalDuration, s.finish)

	s.publishLocked()
	return nil
}

func (s *Simulation) appendLog(e LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelled || s.state.Phase != PhaseBuilding {
		return
	}
	s.state.Log = append(s.state.Log, e)
	s.publishLocked()
}

// tick advances progress and reports whether it reached 100.
func (s *Simulation) tick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelled || s.state.Phase != PhaseBuilding {
		return true
	}
	next := s.state.Progress + s.cfg.Increment()
	if next >= 100 {
		s.state.Progress = 100
		s.publishLocked()
		return true
	}
	s.state.Progress = next
	s.publishLocked()
	return false
}

// finish is the terminal timer. Its progress value wins over the ticks.
func (s *Simulation) finish() {
	s.mu.Lock()
	if s.cancelled || s.state.Phase != PhaseBuilding {
		s.mu.Unlock()
		return
	}
	s.state.Progress = 100
	s.state.Phase = PhaseDone
	s.state.LiveURL = s.form.Subdomain + "." + s.cfg.BaseDomain
	s.state.NextAction = NextActionSignup
	s.endedAt = s.sched.Now()
	s.publishLocked()
	s.closeSubsLocked()
	s.mu.Unlock()

	s.group.CancelAll()
}

// Cancel tears the run down. After it returns no timer of the run changes
// state. It reports whether the run was still building.
func (s *Simulation) Cancel() bool {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return false
	}
	wasBuilding := s.state.Phase == PhaseBuilding
	s.cancelled = true
	s.endedAt = s.sched.Now()
	if s.state.Phase != PhaseDone {
		s.state.Cancelled = true
		s.publishLocked()
	}
	s.closeSubsLocked()
	s.mu.Unlock()

	s.group.CancelAll()
	return wasBuilding
}

// Snapshot returns a copy of the current state.
func (s *Simulation) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Form returns the normalized form the run was started with.
func (s *Simulation) Form() Form {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form
}

// Elapsed returns the time spent building so far, or the total once ended.
func (s *Simulation) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.startedAt.IsZero() {
		return 0
	}
	if !s.endedAt.IsZero() {
		return s.endedAt.Sub(s.startedAt)
	}
	return s.sched.Now().Sub(s.startedAt)
}

// EndedAt returns when the run finished or was cancelled.
func (s *Simulation) EndedAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endedAt, !s.endedAt.IsZero()
}

// Subscribe returns a channel receiving the state after every change,
// starting with the current one. Slow readers only see the latest state.
// The channel is closed when the run ends or when the returned func is
// called.
func (s *Simulation) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	s.mu.Lock()
	defer s.mu.Unlock()

	ch <- s.state.clone()
	if s.cancelled || s.state.Phase == PhaseDone {
		close(ch)
		return ch, func() {}
	}
	s.subs[ch] = struct{}{}

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
	}
}

func (s *Simulation) publishLocked() {
	if len(s.subs) == 0 {
		return
	}
	st := s.state.clone()
	for ch := range s.subs {
		// Drop the stale value, if any, to keep the newest.
		select {
		case <-ch:
		default:
		}
		ch <- st
	}
}

func (s *Simulation) closeSubsLocked() {
	for ch := range s.subs {
		close(ch)
	}
	s.subs = make(map[chan State]struct{})
}
