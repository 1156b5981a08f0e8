package simulator

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/withaibuild/site/internal/metrics"
	"github.com/withaibuild/site/internal/scheduler"
	"github.com/withaibuild/site/pkg/logger"
)

var (
	// ErrRunNotFound is returned when no run has the given id.
	ErrRunNotFound = errors.New("build not found")
	// ErrTooManyRuns is returned when the live run limit is reached.
	ErrTooManyRuns = errors.New("too many builds in progress")
	// ErrManagerClosed is returned after Close.
	ErrManagerClosed = errors.New("build manager closed")
)

// Run is a registered simulation.
type Run struct {
	ID        uuid.UUID
	CreatedAt time.Time
	*Simulation
}

// ManagerConfig bounds the registry.
type ManagerConfig struct {
	// Retention is how long ended runs stay readable.
	Retention time.Duration
	// MaxRuns caps runs that are still building. Zero means no cap.
	MaxRuns int
}

// Manager owns every run created through the API.
type Manager struct {
	cfg    Config
	mcfg   ManagerConfig
	sched  scheduler.Scheduler
	log    *logger.Logger
	newID  func() uuid.UUID
	reaper scheduler.Timer

	mu     sync.Mutex
	runs   map[uuid.UUID]*Run
	closed bool
}

// NewManager creates a Manager and starts its reaper on sched.
func NewManager(cfg Config, mcfg ManagerConfig, sched scheduler.Scheduler, log *logger.Logger) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	if mcfg.Retention <= 0 {
		mcfg.Retention = 10 * time.Minute
	}

	m := &Manager{
		cfg:   cfg,
		mcfg:  mcfg,
		sched: sched,
		log:   log,
		newID: uuid.New,
		runs:  make(map[uuid.UUID]*Run),
	}
	m.reaper = sched.Every(mcfg.Retention/2, func() { m.Reap() })
	return m, nil
}

// Config returns the run timing.
func (m *Manager) Config() Config {
	return m.cfg
}

// Create registers a run and starts it. Validation failures are returned as
// FieldErrors and nothing is registered.
func (m *Manager) Create(form Form) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}
	if m.mcfg.MaxRuns > 0 && m.buildingLocked() >= m.mcfg.MaxRuns {
		return nil, ErrTooManyRuns
	}

	sim := New(m.cfg, m.sched)
	if err := sim.Start(form); err != nil {
		return nil, err
	}

	run := &Run{ID: m.newID(), CreatedAt: m.sched.Now(), Simulation: sim}
	m.runs[run.ID] = run
	metrics.RecordBuildStarted()

	go m.watch(run)

	m.log.Info("build started",
		"build_id", run.ID.String(),
		"subdomain", sim.Form().Subdomain,
	)
	return run, nil
}

// watch records the outcome of a run once it ends.
func (m *Manager) watch(run *Run) {
	ch, _ := run.Subscribe()
	var last State
	for st := range ch {
		last = st
	}
	switch {
	case last.Cancelled:
		metrics.RecordBuildFinished("cancelled")
		m.log.Info("build cancelled", "build_id", run.ID.String(), "elapsed", run.Elapsed())
	case last.Phase == PhaseDone:
		metrics.RecordBuildFinished("done")
		m.log.Info("build done", "build_id", run.ID.String(), "live_url", last.LiveURL)
	}
}

// Get returns a registered run.
func (m *Manager) Get(id uuid.UUID) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return run, nil
}

// Cancel tears down a run. The run stays readable until reaped.
func (m *Manager) Cancel(id uuid.UUID) error {
	run, err := m.Get(id)
	if err != nil {
		return err
	}
	run.Cancel()
	return nil
}

// Len returns the number of registered runs.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runs)
}

// Reap drops runs that ended more than Retention ago and returns how many
// were removed.
func (m *Manager) Reap() int {
	cutoff := m.sched.Now().Add(-m.mcfg.Retention)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, run := range m.runs {
		if ended, ok := run.EndedAt(); ok && !ended.After(cutoff) {
			delete(m.runs, id)
			removed++
		}
	}
	if removed > 0 {
		m.log.Debug("reaped builds", "count", removed)
	}
	return removed
}

// Close cancels every run and stops the reaper.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	runs := make([]*Run, 0, len(m.runs))
	for _, run := range m.runs {
		runs = append(runs, run)
	}
	m.mu.Unlock()

	m.reaper.Stop()
	for _, run := range runs {
		run.Cancel()
	}
}

func (m *Manager) buildingLocked() int {
	n := 0
	for _, run := range m.runs {
		if _, ended := run.EndedAt(); !ended {
			n++
		}
	}
	return n
}
