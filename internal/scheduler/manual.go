package scheduler

import (
	"sync"
	"time"
)

// Manual is a deterministic Scheduler driven by Advance.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers []*manualTimer
}

type manualTimer struct {
	m      *Manual
	at     time.Time
	period time.Duration
	seq    uint64
	fn     func()
	active bool
}

// NewManual creates a Manual clock starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now implements Scheduler.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// AfterFunc implements Scheduler.
func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	return m.add(d, 0, fn)
}

// Every implements Scheduler. Non-positive periods schedule nothing.
func (m *Manual) Every(d time.Duration, fn func()) Timer {
	if d <= 0 {
		return stoppedTimer{}
	}
	return m.add(d, d, fn)
}

func (m *Manual) add(d, period time.Duration, fn func()) *manualTimer {
	if d < 0 {
		d = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	t := &manualTimer{
		m:      m,
		at:     m.now.Add(d),
		period: period,
		seq:    m.seq,
		fn:     fn,
		active: true,
	}
	m.timers = append(m.timers, t)
	return t
}

// Advance moves the clock forward by d, running every callback that falls
// due, in fire-time order. Timers due at the same instant run in the order
// they were scheduled (a repeating timer counts as rescheduled when it
// re-arms). Callbacks run without the clock lock held and may schedule or
// stop timers; timers scheduled for an instant <= the target also run.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		next := m.nextDueLocked(target)
		if next == nil {
			m.now = target
			m.mu.Unlock()
			return
		}

		m.now = next.at
		if next.period > 0 {
			next.at = next.at.Add(next.period)
			m.seq++
			next.seq = m.seq
		} else {
			next.active = false
			m.removeLocked(next)
		}
		fn := next.fn
		m.mu.Unlock()

		fn()
	}
}

// Pending returns the number of active timers.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

func (m *Manual) nextDueLocked(target time.Time) *manualTimer {
	var next *manualTimer
	for _, t := range m.timers {
		if t.at.After(target) {
			continue
		}
		if next == nil || t.at.Before(next.at) || (t.at.Equal(next.at) && t.seq < next.seq) {
			next = t
		}
	}
	return next
}

func (m *Manual) removeLocked(t *manualTimer) {
	for i, x := range m.timers {
		if x == t {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			return
		}
	}
}

// Stop implements Timer.
func (t *manualTimer) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()

	if !t.active {
		return false
	}
	t.active = false
	t.m.removeLocked(t)
	return true
}
