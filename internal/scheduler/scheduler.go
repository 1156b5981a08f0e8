// Package scheduler provides injectable delayed and repeating callbacks.
//
// Real schedules on the wall clock. Manual is a virtual clock for tests:
// callbacks only run inside Advance, synchronously and in fire-time order.
// Group tracks every timer created on behalf of one owner so they can be
// cancelled together.
package scheduler

import (
	"sync"
	"time"
)

// Timer is a scheduled callback.
type Timer interface {
	// Stop prevents future firings. It reports whether the timer was active.
	Stop() bool
}

// Scheduler creates timers.
type Scheduler interface {
	// AfterFunc runs fn once after d.
	AfterFunc(d time.Duration, fn func()) Timer
	// Every runs fn every d until stopped. The first run is after d.
	Every(d time.Duration, fn func()) Timer
	// Now returns the scheduler's current time.
	Now() time.Time
}

// Real schedules callbacks on the wall clock. Callbacks run on their own
// goroutines.
type Real struct{}

// AfterFunc implements Scheduler.
func (Real) AfterFunc(d time.Duration, fn func()) Timer {
	return realTimer{t: time.AfterFunc(d, fn)}
}

// Every implements Scheduler.
func (Real) Every(d time.Duration, fn func()) Timer {
	t := &realTicker{
		ticker: time.NewTicker(d),
		stop:   make(chan struct{}),
	}
	go t.run(fn)
	return t
}

// Now implements Scheduler.
func (Real) Now() time.Time {
	return time.Now()
}

type realTimer struct {
	t *time.Timer
}

func (r realTimer) Stop() bool {
	return r.t.Stop()
}

type realTicker struct {
	ticker *time.Ticker
	stop   chan struct{}
	once   sync.Once
}

func (r *realTicker) run(fn func()) {
	for {
		select {
		case <-r.stop:
			return
		case <-r.ticker.C:
			select {
			case <-r.stop:
				return
			default:
			}
			fn()
		}
	}
}

func (r *realTicker) Stop() bool {
	stopped := false
	r.once.Do(func() {
		r.ticker.Stop()
		close(r.stop)
		stopped = true
	})
	return stopped
}

// stoppedTimer is returned for timers refused by a cancelled Group.
type stoppedTimer struct{}

func (stoppedTimer) Stop() bool { return false }

// Group owns the timers of one owner.
type Group struct {
	s Scheduler

	mu        sync.Mutex
	timers    []Timer
	cancelled bool
}

// NewGroup creates a Group on top of s.
func NewGroup(s Scheduler) *Group {
	return &Group{s: s}
}

// AfterFunc schedules fn once. After CancelAll it schedules nothing.
func (g *Group) AfterFunc(d time.Duration, fn func()) Timer {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cancelled {
		return stoppedTimer{}
	}
	t := g.s.AfterFunc(d, g.guard(fn))
	g.timers = append(g.timers, t)
	return t
}

// Every schedules fn repeatedly. After CancelAll it schedules nothing.
func (g *Group) Every(d time.Duration, fn func()) Timer {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cancelled {
		return stoppedTimer{}
	}
	t := g.s.Every(d, g.guard(fn))
	g.timers = append(g.timers, t)
	return t
}

// CancelAll stops every timer of the group and refuses new ones.
// It returns how many timers were still active.
func (g *Group) CancelAll() int {
	g.mu.Lock()
	timers := g.timers
	g.timers = nil
	g.cancelled = true
	g.mu.Unlock()

	active := 0
	for _, t := range timers {
		if t.Stop() {
			active++
		}
	}
	return active
}

// Cancelled reports whether CancelAll was called.
func (g *Group) Cancelled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cancelled
}

// guard skips callbacks that fire after cancellation.
func (g *Group) guard(fn func()) func() {
	return func() {
		if g.Cancelled() {
			return
		}
		fn()
	}
}
