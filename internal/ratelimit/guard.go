package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Decision is the outcome of an IPGuard check.
type Decision struct {
	Allowed    bool          // Whether the request is allowed
	Remaining  int           // Whole tokens left in the bucket
	RetryAfter time.Duration // Suggested retry time (if blocked)
	Limit      int           // Bucket size
}

// Guard decides per identifier whether a request may proceed.
type Guard interface {
	// Allow checks if a request from the given identifier is allowed.
	Allow(ctx context.Context, identifier string) (*Decision, error)

	// Close releases any resources held by the guard.
	Close() error
}

// GuardConfig holds IPGuard configuration.
type GuardConfig struct {
	RPS     float64       // Sustained requests per second
	Burst   int           // Bucket size
	IdleTTL time.Duration // Buckets unused for this long are evicted
}

// DefaultGuardConfig returns a default configuration.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		RPS:     5,
		Burst:   20,
		IdleTTL: 15 * time.Minute,
	}
}

// IPGuard is an in-memory token bucket per identifier.
type IPGuard struct {
	cfg GuardConfig
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*guardEntry

	// For cleanup
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

type guardEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewIPGuard creates a guard and starts its cleanup goroutine.
func NewIPGuard(cfg GuardConfig) *IPGuard {
	def := DefaultGuardConfig()
	if cfg.RPS <= 0 {
		cfg.RPS = def.RPS
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = def.IdleTTL
	}

	g := &IPGuard{
		cfg:     cfg,
		now:     time.Now,
		entries: make(map[string]*guardEntry),
		done:    make(chan struct{}),
	}

	g.wg.Add(1)
	go g.cleanupLoop()

	return g
}

// Allow consumes one token for identifier if available.
func (g *IPGuard) Allow(ctx context.Context, identifier string) (*Decision, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	now := g.now()
	lim := g.limiter(identifier, now)

	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return &Decision{Allowed: false, Limit: g.cfg.Burst, RetryAfter: time.Second}, nil
	}

	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return &Decision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: delay,
			Limit:      g.cfg.Burst,
		}, nil
	}

	remaining := int(lim.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}

	return &Decision{
		Allowed:   true,
		Remaining: remaining,
		Limit:     g.cfg.Burst,
	}, nil
}

// Close stops the cleanup goroutine.
func (g *IPGuard) Close() error {
	g.once.Do(func() { close(g.done) })
	g.wg.Wait()
	return nil
}

// Len returns the number of tracked identifiers.
func (g *IPGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

func (g *IPGuard) limiter(identifier string, now time.Time) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()

	if e, ok := g.entries[identifier]; ok {
		e.lastSeen = now
		return e.lim
	}

	lim := rate.NewLimiter(rate.Limit(g.cfg.RPS), g.cfg.Burst)
	g.entries[identifier] = &guardEntry{lim: lim, lastSeen: now}
	return lim
}

// cleanupLoop periodically evicts idle buckets.
func (g *IPGuard) cleanupLoop() {
	defer g.wg.Done()

	ticker := time.NewTicker(g.cfg.IdleTTL)
	defer ticker.Stop()

	for {
		select {
		case <-g.done:
			return
		case <-ticker.C:
			g.cleanup()
		}
	}
}

// cleanup removes buckets idle for longer than IdleTTL.
func (g *IPGuard) cleanup() {
	cutoff := g.now().Add(-g.cfg.IdleTTL)

	g.mu.Lock()
	defer g.mu.Unlock()

	for k, e := range g.entries {
		if e.lastSeen.Before(cutoff) {
			delete(g.entries, k)
		}
	}
}
