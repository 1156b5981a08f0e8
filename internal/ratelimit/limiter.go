// Package ratelimit provides rate limiting functionality.
//
// Limiter throttles repeated submissions of one logical action with a
// sliding window persisted in a key-value store. It is an abuse deterrent
// for well-behaved clients, not a security boundary: a client that changes
// identity starts with an empty record. IPGuard is the coarse per-IP guard
// applied in front of the whole API.
package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/withaibuild/site/internal/kvstore"
	"github.com/withaibuild/site/pkg/logger"
)

// Configuration errors.
var (
	ErrEmptyKey           = errors.New("rate limit key cannot be empty")
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")
	ErrInvalidWindow      = errors.New("window must be at least one millisecond")
)

// Config holds the budget of one action.
type Config struct {
	Key         string        // Logical action, e.g. "contact_form"
	MaxAttempts int           // Allowed attempts per window
	Window      time.Duration // Sliding window size
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Key == "" {
		return ErrEmptyKey
	}
	if c.MaxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}
	if c.Window < time.Millisecond {
		return ErrInvalidWindow
	}
	return nil
}

// Namespace maps action keys to storage keys.
type Namespace struct {
	Prefix string
}

// DefaultNamespace stores records under "rl_<key>".
var DefaultNamespace = Namespace{Prefix: "rl_"}

// Key returns the storage key for an action key.
func (n Namespace) Key(key string) string {
	return n.Prefix + key
}

// Result contains the outcome of a check.
type Result struct {
	Allowed   bool          // Whether the attempt is permitted
	Remaining time.Duration // Time until the oldest attempt leaves the window (0 when allowed)
}

// RetryAfterSeconds rounds Remaining up to whole seconds.
func (r Result) RetryAfterSeconds() int {
	if r.Remaining <= 0 {
		return 0
	}
	return int(math.Ceil(r.Remaining.Seconds()))
}

// record is the persisted form: {"attempts":[ms since epoch, ...]}.
type record struct {
	Attempts []int64 `json:"attempts"`
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithNamespace overrides the storage namespace.
func WithNamespace(ns Namespace) Option {
	return func(l *Limiter) { l.ns = ns }
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithLogger sets the logger used for swallowed storage errors.
func WithLogger(log *logger.Logger) Option {
	return func(l *Limiter) { l.log = log }
}

// Limiter is a store-backed sliding window limiter for one action.
type Limiter struct {
	cfg   Config
	store kvstore.Store
	ns    Namespace
	now   func() time.Time
	log   *logger.Logger

	// Serializes read-modify-write within this process. Shared by scoped copies.
	mu *sync.Mutex
}

// New creates a Limiter.
func New(cfg Config, store kvstore.Store, opts ...Option) (*Limiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("ratelimit %q: %w", cfg.Key, err)
	}
	if store == nil {
		return nil, errors.New("ratelimit: store is required")
	}

	l := &Limiter{
		cfg:   cfg,
		store: store,
		ns:    DefaultNamespace,
		now:   time.Now,
		log:   logger.Nop(),
		mu:    &sync.Mutex{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Config returns the limiter configuration.
func (l *Limiter) Config() Config {
	return l.cfg
}

// StorageKey returns the namespaced key the record is stored under.
func (l *Limiter) StorageKey() string {
	return l.ns.Key(l.cfg.Key)
}

// Scoped returns a limiter with the same budget whose records live in a
// per-client sub-namespace of the store.
func (l *Limiter) Scoped(scope string) *Limiter {
	cp := *l
	cp.store = kvstore.WithPrefix(l.store, "client:"+scope+":")
	return &cp
}

// Check decides whether a new attempt is permitted and records it if so.
// Storage failures fail open: the attempt is allowed and not persisted.
func (l *Limiter) Check(ctx context.Context) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UnixMilli()
	windowMs := l.cfg.Window.Milliseconds()

	rec := l.load(ctx)

	// Prune in place; attempts with now - t >= window are stale.
	kept := rec.Attempts[:0]
	for _, t := range rec.Attempts {
		if now-t < windowMs {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.cfg.MaxAttempts {
		oldest := kept[0]
		for _, t := range kept[1:] {
			if t < oldest {
				oldest = t
			}
		}
		remaining := windowMs - (now - oldest)
		return Result{
			Allowed:   false,
			Remaining: time.Duration(remaining) * time.Millisecond,
		}
	}

	kept = append(kept, now)
	l.save(ctx, record{Attempts: kept})

	return Result{Allowed: true}
}

// load reads the record; absent, unreadable or corrupt records are empty.
func (l *Limiter) load(ctx context.Context) record {
	data, err := l.store.Get(ctx, l.StorageKey())
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			l.log.Debug("rate limit record unreadable", "key", l.cfg.Key, "error", err.Error())
		}
		return record{}
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		l.log.Debug("rate limit record corrupt", "key", l.cfg.Key, "error", err.Error())
		return record{}
	}
	return rec
}

// save persists the record, skipping silently when the store fails.
func (l *Limiter) save(ctx context.Context, rec record) {
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := l.store.Set(ctx, l.StorageKey(), data); err != nil {
		l.log.Debug("rate limit record not persisted", "key", l.cfg.Key, "error", err.Error())
	}
}
