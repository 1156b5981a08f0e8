package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/withaibuild/site/internal/metrics"
	"github.com/withaibuild/site/pkg/logger"
)

// BreakerSettings tunes the circuit breaker around a notifier.
type BreakerSettings struct {
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	// Interval clears the counts while closed. Zero keeps them.
	Interval time.Duration
}

// DefaultBreakerSettings trips after 3 consecutive failures for a minute.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		ConsecutiveFailures: 3,
		OpenTimeout:         60 * time.Second,
		Interval:            60 * time.Second,
	}
}

// breakerNotifier guards a Notifier with a circuit breaker so a dead channel
// is not hammered on every submission.
type breakerNotifier struct {
	next Notifier
	cb   *gobreaker.CircuitBreaker
}

// WithBreaker wraps n in a circuit breaker.
func WithBreaker(n Notifier, s BreakerSettings, log *logger.Logger) Notifier {
	if log == nil {
		log = logger.Nop()
	}
	st := gobreaker.Settings{
		Name:     n.Name(),
		Interval: s.Interval,
		Timeout:  s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			// Empty text is the caller's fault, not the channel's.
			return err == nil || errors.Is(err, ErrEmptyText)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("notifier breaker state changed",
				"channel", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}
	return &breakerNotifier{next: n, cb: gobreaker.NewCircuitBreaker(st)}
}

func (b *breakerNotifier) Name() string { return b.next.Name() }

func (b *breakerNotifier) Notify(ctx context.Context, text string) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Notify(ctx, text)
	})
	return err
}

// State exposes the breaker state.
func (b *breakerNotifier) State() gobreaker.State {
	return b.cb.State()
}

// Relay fans a message out to every configured notifier in the background.
// Failures are logged and counted, never returned.
type Relay struct {
	notifiers []Notifier
	timeout   time.Duration
	log       *logger.Logger

	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewRelay creates a Relay. With no notifiers Send is a no-op.
func NewRelay(timeout time.Duration, log *logger.Logger, notifiers ...Notifier) *Relay {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Relay{notifiers: notifiers, timeout: timeout, log: log}
}

// Enabled reports whether any channel is configured.
func (r *Relay) Enabled() bool {
	return len(r.notifiers) > 0
}

// Send delivers text asynchronously and returns immediately. It reports
// whether the message was accepted for delivery.
func (r *Relay) Send(text string) bool {
	if text == "" || len(r.notifiers) == 0 {
		return false
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		r.deliver(ctx, text)
	}()
	return true
}

func (r *Relay) deliver(ctx context.Context, text string) {
	for _, n := range r.notifiers {
		if err := n.Notify(ctx, text); err != nil {
			metrics.RecordNotification(n.Name(), "failed")
			r.log.Debug("notification failed", "channel", n.Name(), "error", err.Error())
			continue
		}
		metrics.RecordNotification(n.Name(), "sent")
	}
}

// Close stops accepting messages and waits for in-flight deliveries or ctx.
func (r *Relay) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
