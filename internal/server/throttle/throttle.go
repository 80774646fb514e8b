// Package throttle tracks consecutive authentication failures per account
// and computes how long to delay the reply to the next failure.
package throttle

import (
	"context"
	"sync"
	"time"
)

// Config tunes the delay curve.
type Config struct {
	// FreeAttempts failures in a row cost nothing.
	FreeAttempts int
	// BaseDelay is added for every failure past FreeAttempts.
	BaseDelay time.Duration
	// QuietPeriod after which a failure starts a fresh count.
	QuietPeriod time.Duration
	// MaxDelay caps the delay. Zero means uncapped.
	MaxDelay time.Duration
}

// DefaultConfig returns the stock curve: four free failures, one second per
// failure after that, forgiven after ten quiet minutes.
func DefaultConfig() Config {
	return Config{
		FreeAttempts: 4,
		BaseDelay:    time.Second,
		QuietPeriod:  10 * time.Minute,
	}
}

type entry struct {
	last     time.Time
	failures int
}

// Throttle is safe for concurrent use. The lock is held only while the map
// is touched; callers sleep the returned delay themselves.
type Throttle struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

func New(cfg Config) *Throttle {
	return &Throttle{cfg: cfg, now: time.Now, entries: map[string]*entry{}}
}

// RecordFailure counts a failure for account and returns the delay to
// apply before replying.
func (t *Throttle) RecordFailure(account string) time.Duration {
	return t.RecordFailureAt(account, t.now())
}

// RecordFailureAt is RecordFailure with an explicit clock.
func (t *Throttle) RecordFailureAt(account string, now time.Time) time.Duration {
	t.mu.Lock()
	e, ok := t.entries[account]
	if !ok || t.stale(e, now) {
		e = &entry{}
		t.entries[account] = e
	}
	e.failures++
	e.last = now
	n := e.failures
	t.mu.Unlock()

	return t.delayFor(n)
}

func (t *Throttle) stale(e *entry, now time.Time) bool {
	return t.cfg.QuietPeriod > 0 && now.Sub(e.last) > t.cfg.QuietPeriod
}

func (t *Throttle) delayFor(failures int) time.Duration {
	excess := failures - t.cfg.FreeAttempts
	if excess <= 0 {
		return 0
	}
	d := time.Duration(excess) * t.cfg.BaseDelay
	if t.cfg.MaxDelay > 0 && d > t.cfg.MaxDelay {
		d = t.cfg.MaxDelay
	}
	return d
}

// Reset forgets account, typically after a successful verification.
func (t *Throttle) Reset(account string) {
	t.mu.Lock()
	delete(t.entries, account)
	t.mu.Unlock()
}

// Failures reports the current consecutive failure count.
func (t *Throttle) Failures(account string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[account]; ok {
		return e.failures
	}
	return 0
}

// Sweep evicts entries whose last failure is older than the quiet period
// and returns how many were removed.
func (t *Throttle) Sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for k, e := range t.entries {
		if t.stale(e, now) {
			delete(t.entries, k)
			n++
		}
	}
	return n
}

// Len reports how many accounts are tracked.
func (t *Throttle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// RunSweeper calls Sweep every interval until ctx is done, then once more.
func (t *Throttle) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			t.Sweep(t.now())
			return nil
		case <-ticker.C:
			t.Sweep(t.now())
		}
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
