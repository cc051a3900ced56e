package ratelimit

import (
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// Clock abstracts time so tests can drive the window.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Limit is the admission rule for one command name.
type Limit struct {
	Window time.Duration
	Max    int
}

// Decision is the outcome of an admission check. RetryAfter is set only on
// denial.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

type key struct {
	userID  snowflake.ID
	command string
}

// Limiter is per-user-per-command admission control. It is advisory UX
// control only and process-local by design: the one-active-quest guarantee
// comes from the store transaction, not from here. The map is shared across
// handler goroutines, hence the mutex.
type Limiter struct {
	mu     sync.Mutex
	limits map[string]Limit
	calls  map[key][]time.Time
	clock  Clock
}

func New(limits map[string]Limit) *Limiter {
	return NewWithClock(limits, systemClock{})
}

func NewWithClock(limits map[string]Limit, clock Clock) *Limiter {
	if limits == nil {
		limits = make(map[string]Limit)
	}
	return &Limiter{
		limits: limits,
		calls:  make(map[key][]time.Time),
		clock:  clock,
	}
}

// SetLimit configures the admission rule for a command name.
func (l *Limiter) SetLimit(command string, limit Limit) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limits[command] = limit
}

// Check admits or denies one call. Commands without a configured limit are
// always admitted. Admitted calls are recorded; denied calls are not.
func (l *Limiter) Check(userID snowflake.ID, command string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	limit, ok := l.limits[command]
	if !ok || limit.Max <= 0 {
		return Decision{Allowed: true}
	}

	now := l.clock.Now()
	cutoff := now.Add(-limit.Window)
	k := key{userID: userID, command: command}

	var recent []time.Time
	for _, t := range l.calls[k] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= limit.Max {
		oldest := recent[0]
		l.calls[k] = recent
		return Decision{
			Allowed:    false,
			RetryAfter: limit.Window - now.Sub(oldest),
		}
	}

	l.calls[k] = append(recent, now)
	return Decision{Allowed: true}
}

// Sweep drops entries older than their command's window and returns how
// many keys were removed. Run it from a timer to bound memory.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	removed := 0

	for k, times := range l.calls {
		limit, ok := l.limits[k.command]
		if !ok {
			delete(l.calls, k)
			removed++
			continue
		}

		cutoff := now.Add(-limit.Window)
		var recent []time.Time
		for _, t := range times {
			if t.After(cutoff) {
				recent = append(recent, t)
			}
		}

		if len(recent) == 0 {
			delete(l.calls, k)
			removed++
		} else {
			l.calls[k] = recent
		}
	}

	return removed
}
