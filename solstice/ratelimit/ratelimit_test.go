package ratelimit

import (
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestLimiter(limits map[string]Limit) (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	return NewWithClock(limits, clock), clock
}

const user = snowflake.ID(42)

func TestCheck_AllowsWithinLimit(t *testing.T) {
	l, _ := newTestLimiter(map[string]Limit{
		"quest": {Window: time.Minute, Max: 3},
	})

	for i := 0; i < 3; i++ {
		assert.True(t, l.Check(user, "quest").Allowed)
	}
	assert.False(t, l.Check(user, "quest").Allowed)
}

func TestCheck_UnknownCommandAlwaysAllowed(t *testing.T) {
	l, _ := newTestLimiter(nil)

	for i := 0; i < 100; i++ {
		assert.True(t, l.Check(user, "whatever").Allowed)
	}
}

func TestCheck_WindowSlides(t *testing.T) {
	l, clock := newTestLimiter(map[string]Limit{
		"quest": {Window: time.Minute, Max: 1},
	})

	assert.True(t, l.Check(user, "quest").Allowed)
	assert.False(t, l.Check(user, "quest").Allowed)

	clock.advance(61 * time.Second)
	assert.True(t, l.Check(user, "quest").Allowed)
}

func TestCheck_RetryAfter(t *testing.T) {
	l, clock := newTestLimiter(map[string]Limit{
		"quest": {Window: time.Minute, Max: 1},
	})

	l.Check(user, "quest")
	clock.advance(20 * time.Second)

	decision := l.Check(user, "quest")
	assert.False(t, decision.Allowed)
	assert.Equal(t, 40*time.Second, decision.RetryAfter)
}

func TestCheck_DeniedCallsNotRecorded(t *testing.T) {
	l, clock := newTestLimiter(map[string]Limit{
		"quest": {Window: time.Minute, Max: 1},
	})

	l.Check(user, "quest")

	// Hammering while denied must not push the admission time forward.
	for i := 0; i < 10; i++ {
		clock.advance(5 * time.Second)
		l.Check(user, "quest")
	}

	clock.advance(11 * time.Second)
	assert.True(t, l.Check(user, "quest").Allowed)
}

func TestCheck_PerUserPerCommand(t *testing.T) {
	l, _ := newTestLimiter(map[string]Limit{
		"quest":  {Window: time.Minute, Max: 1},
		"verify": {Window: time.Minute, Max: 1},
	})

	assert.True(t, l.Check(user, "quest").Allowed)
	assert.True(t, l.Check(user, "verify").Allowed)
	assert.True(t, l.Check(snowflake.ID(43), "quest").Allowed)
	assert.False(t, l.Check(user, "quest").Allowed)
}

func TestSweep(t *testing.T) {
	l, clock := newTestLimiter(map[string]Limit{
		"quest": {Window: time.Minute, Max: 1},
	})

	l.Check(user, "quest")
	l.Check(snowflake.ID(43), "quest")

	assert.Equal(t, 0, l.Sweep())

	clock.advance(2 * time.Minute)
	assert.Equal(t, 2, l.Sweep())
	assert.True(t, l.Check(user, "quest").Allowed)
}
