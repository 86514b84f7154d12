package rate

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func testPolicy(perMinute int) Policy {
	return Policy{
		Name:      "test",
		PerMinute: perMinute,
		RemainingHeaders: map[Window]string{
			Minute: "X-Remaining-Minute",
		},
		RetryAfterHeader: "Retry-After",
	}
}

func TestReserveSpendsAndRefillsBudget(t *testing.T) {
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := newLimiter(testPolicy(2), c.now)

	require.NoError(t, l.Reserve())
	require.NoError(t, l.Reserve())

	err := l.Reserve()
	var blocked *BlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, "budget", blocked.Reason)
	assert.Equal(t, c.t.Add(30*time.Second), blocked.RetryAt)

	c.advance(30 * time.Second)
	assert.NoError(t, l.Reserve())
}

func TestPolicyWithoutLimitsNeverBlocks(t *testing.T) {
	l := NewLimiter(Policy{Name: "open"})
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Reserve())
	}
}

func TestRetryAfterStartsCooldown(t *testing.T) {
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := newLimiter(testPolicy(100), c.now)

	header := http.Header{}
	header.Set("Retry-After", "20")
	l.Observe(http.StatusTooManyRequests, header)

	var blocked *BlockedError
	require.ErrorAs(t, l.Reserve(), &blocked)
	assert.Equal(t, "cooldown", blocked.Reason)
	assert.Contains(t, blocked.Error(), "test: request blocked (cooldown) until")

	c.advance(21 * time.Second)
	assert.NoError(t, l.Reserve())
}

func TestRetryAfterOnSuccessIsIgnored(t *testing.T) {
	l := NewLimiter(testPolicy(100))
	header := http.Header{}
	header.Set("Retry-After", "60")
	l.Observe(http.StatusOK, header)
	assert.NoError(t, l.Reserve())
}

func TestReportedRemainingOverridesEstimate(t *testing.T) {
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := newLimiter(testPolicy(100), c.now)

	header := http.Header{}
	header.Set("X-Remaining-Minute", "1")
	l.Observe(http.StatusOK, header)

	require.NoError(t, l.Reserve())
	assert.Error(t, l.Reserve())

	header.Set("X-Remaining-Minute", "garbage")
	l.Observe(http.StatusOK, header)
	assert.Error(t, l.Reserve(), "malformed header keeps the last reported count")
}

func TestClientRefusesWithoutCallingUpstream(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer upstream.Close()

	client := NewLimiter(testPolicy(10)).Client(&http.Client{Timeout: time.Second})

	resp, err := client.Get(upstream.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	_, err = client.Get(upstream.URL)
	var blocked *BlockedError
	require.True(t, errors.As(err, &blocked))
	assert.Equal(t, int32(1), calls.Load())
}

func TestWindowDurations(t *testing.T) {
	assert.Equal(t, time.Minute, Minute.Duration())
	assert.Equal(t, 24*time.Hour, Day.Duration())
	assert.Equal(t, "day", Day.String())
	assert.Equal(t, []Window{Day}, Policy{PerDay: 5}.windows())
}

func TestReportedExhaustionExpires(t *testing.T) {
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := newLimiter(testPolicy(60), c.now)

	header := http.Header{}
	header.Set("X-Remaining-Minute", "0")
	l.Observe(http.StatusOK, header)

	var blocked *BlockedError
	require.ErrorAs(t, l.Reserve(), &blocked)
	assert.Equal(t, c.t.Add(time.Second), blocked.RetryAt)

	c.advance(time.Second)
	assert.NoError(t, l.Reserve())
}
