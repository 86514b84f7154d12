package rate

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// BlockedError is returned in place of a request the budget does not allow.
type BlockedError struct {
	Name    string
	Reason  string
	RetryAt time.Time
}

func (e *BlockedError) Error() string {
	if e.RetryAt.IsZero() {
		return fmt.Sprintf("%s: request blocked (%s)", e.Name, e.Reason)
	}
	return fmt.Sprintf("%s: request blocked (%s) until %s", e.Name, e.Reason, e.RetryAt.UTC().Format(time.RFC3339))
}

const (
	reasonBudget   = "budget"
	reasonCooldown = "cooldown"
)

// budget is a token bucket refilled evenly over its window. reported is the
// upstream's count, -1 when unknown. A reported count holds for one refill
// interval after it was seen.
type budget struct {
	window     Window
	limit      int
	tokens     float64
	refilled   time.Time
	reported   int
	reportedAt time.Time
}

func (b *budget) refill(now time.Time) {
	if b.reported >= 0 && !now.Before(b.reportedAt.Add(b.interval())) {
		b.reported = -1
	}
	elapsed := now.Sub(b.refilled)
	if elapsed <= 0 {
		return
	}
	added := elapsed.Seconds() * float64(b.limit) / b.window.Duration().Seconds()
	b.tokens = min(float64(b.limit), b.tokens+added)
	b.refilled = now
}

func (b *budget) interval() time.Duration {
	return b.window.Duration() / time.Duration(b.limit)
}

// nextToken is when one more request will be allowed.
func (b *budget) nextToken() time.Time {
	if b.reported == 0 {
		return b.reportedAt.Add(b.interval())
	}
	return b.refilled.Add(b.interval())
}

// Limiter tracks one Policy. It is safe for concurrent use.
type Limiter struct {
	policy Policy
	now    func() time.Time

	mu       sync.Mutex
	budgets  []*budget
	cooldown time.Time
}

func NewLimiter(policy Policy) *Limiter {
	return newLimiter(policy, time.Now)
}

func newLimiter(policy Policy, now func() time.Time) *Limiter {
	l := &Limiter{policy: policy, now: now}
	start := l.now()
	for _, w := range policy.windows() {
		limit := policy.limit(w)
		l.budgets = append(l.budgets, &budget{window: w, limit: limit, tokens: float64(limit), refilled: start, reported: -1})
	}
	return l
}

// Reserve takes one request from every window, or returns a *BlockedError
// without taking anything.
func (l *Limiter) Reserve() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()

	if now.Before(l.cooldown) {
		return l.block(reasonCooldown, l.cooldown)
	}
	for _, b := range l.budgets {
		b.refill(now)
		if b.reported == 0 {
			return l.block(reasonBudget, b.nextToken())
		}
		if b.reported < 0 && b.tokens < 1 {
			return l.block(reasonBudget, b.nextToken())
		}
	}
	for _, b := range l.budgets {
		b.tokens = max(0, b.tokens-1)
		if b.reported > 0 {
			b.reported--
		}
		remainingGauge.WithLabelValues(l.policy.Name, b.window.String()).Set(float64(b.remaining()))
	}
	return nil
}

func (b *budget) remaining() int {
	if b.reported >= 0 {
		return b.reported
	}
	return int(b.tokens)
}

func (l *Limiter) block(reason string, retryAt time.Time) error {
	blockedTotal.WithLabelValues(l.policy.Name, reason).Inc()
	return &BlockedError{Name: l.policy.Name, Reason: reason, RetryAt: retryAt}
}

// Observe reads budget headers from a response. Retry-After on a 429 or 503
// starts a cooldown during which Reserve refuses every request.
func (l *Limiter) Observe(status int, header http.Header) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lastStatusGauge.WithLabelValues(l.policy.Name).Set(float64(status))

	if status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable {
		if seconds := headerInt(header, l.policy.RetryAfterHeader); seconds > 0 {
			l.cooldown = l.now().Add(time.Duration(seconds) * time.Second)
			retryAfterGauge.WithLabelValues(l.policy.Name).Set(float64(seconds))
		}
	}

	for _, b := range l.budgets {
		remaining := headerInt(header, l.policy.RemainingHeaders[b.window])
		if remaining < 0 {
			continue
		}
		b.reported = remaining
		b.reportedAt = l.now()
		remainingGauge.WithLabelValues(l.policy.Name, b.window.String()).Set(float64(remaining))
	}
}

// Client returns a copy of base whose requests pass through the limiter.
func (l *Limiter) Client(base *http.Client) *http.Client {
	if base == nil {
		base = &http.Client{}
	}
	client := *base
	next := client.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	client.Transport = &transport{next: next, limiter: l}
	return &client
}

type transport struct {
	next    http.RoundTripper
	limiter *Limiter
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Reserve(); err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, err
	}
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return resp, err
	}
	t.limiter.Observe(resp.StatusCode, resp.Header)
	return resp, nil
}

// headerInt returns -1 for a missing or malformed value.
func headerInt(h http.Header, key string) int {
	if key == "" {
		return -1
	}
	value := strings.TrimSpace(h.Get(key))
	if value == "" {
		return -1
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return -1
	}
	return n
}
