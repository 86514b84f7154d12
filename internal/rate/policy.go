// Package rate keeps outbound calls to an upstream API inside its request
// budget.
package rate

import "time"

// Window is a budget period.
type Window int

const (
	Minute Window = iota
	Day
)

func (w Window) String() string {
	switch w {
	case Minute:
		return "minute"
	case Day:
		return "day"
	default:
		return "unknown"
	}
}

func (w Window) Duration() time.Duration {
	if w == Day {
		return 24 * time.Hour
	}
	return time.Minute
}

// Policy is the request budget of one upstream. A zero limit leaves that
// window unbounded; a policy without limits never blocks.
type Policy struct {
	Name      string
	PerMinute int
	PerDay    int

	// RemainingHeaders name the response headers carrying the upstream's own
	// count of requests left per window. When present they replace the local
	// estimate for that window.
	RemainingHeaders map[Window]string
	RetryAfterHeader string
}

func (p Policy) limit(w Window) int {
	switch w {
	case Minute:
		return p.PerMinute
	case Day:
		return p.PerDay
	default:
		return 0
	}
}

func (p Policy) windows() []Window {
	var out []Window
	for _, w := range []Window{Minute, Day} {
		if p.limit(w) > 0 {
			out = append(out, w)
		}
	}
	return out
}
