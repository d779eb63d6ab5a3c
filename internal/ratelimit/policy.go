package ratelimit

import "time"

// Decision represents a rate-limit action decision.
type Decision struct {
	Allow   bool
	WaitFor time.Duration
	Reason  string
}

// Policy evaluates rate-limit actions from parsed headers.
type Policy struct {
	MinRemaining          int
	MinResetBuffer        time.Duration
	SecondaryLimitBackoff time.Duration
	Now                   func() time.Time
}

// Evaluate decides whether calls may continue or should pause.
func (p Policy) Evaluate(headers Headers) Decision {
	now := time.Now()
	if p.Now != nil {
		now = p.Now()
	}

	if headers.SecondaryLimited {
		waitFor := p.SecondaryLimitBackoff
		if headers.RetryAfter > waitFor {
			waitFor = headers.RetryAfter
		}
		return Decision{Allow: false, WaitFor: waitFor, Reason: "secondary_limit"}
	}

	if headers.Remaining >= p.MinRemaining {
		return Decision{Allow: true, Reason: "within_budget"}
	}

	resetAt := time.Unix(headers.ResetUnix, 0)
	if !resetAt.After(now) {
		return Decision{Allow: true, Reason: "reset_elapsed"}
	}

	return Decision{
		Allow:   false,
		WaitFor: resetAt.Sub(now) + p.MinResetBuffer,
		Reason:  "remaining_below_threshold",
	}
}
