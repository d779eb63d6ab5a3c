package ratelimit

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/naka-gawa/github-contributions/internal/domain"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Options configures a Guard.
type Options struct {
	Mode                  domain.RateLimitMode
	MaxAttempts           int
	InitialBackoff        time.Duration
	MaxBackoff            time.Duration
	MaxWait               time.Duration
	MinRemaining          int
	SecondaryLimitBackoff time.Duration
	WindowDays            int
	WindowDelay           time.Duration
	RequestInterval       time.Duration
}

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Guard wraps outbound calls with quota checks, reactive rate-limit waits and
// bounded retries of transient failures.
type Guard struct {
	opts    Options
	quota   *Quota
	policy  Policy
	limiter *rate.Limiter
	logger  logrus.FieldLogger

	// Sleep and Now are injected for testability.
	Sleep SleepFunc
	Now   func() time.Time
}

// NewGuard creates a guard sharing quota with the transport that observes it.
func NewGuard(opts Options, quota *Quota, logger logrus.FieldLogger) *Guard {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.Mode == "" {
		opts.Mode = domain.RateLimitDefault
	}
	if quota == nil {
		quota = &Quota{}
	}
	g := &Guard{
		opts:   opts,
		quota:  quota,
		logger: logger,
		Sleep:  sleepContext,
		Now:    time.Now,
	}
	g.policy = Policy{
		MinRemaining:          opts.MinRemaining,
		MinResetBuffer:        time.Second,
		SecondaryLimitBackoff: opts.SecondaryLimitBackoff,
		Now:                   func() time.Time { return g.Now() },
	}
	if opts.Mode == domain.RateLimitConservative {
		limit := rate.Inf
		if opts.RequestInterval > 0 {
			limit = rate.Every(opts.RequestInterval)
		}
		g.limiter = rate.NewLimiter(limit, 1)
	}
	return g
}

// Mode returns the pacing mode.
func (g *Guard) Mode() domain.RateLimitMode {
	return g.opts.Mode
}

// Quota returns the shared quota observer.
func (g *Guard) Quota() *Quota {
	return g.quota
}

// Do runs fn for the named unit of work. Authentication failures are returned
// immediately as fatal errors. A rate-limit rejection pauses until the reported
// reset (bounded by MaxWait) and retries once. Transient failures are retried
// with doubling backoff up to MaxAttempts. Any other error is returned as is.
func (g *Guard) Do(ctx context.Context, unit string, fn func(ctx context.Context) error) error {
	rateRetried := false
	transientAttempts := 0
	for {
		if err := g.beforeCall(ctx, unit); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		switch c := g.classify(err); c.kind {
		case domain.AuthenticationError:
			return domain.NewAuthenticationError(err)
		case domain.RateLimitError:
			if rateRetried {
				return domain.NewRateLimitError(unit, err)
			}
			rateRetried = true
			wait := g.bound(c.wait)
			g.logger.WithFields(logrus.Fields{"unit": unit, "wait": wait}).Warn("rate limited, waiting for reset")
			if err := g.Sleep(ctx, wait); err != nil {
				return err
			}
			g.resetQuotaSignal()
		case domain.TransientProviderError:
			transientAttempts++
			if transientAttempts >= g.opts.MaxAttempts {
				return domain.NewTransientError(unit, err)
			}
			backoff := backoffForAttempt(g.opts, transientAttempts)
			g.logger.WithFields(logrus.Fields{
				"unit":    unit,
				"attempt": transientAttempts,
				"backoff": backoff,
			}).WithError(err).Debug("transient provider error, retrying")
			if err := g.Sleep(ctx, backoff); err != nil {
				return err
			}
		default:
			return err
		}
	}
}

// Windows partitions the range: one window normally, fixed-size sub-windows in
// conservative mode.
func (g *Guard) Windows(r domain.DateRange) []domain.DateRange {
	if g.opts.Mode != domain.RateLimitConservative {
		return []domain.DateRange{r}
	}
	return r.Split(g.opts.WindowDays)
}

// BetweenWindows inserts the conservative-mode delay between sub-windows.
func (g *Guard) BetweenWindows(ctx context.Context) error {
	if g.opts.Mode != domain.RateLimitConservative {
		return nil
	}
	return g.Pause(ctx, g.opts.WindowDelay)
}

// Pause sleeps for d, used between batches.
func (g *Guard) Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	return g.Sleep(ctx, d)
}

func (g *Guard) beforeCall(ctx context.Context, unit string) error {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	headers, observed := g.quota.Snapshot()
	if !observed {
		return nil
	}
	// Default mode waits only once GitHub has rejected a call; a low remaining
	// budget alone pauses conservative runs.
	if g.opts.Mode != domain.RateLimitConservative && !headers.SecondaryLimited {
		return nil
	}
	decision := g.policy.Evaluate(headers)
	if decision.Allow {
		return nil
	}
	wait := g.bound(decision.WaitFor)
	g.logger.WithFields(logrus.Fields{
		"unit":   unit,
		"reason": decision.Reason,
		"wait":   wait,
	}).Info("quota exhausted, pausing before next call")
	if err := g.Sleep(ctx, wait); err != nil {
		return err
	}
	g.resetQuotaSignal()
	return nil
}

// resetQuotaSignal marks a waited-out signal as consumed; the next response
// refreshes it.
func (g *Guard) resetQuotaSignal() {
	g.quota.Observe(Headers{Remaining: g.opts.MinRemaining})
}

func (g *Guard) bound(wait time.Duration) time.Duration {
	if wait < 0 {
		return 0
	}
	if g.opts.MaxWait > 0 && wait > g.opts.MaxWait {
		return g.opts.MaxWait
	}
	return wait
}

type classification struct {
	kind domain.ErrorKind
	wait time.Duration
}

func (g *Guard) classify(err error) classification {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return classification{kind: domain.RateLimitError, wait: rateErr.Rate.Reset.Time.Sub(g.Now())}
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		wait := g.opts.SecondaryLimitBackoff
		if abuseErr.RetryAfter != nil {
			wait = *abuseErr.RetryAfter
		}
		return classification{kind: domain.RateLimitError, wait: wait}
	}
	var acceptedErr *github.AcceptedError
	if errors.As(err, &acceptedErr) {
		return classification{kind: domain.TransientProviderError}
	}
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		return g.classifyStatus(respErr.Response.StatusCode, respErr.Message)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return classification{kind: domain.TransientProviderError}
	}

	// The GraphQL client reports HTTP failures and GraphQL errors as plain text.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "401 unauthorized") || strings.Contains(msg, "bad credentials"):
		return classification{kind: domain.AuthenticationError}
	case strings.Contains(msg, "rate limit"):
		return classification{kind: domain.RateLimitError, wait: g.quotaWait()}
	case strings.Contains(msg, "non-200 ok status code: 5") ||
		strings.Contains(msg, "unexpected eof") ||
		strings.Contains(msg, "connection reset"):
		return classification{kind: domain.TransientProviderError}
	}
	return classification{}
}

func (g *Guard) classifyStatus(status int, message string) classification {
	switch {
	case status == http.StatusUnauthorized:
		return classification{kind: domain.AuthenticationError}
	case status == http.StatusTooManyRequests,
		status == http.StatusForbidden && strings.Contains(strings.ToLower(message), "rate limit"):
		return classification{kind: domain.RateLimitError, wait: g.quotaWait()}
	case status >= 500 && status <= 599:
		return classification{kind: domain.TransientProviderError}
	}
	return classification{}
}

// quotaWait derives a wait from the last observed headers.
func (g *Guard) quotaWait() time.Duration {
	headers, observed := g.quota.Snapshot()
	if !observed {
		return g.opts.SecondaryLimitBackoff
	}
	if headers.RetryAfter > 0 {
		return headers.RetryAfter
	}
	if headers.ResetUnix > 0 {
		if wait := time.Unix(headers.ResetUnix, 0).Sub(g.Now()); wait > 0 {
			return wait
		}
	}
	return g.opts.SecondaryLimitBackoff
}

func backoffForAttempt(opts Options, attempt int) time.Duration {
	backoff := opts.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if opts.MaxBackoff > 0 && backoff > opts.MaxBackoff {
			return opts.MaxBackoff
		}
	}
	if opts.MaxBackoff > 0 && backoff > opts.MaxBackoff {
		return opts.MaxBackoff
	}
	return backoff
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
