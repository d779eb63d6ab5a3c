package ratelimit

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/sirupsen/logrus"
)

// ObservingTransport records the quota headers of every response.
type ObservingTransport struct {
	Base  http.RoundTripper
	Quota *Quota
}

// RoundTrip implements http.RoundTripper.
func (t *ObservingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if t.Quota != nil && hasQuotaSignals(resp.Header) {
		t.Quota.Observe(ParseHeaders(resp.Header, resp.StatusCode))
	}
	return resp, nil
}

// NewTransport stacks the secondary rate-limit waiter under a quota observer.
// A single secondary-limit sleep never exceeds maxWait; longer ones are
// handed back to the guard as rate-limit errors.
func NewTransport(base http.RoundTripper, quota *Quota, maxWait time.Duration, logger logrus.FieldLogger) (http.RoundTripper, error) {
	onDetected := func(cbCtx *github_ratelimit.CallbackContext) {
		fields := logrus.Fields{}
		if cbCtx.SleepUntil != nil {
			fields["until"] = cbCtx.SleepUntil.Format(time.RFC3339)
		}
		if cbCtx.Request != nil {
			fields["path"] = cbCtx.Request.URL.Path
		}
		logger.WithFields(fields).Warn("secondary rate limit detected, pausing")
	}
	onExceeded := func(cbCtx *github_ratelimit.CallbackContext) {
		logger.WithField("max_wait", maxWait).Warn("secondary rate limit pause exceeds the maximum wait")
	}

	waiter, err := github_ratelimit.NewRateLimitWaiter(base,
		github_ratelimit.WithLimitDetectedCallback(onDetected),
		github_ratelimit.WithSingleSleepLimit(maxWait, onExceeded),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	return &ObservingTransport{Base: waiter, Quota: quota}, nil
}
