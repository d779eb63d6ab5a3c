// Package ratelimit guards outbound GitHub calls: it observes the quota the
// provider reports, pauses when it is exhausted, retries transient failures
// and, in conservative mode, paces the whole run.
package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Headers contains parsed GitHub rate-limit response headers.
type Headers struct {
	Remaining        int
	Limit            int
	ResetUnix        int64
	Used             int
	RetryAfter       time.Duration
	SecondaryLimited bool
	StatusCode       int
}

// ParseHeaders parses rate-limit and retry headers.
func ParseHeaders(header http.Header, statusCode int) Headers {
	parsed := Headers{StatusCode: statusCode}
	parsed.Remaining = parseInt(header.Get("X-RateLimit-Remaining"))
	parsed.Limit = parseInt(header.Get("X-RateLimit-Limit"))
	parsed.Used = parseInt(header.Get("X-RateLimit-Used"))
	parsed.ResetUnix = parseInt64(header.Get("X-RateLimit-Reset"))

	if retryAfterSeconds := parseInt(header.Get("Retry-After")); retryAfterSeconds > 0 {
		parsed.RetryAfter = time.Duration(retryAfterSeconds) * time.Second
	}

	if statusCode == http.StatusTooManyRequests {
		parsed.SecondaryLimited = true
	}
	if statusCode == http.StatusForbidden && parsed.RetryAfter > 0 {
		parsed.SecondaryLimited = true
	}
	return parsed
}

// hasQuotaSignals reports whether the response carried any rate-limit headers.
func hasQuotaSignals(header http.Header) bool {
	return header.Get("X-RateLimit-Remaining") != "" || header.Get("Retry-After") != ""
}

// Quota remembers the most recent rate-limit headers seen on any response.
type Quota struct {
	mu       sync.Mutex
	last     Headers
	observed bool
}

// Observe records headers from a response.
func (q *Quota) Observe(h Headers) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.last = h
	q.observed = true
}

// Snapshot returns the last observed headers and whether any were observed.
func (q *Quota) Snapshot() (Headers, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.last, q.observed
}

func parseInt(raw string) int {
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}

func parseInt64(raw string) int64 {
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}
