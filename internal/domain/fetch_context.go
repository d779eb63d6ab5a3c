package domain

import (
	"fmt"
	"strings"
)

// StrategyKind selects how contributions are retrieved.
type StrategyKind string

const (
	StrategyPerRepository StrategyKind = "per-repository"
	StrategyBulk          StrategyKind = "bulk"
	StrategyBatched       StrategyKind = "batched"
)

// ParseStrategy maps the mutually exclusive CLI switches onto a strategy.
func ParseStrategy(graphql, bulk bool) (StrategyKind, error) {
	switch {
	case graphql && bulk:
		return "", NewConfigurationError(fmt.Errorf("unknown strategy flag combination: --graphql and --bulk are mutually exclusive"))
	case bulk:
		return StrategyBulk, nil
	case graphql:
		return StrategyBatched, nil
	default:
		return StrategyPerRepository, nil
	}
}

// RateLimitMode selects how the rate-limit guard paces calls.
type RateLimitMode string

const (
	RateLimitDefault      RateLimitMode = "default"
	RateLimitConservative RateLimitMode = "conservative"
)

// Identity is the tracked user.
type Identity struct {
	Login  string `json:"login" yaml:"login"`
	NodeID string `json:"node_id,omitempty" yaml:"node_id,omitempty"`
	// Authenticated is true when Login is the owner of the credential.
	Authenticated bool `json:"authenticated" yaml:"authenticated"`
}

// FetchContext is the per-run configuration. It is built once and only read afterwards.
type FetchContext struct {
	Range           DateRange
	Identity        Identity
	IncludePrivate  bool
	Strategy        StrategyKind
	Caps            Caps
	RateLimitMode   RateLimitMode
	Optimize        bool
	RepositoryLimit int
}

// Validate checks the invariants a run relies on.
func (fc FetchContext) Validate() error {
	if _, err := NewDateRange(fc.Range.Start, fc.Range.End); err != nil {
		return err
	}
	if strings.TrimSpace(fc.Identity.Login) == "" {
		return NewConfigurationError(fmt.Errorf("tracked username is required"))
	}
	switch fc.Strategy {
	case StrategyPerRepository, StrategyBulk, StrategyBatched:
	default:
		return NewConfigurationError(fmt.Errorf("unknown strategy %q", fc.Strategy))
	}
	switch fc.RateLimitMode {
	case RateLimitDefault, RateLimitConservative:
	default:
		return NewConfigurationError(fmt.Errorf("unknown rate limit mode %q", fc.RateLimitMode))
	}
	if fc.RepositoryLimit < 0 {
		return NewConfigurationError(fmt.Errorf("repository limit must not be negative"))
	}
	return fc.Caps.Validate()
}
