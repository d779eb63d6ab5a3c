// Package domain contains the core data structures and domain logic for the application.
package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the type of a contribution.
type Kind string

const (
	KindCommit      Kind = "commit"
	KindPullRequest Kind = "pull_request"
	KindIssue       Kind = "issue"
	KindReview      Kind = "review"
)

// AllKinds lists every contribution kind in report order.
var AllKinds = []Kind{KindCommit, KindPullRequest, KindIssue, KindReview}

// Label returns the plural, human readable name of the kind.
func (k Kind) Label() string {
	switch k {
	case KindCommit:
		return "Commits"
	case KindPullRequest:
		return "Pull Requests"
	case KindIssue:
		return "Issues"
	case KindReview:
		return "Reviews"
	default:
		return string(k)
	}
}

// ContributionRecord is one observed action by the tracked user.
// Records are values and are never mutated once fetched.
type ContributionRecord struct {
	Repository string    `json:"repository" yaml:"repository"`
	Kind       Kind      `json:"kind" yaml:"kind"`
	Timestamp  time.Time `json:"timestamp" yaml:"timestamp"`
	Title      string    `json:"title" yaml:"title"`
	Identifier string    `json:"identifier" yaml:"identifier"`
	State      string    `json:"state,omitempty" yaml:"state,omitempty"`
	URL        string    `json:"url,omitempty" yaml:"url,omitempty"`
}

// Key identifies a record across strategies and sub-windows.
func (r ContributionRecord) Key() string {
	return fmt.Sprintf("%s|%s|%s", r.Kind, strings.ToLower(r.Repository), r.Identifier)
}

// Repository holds the metadata the report needs about a repository.
type Repository struct {
	FullName string `json:"full_name" yaml:"full_name"`
	URL      string `json:"url,omitempty" yaml:"url,omitempty"`
	Private  bool   `json:"private" yaml:"private"`
}

// Visibility returns "private" or "public".
func (r Repository) Visibility() string {
	if r.Private {
		return "private"
	}
	return "public"
}

// Owner returns the owner part of the full name.
func (r Repository) Owner() string {
	owner, _, _ := strings.Cut(r.FullName, "/")
	return owner
}

// Name returns the name part of the full name.
func (r Repository) Name() string {
	_, name, _ := strings.Cut(r.FullName, "/")
	return name
}

// SplitFullName splits "owner/name" into its two parts.
func SplitFullName(fullName string) (string, string, error) {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("invalid repository name %q, expected owner/name", fullName)
	}
	return owner, name, nil
}

// FirstLine returns the first line of a commit message.
func FirstLine(message string) string {
	line, _, _ := strings.Cut(message, "\n")
	return strings.TrimSpace(line)
}

// ShortSHA abbreviates a commit hash to seven characters.
func ShortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

// Caps bounds the number of records kept per repository and kind.
// A zero cap disables fetching that kind.
type Caps struct {
	Commits      int `json:"commits" yaml:"commits" mapstructure:"commits"`
	PullRequests int `json:"pull_requests" yaml:"pull_requests" mapstructure:"pull_requests"`
	Issues       int `json:"issues" yaml:"issues" mapstructure:"issues"`
	Reviews      int `json:"reviews" yaml:"reviews" mapstructure:"reviews"`
}

// DefaultCaps are the per-repository limits used unless overridden.
var DefaultCaps = Caps{Commits: 50, PullRequests: 20, Issues: 20, Reviews: 10}

// FastCaps are used by fast mode, which also skips reviews.
var FastCaps = Caps{Commits: 20, PullRequests: 10, Issues: 10, Reviews: 0}

// For returns the cap for a kind.
func (c Caps) For(kind Kind) int {
	switch kind {
	case KindCommit:
		return c.Commits
	case KindPullRequest:
		return c.PullRequests
	case KindIssue:
		return c.Issues
	case KindReview:
		return c.Reviews
	default:
		return 0
	}
}

// Enabled reports whether the kind is fetched at all.
func (c Caps) Enabled(kind Kind) bool {
	return c.For(kind) > 0
}

// Validate rejects negative caps.
func (c Caps) Validate() error {
	for _, kind := range AllKinds {
		if c.For(kind) < 0 {
			return NewConfigurationError(fmt.Errorf("cap for %s must not be negative", kind.Label()))
		}
	}
	return nil
}

// NumberIdentifier renders a pull request or issue number.
func NumberIdentifier(number int) string {
	return strconv.Itoa(number)
}

// ReviewIdentifier identifies a review by its pull request and review id.
func ReviewIdentifier(number int, reviewID int64) string {
	return fmt.Sprintf("%d/%d", number, reviewID)
}

// DisplayIdentifier renders an identifier the way reports show it.
func (r ContributionRecord) DisplayIdentifier() string {
	if r.Kind == KindCommit {
		return ShortSHA(r.Identifier)
	}
	return "#" + r.Identifier
}
