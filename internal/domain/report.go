package domain

import "sort"

// RepositoryContributionSet holds one repository's records, partitioned by kind.
type RepositoryContributionSet struct {
	Repository   Repository           `json:"repository" yaml:"repository"`
	Commits      []ContributionRecord `json:"commits" yaml:"commits"`
	PullRequests []ContributionRecord `json:"pull_requests" yaml:"pull_requests"`
	Issues       []ContributionRecord `json:"issues" yaml:"issues"`
	Reviews      []ContributionRecord `json:"reviews" yaml:"reviews"`
}

// Records returns the partition for a kind.
func (s *RepositoryContributionSet) Records(kind Kind) []ContributionRecord {
	switch kind {
	case KindCommit:
		return s.Commits
	case KindPullRequest:
		return s.PullRequests
	case KindIssue:
		return s.Issues
	case KindReview:
		return s.Reviews
	default:
		return nil
	}
}

// SetRecords replaces the partition for a kind.
func (s *RepositoryContributionSet) SetRecords(kind Kind, records []ContributionRecord) {
	switch kind {
	case KindCommit:
		s.Commits = records
	case KindPullRequest:
		s.PullRequests = records
	case KindIssue:
		s.Issues = records
	case KindReview:
		s.Reviews = records
	}
}

// Count returns the number of records of a kind.
func (s *RepositoryContributionSet) Count(kind Kind) int {
	return len(s.Records(kind))
}

// Total returns the number of records of every kind.
func (s *RepositoryContributionSet) Total() int {
	total := 0
	for _, kind := range AllKinds {
		total += s.Count(kind)
	}
	return total
}

// Totals counts records per kind.
type Totals struct {
	Commits      int `json:"commits" yaml:"commits"`
	PullRequests int `json:"pull_requests" yaml:"pull_requests"`
	Issues       int `json:"issues" yaml:"issues"`
	Reviews      int `json:"reviews" yaml:"reviews"`
}

// Add increases the count of a kind.
func (t *Totals) Add(kind Kind, n int) {
	switch kind {
	case KindCommit:
		t.Commits += n
	case KindPullRequest:
		t.PullRequests += n
	case KindIssue:
		t.Issues += n
	case KindReview:
		t.Reviews += n
	}
}

// Get returns the count of a kind.
func (t Totals) Get(kind Kind) int {
	switch kind {
	case KindCommit:
		return t.Commits
	case KindPullRequest:
		return t.PullRequests
	case KindIssue:
		return t.Issues
	case KindReview:
		return t.Reviews
	default:
		return 0
	}
}

// All is the grand total.
func (t Totals) All() int {
	return t.Commits + t.PullRequests + t.Issues + t.Reviews
}

// NarrativeStatus tracks the optional AI summary.
type NarrativeStatus string

const (
	NarrativeNone        NarrativeStatus = "none"
	NarrativeGenerated   NarrativeStatus = "generated"
	NarrativeUnavailable NarrativeStatus = "unavailable"
)

// ContributionReport is the aggregate handed to rendering and summarization.
type ContributionReport struct {
	Username        string                       `json:"username" yaml:"username"`
	Range           DateRange                    `json:"range" yaml:"range"`
	Strategy        StrategyKind                 `json:"strategy" yaml:"strategy"`
	Repositories    []*RepositoryContributionSet `json:"repositories" yaml:"repositories"`
	Totals          Totals                       `json:"totals" yaml:"totals"`
	Narrative       string                       `json:"narrative,omitempty" yaml:"narrative,omitempty"`
	NarrativeStatus NarrativeStatus              `json:"narrative_status" yaml:"narrative_status"`
	Warnings        []Warning                    `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Repository looks up a repository's set by full name.
func (r *ContributionReport) Repository(fullName string) *RepositoryContributionSet {
	i := sort.Search(len(r.Repositories), func(i int) bool {
		return r.Repositories[i].Repository.FullName >= fullName
	})
	if i < len(r.Repositories) && r.Repositories[i].Repository.FullName == fullName {
		return r.Repositories[i]
	}
	return nil
}

// AddWarning records a recovered failure.
func (r *ContributionReport) AddWarning(w Warning) {
	r.Warnings = append(r.Warnings, w)
}

// Records returns every record of a kind, ordered by repository then recency.
func (r *ContributionReport) Records(kind Kind) []ContributionRecord {
	var out []ContributionRecord
	for _, set := range r.Repositories {
		out = append(out, set.Records(kind)...)
	}
	return out
}
