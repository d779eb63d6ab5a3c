// Package strategy implements the interchangeable ways of retrieving a user's
// contributions: per repository over REST, bulk search, and batched GraphQL.
package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/naka-gawa/github-contributions/internal/domain"
	"github.com/naka-gawa/github-contributions/internal/gateway"
	"github.com/sirupsen/logrus"
)

// Source is the part of the GitHub gateway the strategies depend on.
type Source interface {
	ListRepositories(ctx context.Context, id domain.Identity) ([]domain.Repository, error)
	GetRepository(ctx context.Context, fullName string) (domain.Repository, error)
	SearchCommitRepositories(ctx context.Context, id domain.Identity, window domain.DateRange, maxPages int) ([]domain.Repository, error)

	ListCommits(ctx context.Context, id domain.Identity, repo domain.Repository, window domain.DateRange, limit int) ([]domain.ContributionRecord, error)
	ListPullRequests(ctx context.Context, id domain.Identity, repo domain.Repository, window domain.DateRange, limit int) ([]domain.ContributionRecord, error)
	ListIssues(ctx context.Context, id domain.Identity, repo domain.Repository, window domain.DateRange, limit int) ([]domain.ContributionRecord, error)
	ListReviews(ctx context.Context, id domain.Identity, repo domain.Repository, window domain.DateRange, limit int) ([]domain.ContributionRecord, error)

	SearchCommits(ctx context.Context, id domain.Identity, window domain.DateRange, includePrivate bool, maxPages int) (*gateway.SearchResult, error)
	SearchPullRequests(ctx context.Context, id domain.Identity, window domain.DateRange, includePrivate bool, maxPages int) (*gateway.SearchResult, error)
	SearchIssues(ctx context.Context, id domain.Identity, window domain.DateRange, includePrivate bool, maxPages int) (*gateway.SearchResult, error)
	SearchReviews(ctx context.Context, id domain.Identity, window domain.DateRange, includePrivate bool, maxPages int) (*gateway.SearchResult, error)

	QueryRepositoryBatch(ctx context.Context, id domain.Identity, repos []domain.Repository, window domain.DateRange, caps domain.Caps) ([]domain.ContributionRecord, error)
}

// Pacer inserts deliberate pauses between rounds of work.
type Pacer interface {
	Pause(ctx context.Context, d time.Duration) error
}

// Options tunes the strategies.
type Options struct {
	// MaxPages clamps the pages consumed by each search.
	MaxPages int
	// BatchDelay is the pause between batched rounds.
	BatchDelay time.Duration
}

// Result is what a strategy produced for one window.
type Result struct {
	Records []domain.ContributionRecord
	// Repositories holds the metadata of every repository touched, keyed by full name.
	Repositories map[string]domain.Repository
	// Failures lists units that were skipped after a recovered error.
	Failures []domain.Warning
}

func newResult() *Result {
	return &Result{Repositories: make(map[string]domain.Repository)}
}

func (r *Result) addRepository(repo domain.Repository) {
	if _, ok := r.Repositories[repo.FullName]; !ok {
		r.Repositories[repo.FullName] = repo
	}
}

func (r *Result) fail(unit string, err error) {
	r.Failures = append(r.Failures, domain.WarningFrom(unit, err))
}

// ContributionFetcher retrieves the tracked user's contributions for a window.
type ContributionFetcher interface {
	Name() domain.StrategyKind
	Fetch(ctx context.Context, fc domain.FetchContext, window domain.DateRange) (*Result, error)
}

// New selects the strategy for kind.
func New(kind domain.StrategyKind, src Source, pacer Pacer, logger logrus.FieldLogger, opts Options) (ContributionFetcher, error) {
	if opts.MaxPages <= 0 {
		opts.MaxPages = 10
	}
	lister := &repositoryLister{src: src, maxPages: opts.MaxPages, logger: logger}
	switch kind {
	case domain.StrategyPerRepository, "":
		return &PerRepository{src: src, repos: lister, logger: logger}, nil
	case domain.StrategyBulk:
		return &Bulk{src: src, maxPages: opts.MaxPages, logger: logger}, nil
	case domain.StrategyBatched:
		return &Batched{src: src, repos: lister, pacer: pacer, delay: opts.BatchDelay, logger: logger}, nil
	default:
		return nil, domain.NewConfigurationError(fmt.Errorf("unknown strategy %q", kind))
	}
}

// repositoryLister decides which repositories the per-repository and batched
// strategies visit. The full enumeration is fetched once per run.
type repositoryLister struct {
	src      Source
	maxPages int
	logger   logrus.FieldLogger

	all []domain.Repository
}

func (l *repositoryLister) list(ctx context.Context, fc domain.FetchContext, window domain.DateRange) ([]domain.Repository, error) {
	var (
		repos    []domain.Repository
		filtered bool
	)
	if fc.Optimize {
		found, err := l.src.SearchCommitRepositories(ctx, fc.Identity, window, l.maxPages)
		switch {
		case err == nil:
			repos, filtered = found, true
		case domain.IsFatal(err):
			return nil, err
		default:
			l.logger.WithError(err).Warn("repository search unavailable, falling back to all repositories")
		}
	}
	if !filtered {
		all, err := l.enumerate(ctx, fc.Identity)
		if err != nil {
			return nil, err
		}
		repos = all
	}

	visible := make([]domain.Repository, 0, len(repos))
	for _, repo := range repos {
		if repo.Private && !fc.IncludePrivate {
			continue
		}
		visible = append(visible, repo)
	}
	if fc.RepositoryLimit > 0 && len(visible) > fc.RepositoryLimit {
		l.logger.WithField("limit", fc.RepositoryLimit).Info("limiting repositories")
		visible = visible[:fc.RepositoryLimit]
	}
	return visible, nil
}

func (l *repositoryLister) enumerate(ctx context.Context, id domain.Identity) ([]domain.Repository, error) {
	if l.all != nil {
		return l.all, nil
	}
	all, err := l.src.ListRepositories(ctx, id)
	if err != nil {
		return nil, err
	}
	if all == nil {
		all = []domain.Repository{}
	}
	l.all = all
	return all, nil
}
