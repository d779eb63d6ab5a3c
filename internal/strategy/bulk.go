package strategy

import (
	"context"
	"fmt"

	"github.com/naka-gawa/github-contributions/internal/domain"
	"github.com/naka-gawa/github-contributions/internal/gateway"
	"github.com/sirupsen/logrus"
)

// Bulk runs one cross-repository search per contribution kind. Grouping by
// repository happens in the aggregator.
type Bulk struct {
	src      Source
	maxPages int
	logger   logrus.FieldLogger
}

type searchFunc func(ctx context.Context, id domain.Identity, window domain.DateRange, includePrivate bool, maxPages int) (*gateway.SearchResult, error)

func (s *Bulk) Name() domain.StrategyKind {
	return domain.StrategyBulk
}

// Fetch searches every enabled kind. A failed search is reported and the
// remaining kinds are still searched.
func (s *Bulk) Fetch(ctx context.Context, fc domain.FetchContext, window domain.DateRange) (*Result, error) {
	searches := map[domain.Kind]searchFunc{
		domain.KindCommit:      s.src.SearchCommits,
		domain.KindPullRequest: s.src.SearchPullRequests,
		domain.KindIssue:       s.src.SearchIssues,
		domain.KindReview:      s.src.SearchReviews,
	}

	result := newResult()
	var records []domain.ContributionRecord
	for _, kind := range domain.AllKinds {
		if !fc.Caps.Enabled(kind) {
			continue
		}
		found, err := searches[kind](ctx, fc.Identity, window, fc.IncludePrivate, s.maxPages)
		if err != nil {
			if domain.IsFatal(err) || ctx.Err() != nil {
				return nil, err
			}
			unit := fmt.Sprintf("search %s %s", kind.Label(), window)
			s.logger.WithError(err).WithField("kind", kind).Warn("search failed, continuing with other kinds")
			result.fail(unit, err)
			continue
		}
		for _, repo := range found.Repositories {
			result.addRepository(repo)
		}
		records = append(records, found.Records...)
	}

	// Visibility comes from the search results; look it up only when missing.
	unavailable := make(map[string]bool)
	for _, record := range records {
		if _, ok := result.Repositories[record.Repository]; ok || unavailable[record.Repository] {
			continue
		}
		repo, err := s.src.GetRepository(ctx, record.Repository)
		if err != nil {
			if domain.IsFatal(err) || ctx.Err() != nil {
				return nil, err
			}
			unavailable[record.Repository] = true
			s.logger.WithError(err).WithField("repository", record.Repository).Warn("repository metadata unavailable, dropping its records")
			result.fail(record.Repository, err)
			continue
		}
		result.addRepository(repo)
	}
	for _, record := range records {
		if !unavailable[record.Repository] {
			result.Records = append(result.Records, record)
		}
	}
	return result, nil
}
