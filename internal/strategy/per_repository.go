package strategy

import (
	"context"

	"github.com/naka-gawa/github-contributions/internal/domain"
	"github.com/sirupsen/logrus"
)

// PerRepository visits repositories one at a time and lists each contribution
// kind separately.
type PerRepository struct {
	src    Source
	repos  *repositoryLister
	logger logrus.FieldLogger
}

type listFunc func(ctx context.Context, id domain.Identity, repo domain.Repository, window domain.DateRange, limit int) ([]domain.ContributionRecord, error)

func (s *PerRepository) Name() domain.StrategyKind {
	return domain.StrategyPerRepository
}

// Fetch lists the window's contributions repository by repository. A
// repository that fails with a recovered error is skipped and reported.
func (s *PerRepository) Fetch(ctx context.Context, fc domain.FetchContext, window domain.DateRange) (*Result, error) {
	repos, err := s.repos.list(ctx, fc, window)
	if err != nil {
		return nil, err
	}

	listers := map[domain.Kind]listFunc{
		domain.KindCommit:      s.src.ListCommits,
		domain.KindPullRequest: s.src.ListPullRequests,
		domain.KindIssue:       s.src.ListIssues,
		domain.KindReview:      s.src.ListReviews,
	}

	result := newResult()
	for i, repo := range repos {
		log := s.logger.WithFields(logrus.Fields{"repository": repo.FullName, "window": window.String()})
		log.Infof("processing repository %d/%d", i+1, len(repos))

		var records []domain.ContributionRecord
		var failed error
		for _, kind := range domain.AllKinds {
			if !fc.Caps.Enabled(kind) {
				continue
			}
			found, err := listers[kind](ctx, fc.Identity, repo, window, fc.Caps.For(kind))
			if err != nil {
				failed = err
				break
			}
			records = append(records, found...)
		}
		if failed != nil {
			if domain.IsFatal(failed) || ctx.Err() != nil {
				return nil, failed
			}
			log.WithError(failed).Warn("skipping repository")
			result.fail(repo.FullName, failed)
			continue
		}

		log.WithField("records", len(records)).Debug("repository processed")
		result.addRepository(repo)
		result.Records = append(result.Records, records...)
	}
	return result, nil
}
