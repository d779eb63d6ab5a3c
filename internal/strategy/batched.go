package strategy

import (
	"context"
	"time"

	"github.com/naka-gawa/github-contributions/internal/domain"
	"github.com/naka-gawa/github-contributions/internal/gateway"
	"github.com/sirupsen/logrus"
)

// Batched queries a fixed number of repositories per GraphQL round trip.
type Batched struct {
	src    Source
	repos  *repositoryLister
	pacer  Pacer
	delay  time.Duration
	logger logrus.FieldLogger
}

func (s *Batched) Name() domain.StrategyKind {
	return domain.StrategyBatched
}

// Fetch covers the repository list in rounds of gateway.BatchSize. A failed
// round marks each of its repositories as failed.
func (s *Batched) Fetch(ctx context.Context, fc domain.FetchContext, window domain.DateRange) (*Result, error) {
	repos, err := s.repos.list(ctx, fc, window)
	if err != nil {
		return nil, err
	}

	result := newResult()
	rounds := (len(repos) + gateway.BatchSize - 1) / gateway.BatchSize
	for round := 0; round < rounds; round++ {
		start := round * gateway.BatchSize
		batch := repos[start:min(start+gateway.BatchSize, len(repos))]
		log := s.logger.WithFields(logrus.Fields{"window": window.String(), "round": round + 1})
		log.Infof("processing batch %d/%d", round+1, rounds)

		records, err := s.src.QueryRepositoryBatch(ctx, fc.Identity, batch, window, fc.Caps)
		if err != nil {
			if domain.IsFatal(err) || ctx.Err() != nil {
				return nil, err
			}
			log.WithError(err).Warn("batch failed, skipping its repositories")
			for _, repo := range batch {
				result.fail(repo.FullName, err)
			}
		} else {
			for _, repo := range batch {
				result.addRepository(repo)
			}
			result.Records = append(result.Records, records...)
		}

		if round < rounds-1 && s.pacer != nil {
			if err := s.pacer.Pause(ctx, s.delay); err != nil {
				return nil, err
			}
		}
	}
	return result, nil
}
