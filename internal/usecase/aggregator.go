// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/naka-gawa/github-contributions/internal/domain"
	"github.com/naka-gawa/github-contributions/internal/strategy"
	"github.com/sirupsen/logrus"
)

// Windower partitions a run into sub-windows and paces them.
type Windower interface {
	Windows(r domain.DateRange) []domain.DateRange
	BetweenWindows(ctx context.Context) error
}

// Aggregator is the use case for collecting a user's contributions.
// It drives the selected fetch strategy over every window and merges the results.
type Aggregator struct {
	fetcher  strategy.ContributionFetcher
	windower Windower
	logger   logrus.FieldLogger
}

// NewAggregator creates a new Aggregator instance.
func NewAggregator(fetcher strategy.ContributionFetcher, windower Windower, logger logrus.FieldLogger) *Aggregator {
	return &Aggregator{
		fetcher:  fetcher,
		windower: windower,
		logger:   logger,
	}
}

// Aggregate performs the main business logic. Windows are fetched one after
// another; a window that fails with a recovered error becomes a warning and
// the run continues. Fatal errors abort.
func (a *Aggregator) Aggregate(ctx context.Context, fc domain.FetchContext) (*domain.ContributionReport, error) {
	if err := fc.Validate(); err != nil {
		return nil, err
	}

	windows := a.windower.Windows(fc.Range)
	a.logger.WithFields(logrus.Fields{
		"strategy": a.fetcher.Name(),
		"range":    fc.Range.String(),
		"windows":  len(windows),
		"user":     fc.Identity.Login,
	}).Info("starting contribution aggregation")

	started := time.Now()
	var (
		records  []domain.ContributionRecord
		warnings []domain.Warning
	)
	repos := make(map[string]domain.Repository)
	for i, window := range windows {
		if i > 0 {
			if err := a.windower.BetweenWindows(ctx); err != nil {
				return nil, err
			}
		}
		log := a.logger.WithField("window", window.String())
		log.Infof("fetching window %d/%d", i+1, len(windows))

		result, err := a.fetcher.Fetch(ctx, fc, window)
		if err != nil {
			if domain.IsFatal(err) || ctx.Err() != nil {
				return nil, err
			}
			log.WithError(err).Warn("window failed, continuing with the next one")
			warnings = append(warnings, domain.WarningFrom(fmt.Sprintf("window %s", window), err))
			continue
		}
		records = append(records, result.Records...)
		for name, repo := range result.Repositories {
			if _, ok := repos[name]; !ok {
				repos[name] = repo
			}
		}
		warnings = append(warnings, result.Failures...)
	}

	report := Merge(records, repos, fc)
	for _, w := range warnings {
		report.AddWarning(w)
	}
	a.logger.WithFields(logrus.Fields{
		"repositories": len(report.Repositories),
		"total":        report.Totals.All(),
		"warnings":     len(report.Warnings),
		"elapsed":      time.Since(started).Round(time.Millisecond),
	}).Info("completed contribution aggregation")
	return report, nil
}
