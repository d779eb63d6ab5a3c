package usecase

import (
	"sort"
	"strings"

	"github.com/naka-gawa/github-contributions/internal/domain"
)

// Merge builds the report from a flat record list and the repository metadata
// gathered while fetching. The result depends only on its inputs, so any
// strategy producing the same records yields the same report.
func Merge(records []domain.ContributionRecord, repos map[string]domain.Repository, fc domain.FetchContext) *domain.ContributionReport {
	meta := make(map[string]domain.Repository, len(repos))
	for name, repo := range repos {
		meta[strings.ToLower(name)] = repo
	}

	seen := make(map[string]bool, len(records))
	sets := make(map[string]*domain.RepositoryContributionSet)
	for _, record := range records {
		key := strings.ToLower(record.Repository)
		repo, known := meta[key]
		if !known {
			repo = domain.Repository{FullName: record.Repository}
		}
		if repo.Private && !fc.IncludePrivate {
			continue
		}
		if !fc.Range.Contains(record.Timestamp) {
			continue
		}
		if seen[record.Key()] {
			continue
		}
		seen[record.Key()] = true

		set, ok := sets[key]
		if !ok {
			set = &domain.RepositoryContributionSet{Repository: repo}
			sets[key] = set
		}
		record.Repository = repo.FullName
		set.SetRecords(record.Kind, append(set.Records(record.Kind), record))
	}

	report := &domain.ContributionReport{
		Username:        fc.Identity.Login,
		Range:           fc.Range,
		Strategy:        fc.Strategy,
		NarrativeStatus: domain.NarrativeNone,
	}
	for _, set := range sets {
		for _, kind := range domain.AllKinds {
			set.SetRecords(kind, capRecords(set.Records(kind), fc.Caps.For(kind)))
		}
		if set.Total() == 0 {
			continue
		}
		for _, kind := range domain.AllKinds {
			report.Totals.Add(kind, set.Count(kind))
		}
		report.Repositories = append(report.Repositories, set)
	}
	sort.Slice(report.Repositories, func(i, j int) bool {
		return report.Repositories[i].Repository.FullName < report.Repositories[j].Repository.FullName
	})
	return report
}

// capRecords orders records most recent first and keeps at most limit of them.
func capRecords(records []domain.ContributionRecord, limit int) []domain.ContributionRecord {
	if len(records) == 0 || limit <= 0 {
		return nil
	}
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].Timestamp.After(records[j].Timestamp)
		}
		return records[i].Identifier < records[j].Identifier
	})
	if len(records) > limit {
		records = records[:limit]
	}
	return records
}
