package summary

import (
	"fmt"
	"sort"
	"strings"

	"github.com/naka-gawa/github-contributions/internal/domain"
)

const promptHeader = "Hi, would you create a more succinct summary based on this list of contributions?\n\n"

const promptInstructions = `

I would like a comprehensive summary that follows this exact format:

# GitHub Contributions Summary - High-Level Tasks

## Overview
- **Total Commits**: [number]
- **Total Pull Requests**: [number]
- **Total Issues**: [number]
- **Total Reviews**: [number]
- **Repositories with Contributions**: [number]
- **Time Period**: Based on contributions from [date range]

## High-Level Tasks Completed

### 1. **[Category Name]**
- [Task description 1]
- [Task description 2]
- [Task description 3]

### 2. **[Category Name]**
- [Task description 1]
- [Task description 2]

[Continue with more categories as needed]

## Key Achievements
- [Achievement 1]
- [Achievement 2]
- [Achievement 3]

## Impact
[Brief paragraph describing the overall impact of the work]

Please analyze the contributions and group them into logical high-level categories. Focus on the main themes and patterns in the work, not individual commits. Make it professional and strategic, highlighting the key accomplishments and their business impact.`

// BuildPrompt renders the report into the summarization prompt. Only
// repository names, titles and identifiers are included. When the result
// would exceed maxBytes the oldest records are left out and a note says how
// many were omitted.
func BuildPrompt(report *domain.ContributionReport, maxBytes int) string {
	overview := promptOverview(report)
	records := newestFirst(report)

	lines := make([]string, len(records))
	for i, rec := range records {
		lines[i] = promptLine(rec)
	}

	build := func(keep int) string {
		return assemble(overview, records[:keep], lines[:keep], len(records)-keep)
	}
	full := build(len(records))
	if maxBytes <= 0 || len(full) <= maxBytes {
		return full
	}

	// With the omission note present the length grows with every kept line,
	// so the largest fitting prefix can be searched for.
	keep := sort.Search(len(records), func(n int) bool {
		return len(build(n)) > maxBytes
	}) - 1
	if keep < 0 {
		keep = 0
	}
	return build(keep)
}

func promptOverview(report *domain.ContributionReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# GitHub Contributions for %s (%s)\n\n", report.Username, report.Range)
	b.WriteString("## Overview\n")
	for _, kind := range domain.AllKinds {
		fmt.Fprintf(&b, "- **Total %s**: %d\n", kind.Label(), report.Totals.Get(kind))
	}
	fmt.Fprintf(&b, "- **Repositories with Contributions**: %d\n", len(report.Repositories))
	return b.String()
}

func promptLine(rec domain.ContributionRecord) string {
	return fmt.Sprintf("- %s: %s (%s)", rec.Repository, rec.Title, rec.DisplayIdentifier())
}

// assemble groups the kept lines by kind in report order.
func assemble(overview string, records []domain.ContributionRecord, lines []string, omitted int) string {
	byKind := make(map[domain.Kind][]string, len(domain.AllKinds))
	for i, rec := range records {
		byKind[rec.Kind] = append(byKind[rec.Kind], lines[i])
	}

	var b strings.Builder
	b.WriteString(promptHeader)
	b.WriteString(overview)
	for _, kind := range domain.AllKinds {
		if len(byKind[kind]) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n", kind.Label())
		b.WriteString(strings.Join(byKind[kind], "\n"))
		b.WriteString("\n")
	}
	if omitted > 0 {
		fmt.Fprintf(&b, "\n(%d older contributions omitted for length)\n", omitted)
	}
	b.WriteString(promptInstructions)
	return b.String()
}

func newestFirst(report *domain.ContributionReport) []domain.ContributionRecord {
	var records []domain.ContributionRecord
	for _, kind := range domain.AllKinds {
		records = append(records, report.Records(kind)...)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	return records
}
