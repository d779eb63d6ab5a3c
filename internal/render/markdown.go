package render

import (
	"fmt"
	"strings"

	"github.com/naka-gawa/github-contributions/internal/domain"
)

const (
	highLevelHeading   = "## High-Level Tasks Completed"
	overviewHeading    = "## Overview"
	unavailableMessage = "AI summary unavailable, showing the structured report."
)

func markdown(report *domain.ContributionReport, reposOnly bool) string {
	if reposOnly {
		return markdownReposOnly(report)
	}
	if report.NarrativeStatus == domain.NarrativeGenerated {
		return markdownNarrative(report)
	}

	var b strings.Builder
	b.WriteString("# GitHub Contributions Summary\n\n")
	fmt.Fprintf(&b, "**User**: %s  \n", report.Username)
	fmt.Fprintf(&b, "**Time Period**: %s  \n", report.Range)
	fmt.Fprintf(&b, "**Strategy**: %s\n\n", report.Strategy)
	if report.NarrativeStatus == domain.NarrativeUnavailable {
		fmt.Fprintf(&b, "> %s\n\n", unavailableMessage)
	}

	b.WriteString(overviewHeading + "\n")
	for _, kind := range domain.AllKinds {
		fmt.Fprintf(&b, "- **Total %s**: %d\n", kind.Label(), report.Totals.Get(kind))
	}
	fmt.Fprintf(&b, "- **Repositories with Contributions**: %d\n", len(report.Repositories))
	if a, ok := activity(report); ok {
		fmt.Fprintf(&b, "- **Contributions per Repository**: %s\n", a)
	}

	if report.Totals.All() == 0 {
		b.WriteString("\nNo contributions found in the specified time period.\n")
	}
	for _, kind := range domain.AllKinds {
		records := report.Records(kind)
		if len(records) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n", kind.Label())
		for _, rec := range records {
			fmt.Fprintf(&b, "- **%s**: %s\n", rec.Repository, recordLine(rec))
		}
	}

	if len(report.Repositories) > 0 {
		b.WriteString("\n## Repositories with Contributions\n")
		for _, set := range report.Repositories {
			fmt.Fprintf(&b, "- **%s** (%s)\n", set.Repository.FullName, visibilityBadge(set.Repository))
		}
	}

	markdownWarnings(&b, report.Warnings)
	return b.String()
}

func markdownReposOnly(report *domain.ContributionReport) string {
	var b strings.Builder
	b.WriteString("# Repositories with Contributions\n\n")
	fmt.Fprintf(&b, "**Time Period**: %s  \n", report.Range)
	fmt.Fprintf(&b, "**Total Repositories**: %d\n\n", len(report.Repositories))
	b.WriteString("## Repository List\n")
	for _, set := range report.Repositories {
		fmt.Fprintf(&b, "- **%s** (%s) - %s\n", set.Repository.FullName, visibilityBadge(set.Repository), set.Repository.URL)
	}
	markdownWarnings(&b, report.Warnings)
	return b.String()
}

func markdownNarrative(report *domain.ContributionReport) string {
	out := insertLowLevelTasks(report.Narrative, lowLevelTasks(report))
	var b strings.Builder
	b.WriteString(strings.TrimRight(out, "\n"))
	b.WriteString("\n")
	markdownWarnings(&b, report.Warnings)
	return b.String()
}

func markdownWarnings(b *strings.Builder, warnings []domain.Warning) {
	if len(warnings) == 0 {
		return
	}
	b.WriteString("\n## Warnings\n")
	for _, w := range warnings {
		fmt.Fprintf(b, "- %s\n", w)
	}
}

// lowLevelTasks lists every record grouped by repository.
func lowLevelTasks(report *domain.ContributionReport) string {
	var b strings.Builder
	b.WriteString("## Low-Level Tasks\n")
	if report.Totals.All() == 0 {
		b.WriteString("\nNo contributions found in the specified time period.\n")
		return b.String()
	}
	b.WriteString("\n")
	for _, set := range report.Repositories {
		fmt.Fprintf(&b, "  Repository: %s\n", set.Repository.FullName)
		for _, kind := range domain.AllKinds {
			for _, rec := range set.Records(kind) {
				fmt.Fprintf(&b, "    %s: %s - %s\n", singular(kind), rec.DisplayIdentifier(), rec.Title)
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// insertLowLevelTasks places section before the high-level tasks heading,
// otherwise after the overview, otherwise at the end.
func insertLowLevelTasks(narrative, section string) string {
	if i := strings.Index(narrative, highLevelHeading); i >= 0 {
		return narrative[:i] + section + "\n" + narrative[i:]
	}
	if i := strings.Index(narrative, overviewHeading); i >= 0 {
		rest := narrative[i+len(overviewHeading):]
		if j := strings.Index(rest, "\n##"); j >= 0 {
			at := i + len(overviewHeading) + j + 1
			return narrative[:at] + section + "\n" + narrative[at:]
		}
	}
	return strings.TrimRight(narrative, "\n") + "\n\n" + section
}

func visibilityBadge(repo domain.Repository) string {
	if repo.Private {
		return "🔒 Private"
	}
	return "🌐 Public"
}
