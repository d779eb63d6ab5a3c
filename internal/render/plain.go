package render

import (
	"fmt"
	"strings"

	"github.com/naka-gawa/github-contributions/internal/domain"
)

func plain(report *domain.ContributionReport, reposOnly bool) string {
	if reposOnly {
		return plainReposOnly(report)
	}
	if report.NarrativeStatus == domain.NarrativeGenerated {
		var b strings.Builder
		b.WriteString(strings.TrimRight(insertLowLevelTasks(report.Narrative, lowLevelTasks(report)), "\n"))
		b.WriteString("\n")
		plainWarnings(&b, report.Warnings)
		return b.String()
	}

	var b strings.Builder
	title(&b, "GITHUB CONTRIBUTIONS SUMMARY", "=", 40)
	fmt.Fprintf(&b, "User: %s\n", report.Username)
	fmt.Fprintf(&b, "Time Period: %s\n", report.Range)
	fmt.Fprintf(&b, "Strategy: %s\n\n", report.Strategy)
	if report.NarrativeStatus == domain.NarrativeUnavailable {
		fmt.Fprintf(&b, "NOTE: %s\n\n", unavailableMessage)
	}

	heading(&b, "OVERVIEW")
	for _, kind := range domain.AllKinds {
		fmt.Fprintf(&b, "Total %s: %d\n", kind.Label(), report.Totals.Get(kind))
	}
	fmt.Fprintf(&b, "Repositories with Contributions: %d\n", len(report.Repositories))
	if a, ok := activity(report); ok {
		fmt.Fprintf(&b, "Contributions per Repository: %s\n", a)
	}
	if report.Totals.All() == 0 {
		b.WriteString("\nNo contributions found in the specified time period.\n")
	}

	for _, kind := range domain.AllKinds {
		records := report.Records(kind)
		if len(records) == 0 {
			continue
		}
		b.WriteString("\n")
		heading(&b, strings.ToUpper(kind.Label()))
		for _, rec := range records {
			fmt.Fprintf(&b, "- %s: %s\n", rec.Repository, recordLine(rec))
		}
	}

	if len(report.Repositories) > 0 {
		b.WriteString("\n")
		heading(&b, "REPOSITORIES WITH CONTRIBUTIONS")
		for _, set := range report.Repositories {
			fmt.Fprintf(&b, "- %s (%s)\n", set.Repository.FullName, titleCase(set.Repository.Visibility()))
		}
	}

	plainWarnings(&b, report.Warnings)
	return b.String()
}

func plainReposOnly(report *domain.ContributionReport) string {
	var b strings.Builder
	title(&b, "REPOSITORIES WITH CONTRIBUTIONS", "=", 40)
	fmt.Fprintf(&b, "Time Period: %s\n", report.Range)
	fmt.Fprintf(&b, "Total Repositories: %d\n\n", len(report.Repositories))
	title(&b, "REPOSITORY LIST", "-", 15)
	for _, set := range report.Repositories {
		fmt.Fprintf(&b, "- %s (%s) - %s\n", set.Repository.FullName, titleCase(set.Repository.Visibility()), set.Repository.URL)
	}
	plainWarnings(&b, report.Warnings)
	return b.String()
}

func plainWarnings(b *strings.Builder, warnings []domain.Warning) {
	if len(warnings) == 0 {
		return
	}
	b.WriteString("\n")
	heading(b, "WARNINGS")
	for _, w := range warnings {
		fmt.Fprintf(b, "- %s\n", w)
	}
}

func title(b *strings.Builder, text, rule string, width int) {
	fmt.Fprintf(b, "%s\n%s\n\n", text, strings.Repeat(rule, width))
}

// heading underlines text with dashes of the same width.
func heading(b *strings.Builder, text string) {
	fmt.Fprintf(b, "%s\n%s\n", text, strings.Repeat("-", len(text)))
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
