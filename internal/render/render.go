// Package render writes a contribution report in the supported output formats.
package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/naka-gawa/github-contributions/internal/domain"
)

// Format is an output format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatPlain    Format = "plain"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatHTML     Format = "html"
)

// Formats lists every supported format.
var Formats = []Format{FormatMarkdown, FormatPlain, FormatJSON, FormatYAML, FormatHTML}

// ParseFormat accepts a format name and a few common aliases.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "markdown", "md":
		return FormatMarkdown, nil
	case "plain", "text", "txt":
		return FormatPlain, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "html", "chart":
		return FormatHTML, nil
	default:
		return "", domain.NewConfigurationError(fmt.Errorf("unknown output format %q", value))
	}
}

// Extension returns the file extension used for the format.
func (f Format) Extension() string {
	switch f {
	case FormatPlain:
		return "txt"
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	case FormatHTML:
		return "html"
	default:
		return "md"
	}
}

// Options controls rendering.
type Options struct {
	Format    Format
	ReposOnly bool
}

// Render writes the report to w.
func Render(w io.Writer, report *domain.ContributionReport, opts Options) error {
	switch opts.Format {
	case FormatMarkdown, "":
		return writeString(w, markdown(report, opts.ReposOnly))
	case FormatPlain:
		return writeString(w, plain(report, opts.ReposOnly))
	case FormatJSON:
		return writeJSON(w, report, opts.ReposOnly)
	case FormatYAML:
		return writeYAML(w, report, opts.ReposOnly)
	case FormatHTML:
		return writeChart(w, report)
	default:
		return domain.NewConfigurationError(fmt.Errorf("unknown output format %q", opts.Format))
	}
}

// DefaultFilename names the output file after the generation time.
func DefaultFilename(format Format, now time.Time) string {
	return fmt.Sprintf("github_contributions_%s.%s", now.Format("20060102_150405"), format.Extension())
}

func writeString(w io.Writer, s string) error {
	if _, err := io.WriteString(w, s); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func recordLine(rec domain.ContributionRecord) string {
	line := fmt.Sprintf("%s (%s)", rec.Title, rec.DisplayIdentifier())
	if rec.State != "" {
		line += " — " + rec.State
	}
	return line
}

func singular(kind domain.Kind) string {
	switch kind {
	case domain.KindCommit:
		return "Commit"
	case domain.KindPullRequest:
		return "Pull Request"
	case domain.KindIssue:
		return "Issue"
	case domain.KindReview:
		return "Review"
	default:
		return string(kind)
	}
}
