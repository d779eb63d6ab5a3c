package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/naka-gawa/github-contributions/internal/domain"
	"github.com/sirupsen/logrus"
)

// Summarizer attaches an AI narrative to a report.
type Summarizer struct {
	backend        Backend
	maxPromptBytes int
	logger         logrus.FieldLogger
}

func NewSummarizer(backend Backend, maxPromptBytes int, logger logrus.FieldLogger) *Summarizer {
	return &Summarizer{backend: backend, maxPromptBytes: maxPromptBytes, logger: logger}
}

// Enrich sets the report narrative. A failed or empty completion leaves the
// structured data untouched, marks the narrative unavailable and records a
// warning; it never fails the run.
func (s *Summarizer) Enrich(ctx context.Context, report *domain.ContributionReport) {
	prompt := BuildPrompt(report, s.maxPromptBytes)
	s.logger.WithField("prompt_bytes", len(prompt)).Info("Requesting AI summary")

	narrative, err := s.backend.Complete(ctx, prompt)
	if err == nil && strings.TrimSpace(narrative) == "" {
		err = fmt.Errorf("empty response")
	}
	if err != nil {
		s.logger.WithError(err).Warn("AI summary unavailable, falling back to the structured report")
		MarkUnavailable(report, err)
		return
	}

	report.Narrative = strings.TrimSpace(narrative)
	report.NarrativeStatus = domain.NarrativeGenerated
}

// MarkUnavailable records that no narrative could be produced.
func MarkUnavailable(report *domain.ContributionReport, err error) {
	report.NarrativeStatus = domain.NarrativeUnavailable
	report.AddWarning(domain.WarningFrom("ai summary", domain.NewSummarizationError(err)))
}
