package render

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/naka-gawa/github-contributions/internal/domain"
	"gopkg.in/yaml.v3"
)

// reposOnlyDocument is the machine-readable repos-only output.
type reposOnlyDocument struct {
	Username     string              `json:"username" yaml:"username"`
	Range        domain.DateRange    `json:"range" yaml:"range"`
	Total        int                 `json:"total_repositories" yaml:"total_repositories"`
	Repositories []domain.Repository `json:"repositories" yaml:"repositories"`
	Warnings     []domain.Warning    `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

func document(report *domain.ContributionReport, reposOnly bool) any {
	if !reposOnly {
		return report
	}
	doc := reposOnlyDocument{
		Username:     report.Username,
		Range:        report.Range,
		Total:        len(report.Repositories),
		Repositories: make([]domain.Repository, 0, len(report.Repositories)),
		Warnings:     report.Warnings,
	}
	for _, set := range report.Repositories {
		doc.Repositories = append(doc.Repositories, set.Repository)
	}
	return doc
}

func writeJSON(w io.Writer, report *domain.ContributionReport, reposOnly bool) error {
	data, err := json.MarshalIndent(document(report, reposOnly), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report to JSON: %w", err)
	}
	return writeString(w, string(data)+"\n")
}

func writeYAML(w io.Writer, report *domain.ContributionReport, reposOnly bool) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(document(report, reposOnly)); err != nil {
		return fmt.Errorf("failed to marshal report to YAML: %w", err)
	}
	return enc.Close()
}
