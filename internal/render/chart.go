package render

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/naka-gawa/github-contributions/internal/domain"
)

// writeChart renders a stacked bar chart of contributions per repository.
func writeChart(w io.Writer, report *domain.ContributionReport) error {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:       "GitHub contributions",
			BackgroundColor: "transparent",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Contributions by %s", report.Username),
			Subtitle: report.Range.String(),
		}),
	)

	names := make([]string, 0, len(report.Repositories))
	for _, set := range report.Repositories {
		names = append(names, set.Repository.FullName)
	}
	bar.SetXAxis(names)

	for _, kind := range domain.AllKinds {
		data := make([]opts.BarData, 0, len(report.Repositories))
		for _, set := range report.Repositories {
			data = append(data, opts.BarData{Name: set.Repository.FullName, Value: set.Count(kind)})
		}
		bar.AddSeries(kind.Label(), data)
	}
	bar.SetSeriesOptions(charts.WithBarChartOpts(opts.BarChart{Stack: "contributions"}))

	if err := bar.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}
