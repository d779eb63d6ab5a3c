package render

import (
	"fmt"

	"github.com/montanaflynn/stats"
	"github.com/naka-gawa/github-contributions/internal/domain"
)

// Activity summarizes how contributions spread across repositories.
type Activity struct {
	Mean   float64
	Median float64
	Max    float64
}

// activity returns false when there is nothing to summarize.
func activity(report *domain.ContributionReport) (Activity, bool) {
	if len(report.Repositories) == 0 {
		return Activity{}, false
	}
	data := make(stats.Float64Data, 0, len(report.Repositories))
	for _, set := range report.Repositories {
		data = append(data, float64(set.Total()))
	}

	mean, err := stats.Mean(data)
	if err != nil {
		return Activity{}, false
	}
	median, err := stats.Median(data)
	if err != nil {
		return Activity{}, false
	}
	maximum, err := stats.Max(data)
	if err != nil {
		return Activity{}, false
	}
	return Activity{Mean: mean, Median: median, Max: maximum}, true
}

func (a Activity) String() string {
	return fmt.Sprintf("mean %.2f, median %.2f, max %.0f", a.Mean, a.Median, a.Max)
}
