package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

const dateLayout = "2006-01-02"

// DateRange is an inclusive range of calendar dates in UTC.
type DateRange struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// ParseDate accepts ISO-8601 and common human formats and normalizes the
// result to a calendar date.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, NewConfigurationError(fmt.Errorf("date is required"))
	}
	parsed, err := dateparse.ParseIn(value, time.UTC)
	if err != nil {
		return time.Time{}, NewConfigurationError(fmt.Errorf("invalid date %q: %w", value, err))
	}
	return truncateToDate(parsed), nil
}

// NewDateRange validates and builds a date range. A single-day range is valid.
func NewDateRange(start, end time.Time) (DateRange, error) {
	if start.IsZero() || end.IsZero() {
		return DateRange{}, NewConfigurationError(fmt.Errorf("both start and end dates are required"))
	}
	r := DateRange{Start: truncateToDate(start), End: truncateToDate(end)}
	if r.Start.After(r.End) {
		return DateRange{}, NewConfigurationError(fmt.Errorf("start date %s is after end date %s",
			r.Start.Format(dateLayout), r.End.Format(dateLayout)))
	}
	return r, nil
}

// ParseDateRange parses and validates both ends of a range.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := ParseDate(start)
	if err != nil {
		return DateRange{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return DateRange{}, err
	}
	return NewDateRange(s, e)
}

// Since is the first instant inside the range.
func (r DateRange) Since() time.Time {
	return r.Start
}

// Until is the first instant after the range.
func (r DateRange) Until() time.Time {
	return r.End.AddDate(0, 0, 1)
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(r.Since()) && t.Before(r.Until())
}

// Days returns the number of calendar days covered.
func (r DateRange) Days() int {
	return int(r.Until().Sub(r.Since()).Hours() / 24)
}

// SearchQualifier renders a GitHub search date qualifier, e.g. "created:2024-01-01..2024-01-31".
func (r DateRange) SearchQualifier(field string) string {
	return fmt.Sprintf("%s:%s..%s", field, r.Start.Format(dateLayout), r.End.Format(dateLayout))
}

// Split partitions the range into consecutive windows of at most days calendar days.
func (r DateRange) Split(days int) []DateRange {
	if days <= 0 {
		return []DateRange{r}
	}
	var windows []DateRange
	for start := r.Start; !start.After(r.End); start = start.AddDate(0, 0, days) {
		end := start.AddDate(0, 0, days-1)
		if end.After(r.End) {
			end = r.End
		}
		windows = append(windows, DateRange{Start: start, End: end})
	}
	return windows
}

func (r DateRange) String() string {
	return fmt.Sprintf("%s..%s", r.Start.Format(dateLayout), r.End.Format(dateLayout))
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
