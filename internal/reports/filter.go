package reports

import (
	"fmt"
	"strings"
	"time"
)

type DateRange string

const (
	RangeAll     DateRange = ""
	RangeToday   DateRange = "today"
	RangeWeek    DateRange = "week"
	RangeMonth   DateRange = "month"
	RangeQuarter DateRange = "quarter"
)

func ParseDateRange(s string) (DateRange, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return RangeAll, nil
	case "today":
		return RangeToday, nil
	case "week", "7d":
		return RangeWeek, nil
	case "month":
		return RangeMonth, nil
	case "quarter", "3months":
		return RangeQuarter, nil
	default:
		return "", fmt.Errorf("%w: unknown date range %q", ErrInvalidInput, s)
	}
}

// Since returns the inclusive lower bound on CreatedAt for the range.
func (r DateRange) Since(now time.Time) (time.Time, bool) {
	y, m, d := now.Date()
	loc := now.Location()
	switch r {
	case RangeToday:
		return time.Date(y, m, d, 0, 0, 0, 0, loc), true
	case RangeWeek:
		return now.AddDate(0, 0, -7), true
	case RangeMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc), true
	case RangeQuarter:
		return time.Date(y, m-2, 1, 0, 0, 0, 0, loc), true
	default:
		return time.Time{}, false
	}
}

// Filter narrows List. Zero fields do not filter.
type Filter struct {
	Query  string
	Status Status
	Threat ThreatLevel
	Range  DateRange
}

func (f Filter) Match(r Report, now time.Time) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		fields := []string{r.ID, r.LocationDescription, r.ReporterName, r.Notes}
		found := false
		for _, v := range fields {
			if strings.Contains(strings.ToLower(v), q) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Status != "" && r.VerificationStatus != f.Status {
		return false
	}
	if f.Threat != "" && r.ThreatAssessment != f.Threat {
		return false
	}
	if since, ok := f.Range.Since(now); ok && r.CreatedAt.Before(since) {
		return false
	}
	return true
}
