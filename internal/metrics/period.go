package metrics

import (
	"fmt"
	"strings"
	"time"
)

// timeNow is a package-level var to allow test injection.
var timeNow = time.Now

// Period is the look-back window of a metrics query.
type Period string

const (
	PeriodDay     Period = "day"
	PeriodWeek    Period = "week"
	PeriodMonth   Period = "month"
	PeriodQuarter Period = "quarter"
	PeriodYear    Period = "year"
	PeriodAll     Period = "all"
)

var validPeriods = map[Period]bool{
	PeriodDay:     true,
	PeriodWeek:    true,
	PeriodMonth:   true,
	PeriodQuarter: true,
	PeriodYear:    true,
	PeriodAll:     true,
}

// ParsePeriod validates s. An empty string means PeriodMonth.
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	if p == "" {
		return PeriodMonth, nil
	}
	if !validPeriods[p] {
		return "", fmt.Errorf("invalid period %q: must be one of: day, week, month, quarter, year, all", s)
	}
	return p, nil
}

// Start returns the beginning of the window ending at now, or the zero
// time for PeriodAll. Months count as 30 days so that the window never
// depends on month-end normalization.
func (p Period) Start(now time.Time) time.Time {
	switch p {
	case PeriodDay:
		return now.AddDate(0, 0, -1)
	case PeriodWeek:
		return now.AddDate(0, 0, -7)
	case PeriodMonth:
		return now.AddDate(0, 0, -30)
	case PeriodQuarter:
		return now.AddDate(0, 0, -90)
	case PeriodYear:
		return now.AddDate(0, 0, -365)
	}
	return time.Time{}
}

// gitSince formats the window start for git log --since.
func (p Period) gitSince(now time.Time) string {
	start := p.Start(now)
	if start.IsZero() {
		return ""
	}
	return start.Format(time.RFC3339)
}
