package metrics

import (
	"sort"
	"time"

	"github.com/opentask/taskin/internal/gitlog"
)

// Time-of-day buckets.
const (
	Morning   = "morning"   // 06:00-11:59
	Afternoon = "afternoon" // 12:00-17:59
	Evening   = "evening"   // 18:00-23:59
	Night     = "night"     // 00:00-05:59
)

// trendBand is the relative change below which activity counts as stable.
const trendBand = 0.2

func timeOfDay(t time.Time) string {
	switch h := t.Hour(); {
	case h >= 6 && h < 12:
		return Morning
	case h >= 12 && h < 18:
		return Afternoon
	case h >= 18:
		return Evening
	}
	return Night
}

// temporal buckets commits by weekday and time of day, finds the longest
// run of consecutive commit days, and compares the two halves of
// [start, end]. A zero start means the window opens at the oldest commit.
func temporal(commits []gitlog.Commit, start, end time.Time) Temporal {
	out := Temporal{
		ByDayOfWeek: make(map[string]int),
		ByTimeOfDay: map[string]int{Morning: 0, Afternoon: 0, Evening: 0, Night: 0},
		Trend:       TrendStable,
	}
	if len(commits) == 0 {
		return out
	}

	days := make(map[string]time.Time)
	oldest := commits[0].Date
	for _, c := range commits {
		out.ByDayOfWeek[c.Date.Weekday().String()]++
		out.ByTimeOfDay[timeOfDay(c.Date)]++
		y, m, d := c.Date.Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		days[day.Format("2006-01-02")] = day
		if c.Date.Before(oldest) {
			oldest = c.Date
		}
	}
	out.LongestStreak = longestStreak(days)

	if start.IsZero() {
		start = oldest
	}
	out.Trend = trend(commits, start, end)
	return out
}

func longestStreak(days map[string]time.Time) int {
	sorted := make([]time.Time, 0, len(days))
	for _, d := range days {
		sorted = append(sorted, d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	best, run := 0, 0
	for i, d := range sorted {
		if i > 0 && d.Sub(sorted[i-1]) == 24*time.Hour {
			run++
		} else {
			run = 1
		}
		if run > best {
			best = run
		}
	}
	return best
}

func trend(commits []gitlog.Commit, start, end time.Time) Trend {
	if !end.After(start) {
		return TrendStable
	}
	mid := start.Add(end.Sub(start) / 2)
	var older, newer int
	for _, c := range commits {
		switch {
		case c.Date.Before(start) || c.Date.After(end):
		case c.Date.Before(mid):
			older++
		default:
			newer++
		}
	}
	if older == 0 {
		if newer > 0 {
			return TrendIncreasing
		}
		return TrendStable
	}
	change := float64(newer-older) / float64(older)
	switch {
	case change > trendBand:
		return TrendIncreasing
	case change < -trendBand:
		return TrendDecreasing
	}
	return TrendStable
}
