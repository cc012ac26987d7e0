package analytics

import (
	"fmt"
	"time"
)

// SignupWeeks is the length of the weekly signup series
const SignupWeeks = 8

// WeeklySignups is the number of accounts created in one seven-day bucket
type WeeklySignups struct {
	Label string    `json:"week"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Count int       `json:"count"`
}

// BuildWeeklySignups buckets account creation instants into SignupWeeks
// trailing weeks anchored at now. Empty weeks are still emitted.
func BuildWeeklySignups(accounts []Account, now time.Time) []WeeklySignups {
	buckets := WeekBuckets(now, SignupWeeks)
	series := make([]WeeklySignups, len(buckets))
	for i, b := range buckets {
		series[i] = WeeklySignups{
			Label: fmt.Sprintf("Week %d", i+1),
			Start: b.Start,
			End:   b.End,
		}
	}

	for _, a := range accounts {
		for i, b := range buckets {
			if b.Contains(a.CreatedAt) {
				series[i].Count++
				break
			}
		}
	}
	return series
}
