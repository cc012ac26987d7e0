package analytics

import "time"

// Retention describes how many week-old accounts came back in the last week
type Retention struct {
	CohortSize int     `json:"cohort_size"`
	Retained   int     `json:"retained"`
	Rate       float64 `json:"rate"`
}

// ComputeRetention measures the share of accounts created more than
// ActiveLookback ago that used a script or watched a video within the last
// ActiveLookback. It ignores the selected window.
func ComputeRetention(accounts []Account, uses, watches []UsageEvent, now time.Time) Retention {
	cutoff := now.Add(-ActiveLookback)
	active := distinctUsers(FilterSince(uses, cutoff), FilterSince(watches, cutoff))

	var r Retention
	for _, a := range accounts {
		if !a.CreatedAt.Before(cutoff) {
			continue
		}
		r.CohortSize++
		if _, ok := active[a.ID]; ok {
			r.Retained++
		}
	}
	r.Rate = ratio(r.Retained, r.CohortSize)
	return r
}
