package analytics

import "time"

// FilterSince returns the records whose timestamp is at or after cutoff.
// The input slice is never modified.
func FilterSince[T Timestamped](items []T, cutoff time.Time) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if !item.Timestamp().Before(cutoff) {
			out = append(out, item)
		}
	}
	return out
}

// InWindow holds the window-filtered subsets of the time-stamped collections
type InWindow struct {
	Cutoff       time.Time
	Accounts     []Account
	ScriptUses   []UsageEvent
	VideoWatches []UsageEvent
	Posts        []UsageEvent
	TrackerDays  []TrackerDay
}

// ApplyWindow filters every time-stamped collection in raw against cutoff
func ApplyWindow(raw RawCollections, cutoff time.Time) InWindow {
	return InWindow{
		Cutoff:       cutoff,
		Accounts:     FilterSince(raw.Accounts, cutoff),
		ScriptUses:   FilterSince(raw.ScriptUses, cutoff),
		VideoWatches: FilterSince(raw.VideoWatches, cutoff),
		Posts:        FilterSince(raw.Posts, cutoff),
		TrackerDays:  FilterSince(raw.TrackerDays, cutoff),
	}
}
