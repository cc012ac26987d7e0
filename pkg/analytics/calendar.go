package analytics

import "time"

const (
	day  = 24 * time.Hour
	week = 7 * day
)

// Bucket is a half-open interval [Start, End)
type Bucket struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the bucket
func (b Bucket) Contains(t time.Time) bool {
	return !t.Before(b.Start) && t.Before(b.End)
}

// StartOfDay truncates t to midnight in loc. A nil loc means UTC.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// DayBuckets returns n consecutive calendar days in loc ending with the day
// that contains now, oldest first.
func DayBuckets(now time.Time, loc *time.Location, n int) []Bucket {
	today := StartOfDay(now, loc)
	buckets := make([]Bucket, 0, n)
	for i := n - 1; i >= 0; i-- {
		start := today.AddDate(0, 0, -i)
		buckets = append(buckets, Bucket{Start: start, End: start.AddDate(0, 0, 1)})
	}
	return buckets
}

// WeekBuckets returns n trailing seven-day intervals anchored at now, oldest first.
// Bucket i (counting back from now) spans [now-(i+1)w, now-iw).
func WeekBuckets(now time.Time, n int) []Bucket {
	buckets := make([]Bucket, 0, n)
	for i := n - 1; i >= 0; i-- {
		buckets = append(buckets, Bucket{
			Start: now.Add(-time.Duration(i+1) * week),
			End:   now.Add(-time.Duration(i) * week),
		})
	}
	return buckets
}
