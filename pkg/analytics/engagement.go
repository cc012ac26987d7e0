package analytics

import "time"

// EngagementDays is the length of the daily engagement series
const EngagementDays = 30

// DailyEngagement counts each event type on one calendar day
type DailyEngagement struct {
	Label        string    `json:"day"`
	Date         time.Time `json:"date"`
	ScriptUses   int       `json:"script_uses"`
	VideoWatches int       `json:"video_watches"`
	Posts        int       `json:"posts"`
}

// BuildDailyEngagement counts script uses, video watches and posts per calendar
// day in loc over the EngagementDays days ending today. Days without events are
// zero-filled.
func BuildDailyEngagement(uses, watches, posts []UsageEvent, now time.Time, loc *time.Location) []DailyEngagement {
	buckets := DayBuckets(now, loc, EngagementDays)
	series := make([]DailyEngagement, len(buckets))
	index := make(map[int64]int, len(buckets))
	for i, b := range buckets {
		series[i] = DailyEngagement{Label: b.Start.Format("Jan 2"), Date: b.Start}
		index[b.Start.Unix()] = i
	}

	count := func(events []UsageEvent, field func(*DailyEngagement)) {
		for _, e := range events {
			if i, ok := index[StartOfDay(e.CreatedAt, loc).Unix()]; ok {
				field(&series[i])
			}
		}
	}
	count(uses, func(d *DailyEngagement) { d.ScriptUses++ })
	count(watches, func(d *DailyEngagement) { d.VideoWatches++ })
	count(posts, func(d *DailyEngagement) { d.Posts++ })

	return series
}
