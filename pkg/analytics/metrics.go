package analytics

import (
	"sort"
	"time"
)

// ActiveLookback is the fixed lookback for active users and retention,
// independent of the selected window
const ActiveLookback = 7 * day

// CategoryCount is one slice of the brain-profile distribution
type CategoryCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
	Color string `json:"color"`
}

// Metrics holds the scalar figures of a snapshot
type Metrics struct {
	TotalUsers          int             `json:"total_users"`
	NewUsers            int             `json:"new_users"`
	ActiveUsers7d       int             `json:"active_users_7d"`
	TotalScripts        int             `json:"total_scripts"`
	TotalVideos         int             `json:"total_videos"`
	ScriptUses          int             `json:"script_uses"`
	ScriptUsesToday     int             `json:"script_uses_today"`
	VideoWatches        int             `json:"video_watches"`
	CommunityPosts      int             `json:"community_posts"`
	DaysCompleted       int             `json:"days_completed"`
	AvgUsesPerUser      float64         `json:"avg_uses_per_user"`
	AvgWatchesPerUser   float64         `json:"avg_watches_per_user"`
	QuizCompleted       int             `json:"quiz_completed"`
	QuizCompletionRate  float64         `json:"quiz_completion_rate"`
	ProfileDistribution []CategoryCount `json:"profile_distribution"`
}

// ComputeMetrics derives the scalar figures. Window-scoped figures read from
// in; totals, "today" and the 7-day active count read from raw.
func ComputeMetrics(raw RawCollections, in InWindow, now time.Time, loc *time.Location, palette Palette) Metrics {
	m := Metrics{
		TotalUsers:     len(raw.Accounts),
		NewUsers:       len(in.Accounts),
		TotalScripts:   len(raw.Scripts),
		TotalVideos:    len(raw.Videos),
		ScriptUses:     len(in.ScriptUses),
		VideoWatches:   len(in.VideoWatches),
		CommunityPosts: len(in.Posts),
	}

	activeCutoff := now.Add(-ActiveLookback)
	m.ActiveUsers7d = len(distinctUsers(
		FilterSince(raw.ScriptUses, activeCutoff),
		FilterSince(raw.VideoWatches, activeCutoff),
	))

	today := DayBuckets(now, loc, 1)[0]
	for _, e := range raw.ScriptUses {
		if today.Contains(e.CreatedAt) {
			m.ScriptUsesToday++
		}
	}

	for _, d := range in.TrackerDays {
		if d.Completed {
			m.DaysCompleted++
		}
	}

	m.AvgUsesPerUser = ratio(len(in.ScriptUses), len(distinctUsers(in.ScriptUses)))
	m.AvgWatchesPerUser = ratio(len(in.VideoWatches), len(distinctUsers(in.VideoWatches)))

	for _, a := range raw.Accounts {
		if a.QuizCompleted {
			m.QuizCompleted++
		}
	}
	m.QuizCompletionRate = ratio(m.QuizCompleted, m.TotalUsers)

	m.ProfileDistribution = profileDistribution(raw.Accounts, palette)
	return m
}

// profileDistribution groups accounts by brain profile, largest group first
func profileDistribution(accounts []Account, palette Palette) []CategoryCount {
	counts := make(map[string]int)
	for _, a := range accounts {
		label := a.BrainProfile
		if label == "" {
			label = UnknownProfile
		}
		counts[label]++
	}

	dist := make([]CategoryCount, 0, len(counts))
	for label, count := range counts {
		dist = append(dist, CategoryCount{Label: label, Count: count, Color: palette.Color(label)})
	}
	sort.Slice(dist, func(i, j int) bool {
		if dist[i].Count != dist[j].Count {
			return dist[i].Count > dist[j].Count
		}
		return dist[i].Label < dist[j].Label
	})
	return dist
}

// distinctUsers returns the set of non-empty user ids across the given event lists
func distinctUsers(lists ...[]UsageEvent) map[string]struct{} {
	users := make(map[string]struct{})
	for _, events := range lists {
		for _, e := range events {
			if e.UserID != "" {
				users[e.UserID] = struct{}{}
			}
		}
	}
	return users
}

// ratio divides num by den, returning 0 when den is 0
func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
