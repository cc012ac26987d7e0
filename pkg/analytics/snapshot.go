package analytics

import "time"

// Snapshot is one fully computed, immutable set of analytics values for a
// window and instant. Callers must not modify a published snapshot.
type Snapshot struct {
	Window      Window    `json:"window"`
	GeneratedAt time.Time `json:"generated_at"`
	Sequence    uint64    `json:"sequence"`

	Metrics

	RetentionRate       float64 `json:"retention_rate"`
	RetentionCohortSize int     `json:"retention_cohort_size"`
	RetainedUsers       int     `json:"retained_users"`

	WeeklySignups   []WeeklySignups   `json:"weekly_signups"`
	DailyEngagement []DailyEngagement `json:"daily_engagement"`
	TopScripts      []RankedContent   `json:"top_scripts"`
}

type computeOptions struct {
	location *time.Location
	palette  Palette
	topN     int
}

// Option tunes ComputeSnapshot
type Option func(*computeOptions)

// WithLocation sets the time zone used for calendar-day truncation
func WithLocation(loc *time.Location) Option {
	return func(o *computeOptions) {
		if loc != nil {
			o.location = loc
		}
	}
}

// WithPalette sets the brain-profile color palette
func WithPalette(p Palette) Option {
	return func(o *computeOptions) {
		o.palette = p
	}
}

// WithTopN overrides the ranking length
func WithTopN(n int) Option {
	return func(o *computeOptions) {
		if n > 0 {
			o.topN = n
		}
	}
}

// ComputeSnapshot derives a snapshot from raw for window as of now. It is pure:
// the same inputs always yield an identical snapshot and raw is not modified.
func ComputeSnapshot(raw RawCollections, window Window, now time.Time, opts ...Option) (*Snapshot, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}

	o := computeOptions{
		location: time.UTC,
		palette:  DefaultPalette(),
		topN:     TopScriptsLimit,
	}
	for _, opt := range opts {
		opt(&o)
	}

	// Drop the monotonic reading so identical inputs compare equal.
	now = now.Round(0)
	in := ApplyWindow(raw, window.Cutoff(now))
	retention := ComputeRetention(raw.Accounts, raw.ScriptUses, raw.VideoWatches, now)

	return &Snapshot{
		Window:              window,
		GeneratedAt:         now,
		Metrics:             ComputeMetrics(raw, in, now, o.location, o.palette),
		RetentionRate:       retention.Rate,
		RetentionCohortSize: retention.CohortSize,
		RetainedUsers:       retention.Retained,
		WeeklySignups:       BuildWeeklySignups(raw.Accounts, now),
		DailyEngagement:     BuildDailyEngagement(raw.ScriptUses, raw.VideoWatches, raw.Posts, now, o.location),
		TopScripts:          RankContent(in.ScriptUses, raw.Scripts, o.topN),
	}, nil
}
