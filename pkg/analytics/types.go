package analytics

import "time"

// Timestamped is implemented by every record the window filter understands
type Timestamped interface {
	Timestamp() time.Time
}

// Account is a registered parent profile
type Account struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	BrainProfile  string    `json:"brain_profile,omitempty"`
	QuizCompleted bool      `json:"quiz_completed"`
}

func (a Account) Timestamp() time.Time { return a.CreatedAt }

// ContentItem is a script in the content catalog
type ContentItem struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
}

// MediaItem is a video in the media catalog
type MediaItem struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// UsageEvent is a script use, video watch or community post.
// ContentID is empty for events that do not reference catalog content.
type UsageEvent struct {
	UserID    string    `json:"user_id"`
	ContentID string    `json:"content_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (e UsageEvent) Timestamp() time.Time { return e.CreatedAt }

// TrackerDay is one day record from the habit tracker
type TrackerDay struct {
	Completed   bool      `json:"completed"`
	CompletedAt time.Time `json:"completed_at"`
}

func (d TrackerDay) Timestamp() time.Time { return d.CompletedAt }

// RawCollections holds the unfiltered rows a snapshot is computed from
type RawCollections struct {
	Accounts     []Account
	Scripts      []ContentItem
	Videos       []MediaItem
	ScriptUses   []UsageEvent
	VideoWatches []UsageEvent
	Posts        []UsageEvent
	TrackerDays  []TrackerDay
}

// Collection names one of the raw collections
type Collection string

const (
	CollectionAccounts     Collection = "accounts"
	CollectionScripts      Collection = "scripts"
	CollectionVideos       Collection = "videos"
	CollectionScriptUses   Collection = "script_uses"
	CollectionVideoWatches Collection = "video_watches"
	CollectionPosts        Collection = "community_posts"
	CollectionTrackerDays  Collection = "tracker_days"
)
