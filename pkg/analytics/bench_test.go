package analytics

import (
	"fmt"
	"testing"
	"time"
)

// largeRaw builds a dataset shaped like a busy month: users accounts with
// several script uses and watches each, spread over the last 120 days
func largeRaw(users int) RawCollections {
	raw := RawCollections{
		Accounts: make([]Account, users),
		Scripts:  make([]ContentItem, 200),
		Videos:   make([]MediaItem, 50),
	}
	profiles := []string{"planner", "explorer", "nurturer", "protector", ""}
	for i := range raw.Accounts {
		raw.Accounts[i] = Account{
			ID:            fmt.Sprintf("u%d", i),
			CreatedAt:     ago(time.Duration(i%120) * day),
			BrainProfile:  profiles[i%len(profiles)],
			QuizCompleted: i%3 == 0,
		}
	}
	for i := range raw.Scripts {
		raw.Scripts[i] = ContentItem{ID: fmt.Sprintf("s%d", i), Title: fmt.Sprintf("Script %d", i), Category: "sleep"}
	}
	for i := range raw.Videos {
		raw.Videos[i] = MediaItem{ID: fmt.Sprintf("v%d", i), Title: fmt.Sprintf("Video %d", i)}
	}
	for i := 0; i < users*5; i++ {
		user := fmt.Sprintf("u%d", i%users)
		at := ago(time.Duration(i%(120*24)) * time.Hour)
		raw.ScriptUses = append(raw.ScriptUses, use(user, fmt.Sprintf("s%d", i%250), at))
		if i%2 == 0 {
			raw.VideoWatches = append(raw.VideoWatches, use(user, fmt.Sprintf("v%d", i%50), at))
		}
		if i%10 == 0 {
			raw.Posts = append(raw.Posts, use(user, "", at))
			raw.TrackerDays = append(raw.TrackerDays, TrackerDay{Completed: i%20 == 0, CompletedAt: at})
		}
	}
	return raw
}

func BenchmarkComputeSnapshot(b *testing.B) {
	raw := largeRaw(10000)

	for _, w := range Windows() {
		b.Run(string(w), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := ComputeSnapshot(raw, w, testNow); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkRankContent(b *testing.B) {
	raw := largeRaw(10000)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		RankContent(raw.ScriptUses, raw.Scripts, TopScriptsLimit)
	}
}
