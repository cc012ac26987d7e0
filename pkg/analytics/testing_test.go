package analytics

import (
	"context"
	"fmt"
	"sync"
	"time"
)

var testNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

func ago(d time.Duration) time.Time {
	return testNow.Add(-d)
}

func use(user, content string, at time.Time) UsageEvent {
	return UsageEvent{UserID: user, ContentID: content, CreatedAt: at}
}

func accounts(n int, prefix string, createdAt time.Time) []Account {
	out := make([]Account, n)
	for i := range out {
		out[i] = Account{ID: fmt.Sprintf("%s-%d", prefix, i), CreatedAt: createdAt}
	}
	return out
}

// fakeSource serves fixed collections and can fail or block per collection
type fakeSource struct {
	raw   RawCollections
	mu    sync.Mutex
	errs  map[Collection]error
	block map[Collection]bool
	calls map[Collection]int
}

func newFakeSource(raw RawCollections) *fakeSource {
	return &fakeSource{
		raw:   raw,
		errs:  make(map[Collection]error),
		block: make(map[Collection]bool),
		calls: make(map[Collection]int),
	}
}

func (f *fakeSource) setErr(c Collection, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[c] = err
}

func (f *fakeSource) enter(ctx context.Context, c Collection) error {
	f.mu.Lock()
	f.calls[c]++
	err, blocked := f.errs[c], f.block[c]
	f.mu.Unlock()

	if blocked {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (f *fakeSource) Accounts(ctx context.Context) ([]Account, error) {
	if err := f.enter(ctx, CollectionAccounts); err != nil {
		return nil, err
	}
	return f.raw.Accounts, nil
}

func (f *fakeSource) Scripts(ctx context.Context) ([]ContentItem, error) {
	if err := f.enter(ctx, CollectionScripts); err != nil {
		return nil, err
	}
	return f.raw.Scripts, nil
}

func (f *fakeSource) Videos(ctx context.Context) ([]MediaItem, error) {
	if err := f.enter(ctx, CollectionVideos); err != nil {
		return nil, err
	}
	return f.raw.Videos, nil
}

func (f *fakeSource) ScriptUses(ctx context.Context) ([]UsageEvent, error) {
	if err := f.enter(ctx, CollectionScriptUses); err != nil {
		return nil, err
	}
	return f.raw.ScriptUses, nil
}

func (f *fakeSource) VideoWatches(ctx context.Context) ([]UsageEvent, error) {
	if err := f.enter(ctx, CollectionVideoWatches); err != nil {
		return nil, err
	}
	return f.raw.VideoWatches, nil
}

func (f *fakeSource) Posts(ctx context.Context) ([]UsageEvent, error) {
	if err := f.enter(ctx, CollectionPosts); err != nil {
		return nil, err
	}
	return f.raw.Posts, nil
}

func (f *fakeSource) TrackerDays(ctx context.Context) ([]TrackerDay, error) {
	if err := f.enter(ctx, CollectionTrackerDays); err != nil {
		return nil, err
	}
	return f.raw.TrackerDays, nil
}

func sampleRaw() RawCollections {
	return RawCollections{
		Accounts: []Account{
			{ID: "u1", CreatedAt: ago(60 * day), BrainProfile: "planner", QuizCompleted: true},
			{ID: "u2", CreatedAt: ago(20 * day), BrainProfile: "Explorer", QuizCompleted: true},
			{ID: "u3", CreatedAt: ago(2 * day), BrainProfile: "planner"},
			{ID: "u4", CreatedAt: time.Time{}},
		},
		Scripts: []ContentItem{
			{ID: "s1", Title: "Bedtime Script", Category: "sleep"},
			{ID: "s2", Title: "Tantrum, Calmly", Category: "behavior"},
		},
		Videos: []MediaItem{{ID: "v1", Title: "Morning Routine"}},
		ScriptUses: []UsageEvent{
			use("u1", "s1", ago(1*time.Hour)),
			use("u1", "s1", ago(3*day)),
			use("u2", "s2", ago(10*day)),
			use("u3", "s2", ago(40*day)),
		},
		VideoWatches: []UsageEvent{
			use("u2", "v1", ago(2*day)),
			use("u2", "v1", ago(45*day)),
		},
		Posts: []UsageEvent{
			use("u1", "", ago(5*day)),
		},
		TrackerDays: []TrackerDay{
			{Completed: true, CompletedAt: ago(1 * day)},
			{Completed: false, CompletedAt: ago(2 * day)},
			{Completed: true, CompletedAt: ago(50 * day)},
		},
	}
}
