package app

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurturehq/nurture/pkg/analytics"
	"github.com/nurturehq/nurture/pkg/observability"
	"github.com/nurturehq/nurture/pkg/storage"
)

var generatedAt = time.Date(2026, time.March, 15, 23, 30, 0, 0, time.UTC)

type fakeRefresher struct {
	mu    sync.Mutex
	errs  map[analytics.Window]error
	calls []analytics.Window
	loc   *time.Location
}

func (f *fakeRefresher) Refresh(ctx context.Context, w analytics.Window) (*analytics.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, w)
	if err := f.errs[w]; err != nil {
		return nil, err
	}
	return &analytics.Snapshot{Window: w, GeneratedAt: generatedAt}, nil
}

func (f *fakeRefresher) Location() *time.Location {
	if f.loc == nil {
		return time.UTC
	}
	return f.loc
}

type failingArchive struct{}

func (failingArchive) Put(context.Context, string, []byte, string) error {
	return errors.New("bucket unavailable")
}
func (failingArchive) Check(context.Context) error { return nil }

func quietLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func TestAggregator_RunArchivesEveryWindow(t *testing.T) {
	dir := t.TempDir()
	archive, err := storage.NewFileSystemArchive(dir)
	require.NoError(t, err)

	refresher := &fakeRefresher{}
	agg := NewAggregator(refresher, archive, "exports", quietLogger())

	results, err := agg.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.ElementsMatch(t, analytics.Windows(), refresher.calls)

	for i, w := range analytics.Windows() {
		assert.Equal(t, w, results[i].Window)
		assert.NoError(t, results[i].Err)
		assert.Equal(t, "exports/2026/03/15/analytics-"+string(w)+"-2026-03-15.csv", results[i].Key)

		body, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(results[i].Key)))
		require.NoError(t, err)
		assert.NotEmpty(t, body)
	}
}

func TestAggregator_FilenameUsesServiceLocation(t *testing.T) {
	dir := t.TempDir()
	archive, err := storage.NewFileSystemArchive(dir)
	require.NoError(t, err)

	// 23:30 UTC is already the next day at UTC+2
	refresher := &fakeRefresher{loc: time.FixedZone("EET", 2*60*60)}
	agg := NewAggregator(refresher, archive, "exports", quietLogger())

	results, err := agg.Run(context.Background(), analytics.Window7d)
	require.NoError(t, err)
	assert.Equal(t, "exports/2026/03/16/analytics-7d-2026-03-16.csv", results[0].Key)
}

func TestAggregator_StaleIsNotAnError(t *testing.T) {
	refresher := &fakeRefresher{errs: map[analytics.Window]error{
		analytics.Window30d: analytics.ErrStaleSnapshot,
	}}
	agg := NewAggregator(refresher, nil, "exports", quietLogger())

	results, err := agg.Run(context.Background(), analytics.Window7d, analytics.Window30d)
	require.NoError(t, err)
	assert.NotNil(t, results[0].Snapshot)
	assert.Nil(t, results[1].Snapshot)
	assert.Empty(t, results[0].Key)
}

func TestAggregator_FailuresAreJoined(t *testing.T) {
	fetchErr := &analytics.FetchError{Collection: analytics.CollectionPosts, Err: errors.New("connection reset")}
	refresher := &fakeRefresher{errs: map[analytics.Window]error{
		analytics.Window90d: fetchErr,
	}}
	agg := NewAggregator(refresher, failingArchive{}, "exports", quietLogger())

	results, err := agg.Run(context.Background(), analytics.Window7d, analytics.Window90d)
	require.Error(t, err)
	assert.ErrorIs(t, err, analytics.ErrFetchFailed)
	assert.Contains(t, err.Error(), "bucket unavailable")

	assert.Error(t, results[0].Err)
	assert.NotEmpty(t, results[0].Key)
	assert.ErrorIs(t, results[1].Err, analytics.ErrFetchFailed)
}

func TestAggregator_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	refresher := &fakeRefresher{}
	agg := NewAggregator(refresher, nil, "exports", quietLogger())

	_, err := agg.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, refresher.calls)
}
