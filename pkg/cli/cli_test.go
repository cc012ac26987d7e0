package cli

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurturehq/nurture/pkg/analytics"
	"github.com/nurturehq/nurture/pkg/httputil"
)

func testEnv(server string) (*Env, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &Env{Stdout: out, Stderr: &bytes.Buffer{}, Server: server}, out
}

func sampleSnapshot(w analytics.Window) *analytics.Snapshot {
	return &analytics.Snapshot{
		Window:      w,
		GeneratedAt: time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC),
		Sequence:    4,
		Metrics: analytics.Metrics{
			TotalUsers:         10,
			NewUsers:           3,
			ScriptUses:         42,
			QuizCompletionRate: 0.5,
		},
		RetentionRate:       0.25,
		RetentionCohortSize: 8,
		RetainedUsers:       2,
		TopScripts: []analytics.RankedContent{
			{ContentID: "s1", Title: "Bedtime Script", Uses: 30},
			{ContentID: "s9", Title: analytics.UnknownTitle, Uses: 12},
		},
	}
}

// fakeAPI mimics the analytics routes the client calls
func fakeAPI(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var seen []string

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/analytics/windows", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"windows": analytics.Windows()})
	})
	mux.HandleFunc("/api/v1/analytics/snapshot", func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.RawQuery)
		win, err := analytics.ParseWindow(r.URL.Query().Get("window"))
		if err != nil {
			httputil.WriteErrorMessage(w, r, http.StatusBadRequest, err.Error())
			return
		}
		httputil.WriteJSON(w, http.StatusOK, sampleSnapshot(win))
	})
	mux.HandleFunc("/api/v1/analytics/refresh", func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.RawQuery)
		httputil.WriteJSON(w, http.StatusOK, sampleSnapshot(analytics.Window(r.URL.Query().Get("window"))))
	})
	mux.HandleFunc("/api/v1/analytics/export", func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.RawQuery)
		httputil.WriteAttachment(w, "analytics-7d-2026-03-15.csv", analytics.ExportContentType, []byte("Metric,Value\r\n"))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestNewRootCommand(t *testing.T) {
	root := NewRootCommand()

	assert.Equal(t, "nurture", root.Name)
	for _, name := range []string{"windows", "snapshot", "refresh", "export", "schema", "migrate"} {
		assert.Contains(t, root.Subcommands, name)
	}
	assert.Len(t, root.Subcommands, 6)
}

func TestExecute_Usage(t *testing.T) {
	env, out := testEnv("")

	require.NoError(t, NewRootCommand().Execute(env, nil))
	assert.Contains(t, out.String(), "Usage: nurture <command>")
	assert.Contains(t, out.String(), "snapshot")
}

func TestExecute_UnknownCommand(t *testing.T) {
	env, _ := testEnv("")

	err := NewRootCommand().Execute(env, []string{"push"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command: push")
}

func TestWindowsCommand(t *testing.T) {
	srv, _ := fakeAPI(t)
	env, out := testEnv(srv.URL)

	require.NoError(t, NewRootCommand().Execute(env, []string{"windows"}))
	assert.Equal(t, "7d\n30d\n90d\nall\n", out.String())
}

func TestSnapshotCommand_Summary(t *testing.T) {
	srv, seen := fakeAPI(t)
	env, out := testEnv(srv.URL)

	require.NoError(t, NewRootCommand().Execute(env, []string{"snapshot", "-window", "7d", "-refresh"}))

	assert.Equal(t, []string{"GET refresh=true&window=7d"}, *seen)
	text := out.String()
	assert.Contains(t, text, "Total users")
	assert.Contains(t, text, "50.0%")
	assert.Contains(t, text, "25.0% (2 of 8)")
	assert.Contains(t, text, "1. Bedtime Script")
	assert.Contains(t, text, "2. Unknown")
}

func TestSnapshotCommand_JSON(t *testing.T) {
	srv, _ := fakeAPI(t)
	env, out := testEnv(srv.URL)

	require.NoError(t, NewRootCommand().Execute(env, []string{"snapshot", "-window", "all", "-json"}))

	var snap analytics.Snapshot
	require.NoError(t, json.Unmarshal(out.Bytes(), &snap))
	assert.Equal(t, analytics.WindowAll, snap.Window)
	assert.Equal(t, 10, snap.TotalUsers)
}

func TestSnapshotCommand_InvalidWindow(t *testing.T) {
	env, _ := testEnv("http://127.0.0.1:1")

	err := NewRootCommand().Execute(env, []string{"snapshot", "-window", "14d"})
	assert.ErrorIs(t, err, analytics.ErrInvalidWindow)
}

func TestSnapshotCommand_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, r, http.StatusBadGateway, "analytics fetch failed")
	}))
	defer srv.Close()
	env, _ := testEnv(srv.URL)

	err := NewRootCommand().Execute(env, []string{"snapshot"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "analytics fetch failed", apiErr.Message)
}

func TestRefreshCommand(t *testing.T) {
	srv, seen := fakeAPI(t)
	env, out := testEnv(srv.URL)

	require.NoError(t, NewRootCommand().Execute(env, []string{"refresh", "-window", "90d"}))
	assert.Equal(t, []string{"POST window=90d"}, *seen)
	assert.Contains(t, out.String(), "Refreshed 90d (sequence 4")
}

func TestExportCommand(t *testing.T) {
	srv, _ := fakeAPI(t)
	env, out := testEnv(srv.URL)
	dir := filepath.Join(t.TempDir(), "reports")

	require.NoError(t, NewRootCommand().Execute(env, []string{"export", "-window", "7d", "-dir", dir}))

	body, err := os.ReadFile(filepath.Join(dir, "analytics-7d-2026-03-15.csv"))
	require.NoError(t, err)
	assert.Equal(t, "Metric,Value\r\n", string(body))
	assert.Contains(t, out.String(), "Saved")
}

func TestSchemaCommand(t *testing.T) {
	env, out := testEnv("")

	require.NoError(t, NewRootCommand().Execute(env, []string{"schema"}))
	assert.Contains(t, out.String(), "CREATE TABLE")
	assert.Contains(t, out.String(), "script_usage")
}

func TestMigrateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nurture.db")
	env, out := testEnv("")

	args := []string{"migrate", "-driver", "sqlite3", "-database-url", path}
	require.NoError(t, NewRootCommand().Execute(env, args))
	require.NoError(t, NewRootCommand().Execute(env, args))
	assert.Contains(t, out.String(), "Schema is up to date")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()
	for _, table := range []string{"profiles", "script_usage", "tracker_days"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, table)
	}
}

func TestMigrateCommand_RequiresURL(t *testing.T) {
	env, _ := testEnv("")

	err := NewRootCommand().Execute(env, []string{"migrate"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database URL is required")
}

func TestClient_TrimsTrailingSlash(t *testing.T) {
	c := NewClient("http://localhost:8080/")
	assert.Equal(t, "http://localhost:8080", c.BaseURL)
}
