package analytics

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// ExportContentType is the MIME type of WriteCSV output
const ExportContentType = "text/csv; charset=utf-8"

// ExportFilename returns the download name for an export of window taken at now
func ExportFilename(window Window, now time.Time) string {
	return fmt.Sprintf("analytics-%s-%s.csv", window, now.Format("2006-01-02"))
}

// ExportRows flattens a snapshot into Metric/Value rows, a blank separator row
// and the top scripts table
func ExportRows(snap *Snapshot) [][]string {
	rows := [][]string{
		{"Metric", "Value"},
		{"Total Users", strconv.Itoa(snap.TotalUsers)},
		{"New Users", strconv.Itoa(snap.NewUsers)},
		{"Active Users (7d)", strconv.Itoa(snap.ActiveUsers7d)},
		{"Retention Rate", percent(snap.RetentionRate)},
		{"Quiz Completion Rate", percent(snap.QuizCompletionRate)},
		{"Script Uses", strconv.Itoa(snap.ScriptUses)},
		{"Script Uses Today", strconv.Itoa(snap.ScriptUsesToday)},
		{"Avg Uses Per User", decimal(snap.AvgUsesPerUser)},
		{"Video Watches", strconv.Itoa(snap.VideoWatches)},
		{"Avg Watches Per User", decimal(snap.AvgWatchesPerUser)},
		{"Community Posts", strconv.Itoa(snap.CommunityPosts)},
		{"Days Completed", strconv.Itoa(snap.DaysCompleted)},
		{"Total Scripts", strconv.Itoa(snap.TotalScripts)},
		{"Total Videos", strconv.Itoa(snap.TotalVideos)},
		{},
		{"Top Scripts", "Uses"},
	}
	for _, r := range snap.TopScripts {
		rows = append(rows, []string{r.Title, strconv.Itoa(r.Uses)})
	}
	return rows
}

// WriteCSV writes the snapshot as a flat CSV table
func WriteCSV(w io.Writer, snap *Snapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(ExportRows(snap)); err != nil {
		return fmt.Errorf("failed to write csv export: %w", err)
	}
	return nil
}

func percent(rate float64) string {
	return strconv.FormatFloat(rate*100, 'f', 1, 64) + "%"
}

func decimal(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
