package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/nurturehq/nurture/pkg/analytics"
	"github.com/nurturehq/nurture/pkg/storage/postgres"
)

func newWindowsCommand() *Command {
	return &Command{
		Name:        "windows",
		Description: "List the supported time windows",
		Run: func(env *Env, args []string) error {
			fs := newFlagSet(env, "windows")
			server := fs.String("server", env.Server, "API base URL")
			if err := fs.Parse(args); err != nil {
				return err
			}

			windows, err := NewClient(*server).Windows(context.Background())
			if err != nil {
				return err
			}
			for _, w := range windows {
				fmt.Fprintln(env.Stdout, w)
			}
			return nil
		},
	}
}

func newSnapshotCommand() *Command {
	return &Command{
		Name:        "snapshot",
		Description: "Show the analytics snapshot for a window",
		Run: func(env *Env, args []string) error {
			fs := newFlagSet(env, "snapshot")
			server := fs.String("server", env.Server, "API base URL")
			window := fs.String("window", string(analytics.Window30d), "Time window (7d, 30d, 90d, all)")
			refresh := fs.Bool("refresh", false, "Recompute instead of using the cached snapshot")
			asJSON := fs.Bool("json", false, "Print the raw snapshot JSON")
			if err := fs.Parse(args); err != nil {
				return err
			}

			w, err := analytics.ParseWindow(*window)
			if err != nil {
				return err
			}

			snap, err := NewClient(*server).Snapshot(context.Background(), w, *refresh)
			if err != nil {
				return err
			}
			if *asJSON {
				return printJSON(env.Stdout, snap)
			}
			return printSummary(env.Stdout, snap)
		},
	}
}

func newRefreshCommand() *Command {
	return &Command{
		Name:        "refresh",
		Description: "Force a recomputation of a window",
		Run: func(env *Env, args []string) error {
			fs := newFlagSet(env, "refresh")
			server := fs.String("server", env.Server, "API base URL")
			window := fs.String("window", string(analytics.Window30d), "Time window (7d, 30d, 90d, all)")
			if err := fs.Parse(args); err != nil {
				return err
			}

			w, err := analytics.ParseWindow(*window)
			if err != nil {
				return err
			}

			snap, err := NewClient(*server).Refresh(context.Background(), w)
			if err != nil {
				return err
			}
			fmt.Fprintf(env.Stdout, "Refreshed %s (sequence %d, generated %s)\n",
				snap.Window, snap.Sequence, snap.GeneratedAt.Format(time.RFC3339))
			return nil
		},
	}
}

func newExportCommand() *Command {
	return &Command{
		Name:        "export",
		Description: "Download the CSV export for a window",
		Run: func(env *Env, args []string) error {
			fs := newFlagSet(env, "export")
			server := fs.String("server", env.Server, "API base URL")
			window := fs.String("window", string(analytics.Window30d), "Time window (7d, 30d, 90d, all)")
			refresh := fs.Bool("refresh", false, "Recompute before exporting")
			dir := fs.String("dir", ".", "Directory to write the CSV into")
			if err := fs.Parse(args); err != nil {
				return err
			}

			w, err := analytics.ParseWindow(*window)
			if err != nil {
				return err
			}

			filename, body, err := NewClient(*server).Export(context.Background(), w, *refresh)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(*dir, 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
			path := filepath.Join(*dir, filepath.Base(filename))
			if err := os.WriteFile(path, body, 0644); err != nil {
				return fmt.Errorf("failed to write export: %w", err)
			}

			fmt.Fprintf(env.Stdout, "Saved %s (%d bytes)\n", path, len(body))
			return nil
		},
	}
}

func newSchemaCommand() *Command {
	return &Command{
		Name:        "schema",
		Description: "Print the PostgreSQL schema the analytics reader expects",
		Run: func(env *Env, args []string) error {
			fs := newFlagSet(env, "schema")
			if err := fs.Parse(args); err != nil {
				return err
			}
			_, err := io.WriteString(env.Stdout, postgres.Schema)
			return err
		},
	}
}

func newMigrateCommand() *Command {
	return &Command{
		Name:        "migrate",
		Description: "Create the analytics read-model tables if they are missing",
		Run: func(env *Env, args []string) error {
			fs := newFlagSet(env, "migrate")
			dsn := fs.String("database-url", env.PostgresURL, "Database connection string")
			driver := fs.String("driver", "postgres", "database/sql driver name")
			timeout := fs.Duration("timeout", time.Minute, "Migration timeout")
			if err := fs.Parse(args); err != nil {
				return err
			}
			if *dsn == "" {
				return fmt.Errorf("database URL is required (-database-url or NURTURE_POSTGRES_URL)")
			}

			db, err := sql.Open(*driver, *dsn)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(context.Background(), *timeout)
			defer cancel()
			if err := postgres.Migrate(ctx, db); err != nil {
				return err
			}
			fmt.Fprintln(env.Stdout, "Schema is up to date")
			return nil
		},
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSummary(out io.Writer, snap *analytics.Snapshot) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Window\t%s\n", snap.Window)
	fmt.Fprintf(tw, "Generated\t%s\n", snap.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(tw, "Total users\t%d\n", snap.TotalUsers)
	fmt.Fprintf(tw, "New users\t%d\n", snap.NewUsers)
	fmt.Fprintf(tw, "Active users (7d)\t%d\n", snap.ActiveUsers7d)
	fmt.Fprintf(tw, "Script uses\t%d (today %d)\n", snap.ScriptUses, snap.ScriptUsesToday)
	fmt.Fprintf(tw, "Video watches\t%d\n", snap.VideoWatches)
	fmt.Fprintf(tw, "Community posts\t%d\n", snap.CommunityPosts)
	fmt.Fprintf(tw, "Days completed\t%d\n", snap.DaysCompleted)
	fmt.Fprintf(tw, "Quiz completion\t%.1f%%\n", snap.QuizCompletionRate*100)
	fmt.Fprintf(tw, "Retention\t%.1f%% (%d of %d)\n", snap.RetentionRate*100, snap.RetainedUsers, snap.RetentionCohortSize)

	if len(snap.TopScripts) > 0 {
		fmt.Fprintf(tw, "\nTop scripts\tUses\n")
		for i, s := range snap.TopScripts {
			fmt.Fprintf(tw, "%d. %s\t%d\n", i+1, s.Title, s.Uses)
		}
	}
	return tw.Flush()
}
