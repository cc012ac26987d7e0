package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nurturehq/nurture/pkg/analytics"
)

var tracer = otel.Tracer("github.com/nurturehq/nurture/pkg/storage/postgres")

// Schema is the DDL for the tables Source reads
//
//go:embed schema.sql
var Schema string

const (
	queryAccounts     = `SELECT id, created_at, brain_profile, quiz_completed FROM profiles`
	queryScripts      = `SELECT id, title, category FROM scripts`
	queryVideos       = `SELECT id, title FROM videos`
	queryScriptUses   = `SELECT user_id, script_id, created_at FROM script_usage`
	queryVideoWatches = `SELECT user_id, video_id, created_at FROM video_watches`
	queryPosts        = `SELECT user_id, created_at FROM community_posts`
	queryTrackerDays  = `SELECT completed, completed_at FROM tracker_days`
)

// ReadPool hands out a connection pool for read queries
type ReadPool interface {
	Replica() *sql.DB
}

type singlePool struct{ db *sql.DB }

func (p singlePool) Replica() *sql.DB { return p.db }

// Source reads the raw analytics collections from PostgreSQL. Rows with NULL
// timestamps are returned with the zero time so they only count toward the
// all-time window.
type Source struct {
	pool ReadPool
}

var _ analytics.Source = (*Source)(nil)

// NewSource creates a source reading from pool's replicas
func NewSource(pool ReadPool) *Source {
	return &Source{pool: pool}
}

// NewSourceFromDB creates a source reading from a single pool
func NewSourceFromDB(db *sql.DB) *Source {
	return &Source{pool: singlePool{db: db}}
}

// Migrate creates the read-model tables if they do not exist
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(Schema, ";") {
		if strings.TrimSpace(stripComments(stmt)) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

func stripComments(stmt string) string {
	var b strings.Builder
	for _, line := range strings.Split(stmt, "\n") {
		if !strings.HasPrefix(strings.TrimSpace(line), "--") {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// queryAll runs query and scans every row with scan. The result is never nil.
func queryAll[T any](ctx context.Context, db *sql.DB, name, query string, scan func(*sql.Rows) (T, error)) ([]T, error) {
	ctx, span := tracer.Start(ctx, "Source."+name,
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", "SELECT"),
			attribute.String("analytics.collection", name),
		),
	)
	defer span.End()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("failed to query %s: %w", name, err)
	}
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "scan failed")
			return nil, fmt.Errorf("failed to scan %s: %w", name, err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "row iteration failed")
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	span.SetAttributes(attribute.Int("db.rows", len(out)))
	return out, nil
}

// Accounts returns every profile
func (s *Source) Accounts(ctx context.Context) ([]analytics.Account, error) {
	return queryAll(ctx, s.pool.Replica(), "accounts", queryAccounts, func(rows *sql.Rows) (analytics.Account, error) {
		var (
			a       analytics.Account
			created sql.NullTime
			profile sql.NullString
			quiz    sql.NullBool
		)
		if err := rows.Scan(&a.ID, &created, &profile, &quiz); err != nil {
			return a, err
		}
		a.CreatedAt = created.Time
		a.BrainProfile = profile.String
		a.QuizCompleted = quiz.Bool
		return a, nil
	})
}

// Scripts returns the script catalog
func (s *Source) Scripts(ctx context.Context) ([]analytics.ContentItem, error) {
	return queryAll(ctx, s.pool.Replica(), "scripts", queryScripts, func(rows *sql.Rows) (analytics.ContentItem, error) {
		var (
			c        analytics.ContentItem
			category sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Title, &category); err != nil {
			return c, err
		}
		c.Category = category.String
		return c, nil
	})
}

// Videos returns the video catalog
func (s *Source) Videos(ctx context.Context) ([]analytics.MediaItem, error) {
	return queryAll(ctx, s.pool.Replica(), "videos", queryVideos, func(rows *sql.Rows) (analytics.MediaItem, error) {
		var m analytics.MediaItem
		err := rows.Scan(&m.ID, &m.Title)
		return m, err
	})
}

// ScriptUses returns every script usage event
func (s *Source) ScriptUses(ctx context.Context) ([]analytics.UsageEvent, error) {
	return queryAll(ctx, s.pool.Replica(), "script_uses", queryScriptUses, scanContentEvent)
}

// VideoWatches returns every video watch event
func (s *Source) VideoWatches(ctx context.Context) ([]analytics.UsageEvent, error) {
	return queryAll(ctx, s.pool.Replica(), "video_watches", queryVideoWatches, scanContentEvent)
}

// Posts returns every community post
func (s *Source) Posts(ctx context.Context) ([]analytics.UsageEvent, error) {
	return queryAll(ctx, s.pool.Replica(), "community_posts", queryPosts, func(rows *sql.Rows) (analytics.UsageEvent, error) {
		var (
			e       analytics.UsageEvent
			user    sql.NullString
			created sql.NullTime
		)
		if err := rows.Scan(&user, &created); err != nil {
			return e, err
		}
		e.UserID = user.String
		e.CreatedAt = created.Time
		return e, nil
	})
}

// TrackerDays returns every habit tracker day
func (s *Source) TrackerDays(ctx context.Context) ([]analytics.TrackerDay, error) {
	return queryAll(ctx, s.pool.Replica(), "tracker_days", queryTrackerDays, func(rows *sql.Rows) (analytics.TrackerDay, error) {
		var (
			d         analytics.TrackerDay
			completed sql.NullBool
			at        sql.NullTime
		)
		if err := rows.Scan(&completed, &at); err != nil {
			return d, err
		}
		d.Completed = completed.Bool
		d.CompletedAt = at.Time
		return d, nil
	})
}

func scanContentEvent(rows *sql.Rows) (analytics.UsageEvent, error) {
	var (
		e       analytics.UsageEvent
		user    sql.NullString
		content sql.NullString
		created sql.NullTime
	)
	if err := rows.Scan(&user, &content, &created); err != nil {
		return e, err
	}
	e.UserID = user.String
	e.ContentID = content.String
	e.CreatedAt = created.Time
	return e, nil
}
