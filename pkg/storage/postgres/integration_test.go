//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/nurturehq/nurture/pkg/analytics"
	"github.com/nurturehq/nurture/pkg/storage"
)

// setupPostgres starts a PostgreSQL container with the read-model schema applied
func setupPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("nurture_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg := storage.DefaultConfig()
	cfg.PostgresURL = connStr
	cm, err := NewConnectionManager(cfg, quietLogger())
	require.NoError(t, err)
	require.NoError(t, Migrate(ctx, cm.Primary()))

	t.Cleanup(func() {
		cm.Close()
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})
	return cm.Primary()
}

// setupMinIO starts a MinIO container and returns an archive using it
func setupMinIO(t *testing.T) *S3Archive {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "minio/minio:latest",
			ExposedPorts: []string{"9000/tcp"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     "minioadmin",
				"MINIO_ROOT_PASSWORD": "minioadmin",
			},
			Cmd:        []string{"server", "/data"},
			WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start MinIO container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate MinIO container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	cfg := storage.DefaultConfig()
	cfg.S3Endpoint = "http://" + host + ":" + port.Port()
	cfg.S3AccessKey = "minioadmin"
	cfg.S3SecretKey = "minioadmin"
	cfg.S3Bucket = "nurture-exports"
	cfg.S3UsePathStyle = true

	archive, err := NewS3Archive(ctx, cfg)
	require.NoError(t, err, "Failed to create S3 archive")
	return archive
}

func TestSource_Postgres_Integration(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	_, err := db.ExecContext(ctx, `INSERT INTO profiles (id, created_at, brain_profile, quiz_completed) VALUES
		('u1', $1, 'planner', TRUE), ('u2', NULL, NULL, FALSE)`, now.Add(-72*time.Hour))
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO scripts (id, title, category) VALUES ('s1', 'Bedtime Script', 'sleep')`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO script_usage (user_id, script_id, created_at) VALUES ('u1', 's1', $1), ('u1', NULL, $1)`, now.Add(-time.Hour))
	require.NoError(t, err)

	raw, err := analytics.Fetch(ctx, NewSourceFromDB(db), 10*time.Second, nil)
	require.NoError(t, err)
	require.Len(t, raw.Accounts, 2)
	assert.Len(t, raw.ScriptUses, 2)
	assert.NotNil(t, raw.Videos)

	snap, err := analytics.ComputeSnapshot(raw, analytics.WindowAll, now)
	require.NoError(t, err)
	require.Len(t, snap.TopScripts, 1)
	assert.Equal(t, "Bedtime Script", snap.TopScripts[0].Title)
	assert.Equal(t, 1, snap.TopScripts[0].Uses)
}

func TestS3Archive_Put_Integration(t *testing.T) {
	archive := setupMinIO(t)
	ctx := context.Background()

	key := storage.ArchiveKey("exports", "analytics-all-2026-03-15.csv", time.Now())
	require.NoError(t, archive.Put(ctx, key, []byte("Metric,Value\n"), "text/csv"))
	require.NoError(t, archive.Put(ctx, key, []byte("Metric,Value\nTotal Users,1\n"), "text/csv"))
	assert.NoError(t, archive.Check(ctx))
}
