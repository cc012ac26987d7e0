package postgres

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurturehq/nurture/pkg/observability"
)

func quietLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func TestParseReplicaURLs(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty string", input: "", expected: nil},
		{name: "single URL", input: "postgres://localhost:5432/db", expected: []string{"postgres://localhost:5432/db"}},
		{
			name:     "URLs with whitespace",
			input:    " postgres://host1:5432/db , postgres://host2:5432/db ",
			expected: []string{"postgres://host1:5432/db", "postgres://host2:5432/db"},
		},
		{
			name:     "URLs with empty entries",
			input:    "postgres://host1:5432/db,,postgres://host2:5432/db,",
			expected: []string{"postgres://host1:5432/db", "postgres://host2:5432/db"},
		},
		{name: "only commas and whitespace", input: " , , , ", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseReplicaURLs(tt.input))
		})
	}
}

func TestConnectionManager_ReplicaFallsBackToPrimary(t *testing.T) {
	primary, _, err := sqlmock.New()
	require.NoError(t, err)
	defer primary.Close()

	cm := NewConnectionManagerFromDB(primary, quietLogger())
	assert.Same(t, primary, cm.Replica())
	assert.Same(t, primary, cm.Primary())
}

func TestConnectionManager_ReplicaRoundRobin(t *testing.T) {
	primary, _, err := sqlmock.New()
	require.NoError(t, err)
	r1, _, err := sqlmock.New()
	require.NoError(t, err)
	r2, _, err := sqlmock.New()
	require.NoError(t, err)

	cm := NewConnectionManagerFromDB(primary, quietLogger(), r1, r2)
	defer cm.Close()

	seen := map[interface{}]int{}
	for i := 0; i < 10; i++ {
		seen[cm.Replica()]++
	}
	assert.Equal(t, 5, seen[r1])
	assert.Equal(t, 5, seen[r2])
	assert.Zero(t, seen[primary])
}

func TestConnectionManager_HealthCheck(t *testing.T) {
	t.Run("primary down", func(t *testing.T) {
		primary, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer primary.Close()
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		cm := NewConnectionManagerFromDB(primary, quietLogger())
		err = cm.HealthCheck(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "primary unhealthy")
	})

	t.Run("one of two replicas down", func(t *testing.T) {
		primary, pm, _ := sqlmock.New(sqlmock.MonitorPingsOption(true))
		r1, m1, _ := sqlmock.New(sqlmock.MonitorPingsOption(true))
		r2, m2, _ := sqlmock.New(sqlmock.MonitorPingsOption(true))
		pm.ExpectPing()
		m1.ExpectPing()
		m2.ExpectPing().WillReturnError(errors.New("timeout"))

		cm := NewConnectionManagerFromDB(primary, quietLogger(), r1, r2)
		defer cm.Close()
		assert.NoError(t, cm.HealthCheck(context.Background()))
	})

	t.Run("all replicas down", func(t *testing.T) {
		primary, pm, _ := sqlmock.New(sqlmock.MonitorPingsOption(true))
		r1, m1, _ := sqlmock.New(sqlmock.MonitorPingsOption(true))
		pm.ExpectPing()
		m1.ExpectPing().WillReturnError(errors.New("timeout"))

		cm := NewConnectionManagerFromDB(primary, quietLogger(), r1)
		defer cm.Close()
		err := cm.HealthCheck(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "all replicas unhealthy")
	})
}

func TestConnectionManager_RemoveUnhealthyReplicas(t *testing.T) {
	primary, _, _ := sqlmock.New()
	r1, m1, _ := sqlmock.New(sqlmock.MonitorPingsOption(true))
	r2, m2, _ := sqlmock.New(sqlmock.MonitorPingsOption(true))
	m1.ExpectPing().WillReturnError(errors.New("gone"))
	m1.ExpectClose()
	m2.ExpectPing()

	cm := NewConnectionManagerFromDB(primary, quietLogger(), r1, r2)
	defer cm.Close()

	assert.Equal(t, 1, cm.RemoveUnhealthyReplicas(context.Background()))
	assert.Same(t, r2, cm.Replica())
	assert.Len(t, cm.Stats().Replicas, 1)
}

func TestConnectionManager_CloseJoinsErrors(t *testing.T) {
	primary, pm, _ := sqlmock.New()
	r1, m1, _ := sqlmock.New()
	pm.ExpectClose().WillReturnError(errors.New("primary close"))
	m1.ExpectClose().WillReturnError(errors.New("replica close"))

	cm := NewConnectionManagerFromDB(primary, quietLogger(), r1)
	err := cm.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary close")
	assert.Contains(t, err.Error(), "replica-0")
}
