//go:build integration

package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	tcpg "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testStore *Store

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := tcpg.Run(ctx, "postgres:16-alpine",
		tcpg.WithDatabase("nuka_test"),
		tcpg.WithUsername("test"),
		tcpg.WithPassword("test"),
		tcpg.BasicWaitStrategies(),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "start postgres: %v\n", err)
		os.Exit(1)
	}
	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "pg connection string: %v\n", err)
		os.Exit(1)
	}

	testStore, err = New(dsn, zap.NewNop())
	if err == nil {
		err = testStore.Migrate(ctx, "../../migrations")
	}
	if err != nil {
		container.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "prepare store: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	testStore.Close()
	container.Terminate(ctx)
	os.Exit(code)
}

func TestRecordAndListRuns(t *testing.T) {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	older := Run{
		ID:       uuid.NewString(),
		Command:  "ban",
		Format:   "<user>",
		Sender:   "slack:ann",
		Outcome:  "success",
		Args:     map[string]string{"user": "bob"},
		Started:  base,
		Finished: base.Add(10 * time.Millisecond),
	}
	newer := Run{
		ID:       uuid.NewString(),
		Outcome:  "unknown_command",
		Started:  base.Add(time.Second),
		Finished: base.Add(time.Second),
	}
	require.NoError(t, testStore.RecordRun(ctx, older))
	require.NoError(t, testStore.RecordRun(ctx, newer))
	require.NoError(t, testStore.RecordRun(ctx, newer), "duplicate ids are ignored")

	runs, err := testStore.RecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.ID, runs[0].ID)
	assert.Equal(t, older.ID, runs[1].ID)
	assert.Equal(t, map[string]string{"user": "bob"}, runs[1].Args)
	assert.Equal(t, map[string]string{}, runs[0].Flags)
	assert.Equal(t, 10*time.Millisecond, runs[1].Duration())

	counts, err := testStore.OutcomeCounts(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, counts["success"], int64(1))
	assert.GreaterOrEqual(t, counts["unknown_command"], int64(1))

	infos, err := testStore.RunLister().RecentRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, newer.ID, infos[0].ID)
}

func TestMigrateRunsEachFileOnce(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testStore.Ping(ctx))
	require.NoError(t, testStore.Migrate(ctx, "../../migrations"))

	var n int
	require.NoError(t, testStore.db.QueryRow(ctx,
		`SELECT count(*) FROM schema_migrations WHERE name = '001_command_runs.up.sql'`).Scan(&n))
	assert.Equal(t, 1, n)
}
