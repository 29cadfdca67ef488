package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	t.Helper()
	// Use in-memory database for testing
	storage, err := NewSQLiteStorage(MemoryPath)
	require.NoError(t, err)
	require.NotNil(t, storage)
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

func testRun(pattern string, started time.Time) *Run {
	return &Run{
		Pattern:       pattern,
		IsRegExp:      true,
		CaseSensitive: true,
		Roots:         []string{"/src/a", "/src/b"},
		MaxResults:    100,
		StartedAt:     started,
		FinishedAt:    started.Add(1500 * time.Millisecond),
		FilesMatched:  2,
		LineMatches:   5,
		FilesScanned:  40,
		BytesSearched: 123_456,
		Files: []RunFile{
			{Path: "/src/a/main.go", Matches: 3},
			{Path: "/src/b/util.go", Matches: 2},
		},
	}
}

func TestNewSQLiteStorage(t *testing.T) {
	storage := setupTestDB(t)
	assert.NotNil(t, storage.db)
}

func TestNewSQLiteStorage_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "history.db")

	storage, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	require.NoError(t, storage.RecordRun(context.Background(), testRun("x", time.Now())))
	require.NoError(t, storage.Close())

	// reopening keeps the data and does not re-run migrations
	storage, err = NewSQLiteStorage(path)
	require.NoError(t, err)
	defer storage.Close()

	runs, err := storage.ListRuns(context.Background(), ListFilter{})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRecordRun_AssignsID(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	run := testRun("TODO", time.Now())
	require.NoError(t, storage.RecordRun(ctx, run))
	assert.Len(t, run.ID, 36)

	other := testRun("TODO", time.Now())
	require.NoError(t, storage.RecordRun(ctx, other))
	assert.NotEqual(t, run.ID, other.ID)
}

func TestRecordRun_DuplicateID(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	run := testRun("TODO", time.Now())
	run.ID = "fixed"
	require.NoError(t, storage.RecordRun(ctx, run))

	dup := testRun("other", time.Now())
	dup.ID = "fixed"
	assert.Error(t, storage.RecordRun(ctx, dup))

	// the failed insert left no files behind
	got, err := storage.GetRun(ctx, "fixed")
	require.NoError(t, err)
	assert.Len(t, got.Files, 2)
}

func TestGetRun(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	started := time.UnixMilli(time.Now().UnixMilli())
	run := testRun(`func \w+`, started)
	run.Encoding = "windows-1252"
	run.LimitHit = true
	require.NoError(t, storage.RecordRun(ctx, run))

	got, err := storage.GetRun(ctx, run.ID)
	require.NoError(t, err)

	assert.Equal(t, run.Pattern, got.Pattern)
	assert.True(t, got.IsRegExp)
	assert.True(t, got.CaseSensitive)
	assert.False(t, got.WordMatch)
	assert.Equal(t, "windows-1252", got.Encoding)
	assert.Equal(t, []string{"/src/a", "/src/b"}, got.Roots)
	assert.Equal(t, 100, got.MaxResults)
	assert.True(t, got.StartedAt.Equal(started))
	assert.Equal(t, 1500*time.Millisecond, got.Duration())
	assert.Equal(t, 2, got.FilesMatched)
	assert.Equal(t, 5, got.LineMatches)
	assert.Equal(t, int64(40), got.FilesScanned)
	assert.Equal(t, int64(123_456), got.BytesSearched)
	assert.True(t, got.LimitHit)
	assert.False(t, got.Canceled)
	assert.False(t, got.Failed())
	assert.Equal(t, run.Files, got.Files)
}

func TestGetRun_NotFound(t *testing.T) {
	storage := setupTestDB(t)

	_, err := storage.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetRun_ErrorAndNoRoots(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	run := &Run{Pattern: "x", StartedAt: time.Now(), FinishedAt: time.Now(), Error: "worker exited"}
	require.NoError(t, storage.RecordRun(ctx, run))

	got, err := storage.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.True(t, got.Failed())
	assert.Equal(t, "worker exited", got.Error)
	assert.Empty(t, got.Roots)
	assert.Empty(t, got.Files)
}

func TestListRuns(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, p := range []string{"alpha", "beta", "alphabet", "gamma"} {
		require.NoError(t, storage.RecordRun(ctx, testRun(p, base.Add(time.Duration(i)*time.Minute))))
	}

	t.Run("newest first", func(t *testing.T) {
		runs, err := storage.ListRuns(ctx, ListFilter{})
		require.NoError(t, err)
		require.Len(t, runs, 4)
		assert.Equal(t, "gamma", runs[0].Pattern)
		assert.Equal(t, "alpha", runs[3].Pattern)
		assert.Empty(t, runs[0].Files, "files are only loaded by GetRun")
	})

	t.Run("limit", func(t *testing.T) {
		runs, err := storage.ListRuns(ctx, ListFilter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, runs, 2)
	})

	t.Run("pattern substring", func(t *testing.T) {
		runs, err := storage.ListRuns(ctx, ListFilter{Pattern: "alpha"})
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, "alphabet", runs[0].Pattern)
	})

	t.Run("since", func(t *testing.T) {
		runs, err := storage.ListRuns(ctx, ListFilter{Since: base.Add(90 * time.Second)})
		require.NoError(t, err)
		assert.Len(t, runs, 2)
	})
}

func TestDeleteRunsBefore(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	old := testRun("old", time.Now().Add(-48*time.Hour))
	recent := testRun("recent", time.Now())
	require.NoError(t, storage.RecordRun(ctx, old))
	require.NoError(t, storage.RecordRun(ctx, recent))

	n, err := storage.DeleteRunsBefore(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = storage.GetRun(ctx, old.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	stats, err := storage.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 2, stats.FilesRecorded, "files of deleted runs cascade")
}

func TestStats(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	empty, err := storage.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.TotalRuns)
	assert.True(t, empty.LastRunAt.IsZero())
	assert.Equal(t, CurrentSchemaVersion, empty.SchemaVersion)
	assert.Equal(t, BuildMode, empty.BuildMode)

	last := time.UnixMilli(time.Now().UnixMilli())
	failed := testRun("a", last.Add(-time.Minute))
	failed.Error = "boom"
	canceled := testRun("b", last)
	canceled.Canceled = true
	require.NoError(t, storage.RecordRun(ctx, failed))
	require.NoError(t, storage.RecordRun(ctx, canceled))

	stats, err := storage.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalRuns)
	assert.Equal(t, 1, stats.FailedRuns)
	assert.Equal(t, 1, stats.CanceledRuns)
	assert.Equal(t, 4, stats.FilesRecorded)
	assert.True(t, stats.LastRunAt.Equal(last))
	assert.Greater(t, stats.SizeBytes, int64(0))
}

func TestMigrations_Idempotent(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, ApplyMigrations(ctx, storage.db))

	v, err := schemaVersion(ctx, storage.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v.String())
}

func TestRollbackMigration(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, RollbackMigration(ctx, storage.db))
	v, err := schemaVersion(ctx, storage.db)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v.String())

	// run_files is gone, search_runs is not
	_, err = storage.db.ExecContext(ctx, "SELECT 1 FROM run_files")
	assert.Error(t, err)
	_, err = storage.db.ExecContext(ctx, "SELECT 1 FROM search_runs")
	assert.NoError(t, err)

	require.NoError(t, ApplyMigrations(ctx, storage.db))
	v, err = schemaVersion(ctx, storage.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v.String())

	require.NoError(t, RollbackMigration(ctx, storage.db))
	require.NoError(t, RollbackMigration(ctx, storage.db))
	assert.Error(t, RollbackMigration(ctx, storage.db))
}
