package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigia/internal/domain"
	"vigia/logging"
)

func TestMain(m *testing.M) {
	logging.Initialize(false, "", 1000)
	os.Exit(m.Run())
}

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func archivableSession(id string) domain.Session {
	now := time.Now().UTC()
	completed := now
	return domain.Session{
		Actions: []domain.ActionRecord{
			{Description: "ran migration", Outcome: "ok", Timestamp: now},
		},
		Checkpoints: []domain.Checkpoint{
			{Context: "about to verify", CreatedAt: now, Phase: domain.PhaseWork},
		},
		CompletedAt: &completed,
		Context:     "initial briefing",
		CreatedAt:   now.Add(-time.Hour),
		ID:          id,
		Name:        "archived " + id,
		Phase:       domain.PhaseDone,
		Result:      "all good",
		Role:        "worker",
		Status:      domain.StatusCompleted,
		UpdatedAt:   now,
	}
}

func TestSQLiteRepository_ArchiveAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Archive(ctx, archivableSession("s1"), "retention"))

	got, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "archived s1", got.Name)
	assert.Equal(t, "retention", got.Reason)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	require.Len(t, got.Actions, 1)
	assert.Equal(t, "ran migration", got.Actions[0].Description)
	require.Len(t, got.Checkpoints, 1)
	assert.Equal(t, domain.PhaseWork, got.Checkpoints[0].Phase)
	assert.False(t, got.ArchivedAt.IsZero())
}

func TestSQLiteRepository_GetMissing(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSQLiteRepository_ReArchiveOverwrites(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	session := archivableSession("s1")
	require.NoError(t, repo.Archive(ctx, session, "first"))
	require.NoError(t, repo.Archive(ctx, session, "second"))

	got, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Reason)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSQLiteRepository_ListNewestFirst(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Archive(ctx, archivableSession("older"), "retention"))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, repo.Archive(ctx, archivableSession("newer"), "retention"))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "newer", all[0].ID)
	assert.Equal(t, "older", all[1].ID)
}

func TestSQLiteRepository_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "archive.db")
	ctx := context.Background()

	repo, err := NewSQLiteRepository(dbPath)
	require.NoError(t, err)
	require.NoError(t, repo.Archive(ctx, archivableSession("s1"), "retention"))
	require.NoError(t, repo.Close())

	repo, err = NewSQLiteRepository(dbPath)
	require.NoError(t, err)
	defer repo.Close()

	got, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "archived s1", got.Name)
}
