package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigia/internal/adapters/statefile"
	"vigia/internal/domain"
	"vigia/internal/ports"
)

// memArchive is an in-memory ArchiveWriter for sweep tests
type memArchive struct {
	mu       sync.Mutex
	archived map[string]string
}

var _ ports.ArchiveWriter = (*memArchive)(nil)

func newMemArchive() *memArchive {
	return &memArchive{archived: make(map[string]string)}
}

func (a *memArchive) Archive(ctx context.Context, session domain.Session, reason string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.archived[session.ID] = reason
	return nil
}

func newTestGC(t *testing.T, retention time.Duration) (*GCService, *Tracker, *memArchive) {
	t.Helper()
	store, err := statefile.NewFileStore(t.TempDir())
	require.NoError(t, err)
	archive := newMemArchive()
	return NewGCService(store, store, store, archive, retention),
		NewTracker(store, store, store, TrackerConfig{}),
		archive
}

func TestGCService_AbandonedCollectedImmediately(t *testing.T) {
	gc, tracker, archive := newTestGC(t, time.Hour)
	ctx := context.Background()

	id, err := tracker.Start(ctx, StartParams{Name: "doomed", Role: "worker"})
	require.NoError(t, err)
	require.NoError(t, tracker.Abandon(ctx, id))

	result, err := gc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, result.Archived)
	assert.Equal(t, "abandoned", archive.archived[id])

	_, err = tracker.Get(ctx, id)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestGCService_CompletedWaitsForRetention(t *testing.T) {
	gc, tracker, archive := newTestGC(t, time.Hour)
	ctx := context.Background()

	id, err := tracker.Start(ctx, StartParams{Name: "done", Role: "worker"})
	require.NoError(t, err)
	_, err = tracker.Complete(ctx, id, "result")
	require.NoError(t, err)

	// Freshly completed: retained
	result, err := gc.Sweep(ctx)
	require.NoError(t, err)
	assert.Empty(t, result.Archived)
	assert.Equal(t, 1, result.Retained)

	// Past the retention window: collected
	gc.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	result, err = gc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, result.Archived)
	assert.Equal(t, "retention", archive.archived[id])
}

func TestGCService_ActiveSessionsRetained(t *testing.T) {
	gc, tracker, _ := newTestGC(t, time.Hour)
	ctx := context.Background()

	id, err := tracker.Start(ctx, StartParams{Name: "busy", Role: "worker"})
	require.NoError(t, err)

	result, err := gc.Sweep(ctx)
	require.NoError(t, err)
	assert.Empty(t, result.Archived)

	_, err = tracker.Get(ctx, id)
	assert.NoError(t, err)
}

func TestGCService_SweepsRecoveryArtifacts(t *testing.T) {
	store, err := statefile.NewFileStore(t.TempDir())
	require.NoError(t, err)
	archive := newMemArchive()
	gc := NewGCService(store, store, store, archive, time.Hour)
	tracker := NewTracker(store, store, store, TrackerConfig{})
	ctx := context.Background()

	root, err := tracker.Start(ctx, StartParams{Name: "root", Role: "orchestrator"})
	require.NoError(t, err)
	child, err := tracker.Start(ctx, StartParams{Name: "child", Role: "worker", ParentID: &root})
	require.NoError(t, err)

	require.NoError(t, tracker.Abandon(ctx, root))
	outcome, err := tracker.Complete(ctx, child, "findings")
	require.NoError(t, err)
	require.True(t, outcome.Orphaned)

	_, err = store.ReadRecovery(child)
	require.NoError(t, err)

	require.NoError(t, tracker.Abandon(ctx, child))
	result, err := gc.Sweep(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{root, child}, result.Archived)

	// The result lives in the archive row now; the artifact goes with
	// the session.
	_, err = store.ReadRecovery(child)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestGCService_ParentKeptWhileChildSurvives(t *testing.T) {
	gc, tracker, _ := newTestGC(t, time.Hour)
	ctx := context.Background()

	root, err := tracker.Start(ctx, StartParams{Name: "root", Role: "orchestrator"})
	require.NoError(t, err)
	child, err := tracker.Start(ctx, StartParams{Name: "child", Role: "worker", ParentID: &root})
	require.NoError(t, err)

	// Root abandoned, child orphaned but still in the working set
	require.NoError(t, tracker.Abandon(ctx, root))
	_, err = tracker.Complete(ctx, child, "findings")
	require.NoError(t, err)

	result, err := gc.Sweep(ctx)
	require.NoError(t, err)
	assert.Empty(t, result.Archived, "a pruned parent must never leave a dangling child")

	// Once the child is also terminal, both go together
	require.NoError(t, tracker.Abandon(ctx, child))
	result, err = gc.Sweep(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{root, child}, result.Archived)
	assert.Equal(t, 0, result.Retained)
}
