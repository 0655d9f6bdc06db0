package statefile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"vigia/internal/domain"
	"vigia/logging"
)

func TestMain(m *testing.M) {
	logging.Initialize(false, "", 1000)
	os.Exit(m.Run())
}

func newTestStore(t *testing.T, opts ...Option) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir(), opts...)
	require.NoError(t, err)
	return store
}

func testSession(id string) *domain.Session {
	now := time.Now().UTC()
	return &domain.Session{
		CreatedAt: now,
		ID:        id,
		Name:      "session " + id,
		Phase:     domain.PhaseContext,
		Role:      "worker",
		Status:    domain.StatusActive,
		UpdatedAt: now,
	}
}

func TestFileStore_LoadEmptyWhenMissing(t *testing.T) {
	store := newTestStore(t)

	set, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, set.Sessions)
}

func TestFileStore_TransactionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Transaction(ctx, func(set *domain.SessionSet) error {
		set.Sessions["s1"] = testSession("s1")
		return nil
	})
	require.NoError(t, err)

	set, err := store.Load(ctx)
	require.NoError(t, err)
	require.Contains(t, set.Sessions, "s1")
	assert.Equal(t, "session s1", set.Sessions["s1"].Name)
}

func TestFileStore_TransactionErrorWritesNothing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Transaction(ctx, func(set *domain.SessionSet) error {
		set.Sessions["keep"] = testSession("keep")
		return nil
	}))

	boom := fmt.Errorf("boom")
	err := store.Transaction(ctx, func(set *domain.SessionSet) error {
		set.Sessions["discard"] = testSession("discard")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	set, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Contains(t, set.Sessions, "keep")
	assert.NotContains(t, set.Sessions, "discard")
}

func TestFileStore_TransactionRefusesInvalidState(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Transaction(ctx, func(set *domain.SessionSet) error {
		s := testSession("bad")
		s.Depth = 2 // root sessions must be depth 0
		set.Sessions["bad"] = s
		return nil
	})
	require.Error(t, err)

	set, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, set.Sessions)
}

func TestFileStore_NoLostUpdates(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	const writers = 20
	var g errgroup.Group
	for i := 0; i < writers; i++ {
		id := fmt.Sprintf("s%02d", i)
		g.Go(func() error {
			store, err := NewFileStore(dir, WithLockTimeout(30*time.Second))
			if err != nil {
				return err
			}
			return store.Transaction(ctx, func(set *domain.SessionSet) error {
				set.Sessions[id] = testSession(id)
				return nil
			})
		})
	}
	require.NoError(t, g.Wait())

	store, err := NewFileStore(dir)
	require.NoError(t, err)
	set, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, set.Sessions, writers, "every concurrent write must survive")
}

func TestFileStore_StrayTempFileIgnored(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Transaction(ctx, func(set *domain.SessionSet) error {
		set.Sessions["s1"] = testSession("s1")
		return nil
	}))

	// Simulate a crash mid-write: garbage temp file next to the canonical one
	stray := filepath.Join(store.dir, ".state-crashed.tmp")
	require.NoError(t, os.WriteFile(stray, []byte("{\"sessions\": {partial"), 0644))

	set, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Contains(t, set.Sessions, "s1")
}

func TestFileStore_StrandedTempFilesSweptOnWrite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Leftovers from crashed writes
	stateStray := filepath.Join(store.dir, ".state-crashed.tmp")
	ctxStray := filepath.Join(store.dir, "contexts", ".ctx-crashed.tmp")
	require.NoError(t, os.WriteFile(stateStray, []byte("partial"), 0644))
	require.NoError(t, os.WriteFile(ctxStray, []byte("partial"), 0644))

	require.NoError(t, store.Transaction(ctx, func(set *domain.SessionSet) error {
		set.Sessions["s1"] = testSession("s1")
		return nil
	}))

	_, err := os.Stat(stateStray)
	assert.True(t, os.IsNotExist(err), "stranded state temp must be swept")
	_, err = os.Stat(ctxStray)
	assert.True(t, os.IsNotExist(err), "stranded context temp must be swept")

	set, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Contains(t, set.Sessions, "s1")
}

func TestFileStore_CorruptPrimaryFallsBackToBackup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Two writes so a backup exists
	require.NoError(t, store.Transaction(ctx, func(set *domain.SessionSet) error {
		set.Sessions["s1"] = testSession("s1")
		return nil
	}))
	require.NoError(t, store.Transaction(ctx, func(set *domain.SessionSet) error {
		set.Sessions["s2"] = testSession("s2")
		return nil
	}))

	// Corrupt the primary
	require.NoError(t, os.WriteFile(store.statePath(), []byte("{not json"), 0644))

	set, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, store.RecoveredFromBackup())
	assert.Contains(t, set.Sessions, "s1", "backup holds the pre-corruption state")

	// The next transaction regenerates a valid primary
	require.NoError(t, store.Transaction(ctx, func(set *domain.SessionSet) error {
		return nil
	}))
	set, err = store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, store.RecoveredFromBackup())
	assert.Contains(t, set.Sessions, "s1")
}

func TestFileStore_StructurallyInvalidPrimaryFallsBack(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Transaction(ctx, func(set *domain.SessionSet) error {
		set.Sessions["s1"] = testSession("s1")
		return nil
	}))
	require.NoError(t, store.Transaction(ctx, func(set *domain.SessionSet) error {
		set.Sessions["s1"].Phase = domain.PhasePlan
		return nil
	}))

	// Valid JSON, invalid structure: dangling parent reference
	parent := "missing"
	bad := domain.NewSessionSet()
	s := testSession("s1")
	s.ParentID = &parent
	s.Depth = 1
	bad.Sessions["s1"] = s
	data, err := json.Marshal(bad)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(store.statePath(), data, 0644))

	set, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, store.RecoveredFromBackup())
	assert.Nil(t, set.Sessions["s1"].ParentID)
}

func TestFileStore_AllCopiesCorruptSurfacesError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Transaction(ctx, func(set *domain.SessionSet) error {
		set.Sessions["s1"] = testSession("s1")
		return nil
	}))
	require.NoError(t, store.Transaction(ctx, func(set *domain.SessionSet) error {
		return nil
	}))

	require.NoError(t, os.WriteFile(store.statePath(), []byte("garbage"), 0644))
	require.NoError(t, os.WriteFile(store.backupPath(1), []byte("garbage"), 0644))

	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, domain.ErrCorruptState)
}

func TestFileStore_BackupChainBounded(t *testing.T) {
	store := newTestStore(t, WithBackupCount(2))
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		id := fmt.Sprintf("s%d", i)
		require.NoError(t, store.Transaction(ctx, func(set *domain.SessionSet) error {
			set.Sessions[id] = testSession(id)
			return nil
		}))
	}

	_, err := os.Stat(store.backupPath(1))
	assert.NoError(t, err)
	_, err = os.Stat(store.backupPath(2))
	assert.NoError(t, err)
	_, err = os.Stat(store.backupPath(3))
	assert.True(t, os.IsNotExist(err), "backup chain must stay bounded")
}

func TestFileStore_ContextRoundTrip(t *testing.T) {
	store := newTestStore(t)

	ref, err := store.WriteContext("s1", "a large context payload")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("contexts", "s1.ctx"), ref)

	payload, err := store.ReadContext(ref)
	require.NoError(t, err)
	assert.Equal(t, "a large context payload", payload)

	require.NoError(t, store.DeleteContext("s1"))
	_, err = store.ReadContext(ref)
	assert.Error(t, err)

	// Deleting again is a no-op
	assert.NoError(t, store.DeleteContext("s1"))
}

func TestFileStore_RecoveryArtifacts(t *testing.T) {
	store := newTestStore(t)

	older := domain.RecoveryArtifact{
		CreatedAt: time.Now().UTC().Add(-time.Hour),
		Name:      "first",
		Phase:     domain.PhaseWork,
		Reason:    "parent completed",
		Role:      "worker",
		SessionID: "c1",
	}
	newer := domain.RecoveryArtifact{
		CreatedAt: time.Now().UTC(),
		Name:      "second",
		Phase:     domain.PhaseVerify,
		Reason:    "parent abandoned",
		Role:      "worker",
		SessionID: "c2",
	}
	require.NoError(t, store.WriteRecovery(older))
	require.NoError(t, store.WriteRecovery(newer))

	got, err := store.ReadRecovery("c1")
	require.NoError(t, err)
	assert.Equal(t, "parent completed", got.Reason)

	_, err = store.ReadRecovery("unknown")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	all, err := store.ListRecovery()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "c2", all[0].SessionID, "newest first")
}
