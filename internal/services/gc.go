package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"vigia/internal/domain"
	"vigia/internal/ports"
	"vigia/logging"
)

// DefaultRetention is how long completed sessions stay in the working
// set before they are eligible for collection. Abandoned sessions are
// eligible immediately.
const DefaultRetention = 24 * time.Hour

// GCService prunes terminal sessions out of the working set into the
// archive database, keeping the transactional file small.
type GCService struct {
	archive   ports.ArchiveWriter
	contexts  ports.ContextStore
	now       func() time.Time
	recovery  ports.RecoveryStore
	retention time.Duration
	store     ports.SessionStore
}

// NewGCService creates a new GCService
func NewGCService(store ports.SessionStore, contexts ports.ContextStore, recovery ports.RecoveryStore, archive ports.ArchiveWriter, retention time.Duration) *GCService {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &GCService{
		archive:   archive,
		contexts:  contexts,
		now:       time.Now,
		recovery:  recovery,
		retention: retention,
		store:     store,
	}
}

// SweepResult reports what a sweep removed
type SweepResult struct {
	Archived []string
	Retained int
}

// Sweep archives and removes every session that is terminal and past
// retention, provided its whole subtree is also removable: a child is
// never left pointing at a pruned parent. Archival happens inside the
// transaction so a failed archive leaves the working set untouched.
func (g *GCService) Sweep(ctx context.Context) (*SweepResult, error) {
	result := &SweepResult{}
	now := g.now().UTC()

	var snapshotRefs []string
	err := g.store.Transaction(ctx, func(set *domain.SessionSet) error {
		snapshotRefs = nil
		removable := make(map[string]bool)
		for id, s := range set.Sessions {
			if g.eligible(s, now) {
				removable[id] = true
			}
		}

		// Keep any candidate that still has a surviving descendant
		for changed := true; changed; {
			changed = false
			for id := range removable {
				for _, child := range set.Children(id) {
					if !removable[child.ID] {
						delete(removable, id)
						changed = true
						break
					}
				}
			}
		}

		for id := range removable {
			s := set.Sessions[id]
			reason := "retention"
			if s.Status == domain.StatusAbandoned {
				reason = "abandoned"
			}
			if err := g.archive.Archive(ctx, *s, reason); err != nil {
				return fmt.Errorf("failed to archive session %s: %w", id, err)
			}
			for _, cp := range s.Checkpoints {
				if cp.ContextRef != "" {
					snapshotRefs = append(snapshotRefs, cp.ContextRef)
				}
			}
			delete(set.Sessions, id)
			result.Archived = append(result.Archived, id)
		}
		result.Retained = len(set.Sessions)
		return nil
	})
	if err != nil {
		return nil, err
	}

	g.cleanupArtifacts(ctx, result.Archived, snapshotRefs)

	logging.Logger.Info("GC sweep finished",
		"archived", len(result.Archived),
		"retained", result.Retained)
	return result, nil
}

// eligible reports whether a session may leave the working set:
// abandoned immediately, completed after the retention window.
func (g *GCService) eligible(s *domain.Session, now time.Time) bool {
	switch s.Status {
	case domain.StatusAbandoned:
		return true
	case domain.StatusCompleted:
		if s.CompletedAt == nil {
			return false
		}
		return now.Sub(*s.CompletedAt) > g.retention
	}
	return false
}

// cleanupArtifacts removes the archived sessions' out-of-line context
// files, checkpoint snapshots, and recovery artifacts in parallel. The
// archive row already carries the result, so nothing is lost. Failures
// are logged, not fatal: the working set is already consistent.
func (g *GCService) cleanupArtifacts(ctx context.Context, ids, snapshotRefs []string) {
	var eg errgroup.Group
	eg.SetLimit(8)
	for _, id := range ids {
		eg.Go(func() error {
			if err := g.contexts.DeleteContext(id); err != nil {
				logging.Logger.Warn("failed to remove context overflow",
					"session", id, "error", err)
			}
			if err := g.recovery.DeleteRecovery(id); err != nil {
				logging.Logger.Warn("failed to remove recovery artifact",
					"session", id, "error", err)
			}
			return nil
		})
	}
	for _, ref := range snapshotRefs {
		eg.Go(func() error {
			if err := g.contexts.DeleteContextRef(ref); err != nil {
				logging.Logger.Warn("failed to remove checkpoint snapshot",
					"ref", ref, "error", err)
			}
			return nil
		})
	}
	eg.Wait()
}
