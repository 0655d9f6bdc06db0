package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"vigia/internal/domain"
	"vigia/internal/ports"
	"vigia/logging"
)

// TrackerConfig carries the operator-tunable limits
type TrackerConfig struct {
	ContextInlineLimit int
	MaxActions         int
	MaxActiveRoots     int
	MaxCheckpoints     int
	StaleThreshold     time.Duration
}

// DefaultContextInlineLimit is the payload size above which context is
// stored out-of-line, keeping the transactional file small and write
// latency flat.
const DefaultContextInlineLimit = 16 * 1024

func (c TrackerConfig) withDefaults() TrackerConfig {
	if c.ContextInlineLimit <= 0 {
		c.ContextInlineLimit = DefaultContextInlineLimit
	}
	if c.MaxActions <= 0 {
		c.MaxActions = domain.DefaultMaxActions
	}
	if c.MaxActiveRoots <= 0 {
		c.MaxActiveRoots = domain.DefaultMaxActiveRoots
	}
	if c.MaxCheckpoints <= 0 {
		c.MaxCheckpoints = domain.DefaultMaxCheckpoints
	}
	if c.StaleThreshold <= 0 {
		c.StaleThreshold = domain.DefaultStaleThreshold
	}
	return c
}

// Tracker implements the session tracking operations on top of the
// transactional store. All mutation goes through store.Transaction so
// concurrent invocations from independent processes serialize on the
// lock instead of losing updates.
type Tracker struct {
	config   TrackerConfig
	contexts ports.ContextStore
	now      func() time.Time
	recovery ports.RecoveryStore
	store    ports.SessionStore
}

// NewTracker creates a new Tracker
func NewTracker(store ports.SessionStore, contexts ports.ContextStore, recovery ports.RecoveryStore, config TrackerConfig) *Tracker {
	return &Tracker{
		config:   config.withDefaults(),
		contexts: contexts,
		now:      time.Now,
		recovery: recovery,
		store:    store,
	}
}

// StartParams contains parameters for starting a session
type StartParams struct {
	Context  string
	Name     string
	ParentID *string
	Role     string
}

// Start creates a new root or child session and returns its id.
// Child creation fails hard with domain.ErrDepthExceeded when the parent
// already sits at the depth limit; no record is created in that case.
func (t *Tracker) Start(ctx context.Context, params StartParams) (string, error) {
	id := uuid.NewString()
	now := t.now().UTC()

	logging.Logger.Info("Starting session",
		"session", id,
		"name", params.Name,
		"role", params.Role)

	var gateErr error
	err := t.store.Transaction(ctx, func(set *domain.SessionSet) error {
		gateErr = nil
		depth := 0
		if params.ParentID != nil {
			parent, err := set.Get(*params.ParentID)
			if err != nil {
				return err
			}
			markIfStale(parent, now, t.config.StaleThreshold)
			switch parent.Status {
			case domain.StatusActive, domain.StatusPaused:
			case domain.StatusStale:
				// Commit the stale flip even though the start is
				// rejected, so the parent stays gated after restarts.
				gateErr = fmt.Errorf("parent %s: %w", parent.ID, domain.ErrStaleSession)
				return nil
			default:
				return fmt.Errorf("cannot start under parent %s (%s): %w", parent.ID, parent.Status, domain.ErrInvalidTransition)
			}
			if parent.Depth+1 > domain.MaxDepth {
				return fmt.Errorf("parent %s is at depth %d: %w", parent.ID, parent.Depth, domain.ErrDepthExceeded)
			}
			depth = parent.Depth + 1
		} else if set.ActiveRootCount() >= t.config.MaxActiveRoots {
			return fmt.Errorf("%d active roots: %w", set.ActiveRootCount(), domain.ErrRootLimit)
		}

		if _, exists := set.Sessions[id]; exists {
			return fmt.Errorf("session %s: %w", id, domain.ErrSessionExists)
		}

		session := &domain.Session{
			CreatedAt: now,
			Depth:     depth,
			ID:        id,
			Name:      params.Name,
			ParentID:  params.ParentID,
			Phase:     domain.PhaseContext,
			Role:      params.Role,
			Status:    domain.StatusActive,
			UpdatedAt: now,
		}
		if err := t.setContext(session, params.Context); err != nil {
			return err
		}

		set.Sessions[id] = session
		return nil
	})
	if err != nil {
		return "", err
	}
	if gateErr != nil {
		return "", gateErr
	}
	return id, nil
}

// UpdateParams contains parameters for a transactional session update
type UpdateParams struct {
	ContextDelta string
	ID           string
	Phase        *domain.Phase
}

// Update applies a phase transition and/or a context delta. Every phase
// transition automatically records a checkpoint of the new phase plus the
// current context, so interrupted work is always recoverable from the
// last boundary.
func (t *Tracker) Update(ctx context.Context, params UpdateParams) error {
	var evicted []string
	err := t.mutate(ctx, params.ID, func(set *domain.SessionSet, s *domain.Session) error {
		now := t.now().UTC()

		if params.ContextDelta != "" {
			current, err := t.resolveContext(s)
			if err != nil {
				return err
			}
			if current != "" {
				current += "\n"
			}
			if err := t.setContext(s, current+params.ContextDelta); err != nil {
				return err
			}
		}

		if params.Phase != nil && *params.Phase != s.Phase {
			if err := s.AdvancePhase(*params.Phase, now); err != nil {
				return err
			}
			cp, err := t.snapshotCheckpoint(s, now)
			if err != nil {
				return err
			}
			evicted = t.addCheckpoint(s, cp)
			logging.Logger.Info("Phase transition checkpointed",
				"session", s.ID,
				"phase", s.Phase)
		}

		s.Touch(now)
		return nil
	})
	if err != nil {
		return err
	}
	t.releaseSnapshots(evicted)
	return nil
}

// Append records one action in the session's bounded log
func (t *Tracker) Append(ctx context.Context, id, description, outcome string) error {
	return t.mutate(ctx, id, func(set *domain.SessionSet, s *domain.Session) error {
		now := t.now().UTC()
		s.AppendAction(domain.ActionRecord{
			Description: description,
			Outcome:     outcome,
			Timestamp:   now,
		}, t.config.MaxActions)
		s.Touch(now)
		return nil
	})
}

// Checkpoint captures the session's current phase and context on demand
func (t *Tracker) Checkpoint(ctx context.Context, id string) error {
	var evicted []string
	err := t.mutate(ctx, id, func(set *domain.SessionSet, s *domain.Session) error {
		now := t.now().UTC()
		cp, err := t.snapshotCheckpoint(s, now)
		if err != nil {
			return err
		}
		evicted = t.addCheckpoint(s, cp)
		s.Touch(now)
		return nil
	})
	if err != nil {
		return err
	}
	t.releaseSnapshots(evicted)
	return nil
}

// Resume returns the most recent checkpoint so the caller can
// re-establish its working state. Resuming a STALE session records the
// "resume" disposition by returning it to ACTIVE. When the session was
// never checkpointed the current phase and context are returned instead.
func (t *Tracker) Resume(ctx context.Context, id string) (*domain.Checkpoint, error) {
	var restored *domain.Checkpoint

	err := t.store.Transaction(ctx, func(set *domain.SessionSet) error {
		s, err := set.Get(id)
		if err != nil {
			return err
		}
		now := t.now().UTC()
		markIfStale(s, now, t.config.StaleThreshold)

		if s.Status == domain.StatusStale {
			if err := s.TransitionStatus(domain.StatusActive, now); err != nil {
				return err
			}
			logging.Logger.Info("Stale session resumed", "session", s.ID)
		} else if s.Status.Terminal() {
			return fmt.Errorf("session %s is %s: %w", s.ID, s.Status, domain.ErrSessionTerminal)
		}

		if cp := s.LatestCheckpoint(); cp != nil {
			copied := *cp
			if copied.ContextRef != "" {
				payload, err := t.contexts.ReadContext(copied.ContextRef)
				if err != nil {
					return err
				}
				copied.Context = payload
				copied.ContextRef = ""
			}
			restored = &copied
		} else {
			current, err := t.resolveContext(s)
			if err != nil {
				return err
			}
			restored = &domain.Checkpoint{
				Context:   current,
				CreatedAt: s.UpdatedAt,
				Phase:     s.Phase,
			}
		}

		s.Touch(now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return restored, nil
}

// Pause suspends an active session without touching its context
func (t *Tracker) Pause(ctx context.Context, id string) error {
	return t.mutate(ctx, id, func(set *domain.SessionSet, s *domain.Session) error {
		return s.TransitionStatus(domain.StatusPaused, t.now().UTC())
	})
}

// Unpause returns a paused session to active
func (t *Tracker) Unpause(ctx context.Context, id string) error {
	return t.mutate(ctx, id, func(set *domain.SessionSet, s *domain.Session) error {
		return s.TransitionStatus(domain.StatusActive, t.now().UTC())
	})
}

// CompleteResult reports how a completion was recorded
type CompleteResult struct {
	Orphaned bool
	Reason   string
}

// Complete terminates a session with its result. When the parent can no
// longer receive the result, the result is persisted to an independent
// recovery artifact and the session is marked ORPHANED instead; it is
// never silently dropped.
func (t *Tracker) Complete(ctx context.Context, id, result string) (*CompleteResult, error) {
	outcome := &CompleteResult{}

	err := t.mutate(ctx, id, func(set *domain.SessionSet, s *domain.Session) error {
		now := t.now().UTC()

		if health := checkParentHealth(set, s, now, t.config.StaleThreshold); !health.Healthy {
			snapshot, err := t.resolveContext(s)
			if err != nil {
				return err
			}
			artifact := domain.RecoveryArtifact{
				Context:   snapshot,
				CreatedAt: now,
				Name:      s.Name,
				Phase:     s.Phase,
				Reason:    health.Reason,
				Result:    result,
				Role:      s.Role,
				SessionID: s.ID,
			}
			if s.ParentID != nil {
				artifact.ParentID = *s.ParentID
			}
			// Persist the artifact first: if it fails the transaction
			// aborts and nothing is lost.
			if err := t.recovery.WriteRecovery(artifact); err != nil {
				return fmt.Errorf("failed to persist recovery artifact: %w", err)
			}

			s.Result = result
			if err := s.TransitionStatus(domain.StatusOrphaned, now); err != nil {
				return err
			}
			outcome.Orphaned = true
			outcome.Reason = health.Reason
			logging.Logger.Warn("Completion orphaned, result preserved",
				"session", s.ID,
				"reason", health.Reason)
			return nil
		}

		s.Result = result
		if err := s.AdvancePhase(domain.PhaseDone, now); err != nil {
			return err
		}
		return s.TransitionStatus(domain.StatusCompleted, now)
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// Abandon terminates a session with no result. Valid from any
// non-terminal status; this is also the terminating disposition for
// STALE and ORPHANED sessions.
func (t *Tracker) Abandon(ctx context.Context, id string) error {
	return t.store.Transaction(ctx, func(set *domain.SessionSet) error {
		s, err := set.Get(id)
		if err != nil {
			return err
		}
		now := t.now().UTC()
		markIfStale(s, now, t.config.StaleThreshold)
		return s.TransitionStatus(domain.StatusAbandoned, now)
	})
}

// Dispose records the explicit decision on a stale session: resume it,
// abandon it, or leave it untouched because a fresh root will be started
// instead. Disposing a session that is not stale fails with
// domain.ErrNotStale.
func (t *Tracker) Dispose(ctx context.Context, id string, disposition domain.Disposition) error {
	if !disposition.Valid() {
		return fmt.Errorf("unknown disposition %q", disposition)
	}

	return t.store.Transaction(ctx, func(set *domain.SessionSet) error {
		s, err := set.Get(id)
		if err != nil {
			return err
		}
		now := t.now().UTC()
		markIfStale(s, now, t.config.StaleThreshold)

		if s.Status != domain.StatusStale {
			return fmt.Errorf("session %s is %s: %w", s.ID, s.Status, domain.ErrNotStale)
		}

		switch disposition {
		case domain.DispositionResume:
			return s.TransitionStatus(domain.StatusActive, now)
		case domain.DispositionAbandon:
			return s.TransitionStatus(domain.StatusAbandoned, now)
		case domain.DispositionNew:
			// The stale session stays untouched; the caller starts a
			// fresh root.
			return nil
		}
		return nil
	})
}

// ListFilter narrows the sessions returned by List
type ListFilter struct {
	Role      string
	RootsOnly bool
	Status    domain.Status
}

// List enumerates sessions outside the transaction fast path. The view
// may trail a concurrent writer; staleness is computed for display
// without mutating the persisted state.
func (t *Tracker) List(ctx context.Context, filter ListFilter) ([]domain.Session, error) {
	set, err := t.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	now := t.now().UTC()
	sessions := make([]domain.Session, 0, len(set.Sessions))
	for _, s := range set.Sessions {
		view := *s
		if (view.Status == domain.StatusActive || view.Status == domain.StatusPaused) &&
			view.StaleAt(now, t.config.StaleThreshold) {
			view.Status = domain.StatusStale
		}

		if filter.Role != "" && view.Role != filter.Role {
			continue
		}
		if filter.RootsOnly && !view.IsRoot() {
			continue
		}
		if filter.Status != "" && view.Status != filter.Status {
			continue
		}
		sessions = append(sessions, view)
	}

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// Get returns a single session by id, read-only
func (t *Tracker) Get(ctx context.Context, id string) (*domain.Session, error) {
	set, err := t.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	s, err := set.Get(id)
	if err != nil {
		return nil, err
	}
	view := *s
	return &view, nil
}

// Context resolves a session's full context payload, following the
// out-of-line reference when present.
func (t *Tracker) Context(ctx context.Context, id string) (string, error) {
	s, err := t.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return t.resolveContext(s)
}

// mutate runs fn against one session inside a transaction, applying
// lazy stale detection first. STALE sessions reject mutation until a
// disposition is recorded; terminal sessions reject it permanently.
func (t *Tracker) mutate(ctx context.Context, id string, fn func(*domain.SessionSet, *domain.Session) error) error {
	var gateErr error

	err := t.store.Transaction(ctx, func(set *domain.SessionSet) error {
		gateErr = nil
		s, err := set.Get(id)
		if err != nil {
			return err
		}
		now := t.now().UTC()
		markIfStale(s, now, t.config.StaleThreshold)

		if s.Status == domain.StatusStale {
			// Commit the stale flip even though the operation is
			// rejected, so the gate survives process restarts.
			gateErr = fmt.Errorf("session %s: %w", s.ID, domain.ErrStaleSession)
			return nil
		}
		if s.Status.Terminal() {
			return fmt.Errorf("session %s is %s: %w", s.ID, s.Status, domain.ErrSessionTerminal)
		}

		return fn(set, s)
	})
	if err != nil {
		return err
	}
	return gateErr
}

// setContext stores the payload inline, or out-of-line once it exceeds
// the inline limit so transaction latency stays flat regardless of
// payload size.
func (t *Tracker) setContext(s *domain.Session, payload string) error {
	if len(payload) <= t.config.ContextInlineLimit {
		s.Context = payload
		if s.ContextRef != "" {
			if err := t.contexts.DeleteContext(s.ID); err != nil {
				logging.Logger.Warn("failed to remove stale context overflow",
					"session", s.ID, "error", err)
			}
			s.ContextRef = ""
		}
		return nil
	}

	ref, err := t.contexts.WriteContext(s.ID, payload)
	if err != nil {
		return fmt.Errorf("failed to store context for %s: %w", s.ID, err)
	}
	s.Context = ""
	s.ContextRef = ref
	return nil
}

// resolveContext returns the full payload wherever it lives
func (t *Tracker) resolveContext(s *domain.Session) (string, error) {
	if s.ContextRef == "" {
		return s.Context, nil
	}
	return t.contexts.ReadContext(s.ContextRef)
}

// snapshotCheckpoint captures the session's phase and context for a
// checkpoint. An overflowed payload is copied to its own out-of-line
// file: the snapshot must not pull the payload back into the state file,
// and must not alias the live context file that the next update
// rewrites.
func (t *Tracker) snapshotCheckpoint(s *domain.Session, now time.Time) (domain.Checkpoint, error) {
	cp := domain.Checkpoint{CreatedAt: now, Phase: s.Phase}
	if s.ContextRef == "" {
		cp.Context = s.Context
		return cp, nil
	}

	payload, err := t.contexts.ReadContext(s.ContextRef)
	if err != nil {
		return cp, err
	}
	ref, err := t.contexts.WriteContext(s.ID+".cp-"+uuid.NewString(), payload)
	if err != nil {
		return cp, fmt.Errorf("failed to snapshot context for %s: %w", s.ID, err)
	}
	cp.ContextRef = ref
	return cp, nil
}

// addCheckpoint records a checkpoint and returns the snapshot refs of
// any checkpoints evicted by the cap. The caller releases them only
// after the transaction commits; deleting earlier would leave dangling
// refs if the write fails.
func (t *Tracker) addCheckpoint(s *domain.Session, cp domain.Checkpoint) []string {
	var refs []string
	for _, evicted := range s.AddCheckpoint(cp, t.config.MaxCheckpoints) {
		if evicted.ContextRef != "" {
			refs = append(refs, evicted.ContextRef)
		}
	}
	return refs
}

// releaseSnapshots removes evicted out-of-line checkpoint snapshots
func (t *Tracker) releaseSnapshots(refs []string) {
	for _, ref := range refs {
		if err := t.contexts.DeleteContextRef(ref); err != nil {
			logging.Logger.Warn("failed to remove evicted checkpoint snapshot",
				"ref", ref, "error", err)
		}
	}
}
