package domain

import (
	"fmt"
	"time"
)

// Phase represents a workflow stage within a session
type Phase string

const (
	PhaseContext Phase = "context"
	PhasePlan    Phase = "plan"
	PhaseWork    Phase = "work"
	PhaseVerify  Phase = "verify"
	PhaseDone    Phase = "done"
)

// phaseOrder defines the forward ordering of phases
var phaseOrder = map[Phase]int{
	PhaseContext: 0,
	PhasePlan:    1,
	PhaseWork:    2,
	PhaseVerify:  3,
	PhaseDone:    4,
}

// Phases lists all phases in workflow order
var Phases = []Phase{PhaseContext, PhasePlan, PhaseWork, PhaseVerify, PhaseDone}

// Valid reports whether p is a known phase
func (p Phase) Valid() bool {
	_, ok := phaseOrder[p]
	return ok
}

// Status represents the lifecycle status of a session
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusOrphaned  Status = "orphaned"
	StatusStale     Status = "stale"
	StatusAbandoned Status = "abandoned"
)

// statusEdges defines the allowed status transitions
var statusEdges = map[Status][]Status{
	StatusActive:   {StatusPaused, StatusCompleted, StatusOrphaned, StatusStale, StatusAbandoned},
	StatusPaused:   {StatusActive, StatusStale, StatusAbandoned},
	StatusStale:    {StatusActive, StatusAbandoned},
	StatusOrphaned: {StatusAbandoned},
}

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusCompleted, StatusOrphaned, StatusStale, StatusAbandoned:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// CanTransition reports whether the edge s -> to is allowed
func (s Status) CanTransition(to Status) bool {
	for _, next := range statusEdges[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Depth and resource limits
const (
	// MaxDepth is the hard nesting limit: root=0, deepest descendant=3.
	MaxDepth = 3

	DefaultStaleThreshold = 30 * time.Minute
	DefaultMaxActions     = 50
	DefaultMaxCheckpoints = 5
	DefaultMaxActiveRoots = 10
)

// Disposition is the explicit decision recorded against a stale session
type Disposition string

const (
	DispositionResume  Disposition = "resume"
	DispositionAbandon Disposition = "abandon"
	DispositionNew     Disposition = "new"
)

// Valid reports whether d is a known disposition
func (d Disposition) Valid() bool {
	return d == DispositionResume || d == DispositionAbandon || d == DispositionNew
}

// Session is the unit of work tracking (domain entity)
type Session struct {
	Actions     []ActionRecord `json:"actions,omitempty"`
	Checkpoints []Checkpoint   `json:"checkpoints,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Context     string         `json:"context,omitempty"`
	ContextRef  string         `json:"context_ref,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	Depth       int            `json:"depth"`
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	ParentID    *string        `json:"parent_id,omitempty"`
	Phase       Phase          `json:"phase"`
	Result      string         `json:"result,omitempty"`
	Role        string         `json:"role"`
	Status      Status         `json:"status"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// IsRoot reports whether the session has no parent
func (s *Session) IsRoot() bool {
	return s.ParentID == nil
}

// Touch refreshes the activity timestamp that drives staleness
func (s *Session) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

// StaleAt reports whether the session has gone stale as of now
func (s *Session) StaleAt(now time.Time, threshold time.Duration) bool {
	return now.Sub(s.UpdatedAt) > threshold
}

// TransitionStatus moves the session to a new status, enforcing the
// allowed edges. Terminal statuses never transition.
func (s *Session) TransitionStatus(to Status, now time.Time) error {
	if s.Status.Terminal() {
		return fmt.Errorf("session %s is %s: %w", s.ID, s.Status, ErrSessionTerminal)
	}
	if !s.Status.CanTransition(to) {
		return fmt.Errorf("session %s cannot go %s -> %s: %w", s.ID, s.Status, to, ErrInvalidTransition)
	}
	s.Status = to
	if to.Terminal() {
		completed := now.UTC()
		s.CompletedAt = &completed
	}
	s.Touch(now)
	return nil
}

// AdvancePhase moves the session to the next phase. Phases only move
// forward, except for the explicit correction path back to plan from
// work or verify.
func (s *Session) AdvancePhase(next Phase, now time.Time) error {
	if !next.Valid() {
		return fmt.Errorf("unknown phase %q: %w", next, ErrInvalidPhase)
	}
	cur := phaseOrder[s.Phase]
	tgt := phaseOrder[next]
	if tgt > cur {
		s.Phase = next
		s.Touch(now)
		return nil
	}
	if next == PhasePlan && (s.Phase == PhaseWork || s.Phase == PhaseVerify) {
		s.Phase = next
		s.Touch(now)
		return nil
	}
	if next == s.Phase {
		return nil
	}
	return fmt.Errorf("session %s cannot go %s -> %s: %w", s.ID, s.Phase, next, ErrInvalidPhase)
}

// SessionSet is the canonical working set of all tracked sessions
type SessionSet struct {
	Sessions map[string]*Session `json:"sessions"`
}

// NewSessionSet creates an empty SessionSet
func NewSessionSet() *SessionSet {
	return &SessionSet{Sessions: make(map[string]*Session)}
}

// Get returns the session with the given id
func (set *SessionSet) Get(id string) (*Session, error) {
	s, ok := set.Sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	return s, nil
}

// Children returns the direct children of the given session
func (set *SessionSet) Children(id string) []*Session {
	var children []*Session
	for _, s := range set.Sessions {
		if s.ParentID != nil && *s.ParentID == id {
			children = append(children, s)
		}
	}
	return children
}

// ActiveRootCount counts root sessions that are still in a working
// status (not terminal, not orphaned)
func (set *SessionSet) ActiveRootCount() int {
	count := 0
	for _, s := range set.Sessions {
		if s.IsRoot() && !s.Status.Terminal() && s.Status != StatusOrphaned {
			count++
		}
	}
	return count
}

// Validate checks the structural invariants of the persisted set:
// map keys match ids, parents resolve, depth is parent.depth+1 within
// MaxDepth, and phase/status values are known.
func (set *SessionSet) Validate() error {
	if set.Sessions == nil {
		return fmt.Errorf("sessions map is nil")
	}
	for id, s := range set.Sessions {
		if s == nil {
			return fmt.Errorf("session %s: nil record", id)
		}
		if s.ID != id {
			return fmt.Errorf("session %s: id mismatch (record says %s)", id, s.ID)
		}
		if !s.Phase.Valid() {
			return fmt.Errorf("session %s: unknown phase %q", id, s.Phase)
		}
		if !s.Status.Valid() {
			return fmt.Errorf("session %s: unknown status %q", id, s.Status)
		}
		if s.ParentID == nil {
			if s.Depth != 0 {
				return fmt.Errorf("session %s: root with depth %d", id, s.Depth)
			}
			continue
		}
		parent, ok := set.Sessions[*s.ParentID]
		if !ok {
			return fmt.Errorf("session %s: parent %s not found", id, *s.ParentID)
		}
		if s.Depth != parent.Depth+1 {
			return fmt.Errorf("session %s: depth %d, parent depth %d", id, s.Depth, parent.Depth)
		}
		if s.Depth > MaxDepth {
			return fmt.Errorf("session %s: depth %d exceeds limit %d", id, s.Depth, MaxDepth)
		}
	}
	return nil
}
