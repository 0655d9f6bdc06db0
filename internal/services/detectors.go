package services

import (
	"fmt"
	"time"

	"vigia/internal/domain"
	"vigia/logging"
)

// ParentHealth is the orphan detector's verdict on a session's parent
type ParentHealth struct {
	Healthy bool
	Reason  string
}

// checkParentHealth evaluates whether a child's parent can still receive
// its results: the parent must exist, be ACTIVE or PAUSED, and have shown
// activity within the stale threshold.
func checkParentHealth(set *domain.SessionSet, child *domain.Session, now time.Time, threshold time.Duration) ParentHealth {
	if child.ParentID == nil {
		return ParentHealth{Healthy: true}
	}

	parent, ok := set.Sessions[*child.ParentID]
	if !ok {
		return ParentHealth{Reason: fmt.Sprintf("parent %s no longer exists", *child.ParentID)}
	}

	switch parent.Status {
	case domain.StatusActive, domain.StatusPaused:
	default:
		return ParentHealth{Reason: fmt.Sprintf("parent %s is %s", parent.ID, parent.Status)}
	}

	if parent.StaleAt(now, threshold) {
		return ParentHealth{Reason: fmt.Sprintf("parent %s inactive since %s", parent.ID, parent.UpdatedAt.Format(time.RFC3339))}
	}

	return ParentHealth{Healthy: true}
}

// markIfStale flips an ACTIVE or PAUSED session to STALE once its last
// activity exceeds the threshold. Detection is lazy: it runs inside every
// transaction that touches the session, so the flag survives restarts
// without a background process.
func markIfStale(s *domain.Session, now time.Time, threshold time.Duration) bool {
	if s.Status != domain.StatusActive && s.Status != domain.StatusPaused {
		return false
	}
	if !s.StaleAt(now, threshold) {
		return false
	}
	lastActivity := s.UpdatedAt
	if err := s.TransitionStatus(domain.StatusStale, now); err != nil {
		logging.Logger.Error("failed to mark session stale", "session", s.ID, "error", err)
		return false
	}
	// Staleness marking must not itself count as activity
	s.UpdatedAt = lastActivity
	logging.Logger.Warn("session went stale",
		"session", s.ID,
		"last_activity", lastActivity.Format(time.RFC3339))
	return true
}
