package domain

import "time"

// Checkpoint is a saved snapshot of a session's phase and context,
// used to resume after an interruption. Most recent first. Oversized
// snapshots carry a ContextRef instead of an inline payload.
type Checkpoint struct {
	Context    string    `json:"context,omitempty"`
	ContextRef string    `json:"context_ref,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	Phase      Phase     `json:"phase"`
}

// AddCheckpoint prepends a checkpoint, dropping the oldest once the cap
// is reached. Evicted checkpoints are returned so the caller can release
// any out-of-line snapshots they reference.
func (s *Session) AddCheckpoint(cp Checkpoint, maxCheckpoints int) []Checkpoint {
	if maxCheckpoints <= 0 {
		maxCheckpoints = DefaultMaxCheckpoints
	}
	s.Checkpoints = append([]Checkpoint{cp}, s.Checkpoints...)
	if len(s.Checkpoints) <= maxCheckpoints {
		return nil
	}
	evicted := append([]Checkpoint(nil), s.Checkpoints[maxCheckpoints:]...)
	s.Checkpoints = s.Checkpoints[:maxCheckpoints]
	return evicted
}

// LatestCheckpoint returns the most recent checkpoint, or nil if the
// session has never been checkpointed.
func (s *Session) LatestCheckpoint() *Checkpoint {
	if len(s.Checkpoints) == 0 {
		return nil
	}
	return &s.Checkpoints[0]
}
