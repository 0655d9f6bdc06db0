package domain

import "time"

// ActionRecord is one discrete action taken within a session, kept for
// audit and for reconstructing context after an interruption.
type ActionRecord struct {
	Description string    `json:"description"`
	Outcome     string    `json:"outcome,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// AppendAction adds an action record, evicting the oldest entries once
// the cap is reached (ring-buffer semantics).
func (s *Session) AppendAction(record ActionRecord, maxActions int) {
	if maxActions <= 0 {
		maxActions = DefaultMaxActions
	}
	s.Actions = append(s.Actions, record)
	if overflow := len(s.Actions) - maxActions; overflow > 0 {
		s.Actions = append([]ActionRecord(nil), s.Actions[overflow:]...)
	}
}
