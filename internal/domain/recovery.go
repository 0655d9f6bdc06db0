package domain

import "time"

// RecoveryArtifact is the independent record a child session writes when
// its parent is unreachable, so orphaned work survives for later
// reconciliation instead of being silently dropped. It lives outside the
// normal parent-child completion path, keyed by the child's own id.
type RecoveryArtifact struct {
	Context   string    `json:"context,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Name      string    `json:"name"`
	ParentID  string    `json:"parent_id,omitempty"`
	Phase     Phase     `json:"phase"`
	Reason    string    `json:"reason"`
	Result    string    `json:"result,omitempty"`
	Role      string    `json:"role"`
	SessionID string    `json:"session_id"`
}
