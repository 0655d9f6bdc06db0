package ports

import (
	"context"

	"vigia/internal/domain"
)

// SessionLoader reads the persisted working set. Reads outside a
// transaction may observe slightly stale data and must tolerate it.
type SessionLoader interface {
	Load(ctx context.Context) (*domain.SessionSet, error)
}

// SessionTransactor runs the lock-guarded load->modify->write cycle.
// This is the only sanctioned path for mutating persisted state.
type SessionTransactor interface {
	Transaction(ctx context.Context, fn func(*domain.SessionSet) error) error
}

// SessionStore is the composite interface over the state file
type SessionStore interface {
	SessionLoader
	SessionTransactor
}

// ContextStore persists oversized context payloads out-of-line,
// addressed by a caller-chosen key, so the transactional file stays
// small. DeleteContext removes by key, DeleteContextRef by the returned
// reference.
type ContextStore interface {
	WriteContext(key, payload string) (ref string, err error)
	ReadContext(ref string) (string, error)
	DeleteContext(key string) error
	DeleteContextRef(ref string) error
}

// RecoveryStore persists orphaned-work artifacts independently of the
// transactional state file.
type RecoveryStore interface {
	WriteRecovery(artifact domain.RecoveryArtifact) error
	ReadRecovery(sessionID string) (*domain.RecoveryArtifact, error)
	ListRecovery() ([]domain.RecoveryArtifact, error)
	DeleteRecovery(sessionID string) error
}
