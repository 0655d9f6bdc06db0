package ports

import (
	"context"

	"vigia/internal/domain"
)

// ArchiveWriter moves terminated sessions into long-term storage
type ArchiveWriter interface {
	Archive(ctx context.Context, session domain.Session, reason string) error
}

// ArchiveReader reads archived sessions
type ArchiveReader interface {
	Get(ctx context.Context, id string) (*domain.ArchivedSession, error)
	List(ctx context.Context) ([]domain.ArchivedSession, error)
}

// ArchiveRepository is the composite interface
type ArchiveRepository interface {
	ArchiveWriter
	ArchiveReader
	Close() error
}
