package repository

import (
	"context"

	"github.com/mocraimer/chrome-spaces/internal/domain/entity"
)

// ArchiveRepository persists closed spaces. The archive is bounded: callers
// enforce the retention limit through EvictOldest after each insertion.
type ArchiveRepository interface {
	// Save inserts or updates an archived space.
	Save(ctx context.Context, archived *entity.ArchivedSpace) error

	// FindByID returns the archived record, or nil when the id is unknown.
	FindByID(ctx context.Context, id entity.SpaceID) (*entity.ArchivedSpace, error)

	// FindAll returns all archived spaces ordered by LastModified descending.
	FindAll(ctx context.Context) ([]*entity.ArchivedSpace, error)

	// Delete removes an archived space. Returns entity.ErrSpaceNotFound when
	// the id is not in the archive.
	Delete(ctx context.Context, id entity.SpaceID) error

	// EvictOldest deletes entries with the smallest LastModified until at most
	// keepCount remain. Returns the number of evicted entries.
	EvictOldest(ctx context.Context, keepCount int) (int64, error)

	// Count returns the number of archived spaces.
	Count(ctx context.Context) (int64, error)
}
