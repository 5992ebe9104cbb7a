package repository

import (
	"context"

	"github.com/mocraimer/chrome-spaces/internal/domain/entity"
)

// SpaceRepository persists active space records. This is the durable side of
// the space lifecycle engine; the in-memory manager remains authoritative and
// writes through it asynchronously.
type SpaceRepository interface {
	// Save inserts or updates a space record.
	Save(ctx context.Context, space *entity.Space) error

	// FindByID returns the stored record, or nil when the id is unknown.
	FindByID(ctx context.Context, id entity.SpaceID) (*entity.Space, error)

	// FindAll returns every active space record.
	FindAll(ctx context.Context) ([]*entity.Space, error)

	// Delete removes a space record. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id entity.SpaceID) error
}
