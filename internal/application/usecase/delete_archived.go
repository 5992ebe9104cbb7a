package usecase

import (
	"context"

	"github.com/mocraimer/chrome-spaces/internal/app/spaces"
	"github.com/mocraimer/chrome-spaces/internal/domain/entity"
	"github.com/mocraimer/chrome-spaces/internal/logging"
)

// DeleteArchivedUseCase permanently removes a space from the archive.
type DeleteArchivedUseCase struct {
	manager *spaces.Manager
}

// NewDeleteArchivedUseCase creates a new DeleteArchivedUseCase.
func NewDeleteArchivedUseCase(manager *spaces.Manager) *DeleteArchivedUseCase {
	return &DeleteArchivedUseCase{manager: manager}
}

// DeleteArchivedInput names the archived space to delete.
type DeleteArchivedInput struct {
	SpaceID entity.SpaceID
}

// Execute deletes the archived record. Unknown ids return
// entity.ErrSpaceNotFound.
func (uc *DeleteArchivedUseCase) Execute(ctx context.Context, input DeleteArchivedInput) error {
	if err := uc.manager.DeleteArchived(ctx, input.SpaceID); err != nil {
		return err
	}
	logging.FromContext(ctx).Info().
		Str("space_id", string(input.SpaceID)).
		Msg("archived space deleted")
	return nil
}
