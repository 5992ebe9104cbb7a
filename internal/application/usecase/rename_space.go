package usecase

import (
	"context"

	"github.com/mocraimer/chrome-spaces/internal/app/spaces"
	"github.com/mocraimer/chrome-spaces/internal/domain/entity"
)

// RenameSpaceUseCase assigns a user-chosen name to an active space.
type RenameSpaceUseCase struct {
	manager *spaces.Manager
}

// NewRenameSpaceUseCase creates a new RenameSpaceUseCase.
func NewRenameSpaceUseCase(manager *spaces.Manager) *RenameSpaceUseCase {
	return &RenameSpaceUseCase{manager: manager}
}

// RenameSpaceInput holds the target space and the new name.
type RenameSpaceInput struct {
	SpaceID entity.SpaceID
	Name    string
}

// RenameSpaceOutput returns the renamed space.
type RenameSpaceOutput struct {
	Space *entity.Space `json:"space"`
}

// Execute renames the space. Empty or overlong names are rejected with
// entity.ErrNameRejected and the stored name stays unchanged.
func (uc *RenameSpaceUseCase) Execute(ctx context.Context, input RenameSpaceInput) (*RenameSpaceOutput, error) {
	if err := uc.manager.Rename(ctx, input.SpaceID, input.Name); err != nil {
		return nil, err
	}

	space, err := uc.manager.Get(input.SpaceID)
	if err != nil {
		return nil, err
	}

	return &RenameSpaceOutput{Space: space}, nil
}
