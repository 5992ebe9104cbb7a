package usecase

import (
	"context"

	"github.com/mocraimer/chrome-spaces/internal/app/spaces"
	"github.com/mocraimer/chrome-spaces/internal/domain/entity"
)

// SpaceInfo is a space enriched with its live runtime state.
type SpaceInfo struct {
	Space    *entity.Space   `json:"space"`
	WindowID entity.WindowID `json:"window_id,omitempty"`
	Bound    bool            `json:"bound"`
	Degraded bool            `json:"degraded"`
}

// ListSpacesUseCase returns all active spaces with their window bindings,
// plus the archive.
type ListSpacesUseCase struct {
	manager    *spaces.Manager
	reconciler *spaces.Reconciler
}

// NewListSpacesUseCase creates a new ListSpacesUseCase.
func NewListSpacesUseCase(manager *spaces.Manager, reconciler *spaces.Reconciler) *ListSpacesUseCase {
	return &ListSpacesUseCase{manager: manager, reconciler: reconciler}
}

// ListSpacesOutput contains active spaces (most recently modified first) and
// archived spaces (most recently archived first).
type ListSpacesOutput struct {
	Spaces   []SpaceInfo             `json:"spaces"`
	Archived []*entity.ArchivedSpace `json:"archived"`
}

// Execute lists active and archived spaces.
func (uc *ListSpacesUseCase) Execute(ctx context.Context) (*ListSpacesOutput, error) {
	active := uc.manager.List()
	infos := make([]SpaceInfo, 0, len(active))
	for _, space := range active {
		info := SpaceInfo{
			Space:    space,
			Degraded: uc.manager.Degraded(space.ID),
		}
		if uc.reconciler != nil {
			info.WindowID, info.Bound = uc.reconciler.WindowFor(space.ID)
		}
		infos = append(infos, info)
	}

	archived, err := uc.manager.ArchivedList(ctx)
	if err != nil {
		return nil, err
	}

	return &ListSpacesOutput{Spaces: infos, Archived: archived}, nil
}
