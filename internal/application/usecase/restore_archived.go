package usecase

import (
	"context"
	"fmt"

	"github.com/mocraimer/chrome-spaces/internal/app/spaces"
	"github.com/mocraimer/chrome-spaces/internal/application/port"
	"github.com/mocraimer/chrome-spaces/internal/domain/entity"
	"github.com/mocraimer/chrome-spaces/internal/logging"
)

// RestoreArchivedUseCase reopens an archived space: the record moves back to
// the active set and a browser window is created with its tabs.
type RestoreArchivedUseCase struct {
	manager    *spaces.Manager
	reconciler *spaces.Reconciler
	browser    port.Browser
}

// NewRestoreArchivedUseCase creates a new RestoreArchivedUseCase.
func NewRestoreArchivedUseCase(manager *spaces.Manager, reconciler *spaces.Reconciler, browser port.Browser) *RestoreArchivedUseCase {
	return &RestoreArchivedUseCase{manager: manager, reconciler: reconciler, browser: browser}
}

// RestoreArchivedInput names the archived space to restore.
type RestoreArchivedInput struct {
	SpaceID entity.SpaceID
}

// RestoreArchivedOutput returns the reactivated space and its new window.
type RestoreArchivedOutput struct {
	Space    *entity.Space   `json:"space"`
	WindowID entity.WindowID `json:"window_id"`
}

// Execute moves the record out of the archive, opens a window with the
// space's tabs, and binds the two so later tab events land on the original
// space id.
func (uc *RestoreArchivedUseCase) Execute(ctx context.Context, input RestoreArchivedInput) (*RestoreArchivedOutput, error) {
	space, err := uc.manager.RestoreArchived(ctx, input.SpaceID)
	if err != nil {
		return nil, err
	}

	windowID, err := uc.browser.CreateWindow(ctx, space.URLs)
	if err != nil {
		// The space is active again but windowless; a later window with a
		// matching tab signature can still rebind it.
		return nil, fmt.Errorf("space %s reactivated but window creation failed: %w", space.ID, err)
	}

	uc.reconciler.Bind(windowID, space.ID)

	logging.FromContext(ctx).Info().
		Str("space_id", string(space.ID)).
		Int64("window_id", int64(windowID)).
		Int("tabs", len(space.URLs)).
		Msg("archived space restored")

	return &RestoreArchivedOutput{Space: space, WindowID: windowID}, nil
}
