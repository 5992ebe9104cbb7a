package usecase

import (
	"context"

	"github.com/mocraimer/chrome-spaces/internal/app/spaces"
	"github.com/mocraimer/chrome-spaces/internal/application/port"
	"github.com/mocraimer/chrome-spaces/internal/domain/entity"
	"github.com/mocraimer/chrome-spaces/internal/logging"
)

// CloseSpaceUseCase closes a space's window (if one is bound) and moves the
// space into the archive.
type CloseSpaceUseCase struct {
	manager    *spaces.Manager
	reconciler *spaces.Reconciler
	browser    port.Browser
}

// NewCloseSpaceUseCase creates a new CloseSpaceUseCase.
func NewCloseSpaceUseCase(manager *spaces.Manager, reconciler *spaces.Reconciler, browser port.Browser) *CloseSpaceUseCase {
	return &CloseSpaceUseCase{manager: manager, reconciler: reconciler, browser: browser}
}

// CloseSpaceInput names the space to close.
type CloseSpaceInput struct {
	SpaceID entity.SpaceID
}

// Execute archives the space immediately and asks the browser to close the
// bound window. The later window-removed signal finds the space already
// archived and is a no-op, so the command works the same whether or not the
// browser is connected.
func (uc *CloseSpaceUseCase) Execute(ctx context.Context, input CloseSpaceInput) error {
	log := logging.FromContext(ctx)

	if windowID, bound := uc.reconciler.WindowFor(input.SpaceID); bound {
		if err := uc.browser.CloseWindow(ctx, windowID); err != nil {
			log.Warn().Err(err).
				Int64("window_id", int64(windowID)).
				Msg("failed to close bound window, archiving anyway")
		}
	}

	if err := uc.manager.Archive(ctx, input.SpaceID); err != nil {
		return err
	}

	log.Info().Str("space_id", string(input.SpaceID)).Msg("space closed")
	return nil
}
