package port

import (
	"context"

	"github.com/mocraimer/chrome-spaces/internal/domain/entity"
)

// EventType enumerates the browser lifecycle signals the engine consumes.
type EventType string

const (
	EventWindowCreated EventType = "window_created"
	EventWindowRemoved EventType = "window_removed"
	EventTabCreated    EventType = "tab_created"
	EventTabUpdated    EventType = "tab_updated"
	EventTabRemoved    EventType = "tab_removed"
	EventTabMoved      EventType = "tab_moved"
)

// Event is one browser lifecycle signal. Fields beyond Type and WindowID are
// populated per event kind: WindowType on window_created, TabID/URL/Index on
// tab events.
//
// Delivery contract: events for a given window id arrive in the order the
// browser emitted them; events for different window ids carry no relative
// ordering guarantee.
type Event struct {
	Type       EventType
	WindowID   entity.WindowID
	WindowType entity.WindowType
	TabID      entity.TabID
	URL        string
	Index      int
}

// Browser is the boundary to the host browser environment. Implementations
// bridge a real browser (a connected extension) or a test fake.
type Browser interface {
	// Events returns the stream of lifecycle signals. The channel is closed
	// when the browser side disconnects permanently.
	Events() <-chan Event

	// TabURLs returns the complete, ordered tab URL sequence for a live
	// window. The reconciler always re-reads the full set instead of applying
	// partial diffs.
	TabURLs(ctx context.Context, windowID entity.WindowID) ([]string, error)

	// CreateWindow opens a new browser window pre-populated with the given
	// URLs in order and returns its live window id.
	CreateWindow(ctx context.Context, urls []string) (entity.WindowID, error)

	// CloseWindow closes a live window. Closing an unknown id is not an error.
	CloseWindow(ctx context.Context, windowID entity.WindowID) error
}
