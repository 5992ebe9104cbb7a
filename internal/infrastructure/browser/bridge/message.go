package bridge

import "github.com/mocraimer/chrome-spaces/internal/domain/entity"

// Message types exchanged with the extension, tagged by the Type field.
const (
	messageTypeEvent   = "event"
	messageTypeCommand = "command"
	messageTypeResult  = "result"
)

// Command actions the daemon sends to the extension.
const (
	actionCreateWindow = "create_window"
	actionCloseWindow  = "close_window"
	actionQueryTabs    = "query_tabs"
)

// inboundMessage is anything the extension sends: a lifecycle event or the
// result of a previously issued command.
type inboundMessage struct {
	Type string `json:"type"`

	// Event fields (type == "event")
	Event      string `json:"event,omitempty"`
	WindowID   int64  `json:"window_id,omitempty"`
	WindowType string `json:"window_type,omitempty"`
	TabID      int64  `json:"tab_id,omitempty"`
	URL        string `json:"url,omitempty"`
	Index      int    `json:"index,omitempty"`

	// Result fields (type == "result")
	ID    string   `json:"id,omitempty"`
	URLs  []string `json:"urls,omitempty"`
	Error string   `json:"error,omitempty"`
}

// outboundCommand is a request to the extension, answered by a result message
// carrying the same correlation id.
type outboundCommand struct {
	Type     string          `json:"type"`
	ID       string          `json:"id"`
	Action   string          `json:"action"`
	WindowID entity.WindowID `json:"window_id,omitempty"`
	URLs     []string        `json:"urls,omitempty"`
}

// commandResult is the decoded answer for one correlation id.
type commandResult struct {
	windowID entity.WindowID
	urls     []string
	err      error
}
