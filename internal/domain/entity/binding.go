package entity

import "time"

// WindowID identifies a live browser window. The browser assigns these and
// recycles them after closure, so a WindowID is only meaningful while the
// window is open.
type WindowID int64

// TabID identifies a live browser tab within a window.
type TabID int64

// WindowType classifies a live window. Only normal windows are tracked;
// popups and devtools windows never get a space.
type WindowType string

const (
	WindowTypeNormal   WindowType = "normal"
	WindowTypePopup    WindowType = "popup"
	WindowTypeDevtools WindowType = "devtools"
)

// Trackable reports whether windows of this type participate in spaces.
func (t WindowType) Trackable() bool {
	return t == WindowTypeNormal
}

// ArchivedSpace is a space whose window was closed by the user. It keeps the
// full record so the space can be restored into a new window later.
type ArchivedSpace struct {
	Space      Space     `json:"space"`
	ArchivedAt time.Time `json:"archived_at"`
}
