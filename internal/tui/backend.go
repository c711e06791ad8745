// Package tui declares the contract between SessionCoordinator and the
// (out-of-scope) menu chrome: table layout, modal forms, CSS, spinner
// animation. SessionCoordinator only ever depends on the TerminalBackend
// interface below; it never parses terminal escapes itself, per
// spec.md §9's "Custom terminal driver hooked into an external
// framework" redesign note.
package tui

import "github.com/marma/whistler/internal/model"

// Menu is the out-of-scope collaborator that renders the instance/
// template management screens. SessionCoordinator hands it a
// TerminalBackend and blocks on Run until the user exits the menu.
type Menu interface {
	Run(backend TerminalBackend, owner model.Owner) error
}

// TerminalBackend is the driver-level input/output contract
// SessionCoordinator exposes to the menu collaborator for one session:
// bytes flow channel-to-TUI as terminal input, TUI-to-channel as
// rendered output, and window-resize events are forwarded already
// coalesced.
type TerminalBackend interface {
	Write(p []byte) (int, error)
	FeedInput() <-chan []byte
	PostResize() <-chan model.TerminalSize
	EnterAppMode()
	LeaveAppMode()
}
