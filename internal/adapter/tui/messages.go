// Package tui implements the Bubble Tea chat surface and the
// program-backed sink the session controller renders through.
package tui

import "vocabchat/internal/domain"

// Sink → model messages. Every domain.ChatSink call crosses into the
// program as exactly one of these, so frame order is preserved.

type userBubbleMsg struct {
	text string
}

type placeholderCreatedMsg struct {
	id domain.PlaceholderID
}

type placeholderUpdatedMsg struct {
	id   domain.PlaceholderID
	text string
}

type placeholderFinalizedMsg struct {
	id   domain.PlaceholderID
	text string
}

type terminalBubbleMsg struct {
	text string
}

type inputEnabledMsg struct {
	enabled bool
}

// submitDoneMsg reports the outcome of a Submit run inside a tea.Cmd.
// Rejections (busy, empty) surface here; accepted sessions report nil
// after finalization.
type submitDoneMsg struct {
	err error
}

// noticeMsg shows a local, non-transcript notice (command feedback).
type noticeMsg struct {
	text string
}
