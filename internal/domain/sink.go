package domain

// PlaceholderID identifies a pending assistant bubble. IDs are opaque
// ULID strings minted by the sink; a finalized id is invalid for
// further updates.
type PlaceholderID string

// ChatSink is the capability set the session controller needs from a
// rendering surface. Implementations must tolerate being called from a
// goroutine other than the one driving the UI.
type ChatSink interface {
	// AppendUserBubble appends the submitted utterance to the transcript.
	AppendUserBubble(text string)

	// CreatePlaceholder appends a pending assistant bubble and returns
	// its handle. The session controller owns the handle exclusively
	// until it finalizes it.
	CreatePlaceholder() PlaceholderID

	// UpdatePlaceholder replaces the pending bubble's content with the
	// cumulative text so far.
	UpdatePlaceholder(id PlaceholderID, text string)

	// FinalizePlaceholder converts the pending bubble into a terminal
	// bubble with the given text and invalidates the handle.
	FinalizePlaceholder(id PlaceholderID, text string)

	// AppendTerminalBubble appends a terminal assistant bubble directly,
	// used when no placeholder is currently owned.
	AppendTerminalBubble(text string)

	// SetInputEnabled toggles the input controls.
	SetInputEnabled(enabled bool)
}
