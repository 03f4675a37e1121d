package domain

import "fmt"

// Sentinel errors for the domain layer.
var (
	// ErrSessionBusy is returned when a submit arrives while another
	// exchange is in flight. The submit is dropped, not queued.
	ErrSessionBusy = fmt.Errorf("a chat session is already in flight")

	// ErrEmptyUtterance is returned for an utterance that is empty after
	// trimming. No state changes and no request is made.
	ErrEmptyUtterance = fmt.Errorf("utterance is empty")

	// ErrServerStatus marks a non-success HTTP status from the chat
	// backend. The wrapped message always contains "HTTP <code>".
	ErrServerStatus = fmt.Errorf("server returned an error status")

	// ErrStreamAborted marks a transport failure while reading a
	// streaming body.
	ErrStreamAborted = fmt.Errorf("stream aborted")

	// ErrPresetOutOfRange is returned for a preset index outside the
	// fetched listing.
	ErrPresetOutOfRange = fmt.Errorf("preset key index out of range")

	// ErrConfigLoad marks a configuration loading failure.
	ErrConfigLoad = fmt.Errorf("failed to load configuration")
)

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
