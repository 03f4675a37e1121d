package domain

import "context"

// ChatTransport is the interface the session controller consumes to
// reach the chat backend.
type ChatTransport interface {
	// Chat sends a request and waits for one complete reply body.
	// Returns the extracted message text, possibly empty.
	Chat(ctx context.Context, req ChatRequest) (string, error)

	// ChatStream sends a request and returns a channel of decoded
	// frames in arrival order. The channel is closed when the stream
	// ends, a terminator or server error frame is emitted, or ctx is
	// cancelled. A non-nil error means the exchange failed before any
	// frame was produced.
	ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamFrame, error)
}
