// Package domain holds the wire-free core types shared by the chat
// transport, the session controller, and the UI surface.
package domain

// TransportMode selects how a reply is fetched from the server.
type TransportMode int

const (
	// ModeStreaming reads the reply incrementally over a long-lived response.
	ModeStreaming TransportMode = iota
	// ModeBatched waits for one complete JSON body.
	ModeBatched
)

// String returns a human-readable label for the mode.
func (m TransportMode) String() string {
	switch m {
	case ModeStreaming:
		return "streaming"
	case ModeBatched:
		return "batched"
	default:
		return "unknown"
	}
}

// Credential identifies which API key accompanies a chat request:
// either a reference into the server-side preset list, or an inline
// secret typed by the user. The variant set is closed.
type Credential interface {
	isCredential()
}

// PresetRef references a server-held key by index. The secret itself
// never leaves the server.
type PresetRef struct {
	Index int
}

// InlineSecret carries a key typed by the user.
type InlineSecret struct {
	Value string
}

func (PresetRef) isCredential()    {}
func (InlineSecret) isCredential() {}

// PresetEntry is one masked key from the server's preset listing.
// Immutable once fetched.
type PresetEntry struct {
	Index  int    `json:"index"`
	Label  string `json:"label"`
	Masked string `json:"masked"`
}

// ChatRequest is a single-turn exchange descriptor. Created per
// submission and discarded after dispatch.
type ChatRequest struct {
	Content    string
	Credential Credential
	Model      string
	System     string
	Mode       TransportMode
}

// FrameKind classifies a decoded protocol frame.
type FrameKind int

const (
	// FrameIgnored is a malformed or unrecognized line. Skipped.
	FrameIgnored FrameKind = iota
	// FrameDelta carries an incremental text fragment.
	FrameDelta
	// FrameServerError carries an explicit error signaled by the server.
	// Ends the stream; any accumulated text is discarded.
	FrameServerError
	// FrameTerminator is the sentinel signaling normal end of stream.
	FrameTerminator
)

// String returns a human-readable label for the frame kind.
func (k FrameKind) String() string {
	switch k {
	case FrameDelta:
		return "delta"
	case FrameServerError:
		return "server_error"
	case FrameTerminator:
		return "terminator"
	case FrameIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// StreamFrame is one decoded, newline-delimited protocol unit from the
// streaming body. Text holds the delta fragment for FrameDelta and the
// error message for FrameServerError.
type StreamFrame struct {
	Kind FrameKind
	Text string
}

// SessionState tracks a chat session through its lifecycle.
type SessionState int

const (
	// StateIdle means no exchange is in flight.
	StateIdle SessionState = iota
	// StateAwaiting means a request was dispatched but no frame or body
	// has arrived yet.
	StateAwaiting
	// StateStreaming means at least one frame has been processed.
	StateStreaming
	// StateCompleted means the last session finished normally.
	StateCompleted
	// StateFailed means the last session ended with an error.
	StateFailed
)

// String returns a human-readable label for the state.
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaiting:
		return "awaiting"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
