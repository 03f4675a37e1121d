package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/oklog/ulid/v2"

	"vocabchat/internal/domain"
)

// Fixed bubble texts.
const (
	// ThinkingLabel is the transient placeholder content while waiting
	// for the first byte of the reply.
	ThinkingLabel = "Thinking…"
	// EmptyReplyMarker replaces a reply that completed with no content.
	EmptyReplyMarker = "(no response)"
	// errorPrefix precedes every failure message in a terminal bubble.
	errorPrefix = "Error: "
)

// SessionControllerDeps are the collaborators injected into a controller.
type SessionControllerDeps struct {
	Transport domain.ChatTransport
	Keys      *KeySelector
	Sink      domain.ChatSink
	Logger    *slog.Logger
	Model     string
	System    string
	Mode      domain.TransportMode
}

// SessionController orchestrates exactly one request/response exchange
// at a time for one chat surface. It owns the pending placeholder from
// creation to finalization and guarantees exactly-once finalization on
// every exit path. A page with several chat surfaces runs one
// controller instance each; nothing here is ambient.
type SessionController struct {
	transport domain.ChatTransport
	keys      *KeySelector
	sink      domain.ChatSink
	logger    *slog.Logger

	model  string
	system string

	busy      atomic.Bool
	streaming atomic.Bool
	state     atomic.Int32

	// placeholder is only touched between a successful busy CAS and the
	// matching finalize, so it needs no further synchronization.
	placeholder domain.PlaceholderID
}

// NewSessionController creates a controller in the idle state.
func NewSessionController(deps SessionControllerDeps) *SessionController {
	s := &SessionController{
		transport: deps.Transport,
		keys:      deps.Keys,
		sink:      deps.Sink,
		logger:    deps.Logger,
		model:     deps.Model,
		system:    deps.System,
	}
	s.streaming.Store(deps.Mode == domain.ModeStreaming)
	s.state.Store(int32(domain.StateIdle))
	return s
}

// SetMode flips the transport mode for subsequent submissions. It does
// not affect a session already in flight.
func (s *SessionController) SetMode(mode domain.TransportMode) {
	s.streaming.Store(mode == domain.ModeStreaming)
}

// Mode returns the current transport mode.
func (s *SessionController) Mode() domain.TransportMode {
	if s.streaming.Load() {
		return domain.ModeStreaming
	}
	return domain.ModeBatched
}

// State returns the session state. StateCompleted and StateFailed are
// terminal observations of the last session; for admission they are
// equivalent to StateIdle. The busy flag alone gates submits.
func (s *SessionController) State() domain.SessionState {
	return domain.SessionState(s.state.Load())
}

// Busy reports whether an exchange is in flight.
func (s *SessionController) Busy() bool {
	return s.busy.Load()
}

func (s *SessionController) setState(st domain.SessionState) {
	s.state.Store(int32(st))
}

// Submit runs one exchange to completion. An empty (post-trim)
// utterance is rejected without any state change; a submit while busy
// is dropped, not queued. On acceptance the call blocks until the
// session reaches a terminal state; callers that need a live UI run it
// from their own goroutine.
func (s *SessionController) Submit(ctx context.Context, utterance string) error {
	text := strings.TrimSpace(utterance)
	if text == "" {
		return domain.ErrEmptyUtterance
	}
	if !s.busy.CompareAndSwap(false, true) {
		s.logger.Debug("submit dropped, session in flight")
		return domain.ErrSessionBusy
	}

	log := s.logger.With("session", ulid.Make().String())
	log.Debug("session accepted", "mode", s.Mode().String(), "utterance_len", len(text))

	s.setState(domain.StateAwaiting)
	s.sink.SetInputEnabled(false)
	s.sink.AppendUserBubble(text)
	s.placeholder = s.sink.CreatePlaceholder()
	s.sink.UpdatePlaceholder(s.placeholder, ThinkingLabel)

	req := domain.ChatRequest{
		Content:    text,
		Credential: s.keys.Resolve(),
		Model:      s.model,
		System:     s.system,
		Mode:       s.Mode(),
	}

	var finalText string
	var failed bool
	defer func() {
		// Finalization runs exactly once per accepted submission, even
		// when the decode path panics partway through.
		if r := recover(); r != nil {
			log.Error("session panicked", "panic", r)
			finalText = fmt.Sprintf("%s%v", errorPrefix, r)
			failed = true
		}
		s.finalize(finalText, failed)
		log.Debug("session finalized", "failed", failed, "reply_len", len(finalText))
	}()

	if req.Mode == domain.ModeStreaming {
		finalText, failed = s.runStreaming(ctx, req)
	} else {
		finalText, failed = s.runBatched(ctx, req)
	}
	return nil
}

// runStreaming consumes the frame channel, pushing the cumulative
// accumulator to the placeholder after every delta. The UI always sees
// monotonically growing text, never a bare fragment.
func (s *SessionController) runStreaming(ctx context.Context, req domain.ChatRequest) (string, bool) {
	frames, err := s.transport.ChatStream(ctx, req)
	if err != nil {
		return errorPrefix + err.Error(), true
	}

	var acc strings.Builder
	for frame := range frames {
		if s.State() == domain.StateAwaiting {
			s.setState(domain.StateStreaming)
		}
		switch frame.Kind {
		case domain.FrameDelta:
			acc.WriteString(frame.Text)
			s.sink.UpdatePlaceholder(s.placeholder, acc.String())
		case domain.FrameServerError:
			// The partial accumulator is discarded: the error message
			// becomes the sole terminal text.
			return errorPrefix + frame.Text, true
		case domain.FrameTerminator:
			return finalOrMarker(acc.String()), false
		case domain.FrameIgnored:
			// malformed line, skipped
		}
	}
	// Natural end of stream without a terminator.
	return finalOrMarker(acc.String()), false
}

// runBatched awaits one full JSON body.
func (s *SessionController) runBatched(ctx context.Context, req domain.ChatRequest) (string, bool) {
	message, err := s.transport.Chat(ctx, req)
	if err != nil {
		return errorPrefix + err.Error(), true
	}
	return finalOrMarker(message), false
}

func finalOrMarker(text string) string {
	if text == "" {
		return EmptyReplyMarker
	}
	return text
}

// finalize converts the pending placeholder into a terminal bubble with
// the given text, releases ownership of the handle, clears busy, and
// re-enables input. Single call site; the busy flag's exclusivity makes
// it run at most once per session.
func (s *SessionController) finalize(text string, failed bool) {
	if s.placeholder != "" {
		s.sink.FinalizePlaceholder(s.placeholder, text)
		s.placeholder = ""
	} else {
		s.sink.AppendTerminalBubble(text)
	}
	if failed {
		s.setState(domain.StateFailed)
	} else {
		s.setState(domain.StateCompleted)
	}
	s.busy.Store(false)
	s.sink.SetInputEnabled(true)
}
