package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/oklog/ulid/v2"

	"vocabchat/internal/domain"
)

// Sink implements domain.ChatSink by forwarding every call into the
// Bubble Tea program as a message. The session controller runs in its
// own goroutine; program.Send is the threading boundary.
type Sink struct {
	program *tea.Program
}

// NewSink creates an unattached sink. Attach must be called with the
// running program before the first session starts.
func NewSink() *Sink {
	return &Sink{}
}

// Attach binds the sink to the program it renders through.
func (s *Sink) Attach(p *tea.Program) {
	s.program = p
}

// AppendUserBubble implements domain.ChatSink.
func (s *Sink) AppendUserBubble(text string) {
	s.program.Send(userBubbleMsg{text: text})
}

// CreatePlaceholder implements domain.ChatSink. The handle is minted
// here so the controller can hold it before the model processes the
// creation message.
func (s *Sink) CreatePlaceholder() domain.PlaceholderID {
	id := domain.PlaceholderID(ulid.Make().String())
	s.program.Send(placeholderCreatedMsg{id: id})
	return id
}

// UpdatePlaceholder implements domain.ChatSink.
func (s *Sink) UpdatePlaceholder(id domain.PlaceholderID, text string) {
	s.program.Send(placeholderUpdatedMsg{id: id, text: text})
}

// FinalizePlaceholder implements domain.ChatSink.
func (s *Sink) FinalizePlaceholder(id domain.PlaceholderID, text string) {
	s.program.Send(placeholderFinalizedMsg{id: id, text: text})
}

// AppendTerminalBubble implements domain.ChatSink.
func (s *Sink) AppendTerminalBubble(text string) {
	s.program.Send(terminalBubbleMsg{text: text})
}

// SetInputEnabled implements domain.ChatSink.
func (s *Sink) SetInputEnabled(enabled bool) {
	s.program.Send(inputEnabledMsg{enabled: enabled})
}

// Compile-time interface check.
var _ domain.ChatSink = (*Sink)(nil)
