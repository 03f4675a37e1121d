package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"vocabchat/internal/domain"
	"vocabchat/internal/usecase"
)

// Styles for the transcript.
var (
	styleUserLabel      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	styleAssistantLabel = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5"))
	stylePending        = lipgloss.NewStyle().Faint(true)
	styleNotice         = lipgloss.NewStyle().Faint(true).Italic(true)
	styleStatus         = lipgloss.NewStyle().Faint(true)
)

type bubbleRole int

const (
	roleUser bubbleRole = iota
	roleAssistant
	rolePending
	roleNotice
)

// bubble is one transcript entry. id is set for pending bubbles only.
type bubble struct {
	role bubbleRole
	id   domain.PlaceholderID
	text string
}

// ModelDeps are the collaborators injected into the chat surface.
type ModelDeps struct {
	Controller *usecase.SessionController
	Keys       *usecase.KeySelector
	Logger     *slog.Logger
	ModelName  string
}

// Model is the root Bubble Tea model for the chat surface.
type Model struct {
	deps ModelDeps

	transcript []bubble
	viewport   viewport.Model
	input      textinput.Model
	spinner    spinner.Model
	renderer   *glamour.TermRenderer

	inputEnabled bool
	notice       string
	width        int
	height       int
	ready        bool
	quitting     bool
}

// NewModel creates the chat surface model.
func NewModel(deps ModelDeps) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask something, or /help"
	ti.Focus()
	ti.CharLimit = 4096

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	return Model{
		deps:         deps,
		input:        ti,
		spinner:      sp,
		inputEnabled: true,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			return m.handleSubmit()
		}

	case userBubbleMsg:
		m.transcript = append(m.transcript, bubble{role: roleUser, text: msg.text})
		m.refresh()
		return m, nil

	case placeholderCreatedMsg:
		m.transcript = append(m.transcript, bubble{role: rolePending, id: msg.id})
		m.refresh()
		return m, nil

	case placeholderUpdatedMsg:
		if b := m.findPending(msg.id); b != nil {
			b.text = msg.text
			m.refresh()
		}
		return m, nil

	case placeholderFinalizedMsg:
		if b := m.findPending(msg.id); b != nil {
			b.role = roleAssistant
			b.id = ""
			b.text = msg.text
			m.refresh()
		}
		return m, nil

	case terminalBubbleMsg:
		m.transcript = append(m.transcript, bubble{role: roleAssistant, text: msg.text})
		m.refresh()
		return m, nil

	case inputEnabledMsg:
		m.inputEnabled = msg.enabled
		if msg.enabled {
			m.input.Focus()
		} else {
			m.input.Blur()
		}
		return m, nil

	case submitDoneMsg:
		if msg.err != nil && !errors.Is(msg.err, domain.ErrSessionBusy) {
			m.notice = msg.err.Error()
		}
		return m, nil

	case noticeMsg:
		m.notice = msg.text
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	if m.inputEnabled {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleSubmit dispatches the input line: slash commands locally,
// everything else to the session controller in its own goroutine.
func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.input.Value())
	if value == "" {
		return m, nil
	}
	if strings.HasPrefix(value, "/") {
		m.input.SetValue("")
		return m.handleCommand(value)
	}
	if !m.inputEnabled {
		return m, nil
	}

	m.input.SetValue("")
	m.notice = ""
	controller := m.deps.Controller
	return m, func() tea.Msg {
		return submitDoneMsg{err: controller.Submit(context.Background(), value)}
	}
}

// handleCommand runs the local slash commands.
func (m Model) handleCommand(line string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit":
		m.quitting = true
		return m, tea.Quit

	case "/mode":
		next := domain.ModeBatched
		if m.deps.Controller.Mode() == domain.ModeBatched {
			next = domain.ModeStreaming
		}
		m.deps.Controller.SetMode(next)
		m.notice = "transport mode: " + next.String()
		return m, nil

	case "/keys":
		presets := m.deps.Keys.Presets()
		if len(presets) == 0 {
			m.notice = "no preset keys available; use /key custom <secret>"
			return m, nil
		}
		var sb strings.Builder
		for _, p := range presets {
			fmt.Fprintf(&sb, "[%d] %s %s  ", p.Index, p.Label, p.Masked)
		}
		m.notice = strings.TrimSpace(sb.String())
		return m, nil

	case "/key":
		if len(fields) < 2 {
			m.notice = "usage: /key <index> | /key custom <secret>"
			return m, nil
		}
		if fields[1] == "custom" {
			m.deps.Keys.SelectCustom()
			if len(fields) >= 3 {
				m.deps.Keys.SetSecret(fields[2])
			}
			m.notice = "using custom API key"
			return m, nil
		}
		idx, err := strconv.Atoi(fields[1])
		if err != nil {
			m.notice = "usage: /key <index> | /key custom <secret>"
			return m, nil
		}
		if err := m.deps.Keys.SelectPreset(idx); err != nil {
			m.notice = err.Error()
			return m, nil
		}
		m.notice = "using preset key " + fields[1]
		return m, nil

	case "/help":
		m.notice = "/keys /key <n> /key custom <secret> /mode /quit"
		return m, nil

	default:
		m.notice = "unknown command: " + fields[0]
		return m, nil
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return "Bye!\n"
	}
	if !m.ready {
		return "  starting..."
	}

	inputView := m.input.View()
	if !m.inputEnabled {
		inputView = m.spinner.View() + stylePending.Render(" waiting for reply...")
	}

	status := m.statusLine()

	return lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		strings.Repeat("─", max(m.width, 1)),
		inputView,
		status,
	)
}

// statusLine summarizes mode, model, and credential selection.
func (m Model) statusLine() string {
	cred := "custom key"
	if idx, ok := m.deps.Keys.ActivePreset(); ok {
		cred = "preset key " + strconv.Itoa(idx)
	}
	line := fmt.Sprintf("%s · %s · %s", m.deps.Controller.Mode(), m.deps.ModelName, cred)
	if m.notice != "" {
		line += " · " + m.notice
	}
	return styleStatus.Render(line)
}

// layout recalculates sizes and (re)builds the markdown renderer.
func (m *Model) layout() {
	inputH := 1
	statusH := 1
	dividerH := 1
	contentH := m.height - inputH - statusH - dividerH
	if contentH < 3 {
		contentH = 3
	}

	if !m.ready {
		m.viewport = viewport.New(m.width, contentH)
		m.ready = true
	} else {
		m.viewport.Width = m.width
		m.viewport.Height = contentH
	}
	m.input.Width = m.width - 4

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(m.width),
	)
	if err != nil {
		m.deps.Logger.Warn("markdown renderer unavailable", "error", err)
		m.renderer = nil
	} else {
		m.renderer = renderer
	}
}

// refresh re-renders the transcript into the viewport, pinned to the
// bottom.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	var sb strings.Builder
	for _, b := range m.transcript {
		switch b.role {
		case roleUser:
			sb.WriteString(styleUserLabel.Render("You") + "  " + b.text + "\n\n")
		case rolePending:
			sb.WriteString(styleAssistantLabel.Render("AI") + "  " + stylePending.Render(b.text) + "\n\n")
		case roleAssistant:
			sb.WriteString(styleAssistantLabel.Render("AI") + "  " + m.renderMarkdown(b.text) + "\n")
		case roleNotice:
			sb.WriteString(styleNotice.Render(b.text) + "\n\n")
		}
	}
	m.viewport.SetContent(sb.String())
	m.viewport.GotoBottom()
}

// renderMarkdown renders a finalized reply; plain text on failure.
func (m *Model) renderMarkdown(text string) string {
	if m.renderer == nil {
		return text
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n") + "\n"
}

// findPending locates the pending bubble with the given handle.
func (m *Model) findPending(id domain.PlaceholderID) *bubble {
	for i := range m.transcript {
		if m.transcript[i].role == rolePending && m.transcript[i].id == id {
			return &m.transcript[i]
		}
	}
	return nil
}
