package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"document-chat/internal/models"
	"document-chat/internal/session"
)

// SessionPort is the TUI-facing subset of a chat session.
type SessionPort interface {
	Upload(ctx context.Context, filePath string) error
	Ask(ctx context.Context, question string) (models.Answer, error)
	Cancel()
	State() session.State
	Document() string
	Transcript() []models.ChatTurn
}

type focus int

const (
	focusUpload focus = iota
	focusChat
)

type uploadDoneMsg struct {
	path string
	err  error
}

type answerDoneMsg struct {
	err error
}

// Model is the Bubble Tea model of the chat screen.
type Model struct {
	ctx     context.Context
	session SessionPort

	upload   textinput.Model
	chat     textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	focus     focus
	busy      bool
	busyLabel string
	status    string
	failed    bool
	ready     bool
	width     int
}

// New creates the chat screen for s. ctx bounds every pipeline call.
func New(ctx context.Context, s SessionPort) Model {
	up := textinput.New()
	up.Prompt = "document> "
	up.Placeholder = "Path to a PDF, DOCX, PPTX, XLSX, Markdown or text file"
	up.CharLimit = 0
	up.Focus()

	ch := textinput.New()
	ch.Prompt = "ask> "
	ch.Placeholder = "Ask a question about the document..."
	ch.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		ctx:      ctx,
		session:  s,
		upload:   up,
		chat:     ch,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		status:   "Please upload a document to start chatting.",
	}
	if s.State() == session.Ready {
		m.status = fmt.Sprintf("Loaded %q. Ask away.", s.Document())
		m.setFocus(focusChat)
	}
	return m
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		_, bh := boxStyle.GetFrameSize()
		reserved := 2 + 2*(1+bh) + 1 // header lines, two input boxes, status
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-bh)
		m.upload.Width = max(10, msg.Width-len(m.upload.Prompt)-4)
		m.chat.Width = max(10, msg.Width-len(m.chat.Prompt)-4)
		m.refreshTranscript()
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case uploadDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.setStatus(fmt.Sprintf("Error processing %s: %v", msg.path, msg.err), true)
			m.setFocus(focusUpload)
			return m, nil
		}
		m.setStatus(fmt.Sprintf("Document %q ready for chat.", m.session.Document()), false)
		m.upload.Reset()
		m.setFocus(focusChat)
		m.refreshTranscript()
		return m, nil

	case answerDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.setStatus(fmt.Sprintf("Error getting answer: %v", msg.err), true)
		} else {
			m.setStatus("", false)
		}
		m.refreshTranscript()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			m.session.Cancel()
			return m, tea.Quit
		case tea.KeyEsc:
			if m.busy {
				m.session.Cancel()
				m.setStatus("Cancelling...", false)
			}
			return m, nil
		case tea.KeyTab, tea.KeyShiftTab:
			if m.focus == focusUpload && m.session.State() == session.Ready {
				m.setFocus(focusChat)
			} else {
				m.setFocus(focusUpload)
			}
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		case tea.KeyEnter:
			return m.submit()
		}
	}

	var cmd tea.Cmd
	if m.focus == focusUpload {
		m.upload, cmd = m.upload.Update(msg)
	} else {
		m.chat, cmd = m.chat.Update(msg)
	}
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	switch m.focus {
	case focusUpload:
		path := strings.TrimSpace(m.upload.Value())
		if path == "" {
			return m, nil
		}
		m.busy, m.busyLabel = true, "Processing document... This might take a moment."
		m.setStatus("", false)
		return m, tea.Batch(m.spinner.Tick, uploadCmd(m.ctx, m.session, path))
	default:
		question := strings.TrimSpace(m.chat.Value())
		if question == "" {
			return m, nil
		}
		m.chat.Reset()
		m.busy, m.busyLabel = true, "Thinking..."
		m.setStatus("", false)
		return m, tea.Batch(m.spinner.Tick, askCmd(m.ctx, m.session, question))
	}
}

func uploadCmd(ctx context.Context, s SessionPort, path string) tea.Cmd {
	return func() tea.Msg {
		return uploadDoneMsg{path: path, err: s.Upload(ctx, path)}
	}
}

func askCmd(ctx context.Context, s SessionPort, question string) tea.Cmd {
	return func() tea.Msg {
		_, err := s.Ask(ctx, question)
		return answerDoneMsg{err: err}
	}
}

func (m *Model) setFocus(f focus) {
	m.focus = f
	if f == focusUpload {
		m.chat.Blur()
		m.upload.Focus()
	} else {
		m.upload.Blur()
		m.chat.Focus()
	}
}

func (m *Model) setStatus(s string, failed bool) {
	m.status, m.failed = s, failed
}

func (m *Model) refreshTranscript() {
	m.viewport.SetContent(renderTranscript(m.session.Transcript(), m.viewport.Width))
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render("Document Chat")
	doc := "No document loaded"
	if name := m.session.Document(); name != "" {
		doc = "Chatting with " + name
	}
	sub := subtleStyle.Render(doc + "  ·  tab switch input · enter submit · esc cancel · ctrl+c quit")

	upload := boxStyle.Render(m.upload.View())
	chat := boxStyle.Render(m.chat.View())
	if m.focus == focusUpload {
		upload = focusedBoxStyle.Render(m.upload.View())
	} else {
		chat = focusedBoxStyle.Render(m.chat.View())
	}

	status := statusStyle.Render(m.status)
	if m.failed {
		status = errorStyle.Render(m.status)
	}
	if m.busy {
		status = m.spinner.View() + " " + statusStyle.Render(m.busyLabel)
	}
	return strings.Join([]string{header, sub, upload, boxStyle.Render(m.viewport.View()), chat, status}, "\n")
}

func renderTranscript(turns []models.ChatTurn, width int) string {
	if len(turns) == 0 {
		return subtleStyle.Render("No messages yet.")
	}
	wrap := lipgloss.NewStyle().Width(max(20, width-4))
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch {
		case t.Role == models.RoleUser:
			b.WriteString(userStyle.Render("You"))
		case t.Failed:
			b.WriteString(errorStyle.Render("Assistant"))
		default:
			b.WriteString(assistantStyle.Render("Assistant"))
		}
		b.WriteString("\n")
		b.WriteString(wrap.Render(t.Content))
	}
	return b.String()
}

// Run starts the program and blocks until the user quits.
func Run(ctx context.Context, s SessionPort) error {
	_, err := tea.NewProgram(New(ctx, s), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

var (
	titleStyle      = lipgloss.NewStyle().Bold(true)
	subtleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	boxStyle        = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	focusedBoxStyle = boxStyle.BorderForeground(lipgloss.Color("11"))
)
