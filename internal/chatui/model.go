package chatui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	userStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	faintStyle = lipgloss.NewStyle().Faint(true)
)

// replyMsg carries a server reply back into the update loop.
type replyMsg struct {
	text string
	err  error
}

// sendCmd posts query to the server off the UI goroutine.
func sendCmd(client *Client, query string) tea.Cmd {
	return func() tea.Msg {
		text, err := client.Send(context.Background(), query)
		return replyMsg{text: text, err: err}
	}
}

// Model is the Bubble Tea model for the chat session.
type Model struct {
	client   *Client
	viewport viewport.Model
	input    textarea.Model
	history  []string
	waiting  bool
	ready    bool
	width    int
	height   int
}

// NewModel creates the chat model bound to client.
func NewModel(client *Client) Model {
	input := textarea.New()
	input.Placeholder = "Ask about your flow… (Enter to send, Ctrl+C to quit)"
	input.Prompt = "> "
	input.SetHeight(1)
	input.ShowLineNumbers = false
	input.Focus()

	return Model{
		client: client,
		input:  input,
		history: []string{
			faintStyle.Render("Connected to " + client.baseURL + ". Ask away."),
		},
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		inputHeight := 3
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-inputHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - inputHeight
		}
		m.input.SetWidth(msg.Width - 2)
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			query := strings.TrimSpace(m.input.Value())
			if query == "" || m.waiting {
				return m, nil
			}
			if query == "quit" || query == "exit" {
				return m, tea.Quit
			}
			m.input.Reset()
			m.waiting = true
			m.history = append(m.history,
				userStyle.Render("you")+" "+query,
				faintStyle.Render("thinking…"))
			m.refreshViewport()
			return m, sendCmd(m.client, query)
		}

	case replyMsg:
		m.waiting = false
		// Replace the "thinking…" placeholder with the actual reply.
		m.history = m.history[:len(m.history)-1]
		if msg.err != nil {
			m.history = append(m.history, errStyle.Render("error: "+msg.err.Error()))
		} else {
			m.history = append(m.history, botStyle.Render("flowchat")+"\n"+msg.text)
		}
		m.history = append(m.history, "")
		m.refreshViewport()
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "loading…"
	}
	return fmt.Sprintf("%s\n\n%s", m.viewport.View(), m.input.View())
}

func (m *Model) refreshViewport() {
	m.viewport.SetContent(strings.Join(m.history, "\n"))
	m.viewport.GotoBottom()
}

// Run starts the interactive chat session and blocks until it exits.
func Run(serverURL, sessionID string) error {
	client := NewClient(serverURL, sessionID)
	p := tea.NewProgram(NewModel(client), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat session failed: %w", err)
	}
	return nil
}
