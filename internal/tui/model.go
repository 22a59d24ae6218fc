// Package tui is the interactive question loop shown when stdin is a terminal.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"chat-with-docs/internal/helper"
	"chat-with-docs/internal/models"
)

// QuitCommand ends the session when submitted on its own.
const QuitCommand = "q"

// Answerer is the TUI-facing subset of the query engine.
type Answerer interface {
	Query(ctx context.Context, query string, k int) (*models.Answer, error)
}

type answerMsg struct {
	query  string
	answer *models.Answer
	err    error
}

// Model is the Bubble Tea model for the interactive query session.
type Model struct {
	ctx         context.Context
	engine      Answerer
	topK        int
	showContext bool

	input    textinput.Model
	spinner  spinner.Model
	viewport viewport.Model
	history  []string
	busy     bool
	ready    bool
	status   string
}

type Option func(*Model)

func WithShowContext(show bool) Option {
	return func(m *Model) { m.showContext = show }
}

func New(ctx context.Context, engine Answerer, topK int, opts ...Option) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, or q to quit"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		ctx:      ctx,
		engine:   engine,
		topK:     topK,
		input:    ti,
		spinner:  sp,
		viewport: viewport.New(0, 0),
		status:   "Ready.",
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header, status, input box
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved)
		m.input.Width = max(10, msg.Width-6)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			q := strings.TrimSpace(m.input.Value())
			if q == QuitCommand {
				return m, tea.Quit
			}
			if q == "" || m.busy {
				return m, nil
			}
			m.input.Reset()
			m.busy = true
			m.status = fmt.Sprintf("Searching for %q", q)
			return m, tea.Batch(m.spinner.Tick, m.ask(q))
		}
		if msg.Type == tea.KeyPgUp || msg.Type == tea.KeyPgDown {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case answerMsg:
		m.busy = false
		entry := promptStyle.Render("> " + msg.query)
		if msg.err != nil {
			m.status = "Error"
			entry += "\n" + helper.ErrorStyle.Render(msg.err.Error())
		} else {
			m.status = fmt.Sprintf("Answered from %d sources.", len(msg.answer.Sources))
			entry += "\n" + helper.FormatAnswer(msg.answer, m.showContext)
		}
		m.history = append(m.history, entry)
		m.refresh()
		m.viewport.GotoBottom()
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := helper.TitleStyle.Render("chat-with-docs")
	status := helper.SuccessStyle.Render(m.status)
	if m.busy {
		status = m.spinner.View() + " " + helper.MutedStyle.Render(m.status)
	}
	return header + "\n" + m.viewport.View() + "\n" + queryBoxStyle.Render(m.input.View()) + "\n" + status
}

func (m *Model) refresh() {
	if len(m.history) == 0 {
		m.viewport.SetContent(helper.MutedStyle.Render("No questions yet."))
		return
	}
	m.viewport.SetContent(strings.Join(m.history, "\n\n"))
}

func (m Model) ask(q string) tea.Cmd {
	ctx, engine, k := m.ctx, m.engine, m.topK
	return func() tea.Msg {
		ans, err := engine.Query(ctx, q, k)
		return answerMsg{query: q, answer: ans, err: err}
	}
}

var (
	queryBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	promptStyle   = lipgloss.NewStyle().Bold(true)
)

// Run starts the full-screen session and blocks until the user quits.
func Run(ctx context.Context, engine Answerer, topK int, opts ...Option) error {
	p := tea.NewProgram(New(ctx, engine, topK, opts...), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
