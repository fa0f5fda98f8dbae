// Package tui is an interactive terminal console for asking questions about
// a project's data.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Veraticus/spice-insights/internal/chat"
	"github.com/Veraticus/spice-insights/internal/common"
)

// Asker answers natural-language questions.
type Asker interface {
	Ask(ctx context.Context, question, userID string) (*chat.Answer, error)
}

// exchange is one question and its outcome.
type exchange struct {
	question string
	answer   string
	sql      string
	err      string
	took     time.Duration
	pending  bool
}

// answerMsg carries the result of an Ask call.
type answerMsg struct {
	answer *chat.Answer
	err    error
	took   time.Duration
}

// Model holds the console state.
type Model struct {
	ctx       context.Context
	asker     Asker
	keymap    KeyMap
	config    Config
	input     textinput.Model
	viewport  viewport.Model
	exchanges []exchange
	width     int
	height    int
	quitting  bool
}

// NewModel creates a console model.
func NewModel(ctx context.Context, asker Asker, cfg Config) Model {
	input := textinput.New()
	input.Placeholder = "Ask about your spending..."
	input.Prompt = "> "
	input.CharLimit = 500
	input.Focus()

	m := Model{
		ctx:      ctx,
		asker:    asker,
		keymap:   DefaultKeyMap(),
		config:   cfg,
		input:    input,
		viewport: viewport.New(cfg.Width, 1),
	}
	m.resize(cfg.Width, cfg.Height)
	return m
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.refresh()
		return m, nil

	case answerMsg:
		m.settle(msg)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keymap.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keymap.Send):
			return m.send()
		case key.Matches(msg, m.keymap.ToggleSQL):
			m.config.ShowSQL = !m.config.ShowSQL
			m.refresh()
			return m, nil
		case key.Matches(msg, m.keymap.Clear):
			if !m.busy() {
				m.exchanges = nil
				m.refresh()
			}
			return m, nil
		case key.Matches(msg, m.keymap.ScrollUp), key.Matches(msg, m.keymap.ScrollDown):
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) send() (tea.Model, tea.Cmd) {
	question := m.input.Value()
	if question == "" || m.busy() {
		return m, nil
	}
	m.input.SetValue("")
	m.exchanges = append(m.exchanges, exchange{question: question, pending: true})
	m.refresh()
	return m, m.ask(question)
}

func (m Model) ask(question string) tea.Cmd {
	asker, ctx, userID := m.asker, m.ctx, m.config.UserID
	return func() tea.Msg {
		start := time.Now()
		answer, err := asker.Ask(ctx, question, userID)
		return answerMsg{answer: answer, err: err, took: time.Since(start)}
	}
}

func (m *Model) settle(msg answerMsg) {
	if len(m.exchanges) == 0 {
		return
	}
	last := &m.exchanges[len(m.exchanges)-1]
	last.pending = false
	last.took = msg.took
	if msg.err != nil {
		last.err = common.UserMessage(msg.err)
		return
	}
	if msg.answer != nil {
		last.answer = msg.answer.QueryText
		last.sql = msg.answer.SQL
	}
}

func (m Model) busy() bool {
	return len(m.exchanges) > 0 && m.exchanges[len(m.exchanges)-1].pending
}

func (m *Model) resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	m.width, m.height = width, height
	// title, input box and status line
	chrome := 6
	m.viewport.Width = width - 2
	m.viewport.Height = max(height-chrome, 1)
	m.input.Width = max(width-6, 10)
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}
