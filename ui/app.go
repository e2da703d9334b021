// Package ui renders the chat session as a terminal interface: message
// feed, roster sidebar, and an input line.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/parleychat/parley/pkg/client"
	"github.com/parleychat/parley/pkg/model"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	sidebarStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
	authorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	faintStyle  = lipgloss.NewStyle().Faint(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

const sidebarWidth = 24

// Messages pushed into the program by the engine callbacks.
type (
	rosterMsg struct {
		usernames []string
		count     int
	}
	logMsg        struct{ messages []model.Message }
	engineErrMsg  struct{ err error }
	disconnectMsg struct{ reason string }
	sentMsg       struct{ err error }
)

type appModel struct {
	engine *client.Engine
	input  textinput.Model

	usernames []string
	count     int
	messages  []model.Message

	width  int
	height int
	status string
}

func newAppModel(engine *client.Engine) appModel {
	input := textinput.New()
	input.Placeholder = "type a message and press enter"
	input.CharLimit = model.MaxContentLen
	input.Focus()

	return appModel{
		engine:    engine,
		input:     input,
		usernames: engine.Usernames(),
		count:     engine.Count(),
		messages:  engine.Messages(),
	}
}

func (m appModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - sidebarWidth - 8
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			content := strings.TrimSpace(m.input.Value())
			if content == "" {
				return m, nil
			}
			m.input.Reset()
			m.status = ""
			engine := m.engine
			return m, func() tea.Msg { return sentMsg{err: engine.Send(content)} }
		}

	case rosterMsg:
		m.usernames = msg.usernames
		m.count = msg.count
		return m, nil

	case logMsg:
		m.messages = msg.messages
		return m, nil

	case sentMsg:
		if msg.err != nil {
			m.status = errorStyle.Render(msg.err.Error())
		}
		return m, nil

	case engineErrMsg:
		m.status = errorStyle.Render(msg.err.Error())
		return m, nil

	case disconnectMsg:
		m.status = errorStyle.Render("disconnected: " + msg.reason)
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m appModel) View() string {
	if m.width == 0 {
		return "loading..."
	}

	feedHeight := m.height - 5
	if feedHeight < 1 {
		feedHeight = 1
	}
	feedWidth := m.width - sidebarWidth - 4

	feed := m.renderFeed(feedHeight, feedWidth)
	sidebar := m.renderSidebar(feedHeight)
	body := lipgloss.JoinHorizontal(lipgloss.Top, feed, sidebar)

	header := titleStyle.Render("parley") + faintStyle.Render(
		fmt.Sprintf("  %s in session", m.engine.Username()))

	lines := []string{header, body, "> " + m.input.View()}
	if m.status != "" {
		lines = append(lines, m.status)
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m appModel) renderFeed(height, width int) string {
	msgs := m.messages
	if len(msgs) > height {
		msgs = msgs[len(msgs)-height:]
	}

	var b strings.Builder
	for _, msg := range msgs {
		line := authorStyle.Render(msg.Username) + " " + msg.Content
		b.WriteString(lipgloss.NewStyle().Width(width).MaxHeight(1).Render(line))
		b.WriteString("\n")
	}
	return lipgloss.NewStyle().Width(width).Height(height).Render(b.String())
}

func (m appModel) renderSidebar(height int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("online (%d)", m.count)))
	b.WriteString("\n")
	for _, name := range m.usernames {
		if name == m.engine.Username() {
			b.WriteString(authorStyle.Render(name) + faintStyle.Render(" (you)"))
		} else {
			b.WriteString(name)
		}
		b.WriteString("\n")
	}
	return sidebarStyle.Width(sidebarWidth - 2).Height(height).Render(b.String())
}

// Run wires the engine's callbacks into a bubbletea program and blocks
// until the user quits or the session connection is lost.
func Run(engine *client.Engine) error {
	p := tea.NewProgram(newAppModel(engine), tea.WithAltScreen())

	engine.SetOnRoster(func(usernames []string, count int) {
		p.Send(rosterMsg{usernames: usernames, count: count})
	})
	engine.SetOnMessages(func(messages []model.Message) {
		p.Send(logMsg{messages: messages})
	})
	engine.SetOnError(func(err error) {
		p.Send(engineErrMsg{err: err})
	})
	engine.SetOnDisconnect(func(reason string) {
		p.Send(disconnectMsg{reason: reason})
	})
	defer func() {
		engine.SetOnRoster(nil)
		engine.SetOnMessages(nil)
		engine.SetOnError(nil)
		engine.SetOnDisconnect(nil)
	}()

	_, err := p.Run()
	return err
}
