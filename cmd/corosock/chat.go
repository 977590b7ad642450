package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/wippyai/corosock"
	"github.com/wippyai/corosock/errors"
	"github.com/wippyai/corosock/socket"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	sentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	recvStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const chatHistory = 200

func newChatCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat HOST:PORT",
		Short: "Interactive line-based TCP session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, port, err := parseEndpoint(args[0])
			if err != nil {
				return err
			}
			c, err := corosock.Dial(cmd.Context(), addr, port, a.socketOptions()...)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			p := tea.NewProgram(newChatModel(ctx, c), tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}
}

type chatLine struct {
	text  string
	style lipgloss.Style
}

type chatModel struct {
	ctx    context.Context
	conn   *socket.Socket
	title  string
	input  textinput.Model
	lines  []chatLine
	err    error
	closed bool
}

type receivedMsg struct {
	data []byte
	err  error
}

type sentMsg struct {
	text string
	err  error
}

func newChatModel(ctx context.Context, c *socket.Socket) *chatModel {
	ti := textinput.New()
	ti.Placeholder = "message"
	ti.Prompt = "> "
	ti.Width = 60
	ti.Focus()
	return &chatModel{
		ctx:   ctx,
		conn:  c,
		title: fmt.Sprintf("%s -> %s", c.LocalEndpoint(), c.PeerEndpoint()),
		input: ti,
	}
}

func (m *chatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.receive)
}

func (m *chatModel) receive() tea.Msg {
	buf := make([]byte, 4096)
	n, err := m.conn.Recv(m.ctx, buf, false)
	return receivedMsg{data: buf[:n], err: err}
}

func (m *chatModel) send(text string) tea.Cmd {
	return func() tea.Msg {
		_, err := m.conn.Send(m.ctx, []byte(text+"\n"), true)
		return sentMsg{text: text, err: err}
	}
}

func (m *chatModel) push(text string, style lipgloss.Style) {
	for _, l := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		m.lines = append(m.lines, chatLine{text: l, style: style})
	}
	if len(m.lines) > chatHistory {
		m.lines = m.lines[len(m.lines)-chatHistory:]
	}
}

func (m *chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.conn.Close()
			return m, tea.Quit
		case "enter":
			text := m.input.Value()
			if text == "" || m.closed {
				return m, nil
			}
			m.input.Reset()
			return m, m.send(text)
		}

	case receivedMsg:
		if len(msg.data) > 0 {
			m.push(string(msg.data), recvStyle)
		}
		if msg.err != nil {
			m.closed = true
			if errors.KindOf(msg.err) != errors.KindRemoteClosed {
				m.err = msg.err
			}
			m.push("connection closed", helpStyle)
			return m, nil
		}
		return m, m.receive

	case sentMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.push(msg.text, sentStyle)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *chatModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("corosock chat"))
	b.WriteString(" ")
	b.WriteString(m.title)
	b.WriteString("\n\n")

	for _, l := range m.lines {
		b.WriteString(l.style.Render(l.text))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	}
	if !m.closed {
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("enter send • esc quit"))
	return b.String()
}
