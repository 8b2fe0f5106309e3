package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const asciiArt = `
 █░█ █▀▄▀█ █▀█
 █▀█ █░▀░█ █▀▄
`

// Styles
var (
	asciiStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	pathStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	inputStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	statusReloaded = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	statusFailed = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	fileStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// Messages
type reloadMsg Reload

type watchErrMsg struct {
	err error
}

// Model
type dashboard struct {
	dir      string
	input    string
	source   string
	delay    time.Duration
	reloads  []Reload
	err      error
	viewport viewport.Model
	ready    bool
	width    int
	height   int
}

func newDashboard(dir, source string, settings *Settings) dashboard {
	return dashboard{
		dir:    dir,
		input:  settings.Input,
		source: source,
		delay:  settings.Delay(),
	}
}

func (m dashboard) Init() tea.Cmd {
	return tea.EnterAltScreen
}

func (m dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			m.viewport.LineUp(1)
		case "down", "j":
			m.viewport.LineDown(1)
		case "pgup":
			m.viewport.HalfViewUp()
		case "pgdown":
			m.viewport.HalfViewDown()
		case "c":
			m.reloads = nil
			m.viewport.SetContent(m.renderBody())
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 7 // ASCII art + path + script line + spacing
		footerHeight := 2 // Help text
		verticalMargin := headerHeight + footerHeight

		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-verticalMargin)
			m.viewport.SetContent(m.renderBody())
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - verticalMargin
			m.viewport.SetContent(m.renderBody())
		}

	case reloadMsg:
		m.reloads = append(m.reloads, Reload(msg))
		if m.ready {
			m.viewport.SetContent(m.renderBody())
			m.viewport.GotoBottom()
		}

	case watchErrMsg:
		m.err = msg.err
		return m, tea.Quit
	}

	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m dashboard) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var header strings.Builder
	header.WriteString(asciiStyle.Render(asciiArt))
	header.WriteString("\n")
	header.WriteString(pathStyle.Render(m.dir))
	header.WriteString("\n\n")
	header.WriteString("Script: ")
	header.WriteString(inputStyle.Render(m.input))
	header.WriteString(helpStyle.Render(fmt.Sprintf(" (delay %s, config %s)", m.delay, m.source)))
	header.WriteString("\n\n")

	footer := helpStyle.Render("\nScroll: ↑/↓/j/k  c: clear  q: quit")

	return header.String() + m.viewport.View() + footer
}

func (m dashboard) renderBody() string {
	if len(m.reloads) == 0 {
		return helpStyle.Render("Waiting for changes...")
	}

	var body strings.Builder
	body.WriteString("Reloads:\n")
	for _, r := range m.reloads {
		stamp := timeStyle.Render(r.At.Format("15:04:05.000"))
		body.WriteString(fmt.Sprintf("  %s  %s  %s\n", stamp, reloadLabel(r), fileStyle.Render(r.Path)))
	}
	return body.String()
}

func reloadLabel(r Reload) string {
	if r.Err != nil {
		return statusFailed.Render(fmt.Sprintf("%-16s", "failed"))
	}
	return statusReloaded.Render(fmt.Sprintf("%-16s", fmt.Sprintf("pid %d", r.PID)))
}

// runDashboard watches in the background and shows every reload until the
// user quits or ctx is cancelled. Child output and console logging are
// discarded while the dashboard owns the terminal.
func runDashboard(ctx context.Context, dir, source string, settings *Settings, sub Subscriber) error {
	logger, closer, err := NewLogger(settings.Logging, io.Discard, io.Discard)
	if err != nil {
		return fmt.Errorf("%w: logging: %v", ErrConfigNotReadable, err)
	}
	defer closer.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newDashboard(dir, source, settings), tea.WithAltScreen(), tea.WithContext(ctx))

	r, err := NewReloader(settings, logger, &ExecSpawner{Interpreter: settings.Interpreter},
		WithObserver(func(rec Reload) { p.Send(reloadMsg(rec)) }))
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		err := r.Watch(ctx, sub)
		if err != nil {
			p.Send(watchErrMsg{err: err})
		}
		done <- err
	}()

	final, err := p.Run()
	cancel()
	watchErr := <-done

	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("dashboard: %w", err)
	}
	if m, ok := final.(dashboard); ok && m.err != nil {
		return m.err
	}
	return watchErr
}
