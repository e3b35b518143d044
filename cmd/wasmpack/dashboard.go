package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/wasm-pack/config"
	"github.com/wippyai/wasm-pack/orchestrator"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	addrStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const historySize = 8

type eventMsg orchestrator.Event

type startedMsg struct {
	err error
}

type dashboardModel struct {
	lastErr  error
	err      error
	events   <-chan orchestrator.Event
	pkg      string
	address  string
	history  []orchestrator.Event
	spinner  spinner.Model
	builds   int
	failures int
	building bool
}

func newDashboardModel(events <-chan orchestrator.Event) *dashboardModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = addrStyle
	return &dashboardModel{
		events:   events,
		spinner:  s,
		building: true,
	}
}

func (m *dashboardModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForEvent)
}

func (m *dashboardModel) waitForEvent() tea.Msg {
	ev, ok := <-m.events
	if !ok {
		return nil
	}
	return eventMsg(ev)
}

func (m *dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}

	case startedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.building = false
		}

	case eventMsg:
		ev := orchestrator.Event(msg)
		m.record(ev)
		return m, m.waitForEvent

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *dashboardModel) record(ev orchestrator.Event) {
	switch ev.Kind {
	case orchestrator.EventDiscovered:
		m.pkg = ev.Package
	case orchestrator.EventBuildStarted:
		m.building = true
	case orchestrator.EventBuildSucceeded:
		m.building = false
		m.builds++
		m.lastErr = nil
	case orchestrator.EventBuildFailed:
		m.building = false
		m.failures++
		m.lastErr = ev.Err
	case orchestrator.EventServing:
		m.address = ev.Address
	}

	m.history = append(m.history, ev)
	if len(m.history) > historySize {
		m.history = m.history[len(m.history)-historySize:]
	}
}

func (m *dashboardModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("wasmpack"))
	if m.pkg != "" {
		b.WriteString(" ")
		b.WriteString(m.pkg)
	}
	b.WriteString("\n\n")

	if m.address != "" {
		b.WriteString("Serving at ")
		b.WriteString(addrStyle.Render("http://" + m.address))
		b.WriteString("\n")
	}

	switch {
	case m.building:
		b.WriteString(m.spinner.View())
		b.WriteString(" building...")
	case m.lastErr != nil:
		b.WriteString(errorStyle.Render("last build failed, serving previous artifacts"))
	default:
		b.WriteString(okStyle.Render("up to date"))
	}
	fmt.Fprintf(&b, "  (%d ok, %d failed)\n\n", m.builds, m.failures)

	for _, ev := range m.history {
		b.WriteString(formatEvent(ev))
		b.WriteString("\n")
	}
	if m.lastErr != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(m.lastErr.Error()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("q quit"))
	return b.String()
}

func formatEvent(ev orchestrator.Event) string {
	line := helpStyle.Render(ev.Time.Format("15:04:05")) + " " + ev.Kind.String()
	switch ev.Kind {
	case orchestrator.EventBuildSucceeded:
		line += okStyle.Render(fmt.Sprintf(" %s, %d renames", ev.Duration.Round(time.Millisecond), ev.Renames))
	case orchestrator.EventBuildFailed, orchestrator.EventBundleFailed:
		line = errorStyle.Render(line)
	case orchestrator.EventServing:
		line += " " + addrStyle.Render(ev.Address)
	}
	return line
}

func runDashboard(ctx context.Context, cfg *config.Config, port int) error {
	logger, err := setup(cfg, nil)
	if err != nil {
		return err
	}

	events := make(chan orchestrator.Event)
	done := make(chan struct{})
	observer := func(ev orchestrator.Event) {
		select {
		case events <- ev:
		case <-done:
		}
	}

	o := orchestrator.New(cfg, logger,
		orchestrator.WithObserver(observer),
		orchestrator.WithExecutor(quietExecutor(logger)))

	// Quitting cancels an initial build still in progress.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newDashboardModel(events), tea.WithAltScreen())

	started := make(chan func(), 1)
	go func() {
		stop, err := o.Watch(ctx, cfg.OutDir, port)
		started <- stop
		p.Send(startedMsg{err: err})
	}()

	go func() {
		select {
		case <-ctx.Done():
			p.Quit()
		case <-done:
		}
	}()

	_, err = p.Run()
	close(done)
	cancel()
	if stop := <-started; stop != nil {
		stop()
	}
	return err
}
