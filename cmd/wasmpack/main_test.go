package main

import (
	stderrors "errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/wippyai/wasm-pack/orchestrator"
)

func TestParsePort(t *testing.T) {
	tests := []struct {
		args    []string
		want    int
		wantErr bool
	}{
		{nil, 0, false},
		{[]string{"0"}, 0, false},
		{[]string{"8080"}, 8080, false},
		{[]string{"-1"}, 0, true},
		{[]string{"70000"}, 0, true},
		{[]string{"http"}, 0, true},
	}
	for _, tt := range tests {
		got, err := parsePort(tt.args)
		if (err != nil) != tt.wantErr {
			t.Errorf("parsePort(%v) error = %v", tt.args, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parsePort(%v) = %d, want %d", tt.args, got, tt.want)
		}
	}
}

func TestRootCommandShape(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	if !names["pack"] || !names["inspect"] {
		t.Errorf("missing subcommands: %v", names)
	}
	if root.PersistentFlags().Lookup("out-dir") == nil {
		t.Error("out-dir flag not registered")
	}
	if err := root.Args(root, []string{"1", "2"}); err == nil {
		t.Error("more than one positional argument should be rejected")
	}
}

func TestDashboardRecordsEvents(t *testing.T) {
	m := newDashboardModel(make(chan orchestrator.Event))
	now := time.Now()

	for _, ev := range []orchestrator.Event{
		{Kind: orchestrator.EventDiscovered, Package: "engine", Time: now},
		{Kind: orchestrator.EventBuildStarted, Time: now},
		{Kind: orchestrator.EventBuildSucceeded, Duration: 1500 * time.Millisecond, Renames: 12, Time: now},
		{Kind: orchestrator.EventServing, Address: "127.0.0.1:8080", Time: now},
	} {
		m.Update(eventMsg(ev))
	}

	view := m.View()
	for _, want := range []string{"engine", "http://127.0.0.1:8080", "up to date", "1 ok, 0 failed", "12 renames"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	m.Update(eventMsg{Kind: orchestrator.EventBuildFailed, Err: stderrors.New("E0308 mismatched types"), Time: now})
	view = m.View()
	if !strings.Contains(view, "E0308") || !strings.Contains(view, "1 failed") {
		t.Errorf("failure not shown:\n%s", view)
	}
}

func TestDashboardHistoryBounded(t *testing.T) {
	m := newDashboardModel(make(chan orchestrator.Event))
	for range historySize * 3 {
		m.Update(eventMsg{Kind: orchestrator.EventBuildStarted, Time: time.Now()})
	}
	if len(m.history) != historySize {
		t.Errorf("history = %d, want %d", len(m.history), historySize)
	}
}

func TestDashboardStartError(t *testing.T) {
	m := newDashboardModel(make(chan orchestrator.Event))
	m.Update(startedMsg{err: stderrors.New("there's no wasm package")})
	if !strings.Contains(m.View(), "no wasm package") {
		t.Errorf("start error not shown:\n%s", m.View())
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected quit message")
	}
}
