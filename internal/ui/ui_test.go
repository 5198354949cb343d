package ui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/fanx/internal/models"
	"github.com/desertthunder/fanx/internal/tasks"
)

type stubEngine struct {
	updates []tasks.ProgressUpdate
	result  *tasks.RunResult
	err     error
}

func (s *stubEngine) Run(ctx context.Context, opts tasks.RunOptions, progress chan<- tasks.ProgressUpdate) (*tasks.RunResult, error) {
	for _, u := range s.updates {
		progress <- u
	}
	return s.result, s.err
}

func testOpts() tasks.RunOptions {
	return tasks.RunOptions{Target: models.Target{Type: models.TargetEvent, ID: "623", Section: models.SectionAll}}
}

func testResult() *tasks.RunResult {
	return &tasks.RunResult{
		RunID:     "run-1",
		Target:    testOpts().Target,
		Customers: 3,
		Published: []string{"event-623-all-compact", "event-623-all"},
		Timings:   []tasks.StageTiming{{Phase: tasks.FetchCustomers, Elapsed: time.Second}},
	}
}

func TestModel(t *testing.T) {
	t.Run("drains progress then completes", func(t *testing.T) {
		engine := &stubEngine{
			updates: []tasks.ProgressUpdate{{Phase: tasks.FetchCustomers, Step: 1, Total: 3, Message: "[1/3] Fetching customers"}},
			result:  testResult(),
		}
		m := NewModel(context.Background(), engine, testOpts())

		msg := m.startRun()()
		got, ok := msg.(Msg)
		if !ok || got.kind != MsgProgressUpdate {
			t.Fatalf("expected progress message, got %#v", msg)
		}
		m.Update(got)
		if !strings.Contains(m.View(), "[1/3] Fetching customers") {
			t.Errorf("expected progress message in view, got:\n%s", m.View())
		}

		msg = m.waitForProgress()()
		got, ok = msg.(Msg)
		if !ok || got.kind != MsgRunComplete {
			t.Fatalf("expected completion message, got %#v", msg)
		}
		m.Update(got)

		if m.view != ResultView {
			t.Errorf("expected result view, got %d", m.view)
		}
		view := m.View()
		if !strings.Contains(view, "Run Complete") || !strings.Contains(view, "event-623-all") {
			t.Errorf("unexpected result view:\n%s", view)
		}

		result, err := m.Result()
		if err != nil || result.RunID != "run-1" {
			t.Errorf("unexpected result %v, %v", result, err)
		}
	})

	t.Run("shows run errors", func(t *testing.T) {
		m := NewModel(context.Background(), &stubEngine{}, testOpts())
		m.Update(runCompleteMsg(nil, errors.New("publish failed")))

		if !strings.Contains(m.View(), "Run failed: publish failed") {
			t.Errorf("unexpected view:\n%s", m.View())
		}
	})

	t.Run("keeps recent messages", func(t *testing.T) {
		m := NewModel(context.Background(), &stubEngine{}, testOpts())
		for i := range recentMessages + 3 {
			m.pushMessage(strings.Repeat("x", i+1))
		}
		if len(m.messages) != recentMessages {
			t.Errorf("expected %d messages, got %d", recentMessages, len(m.messages))
		}
		m.pushMessage("")
		if len(m.messages) != recentMessages {
			t.Error("empty messages should be ignored")
		}
	})

	t.Run("quit cancels the run", func(t *testing.T) {
		m := NewModel(context.Background(), &stubEngine{}, testOpts())
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
		if cmd == nil {
			t.Fatal("expected quit command")
		}
		if m.ctx.Err() == nil {
			t.Error("expected context to be cancelled")
		}
		if _, err := m.Result(); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("percent", func(t *testing.T) {
		m := NewModel(context.Background(), &stubEngine{}, testOpts())
		if m.percent() != 0 {
			t.Error("expected 0 without progress")
		}
		m.progress = tasks.ProgressUpdate{Step: 5, Total: 4}
		if m.percent() != 1 {
			t.Errorf("expected percent capped at 1, got %f", m.percent())
		}
	})
}
