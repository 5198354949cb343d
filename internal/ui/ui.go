package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/fanx/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	RunView ViewState = iota
	ResultView
)

// recentMessages is how many progress messages the run view keeps.
const recentMessages = 6

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	cancel       context.CancelFunc
	view         ViewState
	engine       tasks.Engine
	opts         tasks.RunOptions
	width        int
	height       int
	spinner      spinner.Model
	bar          progress.Model
	stageList    list.Model
	progressChan chan tasks.ProgressUpdate
	done         chan runComplete
	progress     tasks.ProgressUpdate
	messages     []string
	result       *tasks.RunResult
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model that runs engine with opts once started.
func NewModel(ctx context.Context, engine tasks.Engine, opts tasks.RunOptions) *Model {
	ctx, cancel := context.WithCancel(ctx)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.heading.UnsetMarginBottom()

	return &Model{
		ctx:     ctx,
		cancel:  cancel,
		view:    RunView,
		engine:  engine,
		opts:    opts,
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient()),
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Result returns the outcome of the run once the program has exited.
func (m *Model) Result() (*tasks.RunResult, error) {
	return m.result, m.err
}

// Init starts the run and the spinner.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startRun())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(msg.Width-4, 10)
		if m.view == ResultView {
			m.stageList.SetSize(msg.Width-4, msg.Height/2)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case spinner.TickMsg:
		if m.view != RunView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		switch msg.kind {
		case MsgProgressUpdate:
			update := msg.data.(tasks.ProgressUpdate)
			m.progress = update
			m.pushMessage(update.Message)
			return m, m.waitForProgress()

		case MsgRunComplete:
			done := msg.data.(runComplete)
			m.result = done.result
			m.err = done.err
			m.view = ResultView
			if m.result != nil {
				m.stageList = list.New(stageItems(m.result.Timings), list.NewDefaultDelegate(), max(m.width-4, 20), max(m.height/2, 10))
				m.stageList.Title = "Stages"
				m.stageList.SetShowHelp(false)
			}
			return m, nil
		}
	}

	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case RunView:
		return m.renderRun()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		m.cancel()
		if m.view == RunView {
			m.err = context.Canceled
		}
		return m, tea.Quit
	case key.Matches(msg, m.keys.help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	if m.view == ResultView && m.result != nil {
		var cmd tea.Cmd
		m.stageList, cmd = m.stageList.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) pushMessage(message string) {
	if message == "" {
		return
	}
	m.messages = append(m.messages, message)
	if len(m.messages) > recentMessages {
		m.messages = m.messages[len(m.messages)-recentMessages:]
	}
}

func (m *Model) startRun() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 100)
	m.done = make(chan runComplete, 1)
	progressChan, done := m.progressChan, m.done

	go func() {
		result, err := m.engine.Run(m.ctx, m.opts, progressChan)
		done <- runComplete{result, err}
		close(progressChan)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progressChan, done := m.progressChan, m.done
	return func() tea.Msg {
		update, ok := <-progressChan
		if !ok {
			d := <-done
			return runCompleteMsg(d.result, d.err)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) percent() float64 {
	if m.progress.Total <= 0 {
		return 0
	}
	return min(float64(m.progress.Step)/float64(m.progress.Total), 1)
}

func (m *Model) renderRun() string {
	title := styles.heading.Render("Enriching " + m.opts.Target.DocumentID(false))

	phase := m.progress.Phase.Title()
	if phase == "" || m.progress.Message == "" {
		phase = "Starting..."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s %s\n\n%s\n\n", title, m.spinner.View(), phase, m.bar.ViewAs(m.percent()))
	for _, message := range m.messages {
		b.WriteString(styles.detail.Render(message) + "\n")
	}
	b.WriteString("\n" + m.help.View(m.keys))
	return b.String()
}

func (m *Model) renderResult() string {
	if m.err != nil {
		return styles.failed.Render(fmt.Sprintf("Run failed: %v\n\nPress q to quit", m.err))
	}

	if m.result == nil {
		return styles.failed.Render("No result available\n\nPress q to quit")
	}

	r := m.result
	title := styles.done.Render("✓ Run Complete!")
	info := fmt.Sprintf(
		"\nTarget: %s\nCustomers: %d (%d not found, %d failed)\nLikes: %d unique, %d compacted\nArtists: %d with fans, %d compacted\nPublished: %s",
		r.Target.DocumentID(false),
		r.Customers,
		len(r.CustomerNotFound),
		len(r.CustomerFailed),
		len(r.Likes),
		len(r.CompactedLikes),
		len(r.FilteredArtists),
		len(r.CompactedArtists),
		strings.Join(r.Published, ", "),
	)

	var warnings string
	if failed := len(r.CustomerFailed) + len(r.TrackFailed) + len(r.ImageFailed); failed > 0 {
		warnings = "\n\n" + styles.retried.Render(fmt.Sprintf("%d lookups failed after retries; see the run log", failed))
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.up, m.keys.down, m.keys.quit})
	return fmt.Sprintf("%s\n%s%s\n\n%s\n\n%s", title, info, warnings, m.stageList.View(), helpView)
}
