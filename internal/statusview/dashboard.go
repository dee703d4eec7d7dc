// Package statusview renders a live bubbletea dashboard over the
// orchestrator's resumability state: current epoch, per-street clustering
// completeness, and the most recent training progress sample.
package statusview

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/lox/blueprint/internal/abstraction/store"
	"github.com/lox/blueprint/internal/orchestrator"
	"github.com/lox/blueprint/internal/sink"
	"github.com/lox/blueprint/internal/solver"
)

const pollInterval = time.Second

// progressMsg carries a training progress sample into the bubbletea loop.
type progressMsg solver.Progress

type tickMsg time.Time

// Model is the bubbletea model backing the dashboard.
type Model struct {
	ctx    context.Context
	sk     sink.Sink
	store  *store.Store
	logger *log.Logger

	status       orchestrator.Status
	statusErr    error
	lastProgress *solver.Progress

	quitting bool
}

// New returns a dashboard model polling sk/st for status.
func New(ctx context.Context, sk sink.Sink, st *store.Store, logger *log.Logger) *Model {
	return &Model{ctx: ctx, sk: sk, store: st, logger: logger.WithPrefix("statusview")}
}

// ProgressFeed returns a callback suitable for solver.Trainer.Run's progress
// argument, forwarding samples into the dashboard via prog.
func ProgressFeed(prog *tea.Program) func(solver.Progress) {
	return func(p solver.Progress) {
		prog.Send(progressMsg(p))
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.refresh())
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) refresh() tea.Cmd {
	return func() tea.Msg {
		status, err := orchestrator.ReadStatus(m.ctx, m.sk, m.store)
		if err != nil {
			return statusErrMsg{err}
		}
		return statusMsg(status)
	}
}

type statusMsg orchestrator.Status
type statusErrMsg struct{ err error }

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.quitting = true
			return m, tea.Quit
		}
	case tickMsg:
		return m, tea.Batch(m.tick(), m.refresh())
	case statusMsg:
		m.status = orchestrator.Status(msg)
		m.statusErr = nil
	case statusErrMsg:
		m.statusErr = msg.err
	case progressMsg:
		p := solver.Progress(msg)
		m.lastProgress = &p
	}
	return m, nil
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	out := headerStyle.Render(fmt.Sprintf(" blueprint — epoch %d ", m.status.Epoch)) + "\n\n"
	for _, s := range m.status.Streets {
		line := fmt.Sprintf("%-8s %d/%d", s.Street, s.Rows, s.Expected)
		if s.Complete {
			out += completeStyle.Render("[x] "+line) + "\n"
		} else {
			out += pendingStyle.Render("[ ] "+line) + "\n"
		}
	}

	if m.lastProgress != nil {
		out += "\n" + labelStyle.Render(fmt.Sprintf(
			"iteration %d  regret table %d entries  nodes/iter %d",
			m.lastProgress.Iteration, m.lastProgress.RegretTableSize, m.lastProgress.Stats.NodesVisited,
		)) + "\n"
	}

	if m.statusErr != nil {
		out += "\n" + infoStyle.Render("status refresh error: "+m.statusErr.Error()) + "\n"
	}

	out += "\n" + infoStyle.Render("press q to quit") + "\n"
	return out
}

// Run blocks rendering the dashboard until the user quits or ctx is done,
// then returns the exited *tea.Program. It wires no training progress into
// the dashboard, which shows only the status it polls.
func Run(ctx context.Context, sk sink.Sink, st *store.Store, logger *log.Logger) (*tea.Program, error) {
	model := New(ctx, sk, st, logger)
	program := tea.NewProgram(model)

	go func() {
		<-ctx.Done()
		program.Quit()
	}()

	_, err := program.Run()
	return program, err
}
