// Package tui renders the optional live dashboard (--watch): per-worker
// current target, elapsed time, and the running outcome tally. The plain
// one-line-per-target log remains the authoritative output; this view only
// mirrors the Worker Pool's progress.
package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/duskline/duskline/internal/pool"
	"github.com/duskline/duskline/models"
)

// FinishedMsg ends the dashboard once the pool has returned.
type FinishedMsg struct {
	Summary pool.Summary
}

type tickMsg time.Time

type workerRow struct {
	key   string
	since time.Time
}

// Model is the bubbletea model behind --watch.
type Model struct {
	total  int
	cancel context.CancelFunc

	workers map[int]workerRow
	tally   map[models.OutcomeStatus]int
	done    int
	start   time.Time
	width   int

	finished bool
	summary  pool.Summary
}

// NewModel builds the dashboard model. cancel is invoked when the operator
// quits the view, so the run itself shuts down like a SIGINT would.
func NewModel(total int, cancel context.CancelFunc) Model {
	return Model{
		total:   total,
		cancel:  cancel,
		workers: make(map[int]workerRow),
		tally:   make(map[models.OutcomeStatus]int),
		start:   time.Now(),
	}
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case pool.Update:
		if msg.Outcome == nil {
			m.workers[msg.WorkerID] = workerRow{key: msg.Key, since: time.Now()}
		} else {
			delete(m.workers, msg.WorkerID)
			m.tally[msg.Outcome.Status]++
			m.done++
		}
		return m, nil
	case FinishedMsg:
		m.finished = true
		m.summary = msg.Summary
		return m, tea.Quit
	case tickMsg:
		return m, tick()
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.cancel != nil {
				m.cancel()
			}
			return m, nil
		}
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	header := fmt.Sprintf("duskline — %d/%d targets — %s", m.done, m.total, time.Since(m.start).Round(time.Second))
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	tallyLine := lipgloss.JoinHorizontal(lipgloss.Top,
		cleanStyle.Render(fmt.Sprintf("  clean %d  ", m.tally[models.StatusCompletedClean])),
		findingsStyle.Render(fmt.Sprintf("  findings %d  ", m.tally[models.StatusCompletedWithFindings])),
		failedStyle.Render(fmt.Sprintf("  failed %d  ", m.tally[models.StatusFailedTransient]+m.tally[models.StatusFailedPermanent])),
		timeoutStyle.Render(fmt.Sprintf("  timed-out %d  ", m.tally[models.StatusTimedOut])),
		dimStyle.Render(fmt.Sprintf("  skipped %d  ", m.tally[models.StatusSkippedAlreadyDone])),
	)
	b.WriteString(tallyLine)
	b.WriteString("\n\n")

	ids := make([]int, 0, len(m.workers))
	for id := range m.workers {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var rows []string
	for _, id := range ids {
		w := m.workers[id]
		rows = append(rows, fmt.Sprintf("%s %s %s",
			dimStyle.Render(fmt.Sprintf("worker %-2d", id)),
			keyStyle.Render(truncate(w.key, 48)),
			dimStyle.Render(time.Since(w.since).Round(time.Second).String()),
		))
	}
	if len(rows) == 0 {
		rows = append(rows, idleStyle.Render("all workers idle"))
	}
	b.WriteString(panelStyle.Render(strings.Join(rows, "\n")))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("q to stop the run"))

	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
