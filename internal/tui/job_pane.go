package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/guangtouwangba/open-deep-research/internal/events"
	"github.com/guangtouwangba/open-deep-research/internal/model"
)

// JobState is the display state of one job.
type JobState struct {
	ID        string
	Goal      string
	Depth     model.Depth
	Stage     model.Stage
	Status    string // "running", "paused", "completed", "failed"
	Total     int
	Completed int
	Deferred  int
	Covered   int
	Iteration int
	Budget    int
	Partial   bool
	Err       error
}

// JobPaneModel shows per-job stage and progress.
type JobPaneModel struct {
	jobs    map[string]*JobState
	order   []string
	width   int
	height  int
	focused bool
}

// NewJobPaneModel creates an empty job pane.
func NewJobPaneModel() JobPaneModel {
	return JobPaneModel{jobs: make(map[string]*JobState)}
}

func (m *JobPaneModel) track(id string) *JobState {
	if j, ok := m.jobs[id]; ok {
		return j
	}
	j := &JobState{ID: id, Status: "running"}
	m.jobs[id] = j
	m.order = append(m.order, id)
	return j
}

// Update handles messages for the job pane.
func (m JobPaneModel) Update(msg tea.Msg) (JobPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case events.JobStartedEvent:
		j := m.track(msg.ID)
		j.Goal = msg.Goal
		j.Depth = msg.Depth
		j.Status = "running"
		j.Err = nil

	case events.JobStageEvent:
		m.track(msg.ID).Stage = msg.Stage

	case events.JobProgressEvent:
		j := m.track(msg.ID)
		j.Total = msg.Total
		j.Completed = msg.Completed
		j.Deferred = msg.Deferred
		j.Covered = msg.Covered
		j.Iteration = msg.Iteration
		j.Budget = msg.Budget

	case events.JobPausedEvent:
		j := m.track(msg.ID)
		j.Status = "paused"
		j.Stage = msg.Stage

	case events.JobCompletedEvent:
		j := m.track(msg.ID)
		j.Status = "completed"
		j.Stage = model.StageDone
		j.Partial = msg.Partial

	case events.JobFailedEvent:
		j := m.track(msg.ID)
		j.Status = "failed"
		j.Err = msg.Err
	}

	return m, nil
}

// Finished reports whether every tracked job has stopped.
func (m JobPaneModel) Finished() bool {
	if len(m.order) == 0 {
		return false
	}
	for _, id := range m.order {
		if m.jobs[id].Status == "running" {
			return false
		}
	}
	return true
}

// Job returns the tracked state for a job.
func (m JobPaneModel) Job(id string) (*JobState, bool) {
	j, ok := m.jobs[id]
	return j, ok
}

// View renders the job pane.
func (m JobPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render("Jobs")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	if len(m.order) == 0 {
		b.WriteString(StyleStatusPending.Render("Waiting..."))
	}
	for _, id := range m.order {
		j := m.jobs[id]
		goal := j.Goal
		if max(m.width-16, 10) < len(goal) {
			goal = goal[:max(m.width-19, 7)] + "..."
		}
		b.WriteString(fmt.Sprintf("%s %s  %s\n", StatusIcon(j.Status), shortID(j.ID), goal))
		b.WriteString(fmt.Sprintf("   stage: %s  reflection: %d/%d  covered: %d/%d\n",
			j.Stage, j.Iteration, j.Budget, j.Covered, j.Total))
		if j.Total > 0 {
			b.WriteString("   " + m.progressBar(j) + "\n")
		}
		switch {
		case j.Err != nil:
			b.WriteString("   " + StyleStatusFailed.Render(j.Err.Error()) + "\n")
		case j.Partial:
			b.WriteString("   " + StyleStatusDeferred.Render("partial: coverage incomplete") + "\n")
		}
		b.WriteString("\n")
	}

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

func (m JobPaneModel) progressBar(j *JobState) string {
	barWidth := min(m.width-16, 40)
	if barWidth <= 0 {
		return fmt.Sprintf("%d/%d", j.Completed, j.Total)
	}
	completedWidth := (j.Completed * barWidth) / j.Total
	deferredWidth := (j.Deferred * barWidth) / j.Total
	pendingWidth := barWidth - completedWidth - deferredWidth

	bar := StyleStatusComplete.Render(strings.Repeat("=", max(0, completedWidth)))
	bar += StyleStatusDeferred.Render(strings.Repeat("~", max(0, deferredWidth)))
	bar += StyleStatusPending.Render(strings.Repeat(".", max(0, pendingWidth)))
	return fmt.Sprintf("[%s]  %d/%d", bar, j.Completed, j.Total)
}

// SetSize updates the pane dimensions.
func (m *JobPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *JobPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
