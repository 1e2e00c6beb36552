package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/guangtouwangba/open-deep-research/internal/events"
	"github.com/guangtouwangba/open-deep-research/internal/model"
)

// NodeState is the display state of one task node.
type NodeState struct {
	JobID  string
	NodeID string
	Phase  model.Phase
	Status string // "running", "completed", "deferred"
	Output []string
}

// Label is the list entry for the node.
func (n *NodeState) Label() string {
	return shortID(n.JobID) + "/" + n.NodeID
}

// NodePaneModel shows the node list and the selected node's output.
type NodePaneModel struct {
	nodes       map[string]*NodeState // job/node -> state
	order       []string              // insertion order for display
	selectedIdx int
	viewport    viewport.Model
	width       int
	height      int
	focused     bool
	updateTag   int // for debouncing
}

// NewNodePaneModel creates an empty node pane.
func NewNodePaneModel() NodePaneModel {
	return NodePaneModel{
		nodes:    make(map[string]*NodeState),
		viewport: viewport.New(0, 0),
	}
}

// tickMsg is used for debouncing viewport updates.
type tickMsg struct {
	tag int
}

func nodeKey(jobID, nodeID string) string {
	return jobID + "/" + nodeID
}

// track returns the node state, adding it on first sight.
func (m *NodePaneModel) track(jobID, nodeID string) *NodeState {
	key := nodeKey(jobID, nodeID)
	if n, ok := m.nodes[key]; ok {
		return n
	}
	n := &NodeState{JobID: jobID, NodeID: nodeID, Status: "running"}
	m.nodes[key] = n
	m.order = append(m.order, key)
	if len(m.order) == 1 {
		m.selectedIdx = 0
		m.updateViewportContent()
	}
	return n
}

// Update handles messages for the node pane.
func (m NodePaneModel) Update(msg tea.Msg) (NodePaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !m.focused {
			break
		}
		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.order)-1 {
				m.selectedIdx++
				m.updateViewportContent()
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.updateViewportContent()
			}
		default:
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.NodePhaseEvent:
		n := m.track(msg.Job, msg.NodeID)
		n.Phase = msg.Phase
		n.Status = "running"
		n.Output = append(n.Output, "-> "+msg.Phase.String())
		m.refresh(n)

	case events.NodeOutputEvent:
		n := m.track(msg.Job, msg.NodeID)
		n.Output = append(n.Output, msg.Line)
		if m.SelectedKey() == nodeKey(msg.Job, msg.NodeID) {
			m.updateTag++
			tag := m.updateTag
			return m, tea.Tick(50*time.Millisecond, func(time.Time) tea.Msg {
				return tickMsg{tag: tag}
			})
		}

	case events.NodeCompletedEvent:
		n := m.track(msg.Job, msg.NodeID)
		n.Status = "completed"
		n.Output = append(n.Output, fmt.Sprintf("\n[Completed: %d findings]", msg.Findings))
		m.refresh(n)

	case events.NodeDeferredEvent:
		n := m.track(msg.Job, msg.NodeID)
		n.Status = "deferred"
		n.Output = append(n.Output, fmt.Sprintf("[Deferred: waiting for %s]", strings.Join(msg.Missing, ", ")))
		m.refresh(n)

	case tickMsg:
		if msg.tag == m.updateTag {
			m.updateViewportContent()
		}
	}

	return m, cmd
}

func (m *NodePaneModel) refresh(n *NodeState) {
	if m.SelectedKey() == nodeKey(n.JobID, n.NodeID) {
		m.updateViewportContent()
	}
}

// View renders the node pane.
func (m NodePaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	listWidth := 28
	viewportWidth := m.width - listWidth - 4

	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderNodeList(listWidth),
		lipgloss.NewStyle().
			Width(viewportWidth).
			Height(m.height-2).
			Render(m.viewport.View()),
	)

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

func (m NodePaneModel) renderNodeList(width int) string {
	var b strings.Builder

	title := StyleTitle.Render("Nodes")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(width, lipgloss.Width(title))))
	b.WriteString("\n\n")

	if len(m.order) == 0 {
		b.WriteString(StyleStatusPending.Render("Waiting..."))
	}
	for i, key := range m.order {
		n := m.nodes[key]
		name := n.Label()
		if len(name) > width-6 {
			name = name[:width-9] + "..."
		}
		line := fmt.Sprintf("%s %s", StatusIcon(n.Status), name)
		if i == m.selectedIdx {
			line = StyleSelected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(m.height - 2).
		Render(b.String())
}

// StatusIcon returns a styled status indicator for a node or job status.
func StatusIcon(status string) string {
	switch status {
	case "running":
		return StyleStatusRunning.Render("●")
	case "completed":
		return StyleStatusComplete.Render("✓")
	case "failed":
		return StyleStatusFailed.Render("✗")
	case "deferred", "paused":
		return StyleStatusDeferred.Render("◐")
	default:
		return StyleStatusPending.Render("○")
	}
}

// SelectedKey returns the job/node key of the selected node.
func (m NodePaneModel) SelectedKey() string {
	if m.selectedIdx >= 0 && m.selectedIdx < len(m.order) {
		return m.order[m.selectedIdx]
	}
	return ""
}

// Node returns the tracked state for a node.
func (m NodePaneModel) Node(jobID, nodeID string) (*NodeState, bool) {
	n, ok := m.nodes[nodeKey(jobID, nodeID)]
	return n, ok
}

func (m *NodePaneModel) updateViewportContent() {
	n, ok := m.nodes[m.SelectedKey()]
	if !ok {
		m.viewport.SetContent("Waiting for nodes...")
		return
	}
	m.viewport.SetContent(strings.Join(n.Output, "\n"))
	m.viewport.GotoBottom()
}

func (m *NodePaneModel) resizeViewport() {
	m.viewport.Width = max(m.width-28-4, 10)
	m.viewport.Height = max(m.height-4, 5)
}

// SetSize updates the pane dimensions.
func (m *NodePaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *NodePaneModel) SetFocused(focused bool) {
	m.focused = focused
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
