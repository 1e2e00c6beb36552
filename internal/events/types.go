package events

import (
	"time"

	"github.com/guangtouwangba/open-deep-research/internal/model"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	JobID() string
}

// Topic constants
const (
	TopicJob  = "job"
	TopicNode = "node"
)

// Event type constants
const (
	EventTypeJobStarted    = "job.started"
	EventTypeJobStage      = "job.stage"
	EventTypeJobProgress   = "job.progress"
	EventTypeJobPaused     = "job.paused"
	EventTypeJobCompleted  = "job.completed"
	EventTypeJobFailed     = "job.failed"
	EventTypeNodePhase     = "node.phase"
	EventTypeNodeOutput    = "node.output"
	EventTypeNodeCompleted = "node.completed"
	EventTypeNodeDeferred  = "node.deferred"
)

// JobStartedEvent is published when a job begins or resumes.
type JobStartedEvent struct {
	ID        string
	Goal      string
	Depth     model.Depth
	Resumed   bool
	Timestamp time.Time
}

func (e JobStartedEvent) EventType() string { return EventTypeJobStarted }
func (e JobStartedEvent) JobID() string     { return e.ID }

// JobStageEvent is published when a job moves to another pipeline stage.
type JobStageEvent struct {
	ID        string
	Stage     model.Stage
	Timestamp time.Time
}

func (e JobStageEvent) EventType() string { return EventTypeJobStage }
func (e JobStageEvent) JobID() string     { return e.ID }

// JobProgressEvent is published after every scheduling step and reflection pass.
type JobProgressEvent struct {
	ID        string
	Total     int
	Completed int
	Deferred  int
	Covered   int
	Iteration int
	Budget    int
	Timestamp time.Time
}

func (e JobProgressEvent) EventType() string { return EventTypeJobProgress }
func (e JobProgressEvent) JobID() string     { return e.ID }

// JobPausedEvent is published when an interrupt stops a job.
type JobPausedEvent struct {
	ID        string
	Stage     model.Stage
	Timestamp time.Time
}

func (e JobPausedEvent) EventType() string { return EventTypeJobPaused }
func (e JobPausedEvent) JobID() string     { return e.ID }

// JobCompletedEvent is published when the report is written.
type JobCompletedEvent struct {
	ID        string
	Partial   bool
	Duration  time.Duration
	Timestamp time.Time
}

func (e JobCompletedEvent) EventType() string { return EventTypeJobCompleted }
func (e JobCompletedEvent) JobID() string     { return e.ID }

// JobFailedEvent is published when a job-critical step fails.
type JobFailedEvent struct {
	ID        string
	Err       error
	Duration  time.Duration
	Timestamp time.Time
}

func (e JobFailedEvent) EventType() string { return EventTypeJobFailed }
func (e JobFailedEvent) JobID() string     { return e.ID }

// NodePhaseEvent is published after a node's phase transition is committed.
type NodePhaseEvent struct {
	Job       string
	NodeID    string
	Phase     model.Phase
	Timestamp time.Time
}

func (e NodePhaseEvent) EventType() string { return EventTypeNodePhase }
func (e NodePhaseEvent) JobID() string     { return e.Job }

// NodeOutputEvent carries one line of human-readable progress for a node.
type NodeOutputEvent struct {
	Job       string
	NodeID    string
	Line      string
	Timestamp time.Time
}

func (e NodeOutputEvent) EventType() string { return EventTypeNodeOutput }
func (e NodeOutputEvent) JobID() string     { return e.Job }

// NodeCompletedEvent is published when the scheduler marks a node completed.
type NodeCompletedEvent struct {
	Job       string
	NodeID    string
	Findings  int
	Timestamp time.Time
}

func (e NodeCompletedEvent) EventType() string { return EventTypeNodeCompleted }
func (e NodeCompletedEvent) JobID() string     { return e.Job }

// NodeDeferredEvent is published when a node is skipped for unmet dependencies.
type NodeDeferredEvent struct {
	Job       string
	NodeID    string
	Missing   []string
	Timestamp time.Time
}

func (e NodeDeferredEvent) EventType() string { return EventTypeNodeDeferred }
func (e NodeDeferredEvent) JobID() string     { return e.Job }
