package model

import (
	"fmt"
	"time"
)

// Depth selects how large a plan is and how much research each node gets.
type Depth string

const (
	DepthQuick         Depth = "quick"
	DepthBalanced      Depth = "balanced"
	DepthComprehensive Depth = "comprehensive"
)

// DepthProfile holds the sizing knobs for one depth tier.
type DepthProfile struct {
	TargetNodes     int // Nodes requested from the graph builder
	QueriesPerNode  int // Search queries issued while anchoring a node
	ResultsPerQuery int
	FindingsPerNode int
}

var depthProfiles = map[Depth]DepthProfile{
	DepthQuick:         {TargetNodes: 4, QueriesPerNode: 1, ResultsPerQuery: 3, FindingsPerNode: 3},
	DepthBalanced:      {TargetNodes: 7, QueriesPerNode: 2, ResultsPerQuery: 5, FindingsPerNode: 5},
	DepthComprehensive: {TargetNodes: 12, QueriesPerNode: 3, ResultsPerQuery: 8, FindingsPerNode: 8},
}

// Profile returns the tier settings. Unknown depths use the balanced tier.
func (d Depth) Profile() DepthProfile {
	if p, ok := depthProfiles[d]; ok {
		return p
	}
	return depthProfiles[DepthBalanced]
}

// ParseDepth validates a depth name.
func ParseDepth(s string) (Depth, error) {
	d := Depth(s)
	if _, ok := depthProfiles[d]; !ok {
		return "", fmt.Errorf("unknown depth %q (want quick, balanced or comprehensive)", s)
	}
	return d, nil
}

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobPaused    JobStatus = "paused"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether no further work will happen for the job.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Stage is the pipeline step a job resumes into.
type Stage string

const (
	StagePlanning    Stage = "planning"
	StageResearching Stage = "researching"
	StageVerifying   Stage = "verifying"
	StageReporting   Stage = "reporting"
	StageDone        Stage = "done"
)

// ClaimStatus is the corroboration outcome for a finding or claim.
type ClaimStatus string

const (
	StatusConfirmed  ClaimStatus = "confirmed"
	StatusDisputed   ClaimStatus = "disputed"
	StatusUnverified ClaimStatus = "unverified"
)

// Finding is one piece of evidence gathered for a node.
type Finding struct {
	NodeID      string  `json:"node_id"`
	Source      string  `json:"source"`     // Origin URL
	SourceKey   string  `json:"source_key"` // Independence key, usually the host
	Title       string  `json:"title"`
	Content     string  `json:"content"`
	Credibility float64 `json:"credibility"`
}

// VerifiedResult is a finding together with its corroboration outcome.
type VerifiedResult struct {
	Finding
	Status      ClaimStatus `json:"status"`
	Supporting  []string    `json:"supporting,omitempty"`
	Conflicting []string    `json:"conflicting,omitempty"`
}

// ReflectionOutcome is the result of the most recent reflection pass.
type ReflectionOutcome struct {
	Complete  bool     `json:"complete"`
	Covered   int      `json:"covered"`
	Total     int      `json:"total"`
	Gaps      []string `json:"gaps,omitempty"`
	Added     []string `json:"added,omitempty"` // Node ids appended by this pass
	Reasoning string   `json:"reasoning,omitempty"`
	Fallback  bool     `json:"fallback,omitempty"`
}

// ReportSection is one titled block of the final report.
type ReportSection struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Sources []string `json:"sources,omitempty"`
}

// Job is the full, persisted state of one goal being processed.
type Job struct {
	ID     string    `json:"id"`
	Goal   string    `json:"goal"`
	Depth  Depth     `json:"depth"`
	Domain string    `json:"domain,omitempty"` // Resolved domain name, fixed at planning
	Status JobStatus `json:"status"`
	Stage  Stage     `json:"stage"`

	Plan      []*TaskNode `json:"plan"`
	Cursor    int         `json:"cursor"`
	Completed []string    `json:"completed"`
	Deferred  []string    `json:"deferred,omitempty"`

	Findings      []Finding `json:"findings"`
	SearchHistory []string  `json:"search_history,omitempty"`

	Iteration  int                `json:"iteration"`
	Budget     int                `json:"budget"`
	Reflection *ReflectionOutcome `json:"reflection,omitempty"`

	Verified  []VerifiedResult `json:"verified,omitempty"`
	Conflicts []string         `json:"conflicts"`

	Report   string          `json:"report,omitempty"`
	Sections []ReportSection `json:"sections,omitempty"`
	Partial  bool            `json:"partial,omitempty"`
	Error    string          `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewJob returns a job ready for planning.
func NewJob(id, goal string, depth Depth, budget int) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        id,
		Goal:      goal,
		Depth:     depth,
		Status:    JobPending,
		Stage:     StagePlanning,
		Budget:    budget,
		Completed: []string{},
		Findings:  []Finding{},
		Conflicts: []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Node returns the plan node with the given id.
func (j *Job) Node(id string) (*TaskNode, bool) {
	for _, n := range j.Plan {
		if n.ID == id {
			return n, true
		}
	}
	return nil, false
}

// IsCompleted reports whether the node id is in the completed set.
func (j *Job) IsCompleted(id string) bool {
	for _, c := range j.Completed {
		if c == id {
			return true
		}
	}
	return false
}

// MarkCompleted adds id to the completed set and removes it from the deferred list.
func (j *Job) MarkCompleted(id string) {
	if !j.IsCompleted(id) {
		j.Completed = append(j.Completed, id)
	}
	j.Undefer(id)
}

// Ready reports whether every dependency of n has completed.
// A dependency on n itself counts as satisfied.
func (j *Job) Ready(n *TaskNode) bool {
	for _, dep := range n.Dependencies {
		if dep == n.ID {
			continue
		}
		if !j.IsCompleted(dep) {
			return false
		}
	}
	return true
}

// Defer records that id was skipped because its dependencies were unmet.
func (j *Job) Defer(id string) {
	for _, d := range j.Deferred {
		if d == id {
			return
		}
	}
	j.Deferred = append(j.Deferred, id)
}

// Undefer removes id from the deferred list.
func (j *Job) Undefer(id string) {
	for i, d := range j.Deferred {
		if d == id {
			j.Deferred = append(j.Deferred[:i], j.Deferred[i+1:]...)
			return
		}
	}
}

// Coverage returns how many plan nodes have at least one finding, and the plan size.
func (j *Job) Coverage() (covered, total int) {
	seen := make(map[string]bool, len(j.Findings))
	for _, f := range j.Findings {
		seen[f.NodeID] = true
	}
	for _, n := range j.Plan {
		if seen[n.ID] {
			covered++
		}
	}
	return covered, len(j.Plan)
}

// Summary returns the listing view of the job.
func (j *Job) Summary() JobSummary {
	return JobSummary{
		ID:        j.ID,
		Goal:      j.Goal,
		Depth:     j.Depth,
		Status:    j.Status,
		Iteration: j.Iteration,
		Budget:    j.Budget,
		Nodes:     len(j.Plan),
		Completed: len(j.Completed),
		Partial:   j.Partial,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

// JobSummary is the listing view of a job.
type JobSummary struct {
	ID        string
	Goal      string
	Depth     Depth
	Status    JobStatus
	Iteration int
	Budget    int
	Nodes     int
	Completed int
	Partial   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
