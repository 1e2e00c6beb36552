package model

import "fmt"

// CritiqueItem is one issue raised against a node's content.
type CritiqueItem struct {
	Severity   string `json:"severity"` // "high", "medium" or "low"
	Issue      string `json:"issue"`
	Suggestion string `json:"suggestion"`
}

// CouncilPosition is one persona's contribution to a council debate.
type CouncilPosition struct {
	Expert      string   `json:"expert"`
	Perspective string   `json:"perspective"`
	Position    string   `json:"position"`
	Arguments   []string `json:"arguments,omitempty"`
	Rebuttals   []string `json:"rebuttals,omitempty"`
}

// ClaimCheck records how a single claim extracted from node content was verified.
type ClaimCheck struct {
	Claim   string      `json:"claim"`
	Status  ClaimStatus `json:"status"`
	Sources []string    `json:"sources,omitempty"`
	Note    string      `json:"note,omitempty"`
}

// CheckpointRecord stores the external decision taken at a checkpoint gate.
type CheckpointRecord struct {
	Checkpoint int    `json:"checkpoint"` // 1 after critique, 2 after verification
	Action     string `json:"action"`     // "accept", "challenge", "revise" or "auto"
	Text       string `json:"text,omitempty"`
}

// TaskNode is the atomic unit of work in a job's plan.
type TaskNode struct {
	ID           string   `json:"id"`
	Description  string   `json:"description"`
	Category     string   `json:"category"`
	Ordinal      int      `json:"ordinal"`
	Priority     int      `json:"priority"`
	Dependencies []string `json:"dependencies"`
	Phase        Phase    `json:"phase"`

	// Research and grounding (ANCHORED)
	Queries  []string  `json:"queries,omitempty"`
	Context  string    `json:"context,omitempty"`
	Anchors  []string  `json:"anchors,omitempty"`
	Findings []Finding `json:"findings,omitempty"`

	// Generation and critique (GENERATED, CRITIQUED)
	Content            string            `json:"content,omitempty"`
	Critique           []CritiqueItem    `json:"critique,omitempty"`
	CritiqueConfidence float64           `json:"critique_confidence,omitempty"`
	NeedsDebate        bool              `json:"needs_debate,omitempty"`
	Council            []CouncilPosition `json:"council,omitempty"`
	Critiqued          bool              `json:"critiqued,omitempty"` // Critique and council stored, checkpoint 1 may still be open

	// Verification (VERIFIED)
	Claims        []ClaimCheck `json:"claims,omitempty"`
	Opposition    []string     `json:"opposition,omitempty"`     // "[title] snippet" lines from criticism searches
	ClaimsChecked bool         `json:"claims_checked,omitempty"` // Claims and opposition stored, checkpoint 2 may still be open

	// Checkpoint input carried into synthesis
	Checkpoints []CheckpointRecord `json:"checkpoints,omitempty"`
	Challenges  []string           `json:"challenges,omitempty"`

	// Synthesis (SYNTHESIZED)
	Synthesis  string  `json:"synthesis,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// AdvanceTo moves the node to phase p. Phases only move forward.
func (n *TaskNode) AdvanceTo(p Phase) error {
	if p <= n.Phase {
		return fmt.Errorf("node %q: %s -> %s: %w", n.ID, n.Phase, p, ErrPhaseRegression)
	}
	n.Phase = p
	return nil
}

// Checkpoint returns the recorded decision for the given checkpoint, if any.
func (n *TaskNode) Checkpoint(number int) (CheckpointRecord, bool) {
	for _, rec := range n.Checkpoints {
		if rec.Checkpoint == number {
			return rec, true
		}
	}
	return CheckpointRecord{}, false
}

// Clone returns a deep copy of the node.
func (n *TaskNode) Clone() *TaskNode {
	if n == nil {
		return nil
	}
	cp := *n
	cp.Dependencies = cloneStrings(n.Dependencies)
	cp.Queries = cloneStrings(n.Queries)
	cp.Anchors = cloneStrings(n.Anchors)
	cp.Challenges = cloneStrings(n.Challenges)
	cp.Opposition = cloneStrings(n.Opposition)
	if n.Findings != nil {
		cp.Findings = append([]Finding(nil), n.Findings...)
	}
	if n.Critique != nil {
		cp.Critique = append([]CritiqueItem(nil), n.Critique...)
	}
	if n.Council != nil {
		cp.Council = make([]CouncilPosition, len(n.Council))
		for i, pos := range n.Council {
			pos.Arguments = cloneStrings(pos.Arguments)
			pos.Rebuttals = cloneStrings(pos.Rebuttals)
			cp.Council[i] = pos
		}
	}
	if n.Claims != nil {
		cp.Claims = make([]ClaimCheck, len(n.Claims))
		for i, c := range n.Claims {
			c.Sources = cloneStrings(c.Sources)
			cp.Claims[i] = c
		}
	}
	if n.Checkpoints != nil {
		cp.Checkpoints = append([]CheckpointRecord(nil), n.Checkpoints...)
	}
	return &cp
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
