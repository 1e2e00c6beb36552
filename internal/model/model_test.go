package model

import (
	"encoding/json"
	"errors"
	"testing"
)

// TestPhaseOrder verifies that phases are strictly ordered and Next walks the fixed sequence.
func TestPhaseOrder(t *testing.T) {
	want := []Phase{PhasePending, PhaseAnchored, PhaseGenerated, PhaseCritiqued, PhaseVerified, PhaseSynthesized}

	p := PhasePending
	for i := 1; i < len(want); i++ {
		next, ok := p.Next()
		if !ok {
			t.Fatalf("Next(%s) reported no successor", p)
		}
		if next != want[i] {
			t.Fatalf("Next(%s) = %s, want %s", p, next, want[i])
		}
		if next <= p {
			t.Fatalf("phase %s does not follow %s", next, p)
		}
		p = next
	}

	if _, ok := PhaseSynthesized.Next(); ok {
		t.Error("SYNTHESIZED should be terminal")
	}
	if !PhaseSynthesized.Terminal() {
		t.Error("Terminal() = false for SYNTHESIZED")
	}
}

func TestAdvanceToRejectsRegression(t *testing.T) {
	n := &TaskNode{ID: "a", Phase: PhaseGenerated}

	tests := []struct {
		name    string
		target  Phase
		wantErr bool
	}{
		{"backwards", PhaseAnchored, true},
		{"same phase", PhaseGenerated, true},
		{"forward", PhaseCritiqued, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := n.AdvanceTo(tt.target)
			if tt.wantErr {
				if !errors.Is(err, ErrPhaseRegression) {
					t.Fatalf("AdvanceTo(%s) error = %v, want ErrPhaseRegression", tt.target, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("AdvanceTo(%s) unexpected error: %v", tt.target, err)
			}
			if n.Phase != tt.target {
				t.Errorf("Phase = %s, want %s", n.Phase, tt.target)
			}
		})
	}
}

func TestPhaseJSONUsesNames(t *testing.T) {
	data, err := json.Marshal(&TaskNode{ID: "x", Phase: PhaseCritiqued})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	if raw["phase"] != "CRITIQUED" {
		t.Errorf("phase encoded as %v, want CRITIQUED", raw["phase"])
	}

	var back TaskNode
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Phase != PhaseCritiqued {
		t.Errorf("decoded phase = %s, want CRITIQUED", back.Phase)
	}
}

func TestJobReadyTreatsSelfReferenceAsSatisfied(t *testing.T) {
	job := NewJob("j", "goal", DepthQuick, 1)
	node := &TaskNode{ID: "a", Dependencies: []string{"a"}}
	if !job.Ready(node) {
		t.Error("node depending only on itself should be ready")
	}

	node.Dependencies = []string{"a", "b"}
	if job.Ready(node) {
		t.Error("node with incomplete dependency b should not be ready")
	}

	job.MarkCompleted("b")
	if !job.Ready(node) {
		t.Error("node should be ready after b completes")
	}
}

func TestJobDeferAndComplete(t *testing.T) {
	job := NewJob("j", "goal", DepthQuick, 1)
	job.Defer("c")
	job.Defer("c")
	if len(job.Deferred) != 1 {
		t.Fatalf("Deferred = %v, want single entry", job.Deferred)
	}

	job.MarkCompleted("c")
	if len(job.Deferred) != 0 {
		t.Errorf("Deferred = %v, want empty after completion", job.Deferred)
	}
	job.MarkCompleted("c")
	if len(job.Completed) != 1 {
		t.Errorf("Completed = %v, want single entry", job.Completed)
	}
}

func TestJobCoverage(t *testing.T) {
	job := NewJob("j", "goal", DepthQuick, 1)
	job.Plan = []*TaskNode{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	job.Findings = []Finding{{NodeID: "a"}, {NodeID: "a"}, {NodeID: "c"}}

	covered, total := job.Coverage()
	if covered != 2 || total != 3 {
		t.Errorf("Coverage() = %d/%d, want 2/3", covered, total)
	}
}

func TestParseDepth(t *testing.T) {
	if _, err := ParseDepth("deep"); err == nil {
		t.Error("expected error for unknown depth")
	}
	d, err := ParseDepth("comprehensive")
	if err != nil {
		t.Fatalf("ParseDepth: %v", err)
	}
	if got := d.Profile().TargetNodes; got != 12 {
		t.Errorf("comprehensive TargetNodes = %d, want 12", got)
	}
	if got := Depth("bogus").Profile().TargetNodes; got != 7 {
		t.Errorf("fallback TargetNodes = %d, want 7", got)
	}
}
