package reflection

import (
	"testing"

	"github.com/guangtouwangba/open-deep-research/internal/model"
)

// TestNext verifies the precedence of the loop termination checks.
func TestNext(t *testing.T) {
	complete := &model.ReflectionOutcome{Complete: true}
	incomplete := &model.ReflectionOutcome{Complete: false}

	tests := []struct {
		name         string
		iteration    int
		budget       int
		outcome      *model.ReflectionOutcome
		pending      bool
		unresolved   []string
		wantContinue bool
		wantPartial  bool
	}{
		{name: "budget beats pending", iteration: 2, budget: 2, outcome: complete, pending: true, wantPartial: true},
		{name: "budget beats incomplete", iteration: 1, budget: 1, outcome: incomplete, wantPartial: true},
		{name: "budget with complete coverage", iteration: 3, budget: 3, outcome: complete},
		{name: "zero budget without reflection", iteration: 0, budget: 0},
		{name: "pending beats complete", iteration: 1, budget: 3, outcome: complete, pending: true, wantContinue: true},
		{name: "incomplete continues", iteration: 1, budget: 3, outcome: incomplete, wantContinue: true},
		{name: "complete stops", iteration: 1, budget: 3, outcome: complete},
		{name: "no outcome stops", iteration: 0, budget: 3},
		{name: "unresolved nodes mark partial", iteration: 1, budget: 3, outcome: complete, unresolved: []string{"n4"}, wantPartial: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := model.NewJob("job1", "goal", model.DepthQuick, tt.budget)
			job.Iteration = tt.iteration

			v := Next(job, tt.outcome, tt.pending, tt.unresolved)
			if v.Continue != tt.wantContinue || v.Partial != tt.wantPartial {
				t.Errorf("Next = %+v, want continue=%v partial=%v", v, tt.wantContinue, tt.wantPartial)
			}
			if v.Reason == "" {
				t.Error("missing reason")
			}
		})
	}
}
