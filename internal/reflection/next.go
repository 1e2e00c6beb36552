package reflection

import "github.com/guangtouwangba/open-deep-research/internal/model"

// Verdict is the loop decision after a reflection pass.
type Verdict struct {
	Continue bool
	Partial  bool // Set when stopping with coverage known to be incomplete
	Reason   string
}

// Next decides whether the research loop runs another pass. The checks are
// applied in order: an exhausted budget always stops; unexecuted nodes
// continue; an incomplete outcome continues; anything else stops.
//
// pending is scheduler.HasPending for the job; unresolved lists deferred
// nodes that can no longer run.
func Next(job *model.Job, outcome *model.ReflectionOutcome, pending bool, unresolved []string) Verdict {
	incomplete := outcome != nil && !outcome.Complete

	switch {
	case job.Iteration >= job.Budget:
		return Verdict{
			Partial: incomplete || pending || len(unresolved) > 0,
			Reason:  "iteration budget exhausted",
		}
	case pending:
		return Verdict{Continue: true, Reason: "plan has unexecuted nodes"}
	case incomplete:
		return Verdict{Continue: true, Reason: "coverage incomplete"}
	}
	return Verdict{Partial: len(unresolved) > 0, Reason: "research complete"}
}
