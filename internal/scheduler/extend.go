package scheduler

import (
	"fmt"
	"strings"

	"github.com/guangtouwangba/open-deep-research/internal/model"
	"github.com/guangtouwangba/open-deep-research/internal/textsim"
)

// Extend appends reflection-proposed nodes to the end of job's plan and
// returns the nodes actually added.
//
// Candidates that are blank or near-duplicates (per threshold) of a plan node
// or an earlier candidate are dropped. Missing or colliding ids are replaced
// with fresh ones. Dependencies on unknown ids and on the node itself are
// removed. The extended plan is validated before anything is appended; on a
// cycle the job is left untouched and an error returned.
func Extend(job *model.Job, candidates []*model.TaskNode, threshold float64) ([]*model.TaskNode, error) {
	taken := make(map[string]bool, len(job.Plan)+len(candidates))
	for _, n := range job.Plan {
		taken[n.ID] = true
	}

	var accepted []*model.TaskNode
	isDuplicate := func(desc string) bool {
		for _, n := range job.Plan {
			if textsim.NearDuplicate(desc, n.Description, threshold) {
				return true
			}
		}
		for _, n := range accepted {
			if textsim.NearDuplicate(desc, n.Description, threshold) {
				return true
			}
		}
		return false
	}

	for _, c := range candidates {
		desc := strings.TrimSpace(c.Description)
		if desc == "" || isDuplicate(desc) {
			continue
		}

		n := c.Clone()
		n.Description = desc
		n.Phase = model.PhasePending
		if n.ID == "" || taken[n.ID] {
			n.ID = nextID(taken)
		}
		taken[n.ID] = true
		accepted = append(accepted, n)
	}
	if len(accepted) == 0 {
		return nil, nil
	}

	for _, n := range accepted {
		deps := n.Dependencies[:0]
		for _, dep := range n.Dependencies {
			if dep != n.ID && taken[dep] {
				deps = append(deps, dep)
			}
		}
		n.Dependencies = deps
	}

	combined := make([]*model.TaskNode, 0, len(job.Plan)+len(accepted))
	combined = append(combined, job.Plan...)
	combined = append(combined, accepted...)
	g, err := NewGraph(combined)
	if err != nil {
		return nil, fmt.Errorf("extending plan: %w", err)
	}
	if _, err := g.Validate(); err != nil {
		return nil, fmt.Errorf("extending plan would create cycle: %w", err)
	}

	job.Plan = combined
	return accepted, nil
}

func nextID(taken map[string]bool) string {
	for i := len(taken) + 1; ; i++ {
		id := fmt.Sprintf("n%d", i)
		if !taken[id] {
			return id
		}
	}
}
