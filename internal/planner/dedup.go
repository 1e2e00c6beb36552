package planner

import (
	"slices"

	"github.com/guangtouwangba/open-deep-research/internal/model"
	"github.com/guangtouwangba/open-deep-research/internal/textsim"
)

// Dedup collapses near-duplicate nodes, keeping the first of each group.
// The survivor inherits the dropped node's dependencies and every reference
// to a dropped id is rewritten to its survivor. Afterwards dependencies on
// unknown ids, self references and repeats are removed.
func Dedup(nodes []*model.TaskNode, threshold float64) []*model.TaskNode {
	var kept []*model.TaskNode
	rewrite := make(map[string]string)

	for _, n := range nodes {
		var survivor *model.TaskNode
		for _, k := range kept {
			if textsim.NearDuplicate(n.Description, k.Description, threshold) {
				survivor = k
				break
			}
		}
		if survivor == nil {
			kept = append(kept, n)
			continue
		}
		rewrite[n.ID] = survivor.ID
		survivor.Dependencies = append(survivor.Dependencies, n.Dependencies...)
	}

	known := make(map[string]bool, len(kept))
	for _, n := range kept {
		known[n.ID] = true
	}

	for _, n := range kept {
		var deps []string
		for _, dep := range n.Dependencies {
			if to, ok := rewrite[dep]; ok {
				dep = to
			}
			if dep == n.ID || !known[dep] || slices.Contains(deps, dep) {
				continue
			}
			deps = append(deps, dep)
		}
		n.Dependencies = deps
	}
	return kept
}
