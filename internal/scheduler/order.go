package scheduler

import (
	"cmp"
	"slices"

	"github.com/guangtouwangba/open-deep-research/internal/model"
)

const (
	unvisited = iota
	inProgress
	visited
)

type frame struct {
	node *model.TaskNode
	next int // Index of the next dependency to explore
}

// Order returns nodes in dependency order, then stable-sorted by
// (category, ordinal, descending priority). The category sort may place a
// node ahead of a dependency from a later category; the scheduler defers it.
func Order(nodes []*model.TaskNode) []*model.TaskNode {
	out := DependencyOrder(nodes)
	slices.SortStableFunc(out, func(a, b *model.TaskNode) int {
		if c := cmp.Compare(a.Category, b.Category); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Ordinal, b.Ordinal); c != 0 {
			return c
		}
		return cmp.Compare(b.Priority, a.Priority)
	})
	return out
}

// DependencyOrder returns nodes so that each appears after its dependencies.
//
// The traversal is a depth-first post-order walk over an explicit stack. An
// edge into a node that is still in progress closes a cycle; that dependency
// is treated as satisfied and the walk moves on. Unknown dependency ids are
// ignored, as are nodes repeating an earlier id. The input slice is not modified.
func DependencyOrder(nodes []*model.TaskNode) []*model.TaskNode {
	byID := make(map[string]*model.TaskNode, len(nodes))
	for _, n := range nodes {
		if _, dup := byID[n.ID]; !dup {
			byID[n.ID] = n
		}
	}

	state := make(map[string]int, len(nodes))
	out := make([]*model.TaskNode, 0, len(nodes))

	for _, root := range nodes {
		if state[root.ID] != unvisited || byID[root.ID] != root {
			continue
		}
		state[root.ID] = inProgress
		stack := []frame{{node: root}}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next < len(top.node.Dependencies) {
				depID := top.node.Dependencies[top.next]
				top.next++

				dep, ok := byID[depID]
				if !ok || state[depID] != unvisited {
					// Missing, finished, or in progress (cycle)
					continue
				}
				state[depID] = inProgress
				stack = append(stack, frame{node: dep})
				continue
			}

			state[top.node.ID] = visited
			out = append(out, top.node)
			stack = stack[:len(stack)-1]
		}
	}
	return out
}

// BreakCycles removes every dependency that points at a node not placed
// before it in DependencyOrder. Those are exactly the edges the traversal
// treated as satisfied, so the remaining graph is acyclic. Nodes are modified
// in place; the returned slice lists the removed edges as "from->to".
func BreakCycles(nodes []*model.TaskNode) []string {
	ordered := DependencyOrder(nodes)
	pos := make(map[string]int, len(ordered))
	for i, n := range ordered {
		pos[n.ID] = i
	}

	var removed []string
	for _, n := range ordered {
		kept := n.Dependencies[:0]
		for _, dep := range n.Dependencies {
			p, ok := pos[dep]
			if !ok || dep == n.ID || p < pos[n.ID] {
				kept = append(kept, dep)
				continue
			}
			removed = append(removed, n.ID+"->"+dep)
		}
		n.Dependencies = kept
	}
	return removed
}
