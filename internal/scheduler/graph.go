package scheduler

import (
	"fmt"
	"strings"

	"github.com/gammazero/toposort"

	"github.com/guangtouwangba/open-deep-research/internal/model"
)

// Graph is an id-indexed view of a plan used for structural checks.
// It does not own the nodes; the job's Plan slice remains the source of truth.
type Graph struct {
	nodes map[string]*model.TaskNode
	ids   []string // Insertion order, for deterministic iteration
}

// NewGraph indexes nodes. Duplicate ids are an error.
func NewGraph(nodes []*model.TaskNode) (*Graph, error) {
	g := &Graph{
		nodes: make(map[string]*model.TaskNode, len(nodes)),
	}
	for _, n := range nodes {
		if err := g.add(n); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// add indexes one node. Returns error if the node ID already exists.
func (g *Graph) add(n *model.TaskNode) error {
	if _, exists := g.nodes[n.ID]; exists {
		return fmt.Errorf("node with ID %q already exists", n.ID)
	}

	g.nodes[n.ID] = n
	g.ids = append(g.ids, n.ID)
	return nil
}

// Validate runs topological sort using gammazero/toposort.
// Returns ordered node IDs or error if a cycle or dangling dependency is found.
// A node depending on itself is not a cycle.
func (g *Graph) Validate() ([]string, error) {
	for _, id := range g.ids {
		for _, depID := range g.nodes[id].Dependencies {
			if _, exists := g.nodes[depID]; !exists {
				return nil, fmt.Errorf("node %q depends on non-existent node %q", id, depID)
			}
		}
	}

	var edges []toposort.Edge
	for _, id := range g.ids {
		linked := false
		for _, depID := range g.nodes[id].Dependencies {
			if depID == id {
				continue
			}
			// Edge (depID, id) means depID must come before id
			edges = append(edges, toposort.Edge{depID, id})
			linked = true
		}
		if !linked {
			// Root node - add edge from nil so it is included
			edges = append(edges, toposort.Edge{nil, id})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("plan contains cycle: %w", err)
	}

	order := make([]string, 0, len(sorted))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}

	if len(order) != len(g.nodes) {
		found := make(map[string]bool, len(order))
		for _, id := range order {
			found[id] = true
		}
		var missing []string
		for _, id := range g.ids {
			if !found[id] {
				missing = append(missing, id)
			}
		}
		return nil, fmt.Errorf("topological sort lost %d nodes: %s", len(missing), strings.Join(missing, ", "))
	}

	return order, nil
}
