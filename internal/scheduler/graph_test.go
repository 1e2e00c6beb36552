package scheduler

import (
	"strings"
	"testing"

	"github.com/guangtouwangba/open-deep-research/internal/model"
)

func node(id string, deps ...string) *model.TaskNode {
	return &model.TaskNode{ID: id, Description: "task " + id, Dependencies: deps}
}

// TestGraphValidate tests plan validation with various graph structures.
func TestGraphValidate(t *testing.T) {
	tests := []struct {
		name        string
		nodes       []*model.TaskNode
		wantErr     bool
		errContains string
	}{
		{
			name:  "valid linear chain",
			nodes: []*model.TaskNode{node("A"), node("B", "A"), node("C", "B")},
		},
		{
			name:  "valid parallel nodes",
			nodes: []*model.TaskNode{node("A"), node("B"), node("C", "A", "B")},
		},
		{
			name:  "self reference is not a cycle",
			nodes: []*model.TaskNode{node("A", "A"), node("B", "A")},
		},
		{
			name:        "direct cycle",
			nodes:       []*model.TaskNode{node("A", "B"), node("B", "A")},
			wantErr:     true,
			errContains: "cycle",
		},
		{
			name:        "transitive cycle",
			nodes:       []*model.TaskNode{node("A", "B"), node("B", "C"), node("C", "A")},
			wantErr:     true,
			errContains: "cycle",
		},
		{
			name:        "dangling dependency",
			nodes:       []*model.TaskNode{node("A", "ghost")},
			wantErr:     true,
			errContains: "non-existent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGraph(tt.nodes)
			if err != nil {
				t.Fatalf("NewGraph: %v", err)
			}
			order, err := g.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("error %q does not contain %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(order) != len(tt.nodes) {
				t.Errorf("order has %d ids, want %d", len(order), len(tt.nodes))
			}
		})
	}
}

func TestGraph_DuplicateID(t *testing.T) {
	if _, err := NewGraph([]*model.TaskNode{node("A"), node("A")}); err == nil {
		t.Fatal("expected duplicate id error")
	}
}
