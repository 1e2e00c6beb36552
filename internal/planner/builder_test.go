package planner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/guangtouwangba/open-deep-research/internal/backend"
	"github.com/guangtouwangba/open-deep-research/internal/domain"
	"github.com/guangtouwangba/open-deep-research/internal/model"
	"github.com/guangtouwangba/open-deep-research/internal/schema"
)

// stubBackend returns a canned reply and records the last message.
type stubBackend struct {
	reply string
	err   error
	last  backend.Message
}

func (s *stubBackend) Send(ctx context.Context, msg backend.Message) (backend.Response, error) {
	s.last = msg
	if s.err != nil {
		return backend.Response{}, s.err
	}
	return backend.Response{Content: s.reply}, nil
}

func (s *stubBackend) Close() error { return nil }

func position(nodes []*model.TaskNode) map[string]int {
	pos := make(map[string]int, len(nodes))
	for i, n := range nodes {
		pos[n.ID] = i
	}
	return pos
}

// TestBuild_OrdersAndValidates verifies a well-formed plan is ordered by category with dependencies intact.
func TestBuild_OrdersAndValidates(t *testing.T) {
	gen := &stubBackend{reply: "Here is the plan:\n```json\n" + `{"tasks":[
		{"id":"t3","description":"Compare leading products","category":"comparison","order":1,"priority":3,"dependencies":["t1","t2"]},
		{"id":"t1","description":"Define the problem space","category":"background","order":1,"priority":5,"dependencies":[]},
		{"id":"t2","description":"Explain core techniques","category":"background","order":2,"priority":4,"dependencies":["t1"]}
	]}` + "\n```"}

	nodes, err := NewBuilder(gen, 0).Build(context.Background(), "Vector databases", model.DepthQuick, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(nodes) != 3 {
		t.Fatalf("got %d nodes, want 3", len(nodes))
	}

	got := []string{nodes[0].ID, nodes[1].ID, nodes[2].ID}
	want := []string{"t1", "t2", "t3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
	for _, n := range nodes {
		if n.Phase != model.PhasePending {
			t.Errorf("node %s phase = %s", n.ID, n.Phase)
		}
	}
	if !strings.Contains(gen.last.Content, "about 4 tasks") {
		t.Errorf("prompt does not carry the depth target: %q", gen.last.Content)
	}
}

// TestBuild_MalformedFallsBackToRoot verifies unusable output never fails planning.
func TestBuild_MalformedFallsBackToRoot(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"prose", "I cannot produce a plan for that."},
		{"empty task list", `{"tasks":[]}`},
		{"broken json", `{"tasks":[{"id":"t1",}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes, err := NewBuilder(&stubBackend{reply: tt.reply}, 0).
				Build(context.Background(), "  Quantum error correction  ", model.DepthBalanced, nil)
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if len(nodes) != 1 {
				t.Fatalf("got %d nodes, want 1", len(nodes))
			}
			if nodes[0].Description != "Quantum error correction" || len(nodes[0].Dependencies) != 0 {
				t.Errorf("root node = %+v", nodes[0])
			}
		})
	}
}

// TestBuild_TransportFailure verifies a failed call is a job-critical step error.
func TestBuild_TransportFailure(t *testing.T) {
	_, err := NewBuilder(&stubBackend{err: errors.New("connection refused")}, 0).
		Build(context.Background(), "goal", model.DepthQuick, nil)

	var se *model.StepError
	if !errors.As(err, &se) || se.Step != "plan" {
		t.Fatalf("err = %v, want plan StepError", err)
	}
}

// TestBuild_BreaksCycles verifies a cyclic plan is repaired rather than rejected.
func TestBuild_BreaksCycles(t *testing.T) {
	gen := &stubBackend{reply: `{"tasks":[
		{"id":"a","description":"First topic","dependencies":["c"]},
		{"id":"b","description":"Second topic","dependencies":["a"]},
		{"id":"c","description":"Third topic","dependencies":["b"]}
	]}`}

	nodes, err := NewBuilder(gen, 0).Build(context.Background(), "goal", model.DepthQuick, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(nodes) != 3 {
		t.Fatalf("got %d nodes, want 3", len(nodes))
	}
	pos := position(nodes)
	for _, n := range nodes {
		for _, dep := range n.Dependencies {
			if pos[dep] > pos[n.ID] {
				t.Errorf("%s listed before its dependency %s", n.ID, dep)
			}
		}
	}
}

func TestBuild_UsesDomainName(t *testing.T) {
	reg, err := domain.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	dom, _ := reg.Get("research")
	gen := &stubBackend{reply: `{"tasks":[{"description":"Only task"}]}`}

	if _, err := NewBuilder(gen, 0).Build(context.Background(), "goal", model.DepthQuick, dom); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(gen.last.Content, "Domain: "+dom.DisplayName) {
		t.Errorf("prompt missing domain: %q", gen.last.Content)
	}
}

// TestDedup covers duplicate collapsing and dependency rewriting.
func TestDedup(t *testing.T) {
	nodes := []*model.TaskNode{
		{ID: "a", Description: "What is retrieval augmented generation?"},
		{ID: "b", Description: "What is Retrieval Augmented Generation??", Dependencies: []string{"x"}},
		{ID: "x", Description: "History of search engines"},
		{ID: "c", Description: "Evaluate RAG quality metrics", Dependencies: []string{"b", "a", "ghost", "c"}},
	}

	got := Dedup(nodes, DefaultDedupThreshold)
	if len(got) != 3 {
		t.Fatalf("got %d nodes, want 3", len(got))
	}

	byID := map[string]*model.TaskNode{}
	for _, n := range got {
		byID[n.ID] = n
	}
	if _, ok := byID["b"]; ok {
		t.Fatal("duplicate b survived")
	}
	if deps := byID["a"].Dependencies; len(deps) != 1 || deps[0] != "x" {
		t.Errorf("survivor a dependencies = %v, want inherited [x]", deps)
	}
	if deps := byID["c"].Dependencies; len(deps) != 1 || deps[0] != "a" {
		t.Errorf("c dependencies = %v, want [a]", deps)
	}
}

func TestToNodes_AssignsIDs(t *testing.T) {
	nodes := toNodes([]schema.TaskSpec{
		{ID: "", Description: "one"},
		{ID: "n1", Description: "two"},
		{ID: "n1", Description: "three"},
	})

	seen := map[string]bool{}
	for _, n := range nodes {
		if n.ID == "" || seen[n.ID] {
			t.Fatalf("ids not unique: %v", n.ID)
		}
		seen[n.ID] = true
		if n.Category != "general" {
			t.Errorf("category = %q, want general", n.Category)
		}
	}
	if nodes[1].ID != "n1" {
		t.Errorf("explicit id replaced: %s", nodes[1].ID)
	}
}
