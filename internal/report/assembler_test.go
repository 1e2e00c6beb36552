package report

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/guangtouwangba/open-deep-research/internal/backend"
	"github.com/guangtouwangba/open-deep-research/internal/model"
)

type stubBackend struct {
	reply string
	err   error
	calls int
	last  backend.Message
}

func (b *stubBackend) Send(ctx context.Context, msg backend.Message) (backend.Response, error) {
	b.calls++
	b.last = msg
	if b.err != nil {
		return backend.Response{}, b.err
	}
	return backend.Response{Content: b.reply}, nil
}

func (b *stubBackend) Close() error { return nil }

func reportedJob() *model.Job {
	job := model.NewJob("job1", "Compare vector databases", model.DepthQuick, 2)
	f1 := model.Finding{NodeID: "n1", Source: "https://a.org/1", Title: "HNSW", Content: "HNSW is a graph index"}
	f2 := model.Finding{NodeID: "n1", Source: "https://b.org/2", Title: "HNSW paper", Content: "HNSW builds a layered graph index"}
	job.Plan = []*model.TaskNode{
		{ID: "n1", Description: "How HNSW works", Findings: []model.Finding{f1, f2, f1}, Synthesis: "HNSW is a layered graph.", Confidence: 0.8,
			Claims: []model.ClaimCheck{{Claim: "HNSW is a graph", Status: model.StatusConfirmed}}},
		{ID: "n2", Description: "Pricing", Dependencies: []string{}},
		{ID: "n3", Description: "Cost at scale", Dependencies: []string{"n2"}},
	}
	job.MarkCompleted("n1")
	job.Deferred = []string{"n3"}
	job.Findings = []model.Finding{f1, f2}
	job.Verified = []model.VerifiedResult{
		{Finding: f1, Status: model.StatusConfirmed, Supporting: []string{f2.Source}},
		{Finding: f2, Status: model.StatusUnverified},
	}
	return job
}

// TestAssemble_WritesReport verifies the written report and its sections.
func TestAssemble_WritesReport(t *testing.T) {
	job := reportedJob()
	gen := &stubBackend{reply: "# Vector databases\n\nBody.\n"}
	a := NewAssembler(gen, 0)
	a.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }

	rep, err := a.Assemble(context.Background(), job)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	for _, want := range []string{"Current date: 2026-03-01", "Research depth: QUICK", "HNSW is a layered graph.", "[confirmed] HNSW"} {
		if !strings.Contains(gen.last.Content, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if !strings.HasPrefix(rep.Text, "# Vector databases\n\nBody.\n\n## Verification") {
		t.Errorf("report text = %q", rep.Text)
	}
	if !strings.Contains(rep.Text, "- Confirmed: 1\n- Disputed: 0\n- Unverified: 1") {
		t.Errorf("breakdown missing:\n%s", rep.Text)
	}
	if !strings.Contains(rep.Text, "Not researched (unmet dependencies n2): Cost at scale") {
		t.Errorf("coverage gap missing:\n%s", rep.Text)
	}

	if len(rep.Sections) != 3 {
		t.Fatalf("sections = %d, want node, verification and gaps", len(rep.Sections))
	}
	node := rep.Sections[0]
	if node.Title != "How HNSW works" || node.Content != "HNSW is a layered graph." || len(node.Sources) != 2 {
		t.Errorf("node section = %+v", node)
	}
	if rep.Sections[1].Title != "Verification" || !strings.Contains(rep.Sections[1].Content, "Claims checked: 1") {
		t.Errorf("verification section = %+v", rep.Sections[1])
	}
}

// TestAssemble_NothingToReport verifies the placeholder skips the backend.
func TestAssemble_NothingToReport(t *testing.T) {
	job := model.NewJob("job1", "Empty goal", model.DepthQuick, 1)
	gen := &stubBackend{reply: "unused"}

	rep, err := NewAssembler(gen, 0).Assemble(context.Background(), job)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if gen.calls != 0 {
		t.Errorf("backend called %d times", gen.calls)
	}
	if rep.Text != "# Research Report: Empty goal\n\nNo findings available." {
		t.Errorf("text = %q", rep.Text)
	}
}

// TestAssemble_Failure verifies a failed writing call is a report StepError.
func TestAssemble_Failure(t *testing.T) {
	_, err := NewAssembler(&stubBackend{err: errors.New("503")}, 0).Assemble(context.Background(), reportedJob())

	var se *model.StepError
	if !errors.As(err, &se) || se.Step != "report" {
		t.Fatalf("err = %v, want report StepError", err)
	}
}

// TestSections_FindingsFallbackAndPartial verifies unsynthesized nodes list
// their findings and budget exhaustion is reported.
func TestSections_FindingsFallbackAndPartial(t *testing.T) {
	job := model.NewJob("job1", "goal", model.DepthQuick, 1)
	job.Plan = []*model.TaskNode{
		{ID: "n1", Description: "Only findings", Findings: []model.Finding{{NodeID: "n1", Source: "https://a.org", Content: "fact"}}},
	}
	job.Partial = true
	job.Reflection = &model.ReflectionOutcome{Gaps: []string{"no benchmarks"}}

	sections := Sections(job)
	if len(sections) != 3 {
		t.Fatalf("sections = %+v", sections)
	}
	if sections[0].Content != "- fact (Source: https://a.org)" {
		t.Errorf("fallback content = %q", sections[0].Content)
	}
	if sections[2].Content != "- no benchmarks" {
		t.Errorf("gaps = %q", sections[2].Content)
	}

	job.Reflection = nil
	if got := Sections(job)[2].Content; !strings.Contains(got, "iteration budget") {
		t.Errorf("gaps without reflection = %q", got)
	}
}
