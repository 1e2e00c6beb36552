package phase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/guangtouwangba/open-deep-research/internal/backend"
	"github.com/guangtouwangba/open-deep-research/internal/domain"
	"github.com/guangtouwangba/open-deep-research/internal/model"
	"github.com/guangtouwangba/open-deep-research/internal/persistence"
	"github.com/guangtouwangba/open-deep-research/internal/search"
	"github.com/guangtouwangba/open-deep-research/internal/verify"
)

// routedBackend answers each prompt kind with a canned reply.
type routedBackend struct {
	mu      sync.Mutex
	replies map[string]string
	fail    map[string]error
	calls   map[string]int
	prompts map[string]string
}

func newRoutedBackend() *routedBackend {
	return &routedBackend{
		replies: map[string]string{
			"queries":   `{"queries":["vector index design","ann benchmarks"]}`,
			"generate":  "Vector databases index embeddings with HNSW graphs.",
			"critique":  `{"critiques":[{"severity":"high","issue":"No benchmark numbers","suggestion":"Cite ann-benchmarks"}],"confidence":0.7,"needs_debate":false}`,
			"position":  `{"position":"Graphs win on recall","arguments":["HNSW recall is high"],"rebuttals":["IVF is cheaper"]}`,
			"claims":    `{"claims":["HNSW is a graph index"]}`,
			"judgment":  `{"status":"confirmed","explanation":"Matches the paper"}`,
			"synthesis": "Final analysis of vector databases.\nCONFIDENCE: 0.82",
		},
		fail:    map[string]error{},
		calls:   map[string]int{},
		prompts: map[string]string{},
	}
}

func kindOf(msg backend.Message) string {
	switch {
	case strings.Contains(msg.Content, "Write web search queries"):
		return "queries"
	case strings.Contains(msg.Content, "EVIDENCE FROM SEARCH"):
		return "generate"
	case strings.Contains(msg.Content, "CONTENT TO CRITIQUE"):
		return "critique"
	case strings.Contains(msg.Content, "CONTENT UNDER DEBATE"):
		return "position"
	case strings.Contains(msg.Content, "Extract the verifiable factual claims"):
		return "claims"
	case strings.Contains(msg.Content, "CLAIM:"):
		return "judgment"
	case strings.Contains(msg.Content, "Synthesize the following"):
		return "synthesis"
	}
	return "unknown"
}

func (b *routedBackend) Send(ctx context.Context, msg backend.Message) (backend.Response, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	kind := kindOf(msg)
	b.calls[kind]++
	b.prompts[kind] = msg.Content
	if err := b.fail[kind]; err != nil {
		return backend.Response{}, err
	}
	return backend.Response{Content: b.replies[kind]}, nil
}

func (b *routedBackend) Close() error { return nil }

func (b *routedBackend) total() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		n += c
	}
	return n
}

// stubSearcher returns numbered results for every query.
type stubSearcher struct {
	err   error
	calls int
}

func (s *stubSearcher) Search(ctx context.Context, query string, limit int) ([]search.Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	var out []search.Result
	for i := 0; i < limit; i++ {
		out = append(out, search.Result{
			Title:   fmt.Sprintf("%s #%d", query, i),
			URL:     fmt.Sprintf("https://site%d.example.com/%d", i, len(query)),
			Snippet: "HNSW is a graph index used by vector databases",
		})
	}
	return out, nil
}

// recordingStore keeps the phase seen at every save and the results log.
type recordingStore struct {
	mu      sync.Mutex
	phases  []model.Phase
	node    *model.TaskNode
	results []persistence.NodeResult
}

func (s *recordingStore) Save(ctx context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if s.node != nil {
		s.phases = append(s.phases, s.node.Phase)
	}
	return nil
}

func (s *recordingStore) RecordNodeResult(ctx context.Context, jobID string, r persistence.NodeResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
	return nil
}

// scriptedGate returns fixed decisions per checkpoint.
type scriptedGate struct {
	decisions map[int]Decision
	asked     []int
	onAsk     func()
	err       error
}

func (g *scriptedGate) Decide(ctx context.Context, req Request) (Decision, error) {
	g.asked = append(g.asked, req.Checkpoint)
	if g.onAsk != nil {
		g.onAsk()
	}
	if g.err != nil {
		return Decision{}, g.err
	}
	return g.decisions[req.Checkpoint], nil
}

type fixture struct {
	gen      *routedBackend
	searcher *stubSearcher
	store    *recordingStore
	job      *model.Job
	node     *model.TaskNode
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	node := &model.TaskNode{ID: "n1", Description: "How vector databases index embeddings", Category: "technical"}
	job := model.NewJob("job1", "Understand vector databases", model.DepthBalanced, 2)
	job.Domain = domain.General
	job.Plan = []*model.TaskNode{node}
	return &fixture{
		gen:      newRoutedBackend(),
		searcher: &stubSearcher{},
		store:    &recordingStore{node: node},
		job:      job,
		node:     node,
	}
}

func (f *fixture) machine(t *testing.T, opts Options) *Machine {
	t.Helper()
	reg, err := domain.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	checker := verify.NewClaimChecker(f.gen, f.searcher, 0, 0, time.Second)
	return New(f.gen, f.searcher, checker, f.store, reg, opts)
}

// TestAdvance_FullPipeline verifies a node walks every phase in order and
// each transition is saved.
func TestAdvance_FullPipeline(t *testing.T) {
	f := newFixture(t)

	findings, err := f.machine(t, Options{}).Produce(context.Background(), f.job, f.node)
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}

	if f.node.Phase != model.PhaseSynthesized {
		t.Fatalf("phase = %s, want SYNTHESIZED", f.node.Phase)
	}

	// Transitions are saved in order; intermediate saves repeat the current phase
	last := model.PhasePending
	advanced := 0
	for _, p := range f.store.phases {
		if p < last {
			t.Fatalf("saved phases went backwards: %v", f.store.phases)
		}
		if p > last {
			advanced++
		}
		last = p
	}
	if advanced != 5 {
		t.Errorf("saw %d transitions in saves %v, want 5", advanced, f.store.phases)
	}

	// balanced: 2 queries, 5 results each, 5 findings kept
	if len(findings) != 5 {
		t.Fatalf("findings = %d, want 5", len(findings))
	}
	if !approx(findings[0].Credibility, 0.9) || !approx(findings[4].Credibility, 0.7) {
		t.Errorf("credibility = %v..%v", findings[0].Credibility, findings[4].Credibility)
	}
	if findings[0].SourceKey != "site0.example.com" {
		t.Errorf("source key = %q", findings[0].SourceKey)
	}
	if len(f.job.SearchHistory) != 1 {
		t.Errorf("search history = %v, want the one query needed to fill the cap", f.job.SearchHistory)
	}
	if !strings.HasPrefix(f.node.Context, "Based on ") || len(f.node.Anchors) == 0 {
		t.Errorf("anchoring missing: context=%q anchors=%v", f.node.Context, f.node.Anchors)
	}

	if len(f.node.Checkpoints) != 2 || f.node.Checkpoints[0].Action != ActionAuto {
		t.Errorf("checkpoints = %+v", f.node.Checkpoints)
	}
	if len(f.node.Claims) != 1 || f.node.Claims[0].Status != model.StatusConfirmed {
		t.Errorf("claims = %+v", f.node.Claims)
	}
	if len(f.node.Opposition) != 6 {
		t.Errorf("opposition = %d lines, want 2 queries x 3 results", len(f.node.Opposition))
	}
	if f.node.Synthesis != "Final analysis of vector databases." || f.node.Confidence != 0.82 {
		t.Errorf("synthesis = %q confidence = %v", f.node.Synthesis, f.node.Confidence)
	}
	if len(f.store.results) != 1 || f.store.results[0].NodeID != "n1" {
		t.Errorf("node results = %+v", f.store.results)
	}
	if f.gen.calls["position"] != 0 {
		t.Error("council ran without a trigger")
	}
}

// TestAdvance_Fallbacks verifies malformed critique and missing confidence use fallbacks.
func TestAdvance_Fallbacks(t *testing.T) {
	f := newFixture(t)
	f.gen.replies["queries"] = "no json here"
	f.gen.replies["critique"] = "This is fine."
	f.gen.replies["synthesis"] = "Final text without a score."

	if err := f.machine(t, Options{}).Advance(context.Background(), f.job, f.node); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	if len(f.node.Queries) != 1 || f.node.Queries[0] != f.node.Description {
		t.Errorf("queries = %v, want description fallback", f.node.Queries)
	}
	first := f.node.Critique[0]
	if first.Issue != "Unable to perform structured critique" || first.Severity != "low" || first.Suggestion != "Manual review recommended" {
		t.Errorf("fallback critique = %+v", first)
	}
	if f.node.CritiqueConfidence != 0.5 || f.node.Confidence != 0.5 {
		t.Errorf("confidence = %v / %v, want 0.5 / 0.5", f.node.CritiqueConfidence, f.node.Confidence)
	}
}

// TestAdvance_SearchFailureIsNotFatal verifies nodes proceed without evidence.
func TestAdvance_SearchFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.searcher.err = errors.New("rate limited")

	if err := f.machine(t, Options{}).Advance(context.Background(), f.job, f.node); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if f.node.Phase != model.PhaseSynthesized {
		t.Errorf("phase = %s", f.node.Phase)
	}
	if len(f.node.Findings) != 0 {
		t.Errorf("findings = %v", f.node.Findings)
	}
	// Claims are checked but cannot be confirmed without results
	for _, c := range f.node.Claims {
		if c.Status == model.StatusConfirmed {
			t.Errorf("claim %q confirmed without search results", c.Claim)
		}
	}
}

// TestAdvance_CriticalFailures verifies generation and synthesis failures fail the node.
func TestAdvance_CriticalFailures(t *testing.T) {
	tests := []struct {
		kind      string
		step      string
		wantPhase model.Phase
	}{
		{"generate", "generate", model.PhaseAnchored},
		{"synthesis", "synthesize", model.PhaseVerified},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			f := newFixture(t)
			f.gen.fail[tt.kind] = errors.New("503 overloaded")

			err := f.machine(t, Options{}).Advance(context.Background(), f.job, f.node)
			var se *model.StepError
			if !errors.As(err, &se) || se.Step != tt.step || se.NodeID != "n1" {
				t.Fatalf("err = %v, want %s StepError", err, tt.step)
			}
			if f.node.Phase != tt.wantPhase {
				t.Errorf("phase = %s, want %s", f.node.Phase, tt.wantPhase)
			}
			if len(f.store.results) != 0 {
				t.Error("node result recorded for a failed node")
			}
		})
	}
}

// TestAdvance_NonCriticalFailures verifies critique and claim failures degrade gracefully.
func TestAdvance_NonCriticalFailures(t *testing.T) {
	f := newFixture(t)
	f.gen.fail["critique"] = errors.New("timeout")
	f.gen.fail["claims"] = errors.New("timeout")
	f.gen.fail["queries"] = errors.New("timeout")

	if err := f.machine(t, Options{}).Advance(context.Background(), f.job, f.node); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if f.node.CritiqueConfidence != 0.5 || len(f.node.Claims) != 0 {
		t.Errorf("critique confidence = %v, claims = %v", f.node.CritiqueConfidence, f.node.Claims)
	}
}

// TestAdvance_Council verifies the council branch and its triggers.
func TestAdvance_Council(t *testing.T) {
	tests := []struct {
		name          string
		needsDebate   bool
		councilTopics []string
		position      string
		wantPositions int
	}{
		{name: "no trigger", wantPositions: 0},
		{name: "critique asks for debate", needsDebate: true, wantPositions: 3},
		{name: "configured topic marker", councilTopics: []string{"EMBEDDINGS"}, wantPositions: 3},
		{name: "malformed position kept as text", needsDebate: true, position: "I simply disagree.", wantPositions: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.needsDebate {
				f.gen.replies["critique"] = `{"critiques":[],"confidence":0.6,"needs_debate":true}`
			}
			if tt.position != "" {
				f.gen.replies["position"] = tt.position
			}

			m := f.machine(t, Options{CouncilTopics: tt.councilTopics})
			if err := m.Advance(context.Background(), f.job, f.node); err != nil {
				t.Fatalf("Advance: %v", err)
			}
			if len(f.node.Council) != tt.wantPositions {
				t.Fatalf("council = %d positions, want %d", len(f.node.Council), tt.wantPositions)
			}
			if tt.wantPositions == 0 {
				return
			}
			if f.node.Council[0].Expert != "Theorist" {
				t.Errorf("first expert = %q, want default Theorist", f.node.Council[0].Expert)
			}
			if tt.position != "" && f.node.Council[0].Position != tt.position {
				t.Errorf("position = %q, want raw text", f.node.Council[0].Position)
			}
			if !strings.Contains(f.gen.prompts["synthesis"], "EXPERT COUNCIL POSITIONS") {
				t.Error("synthesis prompt omits council")
			}
		})
	}
}

// TestAdvance_GateInputReachesSynthesis verifies challenge and revise text is kept.
func TestAdvance_GateInputReachesSynthesis(t *testing.T) {
	f := newFixture(t)
	gate := &scriptedGate{decisions: map[int]Decision{
		CheckpointCritique: {Action: ActionChallenge, Text: "What about IVF indexes?"},
		CheckpointVerify:   {Action: ActionRevise, Text: "Add memory costs"},
	}}

	if err := f.machine(t, Options{Gate: gate}).Advance(context.Background(), f.job, f.node); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if len(gate.asked) != 2 {
		t.Errorf("gate asked %v, want both checkpoints", gate.asked)
	}
	if len(f.node.Challenges) != 2 {
		t.Fatalf("challenges = %v", f.node.Challenges)
	}
	prompt := f.gen.prompts["synthesis"]
	if !strings.Contains(prompt, "What about IVF indexes?") || !strings.Contains(prompt, "Add memory costs") {
		t.Errorf("synthesis prompt missing gate input:\n%s", prompt)
	}
	if rec, ok := f.node.Checkpoint(CheckpointCritique); !ok || rec.Action != ActionChallenge {
		t.Errorf("checkpoint 1 record = %+v", rec)
	}
}

// TestAdvance_InterruptAtGateResumes verifies an interrupt at a checkpoint keeps
// the critique and the resumed node only asks the gate again.
func TestAdvance_InterruptAtGateResumes(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gate := &scriptedGate{onAsk: cancel, err: context.Canceled}
	err := f.machine(t, Options{Gate: gate}).Advance(ctx, f.job, f.node)
	if !errors.Is(err, model.ErrInterrupted) {
		t.Fatalf("err = %v, want ErrInterrupted", err)
	}
	if f.node.Phase != model.PhaseGenerated {
		t.Fatalf("phase = %s, want GENERATED", f.node.Phase)
	}
	if f.node.Critique == nil {
		t.Fatal("critique not kept")
	}

	resumeGate := &scriptedGate{decisions: map[int]Decision{
		CheckpointCritique: {Action: ActionAccept},
		CheckpointVerify:   {Action: ActionAccept},
	}}
	if err := f.machine(t, Options{Gate: resumeGate}).Advance(context.Background(), f.job, f.node); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if f.gen.calls["critique"] != 1 {
		t.Errorf("critique ran %d times, want 1", f.gen.calls["critique"])
	}
	if f.gen.calls["generate"] != 1 {
		t.Errorf("generate ran %d times, want 1", f.gen.calls["generate"])
	}
	if len(f.node.Checkpoints) != 2 {
		t.Errorf("checkpoints = %+v", f.node.Checkpoints)
	}
}

// TestAdvance_RecordedCheckpointNotAskedAgain verifies persisted gate records are honored.
func TestAdvance_RecordedCheckpointNotAskedAgain(t *testing.T) {
	f := newFixture(t)
	f.node.Phase = model.PhaseGenerated
	f.node.Content = "content"
	f.node.Critiqued = true
	f.node.Checkpoints = []model.CheckpointRecord{{Checkpoint: CheckpointCritique, Action: ActionAccept}}

	gate := &scriptedGate{decisions: map[int]Decision{CheckpointVerify: {Action: ActionAccept}}}
	if err := f.machine(t, Options{Gate: gate}).Advance(context.Background(), f.job, f.node); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if len(gate.asked) != 1 || gate.asked[0] != CheckpointVerify {
		t.Errorf("gate asked %v, want only checkpoint 2", gate.asked)
	}
}

// TestAdvance_EmptyVerificationSurvivesResume verifies a node interrupted at
// checkpoint 2 with no claims and no opposing views is not re-verified after
// its state is reloaded.
func TestAdvance_EmptyVerificationSurvivesResume(t *testing.T) {
	f := newFixture(t)
	f.gen.replies["claims"] = `{"claims":[]}`
	f.searcher.err = errors.New("search down")
	f.node.Phase = model.PhaseCritiqued
	f.node.Content = "content"
	f.node.Critiqued = true
	f.node.Checkpoints = []model.CheckpointRecord{{Checkpoint: CheckpointCritique, Action: ActionAccept}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gate := &scriptedGate{onAsk: cancel, err: context.Canceled}
	if err := f.machine(t, Options{Gate: gate}).Advance(ctx, f.job, f.node); !errors.Is(err, model.ErrInterrupted) {
		t.Fatalf("err = %v, want ErrInterrupted", err)
	}
	if !f.node.ClaimsChecked || f.gen.calls["claims"] != 1 {
		t.Fatalf("claims checked = %v after %d extractions", f.node.ClaimsChecked, f.gen.calls["claims"])
	}
	searches := f.searcher.calls

	// Reload the node the way the store does
	data, err := json.Marshal(f.node)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	reloaded := &model.TaskNode{}
	if err := json.Unmarshal(data, reloaded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if reloaded.Claims != nil || reloaded.Opposition != nil {
		t.Fatalf("empty verification results survived encoding: %+v", reloaded)
	}
	f.job.Plan[0] = reloaded
	f.store.node = reloaded

	resumeGate := &scriptedGate{decisions: map[int]Decision{CheckpointVerify: {Action: ActionAccept}}}
	if err := f.machine(t, Options{Gate: resumeGate}).Advance(context.Background(), f.job, reloaded); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if f.gen.calls["claims"] != 1 {
		t.Errorf("claims extracted %d times, want 1", f.gen.calls["claims"])
	}
	if f.searcher.calls != searches {
		t.Errorf("searches = %d after resume, want %d", f.searcher.calls, searches)
	}
	if reloaded.Phase != model.PhaseSynthesized {
		t.Errorf("phase = %s, want SYNTHESIZED", reloaded.Phase)
	}
}

// TestProduce_Idempotent verifies a synthesized node makes no calls.
func TestProduce_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.node.Phase = model.PhaseSynthesized
	f.node.Findings = []model.Finding{{NodeID: "n1", Source: "https://a.org"}}

	findings, err := f.machine(t, Options{}).Produce(context.Background(), f.job, f.node)
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if len(findings) != 1 || f.gen.total() != 0 || f.searcher.calls != 0 {
		t.Errorf("findings=%d calls=%d searches=%d", len(findings), f.gen.total(), f.searcher.calls)
	}
}

func TestAdvance_CancelledBeforeStart(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.machine(t, Options{}).Advance(ctx, f.job, f.node)
	if !errors.Is(err, model.ErrInterrupted) {
		t.Fatalf("err = %v, want ErrInterrupted", err)
	}
	if f.gen.total() != 0 || f.node.Phase != model.PhasePending {
		t.Errorf("work done after cancellation: calls=%d phase=%s", f.gen.total(), f.node.Phase)
	}
}

func TestCredibility(t *testing.T) {
	tests := []struct {
		i    int
		want float64
	}{
		{0, 0.9}, {4, 0.7}, {8, 0.5}, {20, 0.5},
	}
	for _, tt := range tests {
		if got := credibility(tt.i); !approx(got, tt.want) {
			t.Errorf("credibility(%d) = %v, want %v", tt.i, got, tt.want)
		}
	}
}

func approx(a, b float64) bool {
	return a-b < 1e-9 && b-a < 1e-9
}
