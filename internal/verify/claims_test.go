package verify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/guangtouwangba/open-deep-research/internal/backend"
	"github.com/guangtouwangba/open-deep-research/internal/model"
	"github.com/guangtouwangba/open-deep-research/internal/search"
)

// scriptedBackend answers extraction and judgment prompts with fixed text.
type scriptedBackend struct {
	claims   string
	judgment string
	err      error
	calls    int
}

func (b *scriptedBackend) Send(ctx context.Context, msg backend.Message) (backend.Response, error) {
	b.calls++
	if b.err != nil {
		return backend.Response{}, b.err
	}
	if strings.Contains(msg.Content, "CLAIM:") {
		return backend.Response{Content: b.judgment}, nil
	}
	return backend.Response{Content: b.claims}, nil
}

func (b *scriptedBackend) Close() error { return nil }

// fakeSearcher returns results keyed by query, or an error.
type fakeSearcher struct {
	results map[string][]search.Result
	err     error
	queries []string
}

func (s *fakeSearcher) Search(ctx context.Context, query string, limit int) ([]search.Result, error) {
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	res := s.results[query]
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

var goResult = []search.Result{{Title: "Go (programming language)", URL: "https://en.wikipedia.org/wiki/Go", Snippet: "Go was designed at Google and released in 2009."}}

// TestClaimChecker_Check tests each outcome of a single claim check.
func TestClaimChecker_Check(t *testing.T) {
	const claim = "Go was released in 2009"

	tests := []struct {
		name       string
		gen        *scriptedBackend
		searcher   *fakeSearcher
		wantStatus model.ClaimStatus
		wantNote   string
	}{
		{
			name:       "judged confirmed",
			gen:        &scriptedBackend{judgment: `{"status":"confirmed","explanation":"Matches Wikipedia"}`},
			searcher:   &fakeSearcher{results: map[string][]search.Result{claim: goResult}},
			wantStatus: model.StatusConfirmed,
			wantNote:   "Matches Wikipedia",
		},
		{
			name:       "judged disputed",
			gen:        &scriptedBackend{judgment: `{"status":"disputed","explanation":"Released 2012"}`},
			searcher:   &fakeSearcher{results: map[string][]search.Result{claim: goResult}},
			wantStatus: model.StatusDisputed,
		},
		{
			name:       "no results",
			gen:        &scriptedBackend{judgment: `{"status":"confirmed"}`},
			searcher:   &fakeSearcher{},
			wantStatus: model.StatusUnverified,
			wantNote:   noteNoResults,
		},
		{
			name:       "search error",
			gen:        &scriptedBackend{},
			searcher:   &fakeSearcher{err: errors.New("timeout")},
			wantStatus: model.StatusUnverified,
			wantNote:   noteError,
		},
		{
			name:       "judgment call fails",
			gen:        &scriptedBackend{err: errors.New("503")},
			searcher:   &fakeSearcher{results: map[string][]search.Result{claim: goResult}},
			wantStatus: model.StatusUnverified,
			wantNote:   noteError,
		},
		{
			name:       "malformed judgment falls back to lexical match",
			gen:        &scriptedBackend{judgment: "Looks right to me."},
			searcher:   &fakeSearcher{results: map[string][]search.Result{claim: goResult}},
			wantStatus: model.StatusConfirmed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewClaimChecker(tt.gen, tt.searcher, 0, 0, 0).Check(context.Background(), claim)
			if got.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", got.Status, tt.wantStatus)
			}
			if tt.wantNote != "" && got.Note != tt.wantNote {
				t.Errorf("note = %q, want %q", got.Note, tt.wantNote)
			}
			if got.Claim != claim {
				t.Errorf("claim = %q", got.Claim)
			}
		})
	}
}

func TestClaimChecker_ExtractCapsClaims(t *testing.T) {
	gen := &scriptedBackend{claims: `{"claims":["a","b","c","d"]}`}
	checker := NewClaimChecker(gen, &fakeSearcher{}, 2, 0, 0)

	claims := checker.Extract(context.Background(), "some content")
	if len(claims) != 2 {
		t.Errorf("got %d claims, want 2", len(claims))
	}

	if got := checker.Extract(context.Background(), "   "); got != nil {
		t.Errorf("blank content produced claims %v", got)
	}
	if gen.calls != 1 {
		t.Errorf("blank content triggered a call")
	}
}

func TestClaimChecker_CheckAll(t *testing.T) {
	gen := &scriptedBackend{
		claims:   `{"claims":["Go was released in 2009", "Go has generics"]}`,
		judgment: `{"status":"confirmed","explanation":"ok"}`,
	}
	searcher := &fakeSearcher{results: map[string][]search.Result{"Go was released in 2009": goResult}}

	checks := NewClaimChecker(gen, searcher, 0, 0, 0).CheckAll(context.Background(), "Go content")
	if len(checks) != 2 {
		t.Fatalf("got %d checks, want 2", len(checks))
	}
	if checks[0].Status != model.StatusConfirmed || len(checks[0].Sources) != 1 {
		t.Errorf("first check = %+v", checks[0])
	}
	if checks[1].Status != model.StatusUnverified || checks[1].Note != noteNoResults {
		t.Errorf("second check = %+v", checks[1])
	}
}

func TestClaimChecker_Opposition(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]search.Result{
		"criticism of microservices": {
			{Title: "Microservices regret", Snippet: "Operational overhead is high"},
		},
		"microservices limitations problems": {
			{Title: "Distributed monolith", Snippet: "Coupling remains"},
			{Title: "Latency", Snippet: "Network hops add up"},
		},
	}}

	got := NewClaimChecker(&scriptedBackend{}, searcher, 0, 0, 0).Opposition(context.Background(), "microservices")
	if len(got) != 3 {
		t.Fatalf("got %d lines, want 3", len(got))
	}
	if got[0] != "[Microservices regret] Operational overhead is high" {
		t.Errorf("first line = %q", got[0])
	}
	if len(searcher.queries) != 2 {
		t.Errorf("queries = %v, want 2", searcher.queries)
	}
}

// capturingBackend records the prompts it receives and the deadline of each call.
type capturingBackend struct {
	prompts   []string
	deadlines []bool
}

func (b *capturingBackend) Send(ctx context.Context, msg backend.Message) (backend.Response, error) {
	b.prompts = append(b.prompts, msg.Content)
	_, ok := ctx.Deadline()
	b.deadlines = append(b.deadlines, ok)
	if strings.Contains(msg.Content, "CLAIM:") {
		return backend.Response{Content: `{"status":"confirmed","explanation":"ok"}`}, nil
	}
	return backend.Response{Content: `{"claims":["Tokyo is the capital of Japan"]}`}, nil
}

func (b *capturingBackend) Close() error { return nil }

// TestClaimChecker_ExtractKeepsRunesWhole verifies long multi-byte content is
// cut on a character boundary.
func TestClaimChecker_ExtractKeepsRunesWhole(t *testing.T) {
	// Two bytes of ASCII shift every three-byte rune off the byte limit
	content := "ab" + strings.Repeat("東京", maxExtractInput)
	gen := &capturingBackend{}

	NewClaimChecker(gen, &fakeSearcher{}, 0, 0, 0).Extract(context.Background(), content)
	if len(gen.prompts) != 1 {
		t.Fatalf("got %d calls, want 1", len(gen.prompts))
	}
	if !utf8.ValidString(gen.prompts[0]) {
		t.Fatal("extraction prompt is not valid UTF-8")
	}
	want := truncateRunes(content, maxExtractInput)
	if utf8.RuneCountInString(want) != maxExtractInput || !strings.Contains(gen.prompts[0], want) {
		t.Errorf("prompt does not carry the first %d characters", maxExtractInput)
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"abcdef", 3, "abc"},
		{"héllo", 2, "hé"},
		{"東京タワー", 2, "東京"},
		{"東京", 2, "東京"},
	}
	for _, tt := range tests {
		if got := truncateRunes(tt.in, tt.n); got != tt.want {
			t.Errorf("truncateRunes(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

// TestClaimChecker_CheckAllBoundsEachCall verifies every call made by
// CheckAll carries its own deadline when a call timeout is set.
func TestClaimChecker_CheckAllBoundsEachCall(t *testing.T) {
	gen := &capturingBackend{}
	searcher := &fakeSearcher{results: map[string][]search.Result{
		"Tokyo is the capital of Japan": {{Title: "Tokyo", URL: "https://example.org/tokyo", Snippet: "Tokyo is the capital of Japan"}},
	}}

	checks := NewClaimChecker(gen, searcher, 0, 0, time.Minute).CheckAll(context.Background(), "Facts about Japan")
	if len(checks) != 1 || checks[0].Status != model.StatusConfirmed {
		t.Fatalf("checks = %+v", checks)
	}
	if len(gen.deadlines) != 2 {
		t.Fatalf("got %d calls, want extraction plus one judgment", len(gen.deadlines))
	}
	for i, ok := range gen.deadlines {
		if !ok {
			t.Errorf("call %d ran without a deadline", i)
		}
	}
}
