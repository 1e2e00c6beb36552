package verify

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/guangtouwangba/open-deep-research/internal/backend"
	"github.com/guangtouwangba/open-deep-research/internal/model"
	"github.com/guangtouwangba/open-deep-research/internal/schema"
	"github.com/guangtouwangba/open-deep-research/internal/search"
	"github.com/guangtouwangba/open-deep-research/internal/textsim"
)

const (
	// DefaultMaxClaims caps how many claims are checked per node.
	DefaultMaxClaims = 10
	// resultsPerCheck is the number of search results fetched per claim or opposition query.
	resultsPerCheck = 3
	// maxExtractInput bounds the content handed to claim extraction.
	maxExtractInput = 3000

	noteNoResults = "No search results found"
	noteError     = "Verification failed due to error"
)

// ClaimChecker verifies individual claims with search plus a judgment call.
type ClaimChecker struct {
	gen         backend.Backend
	searcher    search.Searcher
	maxClaims   int
	threshold   float64
	callTimeout time.Duration
}

// NewClaimChecker creates a ClaimChecker. maxClaims <= 0 uses DefaultMaxClaims.
// callTimeout bounds each extraction and claim check made by CheckAll; zero
// leaves them bounded only by the caller's context.
func NewClaimChecker(gen backend.Backend, searcher search.Searcher, maxClaims int, threshold float64, callTimeout time.Duration) *ClaimChecker {
	if maxClaims <= 0 {
		maxClaims = DefaultMaxClaims
	}
	if threshold <= 0 {
		threshold = DefaultOverlapThreshold
	}
	return &ClaimChecker{gen: gen, searcher: searcher, maxClaims: maxClaims, threshold: threshold, callTimeout: callTimeout}
}

// Extract returns at most maxClaims claims found in content. Unusable output
// or a failed call yields no claims.
func (c *ClaimChecker) Extract(ctx context.Context, content string) []string {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	content = truncateRunes(content, maxExtractInput)

	resp, err := c.gen.Send(ctx, backend.Message{Content: fmt.Sprintf(extractPrompt, content)})
	if err != nil {
		log.Printf("WARNING: claim extraction failed: %v", err)
		return nil
	}
	claims, err := schema.ParseClaims(resp.Content)
	if err != nil {
		log.Printf("WARNING: claim extraction output unusable: %v", err)
		return nil
	}
	if len(claims) > c.maxClaims {
		claims = claims[:c.maxClaims]
	}
	return claims
}

// Check verifies one claim. It never returns confirmed without search results.
func (c *ClaimChecker) Check(ctx context.Context, claim string) model.ClaimCheck {
	check := model.ClaimCheck{Claim: claim, Status: model.StatusUnverified}

	results, err := c.searcher.Search(ctx, claim, resultsPerCheck)
	if err != nil {
		check.Note = noteError
		return check
	}
	if len(results) == 0 {
		check.Note = noteNoResults
		return check
	}
	for _, r := range results {
		check.Sources = append(check.Sources, r.URL)
	}

	resp, err := c.gen.Send(ctx, backend.Message{Content: fmt.Sprintf(judgePrompt, claim, formatResults(results))})
	if err != nil {
		check.Note = noteError
		return check
	}
	verdict, err := schema.ParseJudgment(resp.Content)
	if err != nil {
		return c.lexicalCheck(check, results)
	}
	check.Status = model.ClaimStatus(verdict.Status)
	check.Note = verdict.Explanation
	return check
}

// CheckAll runs Extract and then Check on every claim, in order. Each of
// those steps gets its own call timeout.
func (c *ClaimChecker) CheckAll(ctx context.Context, content string) []model.ClaimCheck {
	callCtx, cancel := c.bound(ctx)
	claims := c.Extract(callCtx, content)
	cancel()

	checks := make([]model.ClaimCheck, 0, len(claims))
	for _, claim := range claims {
		callCtx, cancel := c.bound(ctx)
		checks = append(checks, c.Check(callCtx, claim))
		cancel()
	}
	return checks
}

func (c *ClaimChecker) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.callTimeout)
}

// truncateRunes cuts s to at most n characters without splitting a rune.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// lexicalCheck confirms a claim when a result snippet overlaps it enough.
func (c *ClaimChecker) lexicalCheck(check model.ClaimCheck, results []search.Result) model.ClaimCheck {
	for _, r := range results {
		if textsim.OverlapMin(check.Claim, r.Title+" "+r.Snippet) >= c.threshold {
			check.Status = model.StatusConfirmed
			check.Note = "Corroborated by " + r.URL
			return check
		}
	}
	check.Note = "No result corroborated the claim"
	return check
}

// Opposition searches for criticism of topic and returns one "[title] snippet"
// line per result. Search failures are skipped.
func (c *ClaimChecker) Opposition(ctx context.Context, topic string) []string {
	queries := []string{
		"criticism of " + topic,
		topic + " limitations problems",
	}

	var out []string
	for _, q := range queries {
		results, err := c.searcher.Search(ctx, q, resultsPerCheck)
		if err != nil {
			log.Printf("WARNING: opposition search %q failed: %v", q, err)
			continue
		}
		for _, r := range results {
			out = append(out, fmt.Sprintf("[%s] %s", r.Title, r.Snippet))
		}
	}
	return out
}

func formatResults(results []search.Result) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Title: %s\nURL: %s\nSnippet: %s", r.Title, r.URL, r.Snippet)
	}
	return b.String()
}
