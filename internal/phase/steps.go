package phase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/guangtouwangba/open-deep-research/internal/backend"
	"github.com/guangtouwangba/open-deep-research/internal/domain"
	"github.com/guangtouwangba/open-deep-research/internal/model"
	"github.com/guangtouwangba/open-deep-research/internal/persistence"
	"github.com/guangtouwangba/open-deep-research/internal/schema"
	"github.com/guangtouwangba/open-deep-research/internal/search"
)

const oppositionSuggestion = "Consider incorporating this perspective"

// credibility scores the i-th result gathered for a node.
func credibility(i int) float64 {
	return max(0.5, 0.9-0.05*float64(i))
}

// anchor gathers grounding: authority sources, the anchored topic and
// search findings. Search failures only reduce the evidence.
func (m *Machine) anchor(ctx context.Context, job *model.Job, node *model.TaskNode, dom *domain.Domain) error {
	profile := job.Depth.Profile()

	node.Anchors = dom.AnchorsFor(node.Description)
	node.Context = dom.FormatAnchor(node.Description, node.Anchors)
	node.Queries = m.planQueries(ctx, job, node, profile.QueriesPerNode)

	seen := make(map[string]bool)
	var findings []model.Finding
	for _, q := range node.Queries {
		if len(findings) >= profile.FindingsPerNode {
			break
		}

		callCtx, cancel := m.detached(ctx)
		results, err := m.searcher.Search(callCtx, q, profile.ResultsPerQuery)
		cancel()
		job.SearchHistory = append(job.SearchHistory, q)
		if err != nil {
			if !errors.Is(err, search.ErrUnavailable) {
				log.Printf("WARNING: search %q for node %s failed: %v", q, node.ID, err)
			}
			m.output(job, node, "search failed: %s", q)
			continue
		}

		for _, r := range results {
			if r.URL == "" || seen[r.URL] {
				continue
			}
			seen[r.URL] = true
			findings = append(findings, model.Finding{
				NodeID:      node.ID,
				Source:      r.URL,
				SourceKey:   search.SourceKey(r.URL),
				Title:       r.Title,
				Content:     r.Snippet,
				Credibility: credibility(len(findings)),
			})
			if len(findings) >= profile.FindingsPerNode {
				break
			}
		}
		m.output(job, node, "searched %q: %d results", q, len(results))
	}

	node.Findings = findings
	return nil
}

// planQueries asks for up to n search queries, falling back to the node description.
func (m *Machine) planQueries(ctx context.Context, job *model.Job, node *model.TaskNode, n int) []string {
	fallback := []string{node.Description}

	text, err := m.call(ctx, backend.Message{Content: fmt.Sprintf(queryPrompt, node.Description, job.Goal, n)})
	if err != nil {
		log.Printf("WARNING: query planning for node %s failed: %v", node.ID, err)
		return fallback
	}
	queries, err := schema.ParseQueryList(text)
	if err != nil {
		return fallback
	}
	if len(queries) > n {
		queries = queries[:n]
	}
	return queries
}

// generate produces the node's primary content. A failed call fails the job.
func (m *Machine) generate(ctx context.Context, job *model.Job, node *model.TaskNode) error {
	topic := node.Context
	if topic == "" {
		topic = node.Description
	}

	text, err := m.call(ctx, backend.Message{
		System:  generateSystem,
		Content: fmt.Sprintf(generatePrompt, topic, anchorList(node.Anchors), job.Goal, evidence(node.Findings)),
	})
	if err != nil {
		return &model.StepError{Step: "generate", NodeID: node.ID, Err: err}
	}

	node.Content = strings.TrimSpace(text)
	m.output(job, node, "generated %d characters", len(node.Content))
	return nil
}

func fallbackCritique() schema.Critique {
	return schema.Critique{
		Points: []schema.CritiquePoint{{
			Severity:   "low",
			Issue:      "Unable to perform structured critique",
			Suggestion: "Manual review recommended",
		}},
		Confidence: 0.5,
	}
}

// critique attaches critique (and a council debate when warranted), then
// passes checkpoint 1.
func (m *Machine) critique(ctx context.Context, job *model.Job, node *model.TaskNode, dom *domain.Domain) error {
	if !node.Critiqued {
		crit := fallbackCritique()
		text, err := m.call(ctx, backend.Message{
			System:  fmt.Sprintf(critiqueSystem, dom.DisplayName),
			Content: fmt.Sprintf(critiquePrompt, node.Description, anchorList(node.Anchors), node.Content),
		})
		if err != nil {
			log.Printf("WARNING: critique for node %s failed: %v", node.ID, err)
		} else if parsed, perr := schema.ParseCritique(text); perr != nil {
			log.Printf("WARNING: critique for node %s unusable: %v", node.ID, perr)
		} else {
			crit = parsed
		}

		node.Critique = make([]model.CritiqueItem, 0, len(crit.Points))
		for _, p := range crit.Points {
			node.Critique = append(node.Critique, model.CritiqueItem{Severity: p.Severity, Issue: p.Issue, Suggestion: p.Suggestion})
		}
		node.CritiqueConfidence = crit.Confidence
		node.NeedsDebate = crit.NeedsDebate
		m.output(job, node, "critique: %d points, confidence %.2f", len(node.Critique), node.CritiqueConfidence)

		if m.needsCouncil(node, dom) {
			node.Council = m.council(ctx, job, node, dom)
		}
		node.Critiqued = true
		if err := m.save(ctx, job); err != nil {
			return err
		}
	}

	return m.checkpoint(ctx, job, node, CheckpointCritique, critiqueSummary(node))
}

func (m *Machine) needsCouncil(node *model.TaskNode, dom *domain.Domain) bool {
	if node.NeedsDebate || dom.NeedsCouncil(node.Description) {
		return true
	}
	lower := strings.ToLower(node.Description)
	for _, topic := range m.councilTopics {
		if topic != "" && strings.Contains(lower, strings.ToLower(topic)) {
			return true
		}
	}
	return false
}

// council collects one position per expert. A failed call skips that expert;
// unparseable output is kept verbatim as the position.
func (m *Machine) council(ctx context.Context, job *model.Job, node *model.TaskNode, dom *domain.Domain) []model.CouncilPosition {
	critiqueText := critiqueLines(node.Critique)

	var positions []model.CouncilPosition
	for _, e := range dom.Council() {
		text, err := m.call(ctx, backend.Message{
			Content: fmt.Sprintf(positionPrompt, e.Name, e.Perspective, e.AnchorSource, e.Style,
				node.Description, node.Content, critiqueText),
		})
		if err != nil {
			log.Printf("WARNING: council position from %s for node %s failed: %v", e.Name, node.ID, err)
			continue
		}

		pos := model.CouncilPosition{Expert: e.Name, Perspective: e.Perspective}
		if parsed, perr := schema.ParsePosition(text); perr == nil {
			pos.Position = parsed.Position
			pos.Arguments = parsed.Arguments
			pos.Rebuttals = parsed.Rebuttals
		} else {
			pos.Position = strings.TrimSpace(text)
		}
		positions = append(positions, pos)
	}
	m.output(job, node, "council: %d positions", len(positions))
	return positions
}

// verify checks extracted claims and searches for opposing views, then
// passes checkpoint 2. Nothing here can fail the job.
func (m *Machine) verify(ctx context.Context, job *model.Job, node *model.TaskNode) error {
	if !node.ClaimsChecked {
		// The checker bounds each of its calls with the call timeout
		node.Claims = m.checker.CheckAll(context.WithoutCancel(ctx), node.Content)

		callCtx, cancel := m.detached(ctx)
		node.Opposition = m.checker.Opposition(callCtx, node.Description)
		cancel()
		for _, line := range node.Opposition {
			node.Critique = append(node.Critique, model.CritiqueItem{
				Severity:   "low",
				Issue:      "Opposing view: " + line,
				Suggestion: oppositionSuggestion,
			})
		}
		node.ClaimsChecked = true
		m.output(job, node, "verified %d claims, %d opposing views", len(node.Claims), len(node.Opposition))

		if err := m.save(ctx, job); err != nil {
			return err
		}
	}

	return m.checkpoint(ctx, job, node, CheckpointVerify, verifySummary(node))
}

// synthesize produces the final node text and its confidence, then appends
// the result to the durable log. A failed call fails the job.
func (m *Machine) synthesize(ctx context.Context, job *model.Job, node *model.TaskNode) error {
	council := ""
	if len(node.Council) > 0 {
		var b strings.Builder
		b.WriteString("\nEXPERT COUNCIL POSITIONS:\n")
		for _, p := range node.Council {
			fmt.Fprintf(&b, "- %s (%s): %s\n", p.Expert, p.Perspective, p.Position)
		}
		council = b.String()
	}
	challenges := "None"
	if len(node.Challenges) > 0 {
		challenges = "- " + strings.Join(node.Challenges, "\n- ")
	}

	text, err := m.call(ctx, backend.Message{
		Content: fmt.Sprintf(synthesisPrompt, node.Content, critiqueLines(node.Critique), claimLines(node.Claims), council, challenges),
	})
	if err != nil {
		return &model.StepError{Step: "synthesize", NodeID: node.ID, Err: err}
	}

	confidence, ok := schema.ParseConfidence(text)
	if !ok {
		confidence = node.CritiqueConfidence
	}
	node.Synthesis = schema.StripConfidence(text)
	node.Confidence = confidence

	err = m.store.RecordNodeResult(context.WithoutCancel(ctx), job.ID, persistence.NodeResult{
		NodeID:     node.ID,
		Synthesis:  node.Synthesis,
		Confidence: node.Confidence,
		Findings:   node.Findings,
	})
	if err != nil {
		return fmt.Errorf("recording result for node %s: %w", node.ID, err)
	}
	m.output(job, node, "synthesized, confidence %.2f", node.Confidence)
	return nil
}

func anchorList(anchors []string) string {
	if len(anchors) == 0 {
		return "general knowledge"
	}
	return strings.Join(anchors, ", ")
}

func evidence(findings []model.Finding) string {
	if len(findings) == 0 {
		return "None"
	}
	var b strings.Builder
	for _, f := range findings {
		fmt.Fprintf(&b, "- %s (%s): %s\n", f.Title, f.Source, f.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}

func critiqueLines(items []model.CritiqueItem) string {
	if len(items) == 0 {
		return "None"
	}
	lines := make([]string, len(items))
	for i, c := range items {
		lines[i] = fmt.Sprintf("- [%s] %s", c.Severity, c.Issue)
	}
	return strings.Join(lines, "\n")
}

func claimLines(claims []model.ClaimCheck) string {
	if len(claims) == 0 {
		return "None"
	}
	lines := make([]string, len(claims))
	for i, c := range claims {
		lines[i] = fmt.Sprintf("- [%s] %s: %s", c.Status, c.Claim, c.Note)
	}
	return strings.Join(lines, "\n")
}

func critiqueSummary(node *model.TaskNode) string {
	high := 0
	for _, c := range node.Critique {
		if c.Severity == "high" {
			high++
		}
	}
	return fmt.Sprintf("%d critique points (%d high), confidence %.2f, %d council positions",
		len(node.Critique), high, node.CritiqueConfidence, len(node.Council))
}

func verifySummary(node *model.TaskNode) string {
	counts := map[model.ClaimStatus]int{}
	for _, c := range node.Claims {
		counts[c.Status]++
	}
	return fmt.Sprintf("%d claims: %d confirmed, %d disputed, %d unverified; %d opposing views",
		len(node.Claims), counts[model.StatusConfirmed], counts[model.StatusDisputed],
		counts[model.StatusUnverified], len(node.Opposition))
}
