// Package report assembles the final report of a job from its node
// syntheses and verified findings.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/guangtouwangba/open-deep-research/internal/backend"
	"github.com/guangtouwangba/open-deep-research/internal/model"
	"github.com/guangtouwangba/open-deep-research/internal/scheduler"
	"github.com/guangtouwangba/open-deep-research/internal/verify"
)

// DefaultCallTimeout bounds the report writing call.
const DefaultCallTimeout = 10 * time.Minute

// Report is the assembled artifact.
type Report struct {
	Text     string
	Sections []model.ReportSection
}

// Assembler writes reports with the generation backend.
type Assembler struct {
	gen         backend.Backend
	callTimeout time.Duration
	now         func() time.Time
}

// NewAssembler creates an Assembler.
func NewAssembler(gen backend.Backend, callTimeout time.Duration) *Assembler {
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	return &Assembler{gen: gen, callTimeout: callTimeout, now: time.Now}
}

// Assemble builds the report for job. A job with nothing to report gets a
// placeholder without calling the backend. A failed writing call is returned
// as a *model.StepError.
func (a *Assembler) Assemble(ctx context.Context, job *model.Job) (Report, error) {
	sections := Sections(job)

	if !hasContent(job) {
		return Report{
			Text:     fmt.Sprintf("# Research Report: %s\n\nNo findings available.", job.Goal),
			Sections: sections,
		}, nil
	}

	guide := guideFor(job.Depth)
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.callTimeout)
	defer cancel()

	resp, err := a.gen.Send(callCtx, backend.Message{
		System: writerSystem,
		Content: fmt.Sprintf(reportPrompt, job.Goal, a.now().Format("2006-01-02"),
			strings.ToUpper(string(job.Depth)), guide.length, guide.style,
			analyses(job), len(job.Verified), findingLines(job.Verified), guide.sections),
	})
	if err != nil {
		return Report{}, &model.StepError{Step: "report", Err: err}
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(resp.Content))
	b.WriteString("\n\n## Verification\n\n")
	b.WriteString(breakdown(job))
	if gaps := coverageGaps(job); gaps != "" {
		b.WriteString("\n\n## Coverage Gaps\n\n")
		b.WriteString(gaps)
	}
	return Report{Text: b.String(), Sections: sections}, nil
}

// Sections returns one section per node that produced anything, in plan
// order, followed by the verification breakdown and any coverage gaps.
func Sections(job *model.Job) []model.ReportSection {
	var sections []model.ReportSection
	for _, n := range job.Plan {
		if n.Synthesis == "" && len(n.Findings) == 0 {
			continue
		}

		content := n.Synthesis
		if content == "" {
			lines := make([]string, len(n.Findings))
			for i, f := range n.Findings {
				lines[i] = fmt.Sprintf("- %s (Source: %s)", f.Content, f.Source)
			}
			content = strings.Join(lines, "\n")
		}

		var sources []string
		seen := make(map[string]bool)
		for _, f := range n.Findings {
			if !seen[f.Source] {
				seen[f.Source] = true
				sources = append(sources, f.Source)
			}
		}
		sections = append(sections, model.ReportSection{Title: n.Description, Content: content, Sources: sources})
	}

	sections = append(sections, model.ReportSection{Title: "Verification", Content: breakdown(job)})
	if gaps := coverageGaps(job); gaps != "" {
		sections = append(sections, model.ReportSection{Title: "Coverage Gaps", Content: gaps})
	}
	return sections
}

func hasContent(job *model.Job) bool {
	if len(job.Verified) > 0 {
		return true
	}
	for _, n := range job.Plan {
		if n.Synthesis != "" {
			return true
		}
	}
	return false
}

func breakdown(job *model.Job) string {
	counts := verify.Counts(job.Verified)
	var b strings.Builder
	fmt.Fprintf(&b, "- Confirmed: %d\n- Disputed: %d\n- Unverified: %d",
		counts[model.StatusConfirmed], counts[model.StatusDisputed], counts[model.StatusUnverified])

	claims := map[model.ClaimStatus]int{}
	total := 0
	for _, n := range job.Plan {
		for _, c := range n.Claims {
			claims[c.Status]++
			total++
		}
	}
	if total > 0 {
		fmt.Fprintf(&b, "\n- Claims checked: %d (%d confirmed, %d disputed, %d unverified)",
			total, claims[model.StatusConfirmed], claims[model.StatusDisputed], claims[model.StatusUnverified])
	}
	if len(job.Conflicts) > 0 {
		fmt.Fprintf(&b, "\n- Conflicts: %s", strings.Join(job.Conflicts, "; "))
	}
	return b.String()
}

func coverageGaps(job *model.Job) string {
	var lines []string
	for _, id := range scheduler.Unresolved(job) {
		if n, ok := job.Node(id); ok {
			lines = append(lines, fmt.Sprintf("- Not researched (unmet dependencies %s): %s",
				strings.Join(scheduler.Missing(job, n), ", "), n.Description))
		}
	}
	if job.Partial && job.Reflection != nil {
		for _, g := range job.Reflection.Gaps {
			lines = append(lines, "- "+g)
		}
	}
	if job.Partial && len(lines) == 0 {
		lines = append(lines, "- Research stopped at the iteration budget before coverage was complete")
	}
	return strings.Join(lines, "\n")
}

func analyses(job *model.Job) string {
	var parts []string
	for _, n := range job.Plan {
		if n.Synthesis == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("### %s (confidence %.2f)\n%s", n.Description, n.Confidence, n.Synthesis))
	}
	if len(parts) == 0 {
		return "None"
	}
	return strings.Join(parts, "\n\n")
}

func findingLines(results []model.VerifiedResult) string {
	if len(results) == 0 {
		return "None"
	}
	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "- [%s] %s: %s (Source: %s)\n", r.Status, r.Title, r.Content, r.Source)
	}
	return strings.TrimRight(b.String(), "\n")
}
