// Package reflection evaluates research coverage between scheduling passes
// and decides whether the job keeps researching.
package reflection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/guangtouwangba/open-deep-research/internal/backend"
	"github.com/guangtouwangba/open-deep-research/internal/model"
	"github.com/guangtouwangba/open-deep-research/internal/scheduler"
	"github.com/guangtouwangba/open-deep-research/internal/schema"
)

// DefaultCallTimeout bounds the evaluation call.
const DefaultCallTimeout = 5 * time.Minute

// ErrBudgetExhausted is returned by Reflect when the job has no iterations left.
var ErrBudgetExhausted = errors.New("reflection budget exhausted")

// Reflector runs one reflection pass per call.
type Reflector struct {
	gen         backend.Backend
	threshold   float64
	callTimeout time.Duration
}

// NewReflector creates a Reflector. threshold is the near-duplicate ratio
// used when appending proposed tasks to the plan.
func NewReflector(gen backend.Backend, threshold float64, callTimeout time.Duration) *Reflector {
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	return &Reflector{gen: gen, threshold: threshold, callTimeout: callTimeout}
}

// Reflect evaluates coverage, appends any proposed tasks to the plan and
// consumes one iteration. The outcome is stored on job.Reflection.
//
// Unusable or failed evaluations fall back to "complete when anything was
// found"; they never fail the job.
func (r *Reflector) Reflect(ctx context.Context, job *model.Job) (*model.ReflectionOutcome, error) {
	if job.Iteration >= job.Budget {
		return nil, fmt.Errorf("job %s at %d/%d: %w", job.ID, job.Iteration, job.Budget, ErrBudgetExhausted)
	}

	covered, total := job.Coverage()
	outcome := &model.ReflectionOutcome{Covered: covered, Total: total}

	parsed, err := r.evaluate(ctx, job)
	if err != nil {
		reason := "reflection call failed"
		if schema.IsMalformed(err) {
			reason = "reflection output unusable"
		}
		log.Printf("WARNING: %s for job %s, using fallback: %v", reason, job.ID, err)
		outcome.Complete = len(job.Findings) > 0
		outcome.Reasoning = "Fallback completion check (" + reason + ")"
		outcome.Fallback = true
	} else {
		outcome.Complete = parsed.Complete
		outcome.Gaps = parsed.Gaps
		outcome.Reasoning = parsed.Reasoning

		if !parsed.Complete && len(parsed.NewTasks) > 0 {
			added, err := scheduler.Extend(job, candidates(parsed.NewTasks), r.threshold)
			if err != nil {
				log.Printf("WARNING: proposed tasks for job %s rejected: %v", job.ID, err)
			}
			for _, n := range added {
				outcome.Added = append(outcome.Added, n.ID)
			}
		}
	}

	job.Iteration++
	job.Reflection = outcome
	return outcome, nil
}

func (r *Reflector) evaluate(ctx context.Context, job *model.Job) (schema.Reflection, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.callTimeout)
	defer cancel()

	resp, err := r.gen.Send(callCtx, backend.Message{
		System: reflectSystem,
		Content: fmt.Sprintf(reflectPrompt, job.Goal, job.Iteration+1, job.Budget,
			taskStatus(job), findingsSummary(job)),
	})
	if err != nil {
		return schema.Reflection{}, err
	}
	return schema.ParseReflection(resp.Content)
}

func candidates(tasks []schema.ProposedTask) []*model.TaskNode {
	nodes := make([]*model.TaskNode, 0, len(tasks))
	for i, t := range tasks {
		category := strings.ToLower(t.Category)
		if category == "" {
			category = "general"
		}
		nodes = append(nodes, &model.TaskNode{
			Description:  t.Description,
			Category:     category,
			Ordinal:      i + 1,
			Priority:     3,
			Dependencies: append([]string{}, t.Dependencies...),
		})
	}
	return nodes
}

func taskStatus(job *model.Job) string {
	counts := make(map[string]int, len(job.Plan))
	for _, f := range job.Findings {
		counts[f.NodeID]++
	}

	type status struct {
		ID       string `json:"id"`
		Task     string `json:"task"`
		Findings int    `json:"findings"`
		Priority int    `json:"priority"`
		Done     bool   `json:"done"`
	}
	rows := make([]status, 0, len(job.Plan))
	for _, n := range job.Plan {
		rows = append(rows, status{
			ID:       n.ID,
			Task:     n.Description,
			Findings: counts[n.ID],
			Priority: n.Priority,
			Done:     job.IsCompleted(n.ID),
		})
	}
	b, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(b)
}

func findingsSummary(job *model.Job) string {
	if len(job.Findings) == 0 {
		return "No findings yet"
	}
	sources := make(map[string]bool)
	for _, f := range job.Findings {
		sources[f.Source] = true
	}
	covered, total := job.Coverage()
	return fmt.Sprintf("Total findings: %d\nUnique sources: %d\nTasks with findings: %d/%d",
		len(job.Findings), len(sources), covered, total)
}
