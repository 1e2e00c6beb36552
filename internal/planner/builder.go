// Package planner turns a goal into an ordered, acyclic plan of task nodes.
package planner

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/guangtouwangba/open-deep-research/internal/backend"
	"github.com/guangtouwangba/open-deep-research/internal/domain"
	"github.com/guangtouwangba/open-deep-research/internal/model"
	"github.com/guangtouwangba/open-deep-research/internal/scheduler"
	"github.com/guangtouwangba/open-deep-research/internal/schema"
)

// DefaultDedupThreshold is the word-overlap ratio above which two task
// descriptions are considered the same task.
const DefaultDedupThreshold = 0.8

// Builder asks the generation backend for a plan and normalizes it.
type Builder struct {
	gen       backend.Backend
	threshold float64
	now       func() time.Time
}

// NewBuilder creates a Builder. A threshold <= 0 uses DefaultDedupThreshold.
func NewBuilder(gen backend.Backend, threshold float64) *Builder {
	if threshold <= 0 {
		threshold = DefaultDedupThreshold
	}
	return &Builder{gen: gen, threshold: threshold, now: time.Now}
}

// Build returns the ordered plan for goal.
//
// Output that does not match the task list schema yields a single root node
// carrying the goal. A failed generation call is returned as a
// *model.StepError.
func (b *Builder) Build(ctx context.Context, goal string, depth model.Depth, dom *domain.Domain) ([]*model.TaskNode, error) {
	target := depth.Profile().TargetNodes
	domainName := "General"
	if dom != nil {
		domainName = dom.DisplayName
	}

	resp, err := b.gen.Send(ctx, backend.Message{
		System:  planSystem,
		Content: fmt.Sprintf(planPrompt, goal, domainName, target, b.now().Format("2006-01-02")),
	})
	if err != nil {
		return nil, &model.StepError{Step: "plan", Err: err}
	}

	specs, err := schema.ParseTaskList(resp.Content)
	if err != nil {
		log.Printf("WARNING: plan output unusable, falling back to a single task: %v", err)
		return []*model.TaskNode{rootNode(goal)}, nil
	}

	nodes := Dedup(toNodes(specs), b.threshold)
	if removed := scheduler.BreakCycles(nodes); len(removed) > 0 {
		log.Printf("WARNING: plan contained dependency cycles, dropped edges: %s", strings.Join(removed, ", "))
	}

	ordered := scheduler.Order(nodes)
	g, err := scheduler.NewGraph(ordered)
	if err != nil {
		return nil, &model.StepError{Step: "plan", Err: err}
	}
	if _, err := g.Validate(); err != nil {
		return nil, &model.StepError{Step: "plan", Err: err}
	}
	return ordered, nil
}

func rootNode(goal string) *model.TaskNode {
	return &model.TaskNode{
		ID:           "n1",
		Description:  strings.TrimSpace(goal),
		Category:     "general",
		Ordinal:      1,
		Priority:     5,
		Dependencies: []string{},
	}
}

// toNodes converts parsed specs into pending nodes. Blank or repeated ids are
// replaced with fresh "n<i>" ids.
func toNodes(specs []schema.TaskSpec) []*model.TaskNode {
	taken := make(map[string]bool, len(specs))
	for _, s := range specs {
		if s.ID != "" {
			taken[s.ID] = false
		}
	}

	nodes := make([]*model.TaskNode, 0, len(specs))
	next := 1
	for _, s := range specs {
		id := s.ID
		if id == "" || taken[id] {
			for {
				id = fmt.Sprintf("n%d", next)
				next++
				if _, used := taken[id]; !used {
					break
				}
			}
		}
		taken[id] = true

		category := strings.ToLower(s.Category)
		if category == "" {
			category = "general"
		}
		nodes = append(nodes, &model.TaskNode{
			ID:           id,
			Description:  s.Description,
			Category:     category,
			Ordinal:      s.Order,
			Priority:     s.Priority,
			Dependencies: append([]string{}, s.Dependencies...),
		})
	}
	return nodes
}
