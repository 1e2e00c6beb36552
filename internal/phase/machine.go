// Package phase advances a single task node through its processing phases:
// anchoring, generation, critique, verification and synthesis.
package phase

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/guangtouwangba/open-deep-research/internal/backend"
	"github.com/guangtouwangba/open-deep-research/internal/domain"
	"github.com/guangtouwangba/open-deep-research/internal/events"
	"github.com/guangtouwangba/open-deep-research/internal/model"
	"github.com/guangtouwangba/open-deep-research/internal/persistence"
	"github.com/guangtouwangba/open-deep-research/internal/search"
	"github.com/guangtouwangba/open-deep-research/internal/verify"
)

// DefaultCallTimeout bounds each collaborator call.
const DefaultCallTimeout = 5 * time.Minute

// Store is the persistence the machine commits to after every transition.
type Store interface {
	Save(ctx context.Context, job *model.Job) error
	RecordNodeResult(ctx context.Context, jobID string, result persistence.NodeResult) error
}

// Options configures a Machine. The zero value is usable.
type Options struct {
	Gate          Gate             // nil runs unattended
	Bus           *events.EventBus // may be nil
	CallTimeout   time.Duration    // <= 0 uses DefaultCallTimeout
	CouncilTopics []string         // Extra markers that force a council debate
}

// Machine runs the phase pipeline for nodes of any job.
type Machine struct {
	gen      backend.Backend
	searcher search.Searcher
	checker  *verify.ClaimChecker
	store    Store
	domains  *domain.Registry

	gate          Gate
	bus           *events.EventBus
	callTimeout   time.Duration
	councilTopics []string
}

// New creates a Machine.
func New(gen backend.Backend, searcher search.Searcher, checker *verify.ClaimChecker, store Store, domains *domain.Registry, opts Options) *Machine {
	m := &Machine{
		gen:           gen,
		searcher:      searcher,
		checker:       checker,
		store:         store,
		domains:       domains,
		gate:          opts.Gate,
		bus:           opts.Bus,
		callTimeout:   opts.CallTimeout,
		councilTopics: opts.CouncilTopics,
	}
	if m.gate == nil {
		m.gate = AutoGate{}
	}
	if m.callTimeout <= 0 {
		m.callTimeout = DefaultCallTimeout
	}
	return m
}

// Produce advances node to SYNTHESIZED and returns its findings. A node that
// is already synthesized is returned as is.
func (m *Machine) Produce(ctx context.Context, job *model.Job, node *model.TaskNode) ([]model.Finding, error) {
	if err := m.Advance(ctx, job, node); err != nil {
		return nil, err
	}
	return node.Findings, nil
}

// Advance moves node forward one phase at a time until it is SYNTHESIZED.
//
// Every transition is saved before the next begins. Cancellation is checked
// between transitions and at checkpoint gates, and reported as
// model.ErrInterrupted; collaborator calls already in flight finish on a
// detached context bounded by the call timeout.
func (m *Machine) Advance(ctx context.Context, job *model.Job, node *model.TaskNode) error {
	dom := m.domainFor(job)

	for !node.Phase.Terminal() {
		if ctx.Err() != nil {
			return fmt.Errorf("node %s at %s: %w", node.ID, node.Phase, model.ErrInterrupted)
		}

		var err error
		switch node.Phase {
		case model.PhasePending:
			err = m.anchor(ctx, job, node, dom)
		case model.PhaseAnchored:
			err = m.generate(ctx, job, node)
		case model.PhaseGenerated:
			err = m.critique(ctx, job, node, dom)
		case model.PhaseCritiqued:
			err = m.verify(ctx, job, node)
		case model.PhaseVerified:
			err = m.synthesize(ctx, job, node)
		default:
			err = fmt.Errorf("node %s: unexpected phase %s", node.ID, node.Phase)
		}
		if err != nil {
			return err
		}

		next, _ := node.Phase.Next()
		if err := node.AdvanceTo(next); err != nil {
			return err
		}
		if err := m.save(ctx, job); err != nil {
			return err
		}
		m.bus.Emit(events.NodePhaseEvent{Job: job.ID, NodeID: node.ID, Phase: node.Phase, Timestamp: time.Now()})
	}
	return nil
}

func (m *Machine) domainFor(job *model.Job) *domain.Domain {
	if d, ok := m.domains.Get(job.Domain); ok {
		return d
	}
	d, _ := m.domains.Get(domain.General)
	return d
}

// detached returns a context that ignores the caller's cancellation but
// still carries its values and a per-call deadline.
func (m *Machine) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), m.callTimeout)
}

func (m *Machine) call(ctx context.Context, msg backend.Message) (string, error) {
	callCtx, cancel := m.detached(ctx)
	defer cancel()

	resp, err := m.gen.Send(callCtx, msg)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (m *Machine) save(ctx context.Context, job *model.Job) error {
	if err := m.store.Save(context.WithoutCancel(ctx), job); err != nil {
		return fmt.Errorf("saving job %s: %w", job.ID, err)
	}
	return nil
}

func (m *Machine) output(job *model.Job, node *model.TaskNode, format string, args ...any) {
	m.bus.Emit(events.NodeOutputEvent{
		Job:       job.ID,
		NodeID:    node.ID,
		Line:      fmt.Sprintf(format, args...),
		Timestamp: time.Now(),
	})
}

// checkpoint asks the gate once per node and checkpoint number. The decision
// is recorded on the node and saved, so a resumed node is never asked twice.
func (m *Machine) checkpoint(ctx context.Context, job *model.Job, node *model.TaskNode, number int, summary string) error {
	if _, done := node.Checkpoint(number); done {
		return nil
	}

	d, err := m.gate.Decide(ctx, Request{
		JobID:      job.ID,
		NodeID:     node.ID,
		Checkpoint: number,
		Topic:      node.Description,
		Summary:    summary,
	})
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("checkpoint %d for node %s: %w", number, node.ID, model.ErrInterrupted)
		}
		log.Printf("WARNING: checkpoint %d for node %s failed, continuing unattended: %v", number, node.ID, err)
		d = Decision{Action: ActionAuto}
	}

	rec := model.CheckpointRecord{Checkpoint: number, Action: d.Action, Text: d.Text}
	switch d.Action {
	case ActionChallenge, ActionRevise:
		if rec.Text != "" {
			node.Challenges = append(node.Challenges, rec.Text)
		}
	case ActionAccept, ActionAuto:
	default:
		rec.Action = ActionAccept
	}
	node.Checkpoints = append(node.Checkpoints, rec)
	m.output(job, node, "checkpoint %d: %s", number, rec.Action)

	return m.save(ctx, job)
}
