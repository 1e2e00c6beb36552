package phase

import (
	"context"
)

// Checkpoint numbers.
const (
	CheckpointCritique = 1 // After critique and council
	CheckpointVerify   = 2 // After claim checks and opposition search
)

// Gate actions.
const (
	ActionAccept    = "accept"
	ActionChallenge = "challenge" // Checkpoint 1: text is a challenge to address
	ActionRevise    = "revise"    // Checkpoint 2: text is a revision request
	ActionAuto      = "auto"      // Unattended run, nobody was asked
)

// Request describes the node state shown at a checkpoint.
type Request struct {
	JobID      string
	NodeID     string
	Checkpoint int
	Topic      string
	Summary    string
}

// Decision is the external answer at a checkpoint.
type Decision struct {
	Action string
	Text   string
}

// Gate decides how a node proceeds at a checkpoint.
type Gate interface {
	Decide(ctx context.Context, req Request) (Decision, error)
}

// AutoGate accepts every checkpoint without asking.
type AutoGate struct{}

// Decide always returns ActionAuto.
func (AutoGate) Decide(ctx context.Context, req Request) (Decision, error) {
	return Decision{Action: ActionAuto}, nil
}

// DecideFunc answers one checkpoint request, typically by prompting a person.
type DecideFunc func(ctx context.Context, req Request) (Decision, error)

type pending struct {
	req        Request
	responseCh chan answer
}

type answer struct {
	decision Decision
	err      error
}

// ChannelGate funnels checkpoint requests from any number of concurrent jobs
// through a single handler goroutine, so a terminal prompt is never shared.
type ChannelGate struct {
	requestCh chan pending
	decideFn  DecideFunc
	done      chan struct{}
}

// NewChannelGate creates a gate with the given queue size and decision function.
// bufferSize should typically be the number of concurrently running jobs.
func NewChannelGate(bufferSize int, decideFn DecideFunc) *ChannelGate {
	return &ChannelGate{
		requestCh: make(chan pending, bufferSize),
		decideFn:  decideFn,
		done:      make(chan struct{}),
	}
}

// Start launches the request handler goroutine.
// It processes requests until the context is cancelled.
func (g *ChannelGate) Start(ctx context.Context) {
	go g.handleRequests(ctx)
}

func (g *ChannelGate) handleRequests(ctx context.Context) {
	defer close(g.done)

	for {
		select {
		case <-ctx.Done():
			return
		case p := <-g.requestCh:
			decision, err := g.decideFn(ctx, p.req)

			// Check if context was cancelled while deciding
			select {
			case <-ctx.Done():
				p.responseCh <- answer{err: ctx.Err()}
				return
			default:
				p.responseCh <- answer{decision: decision, err: err}
			}
		}
	}
}

// Decide queues req and waits for the decision.
// It respects context cancellation at both the send and receive stages.
func (g *ChannelGate) Decide(ctx context.Context, req Request) (Decision, error) {
	// Buffered so the handler never blocks on an abandoned request
	responseCh := make(chan answer, 1)

	select {
	case g.requestCh <- pending{req: req, responseCh: responseCh}:
	case <-ctx.Done():
		return Decision{}, ctx.Err()
	}

	select {
	case a := <-responseCh:
		if a.err != nil {
			return Decision{}, a.err
		}
		return a.decision, nil
	case <-ctx.Done():
		return Decision{}, ctx.Err()
	}
}

// Stop blocks until the handler goroutine has exited.
func (g *ChannelGate) Stop() {
	<-g.done
}
