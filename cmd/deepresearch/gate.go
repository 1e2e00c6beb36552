package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/fatih/color"

	"github.com/guangtouwangba/open-deep-research/internal/phase"
)

// askFunc shows one checkpoint to a person and returns their answer.
type askFunc func(ctx context.Context, req phase.Request) (phase.Decision, error)

// newCheckpointGate starts a gate that asks at the terminal. Aborting the
// prompt calls interrupt, which pauses the job. The returned func stops the gate.
func newCheckpointGate(ctx context.Context, ask askFunc, interrupt context.CancelFunc) (*phase.ChannelGate, func()) {
	gctx, cancel := context.WithCancel(ctx)
	gate := phase.NewChannelGate(1, terminalDecider(ask, interrupt))
	gate.Start(gctx)
	return gate, func() {
		cancel()
		gate.Stop()
	}
}

// terminalDecider adapts ask to a phase.DecideFunc.
func terminalDecider(ask askFunc, interrupt context.CancelFunc) phase.DecideFunc {
	return func(ctx context.Context, req phase.Request) (phase.Decision, error) {
		d, err := ask(ctx, req)
		if errors.Is(err, huh.ErrUserAborted) {
			interrupt()
			return phase.Decision{}, context.Canceled
		}
		if err != nil {
			return phase.Decision{}, err
		}
		if d.Action != phase.ActionAccept && d.Text == "" {
			d.Action = phase.ActionAccept
		}
		return d, nil
	}
}

// askCheckpoint prints the node summary and asks with a huh form.
func askCheckpoint(ctx context.Context, req phase.Request) (phase.Decision, error) {
	bold := color.New(color.Bold)
	fmt.Println()
	bold.Printf("Checkpoint %d: %s\n", req.Checkpoint, req.Topic)
	color.New(color.Faint).Printf("job %s, node %s\n", shortID(req.JobID), req.NodeID)
	fmt.Println(req.Summary)
	fmt.Println()

	alt, altLabel, textTitle := phase.ActionChallenge, "Challenge", "What should the synthesis address?"
	if req.Checkpoint == phase.CheckpointVerify {
		alt, altLabel, textTitle = phase.ActionRevise, "Request revision", "What should be revised?"
	}

	action := phase.ActionAccept
	var text string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Continue?").
				Options(
					huh.NewOption("Accept", phase.ActionAccept),
					huh.NewOption(altLabel, alt),
				).
				Value(&action),
		),
		huh.NewGroup(
			huh.NewText().
				Title(textTitle).
				Value(&text),
		).WithHideFunc(func() bool { return action == phase.ActionAccept }),
	)
	if err := form.RunWithContext(ctx); err != nil {
		return phase.Decision{}, err
	}
	return phase.Decision{Action: action, Text: text}, nil
}
