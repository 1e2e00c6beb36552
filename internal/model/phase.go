package model

import (
	"errors"
	"fmt"
	"strings"
)

// Phase is a node's position in the processing pipeline.
// The zero value is PhasePending.
type Phase int

const (
	PhasePending     Phase = iota // Created, nothing done yet
	PhaseAnchored                 // Grounding context gathered
	PhaseGenerated                // Primary content produced
	PhaseCritiqued                // Critique (and optional council) attached
	PhaseVerified                 // Claims checked
	PhaseSynthesized              // Final artifact produced (terminal)
)

var phaseNames = []string{"PENDING", "ANCHORED", "GENERATED", "CRITIQUED", "VERIFIED", "SYNTHESIZED"}

// ErrPhaseRegression is returned when a node would move backwards or stay in place.
var ErrPhaseRegression = errors.New("phase regression")

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("Phase(%d)", int(p))
	}
	return phaseNames[p]
}

// Next returns the phase that follows p. SYNTHESIZED has no successor.
func (p Phase) Next() (Phase, bool) {
	if p >= PhaseSynthesized {
		return p, false
	}
	return p + 1, true
}

// Terminal reports whether p is the last phase.
func (p Phase) Terminal() bool {
	return p == PhaseSynthesized
}

// MarshalText encodes the phase by name so persisted records stay readable.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(b []byte) error {
	parsed, err := ParsePhase(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePhase converts a phase name (case-insensitive) into a Phase.
func ParsePhase(s string) (Phase, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for i, name := range phaseNames {
		if name == upper {
			return Phase(i), nil
		}
	}
	return PhasePending, fmt.Errorf("unknown phase %q", s)
}
