// Package verify cross-checks findings against each other and checks
// individual claims against fresh search results.
package verify

import (
	"strings"

	"github.com/guangtouwangba/open-deep-research/internal/model"
	"github.com/guangtouwangba/open-deep-research/internal/textsim"
)

const (
	// DefaultOverlapThreshold is the minimum OverlapMin for two findings to corroborate.
	DefaultOverlapThreshold = 0.3
	// DefaultMinSources is how many independent corroborating sources confirm a finding.
	DefaultMinSources = 1
)

// Engine corroborates findings produced for the same node.
type Engine struct {
	threshold  float64
	minSources int
}

// NewEngine creates an Engine. Non-positive arguments use the defaults.
func NewEngine(threshold float64, minSources int) *Engine {
	if threshold <= 0 {
		threshold = DefaultOverlapThreshold
	}
	if minSources <= 0 {
		minSources = DefaultMinSources
	}
	return &Engine{threshold: threshold, minSources: minSources}
}

// Verify returns one result per finding, in input order.
//
// Findings are grouped by NodeID. Within a group, a finding is confirmed when
// at least minSources other findings from a different SourceKey overlap it by
// the threshold or more. Everything else is unverified.
func (e *Engine) Verify(findings []model.Finding) []model.VerifiedResult {
	groups := make(map[string][]int)
	for i, f := range findings {
		groups[f.NodeID] = append(groups[f.NodeID], i)
	}

	out := make([]model.VerifiedResult, len(findings))
	for i, f := range findings {
		res := model.VerifiedResult{Finding: f, Status: model.StatusUnverified}
		if strings.TrimSpace(f.Content) == "" {
			out[i] = res
			continue
		}

		independent := make(map[string]bool)
		for _, j := range groups[f.NodeID] {
			other := findings[j]
			if j == i || sourceKey(other) == sourceKey(f) {
				continue
			}
			if textsim.OverlapMin(f.Content, other.Content) >= e.threshold {
				if !independent[sourceKey(other)] {
					res.Supporting = append(res.Supporting, other.Source)
				}
				independent[sourceKey(other)] = true
			}
		}
		if len(independent) >= e.minSources {
			res.Status = model.StatusConfirmed
		}
		out[i] = res
	}
	return out
}

// Conflicts lists contradictions between verified results. Contradiction
// detection is not performed, so the list is always empty.
func (e *Engine) Conflicts(results []model.VerifiedResult) []string {
	return []string{}
}

// Counts tallies results by status.
func Counts(results []model.VerifiedResult) map[model.ClaimStatus]int {
	counts := map[model.ClaimStatus]int{
		model.StatusConfirmed:  0,
		model.StatusDisputed:   0,
		model.StatusUnverified: 0,
	}
	for _, r := range results {
		counts[r.Status]++
	}
	return counts
}

func sourceKey(f model.Finding) string {
	if f.SourceKey != "" {
		return f.SourceKey
	}
	return strings.ToLower(f.Source)
}
