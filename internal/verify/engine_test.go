package verify

import (
	"testing"

	"github.com/guangtouwangba/open-deep-research/internal/model"
)

// TestEngine_Verify tests corroboration across sources.
func TestEngine_Verify(t *testing.T) {
	tests := []struct {
		name     string
		findings []model.Finding
		want     []model.ClaimStatus
	}{
		{
			name: "two independent sources agree",
			findings: []model.Finding{
				{NodeID: "n1", Source: "https://a.org/1", SourceKey: "a.org", Content: "Go was released by Google in 2009"},
				{NodeID: "n1", Source: "https://b.com/2", SourceKey: "b.com", Content: "Google released Go in 2009 as open source"},
			},
			want: []model.ClaimStatus{model.StatusConfirmed, model.StatusConfirmed},
		},
		{
			name: "same source does not corroborate itself",
			findings: []model.Finding{
				{NodeID: "n1", Source: "https://a.org/1", SourceKey: "a.org", Content: "Go was released by Google in 2009"},
				{NodeID: "n1", Source: "https://a.org/2", SourceKey: "a.org", Content: "Google released Go in 2009"},
			},
			want: []model.ClaimStatus{model.StatusUnverified, model.StatusUnverified},
		},
		{
			name: "different nodes are not compared",
			findings: []model.Finding{
				{NodeID: "n1", Source: "https://a.org/1", SourceKey: "a.org", Content: "Go was released by Google in 2009"},
				{NodeID: "n2", Source: "https://b.com/2", SourceKey: "b.com", Content: "Go was released by Google in 2009"},
			},
			want: []model.ClaimStatus{model.StatusUnverified, model.StatusUnverified},
		},
		{
			name: "unrelated content",
			findings: []model.Finding{
				{NodeID: "n1", Source: "https://a.org/1", SourceKey: "a.org", Content: "Rust has a borrow checker"},
				{NodeID: "n1", Source: "https://b.com/2", SourceKey: "b.com", Content: "Python favours readability everywhere"},
			},
			want: []model.ClaimStatus{model.StatusUnverified, model.StatusUnverified},
		},
		{
			name: "single finding and empty content",
			findings: []model.Finding{
				{NodeID: "n1", Source: "https://a.org/1", SourceKey: "a.org", Content: "Alone"},
				{NodeID: "n2", Source: "https://b.org/1", SourceKey: "b.org", Content: ""},
				{NodeID: "n2", Source: "https://c.org/1", SourceKey: "c.org", Content: ""},
			},
			want: []model.ClaimStatus{model.StatusUnverified, model.StatusUnverified, model.StatusUnverified},
		},
		{
			name: "missing source key falls back to url",
			findings: []model.Finding{
				{NodeID: "n1", Source: "https://a.org/1", Content: "Kubernetes schedules containers"},
				{NodeID: "n1", Source: "https://b.org/1", Content: "Kubernetes schedules containers across nodes"},
			},
			want: []model.ClaimStatus{model.StatusConfirmed, model.StatusConfirmed},
		},
	}

	engine := NewEngine(0, 0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.Verify(tt.findings)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d results, want %d", len(got), len(tt.want))
			}
			for i, r := range got {
				if r.Status != tt.want[i] {
					t.Errorf("result %d status = %s, want %s", i, r.Status, tt.want[i])
				}
				if r.Finding != tt.findings[i] {
					t.Errorf("result %d does not carry its finding", i)
				}
			}
		})
	}
}

func TestEngine_MinSources(t *testing.T) {
	findings := []model.Finding{
		{NodeID: "n1", Source: "https://a.org", SourceKey: "a.org", Content: "HTTP/3 runs over QUIC"},
		{NodeID: "n1", Source: "https://b.org", SourceKey: "b.org", Content: "HTTP/3 runs over QUIC transport"},
		{NodeID: "n1", Source: "https://b.org/x", SourceKey: "b.org", Content: "HTTP/3 runs over QUIC too"},
	}

	got := NewEngine(0.3, 2).Verify(findings)
	if got[0].Status != model.StatusUnverified {
		t.Errorf("status = %s, want unverified with one independent source", got[0].Status)
	}
	if len(got[0].Supporting) != 1 {
		t.Errorf("supporting = %v, want one entry per independent source", got[0].Supporting)
	}
}

func TestEngine_ConflictsEmpty(t *testing.T) {
	conflicts := NewEngine(0, 0).Conflicts([]model.VerifiedResult{{Status: model.StatusConfirmed}})
	if conflicts == nil || len(conflicts) != 0 {
		t.Errorf("Conflicts = %#v, want empty non-nil list", conflicts)
	}
}

func TestCounts(t *testing.T) {
	counts := Counts([]model.VerifiedResult{
		{Status: model.StatusConfirmed},
		{Status: model.StatusConfirmed},
		{Status: model.StatusUnverified},
	})
	if counts[model.StatusConfirmed] != 2 || counts[model.StatusUnverified] != 1 || counts[model.StatusDisputed] != 0 {
		t.Errorf("Counts = %v", counts)
	}
}
