package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// flexString accepts a JSON string or number. Models often emit ids as numbers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

func flexStrings(in []flexString) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if v := strings.TrimSpace(string(s)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// TaskSpec is one task proposed by the graph builder call.
type TaskSpec struct {
	ID           string
	Description  string
	Category     string
	Order        int
	Priority     int
	Dependencies []string
}

type taskJSON struct {
	ID           flexString   `json:"id"`
	Description  string       `json:"description"`
	Question     string       `json:"question"`
	Category     string       `json:"category"`
	Order        int          `json:"order"`
	Priority     int          `json:"priority"`
	Dependencies []flexString `json:"dependencies"`
}

// ParseTaskList parses {"tasks":[...]} (or "questions", or a bare array).
func ParseTaskList(raw string) ([]TaskSpec, error) {
	const name = "task list"

	var items []taskJSON
	body, ok := ExtractJSON(raw)
	if !ok {
		return nil, &MalformedError{Schema: name, Err: errNoJSON}
	}
	if strings.HasPrefix(body, "[") {
		if err := json.Unmarshal([]byte(body), &items); err != nil {
			return nil, &MalformedError{Schema: name, Err: err}
		}
	} else {
		var wrapper struct {
			Tasks     []taskJSON `json:"tasks"`
			Questions []taskJSON `json:"questions"`
		}
		if err := json.Unmarshal([]byte(body), &wrapper); err != nil {
			return nil, &MalformedError{Schema: name, Err: err}
		}
		items = wrapper.Tasks
		if len(items) == 0 {
			items = wrapper.Questions
		}
	}

	specs := make([]TaskSpec, 0, len(items))
	for _, it := range items {
		desc := strings.TrimSpace(it.Description)
		if desc == "" {
			desc = strings.TrimSpace(it.Question)
		}
		if desc == "" {
			continue
		}
		specs = append(specs, TaskSpec{
			ID:           strings.TrimSpace(string(it.ID)),
			Description:  desc,
			Category:     strings.TrimSpace(it.Category),
			Order:        it.Order,
			Priority:     it.Priority,
			Dependencies: flexStrings(it.Dependencies),
		})
	}
	if len(specs) == 0 {
		return nil, &MalformedError{Schema: name, Err: errors.New("no tasks")}
	}
	return specs, nil
}

// ParseQueryList parses {"queries":[...]} or a bare array of strings.
func ParseQueryList(raw string) ([]string, error) {
	const name = "query list"

	body, ok := ExtractJSON(raw)
	if !ok {
		return nil, &MalformedError{Schema: name, Err: errNoJSON}
	}
	var queries []string
	if strings.HasPrefix(body, "[") {
		if err := json.Unmarshal([]byte(body), &queries); err != nil {
			return nil, &MalformedError{Schema: name, Err: err}
		}
	} else {
		var wrapper struct {
			Queries []string `json:"queries"`
		}
		if err := json.Unmarshal([]byte(body), &wrapper); err != nil {
			return nil, &MalformedError{Schema: name, Err: err}
		}
		queries = wrapper.Queries
	}

	out := queries[:0]
	for _, q := range queries {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	if len(out) == 0 {
		return nil, &MalformedError{Schema: name, Err: errors.New("no queries")}
	}
	return out, nil
}

// CritiquePoint is one structured critique item.
type CritiquePoint struct {
	Severity   string `json:"severity"`
	Issue      string `json:"issue"`
	Suggestion string `json:"suggestion"`
}

// Critique is the checkpoint-1 critique result.
type Critique struct {
	Points      []CritiquePoint
	Confidence  float64
	NeedsDebate bool
}

// ParseCritique parses {"critiques":[...],"confidence":x,"needs_debate":b}.
func ParseCritique(raw string) (Critique, error) {
	var wire struct {
		Critiques    []CritiquePoint `json:"critiques"`
		Confidence   *float64        `json:"confidence"`
		NeedsDebate  bool            `json:"needs_debate"`
		NeedsCouncil bool            `json:"needs_council"`
	}
	if err := decode("critique", raw, &wire); err != nil {
		return Critique{}, err
	}
	if wire.Confidence == nil && wire.Critiques == nil {
		return Critique{}, &MalformedError{Schema: "critique", Err: errors.New("missing critiques and confidence")}
	}

	c := Critique{
		Confidence:  0.5,
		NeedsDebate: wire.NeedsDebate || wire.NeedsCouncil,
	}
	if wire.Confidence != nil {
		c.Confidence = clamp01(*wire.Confidence)
	}
	for _, p := range wire.Critiques {
		if strings.TrimSpace(p.Issue) == "" {
			continue
		}
		p.Severity = normalizeSeverity(p.Severity)
		c.Points = append(c.Points, p)
	}
	return c, nil
}

func normalizeSeverity(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "critical":
		return "high"
	case "medium", "moderate":
		return "medium"
	default:
		return "low"
	}
}

// ParseClaims parses {"claims":[...]} or a bare array. Entries may be strings
// or objects with a "claim" field.
func ParseClaims(raw string) ([]string, error) {
	const name = "claim list"

	body, ok := ExtractJSON(raw)
	if !ok {
		return nil, &MalformedError{Schema: name, Err: errNoJSON}
	}
	var items []json.RawMessage
	if strings.HasPrefix(body, "[") {
		if err := json.Unmarshal([]byte(body), &items); err != nil {
			return nil, &MalformedError{Schema: name, Err: err}
		}
	} else {
		var wrapper struct {
			Claims []json.RawMessage `json:"claims"`
		}
		if err := json.Unmarshal([]byte(body), &wrapper); err != nil {
			return nil, &MalformedError{Schema: name, Err: err}
		}
		if wrapper.Claims == nil {
			return nil, &MalformedError{Schema: name, Err: errors.New("missing claims")}
		}
		items = wrapper.Claims
	}

	claims := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			var obj struct {
				Claim string `json:"claim"`
			}
			if err := json.Unmarshal(item, &obj); err != nil {
				return nil, &MalformedError{Schema: name, Err: err}
			}
			s = obj.Claim
		}
		if s = strings.TrimSpace(s); s != "" {
			claims = append(claims, s)
		}
	}
	return claims, nil
}

// Judgment is the verification verdict for one claim.
type Judgment struct {
	Status      string // "confirmed", "disputed" or "unverified"
	Explanation string
}

// ParseJudgment parses {"status":"...","explanation":"..."}.
func ParseJudgment(raw string) (Judgment, error) {
	var wire struct {
		Status      string `json:"status"`
		Explanation string `json:"explanation"`
	}
	if err := decode("judgment", raw, &wire); err != nil {
		return Judgment{}, err
	}
	status := strings.ToLower(strings.TrimSpace(wire.Status))
	switch status {
	case "confirmed", "disputed", "unverified":
	default:
		return Judgment{}, &MalformedError{Schema: "judgment", Err: errors.New("unknown status " + wire.Status)}
	}
	return Judgment{Status: status, Explanation: strings.TrimSpace(wire.Explanation)}, nil
}

// Position is one council expert's debate contribution.
type Position struct {
	Position  string
	Arguments []string
	Rebuttals []string
}

// ParsePosition parses {"position":"...","arguments":[...],"rebuttals":[...]}.
func ParsePosition(raw string) (Position, error) {
	var wire struct {
		Position     string   `json:"position"`
		Arguments    []string `json:"arguments"`
		KeyArguments []string `json:"key_arguments"`
		Rebuttals    []string `json:"rebuttals"`
	}
	if err := decode("position", raw, &wire); err != nil {
		return Position{}, err
	}
	if strings.TrimSpace(wire.Position) == "" {
		return Position{}, &MalformedError{Schema: "position", Err: errors.New("empty position")}
	}
	args := wire.Arguments
	if len(args) == 0 {
		args = wire.KeyArguments
	}
	return Position{
		Position:  strings.TrimSpace(wire.Position),
		Arguments: args,
		Rebuttals: wire.Rebuttals,
	}, nil
}

// ProposedTask is a node suggested by a reflection pass.
type ProposedTask struct {
	Description  string
	Category     string
	Dependencies []string
}

// Reflection is the coverage evaluation result.
type Reflection struct {
	Complete  bool
	Gaps      []string
	NewTasks  []ProposedTask
	Reasoning string
}

// ParseReflection parses {"complete":b,"gaps":[...],"new_tasks":[...],"reasoning":"..."}.
func ParseReflection(raw string) (Reflection, error) {
	var wire struct {
		Complete *bool    `json:"complete"`
		Gaps     []string `json:"gaps"`
		NewTasks []struct {
			Description  string       `json:"description"`
			Question     string       `json:"question"`
			Category     string       `json:"category"`
			Dependencies []flexString `json:"dependencies"`
		} `json:"new_tasks"`
		Reasoning string `json:"reasoning"`
	}
	if err := decode("reflection", raw, &wire); err != nil {
		return Reflection{}, err
	}
	if wire.Complete == nil {
		return Reflection{}, &MalformedError{Schema: "reflection", Err: errors.New("missing complete flag")}
	}

	r := Reflection{
		Complete:  *wire.Complete,
		Gaps:      wire.Gaps,
		Reasoning: strings.TrimSpace(wire.Reasoning),
	}
	for _, t := range wire.NewTasks {
		desc := strings.TrimSpace(t.Description)
		if desc == "" {
			desc = strings.TrimSpace(t.Question)
		}
		if desc == "" {
			continue
		}
		r.NewTasks = append(r.NewTasks, ProposedTask{
			Description:  desc,
			Category:     strings.TrimSpace(t.Category),
			Dependencies: flexStrings(t.Dependencies),
		})
	}
	return r, nil
}
