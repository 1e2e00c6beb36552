// Package domain holds the explicit registry of research domains: authority
// sources, anchor templates and council experts keyed by subject area.
package domain

import (
	"fmt"
	"strings"
)

// Expert is a council persona.
type Expert struct {
	Name         string `json:"name" yaml:"name" mapstructure:"name"`
	Perspective  string `json:"perspective" yaml:"perspective" mapstructure:"perspective"`
	AnchorSource string `json:"anchor_source" yaml:"anchor_source" mapstructure:"anchor_source"`
	Style        string `json:"style,omitempty" yaml:"style,omitempty" mapstructure:"style"`
}

// SourceGroup lists the authorities for one sub-topic. Topic words are
// matched against node descriptions.
type SourceGroup struct {
	Topic   string   `json:"topic" yaml:"topic" mapstructure:"topic"`
	Sources []string `json:"sources" yaml:"sources" mapstructure:"sources"`
}

// Domain describes how nodes in one subject area are anchored and debated.
type Domain struct {
	Name                   string        `json:"name" yaml:"name" mapstructure:"name"`
	DisplayName            string        `json:"display_name" yaml:"display_name" mapstructure:"display_name"`
	Keywords               []string      `json:"keywords" yaml:"keywords" mapstructure:"keywords"`
	AuthoritySources       []SourceGroup `json:"authority_sources" yaml:"authority_sources" mapstructure:"authority_sources"`
	AnchorTemplates        []string      `json:"anchor_templates" yaml:"anchor_templates" mapstructure:"anchor_templates"`
	VerificationRules      []string      `json:"verification_rules,omitempty" yaml:"verification_rules,omitempty" mapstructure:"verification_rules"`
	Experts                []Expert      `json:"experts,omitempty" yaml:"experts,omitempty" mapstructure:"experts"`
	MultiPerspectiveTopics []string      `json:"multi_perspective_topics,omitempty" yaml:"multi_perspective_topics,omitempty" mapstructure:"multi_perspective_topics"`
}

// DefaultExperts is the council used when a domain names none.
func DefaultExperts() []Expert {
	return []Expert{
		{Name: "Theorist", Perspective: "Academic rigor", AnchorSource: "peer-reviewed research", Style: "cautious"},
		{Name: "Practitioner", Perspective: "Real-world application", AnchorSource: "industry experience", Style: "pragmatic"},
		{Name: "Contrarian", Perspective: "Devil's advocate", AnchorSource: "alternative approaches", Style: "aggressive"},
	}
}

// Validate checks the fields the pipeline relies on.
func (d Domain) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("domain name is required")
	}
	for i, e := range d.Experts {
		if strings.TrimSpace(e.Name) == "" {
			return fmt.Errorf("domain %q: expert %d has no name", d.Name, i)
		}
	}
	return nil
}

// AnchorsFor returns the authority sources whose sub-topic shares a word with
// topic. With no match it falls back to the first group.
func (d *Domain) AnchorsFor(topic string) []string {
	lower := strings.ToLower(topic)
	var relevant []string
	for _, g := range d.AuthoritySources {
		for _, kw := range strings.Fields(strings.ToLower(g.Topic)) {
			if strings.Contains(lower, kw) {
				relevant = append(relevant, g.Sources...)
				break
			}
		}
	}
	if len(relevant) == 0 && len(d.AuthoritySources) > 0 {
		relevant = append(relevant, d.AuthoritySources[0].Sources...)
	}
	return relevant
}

// NeedsCouncil reports whether topic inherently calls for several perspectives.
func (d *Domain) NeedsCouncil(topic string) bool {
	lower := strings.ToLower(topic)
	for _, marker := range d.MultiPerspectiveTopics {
		if marker != "" && strings.Contains(lower, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

// FormatAnchor renders the first anchor template. {topic}, {sources} (up to
// three, comma separated) and {source} are substituted. Without a template
// or sources the topic is returned unchanged.
func (d *Domain) FormatAnchor(topic string, sources []string) string {
	if len(d.AnchorTemplates) == 0 || len(sources) == 0 {
		return topic
	}
	top := sources
	if len(top) > 3 {
		top = top[:3]
	}
	r := strings.NewReplacer(
		"{topic}", topic,
		"{sources}", strings.Join(top, ", "),
		"{source}", sources[0],
	)
	return r.Replace(d.AnchorTemplates[0])
}

// Council returns the domain's experts, or the defaults when it has none.
func (d *Domain) Council() []Expert {
	if len(d.Experts) == 0 {
		return DefaultExperts()
	}
	return d.Experts
}

func (d *Domain) score(goal string) int {
	lower := strings.ToLower(goal)
	n := 0
	for _, kw := range d.Keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			n++
		}
	}
	return n
}
