// Package schema parses generation-service output into one typed result per
// call site. Every parser returns a *MalformedError when the text does not
// match its schema; callers turn that into their own fallback value.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MalformedError reports that upstream text did not match the expected schema.
type MalformedError struct {
	Schema string
	Err    error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed %s output: %v", e.Schema, e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// IsMalformed reports whether err is (or wraps) a *MalformedError.
func IsMalformed(err error) bool {
	var me *MalformedError
	return errors.As(err, &me)
}

var errNoJSON = errors.New("no JSON value found")

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ExtractJSON pulls the first JSON object or array out of free text,
// tolerating markdown code fences and surrounding prose.
func ExtractJSON(raw string) (string, bool) {
	text := strings.TrimSpace(raw)
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return "", false
	}
	closer := byte('}')
	if text[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(text, closer)
	if end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// decode extracts JSON from raw and unmarshals it into v.
func decode(name, raw string, v any) error {
	body, ok := ExtractJSON(raw)
	if !ok {
		return &MalformedError{Schema: name, Err: errNoJSON}
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return &MalformedError{Schema: name, Err: err}
	}
	return nil
}

var confidencePattern = regexp.MustCompile(`(?i)CONFIDENCE:\s*([0-9]*\.?[0-9]+)`)

// ParseConfidence reads a "CONFIDENCE: x.xx" trailer. The value is clamped to [0, 1].
func ParseConfidence(text string) (float64, bool) {
	matches := confidencePattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(matches[len(matches)-1][1], 64)
	if err != nil {
		return 0, false
	}
	return clamp01(v), true
}

// StripConfidence removes the confidence trailer from text.
func StripConfidence(text string) string {
	return strings.TrimSpace(confidencePattern.ReplaceAllString(text, ""))
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
