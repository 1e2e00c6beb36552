// Package search defines the web search collaborator used for grounding and
// claim checking, plus a Tavily implementation.
package search

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// ErrUnavailable is returned by Unavailable.Search.
var ErrUnavailable = errors.New("search is not configured")

// Result is a single search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Searcher runs a web search and returns at most limit results.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// Unavailable is the Searcher used when no provider is configured.
// Every call fails, which callers treat as a non-blocking search failure.
type Unavailable struct{}

func (Unavailable) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	return nil, ErrUnavailable
}

// SourceKey returns the independence key for a result URL: its lowercase host
// without a leading "www.". Unparseable URLs are keyed by their raw text.
func SourceKey(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimSpace(rawURL))
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
