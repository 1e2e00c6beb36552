package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/guangtouwangba/open-deep-research/internal/model"
)

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}

func statusColor(s model.JobStatus) color.Attribute {
	switch s {
	case model.JobCompleted:
		return color.FgGreen
	case model.JobFailed:
		return color.FgRed
	case model.JobPaused:
		return color.FgYellow
	case model.JobRunning:
		return color.FgCyan
	default:
		return color.FgWhite
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
