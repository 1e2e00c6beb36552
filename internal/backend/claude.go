package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// ClaudeAdapter implements Backend by running the Claude Code CLI in print mode.
// Every Send is an independent, single-shot invocation.
type ClaudeAdapter struct {
	command string
	workDir string
	model   string
	procMgr *ProcessManager
}

// claudeResponse is the JSON envelope printed by `claude -p --output-format json`.
// Newer CLIs print the text in "result"; older ones nest content blocks.
type claudeResponse struct {
	Type    string          `json:"type"`
	IsError bool            `json:"is_error"`
	Result  json.RawMessage `json:"result"`
}

type claudeContent struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// NewClaudeAdapter creates a CLI adapter.
// The ProcessManager is optional; if nil, subprocesses won't be tracked.
func NewClaudeAdapter(cfg Config, procMgr *ProcessManager) (*ClaudeAdapter, error) {
	command := cfg.Command
	if command == "" {
		command = "claude"
	}

	workDir := cfg.WorkDir
	if workDir == "" {
		var err error
		workDir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
	}

	return &ClaudeAdapter{
		command: command,
		workDir: workDir,
		model:   cfg.Model,
		procMgr: procMgr,
	}, nil
}

// Send runs the CLI once and returns the extracted text.
func (a *ClaudeAdapter) Send(ctx context.Context, msg Message) (Response, error) {
	cmd := newCommand(ctx, a.command, a.buildArgs(msg)...)
	cmd.Dir = a.workDir

	stdout, stderr, err := executeCommand(ctx, cmd, a.procMgr)
	if err != nil {
		return Response{}, fmt.Errorf("claude command failed: %w", err)
	}

	resp, err := parseClaudeResponse(stdout)
	if err != nil {
		return Response{}, fmt.Errorf("failed to parse claude response: %w (stderr: %s)", err, string(stderr))
	}
	resp.Model = a.model
	return resp, nil
}

// Close is a no-op (subprocess-per-invocation model).
func (a *ClaudeAdapter) Close() error {
	return nil
}

// buildArgs constructs the command-line arguments for one invocation.
func (a *ClaudeAdapter) buildArgs(msg Message) []string {
	args := []string{"-p", msg.Content, "--output-format", "json"}

	if a.model != "" {
		args = append(args, "--model", a.model)
	}
	if msg.System != "" {
		args = append(args, "--system-prompt", msg.System)
	}

	return args
}

// parseClaudeResponse extracts the reply text from the CLI's JSON output.
func parseClaudeResponse(data []byte) (Response, error) {
	var cr claudeResponse
	if err := json.Unmarshal(data, &cr); err != nil {
		return Response{}, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	var text string
	if err := json.Unmarshal(cr.Result, &text); err != nil {
		var nested claudeContent
		if err := json.Unmarshal(cr.Result, &nested); err != nil {
			return Response{}, fmt.Errorf("unexpected result shape: %w", err)
		}
		var b strings.Builder
		for _, item := range nested.Content {
			if item.Type == "text" {
				b.WriteString(item.Text)
			}
		}
		text = b.String()
	}

	if cr.IsError {
		return Response{}, fmt.Errorf("claude reported an error: %s", text)
	}
	return Response{Content: text}, nil
}
