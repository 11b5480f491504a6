// Package extensions holds the concrete Extension implementations the
// Dispatcher calls through: shell execution, file access, and web search.
// Individual extensions are out of scope for the interpreter's semantics;
// they exist here only to exercise the dispatcher contract end to end.
package extensions

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/cortexflow/wec/internal/wec/dispatcher"
)

// BashExtension executes shell commands via execute_command, the default
// tool every step falls back to when it does not name one explicitly.
type BashExtension struct {
	shell   string
	timeout time.Duration

	destructivePatterns []*regexp.Regexp
}

// NewBashExtension returns a Bash extension with the default shell and a
// pre-flight destructive-command guard.
func NewBashExtension() *BashExtension {
	return &BashExtension{
		shell:               findShell(),
		timeout:             5 * time.Minute,
		destructivePatterns: compileDestructivePatterns(),
	}
}

func findShell() string {
	for _, shell := range []string{"/bin/bash", "/bin/sh", "/usr/bin/bash", "/usr/bin/sh"} {
		if _, err := os.Stat(shell); err == nil {
			return shell
		}
	}
	return "/bin/sh"
}

func compileDestructivePatterns() []*regexp.Regexp {
	raw := []string{
		`rm\s+-[rf]*\s+/(\s|$)`,
		`rm\s+-[rf]*\s+/\*`,
		`:\(\)\s*\{\s*:\|:&\s*\}\s*;`,
		`mkfs\b`,
		`dd\s+if=/dev/zero`,
		`>\s*/dev/sd[a-z]`,
		`curl.*\|\s*(ba)?sh`,
		`wget.*\|\s*(ba)?sh`,
	}
	patterns := make([]*regexp.Regexp, 0, len(raw))
	for _, p := range raw {
		patterns = append(patterns, regexp.MustCompile(p))
	}
	return patterns
}

func (b *BashExtension) Describe() []dispatcher.ToolDefinition {
	return []dispatcher.ToolDefinition{
		{
			Name:        dispatcher.DefaultTool,
			Description: "Runs a shell command and captures stdout/stderr/exit code.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"command": map[string]interface{}{"type": "string"},
				},
				"required": []string{"command"},
			},
		},
	}
}

func (b *BashExtension) Invoke(tool string, args map[string]interface{}) (dispatcher.ToolResponse, error) {
	command, _ := args["command"].(string)
	if strings.TrimSpace(command) == "" {
		return errorResponse("command must not be empty"), nil
	}

	for _, pattern := range b.destructivePatterns {
		if pattern.MatchString(command) {
			return errorResponse(fmt.Sprintf("command blocked by destructive-pattern guard: %s", command)), nil
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, b.shell, "-c", command)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	exitCode := 0
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}

	if ctx.Err() == context.DeadlineExceeded {
		return dispatcher.ToolResponse{
			Content: []dispatcher.ContentItem{{Type: "text", Text: "command timed out"}},
			IsError: true,
			Result: map[string]interface{}{
				"timeout": true,
			},
		}, nil
	}

	if err != nil || exitCode != 0 {
		text := stderr.String()
		if text == "" {
			text = stdout.String()
		}
		return dispatcher.ToolResponse{
			Content: []dispatcher.ContentItem{{Type: "text", Text: text}},
			IsError: true,
			Result: map[string]interface{}{
				"exit_code": exitCode,
			},
		}, nil
	}

	return dispatcher.ToolResponse{
		Content: []dispatcher.ContentItem{{Type: "text", Text: stdout.String()}},
		IsError: false,
		Result: map[string]interface{}{
			"exit_code": exitCode,
		},
	}, nil
}

func errorResponse(message string) dispatcher.ToolResponse {
	return dispatcher.ToolResponse{
		Content: []dispatcher.ContentItem{{Type: "text", Text: message}},
		IsError: true,
	}
}
