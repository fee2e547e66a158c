package adapters

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/tdermendjiev/aiwe-client/internal/catalog"
)

type ShellAdapter struct{}

func NewShellAdapter() *ShellAdapter {
	return &ShellAdapter{}
}

func (s *ShellAdapter) Name() string {
	return "shell"
}

func (s *ShellAdapter) Catalog() *catalog.Catalog {
	return &catalog.Catalog{
		Service:     "shell",
		Description: "Execute system shell commands. Use with caution. Access to full shell environment.",
		Actions: []catalog.ActionSpec{
			{
				Name:        "runCommand",
				Description: "Run a bash command and return its combined output",
				Parameters: map[string]catalog.ParamSpec{
					"command": {Type: "string", Description: "The shell command to execute", Required: true},
				},
				Output: map[string]any{"output": "string", "failed": "boolean"},
			},
		},
	}
}

func (s *ShellAdapter) Execute(ctx context.Context, action string, params map[string]any) (any, error) {
	if action != "runCommand" {
		return nil, &UnknownActionError{Service: s.Name(), Action: action}
	}
	command := stringParam(params, "command")
	if command == "" {
		return nil, fmt.Errorf("command is required")
	}

	cmd := exec.CommandContext(ctx, "bash", "-c", command)
	output, err := cmd.CombinedOutput()

	text := strings.TrimSpace(string(output))
	if text == "" {
		text = "(no output)"
	}

	// A non-zero exit is a usable observation for the planner, not a
	// transport failure, so it comes back as data.
	if err != nil {
		return map[string]any{"output": text, "failed": true, "error": err.Error()}, nil
	}
	return map[string]any{"output": text, "failed": false}, nil
}
