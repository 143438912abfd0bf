package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/shellexec/internal/runner"
	"github.com/deixis/shellexec/internal/status"
	"github.com/deixis/shellexec/internal/workflow"
)

type runParams struct {
	Argv       []string `json:"argv" jsonschema:"program followed by its arguments, e.g. [\"go\", \"test\", \"./...\"]; not interpreted by a shell"`
	StatusPath string   `json:"status_path" jsonschema:"path of the status file to create; <status_path>.error receives diagnostics on failure"`
}

func (h *handler) runHandler(ctx context.Context, req *mcp.CallToolRequest, params runParams) (*mcp.CallToolResult, any, error) {
	if len(params.Argv) == 0 {
		return errorResult("argv is required")
	}
	if params.StatusPath == "" {
		return errorResult("status_path is required")
	}

	// Stdout belongs to the transport, so the child's output is captured.
	out := &cappedBuffer{limit: h.cfg.MaxOutputBytes()}
	eng := &workflow.Engine{
		Runner: &runner.Runner{
			Dir:    h.cfg.Dir,
			Env:    h.cfg.Environ(),
			Stdout: out,
			Stderr: out,
		},
		Out:      out,
		Recorder: h.store,
		Log:      h.log,
	}

	inv := workflow.Invocation{Argv: params.Argv, StatusPath: params.StatusPath}
	o, err := eng.Exec(ctx, inv)
	if err != nil {
		return errorResult(fmt.Sprintf("run failed: %v", err))
	}

	return textResult(formatRun(inv, o, out))
}

func formatRun(inv workflow.Invocation, o *workflow.Outcome, out *cappedBuffer) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run: %s\n", o.RunID)
	fmt.Fprintf(&b, "Status: %s\n", o.Token)
	if o.ExitCode >= 0 {
		fmt.Fprintf(&b, "Exit code: %d\n", o.ExitCode)
	}
	fmt.Fprintf(&b, "Status file: %s\n", inv.StatusPath)
	if o.Failed() {
		fmt.Fprintf(&b, "Error file: %s\n", status.ErrorPath(inv.StatusPath))
	}
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "Output:")
	fmt.Fprint(&b, out.String())
	if out.Truncated() {
		fmt.Fprintln(&b, "\n(output truncated)")
	}
	return b.String()
}
