// Package mcp provides the shellexec MCP server, which lets a calling
// process run commands under the status file protocol and observe them.
package mcp

import (
	"context"
	_ "embed"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/deixis/shellexec"
	"github.com/deixis/shellexec/internal/config"
	"github.com/deixis/shellexec/internal/logging"
	"github.com/deixis/shellexec/internal/report"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	cfg   *config.Config
	store report.Store // nil when history is disabled
	log   logrus.FieldLogger
}

// NewServer creates an MCP server with all shellexec tools registered.
func NewServer(cfg *config.Config, opts ...ServerOption) *mcp.Server {
	so := serverOptions{log: logging.Discard()}
	for _, o := range opts {
		o(&so)
	}
	h := &handler{cfg: cfg, store: so.store, log: so.log}

	s := mcp.NewServer(&mcp.Implementation{Name: "shellexec", Version: shellexec.Version}, &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
	})

	mcp.AddTool(s, &mcp.Tool{
		Name: "shellexec_run",
		Description: `Run a command and report completion through a status file.

The status file receives START, then END on exit status 0 or FAIL otherwise.
On FAIL, diagnostics are written to <status_path>.error. The command is not
interpreted by a shell: pass the program and its arguments as separate argv items.`,
	}, h.runHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "shellexec_status",
		Description: "Read a status file written by shellexec_run, optionally waiting for END or FAIL.",
	}, h.statusHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "shellexec_inspect",
		Description: "Show the stored record of a past run by its run ID. Requires history to be enabled.",
	}, h.inspectHandler)

	return s
}

// ServerOption configures the shellexec MCP server.
type ServerOption func(*serverOptions)

type serverOptions struct {
	store report.Store
	log   logrus.FieldLogger
}

// WithStore records every run in store and enables shellexec_inspect.
func WithStore(store report.Store) ServerOption {
	return func(o *serverOptions) {
		o.store = store
	}
}

// WithLogger sets the logger for tool handlers.
func WithLogger(log logrus.FieldLogger) ServerOption {
	return func(o *serverOptions) {
		o.log = log
	}
}

// Run serves s over stdio until ctx is done or the client disconnects.
func Run(ctx context.Context, s *mcp.Server) error {
	return s.Run(ctx, &mcp.StdioTransport{})
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
