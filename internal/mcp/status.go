package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/shellexec/internal/status"
)

const defaultWaitTimeout = 60 * time.Second

type statusParams struct {
	StatusPath     string `json:"status_path" jsonschema:"path of the status file to read"`
	Wait           bool   `json:"wait,omitempty" jsonschema:"block until END or FAIL is written"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" jsonschema:"maximum time to wait, in seconds (default 60)"`
}

func (h *handler) statusHandler(ctx context.Context, req *mcp.CallToolRequest, params statusParams) (*mcp.CallToolResult, any, error) {
	if params.StatusPath == "" {
		return errorResult("status_path is required")
	}

	var (
		st  status.State
		err error
	)
	if params.Wait {
		timeout := defaultWaitTimeout
		if params.TimeoutSeconds > 0 {
			timeout = time.Duration(params.TimeoutSeconds) * time.Second
		}
		wctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		st, err = status.Wait(wctx, params.StatusPath, status.DefaultPollInterval)
		if errors.Is(err, context.DeadlineExceeded) {
			err = nil
		}
	} else {
		st, err = status.Read(params.StatusPath)
		if errors.Is(err, os.ErrNotExist) {
			err = nil
		}
	}
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to read %s: %v", params.StatusPath, err))
	}

	var detail string
	if st.Outcome() == status.Fail {
		detail, err = status.ReadErrorDetail(params.StatusPath)
		if err != nil {
			h.log.WithError(err).Debug("error detail unreadable")
		}
	}
	return textResult(formatStatus(params.StatusPath, st, detail))
}

func formatStatus(path string, st status.State, detail string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Status file: %s\n", path)
	fmt.Fprintf(&b, "Status: %s\n", st.Phase())
	if len(st.Tokens) > 0 {
		toks := make([]string, len(st.Tokens))
		for i, t := range st.Tokens {
			toks[i] = string(t)
		}
		fmt.Fprintf(&b, "Tokens: %s\n", strings.Join(toks, ", "))
	}
	if detail != "" {
		fmt.Fprintf(&b, "\nError detail:\n%s", detail)
	}
	return b.String()
}
