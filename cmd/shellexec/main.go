// Command shellexec runs a command on behalf of a calling process and
// reports its lifecycle through a status file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/deixis/shellexec"
	"github.com/deixis/shellexec/internal/config"
	"github.com/deixis/shellexec/internal/logging"
	semcp "github.com/deixis/shellexec/internal/mcp"
	"github.com/deixis/shellexec/internal/report"
	"github.com/deixis/shellexec/internal/runner"
	"github.com/deixis/shellexec/internal/status"
	"github.com/deixis/shellexec/internal/workflow"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("shellexec: ")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "run":
		err = runMain(args)
	case "status":
		err = statusMain(args)
	case "history":
		err = historyMain(args)
	case "mcp":
		err = mcpMain(args)
	case "version":
		fmt.Println(shellexec.Version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "shellexec: unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: shellexec <command> [arguments]

Commands:
  run         Run a command: shellexec run <command...> <statusFilePath>
  status      Read or wait on a status file
  history     List recorded runs, or show one by run ID
  mcp         Start the MCP server
  version     Print the version
  help        Show this help

Arguments to run are positional and taken verbatim.
Use "shellexec <command> -h" for flags of the other commands.`)
}

// --- run ---

func runMain(args []string) error {
	inv, err := workflow.ParseArgs(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	env := loadEnv()

	eng := &workflow.Engine{
		Runner: &runner.Runner{
			Dir:   env.cfg.Dir,
			Env:   env.cfg.Environ(),
			Stdin: os.Stdin,
		},
		Out:      os.Stdout,
		Recorder: env.store,
		Log:      env.log,
	}

	// The status file carries the outcome; a handled FAIL still exits 0.
	if _, err := eng.Exec(context.Background(), inv); err != nil {
		return err
	}
	return nil
}

// --- status ---

func statusMain(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	waitFlag := fs.Bool("wait", false, "wait until END or FAIL is written")
	timeoutFlag := fs.Duration("timeout", 0, "give up waiting after this long (e.g. 30s); 0 waits forever")
	jsonFlag := fs.Bool("json", false, "output the status as JSON")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: shellexec status [-wait] [-timeout d] [-json] <statusFilePath>")
		os.Exit(2)
	}
	path := fs.Arg(0)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var (
		st  status.State
		err error
	)
	if *waitFlag {
		if *timeoutFlag > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, *timeoutFlag)
			defer cancel()
		}
		st, err = status.Wait(ctx, path, status.DefaultPollInterval)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			err = nil
		}
	} else {
		st, err = status.Read(path)
		if errors.Is(err, os.ErrNotExist) {
			err = nil
		}
	}
	if err != nil {
		return err
	}

	var detail string
	if st.Outcome() == status.Fail {
		detail, err = status.ReadErrorDetail(path)
		if err != nil {
			return err
		}
	}

	if *jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(statusJSON{Path: path, Phase: st.Phase(), Tokens: st.Tokens, Detail: detail}); err != nil {
			return err
		}
	} else {
		fmt.Println(st.Phase())
		if detail != "" {
			fmt.Print(detail)
		}
	}

	switch {
	case st.Outcome() == status.Fail:
		os.Exit(1)
	case !st.Done():
		os.Exit(3)
	}
	return nil
}

type statusJSON struct {
	Path   string         `json:"path"`
	Phase  string         `json:"phase"`
	Tokens []status.Token `json:"tokens"`
	Detail string         `json:"detail,omitempty"`
}

// --- history ---

func historyMain(args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	jsonFlag := fs.Bool("json", false, "output records as JSON")
	limitFlag := fs.Int("n", 20, "number of runs to list")
	_ = fs.Parse(args)

	env := loadEnv()
	if env.disk == nil {
		return fmt.Errorf("run history is disabled; set history.enabled in %s", config.YAMLFile)
	}

	if fs.NArg() > 0 {
		rec, err := env.store.Load(fs.Arg(0))
		if err != nil {
			return err
		}
		if *jsonFlag {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		}
		fmt.Print(rec.Summary())
		return nil
	}

	recs, err := env.disk.List()
	if err != nil {
		return err
	}
	if *limitFlag > 0 && len(recs) > *limitFlag {
		recs = recs[:*limitFlag]
	}
	if *jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}
	fmt.Print(formatHistory(recs))
	return nil
}

func formatHistory(recs []*report.RunRecord) string {
	if len(recs) == 0 {
		return "No runs recorded.\n"
	}
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tSTATUS\tDURATION\tCOMMAND")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Outcome,
			r.Duration.Round(time.Millisecond), r.Command())
	}
	_ = tw.Flush()
	return b.String()
}

// --- mcp ---

func mcpMain(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	instructions := fs.Bool("instructions", false, "print model instructions and exit")
	httpAddr := fs.String("http", "", "start HTTP server on address (e.g. :9090)")
	_ = fs.Parse(args)

	if *instructions {
		fmt.Print(semcp.Instructions)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return serve(ctx, *httpAddr)
}

func serve(ctx context.Context, httpAddr string) error {
	env := loadEnv()

	opts := []semcp.ServerOption{semcp.WithLogger(env.log)}
	if env.store != nil {
		opts = append(opts, semcp.WithStore(env.store))
	}
	server := semcp.NewServer(env.cfg, opts...)

	if httpAddr != "" {
		return serveHTTP(ctx, server, httpAddr, env.log)
	}
	return semcp.Run(ctx, server)
}

func serveHTTP(ctx context.Context, server *mcpsdk.Server, addr string, log logrus.FieldLogger) error {
	handler := mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	log.WithField("addr", addr).Info("listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// --- shared ---

type environment struct {
	cfg   *config.Config
	log   *logrus.Logger
	disk  *report.DiskStore // nil when history is disabled
	store report.Store      // nil when history is disabled
}

// loadEnv loads configuration for the current directory. Configuration
// problems are logged and defaults used: a broken config file must not
// keep the runner from writing its status file.
func loadEnv() *environment {
	cfg := &config.Config{}
	var loadErr error

	workspace, err := os.Getwd()
	if err != nil {
		loadErr = fmt.Errorf("determining workspace: %w", err)
	} else if loaded, err := config.Load(workspace); err != nil {
		loadErr = fmt.Errorf("loading config: %w", err)
	} else {
		cfg = loaded.Config
	}

	env := &environment{cfg: cfg, log: logging.New(cfg.Level(), os.Stderr)}
	if loadErr != nil {
		env.log.WithError(loadErr).Warn("using default configuration")
	}

	if cfg.History.Enabled {
		dir, err := cfg.HistoryDir(workspace)
		if err != nil {
			env.log.WithError(err).Warn("run history disabled")
			return env
		}
		env.disk = report.NewDiskStore(dir)
		env.store = report.NewLRUStore(cfg.HistoryCache(), env.disk)
	}
	return env
}
