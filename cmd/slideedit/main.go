package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
	"github.com/baalimago/go_away_boilerplate/pkg/debug"
	"github.com/baalimago/go_away_boilerplate/pkg/misc"
	"github.com/baalimago/go_away_boilerplate/pkg/shutdown"
	"github.com/gnemet/SlideEdit/internal/ai"
	"github.com/gnemet/SlideEdit/internal/config"
	"github.com/gnemet/SlideEdit/internal/database"
	"github.com/gnemet/SlideEdit/internal/editor"
	"github.com/gnemet/SlideEdit/internal/observer"
	"github.com/gnemet/SlideEdit/internal/pptx"
	"github.com/gnemet/SlideEdit/internal/report"
	"github.com/spf13/pflag"
)

const (
	actionProcess = "process"
	actionTestAPI = "testapi"
	actionWatch   = "watch"
)

type options struct {
	action  string
	mode    string
	envPath string
	dryRun  bool
	debug   bool
	report  bool
	path    string
}

func main() {
	ancli.SetupSlog()
	os.Exit(run(os.Args[1:], os.Stdout))
}

func parseArgs(args []string) (options, error) {
	var o options
	fs := pflag.NewFlagSet("slideedit", pflag.ContinueOnError)
	fs.StringVar(&o.action, "action", actionProcess, "process edits a PPTX, testapi checks model connectivity, watch edits every deck dropped into WATCH_DIR")
	fs.StringVar(&o.mode, "mode", "", "edit mode: "+strings.Join(editor.Modes(), ", ")+" (default DEFAULT_MODE)")
	fs.StringVar(&o.envPath, "env", "", "path to the .env file (default: .env in the parent of the binary's directory)")
	fs.BoolVar(&o.dryRun, "dry-run", false, "do not modify the file, just print what would be edited")
	fs.BoolVar(&o.debug, "debug", false, "enable debug output")
	fs.BoolVar(&o.report, "report", false, "write an HTML before/after report next to the input")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: slideedit [flags] [pptx_path]\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	switch o.action {
	case actionProcess, actionTestAPI, actionWatch:
	default:
		return o, fmt.Errorf("invalid --action %q (choose from process, testapi, watch)", o.action)
	}
	if rest := fs.Args(); len(rest) > 0 {
		o.path = rest[0]
	}
	return o, nil
}

func run(args []string, stdout io.Writer) int {
	opts, err := parseArgs(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		ancli.Errf("%v\n", err)
		return 1
	}
	opts.debug = opts.debug || misc.Truthy(os.Getenv("DEBUG"))

	envPath := opts.envPath
	if envPath == "" {
		if envPath, err = config.DefaultEnvPath(); err != nil {
			ancli.Errf("%v\n", err)
			return 1
		}
	}
	cfg, err := config.Load(envPath)
	if err != nil {
		ancli.Errf("%v\n", err)
		if opts.debug {
			ancli.Errf("Exiting: a .env file is required.\n")
		}
		return 1
	}
	cfg.Debug = opts.debug

	if opts.debug {
		ancli.Noticef("received arguments: %v\n", debug.IndentedJsonFmt(map[string]any{
			"action":    opts.action,
			"mode":      opts.mode,
			"pptx_path": opts.path,
			"dry_run":   opts.dryRun,
			"report":    opts.report,
		}))
		ancli.Noticef("config: %v\n", debug.IndentedJsonFmt(cfg.Redacted()))
	}

	if err := cfg.Validate(); err != nil {
		ancli.Errf("%v\n", err)
		return 1
	}

	mode := strings.ToLower(strings.TrimSpace(opts.mode))
	if mode == "" {
		mode = strings.ToLower(strings.TrimSpace(cfg.Edit.DefaultMode))
	}
	if opts.action != actionTestAPI {
		if _, err := editor.ResolveMode(mode); err != nil {
			ancli.Errf("%v (choose from %s)\n", err, strings.Join(editor.Modes(), ", "))
			return 1
		}
	}
	if opts.action == actionProcess {
		if opts.path == "" {
			ancli.Errf("pptx_path is required when using --action process\n")
			return 1
		}
		if _, err := os.Stat(opts.path); err != nil {
			ancli.Errf("cannot read %s: %v\n", opts.path, err)
			return 1
		}
	}

	client, err := ai.NewClient(cfg)
	if err != nil {
		ancli.Errf("%v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { shutdown.Monitor(cancel) }()

	if opts.action == actionTestAPI {
		return testAPI(ctx, client, stdout)
	}

	s, err := newSession(ctx, cfg, client, mode, opts)
	if err != nil {
		ancli.Errf("%v\n", err)
		return 1
	}
	defer s.close()

	if opts.action == actionWatch {
		return s.watch(ctx)
	}

	out, n, err := s.editFile(ctx, opts.path, "")
	if err != nil {
		ancli.Errf("failed to process %s: %v\n", opts.path, err)
		if errors.Is(err, pptx.ErrWriteFailed) {
			ancli.Errf("the original file was not modified, re-run once the target is writable\n")
		}
		return 1
	}
	if opts.dryRun {
		ancli.Okf("%d text units would be edited\n", n)
		fmt.Fprintln(stdout, "Dry run complete. No file was saved.")
		return 0
	}
	ancli.Okf("edited %d text units\n", n)
	fmt.Fprintf(stdout, "Saved updated presentation to: %s\n", out)
	return 0
}

func testAPI(ctx context.Context, client *ai.Client, stdout io.Writer) int {
	ancli.Noticef("connecting to %s model %q...\n", client.Provider, client.Model)
	reply, err := client.Complete(ctx, "You are a test agent.", "Say 'API OK'.")
	if err != nil {
		ancli.Errf("API test failed: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "API response: %s\n", reply)
	return 0
}

// session holds what every edit of one invocation shares.
type session struct {
	cfg      *config.Config
	client   *ai.Client
	pipeline editor.Pipeline
	db       *sql.DB
	mode     string
	dryRun   bool
	report   bool
	logger   *slog.Logger
}

func newSession(ctx context.Context, cfg *config.Config, client *ai.Client, mode string, opts options) (*session, error) {
	granularity, err := pptx.ParseGranularity(cfg.Edit.Granularity)
	if err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	s := &session{
		cfg:    cfg,
		client: client,
		pipeline: editor.Pipeline{
			Completer:    client,
			Granularity:  granularity,
			IncludeNotes: cfg.Edit.IncludeNotes,
			Logger:       logger,
		},
		mode:   mode,
		dryRun: opts.dryRun,
		report: opts.report,
		logger: logger,
	}

	if cfg.Database.URL != "" {
		db, err := database.NewConnection(cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		if err := database.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		s.db = db
	}
	return s, nil
}

func (s *session) close() {
	if s.db != nil {
		s.db.Close()
	}
}

// editFile runs the pipeline over path and saves the result as
// <stem>_<mode><ext>, in outDir when set or next to path otherwise. It
// returns the saved path (empty for a dry run) and the number of units edited.
func (s *session) editFile(ctx context.Context, path, outDir string) (string, int, error) {
	p, err := pptx.Open(path)
	if err != nil {
		return "", 0, err
	}

	pl := s.pipeline
	var journal *database.Journal
	if s.db != nil {
		journal, err = database.StartJournal(ctx, s.db, &database.Run{
			SourcePath: path,
			Mode:       s.mode,
			Provider:   s.client.Provider,
			Model:      s.client.Model,
			DryRun:     s.dryRun,
		})
		if err != nil {
			return "", 0, fmt.Errorf("failed to start journal: %w", err)
		}
		pl.Recorders = append(pl.Recorders, journal)
	}
	var rep *report.Report
	if s.report {
		rep = report.New(path, s.mode, s.dryRun)
		pl.Recorders = append(pl.Recorders, rep)
	}

	n, err := pl.Process(ctx, p, s.mode, s.dryRun)
	out := ""
	if err == nil && !s.dryRun {
		out, err = s.save(p, path, outDir)
	}

	if journal != nil {
		if ferr := journal.Finish(context.WithoutCancel(ctx), n, out, err); ferr != nil {
			s.logger.Warn("failed to finish journal run", "run", journal.RunID(), "error", ferr)
		}
	}
	if err != nil {
		return "", n, err
	}

	if rep != nil {
		reportPath, err := rep.WriteFile()
		if err != nil {
			return out, n, err
		}
		ancli.Okf("report written to %s\n", reportPath)
	}
	return out, n, nil
}

func (s *session) save(p *pptx.Presentation, path, outDir string) (string, error) {
	if outDir == "" {
		return pptx.SaveWithSuffix(p, path, s.mode)
	}
	target := filepath.Join(outDir, filepath.Base(pptx.SuffixedPath(path, s.mode)))
	if err := p.Save(target); err != nil {
		return "", err
	}
	return target, nil
}

func (s *session) watch(ctx context.Context) int {
	outDir := s.cfg.Watch.Output
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			ancli.Errf("failed to create output directory: %v\n", err)
			return 1
		}
	}

	handle := func(ctx context.Context, path string) (string, error) {
		out, _, err := s.editFile(ctx, path, outDir)
		return out, err
	}
	obs := observer.NewObserver(s.cfg.Watch.Stage, s.cfg.Watch.Debounce, handle, s.logger)
	ancli.Noticef("watching %s for presentations (mode %s), ctrl+c to stop\n", s.cfg.Watch.Stage, s.mode)
	if err := obs.Start(ctx); err != nil {
		ancli.Errf("watch failed: %v\n", err)
		return 1
	}
	return 0
}
