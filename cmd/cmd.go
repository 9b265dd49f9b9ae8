// Package cmd provides CLI command implementations for irfacts.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"

	"github.com/Benny93/irfacts/internal/config"
	"github.com/Benny93/irfacts/internal/facts"
	"github.com/Benny93/irfacts/internal/graph"
	"github.com/Benny93/irfacts/internal/ingestion"
	"github.com/Benny93/irfacts/internal/query"
	"github.com/Benny93/irfacts/internal/storage"
	"github.com/Benny93/irfacts/mcp"
)

// Version is set at build time via ldflags.
var Version = "dev"

// ProjectFlags locate the project and its fact store. Every command that
// touches the store embeds them.
type ProjectFlags struct {
	Dir     string `short:"C" default:"." help:"Project directory"`
	Store   string `help:"Fact store backend (badger, sqlite, memory); overrides config"`
	DB      string `name:"db" help:"Fact store location; overrides config"`
	Verbose bool   `short:"v" help:"Enable debug logging"`

	// Out receives command output. Nil means stdout.
	Out io.Writer `kong:"-"`
}

func (p *ProjectFlags) out() io.Writer {
	if p.Out == nil {
		return os.Stdout
	}
	return p.Out
}

// load reads the project config and applies flag overrides.
func (p *ProjectFlags) load() (*config.Config, error) {
	dir, err := filepath.Abs(p.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	if p.Store != "" {
		cfg.Store = p.Store
	}
	if p.DB != "" {
		cfg.DBPath = p.DB
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// logger builds the stderr logger for cfg.
func (p *ProjectFlags) logger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	if p.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openStore opens the configured store. Read-only opens fail when nothing
// has been extracted yet.
func (p *ProjectFlags) openStore(cfg *config.Config, readOnly bool) (storage.FactStore, error) {
	path := cfg.StorePath()
	if cfg.Store != storage.BackendMemory {
		if readOnly {
			if _, err := os.Stat(path); os.IsNotExist(err) {
				return nil, fmt.Errorf("no fact store found at %s. Run 'irfacts extract' first", path)
			}
		} else if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}
	store, err := storage.Open(cfg.Store, path, readOnly)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	return store, nil
}

// open loads the config and opens the store in one step.
func (p *ProjectFlags) open(readOnly bool) (*config.Config, storage.FactStore, error) {
	cfg, err := p.load()
	if err != nil {
		return nil, nil, err
	}
	store, err := p.openStore(cfg, readOnly)
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

// ExtractCmd extracts declaration-tree inputs into the fact store.
type ExtractCmd struct {
	ProjectFlags `embed:""`

	Paths    []string `arg:"" optional:"" help:"Input files or directories (default: project directory)"`
	Jobs     int      `short:"j" help:"Inputs extracted in parallel; overrides config"`
	BigArity int      `help:"Function arity above which the N-ary form is used; overrides config"`
	Force    bool     `short:"f" help:"Re-extract inputs that are unchanged"`
	Quiet    bool     `short:"q" help:"Disable progress output"`
}

// Run executes the extract command.
func (c *ExtractCmd) Run() error {
	cfg, err := c.load()
	if err != nil {
		return err
	}
	if c.Jobs > 0 {
		cfg.Jobs = c.Jobs
	}
	if c.BigArity > 0 {
		cfg.BigArity = c.BigArity
	}

	paths := c.Paths
	if len(paths) == 0 {
		paths = []string{cfg.Dir}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("accessing %s: %w", p, err)
		}
	}

	store, err := c.openStore(cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	out := c.out()
	color.Green("Extracting into %s", cfg.StorePath())

	var progress ingestion.ProgressCallback
	if !c.Quiet {
		progress = func(phase string, pct float64) {
			fmt.Fprintf(os.Stderr, "\r\033[K%s (%.0f%%)", phase, pct*100)
		}
	}

	ctx, cancel := signalContext()
	defer cancel()
	result, err := ingestion.RunPipeline(ctx, paths, store, ingestion.Options{
		Jobs:      cfg.Jobs,
		BigArity:  cfg.BigArity,
		FaultFile: cfg.FaultFile,
		InputExt:  cfg.InputExt,
		Force:     c.Force,
		Logger:    c.logger(cfg),
		Progress:  progress,
	})
	if progress != nil {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return fmt.Errorf("running pipeline: %w", err)
	}

	color.Green("✓ Extraction complete")
	printResult(out, result)
	if result.Errors > 0 {
		color.Yellow("%d extraction error(s); see the diagnostics relation", result.Errors)
	}
	return nil
}

func printResult(w io.Writer, r *ingestion.PipelineResult) {
	fmt.Fprintf(w, "  Run:        %s\n", r.RunID)
	fmt.Fprintf(w, "  Inputs:     %d (%d extracted, %d unchanged, %d failed)\n", r.Inputs, r.Extracted, r.Skipped, r.Failed)
	fmt.Fprintf(w, "  Files:      %d\n", r.Files)
	fmt.Fprintf(w, "  Externals:  %d\n", r.Externals)
	fmt.Fprintf(w, "  Facts:      %d\n", r.Facts)
	fmt.Fprintf(w, "  Errors:     %d\n", r.Errors)
	fmt.Fprintf(w, "  Warnings:   %d\n", r.Warnings)
	fmt.Fprintf(w, "  Duration:   %.2fs\n", r.Duration.Seconds())
}

// FactsCmd dumps the stored facts of one relation.
type FactsCmd struct {
	ProjectFlags `embed:""`

	Kind  string `arg:"" help:"Relation name, e.g. exprs"`
	Limit int    `short:"n" help:"Maximum facts to print (0 for all)"`
	JSON  bool   `name:"json" help:"Print facts as JSON lines"`
}

// Run executes the facts command.
func (c *FactsCmd) Run() error {
	if facts.Arity(c.Kind) < 0 {
		return fmt.Errorf("unknown relation %q. Known relations: %s", c.Kind, strings.Join(facts.Kinds(), ", "))
	}
	_, store, err := c.open(true)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	fs, err := store.Facts(context.Background(), c.Kind)
	if err != nil {
		return err
	}
	if c.Limit > 0 && len(fs) > c.Limit {
		fs = fs[:c.Limit]
	}

	out := c.out()
	if c.JSON {
		enc := json.NewEncoder(out)
		for _, f := range fs {
			if err := enc.Encode(f); err != nil {
				return err
			}
		}
		return nil
	}
	for _, f := range fs {
		fmt.Fprintln(out, f.String())
	}
	if len(fs) == 0 {
		fmt.Fprintf(out, "No %s facts.\n", c.Kind)
	}
	return nil
}

// LabelCmd looks up a canonical label.
type LabelCmd struct {
	ProjectFlags `embed:""`

	Key string `arg:"" help:"Canonical key (e.g. class;app.MainKt), or a label #n to resolve to its key"`
}

// Run executes the label command.
func (c *LabelCmd) Run() error {
	_, store, err := c.open(true)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	out := c.out()
	if strings.HasPrefix(c.Key, "#") {
		l, err := facts.ParseLabel(c.Key)
		if err != nil {
			return err
		}
		key, ok, err := store.KeyOf(ctx, l)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("label %s does not exist", l)
		}
		fmt.Fprintf(out, "%s\t%s\n", l, key)
		return nil
	}

	l, ok, err := store.LookupLabel(ctx, c.Key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no label for key %q", c.Key)
	}
	fmt.Fprintf(out, "%s\t%s\n", l, c.Key)
	return nil
}

// TreeCmd prints the lowered child tree under a label.
type TreeCmd struct {
	ProjectFlags `embed:""`

	Label string `arg:"" help:"Root label (#n) or canonical key"`
}

// Run executes the tree command.
func (c *TreeCmd) Run() error {
	_, store, err := c.open(true)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	root, err := resolveLabel(ctx, store, c.Label)
	if err != nil {
		return err
	}
	all, err := store.AllFacts(ctx)
	if err != nil {
		return err
	}
	g := graph.FromFacts(all)
	if len(g.Children(root)) == 0 {
		fmt.Fprintf(c.out(), "No lowered nodes under %s.\n", root)
		return nil
	}
	return g.WriteTree(c.out(), root)
}

// QueryCmd evaluates a Datalog program over the stored facts.
type QueryCmd struct {
	ProjectFlags `embed:""`

	File      string `arg:"" type:"existingfile" help:"Datalog program (.mg)"`
	Predicate string `short:"p" help:"Predicate to print (default: head of the last rule)"`
	Limit     int    `short:"n" help:"Maximum rows to print (0 for all)"`
}

// Run executes the query command.
func (c *QueryCmd) Run() error {
	program, err := os.ReadFile(c.File)
	if err != nil {
		return fmt.Errorf("reading program: %w", err)
	}
	cfg, store, err := c.open(true)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	res, err := query.Eval(context.Background(), store, string(program), c.Predicate, query.Options{Logger: c.logger(cfg)})
	if err != nil {
		return err
	}

	out := c.out()
	rows := res.Rows
	if c.Limit > 0 && len(rows) > c.Limit {
		rows = rows[:c.Limit]
	}
	for _, row := range rows {
		fmt.Fprintf(out, "%s(%s)\n", res.Predicate, strings.Join(row, ", "))
	}
	fmt.Fprintf(out, "%d fact(s) of %s/%d\n", len(res.Rows), res.Predicate, res.Arity)
	return nil
}

// WatchCmd re-extracts changed inputs as they change.
type WatchCmd struct {
	ProjectFlags `embed:""`

	Debounce time.Duration `default:"2s" help:"Quiet period before a batch is extracted"`
}

// Run executes the watch command.
func (c *WatchCmd) Run() error {
	cfg, store, err := c.open(false)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	out := c.out()
	fmt.Fprintln(out, "## Watch Mode")
	fmt.Fprintf(out, "Watching %s for changes (Ctrl+C to stop)\n\n", cfg.Dir)

	ctx, cancel := signalContext()
	defer cancel()

	err = ingestion.WatchInputs(ctx, cfg.Dir, store, ingestion.WatchOptions{
		Pipeline: ingestion.Options{
			Jobs:      cfg.Jobs,
			BigArity:  cfg.BigArity,
			FaultFile: cfg.FaultFile,
			InputExt:  cfg.InputExt,
			Logger:    c.logger(cfg),
		},
		Debounce: c.Debounce,
		OnBatch: func(r *ingestion.PipelineResult, err error) {
			if err != nil {
				color.Red("Extraction failed: %v", err)
				return
			}
			if r.Inputs == 0 {
				return
			}
			color.Green("✓ Re-extracted %d input(s)", r.Extracted)
			printResult(out, r)
		},
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch error: %w", err)
	}

	fmt.Fprintln(out, "Watch mode stopped.")
	return nil
}

// MCPCmd starts the MCP server.
type MCPCmd struct {
	ProjectFlags `embed:""`
}

// Run executes the mcp command.
func (c *MCPCmd) Run() error {
	_, store, err := c.open(true)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := signalContext()
	defer cancel()

	// No output to stdout: it carries the protocol.
	return mcp.NewServer(store).Run(ctx, os.Stdin, os.Stdout)
}

// StatusCmd shows store contents and run metadata.
type StatusCmd struct {
	ProjectFlags `embed:""`
}

// Run executes the status command.
func (c *StatusCmd) Run() error {
	cfg, store, err := c.open(true)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	stats, err := store.Stats(ctx)
	if err != nil {
		return err
	}
	runs, err := store.Runs(ctx)
	if err != nil {
		return err
	}

	out := c.out()
	fmt.Fprintf(out, "Fact store status for %s\n", cfg.Dir)
	fmt.Fprintf(out, "  Store:          %s (%s)\n", cfg.Store, cfg.StorePath())
	fmt.Fprintf(out, "  Labels:         %d\n", stats.Labels)
	fmt.Fprintf(out, "  Facts:          %d\n", stats.Facts)
	fmt.Fprintf(out, "  Runs:           %d\n", len(runs))
	if len(runs) > 0 {
		last := runs[len(runs)-1]
		fmt.Fprintf(out, "  Last run:       %s at %s\n", last.ID, last.FinishedAt.Local().Format(time.RFC3339))
		fmt.Fprintf(out, "                  %d file(s), %d fact(s), %d error(s), %d warning(s)\n",
			last.Files, last.Facts, last.Errors, last.Warnings)
	}
	return nil
}

// CleanCmd deletes the fact store.
type CleanCmd struct {
	ProjectFlags `embed:""`

	Force bool `short:"f" help:"Skip confirmation"`
}

// Run executes the clean command.
func (c *CleanCmd) Run() error {
	cfg, err := c.load()
	if err != nil {
		return err
	}
	path := cfg.StorePath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("no fact store found at %s. Nothing to clean", path)
	}

	if !c.Force {
		fmt.Fprintf(c.out(), "Delete fact store at %s? [y/N] ", path)
		var response string
		_, _ = fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Fprintln(c.out(), "Aborted")
			return nil
		}
	}

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("deleting fact store: %w", err)
	}

	color.Green("Deleted %s", path)
	return nil
}

// Helper functions

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// resolveLabel accepts "#n" or a canonical key.
func resolveLabel(ctx context.Context, store storage.FactStore, s string) (facts.Label, error) {
	if strings.HasPrefix(s, "#") {
		return facts.ParseLabel(s)
	}
	l, ok, err := store.LookupLabel(ctx, s)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("no label for key %q", s)
	}
	return l, nil
}

// CLI is the root Kong command structure.
type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`

	// Commands
	Extract ExtractCmd `cmd:"" help:"Extract declaration trees into the fact store"`
	Facts   FactsCmd   `cmd:"" help:"Dump stored facts of a relation"`
	Label   LabelCmd   `cmd:"" help:"Look up a canonical label"`
	Tree    TreeCmd    `cmd:"" help:"Print the lowered tree under a label"`
	Query   QueryCmd   `cmd:"" help:"Evaluate a Datalog program over stored facts"`
	Watch   WatchCmd   `cmd:"" help:"Watch mode with live re-extraction"`
	MCP     MCPCmd     `cmd:"" help:"Start MCP server (stdio transport)"`
	Setup   SetupCmd   `cmd:"" help:"Configure MCP for Claude Code / Cursor"`
	Status  StatusCmd  `cmd:"" help:"Show fact store status"`
	Clean   CleanCmd   `cmd:"" help:"Delete the fact store"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{}
}

// Execute parses command-line arguments and executes the selected command.
func (c *CLI) Execute(args []string) error {
	parser, err := kong.New(c,
		kong.Name("irfacts"),
		kong.Description("Relational fact extraction for typed declaration trees"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": Version,
		},
	)
	if err != nil {
		return err
	}
	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	return kongCtx.Run()
}
