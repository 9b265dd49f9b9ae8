package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Benny93/irfacts/internal/extractor"
	"github.com/Benny93/irfacts/internal/ir"
	"github.com/Benny93/irfacts/internal/logging"
	"github.com/Benny93/irfacts/internal/storage"
)

// Options configure a pipeline run.
type Options struct {
	// Jobs bounds how many inputs are extracted at once. Values below one
	// mean one.
	Jobs int

	// BigArity is passed to every session. Zero uses the extractor default.
	BigArity int

	// FaultFile aborts the run when a session reaches this source file.
	FaultFile string

	// InputExt is the suffix of input files. Empty means DefaultInputExt.
	InputExt string

	// Force re-extracts inputs whose fingerprint the store already holds.
	Force bool

	Logger   *slog.Logger
	Progress ProgressCallback
}

// ProgressCallback is called with phase name and progress (0.0-1.0).
type ProgressCallback func(phase string, progress float64)

// PipelineResult summarizes a pipeline run.
type PipelineResult struct {
	RunID string

	// Inputs is the number of input files discovered.
	Inputs int

	// Extracted and Skipped partition the inputs that decoded; Failed counts
	// those that did not.
	Extracted int
	Skipped   int
	Failed    int

	// Files is the number of source files in the extracted units.
	Files int

	// Externals is the number of external declarations this run populated.
	Externals int

	// Facts is the number of facts the run added to the store.
	Facts int

	Warnings int
	Errors   int
	Duration time.Duration
}

// inputKey names an input at one content version. The pipeline creates it
// after a successful extraction so that unchanged inputs are skipped.
func inputKey(in InputFile) string {
	path := in.Path
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return "input;" + filepath.ToSlash(path) + ";" + in.Fingerprint()
}

// RunPipeline discovers the inputs under paths and extracts each of them in
// its own session over store. Recoverable extraction errors are counted in
// the result and persisted as diagnostics; the returned error is fatal.
func RunPipeline(ctx context.Context, paths []string, store storage.FactStore, opts Options) (*PipelineResult, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("run", runID)
	progress := opts.Progress
	if progress == nil {
		progress = func(string, float64) {}
	}
	result := &PipelineResult{RunID: runID}

	// Phase 1: discovery
	progress("Discovering inputs", 0.0)
	inputs, err := discover(paths, opts.InputExt)
	if err != nil {
		return nil, fmt.Errorf("discovering inputs: %w", err)
	}
	result.Inputs = len(inputs)
	progress("Discovering inputs", 1.0)

	pending := inputs[:0:0]
	for _, in := range inputs {
		if !opts.Force {
			_, seen, err := store.LookupLabel(ctx, inputKey(in))
			if err != nil {
				return nil, fmt.Errorf("checking %s: %w", in.RelPath, err)
			}
			if seen {
				logger.Debug("input unchanged", "path", in.RelPath)
				result.Skipped++
				continue
			}
		}
		pending = append(pending, in)
	}

	before, err := store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading store stats: %w", err)
	}

	// Phase 2: extraction
	progress("Extracting", 0.0)
	diag := logging.NewDiagnosticLogger(logger)
	jobs := max(opts.Jobs, 1)

	var mu sync.Mutex
	done := 0
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, in := range pending {
		g.Go(func() error {
			unit, err := ir.Decode(bytes.NewReader(in.Content))
			if err != nil {
				logger.Error("skipping undecodable input", "path", in.RelPath, "error", err)
				mu.Lock()
				result.Failed++
				mu.Unlock()
				return nil
			}

			sopts := extractor.Options{
				RunID:     fmt.Sprintf("%s/%d", runID, i),
				BigArity:  opts.BigArity,
				FaultFile: opts.FaultFile,
			}
			files, externals, err := extractUnit(gctx, store, unit, diag, sopts)
			if err != nil {
				return fmt.Errorf("extracting %s: %w", in.RelPath, err)
			}
			if _, _, err := store.GetLabelFor(gctx, inputKey(in)); err != nil {
				return fmt.Errorf("recording %s: %w", in.RelPath, err)
			}
			logger.Debug("extracted input", "path", in.RelPath, "files", files, "externals", externals)

			mu.Lock()
			defer mu.Unlock()
			result.Extracted++
			result.Files += files
			result.Externals += externals
			done++
			progress("Extracting", float64(done)/float64(len(pending)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	progress("Extracting", 1.0)

	after, err := store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading store stats: %w", err)
	}
	result.Facts = after.Facts - before.Facts
	result.Warnings, result.Errors = diag.Counts()
	result.Duration = time.Since(start)

	// Phase 3: run metadata
	run := &storage.Run{
		ID:         runID,
		StartedAt:  start,
		FinishedAt: start.Add(result.Duration),
		Files:      result.Files,
		Facts:      result.Facts,
		Errors:     result.Errors,
		Warnings:   result.Warnings,
	}
	if err := store.RecordRun(ctx, run); err != nil {
		return nil, fmt.Errorf("recording run: %w", err)
	}
	logger.Info("extraction finished",
		"inputs", result.Inputs, "extracted", result.Extracted, "skipped", result.Skipped,
		"facts", result.Facts, "errors", result.Errors, "warnings", result.Warnings)
	return result, nil
}

// extractUnit runs one session over unit: every file, then the externals
// they queued. It returns the file count and how many externals the session
// populated.
func extractUnit(ctx context.Context, store storage.FactStore, unit *ir.Unit, logger extractor.Logger, opts extractor.Options) (int, int, error) {
	s := extractor.NewSession(ctx, store, unit, logger, opts)
	for _, f := range unit.Files {
		if err := s.ExtractFile(f); err != nil {
			return 0, 0, err
		}
	}
	n, err := s.ExtractExternals()
	if err != nil {
		return 0, 0, err
	}
	return len(unit.Files), n, nil
}

// discover walks every path and returns the inputs found, each once.
func discover(paths []string, ext string) ([]InputFile, error) {
	seen := make(map[string]bool)
	var out []InputFile
	for _, root := range paths {
		patterns, err := LoadGitignore(root)
		if err != nil {
			return nil, err
		}
		inputs, err := WalkInputs(root, ext, patterns)
		if err != nil {
			return nil, err
		}
		for _, in := range inputs {
			key := filepath.Clean(in.Path)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, in)
		}
	}
	return out, nil
}
