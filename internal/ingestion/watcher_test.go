package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/irfacts/internal/storage"
	"github.com/Benny93/irfacts/internal/testutil"
)

func TestShouldWatchFile(t *testing.T) {
	t.Parallel()

	root := filepath.FromSlash("/repo")
	matcher := newMatcher([]gitignore.Pattern{gitignore.ParsePattern("gen/", nil)})

	tests := []struct {
		path string
		want bool
	}{
		{"/repo/a.ir.json", true},
		{"/repo/src/b.ir.json", true},
		{"/repo/README.md", false},
		{"/repo/gen/c.ir.json", false},
		{"/repo/.git/d.ir.json", false},
		{"/repo/.irfacts/e.ir.json", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldWatchFile(filepath.FromSlash(tt.path), root, DefaultInputExt, matcher))
		})
	}

	t.Run("NilMatcher", func(t *testing.T) {
		assert.True(t, shouldWatchFile(filepath.FromSlash("/repo/gen/c.ir.json"), root, DefaultInputExt, nil))
	})
}

func TestShouldIgnoreDir(t *testing.T) {
	t.Parallel()

	root := filepath.FromSlash("/repo")
	matcher := newMatcher(nil)

	assert.True(t, shouldIgnoreDir(filepath.FromSlash("/repo/.git"), root, matcher))
	assert.True(t, shouldIgnoreDir(filepath.FromSlash("/repo/node_modules"), root, matcher))
	assert.False(t, shouldIgnoreDir(filepath.FromSlash("/repo/src"), root, matcher))
	assert.False(t, shouldIgnoreDir(filepath.FromSlash("/repo/.git"), root, nil))
}

func TestProcessChangedFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := writeInput(t, dir, "a.ir.json", unitJSON("a", false))
	gone := filepath.Join(dir, "gone.ir.json")
	store := storage.NewMemoryBackend()
	logger := testutil.NewTestLogger(t)

	res, err := processChangedFiles(t.Context(), store, map[string]bool{a: true, gone: true}, Options{}, logger)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inputs)
	assert.Equal(t, 1, res.Extracted)

	t.Run("OnlyRemovals", func(t *testing.T) {
		res, err := processChangedFiles(t.Context(), store, map[string]bool{gone: true}, Options{}, logger)
		require.NoError(t, err)
		assert.Zero(t, res.Inputs)

		// Nothing ran, so nothing was recorded.
		runs, err := store.Runs(t.Context())
		require.NoError(t, err)
		assert.Len(t, runs, 1)
	})
}

func TestWatchInputs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := storage.NewMemoryBackend()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	batches := make(chan *PipelineResult, 4)
	done := make(chan error, 1)
	go func() {
		done <- WatchInputs(ctx, dir, store, WatchOptions{
			Pipeline: Options{Logger: testutil.NewTestLogger(t)},
			Debounce: 50 * time.Millisecond,
			OnBatch: func(res *PipelineResult, err error) {
				if err == nil {
					batches <- res
				}
			},
		})
	}()

	// The watch is registered asynchronously; keep touching the input until
	// a batch arrives.
	content := []byte(unitJSON("a", false))
	path := filepath.Join(dir, "a.ir.json")
	deadline := time.After(10 * time.Second)
	var res *PipelineResult
	for res == nil {
		require.NoError(t, os.WriteFile(path, content, 0o644))
		select {
		case res = <-batches:
		case <-time.After(200 * time.Millisecond):
		case <-deadline:
			t.Fatal("no batch extracted")
		}
	}
	assert.Equal(t, 1, res.Inputs)

	_, ok, err := store.LookupLabel(t.Context(), "class;app.AKt")
	require.NoError(t, err)
	assert.True(t, ok)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
