package ingestion

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/irfacts/internal/extractor"
	"github.com/Benny93/irfacts/internal/facts"
	"github.com/Benny93/irfacts/internal/storage"
	"github.com/Benny93/irfacts/internal/testutil"
)

// unitJSON is a declaration tree for src/<name>.kt holding one function that
// takes a lib.Box<Int> and returns its argument. When broken is set the body
// also carries an expression kind the extractor does not know.
func unitJSON(name string, broken bool) string {
	extra := ""
	if broken {
		extra = `{"kind": "mystery_node", "loc": [3, 3, 3, 4]},`
	}
	return fmt.Sprintf(`{
  "externals": [
    {"name": "lib", "facade": "lib.LibKt", "declarations": [
      {"kind": "class", "id": "lib.Box", "name": "Box"}
    ]}
  ],
  "files": [
    {"path": "src/%[1]s.kt", "package": "app", "loc": [1, 1, 5, 1], "declarations": [
      {"kind": "function", "id": "f", "name": "%[1]s", "loc": [2, 1, 4, 2],
       "valueParameters": [{"id": "f.x", "name": "x", "type": {"class": "lib.Box"}}],
       "returnType": {"class": "lib.Box"},
       "body": {"kind": "block_body", "statements": [
         %[2]s
         {"kind": "return", "target": "f", "value": {"kind": "get_value", "symbol": "f.x"}}
       ]}}
    ]}
  ]
}`, name, extra)
}

func writeInput(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func hasLabel(t *testing.T, store storage.FactStore, key string) bool {
	t.Helper()
	_, ok, err := store.LookupLabel(t.Context(), key)
	require.NoError(t, err)
	return ok
}

func TestRunPipeline(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeInput(t, dir, "a.ir.json", unitJSON("a", false))
	writeInput(t, dir, "nested/b.ir.json", unitJSON("b", false))
	writeInput(t, dir, "notes.txt", "not an input")

	store := storage.NewMemoryBackend()
	opts := Options{Jobs: 2, Logger: testutil.NewTestLogger(t)}

	res, err := RunPipeline(t.Context(), []string{dir}, store, opts)
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 2, res.Inputs)
	assert.Equal(t, 2, res.Extracted)
	assert.Equal(t, 2, res.Files)
	assert.Zero(t, res.Skipped)
	assert.Zero(t, res.Errors)
	assert.Positive(t, res.Facts)
	assert.Positive(t, res.Externals)

	assert.True(t, hasLabel(t, store, "class;app.AKt"))
	assert.True(t, hasLabel(t, store, "class;app.BKt"))
	assert.True(t, hasLabel(t, store, extractor.ClaimKey("class;lib.Box")))

	stats, err := store.Stats(t.Context())
	require.NoError(t, err)
	assert.Equal(t, res.Facts, stats.Facts)

	runs, err := store.Runs(t.Context())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, res.RunID, runs[0].ID)
	assert.Equal(t, res.Facts, runs[0].Facts)
	assert.Equal(t, 2, runs[0].Files)
}

func TestRunPipeline_SkipsUnchangedInputs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeInput(t, dir, "a.ir.json", unitJSON("a", false))
	store := storage.NewMemoryBackend()

	first, err := RunPipeline(t.Context(), []string{dir}, store, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, first.Extracted)

	second, err := RunPipeline(t.Context(), []string{dir}, store, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Skipped)
	assert.Zero(t, second.Extracted)
	assert.Zero(t, second.Facts)
	assert.NotEqual(t, first.RunID, second.RunID)

	t.Run("ChangedContentIsExtracted", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte(unitJSON("c", false)), 0o644))
		res, err := RunPipeline(t.Context(), []string{dir}, store, Options{})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Extracted)
		assert.True(t, hasLabel(t, store, "class;app.CKt"))
		// lib.Box was claimed by the first run.
		assert.Zero(t, res.Externals)
	})

	runs, err := store.Runs(t.Context())
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestRunPipeline_Force(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeInput(t, dir, "a.ir.json", unitJSON("a", false))
	store := storage.NewMemoryBackend()

	_, err := RunPipeline(t.Context(), []string{dir}, store, Options{})
	require.NoError(t, err)

	res, err := RunPipeline(t.Context(), []string{dir}, store, Options{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Extracted)
	assert.Zero(t, res.Skipped)
	assert.Positive(t, res.Facts)
}

func TestRunPipeline_Diagnostics(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeInput(t, dir, "a.ir.json", unitJSON("a", true))
	writeInput(t, dir, "b.ir.json", unitJSON("b", false))
	store := storage.NewMemoryBackend()

	res, err := RunPipeline(t.Context(), []string{dir}, store, Options{Jobs: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Extracted)
	assert.Equal(t, 1, res.Errors)

	diags, err := store.Facts(t.Context(), facts.KindDiagnostics)
	require.NoError(t, err)
	assert.Len(t, diags, 1)

	runs, err := store.Runs(t.Context())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].Errors)
}

func TestRunPipeline_UndecodableInput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeInput(t, dir, "a.ir.json", unitJSON("a", false))
	writeInput(t, dir, "bad.ir.json", `{"files": [`)
	store := storage.NewMemoryBackend()

	res, err := RunPipeline(t.Context(), []string{dir}, store, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Extracted)

	// A failed input is retried on the next run.
	again, err := RunPipeline(t.Context(), []string{dir}, store, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, again.Failed)
	assert.Equal(t, 1, again.Skipped)
}

func TestRunPipeline_FaultInjection(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeInput(t, dir, "a.ir.json", unitJSON("a", false))
	store := storage.NewMemoryBackend()

	_, err := RunPipeline(t.Context(), []string{dir}, store, Options{FaultFile: "src/a.kt"})
	require.Error(t, err)
	assert.ErrorIs(t, err, extractor.ErrFaultInjected)

	runs, err := store.Runs(t.Context())
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRunPipeline_FileArguments(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := writeInput(t, dir, "a.ir.json", unitJSON("a", false))
	store := storage.NewMemoryBackend()

	// The same input named twice is extracted once.
	res, err := RunPipeline(t.Context(), []string{a, dir}, store, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inputs)
	assert.Equal(t, 1, res.Extracted)
}

func TestRunPipeline_Progress(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"a", "b", "c"} {
		writeInput(t, dir, name+".ir.json", unitJSON(name, false))
	}

	var mu sync.Mutex
	phases := map[string]float64{}
	progress := func(phase string, p float64) {
		mu.Lock()
		defer mu.Unlock()
		phases[phase] = max(phases[phase], p)
	}

	_, err := RunPipeline(t.Context(), []string{dir}, storage.NewMemoryBackend(), Options{Jobs: 3, Progress: progress})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"Discovering inputs": 1.0, "Extracting": 1.0}, phases)
}
