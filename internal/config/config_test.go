package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "badger", cfg.Store)
	assert.Equal(t, DefaultBigArity, cfg.BigArity)
	assert.Equal(t, 1, cfg.Jobs)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ".ir.json", cfg.InputExt)
	assert.Empty(t, cfg.File)
	assert.Equal(t, filepath.Join(dir, ".irfacts", "badger"), cfg.StorePath())
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	yaml := "store: sqlite\nbig_arity: 4\njobs: 3\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(yaml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store)
	assert.Equal(t, 4, cfg.BigArity)
	assert.Equal(t, 3, cfg.Jobs)
	assert.Equal(t, filepath.Join(dir, FileName), cfg.File)
	assert.Equal(t, filepath.Join(dir, ".irfacts", "facts.db"), cfg.StorePath())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("jobs: 3\n"), 0o644))
	t.Setenv("IRFACTS_JOBS", "6")
	t.Setenv("IRFACTS_DB_PATH", "out/db")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Jobs)
	assert.Equal(t, filepath.Join(dir, "out", "db"), cfg.StorePath())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"Store", "store: postgres\n", "invalid store"},
		{"BigArity", "big_arity: 0\n", "big_arity"},
		{"Jobs", "jobs: 0\n", "jobs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(tt.yaml), 0o644))

			_, err := Load(dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestStorePath_Absolute(t *testing.T) {
	t.Parallel()

	cfg := &Config{Store: "badger", DBPath: "/tmp/x", Dir: "/proj"}
	assert.Equal(t, "/tmp/x", cfg.StorePath())
}
