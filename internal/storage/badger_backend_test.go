package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/irfacts/internal/facts"
)

func setupTestBadgerBackend(t *testing.T) (*BadgerBackend, func()) {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "badger")

	backend := NewBadgerBackend()
	err := backend.Initialize(dbPath, false)
	require.NoError(t, err)

	cleanup := func() {
		backend.Close()
	}

	return backend, cleanup
}

func TestBadgerBackend_Initialize(t *testing.T) {
	t.Parallel()

	t.Run("Success", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "badger")

		backend := NewBadgerBackend()
		err := backend.Initialize(dbPath, false)

		assert.NoError(t, err)
		assert.NotNil(t, backend.db)
		assert.True(t, backend.initialized)

		backend.Close()
	})

	t.Run("ReadOnly", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "badger")
		ctx := context.Background()

		// First create the DB
		backend1 := NewBadgerBackend()
		require.NoError(t, backend1.Initialize(dbPath, false))
		l, _, err := backend1.GetLabelFor(ctx, "file;a.kt")
		require.NoError(t, err)
		require.NoError(t, backend1.Close())

		// Open in read-only mode
		backend2 := NewBadgerBackend()
		require.NoError(t, backend2.Initialize(dbPath, true))
		defer backend2.Close()

		got, created, err := backend2.GetLabelFor(ctx, "file;a.kt")
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, l, got)

		_, _, err = backend2.GetLabelFor(ctx, "file;b.kt")
		assert.Error(t, err)
		assert.Error(t, backend2.Append(ctx, facts.New(facts.KindIsRaw, facts.L(l))))
	})
}

func TestBadgerBackend_Persistence(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "badger")

	b1 := NewBadgerBackend()
	require.NoError(t, b1.Initialize(dbPath, false))
	a, _, err := b1.GetLabelFor(ctx, "class;p.A")
	require.NoError(t, err)
	f := facts.New(facts.KindClasses, facts.L(a), facts.S("A"), facts.S("p"), facts.L(a))
	require.NoError(t, b1.Append(ctx, f))
	require.NoError(t, b1.Close())

	b2 := NewBadgerBackend()
	require.NoError(t, b2.Initialize(dbPath, false))
	defer b2.Close()

	again, created, err := b2.GetLabelFor(ctx, "class;p.A")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, a, again)

	b, created, err := b2.GetLabelFor(ctx, "class;p.B")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, a, b, "label sequence resumes after reopen")

	require.NoError(t, b2.Append(ctx, f))
	classes, err := b2.Facts(ctx, facts.KindClasses)
	require.NoError(t, err)
	assert.Equal(t, []facts.Fact{f}, classes)
}

func TestBadgerBackend_LargeAppend(t *testing.T) {
	t.Parallel()

	b, cleanup := setupTestBadgerBackend(t)
	defer cleanup()
	ctx := context.Background()

	var fs []facts.Fact
	for i := 0; i < appendChunk*2+10; i++ {
		fs = append(fs, facts.New(facts.KindTypeVars, facts.L(facts.Label(i+1)), facts.S("T"), facts.I(0), facts.L(1)))
	}
	require.NoError(t, b.Append(ctx, fs...))

	st, err := b.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(fs), st.ByKind[facts.KindTypeVars])
}
