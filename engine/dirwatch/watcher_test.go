package dirwatch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounter(t *testing.T) {
	var c Counter
	assert.Equal(t, uint64(0), c.CurrentRevision())
	assert.Equal(t, uint64(1), c.Bump())
	assert.Equal(t, uint64(1), c.CurrentRevision())
}

func TestWatcherRevisionAdvancesOnlyOnRefresh(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	assert.False(t, w.Refresh())
	assert.Equal(t, uint64(0), w.CurrentRevision())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.wgsl"), []byte("x"), 0o644))
	require.Eventually(t, func() bool { return w.Events() > 0 }, 5*time.Second, 10*time.Millisecond)

	// Nothing is published until Refresh runs.
	assert.Equal(t, uint64(0), w.CurrentRevision())
	assert.True(t, w.Refresh())
	assert.Equal(t, uint64(1), w.CurrentRevision())
}

func TestWatcherPicksUpNewSubdirectories(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	sub := filepath.Join(dir, "include")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.Eventually(t, func() bool { return w.Refresh() }, 5*time.Second, 10*time.Millisecond)
	before := w.Events()

	// Give the watcher a moment to register the new directory before writing into it.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(filepath.Join(sub, "common.wgsl"), []byte("y"), 0o644)
		return w.Events() > before
	}, 5*time.Second, 50*time.Millisecond)
	assert.True(t, w.Refresh())
}

func TestNewWatcherRejectsFiles(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(f, nil, 0o644))
	_, err := NewWatcher(f)
	assert.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), WithRecursive(false))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}
