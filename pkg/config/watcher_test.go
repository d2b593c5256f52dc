package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func awaitReload(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(3 * time.Second):
		t.Fatalf("no reload signal after %s", what)
	}
}

func TestWatchSignalsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("A=1\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := Watch(ctx, path)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("A=2\n"), 0o644))
	awaitReload(t, ch, "file write")
}

func TestWatchSurvivesAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("A=1\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := Watch(ctx, path)

	// Save the way editors do: write a temp file and rename it into place.
	time.Sleep(50 * time.Millisecond)
	tmp := filepath.Join(dir, ".env.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("A=2\n"), 0o644))
	require.NoError(t, os.Rename(tmp, path))
	awaitReload(t, ch, "atomic replace")

	// The watch must still be live for the next plain write.
	require.NoError(t, os.WriteFile(path, []byte("A=3\n"), 0o644))
	awaitReload(t, ch, "write following the replace")
}
