package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleFsEvent(t *testing.T) {
	dir := t.TempDir()
	existing := writeFile(t, filepath.Join(dir, "note.md"), "# Note")
	subdir := filepath.Join(dir, "sub.md")
	require.NoError(t, os.Mkdir(subdir, 0o755))

	tests := []struct {
		name   string
		event  fsnotify.Event
		want   Change
		wantOK bool
	}{
		{"create", fsnotify.Event{Name: existing, Op: fsnotify.Create}, Change{ChangeUpserted, existing}, true},
		{"write", fsnotify.Event{Name: existing, Op: fsnotify.Write}, Change{ChangeUpserted, existing}, true},
		{"remove", fsnotify.Event{Name: existing, Op: fsnotify.Remove}, Change{ChangeDeleted, existing}, true},
		{"rename", fsnotify.Event{Name: existing, Op: fsnotify.Rename}, Change{ChangeDeleted, existing}, true},
		{"chmod", fsnotify.Event{Name: existing, Op: fsnotify.Chmod}, Change{}, false},
		{"non markdown", fsnotify.Event{Name: filepath.Join(dir, "a.txt"), Op: fsnotify.Write}, Change{}, false},
		{"hidden", fsnotify.Event{Name: filepath.Join(dir, ".a.md"), Op: fsnotify.Write}, Change{}, false},
		{"directory", fsnotify.Event{Name: subdir, Op: fsnotify.Create}, Change{}, false},
		{"vanished before stat", fsnotify.Event{Name: filepath.Join(dir, "gone.md"), Op: fsnotify.Write}, Change{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := handleFsEvent(tt.event)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func nextChange(t *testing.T, changes <-chan Change, want ChangeType) Change {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case c, ok := <-changes:
			require.True(t, ok, "change channel closed")
			if c.Type == want {
				return c
			}
		case <-timeout:
			t.Fatalf("no %s change within timeout", want)
		}
	}
}

func TestWatch(t *testing.T) {
	idx, store, l := setupIndexer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := idx.Watch(ctx)
	require.NoError(t, err)

	// rename into place so the file is complete when the event arrives
	tmp := writeFile(t, filepath.Join(l.global, ".watched.tmp"), "# Watched\n\nThis file appears while watching.\n")
	path := filepath.Join(l.global, "watched.md")
	require.NoError(t, os.Rename(tmp, path))
	c := nextChange(t, changes, ChangeUpserted)
	assert.Equal(t, path, c.Path)
	require.NoError(t, idx.Apply(ctx, c))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, os.Remove(path))
	c = nextChange(t, changes, ChangeDeleted)
	assert.Equal(t, path, c.Path)
	require.NoError(t, idx.Apply(ctx, c))

	count, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	cancel()
	select {
	case _, ok := <-changes:
		for ok {
			_, ok = <-changes
		}
	case <-time.After(5 * time.Second):
		t.Fatal("change channel not closed after cancel")
	}
}
