package monitor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"organ/internal/store"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("payload"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLocalWatcherDetectsVideoFiles(t *testing.T) {
	root := t.TempDir()
	folder := &store.MonitoredFolder{ID: 1, Path: root, Recursive: true}

	ch, flush := collectBatches()
	batcher := NewBatcher(100*time.Millisecond, flush)
	defer batcher.Close()

	watcher, err := NewLocalWatcher(folder, batcher, nil, nil)
	if err != nil {
		t.Fatalf("NewLocalWatcher: %v", err)
	}
	defer watcher.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher.Start(ctx)

	writeFile(t, filepath.Join(root, "movie.mkv"))
	writeFile(t, filepath.Join(root, "notes.txt"))

	got := waitBatch(t, ch)
	if got.folderID != 1 {
		t.Fatalf("folderID = %d, want 1", got.folderID)
	}
	if len(got.paths) != 1 || got.paths[0] != filepath.Join(root, "movie.mkv") {
		t.Fatalf("paths = %v, want only the video file", got.paths)
	}
}

func TestLocalWatcherFollowsNewSubdirectories(t *testing.T) {
	root := t.TempDir()
	folder := &store.MonitoredFolder{ID: 2, Path: root, Recursive: true}

	ch, flush := collectBatches()
	batcher := NewBatcher(100*time.Millisecond, flush)
	defer batcher.Close()

	watcher, err := NewLocalWatcher(folder, batcher, nil, nil)
	if err != nil {
		t.Fatalf("NewLocalWatcher: %v", err)
	}
	defer watcher.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher.Start(ctx)

	sub := filepath.Join(root, "Season 01")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	// Give the watcher a moment to register the new directory.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, filepath.Join(sub, "episode.mkv"))

	got := waitBatch(t, ch)
	if len(got.paths) != 1 || got.paths[0] != filepath.Join(sub, "episode.mkv") {
		t.Fatalf("paths = %v, want the nested episode", got.paths)
	}
}

func TestLocalWatcherMissingRoot(t *testing.T) {
	folder := &store.MonitoredFolder{ID: 3, Path: filepath.Join(t.TempDir(), "gone")}
	if _, err := NewLocalWatcher(folder, NewBatcher(time.Second, nil), nil, nil); err == nil {
		t.Fatal("expected error for missing folder")
	}
}
