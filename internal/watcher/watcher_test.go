package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypeString(t *testing.T) {
	testCases := []struct {
		eventType EventType
		expected  string
	}{
		{EventTypeCreated, "created"},
		{EventTypeModified, "modified"},
		{EventTypeDeleted, "deleted"},
		{EventTypeRenamed, "renamed"},
		{EventType(42), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.eventType.String())
		})
	}
}

func TestNewFileWatcher(t *testing.T) {
	watcher, err := NewFileWatcher(100*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	assert.NotNil(t, watcher.watcher)
	assert.NotNil(t, watcher.debouncer)
	assert.Empty(t, watcher.filters)
	assert.Empty(t, watcher.handlers)
}

func TestFileWatcherAddPath(t *testing.T) {
	watcher, err := NewFileWatcher(100*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	assert.NoError(t, watcher.AddPath(t.TempDir()))
	assert.Error(t, watcher.AddPath("/non/existent/path"))
	assert.Error(t, watcher.AddPath("../../etc"))
}

func TestFileWatcherAddRecursiveSkipsHidden(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "posts", "2024"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git", "objects"), 0o755))

	watcher, err := NewFileWatcher(100*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	require.NoError(t, watcher.AddRecursive(root))

	watched := watcher.watcher.WatchList()
	assert.Contains(t, watched, filepath.Join(root, "posts", "2024"))
	assert.NotContains(t, watched, filepath.Join(root, ".git"))
}

func TestFileWatcherDeliversDebouncedChanges(t *testing.T) {
	dir := t.TempDir()

	watcher, err := NewFileWatcher(50*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	watcher.AddFilter(ContentFilter)
	require.NoError(t, watcher.AddPath(dir))

	var mu sync.Mutex
	var batches [][]ChangeEvent
	watcher.AddHandler(func(_ context.Context, events []ChangeEvent) error {
		mu.Lock()
		defer mu.Unlock()
		batches = append(batches, events)

		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, watcher.Start(ctx))

	article := filepath.Join(dir, "hello.md")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(article, []byte("# Hello"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(batches) > 0
	}, 3*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for _, batch := range batches {
		for _, e := range batch {
			assert.Equal(t, article, e.Path)
		}
	}
	assert.True(t, HasArticleChanges(batches[0]))
}

func TestDebouncerDeduplicatesAndSorts(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.start(ctx)

	d.Add(ChangeEvent{Type: EventTypeCreated, Path: "b.md"})
	d.Add(ChangeEvent{Type: EventTypeModified, Path: "a.svg"})
	d.Add(ChangeEvent{Type: EventTypeDeleted, Path: "b.md"})

	select {
	case batch := <-d.Output():
		require.Len(t, batch, 2)
		assert.Equal(t, "a.svg", batch[0].Path)
		assert.Equal(t, "b.md", batch[1].Path)
		assert.Equal(t, EventTypeDeleted, batch[1].Type)
	case <-time.After(2 * time.Second):
		t.Fatal("debouncer never flushed")
	}
}

func TestFilters(t *testing.T) {
	tests := []struct {
		path    string
		content bool
		visible bool
		temp    bool
	}{
		{"articles/hello.md", true, true, true},
		{"img/safe.SVG", true, true, true},
		{"uploads/report.pdf", true, true, true},
		{"articles/.draft.md", true, false, true},
		{".git/HEAD", false, false, true},
		{"articles/hello.md~", false, true, false},
		{"articles/.hello.md.swp", false, false, false},
		{"main.go", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.content, ContentFilter(tt.path), "content")
			assert.Equal(t, tt.visible, NoHiddenFilter(tt.path), "hidden")
			assert.Equal(t, tt.temp, NoEditorTempFilter(tt.path), "temp")
		})
	}
}

func TestHasArticleChanges(t *testing.T) {
	assert.False(t, HasArticleChanges(nil))
	assert.False(t, HasArticleChanges([]ChangeEvent{{Path: "img/a.svg"}}))
	assert.True(t, HasArticleChanges([]ChangeEvent{{Path: "img/a.svg"}, {Path: "posts/A.MD"}}))
}
