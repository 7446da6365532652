// Package watcher reports debounced changes under the content directories
// so the server can reload articles and tell open pages to refresh.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/safepreview/internal/logging"
	"github.com/conneroisu/safepreview/internal/validation"
)

// FileWatcher watches content directories and hands batches of changes to
// its handlers once the directory has been quiet for the debounce delay.
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	filters   []FileFilter
	handlers  []ChangeHandler
	logger    logging.Logger
	mutex     sync.RWMutex
}

// ChangeEvent represents a file change event
type ChangeEvent struct {
	Type    EventType
	Path    string
	ModTime time.Time
	Size    int64
}

// EventType represents the type of file change
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// FileFilter determines if a file should be watched
type FileFilter func(path string) bool

// ChangeHandler handles a debounced batch of changes.
type ChangeHandler func(ctx context.Context, events []ChangeEvent) error

// Debouncer groups rapid file changes together
type Debouncer struct {
	delay   time.Duration
	events  chan ChangeEvent
	output  chan []ChangeEvent
	timer   *time.Timer
	pending []ChangeEvent
	mutex   sync.Mutex
}

// NewFileWatcher creates a new file watcher
func NewFileWatcher(debounceDelay time.Duration, logger logging.Logger) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &FileWatcher{
		watcher:   watcher,
		debouncer: NewDebouncer(debounceDelay),
		filters:   make([]FileFilter, 0),
		handlers:  make([]ChangeHandler, 0),
		logger:    logger.WithComponent("content_watcher"),
	}, nil
}

// NewDebouncer returns a debouncer that flushes after delay of quiet.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:   delay,
		events:  make(chan ChangeEvent, 100),
		output:  make(chan []ChangeEvent, 10),
		pending: make([]ChangeEvent, 0),
	}
}

// AddFilter adds a file filter
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.filters = append(fw.filters, filter)
}

// AddHandler adds a change handler
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// AddPath adds a path to watch
func (fw *FileWatcher) AddPath(path string) error {
	cleanPath, err := cleanWatchPath(path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	return fw.watcher.Add(cleanPath)
}

// AddRecursive adds a directory and all subdirectories to watch. Hidden
// directories are skipped.
func (fw *FileWatcher) AddRecursive(root string) error {
	cleanRoot, err := cleanWatchPath(root)
	if err != nil {
		return fmt.Errorf("invalid root path: %w", err)
	}

	return filepath.WalkDir(cleanRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != cleanRoot && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}

		return fw.watcher.Add(path)
	})
}

func cleanWatchPath(path string) (string, error) {
	cleanPath := filepath.Clean(path)
	if err := validation.ValidatePath(cleanPath); err != nil {
		return "", err
	}

	return cleanPath, nil
}

// Start runs the watcher until ctx is done.
func (fw *FileWatcher) Start(ctx context.Context) error {
	go fw.debouncer.start(ctx)
	go fw.processEvents(ctx)
	go fw.watchLoop(ctx)

	return nil
}

// Stop stops the file watcher and cleans up resources
func (fw *FileWatcher) Stop() error {
	fw.debouncer.stop()

	return fw.watcher.Close()
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleFsnotifyEvent(event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn(ctx, err, "file watcher error")
		}
	}
}

func (fw *FileWatcher) handleFsnotifyEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}

	fw.mutex.RLock()
	filters := fw.filters
	fw.mutex.RUnlock()

	for _, filter := range filters {
		if !filter(event.Name) {
			return
		}
	}

	var modTime time.Time
	var size int64
	if info, err := os.Stat(event.Name); err == nil {
		modTime = info.ModTime()
		size = info.Size()
	}

	fw.debouncer.Add(ChangeEvent{
		Type:    eventTypeOf(event.Op),
		Path:    event.Name,
		ModTime: modTime,
		Size:    size,
	})
}

func eventTypeOf(op fsnotify.Op) EventType {
	switch {
	case op.Has(fsnotify.Create):
		return EventTypeCreated
	case op.Has(fsnotify.Write):
		return EventTypeModified
	case op.Has(fsnotify.Remove):
		return EventTypeDeleted
	case op.Has(fsnotify.Rename):
		return EventTypeRenamed
	default:
		return EventTypeModified
	}
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case events := <-fw.debouncer.output:
			fw.mutex.RLock()
			handlers := fw.handlers
			fw.mutex.RUnlock()

			fw.logger.Debug(ctx, "content changed", "files", len(events))
			for _, handler := range handlers {
				if err := handler(ctx, events); err != nil {
					fw.logger.Warn(ctx, err, "file watcher handler error")
				}
			}
		}
	}
}

// Add queues an event. Events are dropped when the queue is full.
func (d *Debouncer) Add(event ChangeEvent) {
	select {
	case d.events <- event:
	default:
	}
}

// Output delivers debounced batches.
func (d *Debouncer) Output() <-chan []ChangeEvent {
	return d.output
}

func (d *Debouncer) start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.stop()
			return
		case event := <-d.events:
			d.addEvent(event)
		}
	}
}

func (d *Debouncer) stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}

func (d *Debouncer) addEvent(event ChangeEvent) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.pending = append(d.pending, event)

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
}

func (d *Debouncer) flush() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if len(d.pending) == 0 {
		return
	}

	// Last event per path wins.
	eventMap := make(map[string]ChangeEvent, len(d.pending))
	for _, event := range d.pending {
		eventMap[event.Path] = event
	}

	events := make([]ChangeEvent, 0, len(eventMap))
	for _, event := range eventMap {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })

	select {
	case d.output <- events:
	default:
	}

	d.pending = d.pending[:0]
}

// ContentFilter accepts the file types the site serves.
func ContentFilter(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".svg", ".html", ".htm", ".pdf", ".css", ".js":
		return true
	default:
		return false
	}
}

// NoHiddenFilter rejects dotfiles and anything inside a dot directory.
func NoHiddenFilter(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if len(part) > 1 && strings.HasPrefix(part, ".") && part != ".." {
			return false
		}
	}

	return true
}

// NoEditorTempFilter rejects editor swap and backup files.
func NoEditorTempFilter(path string) bool {
	base := filepath.Base(path)
	if strings.HasSuffix(base, "~") || strings.HasPrefix(base, "#") {
		return false
	}
	for _, pattern := range []string{"*.swp", "*.swx", "*.tmp", "*.bak"} {
		if matched, _ := filepath.Match(pattern, base); matched {
			return false
		}
	}

	return true
}

// HasArticleChanges reports whether any event touches a markdown file.
func HasArticleChanges(events []ChangeEvent) bool {
	for _, e := range events {
		if strings.EqualFold(filepath.Ext(e.Path), ".md") {
			return true
		}
	}

	return false
}
