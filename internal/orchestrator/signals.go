package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// stopSignalName is the file whose creation asks active runs to stop.
const stopSignalName = "stop"

// SignalWatcher watches <root>/.spoc/signals for a stop file. A run checks
// ShouldStop at each iteration boundary. When the file watcher cannot be
// started, ShouldStop falls back to checking the file directly.
type SignalWatcher struct {
	dir string

	mu         sync.RWMutex
	stopSignal bool

	watcher   *fsnotify.Watcher
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewSignalWatcher creates the signals directory under root, removes a stop
// signal left over from an earlier process and starts watching. A stop signal
// sent afterwards holds for every run sharing the watcher until Clear.
func NewSignalWatcher(root string) (*SignalWatcher, error) {
	dir := filepath.Join(root, ".spoc", "signals")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create signals directory: %w", err)
	}

	sw := &SignalWatcher{
		dir:  dir,
		done: make(chan struct{}),
	}
	sw.Clear()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		debugLog("[signals] watcher unavailable, polling: %v", err)
		return sw, nil
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		debugLog("[signals] watch %s failed, polling: %v", dir, err)
		return sw, nil
	}
	sw.watcher = watcher

	sw.wg.Add(1)
	go sw.watch()

	return sw, nil
}

func (sw *SignalWatcher) watch() {
	defer sw.wg.Done()
	for {
		select {
		case <-sw.done:
			return
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) == stopSignalName && event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				sw.mu.Lock()
				sw.stopSignal = true
				sw.mu.Unlock()
				debugLog("[signals] stop signal received")
			}
		case _, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// ShouldStop reports whether a stop signal has been received.
func (sw *SignalWatcher) ShouldStop() bool {
	if sw == nil {
		return false
	}
	if _, err := os.Stat(filepath.Join(sw.dir, stopSignalName)); err == nil {
		sw.mu.Lock()
		sw.stopSignal = true
		sw.mu.Unlock()
	}

	sw.mu.RLock()
	defer sw.mu.RUnlock()
	return sw.stopSignal
}

// SendStop creates the stop signal file.
func (sw *SignalWatcher) SendStop() error {
	path := filepath.Join(sw.dir, stopSignalName)
	return os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)), 0644)
}

// Clear removes the stop signal file and resets the signal state.
func (sw *SignalWatcher) Clear() {
	if sw == nil {
		return
	}
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.stopSignal = false
	os.Remove(filepath.Join(sw.dir, stopSignalName))
}

// Dir returns the watched signals directory.
func (sw *SignalWatcher) Dir() string {
	return sw.dir
}

// Close stops watching and waits for the watch goroutine to exit.
func (sw *SignalWatcher) Close() {
	if sw == nil {
		return
	}
	sw.closeOnce.Do(func() {
		close(sw.done)
		if sw.watcher != nil {
			sw.watcher.Close()
		}
		sw.wg.Wait()
	})
}
