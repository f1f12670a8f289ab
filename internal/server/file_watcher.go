package server

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"vacalyser/internal/errors"
)

// FileWatcher watches a set of files (TLS certificates, prompt templates) and
// calls onChange with the files whose modification time moved. Bursts of
// events are debounced.
type FileWatcher struct {
	mu sync.RWMutex

	files       []string
	lastModTime map[string]time.Time

	fsWatcher     *fsnotify.Watcher
	debounceDelay time.Duration
	debounceTimer *time.Timer

	stopChan   chan struct{}
	reloadChan chan struct{}
	loopDone   chan struct{}

	onChange func(changed []string)
	logger   *errors.Logger

	running bool
}

// NewFileWatcher creates a watcher for files; empty paths are ignored
func NewFileWatcher(files []string, debounceDelay time.Duration, onChange func(changed []string), logger *errors.Logger) *FileWatcher {
	if debounceDelay == 0 {
		debounceDelay = time.Second
	}
	if logger == nil {
		logger = errors.NewDiscardLogger()
	}

	var watched []string
	for _, f := range files {
		if f == "" {
			continue
		}
		if abs, err := filepath.Abs(f); err == nil {
			f = abs
		}
		if !slices.Contains(watched, f) {
			watched = append(watched, f)
		}
	}

	return &FileWatcher{
		files:         watched,
		lastModTime:   make(map[string]time.Time),
		debounceDelay: debounceDelay,
		stopChan:      make(chan struct{}),
		reloadChan:    make(chan struct{}, 1),
		loopDone:      make(chan struct{}),
		onChange:      onChange,
		logger:        logger,
	}
}

// Start begins watching
func (fw *FileWatcher) Start() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.running {
		return fmt.Errorf("file watcher is already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	fw.fsWatcher = watcher
	fw.updateModTimes()

	for _, file := range fw.files {
		if err := fw.addFileToWatcher(file); err != nil {
			fw.logger.Warn("Failed to watch file", "file", file, "error", err)
		}
	}

	fw.running = true
	go fw.watchLoop()

	fw.logger.Info("File watcher started",
		"files", fw.files,
		"debounce_delay", fw.debounceDelay)
	return nil
}

// Stop stops the watcher and waits for its loop to exit
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	if !fw.running {
		fw.mu.Unlock()
		return nil
	}
	close(fw.stopChan)
	if fw.debounceTimer != nil {
		fw.debounceTimer.Stop()
	}
	fw.running = false
	fw.mu.Unlock()

	<-fw.loopDone
	if err := fw.fsWatcher.Close(); err != nil {
		fw.logger.LogError(err, "Failed to close file system watcher")
		return err
	}
	fw.logger.Info("File watcher stopped")
	return nil
}

// addFileToWatcher watches the file's directory so atomic renames are seen
func (fw *FileWatcher) addFileToWatcher(file string) error {
	dir := filepath.Dir(file)
	if slices.Contains(fw.fsWatcher.WatchList(), dir) {
		return nil
	}
	if err := fw.fsWatcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}
	return nil
}

func (fw *FileWatcher) updateModTimes() {
	for _, file := range fw.files {
		if stat, err := os.Stat(file); err == nil {
			fw.lastModTime[file] = stat.ModTime()
		}
	}
}

// hasFileChanged checks if a file has been modified since last check
func (fw *FileWatcher) hasFileChanged(file string) bool {
	stat, err := os.Stat(file)
	if err != nil {
		if os.IsNotExist(err) {
			if _, exists := fw.lastModTime[file]; exists {
				delete(fw.lastModTime, file)
				return true
			}
		}
		return false
	}

	lastMod, exists := fw.lastModTime[file]
	if !exists || !stat.ModTime().Equal(lastMod) {
		fw.lastModTime[file] = stat.ModTime()
		return true
	}
	return false
}

func (fw *FileWatcher) watchLoop() {
	defer close(fw.loopDone)
	for {
		select {
		case event, ok := <-fw.fsWatcher.Events:
			if !ok {
				return
			}
			if fw.shouldProcessEvent(event) {
				fw.scheduleReload()
			}

		case err, ok := <-fw.fsWatcher.Errors:
			if !ok {
				return
			}
			fw.logger.LogError(err, "File watcher error")

		case <-fw.reloadChan:
			var changed []string
			for _, file := range fw.files {
				if fw.hasFileChanged(file) {
					changed = append(changed, file)
				}
			}
			if len(changed) > 0 {
				fw.logger.Info("Watched files changed", "files", changed)
				fw.onChange(changed)
			}

		case <-fw.stopChan:
			return
		}
	}
}

// shouldProcessEvent reports whether event touches a watched file
func (fw *FileWatcher) shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	name := filepath.Clean(event.Name)
	return slices.ContainsFunc(fw.files, func(file string) bool {
		return name == file || filepath.Base(name) == filepath.Base(file)
	})
}

// scheduleReload schedules a debounced reload
func (fw *FileWatcher) scheduleReload() {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if !fw.running {
		return
	}
	if fw.debounceTimer != nil {
		fw.debounceTimer.Stop()
	}
	fw.debounceTimer = time.AfterFunc(fw.debounceDelay, func() {
		select {
		case fw.reloadChan <- struct{}{}:
		default:
		}
	})
}

// IsRunning returns whether the watcher is currently running
func (fw *FileWatcher) IsRunning() bool {
	fw.mu.RLock()
	defer fw.mu.RUnlock()
	return fw.running
}

// GetWatchedFiles returns the list of files being watched
func (fw *FileWatcher) GetWatchedFiles() []string {
	return slices.Clone(fw.files)
}
