package config

import (
	"fmt"
	"log"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// GlobalScope is the TemplateStore scope of templates configured under ai.templates
const GlobalScope = "global"

// TemplateStore holds prompt templates read from files, keyed by scope
// (GlobalScope or an operation group) and kind. It is safe for concurrent
// use; the prompt file watcher replaces entries while requests read them.
type TemplateStore struct {
	mu        sync.RWMutex
	templates map[string]string // scope + "/" + kind -> content
	files     map[string][]string
}

// NewTemplateStore returns an empty store
func NewTemplateStore() *TemplateStore {
	return &TemplateStore{
		templates: map[string]string{},
		files:     map[string][]string{},
	}
}

func templateKey(scope, kind string) string {
	return scope + "/" + kind
}

// Get returns the template loaded for scope and kind
func (s *TemplateStore) Get(scope, kind string) (string, bool) {
	if s == nil {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[templateKey(scope, kind)]
	return t, ok
}

// Set stores content for scope and kind, remembering the file it came from
func (s *TemplateStore) Set(scope, kind, path, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := templateKey(scope, kind)
	s.templates[key] = content
	if path != "" && !slices.Contains(s.files[path], key) {
		s.files[path] = append(s.files[path], key)
	}
}

// Files lists the absolute paths templates were loaded from
func (s *TemplateStore) Files() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.files))
}

// Len reports how many templates are loaded
func (s *TemplateStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.templates)
}

// ReloadFile re-reads path and updates every template loaded from it. The
// previous content is kept when the file is unreadable or empty.
func (s *TemplateStore) ReloadFile(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path for prompt file '%s': %w", path, err)
	}
	s.mu.RLock()
	keys := slices.Clone(s.files[absPath])
	s.mu.RUnlock()
	if len(keys) == 0 {
		return fmt.Errorf("prompt file is not tracked: %s", absPath)
	}

	content, err := readPromptFile(absPath)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		s.templates[key] = content
	}
	log.Printf("[CONFIG] Reloaded prompt file: %s (%d templates)", absPath, len(keys))
	return nil
}

// promptFileSources lists every configured template file as scope, kind, path
func (c *Config) promptFileSources() [][3]string {
	var sources [][3]string
	add := func(scope string, files map[string]string) {
		for _, kind := range slices.Sorted(maps.Keys(files)) {
			if files[kind] != "" {
				sources = append(sources, [3]string{scope, kind, files[kind]})
			}
		}
	}
	add(GlobalScope, c.AI.Templates.Files)
	add(OperationJobAd, c.AI.JobAd.Templates.Files)
	add(OperationInterview, c.AI.Interview.Templates.Files)
	add(OperationSuggest, c.AI.Suggest.Templates.Files)
	return sources
}

// loadPromptsFromFiles loads custom prompt templates from the configured files
func (c *Config) loadPromptsFromFiles() (*TemplateStore, error) {
	log.Println("[CONFIG] Starting custom prompt loading from files")

	store := NewTemplateStore()
	for _, src := range c.promptFileSources() {
		scope, kind, path := src[0], src[1], src[2]
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for %s %s prompt file '%s': %w", scope, kind, path, err)
		}
		content, err := readPromptFile(absPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s %s prompt: %w", scope, kind, err)
		}
		store.Set(scope, kind, absPath, content)
		log.Printf("[CONFIG] Successfully loaded %s %s prompt from file: %s (%d characters)",
			scope, kind, absPath, len(content))
	}

	if store.Len() == 0 {
		log.Println("[CONFIG] No custom prompts loaded - using built-in defaults")
	} else {
		log.Printf("[CONFIG] Total custom prompts loaded: %d", store.Len())
	}
	return store, nil
}

// readPromptFile reads and trims a prompt file, rejecting empty content
func readPromptFile(absPath string) (string, error) {
	content, err := os.ReadFile(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt file '%s': %w", absPath, err)
	}
	trimmed := strings.TrimSpace(string(content))
	if trimmed == "" {
		return "", fmt.Errorf("prompt file '%s' is empty", absPath)
	}
	return trimmed, nil
}

// validatePromptFiles validates that prompt files exist before loading
func (c *Config) validatePromptFiles() error {
	var validationErrors []string

	for _, src := range c.promptFileSources() {
		scope, kind, path := src[0], src[1], src[2]
		absPath, err := filepath.Abs(path)
		if err != nil {
			validationErrors = append(validationErrors, fmt.Sprintf("invalid path for %s %s prompt: %s", scope, kind, path))
			continue
		}
		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			validationErrors = append(validationErrors, fmt.Sprintf("%s %s prompt file not found: %s", scope, kind, absPath))
		}
	}

	if len(validationErrors) > 0 {
		return fmt.Errorf("prompt file validation failed:\n%s", strings.Join(validationErrors, "\n"))
	}

	return nil
}
