// Package prompts serves the embedded LLM prompt templates. Each JSON file
// maps prompt keys to template strings with {{.Var}} placeholders.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

//go:embed *.json
var promptFiles embed.FS

var (
	cacheMu sync.RWMutex
	cache   = map[string]map[string]string{}
)

// Get returns the template stored under key in the named file. The name is
// the bare filename, e.g. "extract.json".
func Get(filename, key string) (string, error) {
	templates, err := load(filename)
	if err != nil {
		return "", err
	}
	template, ok := templates[key]
	if !ok {
		return "", fmt.Errorf("prompt key %q not found in %s", key, filename)
	}
	return template, nil
}

// MustGet is Get for prompts the binary cannot run without; a missing one
// is a packaging bug, so it panics.
func MustGet(filename, key string) string {
	template, err := Get(filename, key)
	if err != nil {
		panic(fmt.Sprintf("failed to load prompt: %v", err))
	}
	return template
}

// Format substitutes {{.Key}} placeholders with the given values. Unknown
// placeholders are left in place so missing data is visible in the prompt.
func Format(template string, data map[string]string) string {
	for key, value := range data {
		template = strings.ReplaceAll(template, "{{."+key+"}}", value)
	}
	return template
}

// List returns the sorted prompt keys available in a file.
func List(filename string) ([]string, error) {
	templates, err := load(filename)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(templates))
	for key := range templates {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// ClearCache drops parsed files so tests can exercise loading.
func ClearCache() {
	cacheMu.Lock()
	cache = map[string]map[string]string{}
	cacheMu.Unlock()
}

func load(filename string) (map[string]string, error) {
	cacheMu.RLock()
	templates, ok := cache[filename]
	cacheMu.RUnlock()
	if ok {
		return templates, nil
	}

	data, err := promptFiles.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", filename, err)
	}
	if err := json.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", filename, err)
	}

	cacheMu.Lock()
	cache[filename] = templates
	cacheMu.Unlock()
	return templates, nil
}
