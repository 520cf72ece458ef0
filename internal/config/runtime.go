package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
)

// Runtime is a hot-reloadable JSON settings file that can be edited while
// a run is in progress. Only keys present in the defaults are recognised;
// anything else in the file is ignored. Call Reload between waves of work
// to pick up edits.
type Runtime struct {
	path string

	mu     sync.Mutex
	fields []string
	values map[string]any
}

// NewRuntime creates a Runtime backed by the file at path. The file is
// read if it exists, then written back so the operator always has a
// complete, editable copy of the current settings.
func NewRuntime(path string, defaults map[string]any) (*Runtime, error) {
	fields := make([]string, 0, len(defaults))
	values := make(map[string]any, len(defaults))
	for k, v := range defaults {
		fields = append(fields, k)
		values[k] = v
	}
	sort.Strings(fields)

	r := &Runtime{path: path, fields: fields, values: values}
	if _, err := os.Stat(path); err == nil {
		r.Reload()
	}
	if err := r.Save(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads the JSON file and returns a "key: old -> new" string
// for every recognised key whose value changed. Read errors leave the
// current values untouched and return nil.
func (r *Runtime) Reload() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil
	}
	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil
	}

	var changed []string
	for _, key := range r.fields {
		raw, ok := parsed[key]
		if !ok {
			continue
		}
		old := r.values[key]
		if fmt.Sprint(old) != fmt.Sprint(raw) {
			r.values[key] = raw
			changed = append(changed, fmt.Sprintf("%s: %v -> %v", key, old, raw))
		}
	}
	return changed
}

// Save writes the current values back to the JSON file.
func (r *Runtime) Save() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(r.values, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(r.path, append(data, '\n'), 0644)
}

// Int returns the value for key as an int. JSON numbers arrive as
// float64 and are truncated.
func (r *Runtime) Int(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch v := r.values[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// Float returns the value for key as a float64.
func (r *Runtime) Float(key string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch v := r.values[key].(type) {
	case int:
		return float64(v)
	case float64:
		return v
	}
	return 0
}

// String returns the value for key as a string.
func (r *Runtime) String(key string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.values[key].(string); ok {
		return v
	}
	return ""
}

// Bool returns the value for key as a bool.
func (r *Runtime) Bool(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, _ := r.values[key].(bool)
	return v
}
