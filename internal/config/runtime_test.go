package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDefaults() map[string]any {
	return map[string]any{
		"max_inflight": 8,
		"temperature":  1.0,
		"effort":       "medium",
		"enabled":      true,
	}
}

func TestNewRuntimeWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runtime.json")
	rt, err := NewRuntime(path, testDefaults())
	require.NoError(t, err)

	assert.Equal(t, 8, rt.Int("max_inflight"))
	assert.Equal(t, 1.0, rt.Float("temperature"))
	assert.Equal(t, "medium", rt.String("effort"))
	assert.True(t, rt.Bool("enabled"))

	// The file exists and is editable by the operator.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "max_inflight")
}

func TestNewRuntimePicksUpExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runtime.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"max_inflight": 2, "unknown_key": 99}`), 0644))

	rt, err := NewRuntime(path, testDefaults())
	require.NoError(t, err)
	assert.Equal(t, 2, rt.Int("max_inflight"))
	// Unrecognised keys are ignored.
	assert.Zero(t, rt.Int("unknown_key"))
}

func TestReloadReportsChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runtime.json")
	rt, err := NewRuntime(path, testDefaults())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"max_inflight": 4, "effort": "high"}`), 0644))
	changed := rt.Reload()
	assert.Len(t, changed, 2)
	assert.Equal(t, 4, rt.Int("max_inflight"))
	assert.Equal(t, "high", rt.String("effort"))

	// No edits, no changes.
	assert.Empty(t, rt.Reload())
}

func TestReloadIgnoresBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runtime.json")
	rt, err := NewRuntime(path, testDefaults())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0644))
	assert.Empty(t, rt.Reload())
	assert.Equal(t, 8, rt.Int("max_inflight"))
}
