package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifySystemPrompt(t *testing.T) {
	assert.Contains(t, ClassifySystemPrompt, "number_theory")
	assert.Contains(t, ClassifySystemPrompt, "JSON")
}

func TestLabelSystemPrompt(t *testing.T) {
	assert.Contains(t, LabelSystemPrompt, "from_text")
	assert.Contains(t, LabelSystemPrompt, "from_solution")
	assert.Contains(t, LabelSystemPrompt, "reasoning_shape")
}

func TestUserPrompt(t *testing.T) {
	p := UserPrompt("Find x.", "x = 1\nprint(x)")
	assert.Contains(t, p, "Problem:\nFind x.")
	assert.Contains(t, p, "```python")
	assert.Contains(t, p, "print(x)")
}

func TestUserPromptWithoutSolution(t *testing.T) {
	p := UserPrompt("Find x.", "")
	assert.Equal(t, "Problem:\nFind x.", p)
	assert.NotContains(t, p, "```")
}

func TestUserPromptTruncatesLongSolution(t *testing.T) {
	long := strings.Repeat("x = 1\n", 3000)
	p := UserPrompt("Find x.", long)
	assert.Less(t, len(p), len(long))
	assert.Contains(t, p, "truncated")
}

func TestLoadGuidanceFrom(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "MATHPIPE.md")
	require.NoError(t, os.WriteFile(path, []byte("# Conventions\nLabel carefully."), 0644))

	g, err := LoadGuidanceFrom(path)
	require.NoError(t, err)
	assert.Contains(t, g.Content, "Conventions")
	assert.Equal(t, []string{path}, g.Sources)
}

func TestLoadGuidanceFromMissing(t *testing.T) {
	_, err := LoadGuidanceFrom("/nonexistent/MATHPIPE.md")
	assert.Error(t, err)
}

func TestGuidanceSystemContext(t *testing.T) {
	g := &Guidance{Content: "Prefer exact_value."}
	ctx := g.SystemContext()
	assert.Contains(t, ctx, "dataset conventions")
	assert.Contains(t, ctx, "Prefer exact_value.")

	assert.Empty(t, (&Guidance{}).SystemContext())
}

func TestGuidanceTryLoadJoins(t *testing.T) {
	dir := t.TempDir()
	f1 := filepath.Join(dir, "a.md")
	f2 := filepath.Join(dir, "b.md")
	require.NoError(t, os.WriteFile(f1, []byte("First"), 0644))
	require.NoError(t, os.WriteFile(f2, []byte("Second"), 0644))

	g := &Guidance{}
	g.tryLoad(f1)
	g.tryLoad(f2)
	assert.Contains(t, g.Content, "First")
	assert.Contains(t, g.Content, "Second")
	assert.Contains(t, g.Content, "---")
	assert.Len(t, g.Sources, 2)
}

func TestGuidanceLoadDirSkipsNonMarkdown(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "geometry.md"), []byte("Angles in degrees"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("Ignored"), 0644))

	g := &Guidance{}
	g.loadDir(dir)
	assert.Contains(t, g.Content, "Angles in degrees")
	assert.NotContains(t, g.Content, "Ignored")
	assert.True(t, g.HasContent())
}
