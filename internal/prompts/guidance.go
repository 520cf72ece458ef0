package prompts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Guidance holds extra prompt context loaded from the working tree, for
// dataset-specific grading or labeling conventions.
type Guidance struct {
	Content string
	Sources []string
}

// LoadGuidance reads guidance files from standard locations and returns
// the combined content. Search order:
//  1. MATHPIPE.md (dataset root)
//  2. ~/.mathpipe/MATHPIPE.md (global)
//  3. .mathpipe/prompts/*.md (per-dataset overrides)
func LoadGuidance() *Guidance {
	g := &Guidance{}
	g.tryLoad("MATHPIPE.md")
	if home, err := os.UserHomeDir(); err == nil {
		g.tryLoad(filepath.Join(home, ".mathpipe", "MATHPIPE.md"))
	}
	g.loadDir(filepath.Join(".mathpipe", "prompts"))
	return g
}

// LoadGuidanceFrom reads guidance from a specific path.
func LoadGuidanceFrom(path string) (*Guidance, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read guidance file: %w", err)
	}
	return &Guidance{Content: string(data), Sources: []string{path}}, nil
}

func (g *Guidance) tryLoad(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	if g.Content != "" {
		g.Content += "\n\n---\n\n"
	}
	g.Content += string(data)
	g.Sources = append(g.Sources, path)
}

func (g *Guidance) loadDir(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		g.tryLoad(filepath.Join(dir, e.Name()))
	}
}

// SystemContext returns the combined content formatted for appending to
// a stage's system prompt. Returns "" when nothing was loaded.
func (g *Guidance) SystemContext() string {
	if g.Content == "" {
		return ""
	}
	return fmt.Sprintf("Additional dataset conventions:\n\n%s", g.Content)
}

// HasContent reports whether any guidance was loaded.
func (g *Guidance) HasContent() bool {
	return g.Content != ""
}
