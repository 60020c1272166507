// Package ignore combines .gitignore and .noindex rules with a hard-coded
// baseline exclude list into a single path-matching engine.
package ignore

import (
	"os"
	"path/filepath"

	"github.com/sourcelens/sourcelens/internal/gitignore"
)

// baselineDirs are always excluded, regardless of .gitignore content.
var baselineDirs = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
	"**/target/**",
	"**/.venv/**",
}

// Engine matches paths against .gitignore, .noindex, and the baseline list.
type Engine struct {
	matcher *gitignore.Matcher
}

// New creates an Engine seeded with the baseline excludes only.
func New() *Engine {
	m := gitignore.New()
	for _, p := range baselineDirs {
		m.AddPattern(p)
	}
	return &Engine{matcher: m}
}

// LoadDir reads .gitignore and .noindex from dir, if present, scoping their
// patterns to baseRel (the directory's path relative to the project root).
func (e *Engine) LoadDir(dir, baseRel string) error {
	for _, name := range []string{".gitignore", ".noindex"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := e.matcher.AddFromFile(path, baseRel); err != nil {
			return err
		}
	}
	return nil
}

// AddPattern adds an extra exclude pattern, e.g. from config.
func (e *Engine) AddPattern(pattern string) {
	e.matcher.AddPattern(pattern)
}

// Ignored reports whether the given project-relative path should be skipped.
func (e *Engine) Ignored(relPath string, isDir bool) bool {
	return e.matcher.Match(relPath, isDir)
}
