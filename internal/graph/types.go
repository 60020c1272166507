// Package graph builds the code graph (GraphRAG): one node per source file,
// connected by deterministic import edges and, optionally, by LLM-detected
// architectural-pattern edges.
package graph

import "github.com/sourcelens/sourcelens/internal/store"

// SourceFile is the builder's input: one file's path, detected language, and
// content, plus the symbols its chunker plug-in already extracted.
type SourceFile struct {
	Path     string
	Language string
	Content  string
	Symbols  []*store.Symbol
}

// Import is one resolved or unresolved import statement found in a file.
type Import struct {
	// Raw is the import string exactly as written in source (e.g.
	// "../utils/format", "github.com/foo/bar", "crate::db::models").
	Raw string
	// ResolvedPath is the project-relative path the import resolves to (a
	// file, or for Go a package directory), or empty if the resolver could
	// not map it onto this project (e.g. a third-party package).
	ResolvedPath string
}

// ImportResolver extracts and resolves import statements for one language.
// Extraction and resolution are kept as one step because every supported
// language's import syntax already encodes enough of the resolution rule
// (relative path, package-root-relative path, or module name) that a
// separate extract/resolve split would just duplicate the per-language
// switch.
type ImportResolver interface {
	// Language is the chunker language tag this resolver handles.
	Language() string
	// Resolve returns every import statement found in content, with
	// ResolvedPath set where it maps onto knownPaths (the full set of
	// project-relative file paths being indexed).
	Resolve(path, content string, knownPaths map[string]struct{}) []Import
}
