package graph

import (
	"path"
	"regexp"
	"strings"
)

var (
	goImportRe      = regexp.MustCompile(`(?m)^\s*(?:import\s+)?"([^"]+)"`)
	goImportBlockRe = regexp.MustCompile(`(?s)import\s*\(([^)]*)\)`)

	jsImportRe = regexp.MustCompile(`(?m)(?:import[^'"]*from\s*|import\s*|require\s*\(\s*)['"]([^'"]+)['"]`)

	pyImportRe = regexp.MustCompile(`(?m)^\s*(?:from\s+([.\w]+)\s+import|import\s+([.\w]+))`)

	rustUseRe = regexp.MustCompile(`(?m)^\s*use\s+([\w:]+(?:::\{[^}]*\})?)\s*;`)
)

// GoResolver resolves Go import paths onto project-relative package
// directories by matching the trailing path segment against the directories
// of known files; ResolvedPath is the directory, not a file in it.
type GoResolver struct{}

func (GoResolver) Language() string { return "go" }

func (GoResolver) Resolve(filePath, content string, knownPaths map[string]struct{}) []Import {
	var raws []string
	if block := goImportBlockRe.FindStringSubmatch(content); block != nil {
		for _, m := range goImportRe.FindAllStringSubmatch(block[1], -1) {
			raws = append(raws, m[1])
		}
	}
	for _, m := range goImportRe.FindAllStringSubmatch(content, -1) {
		raws = append(raws, m[1])
	}
	return resolveAgainstDirs(raws, knownPaths, dirOf(filePath))
}

// JSTSResolver resolves ES module / CommonJS import specifiers for
// JavaScript and TypeScript sources.
type JSTSResolver struct{}

func (JSTSResolver) Language() string { return "javascript" }

func (JSTSResolver) Resolve(filePath, content string, knownPaths map[string]struct{}) []Import {
	var raws []string
	for _, m := range jsImportRe.FindAllStringSubmatch(content, -1) {
		raws = append(raws, m[1])
	}
	return resolveRelativeOrBare(raws, knownPaths, dirOf(filePath), []string{".ts", ".tsx", ".js", ".jsx", "/index.ts", "/index.js"})
}

// PythonResolver resolves `import x.y` and `from x.y import z` statements.
type PythonResolver struct{}

func (PythonResolver) Language() string { return "python" }

func (PythonResolver) Resolve(filePath, content string, knownPaths map[string]struct{}) []Import {
	var raws []string
	for _, m := range pyImportRe.FindAllStringSubmatch(content, -1) {
		if m[1] != "" {
			raws = append(raws, m[1])
		} else if m[2] != "" {
			raws = append(raws, m[2])
		}
	}
	var out []Import
	for _, raw := range raws {
		modPath := strings.ReplaceAll(strings.TrimLeft(raw, "."), ".", "/")
		candidate := modPath + ".py"
		resolved := ""
		if _, ok := knownPaths[candidate]; ok {
			resolved = candidate
		} else if _, ok := knownPaths[modPath+"/__init__.py"]; ok {
			resolved = modPath + "/__init__.py"
		}
		out = append(out, Import{Raw: raw, ResolvedPath: resolved})
	}
	return out
}

// RustResolver resolves `use crate::...`/`use self::...`/`use super::...`
// paths onto project files; external crate uses are left unresolved.
type RustResolver struct{}

func (RustResolver) Language() string { return "rust" }

func (RustResolver) Resolve(filePath, content string, knownPaths map[string]struct{}) []Import {
	var out []Import
	for _, m := range rustUseRe.FindAllStringSubmatch(content, -1) {
		raw := m[1]
		if !strings.HasPrefix(raw, "crate::") && !strings.HasPrefix(raw, "self::") && !strings.HasPrefix(raw, "super::") {
			out = append(out, Import{Raw: raw})
			continue
		}
		rel := strings.TrimPrefix(raw, "crate::")
		rel = strings.TrimPrefix(rel, "self::")
		rel = strings.TrimPrefix(rel, "super::")
		rel = strings.SplitN(rel, "::", 2)[0]
		modPath := "src/" + rel + ".rs"
		resolved := ""
		if _, ok := knownPaths[modPath]; ok {
			resolved = modPath
		} else if _, ok := knownPaths["src/"+rel+"/mod.rs"]; ok {
			resolved = "src/" + rel + "/mod.rs"
		}
		out = append(out, Import{Raw: raw, ResolvedPath: resolved})
	}
	return out
}

// genericResolver is the fallback for languages without a dedicated
// resolver: it never resolves imports, so files in that language still get
// graph nodes but only ever gain edges from the architectural-pattern step.
type genericResolver struct{ lang string }

func (g genericResolver) Language() string { return g.lang }

func (genericResolver) Resolve(string, string, map[string]struct{}) []Import { return nil }

// ResolverFor returns the ImportResolver registered for lang, or a
// no-op generic resolver if none is registered.
func ResolverFor(lang string) ImportResolver {
	switch strings.ToLower(lang) {
	case "go":
		return GoResolver{}
	case "javascript", "typescript", "jsx", "tsx":
		return JSTSResolver{}
	case "python":
		return PythonResolver{}
	case "rust":
		return RustResolver{}
	default:
		return genericResolver{lang: lang}
	}
}

func dirOf(filePath string) string {
	d := path.Dir(filePath)
	if d == "." {
		return ""
	}
	return d
}

// resolveAgainstDirs resolves Go-style import paths by suffix-matching the
// last one or two segments against known directories, since full module
// path resolution would require parsing go.mod for every project indexed.
func resolveAgainstDirs(raws []string, knownPaths map[string]struct{}, _ string) []Import {
	dirs := make(map[string][]string)
	for p := range knownPaths {
		d := path.Dir(p)
		dirs[d] = append(dirs[d], p)
	}

	out := make([]Import, 0, len(raws))
	for _, raw := range raws {
		resolved := ""
		segs := strings.Split(raw, "/")
		last := segs[len(segs)-1]
		for d := range dirs {
			if d == last || strings.HasSuffix(d, "/"+last) {
				resolved = d
				break
			}
		}
		out = append(out, Import{Raw: raw, ResolvedPath: resolved})
	}
	return out
}

func resolveRelativeOrBare(raws []string, knownPaths map[string]struct{}, dir string, suffixes []string) []Import {
	out := make([]Import, 0, len(raws))
	for _, raw := range raws {
		resolved := ""
		if strings.HasPrefix(raw, ".") {
			joined := path.Clean(path.Join(dir, raw))
			for _, suf := range suffixes {
				candidate := joined + suf
				if strings.HasPrefix(suf, "/") {
					candidate = joined + suf
				}
				if _, ok := knownPaths[candidate]; ok {
					resolved = candidate
					break
				}
			}
			if resolved == "" {
				if _, ok := knownPaths[joined]; ok {
					resolved = joined
				}
			}
		}
		out = append(out, Import{Raw: raw, ResolvedPath: resolved})
	}
	return out
}
