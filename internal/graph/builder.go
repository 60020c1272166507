package graph

import (
	"context"
	"fmt"
	"path"
	"sort"

	"github.com/google/uuid"

	"github.com/sourcelens/sourcelens/internal/embed"
	"github.com/sourcelens/sourcelens/internal/store"
)

// maxSampleRunes bounds the content sample embedded per node, keeping the
// embedding call's input comparable in size to a single TextBlock.
const maxSampleRunes = 1500

// Builder constructs and persists the code graph for one project: one node
// per source file plus deterministic import edges, optionally enriched by
// an architectural-pattern detector.
type Builder struct {
	store     store.GraphStore
	embedder  embed.Embedder
	detector  PatternDetector
	projectID string
}

// PatternDetector optionally proposes architectural-pattern edges between
// two nodes that are not already connected by an import edge. Nil disables
// the step entirely.
type PatternDetector interface {
	Detect(ctx context.Context, source, target *store.CodeNode) (*DetectedPattern, error)
}

// DetectedPattern is one candidate architectural-pattern edge. Edges below
// the confidence floor are discarded by the builder, not by the detector,
// so detectors can be written without knowing the threshold.
type DetectedPattern struct {
	Type       store.RelationshipType
	Confidence float64
	Reason     string
}

// patternConfidenceFloor is the minimum confidence a PatternDetector result
// needs to be persisted as an edge.
const patternConfidenceFloor = 0.7

// patternEdgeWeight is the fixed weight assigned to every LLM-detected edge,
// distinguishing it from the deterministic weight 1.0 of import edges.
const patternEdgeWeight = 0.9

// NewBuilder creates a Builder. detector may be nil to skip the
// architectural-pattern step entirely (e.g. no OpenRouter key configured).
func NewBuilder(st store.GraphStore, embedder embed.Embedder, detector PatternDetector, projectID string) *Builder {
	return &Builder{store: st, embedder: embedder, detector: detector, projectID: projectID}
}

// Build walks files, emits one CodeNode per file, resolves import edges
// deterministically, and (if a detector is configured) proposes
// architectural-pattern edges between node pairs the import pass left
// unconnected. It persists the graph and updates the project's
// GraphRAGMetadata.
func (b *Builder) Build(ctx context.Context, files []SourceFile, commitHash string) error {
	knownPaths := make(map[string]struct{}, len(files))
	for _, f := range files {
		knownPaths[f.Path] = struct{}{}
	}

	nodes := make([]*store.CodeNode, 0, len(files))
	nodeByPath := make(map[string]*store.CodeNode, len(files))
	for _, f := range files {
		node := b.buildNode(ctx, f)
		nodes = append(nodes, node)
		nodeByPath[f.Path] = node
	}
	if err := b.store.SaveNodes(ctx, nodes); err != nil {
		return fmt.Errorf("saving graph nodes: %w", err)
	}

	var edges []*store.CodeRelationship
	connected := make(map[[2]string]bool)
	for _, f := range files {
		resolver := ResolverFor(f.Language)
		for _, imp := range resolver.Resolve(f.Path, f.Content, knownPaths) {
			if imp.ResolvedPath == "" || imp.ResolvedPath == f.Path {
				continue
			}
			target, ok := nodeByPath[imp.ResolvedPath]
			if !ok {
				// Go imports resolve to a package directory; link to its first file.
				for _, cand := range files {
					if path.Dir(cand.Path) == imp.ResolvedPath {
						target, ok = nodeByPath[cand.Path], true
						break
					}
				}
			}
			if !ok {
				continue
			}
			source := nodeByPath[f.Path]
			edges = append(edges, &store.CodeRelationship{
				ID:         uuid.NewString(),
				ProjectID:  b.projectID,
				SourceID:   source.ID,
				TargetID:   target.ID,
				Type:       store.RelationshipImports,
				Weight:     1.0,
				Confidence: 1.0,
				Reason:     imp.Raw,
			})
			connected[[2]string{source.ID, target.ID}] = true
		}
	}

	if b.detector != nil {
		patternEdges, err := b.detectPatterns(ctx, nodes, connected)
		if err != nil {
			return fmt.Errorf("detecting architectural patterns: %w", err)
		}
		edges = append(edges, patternEdges...)
	}

	if err := b.store.SaveRelationships(ctx, edges); err != nil {
		return fmt.Errorf("saving graph relationships: %w", err)
	}

	return b.store.SaveGraphRAGMetadata(ctx, &store.GraphRAGMetadata{
		ProjectID:      b.projectID,
		LastCommitHash: commitHash,
		NodeCount:      len(nodes),
		EdgeCount:      len(edges),
	})
}

// RebuildPaths re-derives nodes and outgoing import edges for a subset of
// changed files, for incremental updates after a watch event. It replaces
// prior nodes at those paths in place; edges targeting them from outside
// the changed set are resolved against the full known-path set passed in.
func (b *Builder) RebuildPaths(ctx context.Context, changed []SourceFile, allKnownPaths map[string]struct{}) error {
	for _, f := range changed {
		if err := b.store.DeleteNodesByPath(ctx, b.projectID, f.Path); err != nil {
			return fmt.Errorf("clearing stale graph node for %s: %w", f.Path, err)
		}
	}

	nodes := make([]*store.CodeNode, 0, len(changed))
	for _, f := range changed {
		nodes = append(nodes, b.buildNode(ctx, f))
	}
	if err := b.store.SaveNodes(ctx, nodes); err != nil {
		return fmt.Errorf("saving rebuilt graph nodes: %w", err)
	}

	var edges []*store.CodeRelationship
	for i, f := range changed {
		resolver := ResolverFor(f.Language)
		for _, imp := range resolver.Resolve(f.Path, f.Content, allKnownPaths) {
			if imp.ResolvedPath == "" || imp.ResolvedPath == f.Path {
				continue
			}
			targets, err := b.store.GetNodesByPath(ctx, b.projectID, imp.ResolvedPath)
			if err == nil && len(targets) == 0 {
				// Go imports resolve to a package directory; use its first file.
				dirFile := ""
				for p := range allKnownPaths {
					if path.Dir(p) == imp.ResolvedPath && (dirFile == "" || p < dirFile) {
						dirFile = p
					}
				}
				if dirFile != "" {
					targets, err = b.store.GetNodesByPath(ctx, b.projectID, dirFile)
				}
			}
			if err != nil || len(targets) == 0 {
				continue
			}
			edges = append(edges, &store.CodeRelationship{
				ID:         uuid.NewString(),
				ProjectID:  b.projectID,
				SourceID:   nodes[i].ID,
				TargetID:   targets[0].ID,
				Type:       store.RelationshipImports,
				Weight:     1.0,
				Confidence: 1.0,
				Reason:     imp.Raw,
			})
		}
	}
	return b.store.SaveRelationships(ctx, edges)
}

func (b *Builder) buildNode(ctx context.Context, f SourceFile) *store.CodeNode {
	functions := make([]*store.FunctionInfo, 0, len(f.Symbols))
	for _, sym := range f.Symbols {
		if sym.Type != store.SymbolTypeFunction && sym.Type != store.SymbolTypeMethod {
			continue
		}
		functions = append(functions, &store.FunctionInfo{
			Name:      sym.Name,
			StartLine: sym.StartLine,
			EndLine:   sym.EndLine,
			Signature: sym.Signature,
		})
	}

	node := &store.CodeNode{
		ID:        uuid.NewString(),
		ProjectID: b.projectID,
		Path:      f.Path,
		Language:  f.Language,
		Kind:      store.NodeKindFile,
		Name:      f.Path,
		Functions: functions,
		Sample:    sampleContent(f.Content, functions),
	}

	if b.embedder != nil {
		if vec, err := b.embedder.Embed(ctx, node.Sample); err == nil {
			node.Vector = vec
		}
	}
	return node
}

// sampleContent picks up to maxSampleRunes of content, biased toward the
// region around the file's densest cluster of functions rather than just
// the head, so embeddings reflect the file's most symbol-rich code.
func sampleContent(content string, functions []*store.FunctionInfo) string {
	runes := []rune(content)
	if len(runes) <= maxSampleRunes {
		return content
	}
	if len(functions) == 0 {
		return string(runes[:maxSampleRunes])
	}

	sorted := make([]*store.FunctionInfo, len(functions))
	copy(sorted, functions)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartLine < sorted[j].StartLine })
	mid := sorted[len(sorted)/2]

	lines := splitLinesKeep(content)
	startLine := mid.StartLine - 1
	if startLine < 0 {
		startLine = 0
	}
	if startLine >= len(lines) {
		startLine = 0
	}
	var b []rune
	for i := startLine; i < len(lines) && len(b) < maxSampleRunes; i++ {
		b = append(b, []rune(lines[i])...)
		b = append(b, '\n')
	}
	if len(b) > maxSampleRunes {
		b = b[:maxSampleRunes]
	}
	return string(b)
}

// sameDirOrSibling restricts the architectural-pattern scan to files that
// share a directory or sit in parent/child directories, since real
// pattern relationships (factory building an interface, observer
// registering a listener) almost always live near each other in the tree.
func sameDirOrSibling(a, b string) bool {
	da, db := path.Dir(a), path.Dir(b)
	if da == db {
		return true
	}
	return path.Dir(da) == db || path.Dir(db) == da
}

func splitLinesKeep(s string) []string {
	var lines []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

// maxPatternCandidates bounds how many node pairs get an LLM call per
// build, since an unbounded N^2 scan over a large project would make every
// rebuild proportional to one OpenRouter round trip per pair.
const maxPatternCandidates = 200

func (b *Builder) detectPatterns(ctx context.Context, nodes []*store.CodeNode, connected map[[2]string]bool) ([]*store.CodeRelationship, error) {
	var edges []*store.CodeRelationship
	checked := 0
	for i, source := range nodes {
		for j, target := range nodes {
			if i == j {
				continue
			}
			if connected[[2]string{source.ID, target.ID}] {
				continue
			}
			if !sameDirOrSibling(source.Path, target.Path) {
				continue
			}
			if checked >= maxPatternCandidates {
				return edges, nil
			}
			checked++
			result, err := b.detector.Detect(ctx, source, target)
			if err != nil {
				return nil, err
			}
			if result == nil || result.Confidence < patternConfidenceFloor {
				continue
			}
			edges = append(edges, &store.CodeRelationship{
				ID:         uuid.NewString(),
				ProjectID:  b.projectID,
				SourceID:   source.ID,
				TargetID:   target.ID,
				Type:       result.Type,
				Weight:     patternEdgeWeight,
				Confidence: result.Confidence,
				Reason:     result.Reason,
			})
		}
	}
	return edges, nil
}
