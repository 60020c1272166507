package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sourcelens/sourcelens/internal/embed"
	"github.com/sourcelens/sourcelens/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestBuilder_Build_EmitsImportEdges(t *testing.T) {
	st := newTestStore(t)
	builder := NewBuilder(st, embed.NewFakeEmbedder(16), nil, "proj1")

	files := []SourceFile{
		{Path: "main.go", Language: "go", Content: "package main\n\nimport \"proj1/util\"\n\nfunc main() {}\n"},
		{Path: "util/util.go", Language: "go", Content: "package util\n\nfunc Helper() {}\n"},
	}

	ctx := context.Background()
	require.NoError(t, builder.Build(ctx, files, "abc123"))

	mainNodes, err := st.GetNodesByPath(ctx, "proj1", "main.go")
	require.NoError(t, err)
	require.Len(t, mainNodes, 1)

	rels, err := st.GetRelationships(ctx, mainNodes[0].ID)
	require.NoError(t, err)
	require.NotEmpty(t, rels)
	assert.Equal(t, store.RelationshipImports, rels[0].Type)
	assert.Equal(t, 1.0, rels[0].Confidence)

	meta, err := st.GetGraphRAGMetadata(ctx, "proj1")
	require.NoError(t, err)
	assert.Equal(t, "abc123", meta.LastCommitHash)
	assert.Equal(t, 2, meta.NodeCount)
}

func TestBuilder_Build_SkipsUnresolvedImports(t *testing.T) {
	st := newTestStore(t)
	builder := NewBuilder(st, embed.NewFakeEmbedder(16), nil, "proj1")

	files := []SourceFile{
		{Path: "main.go", Language: "go", Content: "package main\n\nimport \"fmt\"\n\nfunc main() { fmt.Println(\"hi\") }\n"},
	}

	ctx := context.Background()
	require.NoError(t, builder.Build(ctx, files, "abc123"))

	nodes, err := st.GetNodesByPath(ctx, "proj1", "main.go")
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	rels, err := st.GetRelationships(ctx, nodes[0].ID)
	require.NoError(t, err)
	assert.Empty(t, rels, "stdlib import has no project file to resolve to")
}

func TestBuilder_RebuildPaths_ReplacesStaleNode(t *testing.T) {
	st := newTestStore(t)
	builder := NewBuilder(st, embed.NewFakeEmbedder(16), nil, "proj1")
	ctx := context.Background()

	files := []SourceFile{
		{Path: "a.go", Language: "go", Content: "package a\n"},
	}
	require.NoError(t, builder.Build(ctx, files, "rev1"))

	before, err := st.GetNodesByPath(ctx, "proj1", "a.go")
	require.NoError(t, err)
	require.Len(t, before, 1)

	known := map[string]struct{}{"a.go": {}}
	require.NoError(t, builder.RebuildPaths(ctx, []SourceFile{
		{Path: "a.go", Language: "go", Content: "package a\n\nfunc Changed() {}\n"},
	}, known))

	after, err := st.GetNodesByPath(ctx, "proj1", "a.go")
	require.NoError(t, err)
	require.Len(t, after, 1, "rebuild should replace, not duplicate, the node at this path")
	assert.NotEqual(t, before[0].ID, after[0].ID)
}

type fakeDetector struct {
	calls int
}

func (f *fakeDetector) Detect(_ context.Context, source, target *store.CodeNode) (*DetectedPattern, error) {
	f.calls++
	if source.Path == "svc/factory.go" && target.Path == "svc/widget.go" {
		return &DetectedPattern{Type: store.RelationshipFactory, Confidence: 0.9, Reason: "constructs Widget"}, nil
	}
	return nil, nil
}

func TestBuilder_Build_AppliesDetectedPatternEdges(t *testing.T) {
	st := newTestStore(t)
	detector := &fakeDetector{}
	builder := NewBuilder(st, embed.NewFakeEmbedder(16), detector, "proj1")
	ctx := context.Background()

	files := []SourceFile{
		{Path: "svc/factory.go", Language: "go", Content: "package svc\n\nfunc NewWidget() *Widget { return &Widget{} }\n"},
		{Path: "svc/widget.go", Language: "go", Content: "package svc\n\ntype Widget struct{}\n"},
	}
	require.NoError(t, builder.Build(ctx, files, "rev1"))

	nodes, err := st.GetNodesByPath(ctx, "proj1", "svc/factory.go")
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	rels, err := st.GetRelationships(ctx, nodes[0].ID)
	require.NoError(t, err)
	require.NotEmpty(t, rels)
	assert.Equal(t, store.RelationshipFactory, rels[0].Type)
	assert.InDelta(t, 0.9, rels[0].Confidence, 0.0001)
}

func TestResolverFor_UnknownLanguageReturnsGeneric(t *testing.T) {
	r := ResolverFor("cobol")
	assert.Equal(t, "cobol", r.Language())
	assert.Nil(t, r.Resolve("x.cbl", "anything", nil))
}

func TestGoResolver_ResolvesImportToDirectory(t *testing.T) {
	r := GoResolver{}
	known := map[string]struct{}{
		"util/util.go": {},
		"main.go":      {},
	}
	imports := r.Resolve("main.go", "package main\n\nimport \"example.com/proj/util\"\n", known)
	require.Len(t, imports, 1)
	assert.Equal(t, "util", imports[0].ResolvedPath)
}
