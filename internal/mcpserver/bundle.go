package mcpserver

import (
	"github.com/sourcelens/sourcelens/internal/embed"
	"github.com/sourcelens/sourcelens/internal/memory"
	"github.com/sourcelens/sourcelens/internal/search"
	"github.com/sourcelens/sourcelens/internal/store"
)

// Bundle is everything one project's tool calls need: the search engine,
// metadata store, and the optional graph/memory subsystems. The HTTP
// multiplexer holds one Bundle per "/org/repo" path; the stdio server holds
// exactly one Bundle for the project it was started in.
type Bundle struct {
	ProjectID string
	RootPath  string

	Engine   search.SearchEngine
	Metadata store.MetadataStore
	Embedder embed.Embedder

	// Graph is nil when GraphRAG is disabled for this project.
	Graph      store.GraphStore
	GraphEmbed embed.Embedder

	// Memory is nil when no memory store is configured for this project.
	Memory *memory.Manager
}

// NewBundle wires a Bundle from already-constructed subsystem handles. It
// does not open any store itself: callers (the CLI's serve command, or the
// HTTP multiplexer's lazy per-repo constructor) own that lifecycle.
func NewBundle(projectID, rootPath string, engine search.SearchEngine, metadata store.MetadataStore, embedder embed.Embedder, graphStore store.GraphStore, memMgr *memory.Manager) *Bundle {
	return &Bundle{
		ProjectID: projectID,
		RootPath:  rootPath,
		Engine:    engine,
		Metadata:  metadata,
		Embedder:  embedder,
		Graph:     graphStore,
		Memory:    memMgr,
	}
}
