package store

import "context"

// NodeKind classifies a CodeNode by what source construct it represents.
type NodeKind string

const (
	NodeKindFile     NodeKind = "file"
	NodeKindFunction NodeKind = "function"
	NodeKindType     NodeKind = "type"
)

// FunctionInfo summarizes one function or method defined by a CodeNode, used
// to rank which ~1500-char sample of a large file best represents it for
// embedding purposes (files with more/larger functions rank higher).
type FunctionInfo struct {
	Name      string
	StartLine int
	EndLine   int
	Signature string
}

// CodeNode is one vertex in the code graph: usually a file, occasionally a
// function or type when the language plug-in can resolve one independently
// of its enclosing file.
type CodeNode struct {
	ID        string
	ProjectID string
	Path      string
	Language  string
	Kind      NodeKind
	Name      string
	Functions []*FunctionInfo
	Sample    string // ~1500-char content sample the node's vector was built from
	Vector    []float32
	Distance  float32
	CreatedAt int64
	UpdatedAt int64
}

// RelationshipType classifies a CodeRelationship edge.
type RelationshipType string

const (
	// RelationshipImports is emitted deterministically by the per-language
	// import resolver: weight 1.0, confidence 1.0.
	RelationshipImports RelationshipType = "imports"

	// The following are only ever emitted by the optional LLM-based
	// architectural pattern pass, gated behind a confidence threshold.
	RelationshipFactory    RelationshipType = "factory"
	RelationshipObserver   RelationshipType = "observer"
	RelationshipDI         RelationshipType = "dependency_injection"
	RelationshipStrategy   RelationshipType = "strategy"
	RelationshipAdapter    RelationshipType = "adapter"
	RelationshipDecorator  RelationshipType = "decorator"
	RelationshipArchDep    RelationshipType = "architectural_dependency"
)

// CodeRelationship is one directed edge in the code graph.
type CodeRelationship struct {
	ID         string
	ProjectID  string
	SourceID   string
	TargetID   string
	Type       RelationshipType
	Weight     float64
	Confidence float64
	Reason     string // for LLM-detected edges: the model's one-line justification
	CreatedAt  int64
}

// GraphRAGMetadata tracks the last commit the graph was built from, so an
// incremental rebuild can diff against it instead of rescanning everything.
type GraphRAGMetadata struct {
	ProjectID      string
	LastCommitHash string
	NodeCount      int
	EdgeCount      int
	BuiltAt        int64
}

// GraphStore persists the code graph (nodes + edges) produced by the
// GraphRAG builder, and supports nearest-neighbor search over node vectors.
type GraphStore interface {
	SaveNodes(ctx context.Context, nodes []*CodeNode) error
	GetNode(ctx context.Context, id string) (*CodeNode, error)
	GetNodesByPath(ctx context.Context, projectID, path string) ([]*CodeNode, error)
	DeleteNodesByPath(ctx context.Context, projectID, path string) error // cascades to edges

	SaveRelationships(ctx context.Context, rels []*CodeRelationship) error
	GetRelationships(ctx context.Context, nodeID string) ([]*CodeRelationship, error)

	// SearchGraphNodes returns the k nodes whose vectors are nearest to
	// embedding, scoped to a project.
	SearchGraphNodes(ctx context.Context, projectID string, embedding []float32, k int) ([]*CodeNode, error)

	SaveGraphRAGMetadata(ctx context.Context, meta *GraphRAGMetadata) error
	GetGraphRAGMetadata(ctx context.Context, projectID string) (*GraphRAGMetadata, error)
}
