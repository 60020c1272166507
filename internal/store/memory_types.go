package store

import "context"

// MemoryType is the closed enum of memory kinds. An unrecognized value
// coming from a tool call is coerced to MemoryTypeInsight rather than
// rejected, per the memory subsystem's invariant that type is advisory
// classification, not a validation gate.
type MemoryType string

const (
	MemoryTypeInsight   MemoryType = "insight"
	MemoryTypeDecision  MemoryType = "decision"
	MemoryTypePattern   MemoryType = "pattern"
	MemoryTypeGotcha    MemoryType = "gotcha"
	MemoryTypeTodo      MemoryType = "todo"
	MemoryTypePreference MemoryType = "preference"
)

// NormalizeMemoryType coerces any string to a known MemoryType, defaulting
// unknown values to MemoryTypeInsight.
func NormalizeMemoryType(s string) MemoryType {
	switch MemoryType(s) {
	case MemoryTypeDecision, MemoryTypePattern, MemoryTypeGotcha, MemoryTypeTodo, MemoryTypePreference:
		return MemoryType(s)
	default:
		return MemoryTypeInsight
	}
}

// Memory is a durable, freeform note a tool caller asks to keep across
// sessions: an insight, a decision and its rationale, a gotcha worth
// remembering, and so on.
type Memory struct {
	ID             string
	ProjectID      string
	Title          string
	Content        string
	Type           MemoryType
	Tags           []string
	Files          []string
	Importance     float64 // [0, 1]
	CreatedAt      int64
	UpdatedAt      int64
	LastAccessedAt int64
	AccessCount    int
	Vector         []float32
	Distance       float32
	Relevance      float32 // populated by remember/remember_multi
}

// MemoryRelationshipType classifies how two memories relate.
type MemoryRelationshipType string

const (
	MemoryRelatesTo   MemoryRelationshipType = "relates_to"
	MemorySupersedes  MemoryRelationshipType = "supersedes"
	MemoryContradicts MemoryRelationshipType = "contradicts"
	MemoryElaborates  MemoryRelationshipType = "elaborates"
)

// MemoryRelationship is a directed edge between two memories.
type MemoryRelationship struct {
	ID          string
	ProjectID   string
	FromID      string
	ToID        string
	Type        MemoryRelationshipType
	CreatedAt   int64
}

// MemoryStats summarizes the memory store for a project.
type MemoryStats struct {
	TotalCount      int
	CountByType     map[MemoryType]int
	AverageImportance float64
	OldestCreatedAt int64
	NewestCreatedAt int64
}

// MemoryStore persists memories and their relationships, and supports
// nearest-neighbor search over memory vectors plus tag/text filtering.
type MemoryStore interface {
	SaveMemory(ctx context.Context, m *Memory) error
	GetMemory(ctx context.Context, id string) (*Memory, error)
	UpdateMemory(ctx context.Context, m *Memory) error
	DeleteMemory(ctx context.Context, id string) error
	DeleteMemoriesMatching(ctx context.Context, projectID string, ids []string) (int, error)
	TouchMemory(ctx context.Context, id string, accessedAt int64) error

	ListMemories(ctx context.Context, projectID string, limit int) ([]*Memory, error)
	SearchMemoriesByVector(ctx context.Context, projectID string, embedding []float32, k int) ([]*Memory, error)
	FilterMemoriesByTags(ctx context.Context, projectID string, tags []string) ([]*Memory, error)
	FilterMemoriesByFile(ctx context.Context, projectID string, file string) ([]*Memory, error)

	SaveRelationship(ctx context.Context, rel *MemoryRelationship) error
	GetMemoryRelationships(ctx context.Context, memoryID string) ([]*MemoryRelationship, error)
	GetRelatedMemories(ctx context.Context, memoryID string) ([]*Memory, error)

	Stats(ctx context.Context, projectID string) (*MemoryStats, error)
	ClearAll(ctx context.Context, projectID string) (int, error)
}
