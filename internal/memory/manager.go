package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sourcelens/sourcelens/internal/embed"
	"github.com/sourcelens/sourcelens/internal/store"
)

// Manager implements the memory subsystem's operations over a MemoryStore,
// embedding memory content with the dispatcher's text model the same way
// the indexer embeds TextBlocks.
type Manager struct {
	store     store.MemoryStore
	embedder  embed.Embedder
	projectID string
	now       func() time.Time
}

// NewManager creates a Manager scoped to one project.
func NewManager(st store.MemoryStore, embedder embed.Embedder, projectID string) *Manager {
	return &Manager{store: st, embedder: embedder, projectID: projectID, now: time.Now}
}

// MemorizeInput is the validated, tool-boundary-capped input to Memorize.
type MemorizeInput struct {
	Title      string
	Content    string
	Type       string
	Tags       []string
	Files      []string
	Importance float64
}

// Memorize validates, sanitizes, and persists a new memory, embedding its
// title+content with the text model so it can later be retrieved by
// Remember/RememberMulti.
func (m *Manager) Memorize(ctx context.Context, in MemorizeInput) (*store.Memory, error) {
	content := SanitizeContent(in.Content)
	title := SanitizeContent(in.Title)
	if err := ValidateTitle(title); err != nil {
		return nil, err
	}
	if err := ValidateContent(content); err != nil {
		return nil, err
	}

	now := m.now().Unix()
	mem := &store.Memory{
		ID:             uuid.NewString(),
		ProjectID:      m.projectID,
		Title:          title,
		Content:        content,
		Type:           store.NormalizeMemoryType(in.Type),
		Tags:           CapTags(in.Tags),
		Files:          CapFiles(in.Files),
		Importance:     ClampImportance(in.Importance),
		CreatedAt:      now,
		UpdatedAt:      now,
		LastAccessedAt: now,
		AccessCount:    0,
	}

	if m.embedder != nil {
		vec, err := m.embedder.Embed(ctx, title+"\n\n"+content)
		if err != nil {
			return nil, fmt.Errorf("embedding memory: %w", err)
		}
		mem.Vector = vec
	}

	if err := m.store.SaveMemory(ctx, mem); err != nil {
		return nil, err
	}
	return mem, nil
}

// Remember performs a single-query semantic search over memories, touching
// (bumping access count/last-accessed on) every memory returned.
func (m *Manager) Remember(ctx context.Context, query string, k int) ([]*store.Memory, error) {
	if m.embedder == nil {
		return nil, fmt.Errorf("memory: no embedder configured")
	}
	vec, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	results, err := m.store.SearchMemoriesByVector(ctx, m.projectID, vec, k)
	if err != nil {
		return nil, err
	}
	m.touchAll(ctx, results)
	return results, nil
}

// RememberMulti fuses several queries by max-relevance: a memory's final
// relevance is the highest relevance it achieved across any single query,
// generalizing search.RRFFusion's per-source aggregation into a per-query
// maximum instead of a reciprocal-rank sum, since memory relevance (unlike
// BM25/vector rank fusion) has no meaningful notion of complementary ranks
// across independent queries.
func (m *Manager) RememberMulti(ctx context.Context, queries []string, k int) ([]*store.Memory, error) {
	if m.embedder == nil {
		return nil, fmt.Errorf("memory: no embedder configured")
	}
	best := make(map[string]*store.Memory)
	for _, q := range queries {
		vec, err := m.embedder.Embed(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("embedding query %q: %w", q, err)
		}
		results, err := m.store.SearchMemoriesByVector(ctx, m.projectID, vec, k)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			if existing, ok := best[r.ID]; !ok || r.Relevance > existing.Relevance {
				best[r.ID] = r
			}
		}
	}

	out := make([]*store.Memory, 0, len(best))
	for _, mem := range best {
		out = append(out, mem)
	}
	sortByRelevanceDesc(out)
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	m.touchAll(ctx, out)
	return out, nil
}

func sortByRelevanceDesc(mems []*store.Memory) {
	for i := 1; i < len(mems); i++ {
		for j := i; j > 0 && mems[j].Relevance > mems[j-1].Relevance; j-- {
			mems[j], mems[j-1] = mems[j-1], mems[j]
		}
	}
}

func (m *Manager) touchAll(ctx context.Context, mems []*store.Memory) {
	now := m.now().Unix()
	for _, mem := range mems {
		_ = m.store.TouchMemory(ctx, mem.ID, now)
	}
}

// Forget deletes a single memory by ID.
func (m *Manager) Forget(ctx context.Context, id string) error {
	return m.store.DeleteMemory(ctx, id)
}

// ForgetMatching deletes every memory whose tags intersect the given set, or
// whose file list includes the given file, returning the count removed.
func (m *Manager) ForgetMatching(ctx context.Context, tags []string, file string) (int, error) {
	var matched []*store.Memory
	if len(tags) > 0 {
		byTag, err := m.store.FilterMemoriesByTags(ctx, m.projectID, tags)
		if err != nil {
			return 0, err
		}
		matched = append(matched, byTag...)
	}
	if file != "" {
		byFile, err := m.store.FilterMemoriesByFile(ctx, m.projectID, file)
		if err != nil {
			return 0, err
		}
		matched = append(matched, byFile...)
	}
	ids := dedupeIDs(matched)
	return m.store.DeleteMemoriesMatching(ctx, m.projectID, ids)
}

func dedupeIDs(mems []*store.Memory) []string {
	seen := make(map[string]struct{}, len(mems))
	out := make([]string, 0, len(mems))
	for _, m := range mems {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m.ID)
	}
	return out
}

// UpdateInput carries the mutable fields of an UpdateMemory call; a nil
// pointer field means "leave unchanged".
type UpdateInput struct {
	Title      *string
	Content    *string
	Tags       []string
	Files      []string
	Importance *float64
}

// UpdateMemory applies a partial update, re-embedding if title or content
// changed.
func (m *Manager) UpdateMemory(ctx context.Context, id string, in UpdateInput) (*store.Memory, error) {
	mem, err := m.store.GetMemory(ctx, id)
	if err != nil {
		return nil, err
	}

	reembed := false
	if in.Title != nil {
		title := SanitizeContent(*in.Title)
		if err := ValidateTitle(title); err != nil {
			return nil, err
		}
		mem.Title = title
		reembed = true
	}
	if in.Content != nil {
		content := SanitizeContent(*in.Content)
		if err := ValidateContent(content); err != nil {
			return nil, err
		}
		mem.Content = content
		reembed = true
	}
	if in.Tags != nil {
		mem.Tags = CapTags(in.Tags)
	}
	if in.Files != nil {
		mem.Files = CapFiles(in.Files)
	}
	if in.Importance != nil {
		mem.Importance = ClampImportance(*in.Importance)
	}
	mem.UpdatedAt = m.now().Unix()

	if reembed && m.embedder != nil {
		vec, err := m.embedder.Embed(ctx, mem.Title+"\n\n"+mem.Content)
		if err != nil {
			return nil, fmt.Errorf("re-embedding memory: %w", err)
		}
		mem.Vector = vec
	}

	if err := m.store.UpdateMemory(ctx, mem); err != nil {
		return nil, err
	}
	return mem, nil
}

// Relate records a directed relationship between two memories.
func (m *Manager) Relate(ctx context.Context, fromID, toID string, relType store.MemoryRelationshipType) error {
	rel := &store.MemoryRelationship{
		ID:        uuid.NewString(),
		ProjectID: m.projectID,
		FromID:    fromID,
		ToID:      toID,
		Type:      relType,
		CreatedAt: m.now().Unix(),
	}
	return m.store.SaveRelationship(ctx, rel)
}

// GetRelationships returns every relationship touching a memory.
func (m *Manager) GetRelationships(ctx context.Context, memoryID string) ([]*store.MemoryRelationship, error) {
	return m.store.GetMemoryRelationships(ctx, memoryID)
}

// GetRelatedMemories resolves relationships into the memories on their other
// end.
func (m *Manager) GetRelatedMemories(ctx context.Context, memoryID string) ([]*store.Memory, error) {
	return m.store.GetRelatedMemories(ctx, memoryID)
}

// Stats summarizes the memory store for this project.
func (m *Manager) Stats(ctx context.Context) (*store.MemoryStats, error) {
	return m.store.Stats(ctx, m.projectID)
}

// Cleanup removes memories whose importance*age-decayed score falls below
// threshold. Age decay is linear over maxAgeDays: a memory loses all
// standing once it is older than maxAgeDays and was never re-accessed.
func (m *Manager) Cleanup(ctx context.Context, threshold float64, maxAgeDays int) (int, error) {
	all, err := m.store.ListMemories(ctx, m.projectID, 1_000_000)
	if err != nil {
		return 0, err
	}
	now := m.now().Unix()
	maxAgeSeconds := int64(maxAgeDays) * 86400
	var toDelete []string
	for _, mem := range all {
		reference := mem.LastAccessedAt
		if reference == 0 {
			reference = mem.CreatedAt
		}
		age := now - reference
		if age < 0 {
			age = 0
		}
		ageFactor := 1.0
		if maxAgeSeconds > 0 {
			ageFactor = 1.0 - float64(age)/float64(maxAgeSeconds)
			if ageFactor < 0 {
				ageFactor = 0
			}
		}
		score := mem.Importance * ageFactor
		if score < threshold {
			toDelete = append(toDelete, mem.ID)
		}
	}
	return m.store.DeleteMemoriesMatching(ctx, m.projectID, toDelete)
}

// ClearAll removes every memory for this project, returning the count
// removed.
func (m *Manager) ClearAll(ctx context.Context) (int, error) {
	return m.store.ClearAll(ctx, m.projectID)
}
