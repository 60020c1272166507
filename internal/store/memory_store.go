package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const memoryColumns = `id, project_id, title, content, type, tags, files, importance, created_at, updated_at, last_accessed_at, access_count, embedding`

func scanMemory(row interface{ Scan(...any) error }) (*Memory, error) {
	var m Memory
	var typ, tagsJSON, filesJSON string
	var embedding []byte
	if err := row.Scan(&m.ID, &m.ProjectID, &m.Title, &m.Content, &typ, &tagsJSON, &filesJSON, &m.Importance,
		&m.CreatedAt, &m.UpdatedAt, &m.LastAccessedAt, &m.AccessCount, &embedding); err != nil {
		return nil, err
	}
	m.Type = MemoryType(typ)
	_ = json.Unmarshal([]byte(tagsJSON), &m.Tags)
	_ = json.Unmarshal([]byte(filesJSON), &m.Files)
	if len(embedding) > 0 {
		m.Vector = decodeFloat32s(embedding)
	}
	return &m, nil
}

func (s *SQLiteStore) SaveMemory(ctx context.Context, m *Memory) error {
	tagsJSON, err := json.Marshal(m.Tags)
	if err != nil {
		return err
	}
	filesJSON, err := json.Marshal(m.Files)
	if err != nil {
		return err
	}
	var embedding []byte
	if m.Vector != nil {
		embedding = encodeFloat32s(m.Vector)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memories (id, project_id, title, content, type, tags, files, importance, created_at, updated_at, last_accessed_at, access_count, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ProjectID, m.Title, m.Content, string(m.Type), string(tagsJSON), string(filesJSON),
		m.Importance, m.CreatedAt, m.UpdatedAt, m.LastAccessedAt, m.AccessCount, embedding)
	return err
}

func (s *SQLiteStore) GetMemory(ctx context.Context, id string) (*Memory, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM memories WHERE id=?`, memoryColumns), id)
	return scanMemory(row)
}

func (s *SQLiteStore) UpdateMemory(ctx context.Context, m *Memory) error {
	tagsJSON, err := json.Marshal(m.Tags)
	if err != nil {
		return err
	}
	filesJSON, err := json.Marshal(m.Files)
	if err != nil {
		return err
	}
	var embedding []byte
	if m.Vector != nil {
		embedding = encodeFloat32s(m.Vector)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE memories SET title=?, content=?, type=?, tags=?, files=?, importance=?, updated_at=?, embedding=?
		WHERE id=?`,
		m.Title, m.Content, string(m.Type), string(tagsJSON), string(filesJSON), m.Importance, m.UpdatedAt, embedding, m.ID)
	return err
}

func (s *SQLiteStore) DeleteMemory(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_relationships WHERE from_id=? OR to_id=?`, id, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM memories WHERE id=?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) DeleteMemoriesMatching(ctx context.Context, projectID string, ids []string) (int, error) {
	count := 0
	for _, id := range ids {
		if err := s.DeleteMemory(ctx, id); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (s *SQLiteStore) TouchMemory(ctx context.Context, id string, accessedAt int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE memories SET last_accessed_at=?, access_count=access_count+1 WHERE id=?`, accessedAt, id)
	return err
}

func (s *SQLiteStore) ListMemories(ctx context.Context, projectID string, limit int) ([]*Memory, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM memories WHERE project_id=? ORDER BY importance DESC LIMIT ?`, memoryColumns), projectID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SearchMemoriesByVector ranks memories by cosine distance to embedding.
// Memory counts stay small enough (hundreds, not millions) that a brute-force
// scan is simpler and fast enough; no separate ANN index is stood up for it.
func (s *SQLiteStore) SearchMemoriesByVector(ctx context.Context, projectID string, embedding []float32, k int) ([]*Memory, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM memories WHERE project_id=? AND embedding IS NOT NULL`, memoryColumns), projectID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		m.Distance = cosineDistance(embedding, m.Vector)
		m.Relevance = 1 - m.Distance
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (s *SQLiteStore) FilterMemoriesByTags(ctx context.Context, projectID string, tags []string) ([]*Memory, error) {
	all, err := s.ListMemories(ctx, projectID, 10000)
	if err != nil {
		return nil, err
	}
	var out []*Memory
	for _, m := range all {
		if hasAnyTag(m.Tags, tags) {
			out = append(out, m)
		}
	}
	return out, nil
}

func hasAnyTag(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, t := range have {
		set[strings.ToLower(t)] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[strings.ToLower(w)]; ok {
			return true
		}
	}
	return false
}

func (s *SQLiteStore) FilterMemoriesByFile(ctx context.Context, projectID string, file string) ([]*Memory, error) {
	all, err := s.ListMemories(ctx, projectID, 10000)
	if err != nil {
		return nil, err
	}
	var out []*Memory
	for _, m := range all {
		for _, f := range m.Files {
			if f == file {
				out = append(out, m)
				break
			}
		}
	}
	return out, nil
}

func (s *SQLiteStore) SaveRelationship(ctx context.Context, rel *MemoryRelationship) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_relationships (id, project_id, from_id, to_id, type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rel.ID, rel.ProjectID, rel.FromID, rel.ToID, string(rel.Type), rel.CreatedAt)
	return err
}

func (s *SQLiteStore) GetMemoryRelationships(ctx context.Context, memoryID string) ([]*MemoryRelationship, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, from_id, to_id, type, created_at FROM memory_relationships WHERE from_id=? OR to_id=?`, memoryID, memoryID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*MemoryRelationship
	for rows.Next() {
		var r MemoryRelationship
		var typ string
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.FromID, &r.ToID, &typ, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Type = MemoryRelationshipType(typ)
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetRelatedMemories(ctx context.Context, memoryID string) ([]*Memory, error) {
	rels, err := s.GetMemoryRelationships(ctx, memoryID)
	if err != nil {
		return nil, err
	}
	var out []*Memory
	seen := make(map[string]struct{})
	for _, r := range rels {
		otherID := r.ToID
		if otherID == memoryID {
			otherID = r.FromID
		}
		if _, ok := seen[otherID]; ok {
			continue
		}
		seen[otherID] = struct{}{}
		m, err := s.GetMemory(ctx, otherID)
		if err == nil {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *SQLiteStore) Stats(ctx context.Context, projectID string) (*MemoryStats, error) {
	stats := &MemoryStats{CountByType: make(map[MemoryType]int)}
	rows, err := s.db.QueryContext(ctx, `SELECT type, importance, created_at FROM memories WHERE project_id=?`, projectID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var totalImportance float64
	for rows.Next() {
		var typ string
		var importance float64
		var createdAt int64
		if err := rows.Scan(&typ, &importance, &createdAt); err != nil {
			return nil, err
		}
		stats.TotalCount++
		stats.CountByType[MemoryType(typ)]++
		totalImportance += importance
		if stats.OldestCreatedAt == 0 || createdAt < stats.OldestCreatedAt {
			stats.OldestCreatedAt = createdAt
		}
		if createdAt > stats.NewestCreatedAt {
			stats.NewestCreatedAt = createdAt
		}
	}
	if stats.TotalCount > 0 {
		stats.AverageImportance = totalImportance / float64(stats.TotalCount)
	}
	return stats, rows.Err()
}

func (s *SQLiteStore) ClearAll(ctx context.Context, projectID string) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories WHERE project_id=?`, projectID).Scan(&count); err != nil {
		return 0, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_relationships WHERE project_id=?`, projectID); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM memories WHERE project_id=?`, projectID); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}
