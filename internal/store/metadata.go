package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver (no CGO)
)

// SQLiteStore is the SQLite-backed implementation of MetadataStore,
// GraphStore and MemoryStore. One physical database file holds one table per
// spec block/graph/memory kind (code_blocks, text_blocks, document_blocks,
// graph_nodes, graph_edges, memories, memory_relationships) alongside the
// project/file/state tables, following the same single-writer WAL-mode
// connection pattern as SQLiteBM25Index.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

var _ MetadataStore = (*SQLiteStore)(nil)
var _ GraphStore = (*SQLiteStore)(nil)
var _ MemoryStore = (*SQLiteStore)(nil)

// SQLiteStoreConfig tunes connection-level behavior. The zero value is
// sensible defaults.
type SQLiteStoreConfig struct {
	CacheSizeKB int // negative sqlite cache_size pragma value; 0 uses -65536 (64MB)
}

// NewSQLiteStore opens (creating if necessary) the metadata database at path.
// An empty path opens an in-memory database, used by tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithConfig(path, SQLiteStoreConfig{})
}

// NewSQLiteStoreWithConfig opens the metadata database with explicit tuning.
func NewSQLiteStoreWithConfig(path string, cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	cacheKB := cfg.CacheSizeKB
	if cacheKB == 0 {
		cacheKB = -65536
	}
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA cache_size = %d", cacheKB),
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

const metadataSchema = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	name TEXT,
	root_path TEXT,
	project_type TEXT,
	chunk_count INTEGER DEFAULT 0,
	file_count INTEGER DEFAULT 0,
	indexed_at INTEGER,
	version TEXT
);

CREATE TABLE IF NOT EXISTS file_metadata (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	path TEXT NOT NULL,
	size INTEGER,
	mod_time INTEGER,
	content_hash TEXT,
	language TEXT,
	content_type TEXT,
	indexed_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_file_metadata_project_path ON file_metadata(project_id, path);

CREATE TABLE IF NOT EXISTS git_metadata (
	project_id TEXT PRIMARY KEY,
	last_commit_hash TEXT,
	branch TEXT,
	indexed_at INTEGER
);

CREATE TABLE IF NOT EXISTS code_blocks (
	id TEXT PRIMARY KEY,
	file_id TEXT NOT NULL,
	path TEXT NOT NULL,
	language TEXT,
	content TEXT,
	raw_content TEXT,
	context TEXT,
	symbols TEXT,
	start_line INTEGER,
	end_line INTEGER,
	hash TEXT,
	embedding BLOB,
	embedding_model TEXT,
	created_at INTEGER,
	updated_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_code_blocks_file ON code_blocks(file_id);

CREATE TABLE IF NOT EXISTS text_blocks (
	id TEXT PRIMARY KEY,
	file_id TEXT NOT NULL,
	path TEXT NOT NULL,
	content TEXT,
	start_line INTEGER,
	end_line INTEGER,
	hash TEXT,
	embedding BLOB,
	embedding_model TEXT,
	created_at INTEGER,
	updated_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_text_blocks_file ON text_blocks(file_id);

CREATE TABLE IF NOT EXISTS document_blocks (
	id TEXT PRIMARY KEY,
	file_id TEXT NOT NULL,
	path TEXT NOT NULL,
	title TEXT,
	content TEXT,
	context TEXT,
	level INTEGER,
	start_line INTEGER,
	end_line INTEGER,
	hash TEXT,
	embedding BLOB,
	embedding_model TEXT,
	created_at INTEGER,
	updated_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_document_blocks_file ON document_blocks(file_id);

CREATE TABLE IF NOT EXISTS graph_nodes (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	path TEXT NOT NULL,
	language TEXT,
	kind TEXT,
	name TEXT,
	functions TEXT,
	sample TEXT,
	embedding BLOB,
	created_at INTEGER,
	updated_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_graph_nodes_project_path ON graph_nodes(project_id, path);

CREATE TABLE IF NOT EXISTS graph_edges (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	source_id TEXT NOT NULL,
	target_id TEXT NOT NULL,
	type TEXT,
	weight REAL,
	confidence REAL,
	reason TEXT,
	created_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_graph_edges_source ON graph_edges(source_id);
CREATE INDEX IF NOT EXISTS idx_graph_edges_project ON graph_edges(project_id);

CREATE TABLE IF NOT EXISTS graphrag_metadata (
	project_id TEXT PRIMARY KEY,
	last_commit_hash TEXT,
	node_count INTEGER,
	edge_count INTEGER,
	built_at INTEGER
);

CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	title TEXT,
	content TEXT,
	type TEXT,
	tags TEXT,
	files TEXT,
	importance REAL,
	created_at INTEGER,
	updated_at INTEGER,
	last_accessed_at INTEGER,
	access_count INTEGER DEFAULT 0,
	embedding BLOB
);
CREATE INDEX IF NOT EXISTS idx_memories_project ON memories(project_id);

CREATE TABLE IF NOT EXISTS memory_relationships (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	from_id TEXT NOT NULL,
	to_id TEXT NOT NULL,
	type TEXT,
	created_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_memory_relationships_from ON memory_relationships(from_id);

CREATE TABLE IF NOT EXISTS state (
	key TEXT PRIMARY KEY,
	value TEXT
);
`

func (s *SQLiteStore) initSchema() error {
	if _, err := s.db.Exec(metadataSchema); err != nil {
		return err
	}
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		if _, err := s.db.Exec("INSERT INTO schema_version (version) VALUES (?)", CurrentSchemaVersion); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// ---- Project operations ----

func (s *SQLiteStore) SaveProject(ctx context.Context, p *Project) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, root_path, project_type, chunk_count, file_count, indexed_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, root_path=excluded.root_path, project_type=excluded.project_type,
			chunk_count=excluded.chunk_count, file_count=excluded.file_count,
			indexed_at=excluded.indexed_at, version=excluded.version`,
		p.ID, p.Name, p.RootPath, p.ProjectType, p.ChunkCount, p.FileCount, p.IndexedAt.Unix(), p.Version)
	return err
}

func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, root_path, project_type, chunk_count, file_count, indexed_at, version FROM projects WHERE id = ?`, id)
	var p Project
	var indexedAt int64
	if err := row.Scan(&p.ID, &p.Name, &p.RootPath, &p.ProjectType, &p.ChunkCount, &p.FileCount, &indexedAt, &p.Version); err != nil {
		return nil, err
	}
	p.IndexedAt = time.Unix(indexedAt, 0)
	return &p, nil
}

func (s *SQLiteStore) UpdateProjectStats(ctx context.Context, id string, fileCount, chunkCount int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE projects SET file_count=?, chunk_count=? WHERE id=?`, fileCount, chunkCount, id)
	return err
}

func (s *SQLiteStore) RefreshProjectStats(ctx context.Context, id string) error {
	var fileCount int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM file_metadata WHERE project_id=?`, id).Scan(&fileCount); err != nil {
		return err
	}
	var chunkCount int
	for _, tbl := range []string{"code_blocks", "text_blocks", "document_blocks"} {
		var n int
		q := fmt.Sprintf(`SELECT COUNT(*) FROM %s b JOIN file_metadata f ON b.file_id = f.id WHERE f.project_id = ?`, tbl)
		if err := s.db.QueryRowContext(ctx, q, id).Scan(&n); err != nil {
			return err
		}
		chunkCount += n
	}
	_, err := s.db.ExecContext(ctx, `UPDATE projects SET file_count=?, chunk_count=?, indexed_at=? WHERE id=?`,
		fileCount, chunkCount, time.Now().Unix(), id)
	return err
}

// ---- File operations ----

func (s *SQLiteStore) SaveFiles(ctx context.Context, files []*File) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO file_metadata (id, project_id, path, size, mod_time, content_hash, language, content_type, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			size=excluded.size, mod_time=excluded.mod_time, content_hash=excluded.content_hash,
			language=excluded.language, content_type=excluded.content_type, indexed_at=excluded.indexed_at`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, f := range files {
		if _, err := stmt.ExecContext(ctx, f.ID, f.ProjectID, f.Path, f.Size, f.ModTime.Unix(),
			f.ContentHash, f.Language, f.ContentType, f.IndexedAt.Unix()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func scanFile(row interface{ Scan(...any) error }) (*File, error) {
	var f File
	var modTime, indexedAt int64
	if err := row.Scan(&f.ID, &f.ProjectID, &f.Path, &f.Size, &modTime, &f.ContentHash, &f.Language, &f.ContentType, &indexedAt); err != nil {
		return nil, err
	}
	f.ModTime = time.Unix(modTime, 0)
	f.IndexedAt = time.Unix(indexedAt, 0)
	return &f, nil
}

func (s *SQLiteStore) GetFileByPath(ctx context.Context, projectID, path string) (*File, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, project_id, path, size, mod_time, content_hash, language, content_type, indexed_at FROM file_metadata WHERE project_id=? AND path=?`, projectID, path)
	return scanFile(row)
}

func (s *SQLiteStore) GetChangedFiles(ctx context.Context, projectID string, since time.Time) ([]*File, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, project_id, path, size, mod_time, content_hash, language, content_type, indexed_at FROM file_metadata WHERE project_id=? AND mod_time > ?`, projectID, since.Unix())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListFiles(ctx context.Context, projectID string, cursor string, limit int) ([]*File, string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, path, size, mod_time, content_hash, language, content_type, indexed_at
		FROM file_metadata WHERE project_id=? AND path > ? ORDER BY path LIMIT ?`, projectID, cursor, limit+1)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = rows.Close() }()
	var out []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	next := ""
	if len(out) > limit {
		next = out[limit-1].Path
		out = out[:limit]
	}
	return out, next, nil
}

func (s *SQLiteStore) GetFilePathsByProject(ctx context.Context, projectID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM file_metadata WHERE project_id=?`, projectID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetFilesForReconciliation(ctx context.Context, projectID string) (map[string]*File, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, project_id, path, size, mod_time, content_hash, language, content_type, indexed_at FROM file_metadata WHERE project_id=?`, projectID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := make(map[string]*File)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out[f.Path] = f
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListFilePathsUnder(ctx context.Context, projectID, dirPrefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM file_metadata WHERE project_id=? AND path LIKE ?`, projectID, dirPrefix+"%")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteFile(ctx context.Context, fileID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, tbl := range []string{"code_blocks", "text_blocks", "document_blocks"} {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE file_id=?`, tbl), fileID); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM file_metadata WHERE id=?`, fileID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) DeleteFilesByProject(ctx context.Context, projectID string) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM file_metadata WHERE project_id=?`, projectID)
	if err != nil {
		return err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	_ = rows.Close()
	for _, id := range ids {
		if err := s.DeleteFile(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// ---- Block (Chunk) operations ----
// Chunks are routed to one of code_blocks/text_blocks/document_blocks by
// ContentType. Since IDs are content-addressed (SHA256), a single ID is
// looked up across all three tables without ambiguity.

func (s *SQLiteStore) SaveChunks(ctx context.Context, chunks []*Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().Unix()
	for _, c := range chunks {
		kind := KindForContentType(c.ContentType)
		symbolsJSON, err := json.Marshal(c.Symbols)
		if err != nil {
			return err
		}
		switch kind {
		case BlockKindCode:
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO code_blocks (id, file_id, path, language, content, raw_content, context, symbols, start_line, end_line, hash, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET content=excluded.content, raw_content=excluded.raw_content,
					context=excluded.context, symbols=excluded.symbols, start_line=excluded.start_line,
					end_line=excluded.end_line, hash=excluded.hash, updated_at=excluded.updated_at`,
				c.ID, c.FileID, c.FilePath, c.Language, c.Content, c.RawContent, c.Context, string(symbolsJSON),
				c.StartLine, c.EndLine, contentHash(c.RawContent), now, now); err != nil {
				return err
			}
		case BlockKindDocument:
			block := ChunkToDocumentBlock(c)
			contextJSON, err := json.Marshal(block.Context)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO document_blocks (id, file_id, path, title, content, context, level, start_line, end_line, hash, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET title=excluded.title, content=excluded.content, context=excluded.context,
					level=excluded.level, start_line=excluded.start_line, end_line=excluded.end_line,
					hash=excluded.hash, updated_at=excluded.updated_at`,
				c.ID, c.FileID, c.FilePath, block.Title, c.Content, string(contextJSON), block.Level,
				c.StartLine, c.EndLine, block.Hash, now, now); err != nil {
				return err
			}
		default:
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO text_blocks (id, file_id, path, content, start_line, end_line, hash, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET content=excluded.content, start_line=excluded.start_line,
					end_line=excluded.end_line, hash=excluded.hash, updated_at=excluded.updated_at`,
				c.ID, c.FileID, c.FilePath, c.Content, c.StartLine, c.EndLine, contentHash(c.Content), now, now); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) getChunkFromTable(ctx context.Context, tbl, id string) (*Chunk, error) {
	switch tbl {
	case "code_blocks":
		row := s.db.QueryRowContext(ctx, `SELECT id, file_id, path, language, content, raw_content, context, symbols, start_line, end_line, created_at, updated_at FROM code_blocks WHERE id=?`, id)
		var c Chunk
		var symbolsJSON string
		var created, updated int64
		if err := row.Scan(&c.ID, &c.FileID, &c.FilePath, &c.Language, &c.Content, &c.RawContent, &c.Context, &symbolsJSON, &c.StartLine, &c.EndLine, &created, &updated); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(symbolsJSON), &c.Symbols)
		c.ContentType = ContentTypeCode
		c.CreatedAt, c.UpdatedAt = time.Unix(created, 0), time.Unix(updated, 0)
		return &c, nil
	case "document_blocks":
		row := s.db.QueryRowContext(ctx, `SELECT id, file_id, path, content, start_line, end_line, created_at, updated_at FROM document_blocks WHERE id=?`, id)
		var c Chunk
		var created, updated int64
		if err := row.Scan(&c.ID, &c.FileID, &c.FilePath, &c.Content, &c.StartLine, &c.EndLine, &created, &updated); err != nil {
			return nil, err
		}
		c.ContentType = ContentTypeMarkdown
		c.CreatedAt, c.UpdatedAt = time.Unix(created, 0), time.Unix(updated, 0)
		return &c, nil
	default:
		row := s.db.QueryRowContext(ctx, `SELECT id, file_id, path, content, start_line, end_line, created_at, updated_at FROM text_blocks WHERE id=?`, id)
		var c Chunk
		var created, updated int64
		if err := row.Scan(&c.ID, &c.FileID, &c.FilePath, &c.Content, &c.StartLine, &c.EndLine, &created, &updated); err != nil {
			return nil, err
		}
		c.ContentType = ContentTypeText
		c.CreatedAt, c.UpdatedAt = time.Unix(created, 0), time.Unix(updated, 0)
		return &c, nil
	}
}

func (s *SQLiteStore) GetChunk(ctx context.Context, id string) (*Chunk, error) {
	for _, tbl := range []string{"code_blocks", "text_blocks", "document_blocks"} {
		c, err := s.getChunkFromTable(ctx, tbl, id)
		if err == nil {
			return c, nil
		}
		if err != sql.ErrNoRows {
			return nil, err
		}
	}
	return nil, sql.ErrNoRows
}

func (s *SQLiteStore) GetChunks(ctx context.Context, ids []string) ([]*Chunk, error) {
	out := make([]*Chunk, 0, len(ids))
	for _, id := range ids {
		c, err := s.GetChunk(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *SQLiteStore) GetChunksByFile(ctx context.Context, fileID string) ([]*Chunk, error) {
	var out []*Chunk
	queries := map[string]string{
		"code_blocks":     `SELECT id, file_id, path, language, content, raw_content, context, symbols, start_line, end_line, created_at, updated_at FROM code_blocks WHERE file_id=?`,
		"text_blocks":     `SELECT id, file_id, path, content, start_line, end_line, created_at, updated_at FROM text_blocks WHERE file_id=?`,
		"document_blocks": `SELECT id, file_id, path, content, start_line, end_line, created_at, updated_at FROM document_blocks WHERE file_id=?`,
	}
	for tbl, q := range queries {
		rows, err := s.db.QueryContext(ctx, q, fileID)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var c Chunk
			var created, updated int64
			if tbl == "code_blocks" {
				var symbolsJSON string
				if err := rows.Scan(&c.ID, &c.FileID, &c.FilePath, &c.Language, &c.Content, &c.RawContent, &c.Context, &symbolsJSON, &c.StartLine, &c.EndLine, &created, &updated); err != nil {
					_ = rows.Close()
					return nil, err
				}
				_ = json.Unmarshal([]byte(symbolsJSON), &c.Symbols)
				c.ContentType = ContentTypeCode
			} else {
				if err := rows.Scan(&c.ID, &c.FileID, &c.FilePath, &c.Content, &c.StartLine, &c.EndLine, &created, &updated); err != nil {
					_ = rows.Close()
					return nil, err
				}
				if tbl == "document_blocks" {
					c.ContentType = ContentTypeMarkdown
				} else {
					c.ContentType = ContentTypeText
				}
			}
			c.CreatedAt, c.UpdatedAt = time.Unix(created, 0), time.Unix(updated, 0)
			out = append(out, &c)
		}
		_ = rows.Close()
	}
	return out, nil
}

func (s *SQLiteStore) DeleteChunks(ctx context.Context, ids []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, id := range ids {
		for _, tbl := range []string{"code_blocks", "text_blocks", "document_blocks"} {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id=?`, tbl), id); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) DeleteChunksByFile(ctx context.Context, fileID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, tbl := range []string{"code_blocks", "text_blocks", "document_blocks"} {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE file_id=?`, tbl), fileID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) SearchSymbols(ctx context.Context, name string, limit int) ([]*Symbol, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT symbols FROM code_blocks WHERE symbols LIKE ? LIMIT ?`, "%"+name+"%", limit*4)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*Symbol
	for rows.Next() && len(out) < limit {
		var symbolsJSON string
		if err := rows.Scan(&symbolsJSON); err != nil {
			return nil, err
		}
		var symbols []*Symbol
		if err := json.Unmarshal([]byte(symbolsJSON), &symbols); err != nil {
			continue
		}
		for _, sym := range symbols {
			if strings.Contains(strings.ToLower(sym.Name), strings.ToLower(name)) {
				out = append(out, sym)
			}
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, rows.Err()
}

// ---- State ----

func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key=?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return v, err
}

func (s *SQLiteStore) SetState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	return err
}

// ---- Embeddings ----

func (s *SQLiteStore) SaveChunkEmbeddings(ctx context.Context, chunkIDs []string, embeddings [][]float32, model string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for i, id := range chunkIDs {
		blob := encodeFloat32s(embeddings[i])
		for _, tbl := range []string{"code_blocks", "text_blocks", "document_blocks"} {
			res, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET embedding=?, embedding_model=? WHERE id=?`, tbl), blob, model, id)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n > 0 {
				break
			}
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetAllEmbeddings(ctx context.Context) (map[string][]float32, error) {
	out := make(map[string][]float32)
	for _, tbl := range []string{"code_blocks", "text_blocks", "document_blocks"} {
		rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT id, embedding FROM %s WHERE embedding IS NOT NULL`, tbl))
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var id string
			var blob []byte
			if err := rows.Scan(&id, &blob); err != nil {
				_ = rows.Close()
				return nil, err
			}
			out[id] = decodeFloat32s(blob)
		}
		_ = rows.Close()
	}
	return out, nil
}

func (s *SQLiteStore) GetEmbeddingStats(ctx context.Context) (withEmbedding, withoutEmbedding int, err error) {
	for _, tbl := range []string{"code_blocks", "text_blocks", "document_blocks"} {
		var with, total int
		if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE embedding IS NOT NULL`, tbl)).Scan(&with); err != nil {
			return 0, 0, err
		}
		if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, tbl)).Scan(&total); err != nil {
			return 0, 0, err
		}
		withEmbedding += with
		withoutEmbedding += total - with
	}
	return withEmbedding, withoutEmbedding, nil
}

// ---- Checkpoints ----

func (s *SQLiteStore) SaveIndexCheckpoint(ctx context.Context, stage string, total, embeddedCount int, embedderModel string) error {
	if err := s.SetState(ctx, StateKeyCheckpointStage, stage); err != nil {
		return err
	}
	if err := s.SetState(ctx, StateKeyCheckpointTotal, fmt.Sprintf("%d", total)); err != nil {
		return err
	}
	if err := s.SetState(ctx, StateKeyCheckpointEmbedded, fmt.Sprintf("%d", embeddedCount)); err != nil {
		return err
	}
	if err := s.SetState(ctx, StateKeyCheckpointTimestamp, fmt.Sprintf("%d", time.Now().Unix())); err != nil {
		return err
	}
	return s.SetState(ctx, StateKeyCheckpointEmbedderModel, embedderModel)
}

func (s *SQLiteStore) LoadIndexCheckpoint(ctx context.Context) (*IndexCheckpoint, error) {
	stage, err := s.GetState(ctx, StateKeyCheckpointStage)
	if err != nil {
		return nil, err
	}
	if stage == "" {
		return nil, nil
	}
	total, _ := s.GetState(ctx, StateKeyCheckpointTotal)
	embedded, _ := s.GetState(ctx, StateKeyCheckpointEmbedded)
	ts, _ := s.GetState(ctx, StateKeyCheckpointTimestamp)
	model, _ := s.GetState(ctx, StateKeyCheckpointEmbedderModel)
	var totalN, embeddedN, tsN int64
	_, _ = fmt.Sscanf(total, "%d", &totalN)
	_, _ = fmt.Sscanf(embedded, "%d", &embeddedN)
	_, _ = fmt.Sscanf(ts, "%d", &tsN)
	return &IndexCheckpoint{
		Stage:         stage,
		Total:         int(totalN),
		EmbeddedCount: int(embeddedN),
		Timestamp:     time.Unix(tsN, 0),
		EmbedderModel: model,
	}, nil
}

func (s *SQLiteStore) ClearIndexCheckpoint(ctx context.Context) error {
	for _, key := range []string{StateKeyCheckpointStage, StateKeyCheckpointTotal, StateKeyCheckpointEmbedded, StateKeyCheckpointTimestamp, StateKeyCheckpointEmbedderModel} {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM state WHERE key=?`, key); err != nil {
			return err
		}
	}
	return nil
}

// ---- Git metadata ----

// SaveGitMetadata records the commit hash the index was last built from, for
// the incremental indexer's git-diff priority pass.
func (s *SQLiteStore) SaveGitMetadata(ctx context.Context, projectID, commitHash, branch string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO git_metadata (project_id, last_commit_hash, branch, indexed_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET last_commit_hash=excluded.last_commit_hash, branch=excluded.branch, indexed_at=excluded.indexed_at`,
		projectID, commitHash, branch, time.Now().Unix())
	return err
}

// GetGitMetadata returns the last-indexed commit hash and branch, or empty
// strings if the project has never been indexed against a git commit.
func (s *SQLiteStore) GetGitMetadata(ctx context.Context, projectID string) (commitHash, branch string, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT last_commit_hash, branch FROM git_metadata WHERE project_id=?`, projectID).Scan(&commitHash, &branch)
	if err == sql.ErrNoRows {
		return "", "", nil
	}
	return commitHash, branch, err
}

func encodeFloat32s(v []float32) []byte {
	b, _ := json.Marshal(v)
	return b
}

func decodeFloat32s(b []byte) []float32 {
	var v []float32
	_ = json.Unmarshal(b, &v)
	return v
}
