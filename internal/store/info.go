package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// EmbedderInfoInput carries the currently configured embedder's identity, so
// GetIndexInfo can report whether it matches what the index was built with.
type EmbedderInfoInput struct {
	Model      string
	Backend    string
	Dimensions int
}

// GetIndexInfo assembles a snapshot of an index's configuration and
// statistics for the `sourcelens index info` command. dataDir is the
// .sourcelens directory; its parent is treated as the project root.
func GetIndexInfo(ctx context.Context, metadata MetadataStore, dataDir string, current *EmbedderInfoInput) (*IndexInfo, error) {
	root := filepath.Dir(dataDir)
	projectID := hashProjectPath(root)

	info := &IndexInfo{
		Location:    dataDir,
		ProjectRoot: root,
	}

	if project, err := metadata.GetProject(ctx, projectID); err == nil && project != nil {
		info.ChunkCount = project.ChunkCount
		info.DocumentCount = project.FileCount
		info.CreatedAt = project.IndexedAt
		info.UpdatedAt = project.IndexedAt
	}

	if model, err := metadata.GetState(ctx, StateKeyIndexModel); err == nil {
		info.IndexModel = model
	}
	if dimStr, err := metadata.GetState(ctx, StateKeyIndexDimension); err == nil && dimStr != "" {
		if dim, convErr := strconv.Atoi(dimStr); convErr == nil {
			info.IndexDimensions = dim
		}
	}

	bm25Size := fileOrDirSize(filepath.Join(dataDir, "bm25.db"))
	if bm25Size == 0 {
		bm25Size = fileOrDirSize(filepath.Join(dataDir, "bm25.bleve"))
	}
	info.BM25SizeBytes = bm25Size
	info.VectorSizeBytes = fileOrDirSize(filepath.Join(dataDir, "vectors.hnsw"))
	metadataSize := fileOrDirSize(filepath.Join(dataDir, "metadata.db"))
	info.IndexSizeBytes = metadataSize + info.BM25SizeBytes + info.VectorSizeBytes

	if current != nil {
		info.CurrentModel = current.Model
		info.CurrentBackend = current.Backend
		info.CurrentDimensions = current.Dimensions
		info.Compatible = info.IndexDimensions == 0 || info.IndexDimensions == current.Dimensions
	}

	return info, nil
}

func hashProjectPath(path string) string {
	h := sha256.Sum256([]byte(path))
	return hex.EncodeToString(h[:])[:16]
}

func fileOrDirSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	if !fi.IsDir() {
		return fi.Size()
	}
	var size int64
	_ = filepath.Walk(path, func(_ string, entry os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if !entry.IsDir() {
			size += entry.Size()
		}
		return nil
	})
	return size
}

// FormatBytes renders a byte count in human-readable form (KB/MB/GB).
func FormatBytes(bytes int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// FormatTime renders a timestamp as a relative or absolute date string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	diff := time.Since(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02 15:04")
	}
}
