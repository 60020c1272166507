package output

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/sourcelens/sourcelens/internal/store"
)

// StatusInfo contains index health information for the `sourcelens status`
// command.
type StatusInfo struct {
	ProjectName string    `json:"project_name"`
	TotalFiles  int       `json:"total_files"`
	TotalChunks int       `json:"total_chunks"`
	LastIndexed time.Time `json:"last_indexed"`

	MetadataSize int64 `json:"metadata_size"`
	BM25Size     int64 `json:"bm25_size"`
	VectorSize   int64 `json:"vector_size"`
	TotalSize    int64 `json:"total_size"`

	EmbedderType   string `json:"embedder_type"`
	EmbedderStatus string `json:"embedder_status"`
	EmbedderModel  string `json:"embedder_model,omitempty"`
	WatcherStatus  string `json:"watcher_status"`
}

// RenderStatus writes a human-readable status report to out.
func RenderStatus(out io.Writer, info StatusInfo) error {
	_, _ = fmt.Fprintf(out, "Index Status: %s\n\n", info.ProjectName)

	_, _ = fmt.Fprintf(out, "  Files:        %d\n", info.TotalFiles)
	_, _ = fmt.Fprintf(out, "  Chunks:       %d\n", info.TotalChunks)
	if !info.LastIndexed.IsZero() {
		_, _ = fmt.Fprintf(out, "  Last indexed: %s\n", store.FormatTime(info.LastIndexed))
	}
	_, _ = fmt.Fprintln(out)

	_, _ = fmt.Fprintln(out, "  Storage:")
	_, _ = fmt.Fprintf(out, "    Metadata:   %s\n", store.FormatBytes(info.MetadataSize))
	_, _ = fmt.Fprintf(out, "    BM25 Index: %s\n", store.FormatBytes(info.BM25Size))
	_, _ = fmt.Fprintf(out, "    Vectors:    %s\n", store.FormatBytes(info.VectorSize))
	_, _ = fmt.Fprintf(out, "    Total:      %s\n", store.FormatBytes(info.TotalSize))
	_, _ = fmt.Fprintln(out)

	_, _ = fmt.Fprintln(out, "  Embedder:")
	_, _ = fmt.Fprintf(out, "    Type:   %s\n", info.EmbedderType)
	_, _ = fmt.Fprintf(out, "    Status: %s\n", info.EmbedderStatus)
	if info.EmbedderModel != "" {
		_, _ = fmt.Fprintf(out, "    Model:  %s\n", info.EmbedderModel)
	}
	_, _ = fmt.Fprintln(out)

	if info.WatcherStatus != "" && info.WatcherStatus != "n/a" {
		_, _ = fmt.Fprintf(out, "  Watcher: %s\n", info.WatcherStatus)
	}

	return nil
}

// RenderStatusJSON writes info to out as indented JSON.
func RenderStatusJSON(out io.Writer, info StatusInfo) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}
