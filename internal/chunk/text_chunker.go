package chunk

import (
	"context"
	"strings"
	"time"
)

// DefaultTextChunkLines is the default window size for plain-text chunking.
const DefaultTextChunkLines = 2000

// DefaultTextOverlapLines is the default overlap between plain-text windows.
const DefaultTextOverlapLines = 100

// plainTextExtensions is the restricted allow-list of extensions/filenames
// the text chunker accepts; anything else falls back to the generic
// line-based chunker used for unrecognized code files.
var plainTextExtensions = map[string]bool{
	".txt":  true,
	".rst":  true,
	".log":  true,
	".csv":  true,
	".tsv":  true,
	"LICENSE": true,
	"NOTICE":  true,
}

// TextChunkerOptions configures plain-text chunking.
type TextChunkerOptions struct {
	ChunkSizeLines int // default DefaultTextChunkLines
	OverlapLines   int // default DefaultTextOverlapLines
}

// TextChunker splits plain-text files into fixed line windows.
type TextChunker struct {
	options TextChunkerOptions
}

// NewTextChunker creates a TextChunker with default options.
func NewTextChunker() *TextChunker {
	return NewTextChunkerWithOptions(TextChunkerOptions{})
}

// NewTextChunkerWithOptions creates a TextChunker with custom options.
func NewTextChunkerWithOptions(opts TextChunkerOptions) *TextChunker {
	if opts.ChunkSizeLines == 0 {
		opts.ChunkSizeLines = DefaultTextChunkLines
	}
	if opts.OverlapLines == 0 {
		opts.OverlapLines = DefaultTextOverlapLines
	}
	return &TextChunker{options: opts}
}

// Close is a no-op; TextChunker holds no resources.
func (c *TextChunker) Close() {}

// SupportedExtensions returns the restricted plain-text allow-list.
func (c *TextChunker) SupportedExtensions() []string {
	exts := make([]string, 0, len(plainTextExtensions))
	for ext := range plainTextExtensions {
		exts = append(exts, ext)
	}
	return exts
}

// IsPlainText reports whether path matches the allow-list by extension or
// exact filename.
func IsPlainText(path string) bool {
	base := path
	if idx := strings.LastIndexAny(path, "/\\"); idx >= 0 {
		base = path[idx+1:]
	}
	if plainTextExtensions[base] {
		return true
	}
	if idx := strings.LastIndex(base, "."); idx >= 0 {
		return plainTextExtensions[base[idx:]]
	}
	return false
}

// Chunk splits file content into line-anchored windows of ChunkSizeLines
// with OverlapLines of overlap between consecutive windows.
func (c *TextChunker) Chunk(_ context.Context, file *FileInput) ([]*Chunk, error) {
	content := string(file.Content)
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	lines := strings.Split(content, "\n")
	now := time.Now()

	var chunks []*Chunk
	for i := 0; i < len(lines); {
		end := i + c.options.ChunkSizeLines
		if end > len(lines) {
			end = len(lines)
		}

		windowContent := strings.Join(lines[i:end], "\n")
		startLine := i + 1
		endLine := end

		chunk := &Chunk{
			ID:          generateChunkID(file.Path, windowContent),
			FilePath:    file.Path,
			Content:     windowContent,
			RawContent:  windowContent,
			ContentType: ContentTypeText,
			Language:    file.Language,
			StartLine:   startLine,
			EndLine:     endLine,
			Metadata:    make(map[string]string),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		ensureSymbol(chunk, "window")
		chunks = append(chunks, chunk)

		i = end - c.options.OverlapLines
		if i <= 0 || end >= len(lines) {
			break
		}
	}

	return chunks, nil
}
