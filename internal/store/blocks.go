package store

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var errInvalidLevel = errors.New("invalid heading level")

// contentHash returns a stable content-addressable hash for block dedup and
// change detection, mirroring the teacher's content-hash chunk ID scheme.
func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// CodeBlock is a retrievable, symbol-aware slice of a source file: a
// function, method, type declaration, or similarly-scoped unit along with
// the symbols it introduces. It is the block-kind persisted for files whose
// language has a chunker plug-in.
type CodeBlock struct {
	ID        string
	Path      string
	Language  string
	Content   string
	Symbols   []*Symbol
	StartLine int
	EndLine   int
	Hash      string
	Vector    []float32
	Distance  float32 // populated on search results only
}

// TextBlock is a CodeBlock without symbol extraction: a fixed-size window
// over plain-text content (configuration files, license text, unsupported
// languages on the plain-text allow-list).
type TextBlock struct {
	ID        string
	Path      string
	Content   string
	StartLine int
	EndLine   int
	Hash      string
	Vector    []float32
	Distance  float32
}

// DocumentBlock is a heading-scoped slice of a structured document
// (Markdown). Context carries the breadcrumb of enclosing headings from the
// document root down to this block's own heading.
type DocumentBlock struct {
	ID        string
	Path      string
	Title     string
	Content   string
	Context   []string
	Level     int
	StartLine int
	EndLine   int
	Hash      string
	Vector    []float32
	Distance  float32
}

// BlockKind classifies which physical table a Chunk's content routes to.
type BlockKind string

const (
	BlockKindCode     BlockKind = "code_blocks"
	BlockKindText     BlockKind = "text_blocks"
	BlockKindDocument BlockKind = "document_blocks"
)

// KindForContentType maps a Chunk's ContentType to the block table it is
// persisted in. Unrecognized content types fall back to text_blocks.
func KindForContentType(ct ContentType) BlockKind {
	switch ct {
	case ContentTypeCode:
		return BlockKindCode
	case ContentTypeMarkdown:
		return BlockKindDocument
	default:
		return BlockKindText
	}
}

// ChunkToCodeBlock projects a Chunk onto the CodeBlock shape. The caller is
// responsible for only calling this on chunks with ContentTypeCode.
func ChunkToCodeBlock(c *Chunk) *CodeBlock {
	return &CodeBlock{
		ID:        c.ID,
		Path:      c.FilePath,
		Language:  c.Language,
		Content:   c.Content,
		Symbols:   c.Symbols,
		StartLine: c.StartLine,
		EndLine:   c.EndLine,
		Hash:      contentHash(c.RawContent),
	}
}

// ChunkToTextBlock projects a Chunk onto the TextBlock shape.
func ChunkToTextBlock(c *Chunk) *TextBlock {
	return &TextBlock{
		ID:        c.ID,
		Path:      c.FilePath,
		Content:   c.Content,
		StartLine: c.StartLine,
		EndLine:   c.EndLine,
		Hash:      contentHash(c.Content),
	}
}

// ChunkToDocumentBlock projects a Chunk onto the DocumentBlock shape. Title
// and breadcrumb context are read from the chunk's Metadata map, populated
// by the markdown chunker's heading-stack walk; Level defaults to 1 (a
// top-level section) when the chunker did not record one.
func ChunkToDocumentBlock(c *Chunk) *DocumentBlock {
	title := c.Metadata["title"]
	if title == "" && len(c.Symbols) > 0 {
		title = c.Symbols[0].Name
	}
	level := 1
	if lv, ok := c.Metadata["level"]; ok {
		if n, err := parsePositiveInt(lv); err == nil {
			level = n
		}
	}
	var context []string
	if bc := c.Metadata["breadcrumb"]; bc != "" {
		context = splitBreadcrumb(bc)
	}
	return &DocumentBlock{
		ID:        c.ID,
		Path:      c.FilePath,
		Title:     title,
		Content:   c.Content,
		Context:   context,
		Level:     level,
		StartLine: c.StartLine,
		EndLine:   c.EndLine,
		Hash:      contentHash(c.Content),
	}
}

func parsePositiveInt(s string) (int, error) {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, errInvalidLevel
		}
		n = n*10 + int(r-'0')
	}
	if n == 0 {
		return 0, errInvalidLevel
	}
	return n, nil
}

func splitBreadcrumb(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '>' {
			if seg := trimSpace(s[start:i]); seg != "" {
				out = append(out, seg)
			}
			start = i + 1
		}
	}
	if seg := trimSpace(s[start:]); seg != "" {
		out = append(out, seg)
	}
	return out
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t') {
		end--
	}
	return s[start:end]
}
