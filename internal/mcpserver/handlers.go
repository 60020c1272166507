package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sourcelens/sourcelens/internal/memory"
	"github.com/sourcelens/sourcelens/internal/search"
	"github.com/sourcelens/sourcelens/internal/store"
)

type searchParams struct {
	Query      string `json:"query"`
	Limit      int    `json:"limit"`
	Language   string `json:"language"`
	SymbolType string `json:"symbol_type"`
	Filter     string `json:"filter"`
}

type searchResultView struct {
	FilePath   string  `json:"file_path"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
	Language   string  `json:"language,omitempty"`
	Symbol     string  `json:"symbol,omitempty"`
	SymbolType string  `json:"symbol_type,omitempty"`
	StartLine  int     `json:"start_line"`
	EndLine    int     `json:"end_line"`
}

func handleSemanticSearch(ctx context.Context, b *Bundle, raw json.RawMessage) (any, error) {
	var p searchParams
	if err := decodeParams(raw, &p, []string{"query"}); err != nil {
		return nil, err
	}
	if p.Limit <= 0 {
		p.Limit = 10
	}

	results, err := b.Engine.Search(ctx, p.Query, search.SearchOptions{
		Limit:      p.Limit,
		Filter:     orDefault(p.Filter, "all"),
		Language:   p.Language,
		SymbolType: p.SymbolType,
	})
	if err != nil {
		return nil, err
	}

	out := make([]searchResultView, 0, len(results))
	for _, r := range results {
		if r.Chunk == nil {
			continue
		}
		view := searchResultView{
			FilePath:  r.Chunk.FilePath,
			Content:   r.Chunk.Content,
			Score:     r.Score,
			Language:  r.Chunk.Language,
			StartLine: r.Chunk.StartLine,
			EndLine:   r.Chunk.EndLine,
		}
		if len(r.Chunk.Symbols) > 0 {
			view.Symbol = r.Chunk.Symbols[0].Name
			view.SymbolType = string(r.Chunk.Symbols[0].Type)
		}
		out = append(out, view)
	}
	return map[string]any{"results": out}, nil
}

type viewSignaturesParams struct {
	Path string `json:"path"`
}

type signatureView struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Signature string `json:"signature"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

func handleViewSignatures(ctx context.Context, b *Bundle, raw json.RawMessage) (any, error) {
	var p viewSignaturesParams
	if err := decodeParams(raw, &p, []string{"path"}); err != nil {
		return nil, err
	}

	file, err := b.Metadata.GetFileByPath(ctx, b.ProjectID, p.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, err.Error())
	}
	chunks, err := b.Metadata.GetChunksByFile(ctx, file.ID)
	if err != nil {
		return nil, err
	}

	var sigs []signatureView
	for _, c := range chunks {
		for _, sym := range c.Symbols {
			if sym.Signature == "" {
				continue
			}
			sigs = append(sigs, signatureView{
				Name:      sym.Name,
				Type:      string(sym.Type),
				Signature: sym.Signature,
				StartLine: sym.StartLine,
				EndLine:   sym.EndLine,
			})
		}
	}
	return map[string]any{"path": p.Path, "signatures": sigs}, nil
}

type graphragParams struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
	Hops  int    `json:"hops"`
}

type graphNodeView struct {
	Path      string   `json:"path"`
	Language  string   `json:"language"`
	Functions []string `json:"functions,omitempty"`
	Distance  float32  `json:"distance"`
}

func handleSearchGraphRAG(ctx context.Context, b *Bundle, raw json.RawMessage) (any, error) {
	if b.Graph == nil {
		return nil, fmt.Errorf("%w: GraphRAG is not enabled for this project", ErrInvalidParams)
	}
	var p graphragParams
	if err := decodeParams(raw, &p, []string{"query"}); err != nil {
		return nil, err
	}
	if p.Limit <= 0 {
		p.Limit = 10
	}
	if b.GraphEmbed == nil {
		return nil, fmt.Errorf("%w: no embedder configured for graph search", ErrEmbeddingFailed)
	}

	vec, err := b.GraphEmbed.Embed(ctx, p.Query)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrEmbeddingFailed, err.Error())
	}
	nodes, err := b.Graph.SearchGraphNodes(ctx, b.ProjectID, vec, p.Limit)
	if err != nil {
		return nil, err
	}

	out := make([]graphNodeView, 0, len(nodes))
	for _, n := range nodes {
		view := graphNodeView{Path: n.Path, Language: n.Language, Distance: n.Distance}
		for _, fn := range n.Functions {
			view.Functions = append(view.Functions, fn.Name)
		}
		out = append(out, view)
	}
	return map[string]any{"nodes": out}, nil
}

type memorizeParams struct {
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Type       string   `json:"type"`
	Tags       []string `json:"tags"`
	Files      []string `json:"files"`
	Importance float64  `json:"importance"`
}

func handleMemorize(ctx context.Context, b *Bundle, raw json.RawMessage) (any, error) {
	if b.Memory == nil {
		return nil, fmt.Errorf("%w: memory is not enabled for this project", ErrInvalidParams)
	}
	var p memorizeParams
	if err := decodeParams(raw, &p, []string{"title", "content"}); err != nil {
		return nil, err
	}

	mem, err := b.Memory.Memorize(ctx, memory.MemorizeInput{
		Title: p.Title, Content: p.Content, Type: p.Type,
		Tags: p.Tags, Files: p.Files, Importance: p.Importance,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidParams, err.Error())
	}
	return memoryView(mem), nil
}

type rememberParams struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func handleRemember(ctx context.Context, b *Bundle, raw json.RawMessage) (any, error) {
	if b.Memory == nil {
		return nil, fmt.Errorf("%w: memory is not enabled for this project", ErrInvalidParams)
	}
	var p rememberParams
	if err := decodeParams(raw, &p, []string{"query"}); err != nil {
		return nil, err
	}
	if p.Limit <= 0 {
		p.Limit = 10
	}

	mems, err := b.Memory.Remember(ctx, p.Query, p.Limit)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(mems))
	for _, m := range mems {
		out = append(out, memoryView(m))
	}
	return map[string]any{"memories": out}, nil
}

type forgetParams struct {
	ID   string   `json:"id"`
	Tags []string `json:"tags"`
	File string   `json:"file"`
}

func handleForget(ctx context.Context, b *Bundle, raw json.RawMessage) (any, error) {
	if b.Memory == nil {
		return nil, fmt.Errorf("%w: memory is not enabled for this project", ErrInvalidParams)
	}
	var p forgetParams
	if err := decodeParams(raw, &p, nil); err != nil {
		return nil, err
	}

	if p.ID != "" {
		if err := b.Memory.Forget(ctx, p.ID); err != nil {
			return nil, err
		}
		return map[string]any{"removed": 1}, nil
	}
	if len(p.Tags) == 0 && p.File == "" {
		return nil, fmt.Errorf("%w: forget requires id, tags, or file", ErrInvalidParams)
	}
	count, err := b.Memory.ForgetMatching(ctx, p.Tags, p.File)
	if err != nil {
		return nil, err
	}
	return map[string]any{"removed": count}, nil
}

func memoryView(m *store.Memory) map[string]any {
	return map[string]any{
		"id":         m.ID,
		"title":      m.Title,
		"content":    m.Content,
		"type":       m.Type,
		"tags":       m.Tags,
		"files":      m.Files,
		"importance": m.Importance,
		"relevance":  m.Relevance,
	}
}

func decodeParams(raw json.RawMessage, dest any, required []string) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if len(required) > 0 {
		var asMap map[string]any
		if err := json.Unmarshal(raw, &asMap); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidParams, err.Error())
		}
		if err := validateRequired(asMap, required); err != nil {
			return err
		}
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidParams, err.Error())
	}
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
