package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
)

// Tool describes one callable tool: its JSON Schema (draft-07) input shape
// and the handler that executes it against a Bundle.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     func(ctx context.Context, b *Bundle, params json.RawMessage) (any, error)
}

// schemaField is a minimal draft-07-shaped property: just the parts this
// server actually validates (type + required), not a general-purpose
// validator. No pack example ships a standalone JSON Schema validator (the
// only occurrence, google/jsonschema-go, arrived transitively through the
// go-sdk dependency this package replaces), so draft-07 documents are
// authored here for client-facing introspection and validated by a small
// hand-rolled checker rather than a borrowed library.
type schemaField struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

type objectSchema struct {
	Schema     string                 `json:"$schema"`
	Type       string                 `json:"type"`
	Properties map[string]schemaField `json:"properties"`
	Required   []string               `json:"required,omitempty"`
}

func mustSchema(s objectSchema) json.RawMessage {
	s.Schema = "http://json-schema.org/draft-07/schema#"
	s.Type = "object"
	b, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	return b
}

// Catalog returns every tool this server exposes. search_graphrag/memorize/
// remember/forget are included unconditionally; Bundle.graph/Bundle.memory
// being nil (GraphRAG disabled, no memory store configured) makes their
// handlers return a tool error instead of omitting them from tools/list,
// since the list is static per server while bundles are per-project.
func Catalog() []Tool {
	return []Tool{
		{
			Name:        "semantic_search",
			Description: "Hybrid BM25 + vector search over the indexed codebase.",
			InputSchema: mustSchema(objectSchema{
				Properties: map[string]schemaField{
					"query":       {Type: "string", Description: "search query"},
					"limit":       {Type: "integer", Description: "maximum results, default 10"},
					"language":    {Type: "string", Description: "filter by programming language"},
					"symbol_type": {Type: "string", Description: "filter by symbol type"},
					"filter":      {Type: "string", Enum: []string{"all", "code", "docs"}},
				},
				Required: []string{"query"},
			}),
			Handler: handleSemanticSearch,
		},
		{
			Name:        "view_signatures",
			Description: "List function/method signatures declared in a file.",
			InputSchema: mustSchema(objectSchema{
				Properties: map[string]schemaField{
					"path": {Type: "string", Description: "project-relative file path"},
				},
				Required: []string{"path"},
			}),
			Handler: handleViewSignatures,
		},
		{
			Name:        "search_graphrag",
			Description: "Semantic search over the code graph (files/nodes connected by import and architectural-pattern edges).",
			InputSchema: mustSchema(objectSchema{
				Properties: map[string]schemaField{
					"query": {Type: "string", Description: "search query"},
					"limit": {Type: "integer", Description: "maximum results, default 10"},
					"hops":  {Type: "integer", Description: "accepted but not used; results are the matched nodes only, with no graph expansion"},
				},
				Required: []string{"query"},
			}),
			Handler: handleSearchGraphRAG,
		},
		{
			Name:        "memorize",
			Description: "Persist a freeform note (insight, decision, pattern, gotcha, todo, preference).",
			InputSchema: mustSchema(objectSchema{
				Properties: map[string]schemaField{
					"title":      {Type: "string"},
					"content":    {Type: "string"},
					"type":       {Type: "string", Enum: []string{"insight", "decision", "pattern", "gotcha", "todo", "preference"}},
					"tags":       {Type: "array"},
					"files":      {Type: "array"},
					"importance": {Type: "number"},
				},
				Required: []string{"title", "content"},
			}),
			Handler: handleMemorize,
		},
		{
			Name:        "remember",
			Description: "Semantic search over persisted memories.",
			InputSchema: mustSchema(objectSchema{
				Properties: map[string]schemaField{
					"query": {Type: "string"},
					"limit": {Type: "integer"},
				},
				Required: []string{"query"},
			}),
			Handler: handleRemember,
		},
		{
			Name:        "forget",
			Description: "Delete a memory by ID, or by tag/file match.",
			InputSchema: mustSchema(objectSchema{
				Properties: map[string]schemaField{
					"id":   {Type: "string"},
					"tags": {Type: "array"},
					"file": {Type: "string"},
				},
			}),
			Handler: handleForget,
		},
	}
}

// validateRequired checks that every field name in required is present and
// non-empty (for strings) in the decoded params map. It is intentionally
// narrow: depth/type checking beyond "present" is left to each handler's own
// json.Unmarshal, whose errors already surface as ErrCodeInvalidParams.
func validateRequired(params map[string]any, required []string) error {
	for _, name := range required {
		v, ok := params[name]
		if !ok {
			return fmt.Errorf("%w: missing required field %q", ErrInvalidParams, name)
		}
		if s, ok := v.(string); ok && s == "" {
			return fmt.Errorf("%w: field %q must not be empty", ErrInvalidParams, name)
		}
	}
	return nil
}
