package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

var remoteHTTPClient = &http.Client{Timeout: DefaultWarmTimeout}

// jinaModelDimensions is the fixed model catalog for the Jina provider,
// ported from original_source/src/embedding/provider/jina.rs.
var jinaModelDimensions = map[string]int{
	"jina-embeddings-v4":         2048,
	"jina-clip-v2":               1024,
	"jina-embeddings-v3":         1024,
	"jina-clip-v1":               768,
	"jina-embeddings-v2-base-es": 768,
	"jina-embeddings-v2-base-code": 768,
	"jina-embeddings-v2-base-de": 768,
	"jina-embeddings-v2-base-zh": 768,
	"jina-embeddings-v2-base-en": 768,
}

// voyageModelDimensions is the fixed model catalog for the Voyage provider,
// ported from original_source/src/embedding/provider/voyage.rs.
var voyageModelDimensions = map[string]int{
	"voyage-3.5":        1024,
	"voyage-3.5-lite":   1024,
	"voyage-3-large":    1024,
	"voyage-code-2":     1536,
	"voyage-code-3":     1024,
	"voyage-finance-2":  1024,
	"voyage-law-2":      1024,
	"voyage-2":          1024,
}

// googleModelDimensions is the fixed model catalog for the Google provider,
// ported from original_source/src/embedding/provider/google.rs.
var googleModelDimensions = map[string]int{
	"gemini-embedding-001":            3072,
	"text-embedding-005":              768,
	"text-multilingual-embedding-002": 768,
}

// JinaEmbedder calls the Jina AI embeddings API. It validates the model
// name eagerly at construction and surfaces "unsupported model" before any
// HTTP call is attempted.
type JinaEmbedder struct {
	model  string
	dims   int
	apiKey string
}

// NewJinaEmbedder validates model against jinaModelDimensions and reads
// JINA_API_KEY; a missing key is a fatal error before any work begins.
func NewJinaEmbedder(model string) (*JinaEmbedder, error) {
	dims, ok := jinaModelDimensions[model]
	if !ok {
		return nil, fmt.Errorf("unsupported Jina model: %q", model)
	}
	apiKey := os.Getenv("JINA_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("JINA_API_KEY environment variable not set")
	}
	return &JinaEmbedder{model: model, dims: dims, apiKey: apiKey}, nil
}

// Embed generates a single embedding.
func (e *JinaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings with no input-type hint.
func (e *JinaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return e.EmbedBatchTyped(ctx, texts, InputTypeNone)
}

// EmbedBatchTyped applies the input-type prefix manually (Jina's API has no
// native input_type field) and sends a single POST for the whole batch.
func (e *JinaEmbedder) EmbedBatchTyped(ctx context.Context, texts []string, inputType InputType) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	prefixed := applyInputTypePrefix(texts, inputType)

	body, err := json.Marshal(map[string]any{
		"input": prefixed,
		"model": e.model,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.jina.ai/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := remoteHTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jina: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jina: API error (%d): %s", resp.StatusCode, string(raw))
	}

	var parsed struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("jina: decode response: %w", err)
	}

	out := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

// Dimensions returns the fixed dimension for the configured model.
func (e *JinaEmbedder) Dimensions() int { return e.dims }

// ModelName returns the configured model name.
func (e *JinaEmbedder) ModelName() string { return e.model }

// Available checks the API key is present; no network call is made.
func (e *JinaEmbedder) Available(_ context.Context) bool { return e.apiKey != "" }

// Close is a no-op; the provider holds no resources beyond the shared client.
func (e *JinaEmbedder) Close() error { return nil }

// SetBatchIndex is a no-op; remote providers have no thermal timeout curve.
func (e *JinaEmbedder) SetBatchIndex(_ int) {}

// SetFinalBatch is a no-op for the same reason.
func (e *JinaEmbedder) SetFinalBatch(_ bool) {}

// VoyageEmbedder calls the Voyage AI embeddings API.
type VoyageEmbedder struct {
	model  string
	dims   int
	apiKey string
}

// NewVoyageEmbedder validates model against voyageModelDimensions and reads
// VOYAGE_API_KEY; a missing key is a fatal error before any work begins.
func NewVoyageEmbedder(model string) (*VoyageEmbedder, error) {
	dims, ok := voyageModelDimensions[model]
	if !ok {
		return nil, fmt.Errorf("unsupported Voyage model: %q", model)
	}
	apiKey := os.Getenv("VOYAGE_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("VOYAGE_API_KEY environment variable not set")
	}
	return &VoyageEmbedder{model: model, dims: dims, apiKey: apiKey}, nil
}

// Embed generates a single embedding.
func (e *VoyageEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings with no input-type hint.
func (e *VoyageEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return e.EmbedBatchTyped(ctx, texts, InputTypeNone)
}

// EmbedBatchTyped sends input_type natively in the request body; Voyage's
// API accepts "query"/"document" directly.
func (e *VoyageEmbedder) EmbedBatchTyped(ctx context.Context, texts []string, inputType InputType) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	payload := map[string]any{
		"input": texts,
		"model": e.model,
	}
	if s := inputType.String(); s != "" {
		payload["input_type"] = s
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.voyageai.com/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := remoteHTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voyage: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("voyage: API error (%d): %s", resp.StatusCode, string(raw))
	}

	var parsed struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("voyage: decode response: %w", err)
	}

	out := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

// Dimensions returns the fixed dimension for the configured model.
func (e *VoyageEmbedder) Dimensions() int { return e.dims }

// ModelName returns the configured model name.
func (e *VoyageEmbedder) ModelName() string { return e.model }

// Available checks the API key is present; no network call is made.
func (e *VoyageEmbedder) Available(_ context.Context) bool { return e.apiKey != "" }

// Close is a no-op.
func (e *VoyageEmbedder) Close() error { return nil }

// SetBatchIndex is a no-op; remote providers have no thermal timeout curve.
func (e *VoyageEmbedder) SetBatchIndex(_ int) {}

// SetFinalBatch is a no-op for the same reason.
func (e *VoyageEmbedder) SetFinalBatch(_ bool) {}

// GoogleEmbedder calls the Google generative-language embeddings API.
// Google's wire protocol has no batch endpoint, so EmbedBatchTyped
// serializes one request per text.
type GoogleEmbedder struct {
	model  string
	dims   int
	apiKey string
}

// NewGoogleEmbedder validates model against googleModelDimensions and reads
// GOOGLE_API_KEY; a missing key is a fatal error before any work begins.
func NewGoogleEmbedder(model string) (*GoogleEmbedder, error) {
	dims, ok := googleModelDimensions[model]
	if !ok {
		return nil, fmt.Errorf("unsupported Google model: %q", model)
	}
	apiKey := os.Getenv("GOOGLE_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY environment variable not set")
	}
	return &GoogleEmbedder{model: model, dims: dims, apiKey: apiKey}, nil
}

// Embed generates a single embedding.
func (e *GoogleEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings with no input-type hint.
func (e *GoogleEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return e.EmbedBatchTyped(ctx, texts, InputTypeNone)
}

// EmbedBatchTyped applies the input-type prefix manually and issues one
// request per text, since the API has no batch embedding endpoint.
func (e *GoogleEmbedder) EmbedBatchTyped(ctx context.Context, texts []string, inputType InputType) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	prefixed := applyInputTypePrefix(texts, inputType)

	out := make([][]float32, len(prefixed))
	for i, text := range prefixed {
		vec, err := e.embedOne(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *GoogleEmbedder) embedOne(ctx context.Context, text string) ([]float32, error) {
	url := fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:embedContent?key=%s", e.model, e.apiKey)
	body, err := json.Marshal(map[string]any{
		"content": map[string]any{
			"parts": []map[string]any{{"text": text}},
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := remoteHTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google: API error (%d): %s", resp.StatusCode, string(raw))
	}

	var parsed struct {
		Embedding struct {
			Values []float32 `json:"values"`
		} `json:"embedding"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("google: decode response: %w", err)
	}
	return parsed.Embedding.Values, nil
}

// Dimensions returns the fixed dimension for the configured model.
func (e *GoogleEmbedder) Dimensions() int { return e.dims }

// ModelName returns the configured model name.
func (e *GoogleEmbedder) ModelName() string { return e.model }

// Available checks the API key is present; no network call is made.
func (e *GoogleEmbedder) Available(_ context.Context) bool { return e.apiKey != "" }

// Close is a no-op.
func (e *GoogleEmbedder) Close() error { return nil }

// SetBatchIndex is a no-op; remote providers have no thermal timeout curve.
func (e *GoogleEmbedder) SetBatchIndex(_ int) {}

// SetFinalBatch is a no-op for the same reason.
func (e *GoogleEmbedder) SetFinalBatch(_ bool) {}
