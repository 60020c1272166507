package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// TEIConfig configures the text-embeddings-inference protocol client.
type TEIConfig struct {
	Endpoint  string // base URL of the running TEI server
	Model     string // model identifier reported by the server's /info endpoint
	Dimension int    // embedding dimension; discovered via a probe call if 0
}

// DefaultTEIConfig returns the default inference-server client configuration.
func DefaultTEIConfig() TEIConfig {
	return TEIConfig{Endpoint: "http://localhost:8080"}
}

// TEIEmbedder talks to a text-embeddings-inference server over its REST
// protocol, following the teacher's HTTP-client-plus-health-check structure
// used by its Ollama/MLX providers.
type TEIEmbedder struct {
	cfg    TEIConfig
	client *http.Client
	dims   int
}

// NewTEIEmbedder creates a client for a running inference-server instance.
func NewTEIEmbedder(cfg TEIConfig) (*TEIEmbedder, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultTEIConfig().Endpoint
	}
	return &TEIEmbedder{cfg: cfg, client: &http.Client{Timeout: DefaultWarmTimeout}, dims: cfg.Dimension}, nil
}

func (e *TEIEmbedder) url(path string) string {
	return strings.TrimRight(e.cfg.Endpoint, "/") + path
}

func (e *TEIEmbedder) post(ctx context.Context, path string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url(path), bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("tei: request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tei: %s returned %d: %s", path, resp.StatusCode, string(respBody))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

// Embed generates a single pooled embedding.
func (e *TEIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates pooled embeddings with no input-type hint.
func (e *TEIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return e.EmbedBatchTyped(ctx, texts, InputTypeNone)
}

// EmbedBatchTyped calls the server's /embed endpoint (pooled mode) for the
// whole batch in one request.
func (e *TEIEmbedder) EmbedBatchTyped(ctx context.Context, texts []string, inputType InputType) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	prefixed := applyInputTypePrefix(texts, inputType)

	var out [][]float32
	err := e.post(ctx, "/embed", map[string]any{
		"inputs":    prefixed,
		"normalize": true,
	}, &out)
	if err != nil {
		return nil, err
	}
	if len(out) > 0 {
		e.dims = len(out[0])
	}
	return out, nil
}

// EmbedSparse calls the server's sparse embedding endpoint, returning the
// non-zero {index: weight} pairs per input.
func (e *TEIEmbedder) EmbedSparse(ctx context.Context, texts []string) ([]map[int]float32, error) {
	var raw []map[string]float32
	err := e.post(ctx, "/embed_sparse", map[string]any{"inputs": texts}, &raw)
	if err != nil {
		return nil, err
	}
	out := make([]map[int]float32, len(raw))
	for i, m := range raw {
		converted := make(map[int]float32, len(m))
		for k, v := range m {
			var idx int
			if _, err := fmt.Sscanf(k, "%d", &idx); err == nil {
				converted[idx] = v
			}
		}
		out[i] = converted
	}
	return out, nil
}

// EmbedAllTokens calls the server's all-tokens embedding endpoint, returning
// the unpooled per-token hidden states for each input.
func (e *TEIEmbedder) EmbedAllTokens(ctx context.Context, texts []string) ([][][]float32, error) {
	var out [][][]float32
	err := e.post(ctx, "/embed_all", map[string]any{"inputs": texts}, &out)
	return out, err
}

// TEISimilarityResult holds per-sentence cosine scores against the source.
type TEISimilarityResult struct {
	Scores []float32 `json:"scores"`
}

// Similarity scores each candidate sentence against the source sentence via
// the server's /similarity endpoint.
func (e *TEIEmbedder) Similarity(ctx context.Context, source string, sentences []string) (*TEISimilarityResult, error) {
	if len(sentences) == 0 {
		return nil, fmt.Errorf("tei: sentences cannot be empty")
	}
	var out TEISimilarityResult
	err := e.post(ctx, "/similarity", map[string]any{
		"inputs": map[string]any{
			"source_sentence": source,
			"sentences":       sentences,
		},
	}, &out)
	return &out, err
}

// TEIRerankResult holds a single reranked candidate's index and score.
type TEIRerankResult struct {
	Index int     `json:"index"`
	Score float32 `json:"score"`
}

// Rerank scores each text against the query via the server's /rerank
// endpoint and returns results ordered by descending score.
func (e *TEIEmbedder) Rerank(ctx context.Context, query string, texts []string) ([]TEIRerankResult, error) {
	var out []TEIRerankResult
	err := e.post(ctx, "/rerank", map[string]any{
		"query": query,
		"texts": texts,
	}, &out)
	return out, err
}

// TEIToken is a single decoded token with its byte offsets.
type TEIToken struct {
	ID    int    `json:"id"`
	Text  string `json:"text"`
	Start int    `json:"start"`
	Stop  int    `json:"stop"`
}

// Tokenize calls the server's /tokenize endpoint for each input and returns
// per-input token lists.
func (e *TEIEmbedder) Tokenize(ctx context.Context, texts []string) ([][]TEIToken, error) {
	var out [][]TEIToken
	err := e.post(ctx, "/tokenize", map[string]any{
		"inputs":              texts,
		"add_special_tokens": true,
	}, &out)
	return out, err
}

// Decode calls the server's /decode endpoint to turn token IDs back into
// text.
func (e *TEIEmbedder) Decode(ctx context.Context, ids []int) (string, error) {
	var out []string
	err := e.post(ctx, "/decode", map[string]any{
		"ids":                 ids,
		"skip_special_tokens": true,
	}, &out)
	if err != nil {
		return "", err
	}
	if len(out) == 0 {
		return "", nil
	}
	return out[0], nil
}

// Dimensions returns the embedding dimension, discovered from the first
// /embed call if not configured up front.
func (e *TEIEmbedder) Dimensions() int { return e.dims }

// ModelName returns the configured model identifier.
func (e *TEIEmbedder) ModelName() string { return e.cfg.Model }

// Available checks the server's /health endpoint.
func (e *TEIEmbedder) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.url("/health"), nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Close is a no-op; the client holds no resources beyond its http.Client.
func (e *TEIEmbedder) Close() error { return nil }

// SetBatchIndex is a no-op; the inference server has no thermal timeout curve.
func (e *TEIEmbedder) SetBatchIndex(_ int) {}

// SetFinalBatch is a no-op for the same reason.
func (e *TEIEmbedder) SetFinalBatch(_ bool) {}
