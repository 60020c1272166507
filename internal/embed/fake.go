package embed

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
)

// FakeEmbedder generates deterministic hash-based embeddings with no model
// load and no network calls. It exists for tests that exercise the search
// and indexing pipeline without depending on a real embedding provider.
type FakeEmbedder struct {
	mu     sync.RWMutex
	dims   int
	closed bool
}

// NewFakeEmbedder creates a deterministic embedder with the given dimension.
func NewFakeEmbedder(dims int) *FakeEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &FakeEmbedder{dims: dims}
}

func (e *FakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	vector := make([]float32, e.dims)
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return vector, nil
	}
	for _, token := range strings.Fields(trimmed) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		idx := int(h.Sum32()) % e.dims
		if idx < 0 {
			idx += e.dims
		}
		vector[idx] += 1.0
	}
	return normalizeVector(vector), nil
}

func (e *FakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		results[i] = v
	}
	return results, nil
}

func (e *FakeEmbedder) EmbedBatchTyped(ctx context.Context, texts []string, _ InputType) ([][]float32, error) {
	return e.EmbedBatch(ctx, texts)
}

func (e *FakeEmbedder) Dimensions() int   { return e.dims }
func (e *FakeEmbedder) ModelName() string { return "fake" }

func (e *FakeEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

func (e *FakeEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func (e *FakeEmbedder) SetBatchIndex(_ int)  {}
func (e *FakeEmbedder) SetFinalBatch(_ bool) {}
