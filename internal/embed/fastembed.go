package embed

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
)

// FastEmbedConfig configures the local CPU embedding provider.
type FastEmbedConfig struct {
	Model     string // fastembed model name, e.g. "BAAI/bge-small-en-v1.5"
	CacheDir  string // shared model cache directory
	MaxLength int    // max sequence length, 0 uses the library default
}

// DefaultFastEmbedConfig returns the default local CPU provider configuration.
func DefaultFastEmbedConfig() FastEmbedConfig {
	return FastEmbedConfig{
		Model:     "BAAI/bge-small-en-v1.5",
		CacheDir:  defaultModelCacheDir(),
		MaxLength: 512,
	}
}

func defaultModelCacheDir() string {
	dir, err := cacheDirFor("sourcelens", "models")
	if err != nil {
		return filepath.Join(".", ".sourcelens-cache", "models")
	}
	return dir
}

// FastEmbedEmbedder runs a quantized ONNX model on CPU via fastembed-go.
// Initialization is lazy and guarded by a mutex so concurrent first-use
// callers share one loaded model instead of racing to download it twice.
type FastEmbedEmbedder struct {
	cfg        FastEmbedConfig
	mu         sync.RWMutex
	model      *fastembed.FlagEmbedding
	dimensions int
	batchIndex int
	finalBatch bool
}

// NewFastEmbedEmbedder creates a local CPU embedder. The underlying model is
// not downloaded until the first Embed/EmbedBatch call.
func NewFastEmbedEmbedder(cfg FastEmbedConfig) (*FastEmbedEmbedder, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultFastEmbedConfig().Model
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = defaultModelCacheDir()
	}
	return &FastEmbedEmbedder{cfg: cfg, dimensions: DefaultDimensions}, nil
}

func (e *FastEmbedEmbedder) ensureLoaded() (*fastembed.FlagEmbedding, error) {
	e.mu.RLock()
	if e.model != nil {
		m := e.model
		e.mu.RUnlock()
		return m, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model != nil {
		return e.model, nil
	}

	maxLen := e.cfg.MaxLength
	if maxLen == 0 {
		maxLen = 512
	}
	model, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:     fastembed.EmbeddingModel(e.cfg.Model),
		CacheDir:  e.cfg.CacheDir,
		MaxLength: maxLen,
	})
	if err != nil {
		return nil, fmt.Errorf("fastembed: load model %q: %w", e.cfg.Model, err)
	}
	e.model = model

	probe, err := model.Embed([]string{"dimension probe"}, 1)
	if err == nil && len(probe) > 0 {
		e.dimensions = len(probe[0])
	}
	return model, nil
}

// Embed generates a single embedding.
func (e *FastEmbedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings with no input-type hint.
func (e *FastEmbedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return e.EmbedBatchTyped(ctx, texts, InputTypeNone)
}

// EmbedBatchTyped generates embeddings; fastembed has no native input_type
// wire field, so the hint is folded into a textual prefix.
func (e *FastEmbedEmbedder) EmbedBatchTyped(ctx context.Context, texts []string, inputType InputType) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	model, err := e.ensureLoaded()
	if err != nil {
		return nil, err
	}

	prefixed := applyInputTypePrefix(texts, inputType)
	batch, err := model.Embed(prefixed, len(prefixed))
	if err != nil {
		return nil, fmt.Errorf("fastembed: embed batch: %w", err)
	}

	out := make([][]float32, len(batch))
	for i, v := range batch {
		out[i] = v
	}
	return out, nil
}

// Dimensions returns the embedding dimension, discovered on first use.
func (e *FastEmbedEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dimensions
}

// ModelName returns the configured model name.
func (e *FastEmbedEmbedder) ModelName() string {
	return e.cfg.Model
}

// Available reports whether the model can be loaded.
func (e *FastEmbedEmbedder) Available(ctx context.Context) bool {
	_, err := e.ensureLoaded()
	return err == nil
}

// Close releases the loaded model.
func (e *FastEmbedEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.model = nil
	return nil
}

// SetBatchIndex is a no-op; local CPU inference has no thermal timeout curve.
func (e *FastEmbedEmbedder) SetBatchIndex(_ int) {}

// SetFinalBatch is a no-op for the same reason.
func (e *FastEmbedEmbedder) SetFinalBatch(_ bool) {}
