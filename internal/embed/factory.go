package embed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// ProviderType identifies an embedding provider.
type ProviderType string

const (
	// ProviderFastEmbed is the local CPU provider (no API key, batch-friendly).
	ProviderFastEmbed ProviderType = "fastembed"

	// ProviderHuggingFace is the hub-hosted transformer provider.
	ProviderHuggingFace ProviderType = "huggingface"

	// ProviderJina uses the Jina AI remote embeddings API.
	ProviderJina ProviderType = "jina"

	// ProviderVoyage uses the Voyage AI remote embeddings API.
	ProviderVoyage ProviderType = "voyage"

	// ProviderGoogle uses the Google generative-language embeddings API.
	ProviderGoogle ProviderType = "google"

	// ProviderTEI talks to a running text-embeddings-inference server.
	ProviderTEI ProviderType = "tei"
)

// ValidProviders returns all valid provider names.
func ValidProviders() []string {
	return []string{
		string(ProviderFastEmbed),
		string(ProviderHuggingFace),
		string(ProviderJina),
		string(ProviderVoyage),
		string(ProviderGoogle),
		string(ProviderTEI),
	}
}

// IsValidProvider checks if a provider name is valid.
func IsValidProvider(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range ValidProviders() {
		if lower == p {
			return true
		}
	}
	return false
}

// ParseProvider converts a string to ProviderType. Unrecognized strings
// default to the local CPU provider.
func ParseProvider(s string) ProviderType {
	switch strings.ToLower(s) {
	case "huggingface", "hub":
		return ProviderHuggingFace
	case "jina":
		return ProviderJina
	case "voyage":
		return ProviderVoyage
	case "google":
		return ProviderGoogle
	case "tei":
		return ProviderTEI
	case "fastembed", "local":
		return ProviderFastEmbed
	default:
		return ProviderFastEmbed
	}
}

// String returns the string representation of ProviderType.
func (p ProviderType) String() string {
	return string(p)
}

// splitProviderModel parses the "provider:model" string form. A bare model
// string with no colon resolves to the local default provider.
func splitProviderModel(s string) (ProviderType, string) {
	if s == "" {
		return ProviderFastEmbed, ""
	}
	idx := strings.Index(s, ":")
	if idx < 0 {
		return ProviderFastEmbed, s
	}
	provider := ParseProvider(s[:idx])
	return provider, s[idx+1:]
}

// isCacheDisabled checks if embedding cache is disabled via environment.
func isCacheDisabled() bool {
	v := strings.ToLower(os.Getenv("SOURCELENS_EMBED_CACHE"))
	return v == "false" || v == "0" || v == "off" || v == "disabled"
}

// NewEmbedder creates an embedder from a "provider:model" string (or a bare
// model name, which resolves to the local default provider). The
// SOURCELENS_EMBEDDER environment variable overrides provider selection.
//
// Failure semantics: a remote provider with a missing API key fails fast,
// before any embedding work begins. A local provider that fails to
// initialize logs one warning and is returned, with a nil error, as a
// stand-in embedder that reports DefaultDimensions and fails every Embed
// call with the original cause.
//
// Query embedding caching is enabled by default. Set SOURCELENS_EMBED_CACHE=false
// to disable it.
func NewEmbedder(ctx context.Context, modelSpec string) (Embedder, error) {
	provider, model := splitProviderModel(modelSpec)

	if envProvider := os.Getenv("SOURCELENS_EMBEDDER"); envProvider != "" {
		provider = ParseProvider(envProvider)
	}

	embedder, err := newProviderEmbedder(ctx, provider, model)
	if err != nil {
		return nil, err
	}

	if !isCacheDisabled() {
		embedder = NewCachedEmbedderWithDefaults(embedder)
	}
	return embedder, nil
}

func newProviderEmbedder(ctx context.Context, provider ProviderType, model string) (Embedder, error) {
	switch provider {
	case ProviderHuggingFace:
		cfg := DefaultHubConfig()
		if model != "" {
			cfg.Repo = model
		}
		return NewHubEmbedder(cfg)

	case ProviderJina:
		if model == "" {
			return nil, fmt.Errorf("jina: model is required")
		}
		return NewJinaEmbedder(model)

	case ProviderVoyage:
		if model == "" {
			return nil, fmt.Errorf("voyage: model is required")
		}
		return NewVoyageEmbedder(model)

	case ProviderGoogle:
		if model == "" {
			return nil, fmt.Errorf("google: model is required")
		}
		return NewGoogleEmbedder(model)

	case ProviderTEI:
		cfg := DefaultTEIConfig()
		if endpoint := os.Getenv("SOURCELENS_TEI_ENDPOINT"); endpoint != "" {
			cfg.Endpoint = endpoint
		}
		if model != "" {
			cfg.Model = model
		}
		return NewTEIEmbedder(cfg)

	case ProviderFastEmbed:
		fallthrough
	default:
		cfg := DefaultFastEmbedConfig()
		if model != "" {
			cfg.Model = model
		}
		embedder, err := NewFastEmbedEmbedder(cfg)
		if err != nil {
			// Local model init failure: single warning, fall back to a
			// conservative dimension so the rest of the pipeline is not
			// blocked on a provider that could not be constructed.
			slog.Warn("local embedding model failed to initialize", slog.String("model", cfg.Model), slog.String("error", err.Error()))
			return &fallbackEmbedder{model: cfg.Model, dims: DefaultDimensions, cause: err}, nil
		}
		return embedder, nil
	}
}

// fallbackEmbedder stands in when the local CPU provider could not be
// constructed; it reports a conservative dimension and surfaces the
// original cause from Available/Embed so callers are not blocked on
// indexing startup, per the local-model-init-failure semantics.
type fallbackEmbedder struct {
	model string
	dims  int
	cause error
}

func (f *fallbackEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, fmt.Errorf("embedder unavailable: %w", f.cause)
}

func (f *fallbackEmbedder) EmbedBatch(_ context.Context, _ []string) ([][]float32, error) {
	return nil, fmt.Errorf("embedder unavailable: %w", f.cause)
}

func (f *fallbackEmbedder) EmbedBatchTyped(_ context.Context, _ []string, _ InputType) ([][]float32, error) {
	return nil, fmt.Errorf("embedder unavailable: %w", f.cause)
}

func (f *fallbackEmbedder) Dimensions() int             { return f.dims }
func (f *fallbackEmbedder) ModelName() string           { return f.model }
func (f *fallbackEmbedder) Available(_ context.Context) bool { return false }
func (f *fallbackEmbedder) Close() error                { return nil }
func (f *fallbackEmbedder) SetBatchIndex(_ int)         {}
func (f *fallbackEmbedder) SetFinalBatch(_ bool)        {}

// CodeTextModels names the two models configured for a project: one used
// for blocks that came from a language plug-in, one for text/markdown
// blocks, per the code-vs-text model split.
type CodeTextModels struct {
	Code string
	Text string
}

// NewDispatcher builds the pair of embedders a project needs: one for code
// blocks and one for text/markdown blocks. The two may resolve to the same
// underlying provider and model.
func NewDispatcher(ctx context.Context, models CodeTextModels) (code Embedder, text Embedder, err error) {
	code, err = NewEmbedder(ctx, models.Code)
	if err != nil {
		return nil, nil, fmt.Errorf("code embedder: %w", err)
	}
	if models.Text == models.Code {
		return code, code, nil
	}
	text, err = NewEmbedder(ctx, models.Text)
	if err != nil {
		return nil, nil, fmt.Errorf("text embedder: %w", err)
	}
	return code, text, nil
}

// EmbedderInfo contains information about an embedder.
type EmbedderInfo struct {
	Provider   ProviderType
	Model      string
	Dimensions int
	Available  bool
}

// GetInfo returns information about an embedder.
func GetInfo(ctx context.Context, embedder Embedder) EmbedderInfo {
	info := EmbedderInfo{
		Model:      embedder.ModelName(),
		Dimensions: embedder.Dimensions(),
		Available:  embedder.Available(ctx),
	}

	inner := embedder
	if cached, ok := embedder.(*CachedEmbedder); ok {
		inner = cached.inner
	}

	switch inner.(type) {
	case *HubEmbedder:
		info.Provider = ProviderHuggingFace
	case *JinaEmbedder:
		info.Provider = ProviderJina
	case *VoyageEmbedder:
		info.Provider = ProviderVoyage
	case *GoogleEmbedder:
		info.Provider = ProviderGoogle
	case *TEIEmbedder:
		info.Provider = ProviderTEI
	default:
		info.Provider = ProviderFastEmbed
	}
	return info
}

// MustNewEmbedder creates an embedder and panics on failure. Use only in
// tests or initialization code where failure is fatal.
func MustNewEmbedder(ctx context.Context, modelSpec string) Embedder {
	embedder, err := NewEmbedder(ctx, modelSpec)
	if err != nil {
		panic(fmt.Sprintf("failed to create embedder: %v", err))
	}
	return embedder
}

// nullEmbedder never embeds; it exists so BM25-only callers can satisfy the
// Embedder contract without loading a model or making a network call.
type nullEmbedder struct {
	dims int
}

// NewNullEmbedder returns an Embedder whose Embed/EmbedBatch methods always
// fail. Callers that only need Dimensions()/ModelName() - such as BM25-only
// search - can use it to avoid provider initialization entirely.
func NewNullEmbedder(dims int) Embedder {
	return &nullEmbedder{dims: dims}
}

func (n *nullEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, fmt.Errorf("embedder not initialized (bm25-only mode)")
}

func (n *nullEmbedder) EmbedBatch(_ context.Context, _ []string) ([][]float32, error) {
	return nil, fmt.Errorf("embedder not initialized (bm25-only mode)")
}

func (n *nullEmbedder) EmbedBatchTyped(_ context.Context, _ []string, _ InputType) ([][]float32, error) {
	return nil, fmt.Errorf("embedder not initialized (bm25-only mode)")
}

func (n *nullEmbedder) Dimensions() int                 { return n.dims }
func (n *nullEmbedder) ModelName() string               { return "none" }
func (n *nullEmbedder) Available(_ context.Context) bool { return false }
func (n *nullEmbedder) Close() error                    { return nil }
func (n *nullEmbedder) SetBatchIndex(_ int)             {}
func (n *nullEmbedder) SetFinalBatch(_ bool)            {}
