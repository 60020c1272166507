package embed

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Provider Parsing
// ============================================================================

func TestParseProvider(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want ProviderType
	}{
		{"fastembed", "fastembed", ProviderFastEmbed},
		{"local alias", "local", ProviderFastEmbed},
		{"huggingface", "huggingface", ProviderHuggingFace},
		{"hub alias", "hub", ProviderHuggingFace},
		{"jina", "jina", ProviderJina},
		{"voyage", "voyage", ProviderVoyage},
		{"google", "google", ProviderGoogle},
		{"tei", "tei", ProviderTEI},
		{"unrecognized defaults to fastembed", "bogus", ProviderFastEmbed},
		{"case insensitive", "JINA", ProviderJina},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseProvider(tt.in))
		})
	}
}

func TestIsValidProvider(t *testing.T) {
	assert.True(t, IsValidProvider("jina"))
	assert.True(t, IsValidProvider("FASTEMBED"))
	assert.False(t, IsValidProvider("bogus"))
}

func TestSplitProviderModel(t *testing.T) {
	tests := []struct {
		name         string
		spec         string
		wantProvider ProviderType
		wantModel    string
	}{
		{"provider and model", "jina:jina-embeddings-v3", ProviderJina, "jina-embeddings-v3"},
		{"bare model resolves to local default", "some-model", ProviderFastEmbed, "some-model"},
		{"empty string", "", ProviderFastEmbed, ""},
		{"hub alias", "hub:sentence-transformers/all-MiniLM-L6-v2", ProviderHuggingFace, "sentence-transformers/all-MiniLM-L6-v2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, model := splitProviderModel(tt.spec)
			assert.Equal(t, tt.wantProvider, provider)
			assert.Equal(t, tt.wantModel, model)
		})
	}
}

// ============================================================================
// Remote Provider Model Validation (construction-time, no network)
// ============================================================================

func TestNewJinaEmbedder_UnsupportedModel_ReturnsError(t *testing.T) {
	t.Setenv("JINA_API_KEY", "test-key")
	_, err := NewJinaEmbedder("not-a-real-model")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported Jina model")
}

func TestNewJinaEmbedder_MissingAPIKey_ReturnsError(t *testing.T) {
	t.Setenv("JINA_API_KEY", "")
	os.Unsetenv("JINA_API_KEY")
	_, err := NewJinaEmbedder("jina-embeddings-v3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JINA_API_KEY")
}

func TestNewJinaEmbedder_ValidModel_SetsDimension(t *testing.T) {
	t.Setenv("JINA_API_KEY", "test-key")
	e, err := NewJinaEmbedder("jina-embeddings-v2-base-code")
	require.NoError(t, err)
	assert.Equal(t, 768, e.Dimensions())
}

func TestNewVoyageEmbedder_UnsupportedModel_ReturnsError(t *testing.T) {
	t.Setenv("VOYAGE_API_KEY", "test-key")
	_, err := NewVoyageEmbedder("not-a-real-model")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported Voyage model")
}

func TestNewVoyageEmbedder_ValidModel_SetsDimension(t *testing.T) {
	t.Setenv("VOYAGE_API_KEY", "test-key")
	e, err := NewVoyageEmbedder("voyage-code-2")
	require.NoError(t, err)
	assert.Equal(t, 1536, e.Dimensions())
}

func TestNewGoogleEmbedder_UnsupportedModel_ReturnsError(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "test-key")
	_, err := NewGoogleEmbedder("not-a-real-model")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported Google model")
}

func TestNewGoogleEmbedder_ValidModel_SetsDimension(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "test-key")
	e, err := NewGoogleEmbedder("gemini-embedding-001")
	require.NoError(t, err)
	assert.Equal(t, 3072, e.Dimensions())
}

// ============================================================================
// NewEmbedder dispatch
// ============================================================================

func TestNewEmbedder_MissingAPIKey_FailsBeforeAnyWork(t *testing.T) {
	os.Unsetenv("JINA_API_KEY")
	os.Unsetenv("SOURCELENS_EMBEDDER")

	ctx := context.Background()
	embedder, err := NewEmbedder(ctx, "jina:jina-embeddings-v3")

	require.Error(t, err, "missing API key should fail fast")
	assert.Nil(t, embedder)
}

func TestNewEmbedder_EnvVarOverridesProvider(t *testing.T) {
	t.Setenv("SOURCELENS_EMBEDDER", "jina")
	t.Setenv("JINA_API_KEY", "test-key")

	ctx := context.Background()
	embedder, err := NewEmbedder(ctx, "some-unrelated-model:jina-embeddings-v3")
	require.NoError(t, err)
	require.NotNil(t, embedder)
	defer embedder.Close()
}

func TestNewEmbedder_CacheDisabledViaEnv(t *testing.T) {
	t.Setenv("SOURCELENS_EMBED_CACHE", "false")
	assert.True(t, isCacheDisabled())
}

func TestNewEmbedder_CacheEnabledByDefault(t *testing.T) {
	os.Unsetenv("SOURCELENS_EMBED_CACHE")
	assert.False(t, isCacheDisabled())
}

// ============================================================================
// GetInfo
// ============================================================================

func TestGetInfo_UnwrapsCachedEmbedder(t *testing.T) {
	t.Setenv("JINA_API_KEY", "test-key")
	inner, err := NewJinaEmbedder("jina-embeddings-v3")
	require.NoError(t, err)
	cached := NewCachedEmbedderWithDefaults(inner)
	defer cached.Close()

	info := GetInfo(context.Background(), cached)
	assert.Equal(t, ProviderJina, info.Provider)
	assert.Equal(t, 1024, info.Dimensions)
}

// ============================================================================
// CodeTextModels dispatcher
// ============================================================================

func TestNewDispatcher_SameModelReusesEmbedder(t *testing.T) {
	t.Setenv("JINA_API_KEY", "test-key")
	ctx := context.Background()
	code, text, err := NewDispatcher(ctx, CodeTextModels{
		Code: "jina:jina-embeddings-v2-base-code",
		Text: "jina:jina-embeddings-v2-base-code",
	})
	require.NoError(t, err)
	assert.Same(t, code, text)
}

func TestNewDispatcher_DifferentModelsCreateDistinctEmbedders(t *testing.T) {
	t.Setenv("JINA_API_KEY", "test-key")
	t.Setenv("VOYAGE_API_KEY", "test-key")
	ctx := context.Background()
	code, text, err := NewDispatcher(ctx, CodeTextModels{
		Code: "jina:jina-embeddings-v2-base-code",
		Text: "voyage:voyage-3.5",
	})
	require.NoError(t, err)
	assert.NotSame(t, code, text)
	defer code.Close()
	defer text.Close()
}
