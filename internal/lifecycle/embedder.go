// Package lifecycle provides embedder readiness checks for zero-config UX.
// It handles provider detection, API key checks, and inference-server
// reachability so a first-time user finds out about a missing credential
// or unreachable server before indexing starts, not midway through a batch.
package lifecycle

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

// Constants for embedder readiness checks.
const (
	// DefaultModel is the recommended local embedding model.
	DefaultModel = "fastembed:BAAI/bge-small-en-v1.5"

	// CheckTimeout bounds how long a single readiness probe may take.
	CheckTimeout = 5 * time.Second
)

// requiredAPIKey maps a remote provider to the environment variable that
// must hold its API key. Providers absent from this map need no key
// (fastembed runs locally; huggingface downloads public models anonymously).
var requiredAPIKey = map[string]string{
	"jina":   "JINA_API_KEY",
	"voyage": "VOYAGE_API_KEY",
	"google": "GOOGLE_API_KEY",
}

// EmbedderManager checks whether a configured embedding provider is ready
// to use, without constructing the embedder itself (which may download a
// model or open a client with side effects the caller doesn't want yet).
type EmbedderManager struct {
	client *http.Client
}

// NewEmbedderManager creates a readiness checker with a short-timeout client
// suitable for health probes.
func NewEmbedderManager() *EmbedderManager {
	return &EmbedderManager{
		client: &http.Client{Timeout: CheckTimeout},
	}
}

// EmbedderStatus reports whether a provider is ready and why not, if not.
type EmbedderStatus struct {
	Provider string
	Model    string
	Ready    bool
	Reason   string // human-readable explanation when Ready is false
}

// Status checks readiness for the given "provider:model" spec. teiEndpoint
// is only consulted when provider is "tei".
func (m *EmbedderManager) Status(ctx context.Context, modelSpec, teiEndpoint string) (*EmbedderStatus, error) {
	provider, model := splitProviderModel(modelSpec)
	status := &EmbedderStatus{Provider: provider, Model: model, Ready: true}

	switch provider {
	case "fastembed", "":
		// Local CPU provider: no daemon, downloads its ONNX model lazily on
		// first use. Always ready from the caller's point of view.
		return status, nil

	case "huggingface", "hub":
		// Public models download anonymously; a token only matters for
		// gated repos, which the embedder surfaces on first use instead.
		return status, nil

	case "tei":
		if teiEndpoint == "" {
			teiEndpoint = "http://localhost:8080"
		}
		if err := m.checkHTTPHealth(ctx, teiEndpoint); err != nil {
			status.Ready = false
			status.Reason = fmt.Sprintf("text-embeddings-inference server at %s is not responding: %v", teiEndpoint, err)
		}
		return status, nil

	default:
		envVar, known := requiredAPIKey[provider]
		if !known {
			status.Ready = false
			status.Reason = fmt.Sprintf("unknown embedding provider %q", provider)
			return status, nil
		}
		if os.Getenv(envVar) == "" {
			status.Ready = false
			status.Reason = fmt.Sprintf("%s is not set", envVar)
		}
		return status, nil
	}
}

// checkHTTPHealth probes a TEI-compatible server's /health endpoint.
func (m *EmbedderManager) checkHTTPHealth(ctx context.Context, endpoint string) error {
	ctx, cancel := context.WithTimeout(ctx, CheckTimeout)
	defer cancel()

	url := strings.TrimRight(endpoint, "/") + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build health check request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// splitProviderModel parses the "provider:model" notation used throughout
// the embedding config. A spec with no colon resolves to fastembed.
func splitProviderModel(spec string) (provider, model string) {
	if spec == "" {
		return "fastembed", ""
	}
	idx := strings.Index(spec, ":")
	if idx < 0 {
		return "fastembed", spec
	}
	return strings.ToLower(spec[:idx]), spec[idx+1:]
}

// MissingAPIKeyError indicates a remote provider has no API key configured.
type MissingAPIKeyError struct {
	Provider string
	EnvVar   string
}

func (e *MissingAPIKeyError) Error() string {
	return fmt.Sprintf("%s is not set (required for the %s embedding provider)", e.EnvVar, e.Provider)
}

// ServerUnreachableError indicates a self-hosted inference server could not
// be reached (currently only the tei provider).
type ServerUnreachableError struct {
	Endpoint string
	Cause    error
}

func (e *ServerUnreachableError) Error() string {
	return fmt.Sprintf("could not reach %s: %v", e.Endpoint, e.Cause)
}

// SetupInstructions returns provider-specific guidance for resolving a
// not-ready status.
func SetupInstructions(provider string) string {
	switch provider {
	case "tei":
		return `A text-embeddings-inference server is required for the tei provider.

Start one (Docker):
  docker run -p 8080:80 ghcr.io/huggingface/text-embeddings-inference:cpu-latest --model-id BAAI/bge-small-en-v1.5

Or point at an existing server:
  export SOURCELENS_TEI_ENDPOINT=http://your-server:8080

After it is reachable, run: sourcelens init`
	case "jina", "voyage", "google":
		envVar := requiredAPIKey[provider]
		return fmt.Sprintf(`The %s embedding provider requires an API key.

Set it and run 'sourcelens init' again:
  export %s=<your-api-key>`, provider, envVar)
	default:
		return `No setup is required for the local fastembed provider; its model
downloads automatically on first use.`
	}
}
