package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sourcelens/sourcelens/internal/config"
	"github.com/sourcelens/sourcelens/internal/store"
)

// patternNames enumerates the LLM-detectable (non-import) relationship
// types; the model is asked to pick one of these or "none".
var patternNames = []store.RelationshipType{
	store.RelationshipFactory,
	store.RelationshipObserver,
	store.RelationshipDI,
	store.RelationshipStrategy,
	store.RelationshipAdapter,
	store.RelationshipDecorator,
	store.RelationshipArchDep,
}

const patternPromptTemplate = `You are analyzing two source files for an architectural relationship.

File A (%s):
%s

File B (%s):
%s

Does File A use one of these design patterns in relation to File B: factory, observer, dependency_injection, strategy, adapter, decorator, architectural_dependency?

Respond with exactly one line in this format, nothing else:
pattern=<one of: factory, observer, dependency_injection, strategy, adapter, decorator, architectural_dependency, none> confidence=<0.0-1.0> reason=<short phrase>`

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// LLMPatternDetector proposes architectural-pattern edges by asking an
// OpenRouter chat model whether one file's content sample exhibits a known
// design-pattern relationship toward another. It returns nil (no edge)
// rather than an error whenever the model is unavailable, since the
// architectural-pattern step is always optional.
type LLMPatternDetector struct {
	client *http.Client
	model  string
	baseURL string
	apiKey string
}

// NewLLMPatternDetector builds a detector from the project's OpenRouter
// config. The API key is read from OPENROUTER_API_KEY; a detector without a
// key is still constructed but Detect always returns nil, so callers can
// wire it unconditionally and let availability gate itself.
func NewLLMPatternDetector(cfg config.OpenRouterConfig) *LLMPatternDetector {
	model := cfg.Model
	if model == "" {
		model = "openai/gpt-4o-mini"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	return &LLMPatternDetector{
		client:  &http.Client{Timeout: 10 * time.Second},
		model:   model,
		baseURL: baseURL,
		apiKey:  os.Getenv("OPENROUTER_API_KEY"),
	}
}

// Detect implements PatternDetector.
func (d *LLMPatternDetector) Detect(ctx context.Context, source, target *store.CodeNode) (*DetectedPattern, error) {
	if d.apiKey == "" {
		return nil, nil
	}

	prompt := fmt.Sprintf(patternPromptTemplate, source.Path, truncate(source.Sample, 800), target.Path, truncate(target.Sample, 800))
	reply, err := d.complete(ctx, prompt)
	if err != nil {
		slog.Warn("pattern detection request failed", slog.String("error", err.Error()))
		return nil, nil
	}
	return parsePatternReply(reply), nil
}

func (d *LLMPatternDetector) complete(ctx context.Context, prompt string) (string, error) {
	reqBody := chatCompletionRequest{
		Model:    d.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Stream:   false,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.apiKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var chatResp chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", err
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("empty response from model")
	}
	return chatResp.Choices[0].Message.Content, nil
}

// parsePatternReply parses the fixed "pattern=... confidence=... reason=..."
// line format the prompt demands. Malformed or "none" replies return nil.
func parsePatternReply(reply string) *DetectedPattern {
	reply = strings.TrimSpace(reply)
	fields := map[string]string{}
	for _, part := range strings.Fields(reply) {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		fields[kv[0]] = kv[1]
	}

	patternStr, ok := fields["pattern"]
	if !ok || patternStr == "none" {
		return nil
	}
	var matched store.RelationshipType
	for _, p := range patternNames {
		if string(p) == patternStr {
			matched = p
			break
		}
	}
	if matched == "" {
		return nil
	}

	confidence, err := strconv.ParseFloat(fields["confidence"], 64)
	if err != nil {
		return nil
	}

	return &DetectedPattern{Type: matched, Confidence: confidence, Reason: fields["reason"]}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
