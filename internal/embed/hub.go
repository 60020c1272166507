package embed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// HubConfig configures the hub-hosted transformer provider. Files are
// downloaded once into CacheDir and reused across runs.
type HubConfig struct {
	Repo      string // e.g. "sentence-transformers/all-MiniLM-L6-v2"
	BaseURL   string // hub base URL, defaults to huggingface.co
	CacheDir  string
	MaxLength int // token truncation length, 0 uses 256
}

// DefaultHubConfig returns the default hub-transformer configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		BaseURL:   "https://huggingface.co",
		CacheDir:  defaultModelCacheDir(),
		MaxLength: 256,
	}
}

type hubModelConfig struct {
	HiddenSize int `json:"hidden_size"`
	DModel     int `json:"d_model"`
}

type hubTokenizerFile struct {
	Model struct {
		Vocab map[string]int64 `json:"vocab"`
	} `json:"model"`
}

// hubTokenizer is a greedy longest-subword tokenizer built from a
// tokenizer.json vocab. It does not apply BPE merge rules; it matches the
// teacher's CPU-budget philosophy of favoring a simple, dependency-light
// path over a full tokenizer reimplementation.
type hubTokenizer struct {
	vocab   map[string]int64
	unkID   int64
	clsID   int64
	sepID   int64
	hasCLS  bool
	hasSEP  bool
}

func newHubTokenizer(path string) (*hubTokenizer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tf hubTokenizerFile
	if err := json.Unmarshal(raw, &tf); err != nil {
		return nil, err
	}
	t := &hubTokenizer{vocab: tf.Model.Vocab, unkID: 100}
	if id, ok := t.vocab["[UNK]"]; ok {
		t.unkID = id
	}
	if id, ok := t.vocab["[CLS]"]; ok {
		t.clsID, t.hasCLS = id, true
	}
	if id, ok := t.vocab["[SEP]"]; ok {
		t.sepID, t.hasSEP = id, true
	}
	return t, nil
}

func (t *hubTokenizer) encode(text string, maxLen int) []int64 {
	ids := make([]int64, 0, maxLen)
	if t.hasCLS {
		ids = append(ids, t.clsID)
	}
	for _, word := range strings.Fields(strings.ToLower(text)) {
		ids = append(ids, t.encodeWord(word)...)
		if len(ids) >= maxLen-1 {
			break
		}
	}
	if len(ids) > maxLen-1 {
		ids = ids[:maxLen-1]
	}
	if t.hasSEP {
		ids = append(ids, t.sepID)
	}
	if len(ids) > maxLen {
		ids = ids[:maxLen]
	}
	return ids
}

// encodeWord greedily matches the longest vocab entry starting at each
// position, falling back to the unknown token when nothing matches.
func (t *hubTokenizer) encodeWord(word string) []int64 {
	var ids []int64
	for len(word) > 0 {
		matched := false
		for end := len(word); end > 0; end-- {
			piece := word[:end]
			if end != len(word) {
				piece = "##" + piece
			}
			if id, ok := t.vocab[piece]; ok {
				ids = append(ids, id)
				word = word[end:]
				matched = true
				break
			}
		}
		if !matched {
			ids = append(ids, t.unkID)
			break
		}
	}
	return ids
}

// HubEmbedder runs a downloaded ONNX transformer with mean pooling and L2
// normalization, following the teacher's lazy-load + RWMutex cache pattern.
type HubEmbedder struct {
	cfg        HubConfig
	client     *http.Client
	mu         sync.RWMutex
	session    *ort.DynamicAdvancedSession
	tokenizer  *hubTokenizer
	dimensions int
	loaded     bool
}

// NewHubEmbedder creates a hub-hosted transformer embedder. Download and
// session initialization happen lazily on first use.
func NewHubEmbedder(cfg HubConfig) (*HubEmbedder, error) {
	if cfg.Repo == "" {
		return nil, fmt.Errorf("hub: repo is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultHubConfig().BaseURL
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = DefaultHubConfig().CacheDir
	}
	if cfg.MaxLength == 0 {
		cfg.MaxLength = DefaultHubConfig().MaxLength
	}
	return &HubEmbedder{cfg: cfg, client: &http.Client{}}, nil
}

func (e *HubEmbedder) repoDir() string {
	safe := strings.ReplaceAll(e.cfg.Repo, "/", "__")
	return filepath.Join(e.cfg.CacheDir, "hub", safe)
}

func (e *HubEmbedder) downloadFile(ctx context.Context, name string) (string, error) {
	dir := e.repoDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	dest := filepath.Join(dir, name)
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	url := fmt.Sprintf("%s/%s/resolve/main/%s", e.cfg.BaseURL, e.cfg.Repo, name)
	err := DownloadWithRetry(ctx, DefaultRetryConfig(), func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := e.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("hub: %s returned %d", url, resp.StatusCode)
		}
		out, err := os.Create(dest)
		if err != nil {
			return err
		}
		defer out.Close()
		_, err = io.Copy(out, resp.Body)
		return err
	})
	if err != nil {
		return "", err
	}
	return dest, nil
}

func (e *HubEmbedder) ensureLoaded(ctx context.Context) error {
	e.mu.RLock()
	if e.loaded {
		e.mu.RUnlock()
		return nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loaded {
		return nil
	}

	configPath, err := e.downloadFile(ctx, "config.json")
	if err != nil {
		return fmt.Errorf("hub: download config.json: %w", err)
	}
	tokenizerPath, err := e.downloadFile(ctx, "tokenizer.json")
	if err != nil {
		return fmt.Errorf("hub: download tokenizer.json: %w", err)
	}
	modelPath, err := e.downloadFile(ctx, "model.onnx")
	if err != nil {
		return fmt.Errorf("hub: download model.onnx: %w", err)
	}

	raw, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("hub: read config.json: %w", err)
	}
	var hc hubModelConfig
	if err := json.Unmarshal(raw, &hc); err != nil {
		return fmt.Errorf("hub: parse config.json: %w", err)
	}
	dim := hc.HiddenSize
	if dim == 0 {
		dim = hc.DModel
	}
	if dim == 0 {
		return fmt.Errorf("hub: could not discover embedding dimension from config.json")
	}

	tok, err := newHubTokenizer(tokenizerPath)
	if err != nil {
		return fmt.Errorf("hub: load tokenizer.json: %w", err)
	}

	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("hub: initialize onnxruntime: %w", err)
		}
	}
	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{"input_ids", "attention_mask"},
		[]string{"last_hidden_state"}, nil)
	if err != nil {
		return fmt.Errorf("hub: load onnx session: %w", err)
	}

	e.session = session
	e.tokenizer = tok
	e.dimensions = dim
	e.loaded = true
	return nil
}

// Embed generates a single embedding.
func (e *HubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings with no input-type hint.
func (e *HubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return e.EmbedBatchTyped(ctx, texts, InputTypeNone)
}

// EmbedBatchTyped tokenizes each text, runs the ONNX session, mean-pools the
// final hidden states over the attention mask, and L2-normalizes the result.
func (e *HubEmbedder) EmbedBatchTyped(ctx context.Context, texts []string, inputType InputType) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if err := e.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	prefixed := applyInputTypePrefix(texts, inputType)

	maxLen := 0
	encoded := make([][]int64, len(prefixed))
	for i, text := range prefixed {
		ids := e.tokenizer.encode(text, e.cfg.MaxLength)
		encoded[i] = ids
		if len(ids) > maxLen {
			maxLen = len(ids)
		}
	}

	batch := len(prefixed)
	inputIDs := make([]int64, batch*maxLen)
	attentionMask := make([]int64, batch*maxLen)
	for i, ids := range encoded {
		for j, id := range ids {
			inputIDs[i*maxLen+j] = id
			attentionMask[i*maxLen+j] = 1
		}
	}

	shape := ort.NewShape(int64(batch), int64(maxLen))
	idsTensor, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("hub: build input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()
	maskTensor, err := ort.NewTensor(shape, attentionMask)
	if err != nil {
		return nil, fmt.Errorf("hub: build attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	outputShape := ort.NewShape(int64(batch), int64(maxLen), int64(e.dimensions))
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		return nil, fmt.Errorf("hub: allocate output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	if err := e.session.Run([]ort.Value{idsTensor, maskTensor}, []ort.Value{outputTensor}); err != nil {
		return nil, fmt.Errorf("hub: run session: %w", err)
	}

	hidden := outputTensor.GetData()
	out := make([][]float32, batch)
	for i := 0; i < batch; i++ {
		sum := make([]float64, e.dimensions)
		var count int
		for j := 0; j < maxLen; j++ {
			if attentionMask[i*maxLen+j] == 0 {
				continue
			}
			count++
			base := (i*maxLen + j) * e.dimensions
			for d := 0; d < e.dimensions; d++ {
				sum[d] += float64(hidden[base+d])
			}
		}
		pooled := make([]float32, e.dimensions)
		if count > 0 {
			for d := range pooled {
				pooled[d] = float32(sum[d] / float64(count))
			}
		}
		out[i] = normalizeVector(pooled)
	}
	return out, nil
}

// Dimensions returns the dimension discovered from config.json.
func (e *HubEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dimensions
}

// ModelName returns the hub repo identifier.
func (e *HubEmbedder) ModelName() string {
	return e.cfg.Repo
}

// Available reports whether the model session could be loaded.
func (e *HubEmbedder) Available(ctx context.Context) bool {
	return e.ensureLoaded(ctx) == nil
}

// Close releases the ONNX session.
func (e *HubEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
	e.loaded = false
	return nil
}

// SetBatchIndex is a no-op; hub inference has no thermal timeout curve.
func (e *HubEmbedder) SetBatchIndex(_ int) {}

// SetFinalBatch is a no-op for the same reason.
func (e *HubEmbedder) SetFinalBatch(_ bool) {}
