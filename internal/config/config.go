package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// ProjectType represents the type of project detected.
type ProjectType string

const (
	ProjectTypeGo      ProjectType = "go"
	ProjectTypeNode    ProjectType = "node"
	ProjectTypePython  ProjectType = "python"
	ProjectTypeUnknown ProjectType = "unknown"
)

// Config represents the complete SourceLens configuration.
type Config struct {
	Version     int               `toml:"version" json:"version"`
	Paths       PathsConfig       `toml:"paths" json:"paths"`
	Search      SearchConfig      `toml:"search" json:"search"`
	Embeddings  EmbeddingsConfig  `toml:"embedding" json:"embedding"`
	Contextual  ContextualConfig  `toml:"contextual" json:"contextual"`
	Performance PerformanceConfig `toml:"performance" json:"performance"`
	Server      ServerConfig      `toml:"server" json:"server"`
	Submodules  SubmoduleConfig   `toml:"submodules" json:"submodules"`
	Sessions    SessionsConfig    `toml:"sessions" json:"sessions"`
	Compaction  CompactionConfig  `toml:"compaction" json:"compaction"`
	GraphRAG    GraphRAGConfig    `toml:"graphrag" json:"graphrag"`
	OpenRouter  OpenRouterConfig  `toml:"openrouter" json:"openrouter"`
}

// PathsConfig configures which paths to include and exclude.
type PathsConfig struct {
	Include []string `toml:"include" json:"include"`
	Exclude []string `toml:"exclude" json:"exclude"`
}

// SearchConfig configures hybrid search parameters.
// Weights and RRF constant are configurable via:
//  1. User config (~/.config/sourcelens/config.toml) - personal defaults
//  2. Project config (sourcelens.toml) - per-repo tuning
//  3. Env vars (SOURCELENS_BM25_WEIGHT, SOURCELENS_SEMANTIC_WEIGHT, SOURCELENS_RRF_CONSTANT) - highest priority
type SearchConfig struct {
	// BM25Weight is the weight for BM25 keyword matching (0.0-1.0).
	// Must sum to 1.0 with SemanticWeight.
	BM25Weight float64 `toml:"bm25_weight" json:"bm25_weight"`

	// SemanticWeight is the weight for semantic similarity (0.0-1.0).
	// Must sum to 1.0 with BM25Weight.
	SemanticWeight float64 `toml:"semantic_weight" json:"semantic_weight"`

	// RRFConstant is the RRF fusion smoothing parameter (k).
	// Default: 60 (industry standard used by Azure AI Search, OpenSearch).
	RRFConstant int `toml:"rrf_constant" json:"rrf_constant"`

	// BM25Backend selects the BM25 index backend.
	// Options: "sqlite" (default, concurrent access) or "bleve" (legacy, single-process)
	BM25Backend string `toml:"bm25_backend" json:"bm25_backend"`

	ChunkSize    int `toml:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `toml:"chunk_overlap" json:"chunk_overlap"`
	MaxResults   int `toml:"max_results" json:"max_results"`
}

// EmbeddingsConfig configures the embedding dispatcher. CodeModel and
// TextModel are "provider:model" strings (or a bare model name, which
// resolves to the local default provider) — the same notation accepted by
// the embedder factory, letting a project pick distinct models for code
// blocks and text/markdown blocks.
type EmbeddingsConfig struct {
	Provider             string `toml:"provider" json:"provider"`
	CodeModel            string `toml:"code_model" json:"code_model"`
	TextModel            string `toml:"text_model" json:"text_model"`
	Dimensions           int    `toml:"dimensions" json:"dimensions"`
	BatchSize            int    `toml:"batch_size" json:"batch_size"`
	ModelDownloadTimeout string `toml:"model_download_timeout" json:"model_download_timeout"`

	// TEIEndpoint is the text-embeddings-inference server URL, used when
	// Provider (or either model spec) selects the "tei" provider.
	TEIEndpoint string `toml:"tei_endpoint" json:"tei_endpoint"`
}

// GraphRAGConfig configures the code-graph builder.
type GraphRAGConfig struct {
	// Enabled turns on graph extraction during indexing (default: true).
	Enabled bool `toml:"enabled" json:"enabled"`
	// MaxHops bounds traversal depth for neighborhood queries (default: 2).
	MaxHops int `toml:"max_hops" json:"max_hops"`
	// MaxNodesPerQuery caps how many nodes a single traversal can return.
	MaxNodesPerQuery int `toml:"max_nodes_per_query" json:"max_nodes_per_query"`
}

// OpenRouterConfig configures the optional OpenRouter-backed LLM client used
// for contextual retrieval prefixes and memory summarization when a local
// model isn't available.
type OpenRouterConfig struct {
	// Model is the OpenRouter model identifier (e.g. "openai/gpt-4o-mini").
	Model string `toml:"model" json:"model"`
	// BaseURL overrides the default OpenRouter API endpoint.
	BaseURL string `toml:"base_url" json:"base_url"`
}

// PerformanceConfig configures performance tuning options.
type PerformanceConfig struct {
	MaxFiles      int    `toml:"max_files" json:"max_files"`
	IndexWorkers  int    `toml:"index_workers" json:"index_workers"`
	WatchDebounce string `toml:"watch_debounce" json:"watch_debounce"`
	CacheSize     int    `toml:"cache_size" json:"cache_size"`
	MemoryLimit   string `toml:"memory_limit" json:"memory_limit"`
	Quantization  string `toml:"quantization" json:"quantization"`
	SQLiteCacheMB int    `toml:"sqlite_cache_mb" json:"sqlite_cache_mb"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport string `toml:"transport" json:"transport"`
	Port      int    `toml:"port" json:"port"`
	LogLevel  string `toml:"log_level" json:"log_level"`
}

// SubmoduleConfig configures git submodule discovery.
type SubmoduleConfig struct {
	Enabled   bool     `toml:"enabled" json:"enabled"`
	Recursive bool     `toml:"recursive" json:"recursive"`
	Include   []string `toml:"include" json:"include"`
	Exclude   []string `toml:"exclude" json:"exclude"`
}

// SessionsConfig configures session management.
type SessionsConfig struct {
	StoragePath string `toml:"storage_path" json:"storage_path"`
	AutoSave    bool   `toml:"auto_save" json:"auto_save"`
	MaxSessions int    `toml:"max_sessions" json:"max_sessions"`
}

// CompactionConfig configures automatic background compaction of the vector
// store once orphaned entries accumulate past a threshold.
type CompactionConfig struct {
	Enabled         bool    `toml:"enabled" json:"enabled"`
	OrphanThreshold float64 `toml:"orphan_threshold" json:"orphan_threshold"`
	MinOrphanCount  int     `toml:"min_orphan_count" json:"min_orphan_count"`
	IdleTimeout     string  `toml:"idle_timeout" json:"idle_timeout"`
	Cooldown        string  `toml:"cooldown" json:"cooldown"`
}

// ContextualConfig configures contextual retrieval: a short LLM-written
// summary prepended to a chunk before it is embedded, to keep local
// similarity search aware of document-level context.
// See: https://www.anthropic.com/news/contextual-retrieval
type ContextualConfig struct {
	Enabled      bool   `toml:"enabled" json:"enabled"`
	Model        string `toml:"model" json:"model"`
	Timeout      string `toml:"timeout" json:"timeout"`
	BatchSize    int    `toml:"batch_size" json:"batch_size"`
	FallbackOnly bool   `toml:"fallback_only" json:"fallback_only"`
	CodeChunks   bool   `toml:"code_chunks" json:"code_chunks"`
}

// defaultExcludePatterns are always excluded.
var defaultExcludePatterns = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
	"**/*.min.js",
	"**/*.min.css",
	"**/package-lock.json",
	"**/yarn.lock",
	"**/pnpm-lock.yaml",
	"**/go.sum",
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Include: []string{},
			Exclude: defaultExcludePatterns,
		},
		Search: SearchConfig{
			BM25Weight:     0.65,
			SemanticWeight: 0.35,
			RRFConstant:    60,
			BM25Backend:    "sqlite",
			ChunkSize:      1500,
			ChunkOverlap:   200,
			MaxResults:     20,
		},
		Embeddings: EmbeddingsConfig{
			Provider:             "", // empty lets each model spec name its own provider
			CodeModel:            "fastembed:BAAI/bge-small-en-v1.5",
			TextModel:            "fastembed:BAAI/bge-small-en-v1.5",
			Dimensions:           0, // auto-detect from embedder
			BatchSize:            32,
			ModelDownloadTimeout: "10m", // large hub models may take time on slow networks
			TEIEndpoint:          "",    // empty uses http://localhost:8080
		},
		GraphRAG: GraphRAGConfig{
			Enabled:          true,
			MaxHops:          2,
			MaxNodesPerQuery: 200,
		},
		OpenRouter: OpenRouterConfig{
			Model:   "",
			BaseURL: "",
		},
		Performance: PerformanceConfig{
			MaxFiles:      100000,
			IndexWorkers:  runtime.NumCPU(),
			WatchDebounce: "500ms",
			CacheSize:     1000,
			MemoryLimit:   "auto",
			Quantization:  "F16",
			SQLiteCacheMB: 64,
		},
		Server: ServerConfig{
			Transport: "stdio",
			Port:      8765,
			LogLevel:  "debug",
		},
		Submodules: SubmoduleConfig{
			Enabled:   false,
			Recursive: true,
			Include:   nil,
			Exclude:   nil,
		},
		Sessions: SessionsConfig{
			StoragePath: defaultSessionsPath(),
			AutoSave:    true,
			MaxSessions: 20,
		},
		Compaction: CompactionConfig{
			Enabled:         true,
			OrphanThreshold: 0.2,
			MinOrphanCount:  100,
			IdleTimeout:     "30s",
			Cooldown:        "1h",
		},
		Contextual: ContextualConfig{
			Enabled:      true,
			Model:        "openai/gpt-4o-mini",
			Timeout:      "5s",
			BatchSize:    8,
			FallbackOnly: false,
			CodeChunks:   false,
		},
	}
}

// defaultSessionsPath returns the default sessions storage path.
func defaultSessionsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".sourcelens", "sessions")
	}
	return filepath.Join(home, ".sourcelens", "sessions")
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/sourcelens/config.toml (if XDG_CONFIG_HOME is set)
//   - ~/.config/sourcelens/config.toml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "sourcelens", "config.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "sourcelens", "config.toml")
	}
	return filepath.Join(home, ".config", "sourcelens", "config.toml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist (that's OK).
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()

	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadTOML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}

	return cfg, nil
}

// Load loads configuration from the specified directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/sourcelens/config.toml)
//  3. Project config (sourcelens.toml in project root)
//  4. Environment variables (SOURCELENS_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from sourcelens.toml or the
// dotfile variant .sourcelens.toml.
func (c *Config) loadFromFile(dir string) error {
	tomlPath := filepath.Join(dir, "sourcelens.toml")
	if _, err := os.Stat(tomlPath); err == nil {
		return c.loadTOML(tomlPath)
	}

	dotPath := filepath.Join(dir, ".sourcelens.toml")
	if _, err := os.Stat(dotPath); err == nil {
		return c.loadTOML(dotPath)
	}

	return nil
}

// loadTOML loads and merges configuration from a TOML file.
func (c *Config) loadTOML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if _, err := toml.Decode(string(data), &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	// Paths
	if len(other.Paths.Include) > 0 {
		c.Paths.Include = other.Paths.Include
	}
	if len(other.Paths.Exclude) > 0 {
		c.Paths.Exclude = append(c.Paths.Exclude, other.Paths.Exclude...)
	}

	// Search weights and RRF constant
	if other.Search.BM25Weight != 0 {
		c.Search.BM25Weight = other.Search.BM25Weight
	}
	if other.Search.SemanticWeight != 0 {
		c.Search.SemanticWeight = other.Search.SemanticWeight
	}
	if other.Search.RRFConstant != 0 {
		c.Search.RRFConstant = other.Search.RRFConstant
	}
	if other.Search.BM25Backend != "" {
		c.Search.BM25Backend = other.Search.BM25Backend
	}
	if other.Search.ChunkSize != 0 {
		c.Search.ChunkSize = other.Search.ChunkSize
	}
	if other.Search.ChunkOverlap != 0 {
		c.Search.ChunkOverlap = other.Search.ChunkOverlap
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}

	// Embeddings
	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.CodeModel != "" {
		c.Embeddings.CodeModel = other.Embeddings.CodeModel
	}
	if other.Embeddings.TextModel != "" {
		c.Embeddings.TextModel = other.Embeddings.TextModel
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.ModelDownloadTimeout != "" {
		c.Embeddings.ModelDownloadTimeout = other.Embeddings.ModelDownloadTimeout
	}
	if other.Embeddings.TEIEndpoint != "" {
		c.Embeddings.TEIEndpoint = other.Embeddings.TEIEndpoint
	}

	// GraphRAG
	if other.GraphRAG.MaxHops != 0 {
		c.GraphRAG.MaxHops = other.GraphRAG.MaxHops
	}
	if other.GraphRAG.MaxNodesPerQuery != 0 {
		c.GraphRAG.MaxNodesPerQuery = other.GraphRAG.MaxNodesPerQuery
	}

	// OpenRouter
	if other.OpenRouter.Model != "" {
		c.OpenRouter.Model = other.OpenRouter.Model
	}
	if other.OpenRouter.BaseURL != "" {
		c.OpenRouter.BaseURL = other.OpenRouter.BaseURL
	}

	// Performance
	if other.Performance.MaxFiles != 0 {
		c.Performance.MaxFiles = other.Performance.MaxFiles
	}
	if other.Performance.IndexWorkers != 0 {
		c.Performance.IndexWorkers = other.Performance.IndexWorkers
	}
	if other.Performance.WatchDebounce != "" {
		c.Performance.WatchDebounce = other.Performance.WatchDebounce
	}
	if other.Performance.CacheSize != 0 {
		c.Performance.CacheSize = other.Performance.CacheSize
	}
	if other.Performance.MemoryLimit != "" {
		c.Performance.MemoryLimit = other.Performance.MemoryLimit
	}
	if other.Performance.Quantization != "" {
		c.Performance.Quantization = other.Performance.Quantization
	}
	if other.Performance.SQLiteCacheMB != 0 {
		c.Performance.SQLiteCacheMB = other.Performance.SQLiteCacheMB
	}

	// Server
	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.Port != 0 {
		c.Server.Port = other.Server.Port
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}

	// Submodules
	if other.Submodules.Enabled {
		c.Submodules.Enabled = other.Submodules.Enabled
	}
	if len(other.Submodules.Include) > 0 || len(other.Submodules.Exclude) > 0 || other.Submodules.Enabled {
		c.Submodules.Recursive = other.Submodules.Recursive
	}
	if len(other.Submodules.Include) > 0 {
		c.Submodules.Include = other.Submodules.Include
	}
	if len(other.Submodules.Exclude) > 0 {
		c.Submodules.Exclude = other.Submodules.Exclude
	}

	// Sessions
	if other.Sessions.StoragePath != "" {
		c.Sessions.StoragePath = other.Sessions.StoragePath
		c.Sessions.AutoSave = other.Sessions.AutoSave
	}
	if other.Sessions.MaxSessions > 0 {
		c.Sessions.MaxSessions = other.Sessions.MaxSessions
	}

	// Compaction
	if other.Compaction.OrphanThreshold != 0 || other.Compaction.MinOrphanCount != 0 ||
		other.Compaction.IdleTimeout != "" || other.Compaction.Cooldown != "" {
		c.Compaction.Enabled = other.Compaction.Enabled
	}
	if other.Compaction.OrphanThreshold != 0 {
		c.Compaction.OrphanThreshold = other.Compaction.OrphanThreshold
	}
	if other.Compaction.MinOrphanCount != 0 {
		c.Compaction.MinOrphanCount = other.Compaction.MinOrphanCount
	}
	if other.Compaction.IdleTimeout != "" {
		c.Compaction.IdleTimeout = other.Compaction.IdleTimeout
	}
	if other.Compaction.Cooldown != "" {
		c.Compaction.Cooldown = other.Compaction.Cooldown
	}
}

// applyEnvOverrides applies SOURCELENS_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SOURCELENS_BM25_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Search.BM25Weight = w
		}
	}
	if v := os.Getenv("SOURCELENS_SEMANTIC_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Search.SemanticWeight = w
		}
	}
	if v := os.Getenv("SOURCELENS_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.RRFConstant = k
		}
	}

	if v := os.Getenv("SOURCELENS_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	// SOURCELENS_EMBEDDER is an alias for SOURCELENS_EMBEDDINGS_PROVIDER,
	// matching the name the embedder factory itself reads.
	if v := os.Getenv("SOURCELENS_EMBEDDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("SOURCELENS_CODE_MODEL"); v != "" {
		c.Embeddings.CodeModel = v
	}
	if v := os.Getenv("SOURCELENS_TEXT_MODEL"); v != "" {
		c.Embeddings.TextModel = v
	}
	if v := os.Getenv("SOURCELENS_TEI_ENDPOINT"); v != "" {
		c.Embeddings.TEIEndpoint = v
	}
	if v := os.Getenv("SOURCELENS_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("SOURCELENS_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}

	if v := os.Getenv("SOURCELENS_COMPACTION_ENABLED"); v != "" {
		c.Compaction.Enabled = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("SOURCELENS_COMPACTION_ORPHAN_THRESHOLD"); v != "" {
		if t, err := parseFloat64(v); err == nil && t >= 0 && t <= 1 {
			c.Compaction.OrphanThreshold = t
		}
	}
	if v := os.Getenv("SOURCELENS_COMPACTION_IDLE_TIMEOUT"); v != "" {
		c.Compaction.IdleTimeout = v
	}
	if v := os.Getenv("SOURCELENS_COMPACTION_COOLDOWN"); v != "" {
		c.Compaction.Cooldown = v
	}
}

// parseFloat64 parses a string to float64, used for config parsing.
func parseFloat64(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f, err
}

// DetectProjectType detects the project type based on marker files.
// Priority: go.mod > package.json > pyproject.toml/requirements.txt
func DetectProjectType(dir string) ProjectType {
	if fileExists(filepath.Join(dir, "go.mod")) {
		return ProjectTypeGo
	}

	if fileExists(filepath.Join(dir, "package.json")) {
		return ProjectTypeNode
	}

	if fileExists(filepath.Join(dir, "pyproject.toml")) ||
		fileExists(filepath.Join(dir, "requirements.txt")) {
		return ProjectTypePython
	}

	return ProjectTypeUnknown
}

// FindProjectRoot finds the project root directory.
// It looks for a .git directory or a sourcelens.toml file by walking up the
// directory tree.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}

		if fileExists(filepath.Join(currentDir, "sourcelens.toml")) ||
			fileExists(filepath.Join(currentDir, ".sourcelens.toml")) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}

// DiscoverSourceDirs discovers common source directories in the project.
func DiscoverSourceDirs(dir string) []string {
	commonSourceDirs := []string{"src", "lib", "pkg", "internal", "cmd"}
	frameworkDirs := []string{"app", "pages"} // Next.js, etc.

	var found []string

	for _, d := range commonSourceDirs {
		if dirExists(filepath.Join(dir, d)) {
			found = append(found, d)
		}
	}

	if isNextJS(dir) {
		for _, d := range frameworkDirs {
			if dirExists(filepath.Join(dir, d)) {
				found = append(found, d)
			}
		}
	}

	return found
}

// DiscoverDocsDirs discovers documentation directories in the project.
func DiscoverDocsDirs(dir string) []string {
	commonDocDirs := []string{"docs", "doc"}
	commonDocFiles := []string{"README.md", "readme.md", "README.markdown"}

	var found []string

	for _, d := range commonDocDirs {
		if dirExists(filepath.Join(dir, d)) {
			found = append(found, d)
		}
	}

	for _, f := range commonDocFiles {
		if fileExists(filepath.Join(dir, f)) {
			found = append(found, f)
			break
		}
	}

	return found
}

// isNextJS checks if the project is a Next.js project.
func isNextJS(dir string) bool {
	pkgPath := filepath.Join(dir, "package.json")
	if !fileExists(pkgPath) {
		return false
	}

	data, err := os.ReadFile(pkgPath)
	if err != nil {
		return false
	}

	var pkg struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return false
	}

	_, hasNext := pkg.Dependencies["next"]
	_, hasNextDev := pkg.DevDependencies["next"]
	return hasNext || hasNextDev
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// dirExists checks if a directory exists.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// String returns a string representation of ProjectType.
func (p ProjectType) String() string {
	return string(p)
}

// IsKnown returns true if the project type is known (not unknown).
func (p ProjectType) IsKnown() bool {
	return p != ProjectTypeUnknown
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Search.BM25Weight < 0 || c.Search.BM25Weight > 1 {
		return fmt.Errorf("bm25_weight must be between 0 and 1, got %f", c.Search.BM25Weight)
	}
	if c.Search.SemanticWeight < 0 || c.Search.SemanticWeight > 1 {
		return fmt.Errorf("semantic_weight must be between 0 and 1, got %f", c.Search.SemanticWeight)
	}

	sum := c.Search.BM25Weight + c.Search.SemanticWeight
	if math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("bm25_weight + semantic_weight must equal 1.0, got %.2f", sum)
	}

	if c.Search.MaxResults < 0 {
		return fmt.Errorf("max_results must be non-negative, got %d", c.Search.MaxResults)
	}
	if c.Search.ChunkSize < 0 {
		return fmt.Errorf("chunk_size must be non-negative, got %d", c.Search.ChunkSize)
	}

	if c.Embeddings.Provider != "" { // empty string triggers per-model auto-detection
		if !embeddingProviderIsValid(c.Embeddings.Provider) {
			return fmt.Errorf("embedding.provider must be one of %v or empty (per-model auto-detect), got %s", embeddingValidProviders, c.Embeddings.Provider)
		}
	}

	validTransports := map[string]bool{"stdio": true, "sse": true}
	if !validTransports[strings.ToLower(c.Server.Transport)] {
		return fmt.Errorf("server.transport must be 'stdio' or 'sse', got %s", c.Server.Transport)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	return nil
}

// embeddingValidProviders lists the provider names accepted by
// embedding.provider, matching the catalog the embedder factory parses.
var embeddingValidProviders = []string{"fastembed", "huggingface", "jina", "voyage", "google", "tei"}

func embeddingProviderIsValid(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range embeddingValidProviders {
		if lower == p {
			return true
		}
	}
	return false
}

// WriteTOML writes the configuration to a TOML file.
func (c *Config) WriteTOML(path string) error {
	var buf strings.Builder
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, []byte(buf.String()), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// MergeNewDefaults adds new default fields while preserving existing values.
// Returns a list of field names that were added with their default values.
func (c *Config) MergeNewDefaults() []string {
	defaults := NewConfig()
	var added []string

	if c.Search.BM25Weight == 0 {
		c.Search.BM25Weight = defaults.Search.BM25Weight
		added = append(added, "search.bm25_weight")
	}
	if c.Search.SemanticWeight == 0 {
		c.Search.SemanticWeight = defaults.Search.SemanticWeight
		added = append(added, "search.semantic_weight")
	}
	if c.Search.RRFConstant == 0 {
		c.Search.RRFConstant = defaults.Search.RRFConstant
		added = append(added, "search.rrf_constant")
	}

	if c.Embeddings.CodeModel == "" {
		c.Embeddings.CodeModel = defaults.Embeddings.CodeModel
		added = append(added, "embedding.code_model")
	}
	if c.Embeddings.TextModel == "" {
		c.Embeddings.TextModel = defaults.Embeddings.TextModel
		added = append(added, "embedding.text_model")
	}

	if c.GraphRAG.MaxHops == 0 {
		c.GraphRAG.MaxHops = defaults.GraphRAG.MaxHops
		added = append(added, "graphrag.max_hops")
	}
	if c.GraphRAG.MaxNodesPerQuery == 0 {
		c.GraphRAG.MaxNodesPerQuery = defaults.GraphRAG.MaxNodesPerQuery
		added = append(added, "graphrag.max_nodes_per_query")
	}

	if c.Performance.SQLiteCacheMB == 0 {
		c.Performance.SQLiteCacheMB = defaults.Performance.SQLiteCacheMB
		added = append(added, "performance.sqlite_cache_mb")
	}

	if c.Sessions.StoragePath == "" {
		c.Sessions.StoragePath = defaults.Sessions.StoragePath
		added = append(added, "sessions.storage_path")
	}
	if c.Sessions.MaxSessions == 0 {
		c.Sessions.MaxSessions = defaults.Sessions.MaxSessions
		added = append(added, "sessions.max_sessions")
	}

	return added
}
