package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// AC01: Default Configuration Tests
// =============================================================================

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	// Given: no configuration file exists
	cfg := NewConfig()

	// Then: all defaults should be applied
	require.NotNil(t, cfg)

	// Search defaults
	assert.Equal(t, 0.65, cfg.Search.BM25Weight)
	assert.Equal(t, 0.35, cfg.Search.SemanticWeight)
	assert.Equal(t, 60, cfg.Search.RRFConstant)
	assert.Equal(t, 1500, cfg.Search.ChunkSize)
	assert.Equal(t, 200, cfg.Search.ChunkOverlap)
	assert.Equal(t, 20, cfg.Search.MaxResults)

	// Embeddings defaults
	assert.Equal(t, "", cfg.Embeddings.Provider) // Empty triggers per-model auto-detection
	assert.NotEmpty(t, cfg.Embeddings.CodeModel)
	assert.NotEmpty(t, cfg.Embeddings.TextModel)
	assert.Equal(t, 0, cfg.Embeddings.Dimensions) // Auto-detect from embedder
	assert.Equal(t, 32, cfg.Embeddings.BatchSize)
	assert.Equal(t, "10m", cfg.Embeddings.ModelDownloadTimeout)
	assert.Equal(t, "", cfg.Embeddings.TEIEndpoint)

	// GraphRAG defaults
	assert.True(t, cfg.GraphRAG.Enabled)
	assert.Equal(t, 2, cfg.GraphRAG.MaxHops)

	// Performance defaults
	assert.Equal(t, 100000, cfg.Performance.MaxFiles)
	assert.Equal(t, runtime.NumCPU(), cfg.Performance.IndexWorkers)
	assert.Equal(t, "500ms", cfg.Performance.WatchDebounce)
	assert.Equal(t, 1000, cfg.Performance.CacheSize)
	assert.Equal(t, "auto", cfg.Performance.MemoryLimit)
	assert.Equal(t, "F16", cfg.Performance.Quantization)

	// Server defaults
	assert.Equal(t, "stdio", cfg.Server.Transport)
	assert.Equal(t, 8765, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)

	// Paths defaults
	assert.Contains(t, cfg.Paths.Exclude, "**/node_modules/**")
	assert.Contains(t, cfg.Paths.Exclude, "**/.git/**")
	assert.Contains(t, cfg.Paths.Exclude, "**/vendor/**")

	// Sessions defaults
	assert.NotEmpty(t, cfg.Sessions.StoragePath)
	assert.Contains(t, cfg.Sessions.StoragePath, "sessions")
	assert.True(t, cfg.Sessions.AutoSave)
	assert.Equal(t, 20, cfg.Sessions.MaxSessions)
}

func TestConfig_VersionDefaultsToOne(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, 1, cfg.Version)
}

func TestConfig_SearchWeightsSumToOne(t *testing.T) {
	cfg := NewConfig()
	sum := cfg.Search.BM25Weight + cfg.Search.SemanticWeight
	assert.InDelta(t, 1.0, sum, 0.01)
}

// =============================================================================
// AC02: Configuration File Loading Tests
// =============================================================================

func TestLoad_NoConfigFile_ReturnsDefaults(t *testing.T) {
	// Given: a directory with no sourcelens.toml
	tmpDir := t.TempDir()

	// When: loading configuration
	cfg, err := Load(tmpDir)

	// Then: defaults are returned without error
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 0.65, cfg.Search.BM25Weight)
}

func TestLoad_TomlFile_OverridesDefaults(t *testing.T) {
	// Given: a directory with sourcelens.toml
	tmpDir := t.TempDir()
	configContent := `
version = 1

[search]
bm25_weight = 0.4
semantic_weight = 0.6
rrf_constant = 100
chunk_size = 2000
max_results = 50
`
	err := os.WriteFile(filepath.Join(tmpDir, "sourcelens.toml"), []byte(configContent), 0o644)
	require.NoError(t, err)

	// When: loading configuration
	cfg, err := Load(tmpDir)

	// Then: all overrides are applied
	require.NoError(t, err)
	assert.Equal(t, 0.4, cfg.Search.BM25Weight)
	assert.Equal(t, 0.6, cfg.Search.SemanticWeight)
	assert.Equal(t, 100, cfg.Search.RRFConstant)
	assert.Equal(t, 2000, cfg.Search.ChunkSize)
	assert.Equal(t, 50, cfg.Search.MaxResults)
}

func TestLoad_DotfileVariant_IsRecognized(t *testing.T) {
	// Given: a directory with the dotfile variant .sourcelens.toml
	tmpDir := t.TempDir()
	configContent := `
version = 1

[embedding]
provider = "jina"
`
	err := os.WriteFile(filepath.Join(tmpDir, ".sourcelens.toml"), []byte(configContent), 0o644)
	require.NoError(t, err)

	// When: loading configuration
	cfg, err := Load(tmpDir)

	// Then: the dotfile variant is recognized
	require.NoError(t, err)
	assert.Equal(t, "jina", cfg.Embeddings.Provider)
}

func TestLoad_BareNamePreferredOverDotfile(t *testing.T) {
	// Given: both sourcelens.toml and .sourcelens.toml exist
	tmpDir := t.TempDir()
	bareContent := `
version = 1

[embedding]
provider = "voyage"
`
	dotContent := `
version = 1

[embedding]
provider = "google"
`
	err := os.WriteFile(filepath.Join(tmpDir, "sourcelens.toml"), []byte(bareContent), 0o644)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(tmpDir, ".sourcelens.toml"), []byte(dotContent), 0o644)
	require.NoError(t, err)

	// When: loading configuration
	cfg, err := Load(tmpDir)

	// Then: the bare filename takes precedence
	require.NoError(t, err)
	assert.Equal(t, "voyage", cfg.Embeddings.Provider)
}

func TestLoad_InvalidToml_ReturnsError(t *testing.T) {
	// Given: invalid TOML syntax
	tmpDir := t.TempDir()
	invalidContent := `
version = 1
[search
bm25_weight = 0.4
`
	err := os.WriteFile(filepath.Join(tmpDir, "sourcelens.toml"), []byte(invalidContent), 0o644)
	require.NoError(t, err)

	// When: loading configuration
	cfg, err := Load(tmpDir)

	// Then: error is returned with clear message
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "parse")
}

func TestLoad_InvalidFieldType_ReturnsError(t *testing.T) {
	// Given: wrong type for a TOML-accessible field
	tmpDir := t.TempDir()
	invalidContent := `
version = 1

[search]
chunk_size = "not-a-number"
`
	err := os.WriteFile(filepath.Join(tmpDir, "sourcelens.toml"), []byte(invalidContent), 0o644)
	require.NoError(t, err)

	// When: loading configuration
	cfg, err := Load(tmpDir)

	// Then: error is returned
	require.Error(t, err)
	assert.Nil(t, cfg)
}

// =============================================================================
// AC03: Project Type Detection Tests
// =============================================================================

func TestDetectProjectType_GoMod_ReturnsGo(t *testing.T) {
	tmpDir := t.TempDir()
	err := os.WriteFile(filepath.Join(tmpDir, "go.mod"), []byte("module test"), 0o644)
	require.NoError(t, err)

	projectType := DetectProjectType(tmpDir)

	assert.Equal(t, ProjectTypeGo, projectType)
}

func TestDetectProjectType_PackageJson_ReturnsNode(t *testing.T) {
	tmpDir := t.TempDir()
	err := os.WriteFile(filepath.Join(tmpDir, "package.json"), []byte("{}"), 0o644)
	require.NoError(t, err)

	projectType := DetectProjectType(tmpDir)

	assert.Equal(t, ProjectTypeNode, projectType)
}

func TestDetectProjectType_PyprojectToml_ReturnsPython(t *testing.T) {
	tmpDir := t.TempDir()
	err := os.WriteFile(filepath.Join(tmpDir, "pyproject.toml"), []byte("[project]"), 0o644)
	require.NoError(t, err)

	projectType := DetectProjectType(tmpDir)

	assert.Equal(t, ProjectTypePython, projectType)
}

func TestDetectProjectType_RequirementsTxt_ReturnsPython(t *testing.T) {
	tmpDir := t.TempDir()
	err := os.WriteFile(filepath.Join(tmpDir, "requirements.txt"), []byte("requests==2.0"), 0o644)
	require.NoError(t, err)

	projectType := DetectProjectType(tmpDir)

	assert.Equal(t, ProjectTypePython, projectType)
}

func TestDetectProjectType_NoMarkerFiles_ReturnsUnknown(t *testing.T) {
	tmpDir := t.TempDir()
	err := os.WriteFile(filepath.Join(tmpDir, "random.txt"), []byte("hello"), 0o644)
	require.NoError(t, err)

	projectType := DetectProjectType(tmpDir)

	assert.Equal(t, ProjectTypeUnknown, projectType)
}

func TestDetectProjectType_Priority_GoOverNode(t *testing.T) {
	tmpDir := t.TempDir()
	err := os.WriteFile(filepath.Join(tmpDir, "go.mod"), []byte("module test"), 0o644)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(tmpDir, "package.json"), []byte("{}"), 0o644)
	require.NoError(t, err)

	projectType := DetectProjectType(tmpDir)

	assert.Equal(t, ProjectTypeGo, projectType)
}

// =============================================================================
// AC04: Directory Auto-Detection Tests
// =============================================================================

func TestFindProjectRoot_GitDirectory_ReturnsGitRoot(t *testing.T) {
	tmpDir := t.TempDir()
	gitDir := filepath.Join(tmpDir, ".git")
	nestedDir := filepath.Join(tmpDir, "src", "internal")
	require.NoError(t, os.Mkdir(gitDir, 0o755))
	require.NoError(t, os.MkdirAll(nestedDir, 0o755))

	root, err := FindProjectRoot(nestedDir)

	require.NoError(t, err)
	assert.Equal(t, tmpDir, root)
}

func TestFindProjectRoot_ConfigFile_ReturnsConfigLocation(t *testing.T) {
	tmpDir := t.TempDir()
	nestedDir := filepath.Join(tmpDir, "src", "internal")
	require.NoError(t, os.MkdirAll(nestedDir, 0o755))
	err := os.WriteFile(filepath.Join(tmpDir, "sourcelens.toml"), []byte("version = 1"), 0o644)
	require.NoError(t, err)

	root, err := FindProjectRoot(nestedDir)

	require.NoError(t, err)
	assert.Equal(t, tmpDir, root)
}

func TestFindProjectRoot_NoMarkers_ReturnsCurrentDir(t *testing.T) {
	tmpDir := t.TempDir()

	root, err := FindProjectRoot(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, tmpDir, root)
}

func TestDiscoverSourceDirs_FindsCommonDirs(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(tmpDir, "src"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(tmpDir, "lib"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(tmpDir, "internal"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(tmpDir, "cmd"), 0o755))

	dirs := DiscoverSourceDirs(tmpDir)

	assert.Contains(t, dirs, "src")
	assert.Contains(t, dirs, "lib")
	assert.Contains(t, dirs, "internal")
	assert.Contains(t, dirs, "cmd")
}

func TestDiscoverDocsDirs_FindsDocDirectories(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(tmpDir, "docs"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(tmpDir, "doc"), 0o755))
	err := os.WriteFile(filepath.Join(tmpDir, "README.md"), []byte("# Title"), 0o644)
	require.NoError(t, err)

	dirs := DiscoverDocsDirs(tmpDir)

	assert.Contains(t, dirs, "docs")
	assert.Contains(t, dirs, "doc")
	assert.Contains(t, dirs, "README.md")
}

func TestDiscoverSourceDirs_NextJS_FindsAppAndPages(t *testing.T) {
	tmpDir := t.TempDir()
	err := os.WriteFile(filepath.Join(tmpDir, "package.json"), []byte(`{"dependencies":{"next":"*"}}`), 0o644)
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(filepath.Join(tmpDir, "app"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(tmpDir, "pages"), 0o755))

	dirs := DiscoverSourceDirs(tmpDir)

	assert.Contains(t, dirs, "app")
	assert.Contains(t, dirs, "pages")
}

// =============================================================================
// AC05: Environment Variable Override Tests
// =============================================================================

func TestLoad_EnvVarOverridesProvider(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
version = 1

[embedding]
provider = "fastembed"
`
	err := os.WriteFile(filepath.Join(tmpDir, "sourcelens.toml"), []byte(configContent), 0o644)
	require.NoError(t, err)
	t.Setenv("SOURCELENS_EMBEDDINGS_PROVIDER", "jina")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "jina", cfg.Embeddings.Provider)
}

func TestLoad_EnvVarOverridesCodeModel(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("SOURCELENS_CODE_MODEL", "jina:jina-embeddings-v2-base-code")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "jina:jina-embeddings-v2-base-code", cfg.Embeddings.CodeModel)
}

func TestLoad_EnvVarOverridesLogLevel(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("SOURCELENS_LOG_LEVEL", "debug")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
}

func TestLoad_EnvVarOverridesTransport(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("SOURCELENS_TRANSPORT", "sse")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "sse", cfg.Server.Transport)
}

func TestLoad_EnvVarOverridesRRFConstant(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
version = 1

[search]
rrf_constant = 100
`
	err := os.WriteFile(filepath.Join(tmpDir, "sourcelens.toml"), []byte(configContent), 0o644)
	require.NoError(t, err)
	t.Setenv("SOURCELENS_RRF_CONSTANT", "80")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, 80, cfg.Search.RRFConstant)
}

func TestLoad_EnvVarOverridesSearchWeights(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
version = 1

[search]
bm25_weight = 0.4
semantic_weight = 0.6
`
	err := os.WriteFile(filepath.Join(tmpDir, "sourcelens.toml"), []byte(configContent), 0o644)
	require.NoError(t, err)
	t.Setenv("SOURCELENS_BM25_WEIGHT", "0.5")
	t.Setenv("SOURCELENS_SEMANTIC_WEIGHT", "0.5")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.Search.BM25Weight)
	assert.Equal(t, 0.5, cfg.Search.SemanticWeight)
}

func TestLoad_EnvVarEmptyString_DoesNotOverride(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("SOURCELENS_EMBEDDINGS_PROVIDER", "")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "", cfg.Embeddings.Provider)
}

// =============================================================================
// AC06: User/Global Configuration Tests
// =============================================================================

func TestGetUserConfigPath_DefaultsToXDGLocation(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")

	path := GetUserConfigPath()

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	expected := filepath.Join(home, ".config", "sourcelens", "config.toml")
	assert.Equal(t, expected, path)
}

func TestGetUserConfigPath_RespectsXDGConfigHome(t *testing.T) {
	customConfig := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", customConfig)

	path := GetUserConfigPath()

	expected := filepath.Join(customConfig, "sourcelens", "config.toml")
	assert.Equal(t, expected, path)
}

func TestGetUserConfigDir_ReturnsParentOfConfigPath(t *testing.T) {
	dir := GetUserConfigDir()
	path := GetUserConfigPath()

	assert.Equal(t, filepath.Dir(path), dir)
}

func TestUserConfigExists_ReturnsFalseWhenMissing(t *testing.T) {
	emptyDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", emptyDir)

	exists := UserConfigExists()

	assert.False(t, exists)
}

func TestUserConfigExists_ReturnsTrueWhenPresent(t *testing.T) {
	configDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configDir)
	sourcelensDir := filepath.Join(configDir, "sourcelens")
	require.NoError(t, os.MkdirAll(sourcelensDir, 0o755))
	configPath := filepath.Join(sourcelensDir, "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("version = 1"), 0o644))

	exists := UserConfigExists()

	assert.True(t, exists)
}

func TestLoad_UserConfigOverridesDefaults(t *testing.T) {
	configDir := t.TempDir()
	projectDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configDir)

	sourcelensDir := filepath.Join(configDir, "sourcelens")
	require.NoError(t, os.MkdirAll(sourcelensDir, 0o755))
	userConfig := `
version = 1

[embedding]
tei_endpoint = "http://custom-host:8080"
`
	require.NoError(t, os.WriteFile(filepath.Join(sourcelensDir, "config.toml"), []byte(userConfig), 0o644))

	cfg, err := Load(projectDir)

	require.NoError(t, err)
	assert.Equal(t, "http://custom-host:8080", cfg.Embeddings.TEIEndpoint)
}

func TestLoad_ProjectConfigOverridesUserConfig(t *testing.T) {
	configDir := t.TempDir()
	projectDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configDir)

	sourcelensDir := filepath.Join(configDir, "sourcelens")
	require.NoError(t, os.MkdirAll(sourcelensDir, 0o755))
	userConfig := `
version = 1

[embedding]
provider = "jina"
code_model = "user-model"
`
	require.NoError(t, os.WriteFile(filepath.Join(sourcelensDir, "config.toml"), []byte(userConfig), 0o644))

	projectConfig := `
version = 1

[embedding]
code_model = "project-model"
`
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, "sourcelens.toml"), []byte(projectConfig), 0o644))

	cfg, err := Load(projectDir)

	require.NoError(t, err)
	assert.Equal(t, "project-model", cfg.Embeddings.CodeModel)
	// And: user config's provider is still used (not overridden by project)
	assert.Equal(t, "jina", cfg.Embeddings.Provider)
}

func TestLoad_EnvVarOverridesUserAndProjectConfig(t *testing.T) {
	configDir := t.TempDir()
	projectDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configDir)
	t.Setenv("SOURCELENS_CODE_MODEL", "env-model")

	sourcelensDir := filepath.Join(configDir, "sourcelens")
	require.NoError(t, os.MkdirAll(sourcelensDir, 0o755))
	userConfig := `
version = 1

[embedding]
code_model = "user-model"
`
	require.NoError(t, os.WriteFile(filepath.Join(sourcelensDir, "config.toml"), []byte(userConfig), 0o644))

	projectConfig := `
version = 1

[embedding]
code_model = "project-model"
`
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, "sourcelens.toml"), []byte(projectConfig), 0o644))

	cfg, err := Load(projectDir)

	require.NoError(t, err)
	assert.Equal(t, "env-model", cfg.Embeddings.CodeModel)
}

func TestLoad_InvalidUserConfig_ReturnsError(t *testing.T) {
	configDir := t.TempDir()
	projectDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configDir)

	sourcelensDir := filepath.Join(configDir, "sourcelens")
	require.NoError(t, os.MkdirAll(sourcelensDir, 0o755))
	invalidConfig := `
version = 1
[embedding
code_model = "bad"
`
	require.NoError(t, os.WriteFile(filepath.Join(sourcelensDir, "config.toml"), []byte(invalidConfig), 0o644))

	cfg, err := Load(projectDir)

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "user config")
}
