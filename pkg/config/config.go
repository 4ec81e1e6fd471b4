// Package config is CodeCompass's centralized, read-mostly settings
// surface: host, ports, model names, limits, and paths. Every other
// component reads its knobs from here rather than consulting the
// environment directly.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the CodeCompass server. Most fields
// are read-only after Load; Suggestion.Provider and Suggestion.Model are
// the sole exception (see SwitchSuggestionModel) and are guarded by mu.
type Config struct {
	mu sync.RWMutex

	Server     ServerConfig     `yaml:"server"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Indexing   IndexingConfig   `yaml:"indexing"`
	Search     SearchConfig     `yaml:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Suggestion SuggestionConfig `yaml:"suggestion"`
	VectorDB   VectorDBConfig   `yaml:"vectordb"`
	Agent      AgentConfig      `yaml:"agent"`
	Context    ContextConfig    `yaml:"context"`
	Cache      CacheConfig      `yaml:"cache"`
	Logging    LoggingConfig    `yaml:"logging"`
	Ignore     IgnoreConfig     `yaml:"ignore_patterns"`
}

type ServerConfig struct {
	Name     string `yaml:"name"`
	Version  string `yaml:"version"`
	HTTPPort int    `yaml:"http_port"`
}

type ChunkingConfig struct {
	FileChunkSizeChars    int `yaml:"file_indexing_chunk_size_chars"`
	FileChunkOverlapChars int `yaml:"file_indexing_chunk_overlap_chars"`
	DiffChunkSizeChars    int `yaml:"diff_chunk_size_chars"`
	DiffChunkOverlapChars int `yaml:"diff_chunk_overlap_chars"`
}

type IndexingConfig struct {
	ParallelWorkers               int `yaml:"parallel_workers"`
	QdrantBatchUpsertSize         int `yaml:"qdrant_batch_upsert_size"`
	CommitHistoryMaxCountForIndex int `yaml:"commit_history_max_count_for_indexing"`
	DiffLinesOfContext            int `yaml:"diff_lines_of_context"`
}

type SearchConfig struct {
	QdrantSearchLimitDefault int     `yaml:"qdrant_search_limit_default"`
	MaxRefinementIterations  int     `yaml:"max_refinement_iterations"`
	RelevanceThreshold       float64 `yaml:"relevance_threshold"`
}

type EmbeddingsConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	OllamaURL string `yaml:"ollama_url"`
	OpenAIURL string `yaml:"openai_url"`
	OpenAIKey string `yaml:"-"`
	MaxTokens int    `yaml:"max_tokens"`
	BatchSize int    `yaml:"batch_size"`
}

// SuggestionConfig names the generation-side provider/model. Provider and
// Model are mutated at runtime by switch_suggestion_model; everything else
// is fixed at Load time.
type SuggestionConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	OllamaURL string `yaml:"ollama_url"`
	OpenAIURL string `yaml:"openai_url"`
	OpenAIKey string `yaml:"-"`
	ClaudeKey string `yaml:"-"`
	GeminiKey string `yaml:"-"`
}

type VectorDBConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	CollectionName string `yaml:"collection_name"`
	DistanceMetric string `yaml:"distance_metric"`
}

type AgentConfig struct {
	DefaultMaxSteps      int           `yaml:"default_max_steps"`
	AbsoluteMaxSteps     int           `yaml:"absolute_max_steps"`
	QueryTimeout         time.Duration `yaml:"query_timeout"`
	ReasoningTimeout     time.Duration `yaml:"-"`
	ToolTimeout          time.Duration `yaml:"-"`
	FinalResponseTimeout time.Duration `yaml:"-"`
	PeerPingTimeout      time.Duration `yaml:"-"`
}

type ContextConfig struct {
	MaxSnippetLengthNoSummary      int `yaml:"max_snippet_length_for_context_no_summary"`
	MaxFilesForSuggestionNoSummary int `yaml:"max_files_for_suggestion_context_no_summary"`
	MaxDiffLengthForContextTool    int `yaml:"max_diff_length_for_context_tool"`
}

type CacheConfig struct {
	Directory string `yaml:"directory"`
}

type LoggingConfig struct {
	Level     string `yaml:"level"`
	Directory string `yaml:"directory"`
}

type IgnoreConfig struct {
	Patterns   []string `yaml:"patterns"`
	Extensions []string `yaml:"allowed_extensions"`
}

// Load loads configuration from the default file location (if any), then
// applies environment-variable overrides.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if path := getConfigPath(); path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	cfg.Cache.Directory = expandPath(cfg.Cache.Directory)
	cfg.Logging.Directory = expandPath(cfg.Logging.Directory)

	return cfg, nil
}

// DefaultConfig returns CodeCompass's default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name:     "codecompass",
			Version:  "0.1.0",
			HTTPPort: 0,
		},
		Chunking: ChunkingConfig{
			FileChunkSizeChars:    1500,
			FileChunkOverlapChars: 200,
			DiffChunkSizeChars:    1200,
			DiffChunkOverlapChars: 150,
		},
		Indexing: IndexingConfig{
			ParallelWorkers:               runtime.NumCPU(),
			QdrantBatchUpsertSize:         100,
			CommitHistoryMaxCountForIndex: 500,
			DiffLinesOfContext:            3,
		},
		Search: SearchConfig{
			QdrantSearchLimitDefault: 10,
			MaxRefinementIterations:  3,
			RelevanceThreshold:       0.7,
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "ollama",
			Model:     "nomic-embed-text",
			Dimension: 768,
			OllamaURL: "http://localhost:11434",
			OpenAIURL: "https://api.openai.com/v1",
			MaxTokens: 8192,
			BatchSize: 16,
		},
		Suggestion: SuggestionConfig{
			Provider:  "ollama",
			Model:     "llama3",
			OllamaURL: "http://localhost:11434",
			OpenAIURL: "https://api.openai.com/v1",
		},
		VectorDB: VectorDBConfig{
			Host:           "localhost",
			Port:           6334,
			CollectionName: "codecompass",
			DistanceMetric: "cosine",
		},
		Agent: AgentConfig{
			DefaultMaxSteps:      5,
			AbsoluteMaxSteps:     10,
			QueryTimeout:         5 * time.Minute,
			ReasoningTimeout:     60 * time.Second,
			ToolTimeout:          90 * time.Second,
			FinalResponseTimeout: 60 * time.Second,
			PeerPingTimeout:      500 * time.Millisecond,
		},
		Context: ContextConfig{
			MaxSnippetLengthNoSummary:      2000,
			MaxFilesForSuggestionNoSummary: 5,
			MaxDiffLengthForContextTool:    4000,
		},
		Cache: CacheConfig{
			Directory: "~/.codecompass/cache",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Directory: "~/.codecompass/logs",
		},
		Ignore: IgnoreConfig{
			Patterns: []string{
				"node_modules/**",
				"dist/**",
				"build/**",
				"target/**",
				"out/**",
				".git/**",
				".idea/**",
				".vscode/**",
				"**/*.min.js",
			},
			Extensions: []string{
				".go", ".ts", ".tsx", ".js", ".jsx", ".py", ".java", ".rb",
				".rs", ".c", ".h", ".cpp", ".hpp", ".cs", ".md", ".yaml", ".yml", ".json",
			},
		},
	}
}

// SuggestionSnapshot is a point-in-time read of the mutable suggestion
// provider/model pair, returned so callers never hold Config's lock.
type SuggestionSnapshot struct {
	Provider string
	Model    string
}

// CurrentSuggestion returns the active suggestion provider/model.
func (c *Config) CurrentSuggestion() SuggestionSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return SuggestionSnapshot{Provider: c.Suggestion.Provider, Model: c.Suggestion.Model}
}

// SwitchSuggestionModel updates the active suggestion provider/model. It is
// the only permitted mutation of Config after Load.
func (c *Config) SwitchSuggestionModel(provider, model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if provider != "" {
		c.Suggestion.Provider = provider
	}
	c.Suggestion.Model = model
}

func getConfigPath() string {
	if path := os.Getenv("CODECOMPASS_CONFIG"); path != "" {
		return path
	}
	if _, err := os.Stat("codecompass.yaml"); err == nil {
		return "codecompass.yaml"
	}
	home, err := os.UserHomeDir()
	if err == nil {
		path := filepath.Join(home, ".codecompass", "config.yaml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.HTTPPort = n
		}
	}
	if v := os.Getenv("QDRANT_HOST"); v != "" {
		cfg.VectorDB.Host = v
	}
	if v := os.Getenv("QDRANT_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.VectorDB.Port = n
		}
	}
	if v := os.Getenv("COLLECTION_NAME"); v != "" {
		cfg.VectorDB.CollectionName = v
	}
	if v := os.Getenv("EMBEDDING_PROVIDER"); v != "" {
		cfg.Embeddings.Provider = v
	}
	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		cfg.Embeddings.Model = v
	}
	if v := os.Getenv("EMBEDDING_DIMENSION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Embeddings.Dimension = n
		}
	}
	if v := os.Getenv("SUGGESTION_PROVIDER"); v != "" {
		cfg.Suggestion.Provider = v
	}
	if v := os.Getenv("SUGGESTION_MODEL"); v != "" {
		cfg.Suggestion.Model = v
	}
	if v := os.Getenv("OLLAMA_URL"); v != "" {
		cfg.Embeddings.OllamaURL = v
		cfg.Suggestion.OllamaURL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Embeddings.OpenAIKey = v
		cfg.Suggestion.OpenAIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Suggestion.ClaudeKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Suggestion.GeminiKey = v
	}
	if v := os.Getenv("FILE_INDEXING_CHUNK_SIZE_CHARS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Chunking.FileChunkSizeChars = n
		}
	}
	if v := os.Getenv("FILE_INDEXING_CHUNK_OVERLAP_CHARS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Chunking.FileChunkOverlapChars = n
		}
	}
	if v := os.Getenv("DIFF_CHUNK_SIZE_CHARS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Chunking.DiffChunkSizeChars = n
		}
	}
	if v := os.Getenv("DIFF_CHUNK_OVERLAP_CHARS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Chunking.DiffChunkOverlapChars = n
		}
	}
	if v := os.Getenv("COMMIT_HISTORY_MAX_COUNT_FOR_INDEXING"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Indexing.CommitHistoryMaxCountForIndex = n
		}
	}
	if v := os.Getenv("QDRANT_BATCH_UPSERT_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Indexing.QdrantBatchUpsertSize = n
		}
	}
	if v := os.Getenv("MAX_REFINEMENT_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.MaxRefinementIterations = n
		}
	}
	if v := os.Getenv("QDRANT_SEARCH_LIMIT_DEFAULT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.QdrantSearchLimitDefault = n
		}
	}
	if v := os.Getenv("AGENT_DEFAULT_MAX_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Agent.DefaultMaxSteps = n
		}
	}
	if v := os.Getenv("AGENT_ABSOLUTE_MAX_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Agent.AbsoluteMaxSteps = n
		}
	}
	if v := os.Getenv("AGENT_QUERY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Agent.QueryTimeout = d
		}
	}
	if v := os.Getenv("MAX_SNIPPET_LENGTH_FOR_CONTEXT_NO_SUMMARY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Context.MaxSnippetLengthNoSummary = n
		}
	}
	if v := os.Getenv("MAX_FILES_FOR_SUGGESTION_CONTEXT_NO_SUMMARY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Context.MaxFilesForSuggestionNoSummary = n
		}
	}
	if v := os.Getenv("MAX_DIFF_LENGTH_FOR_CONTEXT_TOOL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Context.MaxDiffLengthForContextTool = n
		}
	}
	if v := os.Getenv("DIFF_LINES_OF_CONTEXT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Indexing.DiffLinesOfContext = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_DIR"); v != "" {
		cfg.Logging.Directory = v
	}
	if v := os.Getenv("CACHE_DIR"); v != "" {
		cfg.Cache.Directory = v
	}
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
