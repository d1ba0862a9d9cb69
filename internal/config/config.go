package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

const (
	apiKeyEnv      = "VIDSAGE_API_KEY"
	embedAPIKeyEnv = "VIDSAGE_EMBED_API_KEY"
)

type Config struct {
	Port          int              `json:"port"`
	CORSAllowlist []string         `json:"cors_allowlist"`
	LogConfig     logger.LogConfig `json:"log_config"`
	AI            AIConfig         `json:"ai"`
	Embed         EmbedConfig      `json:"embed"`
	Sessions      SessionConfig    `json:"sessions"`
	Limits        LimitsConfig     `json:"limits"`
	Split         SplitConfig      `json:"split"`
	Cache         CacheConfig      `json:"cache"`
	Security      SecurityConfig   `json:"security"`
	Answer        AnswerConfig     `json:"answer"`
	ChunkStore    ChunkStoreConfig `json:"chunk_store"`
}

type AIConfig struct {
	Provider       string `json:"provider"`
	APIKey         string `json:"api_key"`
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// EmbedConfig selects the embedding backend. It is separate from the chat
// backend because the default chat provider has no embeddings API.
type EmbedConfig struct {
	Provider        string `json:"provider"`
	APIKey          string `json:"api_key"`
	Model           string `json:"model"`
	CacheSize       int    `json:"cache_size"`
	CacheTTLSeconds int    `json:"cache_ttl_seconds"`
}

type SessionConfig struct {
	MaxSessions int `json:"max_sessions"`
	TTLSeconds  int `json:"ttl_seconds"`
}

type LimitsConfig struct {
	MaxVideoSeconds    int `json:"max_video_seconds"`
	MaxTranscriptChars int `json:"max_transcript_chars"`
	RequestsPerMinute  int `json:"requests_per_minute"`
	TokensPerMinute    int `json:"tokens_per_minute"`
	MinDelayMs         int `json:"min_delay_ms"`
	MaxDelayMs         int `json:"max_delay_ms"`
}

type SplitConfig struct {
	ChunkSize    int `json:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap"`
}

type CacheConfig struct {
	Store             StoreConfig `json:"store"`
	RawTTLSeconds     int         `json:"raw_ttl_seconds"`
	IndexTTLSeconds   int         `json:"index_ttl_seconds"`
	DerivedTTLSeconds int         `json:"derived_ttl_seconds"`
}

type StoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type SecurityConfig struct {
	RequestsPerMinute int `json:"requests_per_minute"`
}

type AnswerConfig struct {
	RelevanceThreshold float64 `json:"relevance_threshold"`
}

type ChunkStoreConfig struct {
	Enable bool   `json:"enable"`
	DSN    string `json:"dsn"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if key := os.Getenv(apiKeyEnv); key != "" {
		cfg.AI.APIKey = key
	}
	if cfg.AI.APIKey == "" {
		return nil, fmt.Errorf("ai.api_key is required (set it in the config file or via %s)", apiKeyEnv)
	}
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "groq"
	}
	if cfg.AI.TimeoutSeconds <= 0 {
		cfg.AI.TimeoutSeconds = 30
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if key := os.Getenv(embedAPIKeyEnv); key != "" {
		cfg.Embed.APIKey = key
	}
	if cfg.Embed.Provider == "" {
		cfg.Embed.Provider = "gemini"
	}
	if cfg.Embed.APIKey == "" {
		cfg.Embed.APIKey = cfg.AI.APIKey
	}
	if cfg.Embed.Model == "" {
		cfg.Embed.Model = "text-embedding-004"
	}
	if cfg.Embed.CacheSize <= 0 {
		cfg.Embed.CacheSize = 2048
	}
	if cfg.Embed.CacheTTLSeconds <= 0 {
		cfg.Embed.CacheTTLSeconds = 3600
	}
	if cfg.Sessions.MaxSessions <= 0 {
		cfg.Sessions.MaxSessions = 256
	}
	if cfg.Sessions.TTLSeconds <= 0 {
		cfg.Sessions.TTLSeconds = 7200
	}
	applyLimitDefaults(&cfg.Limits)
	applySplitDefaults(&cfg.Split)
	if err := applyCacheDefaults(&cfg.Cache); err != nil {
		return nil, err
	}
	if cfg.Security.RequestsPerMinute <= 0 {
		cfg.Security.RequestsPerMinute = 15
	}
	if cfg.Answer.RelevanceThreshold <= 0 {
		cfg.Answer.RelevanceThreshold = 0.1
	}
	if cfg.ChunkStore.Enable && cfg.ChunkStore.DSN == "" {
		return nil, fmt.Errorf("chunk_store.dsn is required when chunk_store is enabled")
	}
	return &cfg, nil
}

func applyLimitDefaults(limits *LimitsConfig) {
	if limits.MaxVideoSeconds <= 0 {
		limits.MaxVideoSeconds = 7200
	}
	if limits.MaxTranscriptChars <= 0 {
		limits.MaxTranscriptChars = 100000
	}
	if limits.RequestsPerMinute <= 0 {
		limits.RequestsPerMinute = 30
	}
	if limits.TokensPerMinute <= 0 {
		limits.TokensPerMinute = 6000
	}
	if limits.MinDelayMs <= 0 {
		limits.MinDelayMs = 500
	}
	if limits.MaxDelayMs <= 0 {
		limits.MaxDelayMs = 3000
	}
}

func applySplitDefaults(split *SplitConfig) {
	if split.ChunkSize <= 0 {
		split.ChunkSize = 1000
	}
	if split.ChunkOverlap < 0 || split.ChunkOverlap >= split.ChunkSize {
		split.ChunkOverlap = 200
	}
}

func applyCacheDefaults(cache *CacheConfig) error {
	if cache.Store.Type == "" {
		cache.Store.Type = "local"
	}
	switch cache.Store.Type {
	case "local", "s3":
	default:
		return fmt.Errorf("cache.store.type must be local or s3")
	}
	if cache.RawTTLSeconds <= 0 {
		cache.RawTTLSeconds = 3600
	}
	if cache.IndexTTLSeconds <= 0 {
		cache.IndexTTLSeconds = 3600
	}
	if cache.DerivedTTLSeconds <= 0 {
		cache.DerivedTTLSeconds = 3600
	}
	return nil
}
