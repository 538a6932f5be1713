// Package config loads the YAML configuration of an mdsa deployment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/persistence/middleware"
)

// Environment overrides.
const (
	EnvOllamaURL = "MDSA_OLLAMA_URL"
	EnvRedisAddr = "MDSA_REDIS_ADDR"
	EnvLogLevel  = "MDSA_LOG_LEVEL"
	// EnvEncryptionKey holds a base64 AES-256 key for knowledge at rest.
	EnvEncryptionKey = "MDSA_ENCRYPTION_KEY"
)

// Storage kinds for knowledge persistence.
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
	StorageSQLite = "sqlite"
)

// Config is the root of an mdsa configuration file.
type Config struct {
	LogLevel     string             `yaml:"log_level"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Models       ModelsConfig       `yaml:"models"`
	Ollama       OllamaConfig       `yaml:"ollama"`
	Storage      StorageConfig      `yaml:"storage"`
	Server       ServerConfig       `yaml:"server"`
	Domains      []DomainConfig     `yaml:"domains"`
	Knowledge    KnowledgeConfig    `yaml:"knowledge"`
}

// OrchestratorConfig tunes routing, reasoning and retrieval.
type OrchestratorConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	ComplexityThreshold float64 `yaml:"complexity_threshold"`
	EnableReasoning     bool    `yaml:"enable_reasoning"`
	EnableRAG           bool    `yaml:"enable_rag"`
	TopK                int     `yaml:"top_k"`
	MaxGlobalDocs       int     `yaml:"max_global_docs"`
	MaxLocalDocs        int     `yaml:"max_local_docs"`
	// ReasoningModel switches planning from clause splitting to a tier-2 model.
	ReasoningModel string `yaml:"reasoning_model"`
	// MaxQueryBytes rejects larger queries. Zero disables the limit.
	MaxQueryBytes int `yaml:"max_query_bytes"`
}

// ModelsConfig bounds the model registry and executions.
type ModelsConfig struct {
	// Execute disables model execution (routing-only mode) when false.
	Execute       bool          `yaml:"execute"`
	MaxModels     int           `yaml:"max_models"`
	MaxMemoryMB   float64       `yaml:"max_memory_mb"`
	Timeout       time.Duration `yaml:"timeout"`
	LoadTimeout   time.Duration `yaml:"load_timeout"`
	MaxConcurrent int           `yaml:"max_concurrent"`
}

// OllamaConfig points at the Ollama server used by "ollama" backed models.
type OllamaConfig struct {
	URL       string  `yaml:"url"`
	Rate      float64 `yaml:"rate"`
	Burst     int     `yaml:"burst"`
	KeepAlive string  `yaml:"keep_alive"`
}

// StorageConfig selects where knowledge documents are persisted.
type StorageConfig struct {
	Kind      string `yaml:"kind"`
	Path      string `yaml:"path"`
	RedisAddr string `yaml:"redis_addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	Prefix    string `yaml:"prefix"`
	// LockTTL enables distributed model-load locks on redis storage.
	LockTTL time.Duration `yaml:"lock_ttl"`

	// EncryptionKey seals persisted documents (base64, 32 bytes).
	EncryptionKey string `yaml:"encryption_key"`
	// FallbackKeys open documents sealed before a key rotation.
	FallbackKeys []string `yaml:"fallback_keys"`
	// RedactPII masks personal data before documents are persisted.
	RedactPII bool `yaml:"redact_pii"`
	// PIIPatterns replaces the built-in content patterns.
	PIIPatterns []string `yaml:"pii_patterns"`
	// PIIMetadataKeys masks metadata values whose key matches.
	PIIMetadataKeys []string `yaml:"pii_metadata_keys"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// SessionTTL expires idle conversations on redis storage. Zero keeps them.
	SessionTTL time.Duration `yaml:"session_ttl"`
	// MaxTurns bounds the history kept per conversation.
	MaxTurns int `yaml:"max_turns"`
}

// DomainConfig registers a domain, either a predefined one by name or inline.
type DomainConfig struct {
	Predefined    string `yaml:"predefined,omitempty"`
	domain.Domain `yaml:",inline"`
}

// Resolve returns the domain described by c.
func (c DomainConfig) Resolve() (domain.Domain, error) {
	if c.Predefined == "" {
		return c.Domain, c.Domain.Validate()
	}
	d, err := domain.Predefined(c.Predefined)
	if err != nil {
		return domain.Domain{}, err
	}
	if c.ModelName != "" {
		d.ModelName = c.ModelName
	}
	if c.Backend != "" {
		d.Backend = c.Backend
	}
	return d, nil
}

// KnowledgeConfig seeds the retrieval store at start.
type KnowledgeConfig struct {
	Global []Document            `yaml:"global"`
	Local  map[string][]Document `yaml:"local"`
}

// Document is a knowledge seed.
type Document struct {
	Content  string            `yaml:"content"`
	Metadata map[string]string `yaml:"metadata"`
	Tags     []string          `yaml:"tags"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Orchestrator: OrchestratorConfig{
			ConfidenceThreshold: domain.DefaultConfidenceThreshold,
			ComplexityThreshold: domain.DefaultComplexityThreshold,
			EnableReasoning:     true,
			EnableRAG:           true,
			TopK:                domain.DefaultTopK,
			MaxGlobalDocs:       domain.DefaultMaxGlobalDocs,
			MaxLocalDocs:        domain.DefaultMaxLocalDocs,
			MaxQueryBytes:       8192,
		},
		Models: ModelsConfig{
			Execute:       true,
			MaxModels:     domain.DefaultMaxModels,
			Timeout:       60 * time.Second,
			LoadTimeout:   5 * time.Minute,
			MaxConcurrent: domain.DefaultMaxConcurrent,
		},
		Ollama: OllamaConfig{
			URL:       "http://127.0.0.1:11434",
			Rate:      8,
			Burst:     4,
			KeepAlive: "5m",
		},
		Storage: StorageConfig{
			Kind:   StorageMemory,
			Prefix: "mdsa:",
		},
		Server: ServerConfig{Addr: ":8080", MaxTurns: 20},
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := Parse(data, cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML into cfg. Fields missing from data keep their value.
func Parse(data []byte, cfg *Config) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse yaml: %w", err)
	}
	if raw == nil {
		return nil
	}
	return Decode(raw, cfg)
}

// Decode maps a free-form map onto out using the yaml tags.
// Durations accept "30s" strings; scalars are weakly typed.
func Decode(in map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "yaml",
		Squash:           true,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			secondsToDurationHook,
		),
		Result: out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}

// secondsToDurationHook reads bare numbers as seconds.
func secondsToDurationHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	switch v := data.(type) {
	case int:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	}
	return data, nil
}

// ApplyEnv applies the MDSA_* overrides read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvOllamaURL); v != "" {
		c.Ollama.URL = v
	}
	if v := getenv(EnvRedisAddr); v != "" {
		c.Storage.RedisAddr = v
		if c.Storage.Kind == "" || c.Storage.Kind == StorageMemory {
			c.Storage.Kind = StorageRedis
		}
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := getenv(EnvEncryptionKey); v != "" {
		c.Storage.EncryptionKey = v
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	o := c.Orchestrator
	if o.ConfidenceThreshold < 0 || o.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("orchestrator.confidence_threshold must be in [0,1], got %v", o.ConfidenceThreshold))
	}
	if o.ComplexityThreshold < 0 || o.ComplexityThreshold > 1 {
		errs = append(errs, fmt.Errorf("orchestrator.complexity_threshold must be in [0,1], got %v", o.ComplexityThreshold))
	}
	if o.MaxQueryBytes < 0 {
		errs = append(errs, fmt.Errorf("orchestrator.max_query_bytes must not be negative, got %d", o.MaxQueryBytes))
	}
	if o.TopK < 1 {
		errs = append(errs, fmt.Errorf("orchestrator.top_k must be positive, got %d", o.TopK))
	}
	if c.Models.MaxModels < 1 {
		errs = append(errs, fmt.Errorf("models.max_models must be positive, got %d", c.Models.MaxModels))
	}
	if c.Server.MaxTurns < 1 {
		errs = append(errs, fmt.Errorf("server.max_turns must be positive, got %d", c.Server.MaxTurns))
	}
	if c.Models.MaxConcurrent < 1 {
		errs = append(errs, fmt.Errorf("models.max_concurrent must be positive, got %d", c.Models.MaxConcurrent))
	}

	switch c.Storage.Kind {
	case StorageMemory:
	case StorageRedis:
		if c.Storage.RedisAddr == "" {
			errs = append(errs, errors.New("storage.redis_addr is required for redis storage"))
		}
	case StorageSQLite:
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path is required for sqlite storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.kind %q is not one of memory, redis, sqlite", c.Storage.Kind))
	}
	if c.Storage.EncryptionKey != "" {
		if _, err := middleware.ParseKey(c.Storage.EncryptionKey); err != nil {
			errs = append(errs, fmt.Errorf("storage.encryption_key: %w", err))
		}
	} else if len(c.Storage.FallbackKeys) > 0 {
		errs = append(errs, errors.New("storage.fallback_keys requires storage.encryption_key"))
	}
	for i, k := range c.Storage.FallbackKeys {
		if _, err := middleware.ParseKey(k); err != nil {
			errs = append(errs, fmt.Errorf("storage.fallback_keys[%d]: %w", i, err))
		}
	}
	for i, p := range c.Storage.PIIPatterns {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("storage.pii_patterns[%d]: %w", i, err))
		}
	}
	for i, p := range c.Storage.PIIMetadataKeys {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("storage.pii_metadata_keys[%d]: %w", i, err))
		}
	}

	seen := make(map[string]bool)
	for i, dc := range c.Domains {
		d, err := dc.Resolve()
		if err != nil {
			errs = append(errs, fmt.Errorf("domains[%d]: %w", i, err))
			continue
		}
		if seen[d.ID] {
			errs = append(errs, fmt.Errorf("domains[%d]: %w: %s", i, domain.ErrDuplicateDomain, d.ID))
		}
		seen[d.ID] = true
	}
	for id := range c.Knowledge.Local {
		if !seen[id] {
			errs = append(errs, fmt.Errorf("knowledge.local.%s: %w", id, domain.ErrUnknownDomain))
		}
	}
	return errors.Join(errs...)
}

// ResolveDomains returns the configured domains in file order.
func (c *Config) ResolveDomains() ([]domain.Domain, error) {
	out := make([]domain.Domain, 0, len(c.Domains))
	for i, dc := range c.Domains {
		d, err := dc.Resolve()
		if err != nil {
			return nil, fmt.Errorf("domains[%d]: %w", i, err)
		}
		out = append(out, d)
	}
	return out, nil
}
