package domain

import (
	"strings"
	"time"
)

// ModelTier is a coarse size/latency class of a model.
type ModelTier string

const (
	// TierRouting models classify intents and must answer fast (CPU friendly).
	TierRouting ModelTier = "tier1"
	// TierReasoning models decompose complex requests into plans.
	TierReasoning ModelTier = "tier2"
	// TierDomain models execute the actual domain work.
	TierDomain ModelTier = "tier3"
)

// Quantization is the numeric precision a model is loaded with.
type Quantization string

const (
	QuantizationNone Quantization = "none"
	QuantizationINT8 Quantization = "int8"
	QuantizationINT4 Quantization = "int4"
	QuantizationFP16 Quantization = "fp16"
)

// BackendKind selects the model backend family. It is resolved once when the
// configuration is built, never by inspecting model names at call time.
type BackendKind string

const (
	BackendMemory BackendKind = "memory"
	BackendOllama BackendKind = "ollama"
)

const ollamaScheme = "ollama://"

// ParseModelRef resolves a configured model reference such as
// "ollama://llama3.2:3b" into its backend and bare model name.
// References without a scheme use fallback.
func ParseModelRef(ref string, fallback BackendKind) (BackendKind, string) {
	if name, ok := strings.CutPrefix(ref, ollamaScheme); ok {
		return BackendOllama, name
	}
	return fallback, ref
}

// ModelConfig is an immutable recipe describing how to load a model.
type ModelConfig struct {
	Name         string       `json:"name" yaml:"name"`
	Tier         ModelTier    `json:"tier" yaml:"tier"`
	Backend      BackendKind  `json:"backend" yaml:"backend"`
	Device       string       `json:"device" yaml:"device"`
	Quantization Quantization `json:"quantization" yaml:"quantization"`
	MaxLength    int          `json:"max_length" yaml:"max_length"`
}

// ModelConfigForTier1 returns the routing tier preset. Always CPU.
func ModelConfigForTier1() ModelConfig {
	return ModelConfig{
		Name:         "huawei-noah/TinyBERT_General_6L_768D",
		Tier:         TierRouting,
		Backend:      BackendMemory,
		Device:       "cpu",
		Quantization: QuantizationNone,
		MaxLength:    128,
	}
}

// ModelConfigForTier2 returns the reasoning tier preset (8-bit).
func ModelConfigForTier2() ModelConfig {
	return ModelConfig{
		Name:         "microsoft/phi-2",
		Tier:         TierReasoning,
		Backend:      BackendMemory,
		Device:       "auto",
		Quantization: QuantizationINT8,
		MaxLength:    2048,
	}
}

// ModelConfigForTier3 returns the domain tier preset (4-bit) for the given model.
func ModelConfigForTier3(name string) ModelConfig {
	backend, bare := ParseModelRef(name, BackendMemory)
	return ModelConfig{
		Name:         bare,
		Tier:         TierDomain,
		Backend:      backend,
		Device:       "auto",
		Quantization: QuantizationINT4,
		MaxLength:    4096,
	}
}

// ModelInfo is the registry record of a resident model.
// Callers receive snapshots; the registry owns the live record.
type ModelInfo struct {
	ModelID  string      `json:"model_id"`
	Config   ModelConfig `json:"config"`
	Model    any         `json:"-"`
	MemoryMB float64     `json:"memory_mb"`
	UseCount int64       `json:"use_count"`
	LastUsed time.Time   `json:"last_used"`
	LoadedAt time.Time   `json:"loaded_at"`
}
