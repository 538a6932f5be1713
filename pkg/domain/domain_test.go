package domain_test

import (
	"errors"
	"testing"

	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModelRef(t *testing.T) {
	kind, name := domain.ParseModelRef("ollama://llama3.2:3b", domain.BackendMemory)
	assert.Equal(t, domain.BackendOllama, kind)
	assert.Equal(t, "llama3.2:3b", name)

	kind, name = domain.ParseModelRef("gpt2", domain.BackendMemory)
	assert.Equal(t, domain.BackendMemory, kind)
	assert.Equal(t, "gpt2", name)
}

func TestTierPresets(t *testing.T) {
	t1 := domain.ModelConfigForTier1()
	assert.Equal(t, "cpu", t1.Device)
	assert.Equal(t, domain.QuantizationNone, t1.Quantization)

	assert.Equal(t, domain.QuantizationINT8, domain.ModelConfigForTier2().Quantization)

	t3 := domain.ModelConfigForTier3("meta-llama/Llama-2-7b-hf")
	assert.Equal(t, domain.QuantizationINT4, t3.Quantization)
	assert.Equal(t, domain.TierDomain, t3.Tier)
	assert.Equal(t, "meta-llama/Llama-2-7b-hf", t3.Name)
}

func TestDomain_ModelConfigOverrides(t *testing.T) {
	d := domain.Domain{
		ID:           "finance",
		Description:  "money",
		ModelName:    "ollama://qwen2.5:1.5b",
		Device:       "cpu",
		Quantization: domain.QuantizationFP16,
	}

	cfg := d.ModelConfig()
	assert.Equal(t, domain.BackendOllama, cfg.Backend)
	assert.Equal(t, "qwen2.5:1.5b", cfg.Name)
	assert.Equal(t, "cpu", cfg.Device)
	assert.Equal(t, domain.QuantizationFP16, cfg.Quantization)
}

func TestPredefined(t *testing.T) {
	for _, id := range domain.PredefinedIDs() {
		d, err := domain.Predefined(id)
		require.NoError(t, err, id)
		assert.NoError(t, d.Validate())
		assert.NotEmpty(t, d.Keywords)
	}

	_, err := domain.Predefined("astrology")
	assert.True(t, errors.Is(err, domain.ErrUnknownDomain))
}

func TestWorkflowState_Next(t *testing.T) {
	next, ok := domain.StateInit.Next()
	require.True(t, ok)
	assert.Equal(t, domain.StateClassify, next)

	next, ok = domain.StateLog.Next()
	require.True(t, ok)
	assert.Equal(t, domain.StateReturn, next)

	_, ok = domain.StateReturn.Next()
	assert.False(t, ok)
	_, ok = domain.StateError.Next()
	assert.False(t, ok)
}

func TestDocument_HasTags(t *testing.T) {
	d := domain.Document{Tags: []string{"icd10", "diabetes"}}
	assert.True(t, d.HasTags(nil))
	assert.True(t, d.HasTags([]string{"icd10"}))
	assert.False(t, d.HasTags([]string{"icd10", "cpt"}))
}
