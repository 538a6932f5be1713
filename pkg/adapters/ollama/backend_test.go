package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/ports"
	"github.com/aretw0/mdsa/pkg/ports/tests"
)

type fakeServer struct {
	mu       sync.Mutex
	requests []generateRequest
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/show", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["model"] != "llama3.2:3b" {
			http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"details":{"parameter_size":"3.2B","quantization_level":"Q4_K_M"}}`))
	})
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.requests = append(f.requests, req)
		f.mu.Unlock()
		if req.Prompt == "" {
			_, _ = w.Write([]byte(`{"response":""}`))
			return
		}
		_, _ = w.Write([]byte(`{"response":"Transfer scheduled.","eval_count":4}`))
	})
	return mux
}

func TestBackend_Contract(t *testing.T) {
	srv := httptest.NewServer((&fakeServer{}).handler())
	defer srv.Close()

	cfg := domain.ModelConfigForTier3("ollama://llama3.2:3b")
	tests.ModelBackendContractTest(t, New(srv.URL, WithRateLimit(1000, 10)), cfg)
}

func TestBackend_GenerateSendsPromptAndOptions(t *testing.T) {
	fake := &fakeServer{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	b := New(srv.URL, WithRateLimit(1000, 10), WithKeepAlive("1m"))
	m, err := b.Load(context.Background(), domain.ModelConfigForTier3("ollama://llama3.2:3b"))
	require.NoError(t, err)
	assert.InDelta(t, 1716.6, m.MemoryMB(), 1)

	resp, err := m.Generate(context.Background(), ports.GenerateRequest{Prompt: "move money", System: "You are a banker.", MaxTokens: 64})
	require.NoError(t, err)
	assert.Equal(t, "Transfer scheduled.", resp.Text)
	assert.Equal(t, 4, resp.TokensGenerated)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	last := fake.requests[len(fake.requests)-1]
	assert.Equal(t, "llama3.2:3b", last.Model)
	assert.Equal(t, "You are a banker.", last.System)
	assert.Equal(t, float64(64), last.Options["num_predict"])
	assert.Equal(t, "1m", last.KeepAlive)
}

func TestBackend_UnknownModel(t *testing.T) {
	srv := httptest.NewServer((&fakeServer{}).handler())
	defer srv.Close()

	_, err := New(srv.URL).Load(context.Background(), domain.ModelConfigForTier3("ollama://missing"))
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestBackend_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"out of memory"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Load(context.Background(), domain.ModelConfigForTier3("ollama://llama3.2:3b"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of memory")
}

func TestEstimateMemoryMB(t *testing.T) {
	assert.InDelta(t, 1716.6, estimateMemoryMB("3.2B", "Q4_K_M"), 1)
	assert.InDelta(t, 228.9, estimateMemoryMB("120M", "F16"), 1)
	assert.Zero(t, estimateMemoryMB("", ""))
	assert.Zero(t, estimateMemoryMB("lots", "Q4"))
}
