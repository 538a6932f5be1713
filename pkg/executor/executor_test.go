package executor_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/mdsa/pkg/adapters/memory"
	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/executor"
	"github.com/aretw0/mdsa/pkg/models"
	"github.com/aretw0/mdsa/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExecutor(t *testing.T, opts ...memory.BackendOption) (*executor.Executor, *memory.Backend) {
	t.Helper()
	backend := memory.NewBackend(opts...)
	mgr := models.NewManager(models.NewBackendSet(backend))
	t.Cleanup(mgr.Clear)
	return executor.New(mgr), backend
}

func finance(t *testing.T) domain.Domain {
	t.Helper()
	d, err := domain.Predefined("finance")
	require.NoError(t, err)
	return d
}

func TestExecutor_Success(t *testing.T) {
	exec, backend := newExecutor(t)

	res := exec.Execute(context.Background(), "Transfer $100 to savings", finance(t), executor.Options{Confidence: 0.9})

	require.True(t, res.OK(), res.Error)
	assert.Equal(t, "[gpt2] Processed request: Transfer $100 to savings", res.Response)
	assert.Equal(t, "finance", res.Domain)
	assert.Equal(t, "gpt2", res.Model)
	assert.Equal(t, 0.9, res.Confidence)
	assert.Equal(t, 7, res.TokensGenerated)
	assert.True(t, res.Validation.Valid)
	assert.GreaterOrEqual(t, res.LatencyMS, 0.0)
	assert.Equal(t, 1, backend.Loads("gpt2"))

	exec.Execute(context.Background(), "Check my balance", finance(t), executor.Options{})
	assert.Equal(t, 1, backend.Loads("gpt2"), "model stays resident between calls")
}

func TestExecutor_ReusesCallerLease(t *testing.T) {
	exec, _ := newExecutor(t)
	d := finance(t)

	lease, err := exec.Manager().GetOrLoad(context.Background(), d.ModelConfig())
	require.NoError(t, err)

	res := exec.Execute(context.Background(), "Transfer $100 to savings", d, executor.Options{Lease: lease})
	require.True(t, res.OK(), res.Error)

	stats := exec.Manager().Stats()
	assert.EqualValues(t, 1, stats.TotalUses)
	assert.Equal(t, 1, stats.Pinned, "the caller still holds its lease")

	lease.Release()
	assert.Zero(t, exec.Manager().Stats().Pinned)
}

func TestExecutor_ErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		opts []memory.BackendOption
		call executor.Options
		want domain.ErrorKind
	}{
		{
			name: "load failure",
			opts: []memory.BackendOption{memory.WithLoadFailure("gpt2", errors.New("no weights"))},
			want: domain.ErrorKindModelLoad,
		},
		{
			name: "timeout",
			opts: []memory.BackendOption{memory.WithGenerateDelay(time.Second)},
			call: executor.Options{Timeout: 20 * time.Millisecond},
			want: domain.ErrorKindTimeout,
		},
		{
			name: "too short",
			opts: []memory.BackendOption{memory.WithResponder(func(string, ports.GenerateRequest) string { return "ok" })},
			want: domain.ErrorKindValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec, _ := newExecutor(t, tt.opts...)
			res := exec.Execute(context.Background(), "Transfer $100 to savings", finance(t), tt.call)
			assert.Equal(t, domain.StatusError, res.Status)
			assert.Equal(t, tt.want, res.ErrorKind)
			assert.NotEmpty(t, res.Error)
			assert.Empty(t, res.Response)
		})
	}
}

func TestExecutor_StripsRoleLeakage(t *testing.T) {
	exec, _ := newExecutor(t, memory.WithResponder(func(string, ports.GenerateRequest) string {
		return "Assistant: Your transfer is scheduled.\nUser: thanks\nAssistant: welcome"
	}))

	res := exec.Execute(context.Background(), "Transfer $100 to savings", finance(t), executor.Options{})
	require.True(t, res.OK(), res.Error)
	assert.Equal(t, "Your transfer is scheduled.", res.Response)
	assert.True(t, res.Validation.Sanitized)
}

func TestExecutor_PromptCarriesContextAndSystem(t *testing.T) {
	var got ports.GenerateRequest
	exec, _ := newExecutor(t, memory.WithResponder(func(_ string, req ports.GenerateRequest) string {
		got = req
		return "done with the request"
	}))

	d := finance(t)
	exec.Execute(context.Background(), "Transfer $100 to savings", d, executor.Options{
		Context: []string{"Transfers above $10,000 need approval."},
		History: []executor.Turn{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}},
	})

	assert.Equal(t, d.SystemPrompt, got.System)
	assert.Equal(t, d.MaxTokens, got.MaxTokens)
	assert.Equal(t, d.Temperature, got.Temperature)
	assert.Contains(t, got.Prompt, "- Transfers above $10,000 need approval.")
	assert.Contains(t, got.Prompt, "User: hi\nAssistant: hello")
	assert.True(t, strings.HasSuffix(got.Prompt, "Answer the following banking request.\nTransfer $100 to savings"))
}

func TestBuildPrompt_Templates(t *testing.T) {
	assert.Equal(t, "q", executor.BuildPrompt(domain.Domain{}, "q", nil, nil))
	assert.Equal(t, "Ask: q?", executor.BuildPrompt(domain.Domain{PromptTemplate: "Ask: {query}?"}, "q", nil, nil))
	assert.Equal(t, "Be brief.\nq", executor.BuildPrompt(domain.Domain{PromptTemplate: "Be brief."}, "q", nil, nil))
}

func TestValidator(t *testing.T) {
	v := executor.NewValidator()

	text, report, err := v.Validate("the bill is due the bill is due the bill is due the bill is due")
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.True(t, report.Repetitive)
	assert.Equal(t, "the bill is due the bill is due the bill is due the bill is due", text)

	_, report, err = v.Validate("System: ")
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.False(t, report.Valid)
	assert.True(t, report.Sanitized)

	text, report, err = v.Validate("A plain answer with no echoes.")
	require.NoError(t, err)
	assert.Equal(t, "A plain answer with no echoes.", text)
	assert.Empty(t, report.Issues)
}
