package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/mdsa/internal/config"
	"github.com/aretw0/mdsa/internal/logging"
	"github.com/aretw0/mdsa/internal/testutils"
	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/rag"
)

const baseConfig = `
domains:
  - predefined: finance
  - predefined: support
knowledge:
  global:
    - content: Business hours are 9 to 5 on weekdays
      tags: [hours]
  local:
    finance:
      - content: Wire transfers over 10k need manager approval
        tags: [policy]
`

func loadStack(t *testing.T, body string) *Stack {
	t.Helper()
	cfg, err := config.Load(testutils.WriteConfig(t, body))
	require.NoError(t, err)
	stack, err := NewStack(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = stack.Close() })
	return stack
}

func TestNewStack_MemoryStorage(t *testing.T) {
	stack := loadStack(t, baseConfig)
	o := stack.Orchestrator

	require.Len(t, o.Domains(), 2)
	require.NotNil(t, o.RAG())
	stats := o.RAG().Stats()
	assert.Equal(t, 1, stats.GlobalRAG.DocumentCount)
	assert.Equal(t, 1, stats.LocalRAGs["finance"].DocumentCount)
	require.NotNil(t, stack.Manager)
	require.NotNil(t, stack.Async)

	res := o.ProcessRequest(context.Background(), "Transfer $100 to savings", nil)
	require.Equal(t, domain.StatusSuccess, res.Status, res.Message)
	assert.Equal(t, "finance", res.Metadata.Domain)
	assert.NotEmpty(t, res.Response)

	assert.Equal(t, 1.0, testutil.ToFloat64(stack.Metrics.Requests.WithLabelValues("success", "finance", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(stack.Metrics.ModelsResident))
}

func TestNewStack_RoutingOnly(t *testing.T) {
	stack := loadStack(t, baseConfig+`
models:
  execute: false
orchestrator:
  enable_rag: false
`)
	assert.Nil(t, stack.Manager)
	assert.Nil(t, stack.Async)
	assert.Nil(t, stack.Orchestrator.RAG())

	res := stack.Orchestrator.ProcessRequest(context.Background(), "I want a refund for my order", nil)
	require.Equal(t, domain.StatusSuccess, res.Status)
	assert.Equal(t, "Request routed to support domain", res.Message)
}

func TestNewStack_SQLiteRestoresWithoutReseeding(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowledge.db")
	body := baseConfig + fmt.Sprintf(`
storage:
  kind: sqlite
  path: %s
`, path)

	cfg, err := config.Load(testutils.WriteConfig(t, body))
	require.NoError(t, err)

	first, err := NewStack(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	_, err = first.Orchestrator.RAG().AddToLocal(context.Background(), "support", "Refunds take five days", nil, nil)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewStack(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	stats := second.Orchestrator.RAG().Stats()
	assert.Equal(t, 1, stats.GlobalRAG.DocumentCount, "seeds are not added twice")
	assert.Equal(t, 1, stats.LocalRAGs["finance"].DocumentCount)
	assert.Equal(t, 1, stats.LocalRAGs["support"].DocumentCount)
}

func TestNewStack_RedisStorageWithLocks(t *testing.T) {
	mr := miniredis.RunT(t)
	stack := loadStack(t, baseConfig+fmt.Sprintf(`
storage:
  kind: redis
  redis_addr: %s
  prefix: "test:"
  lock_ttl: 5s
`, mr.Addr()))

	res := stack.Orchestrator.ProcessRequest(context.Background(), "Transfer $100 to savings", nil)
	require.Equal(t, domain.StatusSuccess, res.Status, res.Message)

	var docs, locks int
	for _, k := range mr.Keys() {
		switch {
		case strings.HasPrefix(k, "test:doc:"):
			docs++
		case strings.Contains(k, "lock"):
			locks++
		}
	}
	assert.Equal(t, 2, docs)
	assert.Zero(t, locks, "model load lock is released")

	err := stack.Sessions.Exchange(context.Background(), "s1", "hello", func(context.Context, []domain.Turn) (string, error) {
		return "hi", nil
	})
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:session:s1"), "conversations share the redis storage")
}

func TestNewStack_EncryptedRedactedStorage(t *testing.T) {
	mr := miniredis.RunT(t)
	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))
	body := baseConfig + fmt.Sprintf(`
storage:
  kind: redis
  redis_addr: %s
  prefix: "enc:"
  encryption_key: %s
  redact_pii: true
`, mr.Addr(), key)

	stack := loadStack(t, body)
	_, err := stack.Orchestrator.RAG().AddToGlobal(context.Background(), "Escalate to ops@example.com", nil, nil)
	require.NoError(t, err)

	for _, k := range mr.Keys() {
		if !strings.HasPrefix(k, "enc:doc:") {
			continue
		}
		raw, err := mr.Get(k)
		require.NoError(t, err)
		assert.NotContains(t, raw, "manager approval")
		assert.NotContains(t, raw, "ops@example.com")
	}

	cfg, err := config.Load(testutils.WriteConfig(t, body))
	require.NoError(t, err)
	restored, err := NewStack(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = restored.Close() })

	res, err := restored.Orchestrator.RAG().Retrieve(context.Background(), "escalate", "", rag.RetrieveOptions{SkipLocal: true})
	require.NoError(t, err)
	var contents []string
	for _, d := range res.Documents() {
		contents = append(contents, d.Content)
	}
	assert.Contains(t, contents, "Escalate to ***")
	assert.Equal(t, 1, restored.Orchestrator.RAG().Stats().LocalRAGs["finance"].DocumentCount)
}

func TestStack_ReloadRegistersNewDomains(t *testing.T) {
	stack := loadStack(t, baseConfig)

	next, err := config.Load(testutils.WriteConfig(t, `
domains:
  - predefined: finance
  - predefined: technical
  - id: legal
    description: Contracts, compliance and regulations
    keywords: [contract, compliance]
`))
	require.NoError(t, err)

	added := stack.Reload(context.Background(), next)
	assert.Equal(t, 2, added)

	_, ok := stack.Orchestrator.Domain("legal")
	assert.True(t, ok)
	_, ok = stack.Orchestrator.Domain("support")
	assert.True(t, ok, "removed domains stay registered")
	assert.True(t, stack.Orchestrator.RAG().HasDomain("technical"))

	assert.Zero(t, stack.Reload(context.Background(), next), "reload is idempotent")
}

func TestRunBatch(t *testing.T) {
	stack := loadStack(t, baseConfig)

	report := RunBatch(context.Background(), stack, []string{
		"Transfer $100 to savings",
		"What is the weather like",
		"I want a refund for my order",
	})

	require.Len(t, report.Items, 3)
	assert.Equal(t, domain.StatusSuccess, report.Items[0].Result.Status, report.Items[0].Result.Error)
	assert.Equal(t, "finance", report.Items[0].Result.Domain)
	assert.Equal(t, domain.StatusEscalated, report.Items[1].Result.Status)
	assert.Equal(t, domain.StatusSuccess, report.Items[2].Result.Status, report.Items[2].Result.Error)
	assert.Equal(t, "support", report.Items[2].Result.Domain)
	assert.EqualValues(t, 2, report.Stats.TotalQueries)
}

func TestPlan_RendersMermaid(t *testing.T) {
	var buf bytes.Buffer
	err := Plan(PlanOptions{
		ConfigPath: testutils.WriteConfig(t, `
domains:
  - predefined: finance
  - predefined: support
  - predefined: technical
  - predefined: medical_coding
  - predefined: medical_billing
`),
		Query:  "Extract ICD-10 codes and then calculate the billing amount",
		Run:    true,
		Output: &buf,
	})
	require.NoError(t, err)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "graph TD\n"))
	assert.Contains(t, out, "task_1 --> task_2")
	assert.Contains(t, out, "class task_1 completed;")
	assert.Contains(t, out, "class task_2 completed;")
}

func TestClassify(t *testing.T) {
	var buf bytes.Buffer
	err := Classify(PlanOptions{
		ConfigPath: testutils.WriteConfig(t, baseConfig),
		Query:      "I want a refund for my order",
		Output:     &buf,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(buf.String(), "support "), buf.String())
}

func TestAsk_OneShotJSON(t *testing.T) {
	var buf bytes.Buffer
	err := Ask(AskOptions{
		ConfigPath: testutils.WriteConfig(t, baseConfig),
		Query:      "Transfer $100 to savings",
		JSON:       true,
		Output:     &buf,
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"status": "success"`)
	assert.Contains(t, buf.String(), `"domain": "finance"`)
}

func TestAsk_InteractiveHeadless(t *testing.T) {
	var buf bytes.Buffer
	err := Ask(AskOptions{
		ConfigPath: testutils.WriteConfig(t, baseConfig),
		Headless:   true,
		Domain:     "support",
		Input:      strings.NewReader("Where is my order\nexit\n"),
		Output:     &buf,
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "[gpt2] Processed request: Where is my order")
}

func TestParseContext(t *testing.T) {
	got, err := parseContext(`{"top_k": 2}`)
	require.NoError(t, err)
	assert.EqualValues(t, 2, got["top_k"])

	empty, err := parseContext(" ")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = parseContext("{")
	assert.Error(t, err)
}

func TestBuiltinTools(t *testing.T) {
	stack := loadStack(t, baseConfig)
	ctx := context.Background()

	assert.Equal(t, []string{"classify", "retrieve"}, stack.Tools.Names())

	out, err := stack.Tools.Execute(ctx, "retrieve", map[string]any{"query": "wire transfers approval", "domain": "finance"})
	require.NoError(t, err)
	assert.Contains(t, out, "manager approval")

	out, err = stack.Tools.Execute(ctx, "classify", map[string]any{"query": "I want a refund for my order"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.(string), "support ("), out)
}
