package mdsa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/mdsa/internal/logging"
	"github.com/aretw0/mdsa/pkg/adapters/memory"
	"github.com/aretw0/mdsa/pkg/bus"
	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/executor"
	"github.com/aretw0/mdsa/pkg/models"
	"github.com/aretw0/mdsa/pkg/ports"
	"github.com/aretw0/mdsa/pkg/rag"
	"github.com/aretw0/mdsa/pkg/reasoner"
	"github.com/aretw0/mdsa/pkg/registry"
	"github.com/aretw0/mdsa/pkg/router"
	"github.com/aretw0/mdsa/pkg/workflow"
)

const senderOrchestrator = "orchestrator"

// Orchestrator is the high-level entry point of the framework. It classifies
// requests, escalates low-confidence ones, plans complex ones and runs the
// rest against domain models. It is safe for concurrent use: every request
// gets its own state machine.
type Orchestrator struct {
	router    *router.Router
	ownRouter bool
	embedder  ports.Embedder
	executor  *executor.Executor
	rag       *rag.DualRAG
	analyzer  *reasoner.Analyzer
	planner   *reasoner.Planner
	tools     *registry.Registry
	bus       *bus.Bus
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	threshold float64
	reasoning bool
	topK      int
	maxQuery  int

	mu      sync.RWMutex
	domains map[string]domain.Domain
	order   []string

	seq   atomic.Uint64
	stats counters
}

// New creates an Orchestrator with no domains.
func New(opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		threshold: domain.DefaultConfidenceThreshold,
		reasoning: true,
		topK:      domain.DefaultTopK,
		maxQuery:  DefaultMaxQueryBytes,
		domains:   make(map[string]domain.Domain),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		o.logger = logging.NewNop()
	}
	if o.router == nil {
		emb := o.embedder
		if emb == nil {
			emb = memory.NewHashEmbedder(memory.DefaultDimension)
		}
		r, err := router.New(router.WithEmbedder(emb), router.WithLogger(o.logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create router: %w", err)
		}
		o.router = r
		o.ownRouter = true
	}
	if o.bus == nil {
		o.bus = bus.New(bus.WithLogger(o.logger))
	}
	if o.analyzer == nil {
		o.analyzer = reasoner.NewAnalyzer()
	}
	if o.planner == nil {
		o.planner = reasoner.NewPlanner(
			reasoner.WithDecomposer(reasoner.NewClauseDecomposer(o.router, reasoner.WithMinConfidence(o.threshold))),
			reasoner.WithLogger(o.logger),
		)
	}
	return o, nil
}

// RegisterDomain makes d routable. Registering an id twice is a no-op.
func (o *Orchestrator) RegisterDomain(ctx context.Context, d domain.Domain) error {
	if err := d.Validate(); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.domains[d.ID]; exists {
		o.logger.Debug("domain already registered", "domain", d.ID)
		return nil
	}
	if err := o.router.RegisterDomain(ctx, d.ID, d.Description, d.Keywords); err != nil {
		return err
	}
	if o.rag != nil {
		if err := o.rag.RegisterDomain(d.ID); err != nil {
			return err
		}
	}
	o.domains[d.ID] = d
	o.order = append(o.order, d.ID)
	o.logger.Info("domain registered", "domain", d.ID)

	o.publish(bus.ChannelSystem, map[string]any{"action": "domain_registered", "domain": d.ID}, bus.MessageLog, "")
	return nil
}

// Domain returns a registered domain.
func (o *Orchestrator) Domain(id string) (domain.Domain, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	d, ok := o.domains[id]
	return d, ok
}

// Domains lists registered domains in registration order.
func (o *Orchestrator) Domains() []domain.Domain {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]domain.Domain, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, o.domains[id])
	}
	return out
}

// Router returns the intent router.
func (o *Orchestrator) Router() *router.Router { return o.router }

// Bus returns the message bus.
func (o *Orchestrator) Bus() *bus.Bus { return o.bus }

// RAG returns the retrieval store, or nil.
func (o *Orchestrator) RAG() *rag.DualRAG { return o.rag }

// Executor returns the domain executor, or nil in routing-only mode.
func (o *Orchestrator) Executor() *executor.Executor { return o.executor }

// Planner returns the planner used on the reasoning path.
func (o *Orchestrator) Planner() *reasoner.Planner { return o.planner }

// RequestOptions are the recognized keys of a request context map.
type RequestOptions struct {
	// ForceDomain skips classification. "domain" is accepted as an alias.
	ForceDomain string          `mapstructure:"force_domain"`
	Domain      string          `mapstructure:"domain"`
	History     []executor.Turn `mapstructure:"history"`
	UseRAG      *bool           `mapstructure:"use_rag"`
	TopK        int             `mapstructure:"top_k"`
	Tags        []string        `mapstructure:"tags"`
	TimeoutMS   int             `mapstructure:"timeout_ms"`
}

// DecodeRequestOptions reads the recognized keys of reqCtx. Unknown keys are ignored.
func DecodeRequestOptions(reqCtx map[string]any) (RequestOptions, error) {
	var opts RequestOptions
	if len(reqCtx) == 0 {
		return opts, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &opts,
	})
	if err != nil {
		return opts, err
	}
	if err := dec.Decode(reqCtx); err != nil {
		return opts, fmt.Errorf("%w: request context: %v", domain.ErrValidation, err)
	}
	if opts.ForceDomain == "" {
		opts.ForceDomain = opts.Domain
	}
	return opts, nil
}

// request carries the per-call state through the pipeline.
type request struct {
	query         string
	reqCtx        map[string]any
	opts          RequestOptions
	correlationID string
	start         time.Time
	sm            *workflow.Machine
}

// ProcessRequest runs query through the workflow. It never panics and never
// returns an error: failures are reported with Status=error.
func (o *Orchestrator) ProcessRequest(ctx context.Context, query string, reqCtx map[string]any) (res domain.Result) {
	req := &request{
		query:         query,
		reqCtx:        reqCtx,
		correlationID: o.nextCorrelationID(),
		start:         time.Now(),
	}
	ctx = domain.WithCorrelationID(ctx, req.correlationID)
	req.sm = o.newMachine(ctx, req.correlationID)
	req.sm.SetMetadata("correlation_id", req.correlationID)
	req.sm.SetMetadata("query", query)

	o.publish(bus.ChannelOrchestrator, map[string]any{"query": query}, bus.MessageRequest, req.correlationID)

	defer func() {
		if p := recover(); p != nil {
			o.logger.Error("request panicked", "correlation_id", req.correlationID, "panic", p)
			res = o.fail(req, domain.Metadata{}, fmt.Errorf("internal error: %v", p), domain.ErrorKindInternal)
		}
		o.finish(ctx, req, res)
	}()

	clean, err := SanitizeQuery(query, o.maxQuery)
	if err != nil {
		return o.fail(req, domain.Metadata{}, err, domain.ErrorKindValidation)
	}
	req.query = clean

	opts, err := DecodeRequestOptions(reqCtx)
	if err != nil {
		return o.fail(req, domain.Metadata{}, err, domain.ErrorKindValidation)
	}
	req.opts = opts
	if opts.TimeoutMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(opts.TimeoutMS)*time.Millisecond)
		defer cancel()
	}

	return o.process(ctx, req)
}

func (o *Orchestrator) process(ctx context.Context, req *request) domain.Result {
	if err := req.sm.Transition(domain.StateClassify, false); err != nil {
		return o.fail(req, domain.Metadata{}, err, domain.ErrorKindInternal)
	}

	domainID, confidence, matched, err := o.classify(ctx, req)
	meta := domain.Metadata{Domain: domainID, Confidence: confidence}
	if err != nil {
		return o.fail(req, meta, err, domain.ErrorKindValidation)
	}
	o.logger.Info("query classified",
		"correlation_id", req.correlationID,
		"domain", domainID,
		"confidence", confidence,
	)

	if o.reasoning && req.opts.ForceDomain == "" {
		cx := o.analyzer.Analyze(req.query, confidence, matched)
		o.logger.Debug("complexity analyzed",
			"correlation_id", req.correlationID,
			"score", cx.Score,
			"complex", cx.IsComplex,
			"indicators", cx.Indicators,
		)
		if cx.IsComplex {
			plan := o.planner.AnalyzeAndPlan(ctx, req.query, req.reqCtx)
			if !plan.Success {
				meta.ReasoningUsed = true
				meta.ReasoningAnalysis = plan.Analysis
				meta.ReasoningTimeMS = plan.ReasoningTimeMS
				kind := domain.ErrorKindInternal
				if errors.Is(plan.Err, domain.ErrCyclicPlan) || errors.Is(plan.Err, domain.ErrDependencyUnsatisfied) {
					kind = domain.ErrorKindDependency
				}
				return o.fail(req, meta, fmt.Errorf("reasoning failed: %w", plan.Err), kind)
			}
			if len(plan.ExecutionPlan) >= 2 {
				return o.processWithReasoning(ctx, req, plan)
			}
		}
	}

	if confidence < o.threshold {
		return o.escalate(req, meta)
	}
	return o.processDirect(ctx, req, meta)
}

func (o *Orchestrator) classify(ctx context.Context, req *request) (string, float64, int, error) {
	if forced := req.opts.ForceDomain; forced != "" {
		if _, ok := o.Domain(forced); !ok {
			return forced, 0, 0, fmt.Errorf("%w: %s", domain.ErrUnknownDomain, forced)
		}
		return forced, 1, 1, nil
	}
	c := o.router.ClassifyDetailed(ctx, req.query)
	return c.Domain, c.Confidence, c.Matched(), nil
}

func (o *Orchestrator) escalate(req *request, meta domain.Metadata) domain.Result {
	o.logger.Warn("low confidence escalation",
		"correlation_id", req.correlationID,
		"domain", meta.Domain,
		"confidence", meta.Confidence,
	)
	if err := req.sm.Transition(domain.StateReturn, true); err != nil {
		return o.fail(req, meta, err, domain.ErrorKindInternal)
	}
	meta.Threshold = o.threshold
	meta.RequiresHumanReview = true
	return o.result(req, domain.StatusEscalated, "Low confidence - escalated to human review", "", meta)
}

func (o *Orchestrator) processDirect(ctx context.Context, req *request, meta domain.Metadata) domain.Result {
	d, ok := o.Domain(meta.Domain)

	// VALIDATE_PRE
	if err := req.sm.Transition(domain.StateValidatePre, false); err != nil {
		return o.fail(req, meta, err, domain.ErrorKindInternal)
	}
	if !ok {
		return o.fail(req, meta, fmt.Errorf("%w: %q", domain.ErrUnknownDomain, meta.Domain), domain.ErrorKindValidation)
	}
	if strings.TrimSpace(req.query) == "" {
		return o.fail(req, meta, fmt.Errorf("%w: empty query", domain.ErrValidation), domain.ErrorKindValidation)
	}

	// LOAD_SLM
	if err := req.sm.Transition(domain.StateLoadSLM, false); err != nil {
		return o.fail(req, meta, err, domain.ErrorKindInternal)
	}
	var lease *models.Lease
	if o.executor != nil {
		var err error
		lease, err = o.executor.Manager().GetOrLoad(ctx, d.ModelConfig())
		if err != nil {
			return o.fail(req, meta, err, loadErrorKind(err))
		}
		defer lease.Release()
		meta.Model = lease.Info().ModelID
	}

	// EXECUTE
	if err := req.sm.Transition(domain.StateExecute, false); err != nil {
		return o.fail(req, meta, err, domain.ErrorKindInternal)
	}
	if o.executor == nil {
		return o.complete(req, meta, fmt.Sprintf("Request routed to %s domain", d.ID), "")
	}
	exec := o.execute(ctx, req, d, req.query, meta.Confidence, lease)
	meta.TokensGenerated = exec.TokensGenerated
	if !exec.OK() {
		return o.fail(req, meta, errors.New(exec.Error), exec.ErrorKind)
	}

	// VALIDATE_POST
	if err := req.sm.Transition(domain.StateValidatePost, false); err != nil {
		return o.fail(req, meta, err, domain.ErrorKindInternal)
	}
	if exec.Validation.Repetitive {
		o.logger.Warn("repetitive response", "correlation_id", req.correlationID, "domain", d.ID, "issues", exec.Validation.Issues)
	}
	return o.complete(req, meta, fmt.Sprintf("Request processed by %s domain", d.ID), exec.Response)
}

// complete walks the rest of the happy path and builds the success result.
func (o *Orchestrator) complete(req *request, meta domain.Metadata, msg, response string) domain.Result {
	for {
		next, ok := req.sm.Current().Next()
		if !ok {
			break
		}
		if err := req.sm.Transition(next, false); err != nil {
			return o.fail(req, meta, err, domain.ErrorKindInternal)
		}
		if next == domain.StateLog {
			o.logger.Info("request complete",
				"correlation_id", req.correlationID,
				"domain", meta.Domain,
				"latency_ms", msSince(req.start),
			)
		}
	}
	return o.result(req, domain.StatusSuccess, msg, response, meta)
}

// execute runs one query against d, with retrieved context when RAG is enabled.
// lease may be nil, in which case the executor checks the model out itself.
func (o *Orchestrator) execute(ctx context.Context, req *request, d domain.Domain, query string, confidence float64, lease *models.Lease, extra ...string) domain.ExecutionResult {
	opts := executor.Options{
		History:    req.opts.History,
		Confidence: confidence,
		Lease:      lease,
		Context:    append(o.retrieve(ctx, req, d.ID, query), extra...),
	}
	if req.opts.TimeoutMS > 0 {
		opts.Timeout = time.Duration(req.opts.TimeoutMS) * time.Millisecond
	}
	return o.executor.Execute(ctx, query, d, opts)
}

func (o *Orchestrator) retrieve(ctx context.Context, req *request, domainID, query string) []string {
	if o.rag == nil || (req.opts.UseRAG != nil && !*req.opts.UseRAG) {
		return nil
	}
	topK := o.topK
	if req.opts.TopK > 0 {
		topK = req.opts.TopK
	}
	got, err := o.rag.Retrieve(ctx, query, domainID, rag.RetrieveOptions{TopK: topK, Tags: req.opts.Tags})
	if err != nil {
		o.logger.Warn("retrieval failed", "correlation_id", req.correlationID, "domain", domainID, "err", err)
		return nil
	}
	docs := got.Documents()
	out := make([]string, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.Content)
	}
	return out
}

func (o *Orchestrator) result(req *request, status domain.Status, msg, response string, meta domain.Metadata) domain.Result {
	meta.CorrelationID = req.correlationID
	meta.LatencyMS = msSince(req.start)
	meta.StateHistory = req.sm.History()
	return domain.Result{Status: status, Message: msg, Response: response, Metadata: meta}
}

// fail moves the machine to ERROR and builds the error result.
func (o *Orchestrator) fail(req *request, meta domain.Metadata, err error, kind domain.ErrorKind) domain.Result {
	if !req.sm.IsTerminal() {
		req.sm.Fail()
	}
	if kind == domain.ErrorKindNone {
		kind = domain.ErrorKindInternal
	}
	meta.Error = err.Error()
	meta.ErrorKind = kind
	o.logger.Error("request processing failed",
		"correlation_id", req.correlationID,
		"domain", meta.Domain,
		"kind", kind,
		"err", err,
	)
	return o.result(req, domain.StatusError, err.Error(), "", meta)
}

// finish updates counters and emits the completion message and hook.
func (o *Orchestrator) finish(ctx context.Context, req *request, res domain.Result) {
	o.stats.record(res)

	typ := bus.MessageResponse
	if res.Status == domain.StatusError {
		typ = bus.MessageError
	}
	o.publish(bus.ChannelOrchestrator, res, typ, req.correlationID)

	if o.hooks.OnRequestComplete != nil {
		o.hooks.OnRequestComplete(ctx, &domain.RequestEvent{
			EventBase: domain.EventBase{
				Timestamp:     time.Now(),
				Type:          domain.EventRequestComplete,
				CorrelationID: req.correlationID,
			},
			Status:        res.Status,
			Domain:        res.Metadata.Domain,
			LatencyMS:     res.Metadata.LatencyMS,
			ReasoningUsed: res.Metadata.ReasoningUsed,
		})
	}
}

func (o *Orchestrator) newMachine(ctx context.Context, correlationID string) *workflow.Machine {
	return workflow.New(
		workflow.WithLogger(o.logger),
		workflow.WithListener(func(from, to domain.WorkflowState, forced bool) {
			o.publish(bus.ChannelStateChanges, map[string]any{"state": to}, bus.MessageStateChange, correlationID)
			if o.hooks.OnStateChange != nil {
				o.hooks.OnStateChange(ctx, &domain.StateEvent{
					EventBase: domain.EventBase{
						Timestamp:     time.Now(),
						Type:          domain.EventStateChange,
						CorrelationID: correlationID,
					},
					From:   from,
					To:     to,
					Forced: forced,
				})
			}
		}),
	)
}

func (o *Orchestrator) publish(channel string, payload any, typ bus.MessageType, correlationID string) {
	if _, err := o.bus.Publish(channel, senderOrchestrator, payload, typ, correlationID); err != nil {
		o.logger.Debug("bus publish dropped", "channel", channel, "err", err)
	}
}

// nextCorrelationID returns req_<unix-millis>_<seq>.
func (o *Orchestrator) nextCorrelationID() string {
	return fmt.Sprintf("req_%d_%d", time.Now().UnixMilli(), o.seq.Add(1))
}

// Close releases resources owned by the orchestrator.
func (o *Orchestrator) Close() error {
	if o.ownRouter {
		o.router.Close()
	}
	o.bus.Close()
	return nil
}

func loadErrorKind(err error) domain.ErrorKind {
	if errors.Is(err, domain.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrorKindTimeout
	}
	return domain.ErrorKindModelLoad
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
