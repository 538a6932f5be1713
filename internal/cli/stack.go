package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/aretw0/mdsa"
	"github.com/aretw0/mdsa/internal/config"
	"github.com/aretw0/mdsa/pkg/adapters/memory"
	"github.com/aretw0/mdsa/pkg/adapters/ollama"
	"github.com/aretw0/mdsa/pkg/adapters/redis"
	"github.com/aretw0/mdsa/pkg/adapters/sqlite"
	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/executor"
	"github.com/aretw0/mdsa/pkg/models"
	"github.com/aretw0/mdsa/pkg/observability"
	"github.com/aretw0/mdsa/pkg/persistence/middleware"
	"github.com/aretw0/mdsa/pkg/ports"
	"github.com/aretw0/mdsa/pkg/rag"
	"github.com/aretw0/mdsa/pkg/reasoner"
	"github.com/aretw0/mdsa/pkg/registry"
	"github.com/aretw0/mdsa/pkg/session"
)

// Stack is an orchestrator wired from a configuration file together with
// the components the commands need direct access to.
type Stack struct {
	Config       *config.Config
	Orchestrator *mdsa.Orchestrator
	Registry     *prometheus.Registry
	Metrics      *observability.Metrics
	Tools        *registry.Registry
	Sessions     *session.Manager
	// Manager and Async are nil in routing-only mode.
	Manager *models.Manager
	Async   *executor.AsyncExecutor

	logger  *slog.Logger
	redis   *goredis.Client
	closers []func() error
}

// NewStack builds every component described by cfg. Extra hooks are combined
// with the metrics hooks.
func NewStack(ctx context.Context, cfg *config.Config, logger *slog.Logger, hooks ...domain.LifecycleHooks) (s *Stack, err error) {
	s = &Stack{
		Config:   cfg,
		Registry: prometheus.NewRegistry(),
		logger:   logger,
	}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	s.Metrics = observability.NewMetrics(s.Registry)
	combined := observability.Combine(append([]domain.LifecycleHooks{s.Metrics.Hooks()}, hooks...)...)

	store, locker, err := s.openStorage(cfg.Storage)
	if err != nil {
		return nil, err
	}
	s.Sessions = s.newSessions(cfg, locker)

	oc := cfg.Orchestrator
	opts := []mdsa.Option{
		mdsa.WithLogger(logger),
		mdsa.WithLifecycleHooks(combined),
		mdsa.WithConfidenceThreshold(oc.ConfidenceThreshold),
		mdsa.WithReasoning(oc.EnableReasoning),
		mdsa.WithTopK(oc.TopK),
		mdsa.WithMaxQueryBytes(oc.MaxQueryBytes),
		mdsa.WithAnalyzer(reasoner.NewAnalyzer(reasoner.WithThreshold(oc.ComplexityThreshold))),
	}

	if oc.EnableRAG {
		ragOpts := []rag.Option{
			rag.WithMaxGlobalDocs(oc.MaxGlobalDocs),
			rag.WithMaxLocalDocs(oc.MaxLocalDocs),
			rag.WithHooks(combined),
			rag.WithLogger(logger),
		}
		if store != nil {
			ragOpts = append(ragOpts, rag.WithStore(store))
		}
		r, err := rag.New(ragOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create retrieval store: %w", err)
		}
		s.closers = append(s.closers, r.Close)
		opts = append(opts, mdsa.WithRAG(r))
	} else if store != nil {
		logger.Warn("storage configured but retrieval is disabled", "kind", cfg.Storage.Kind)
	}

	// The model decomposer and the tools reach the orchestrator built below.
	var orch *mdsa.Orchestrator
	s.Tools = builtinTools(func() *mdsa.Orchestrator { return orch })
	opts = append(opts, mdsa.WithTools(s.Tools))
	if cfg.Models.Execute {
		s.Manager = s.newManager(cfg, combined, locker)
		exec := executor.New(s.Manager,
			executor.WithTimeout(cfg.Models.Timeout),
			executor.WithLogger(logger),
		)
		s.Async = executor.NewAsync(exec, executor.WithMaxConcurrent(cfg.Models.MaxConcurrent))
		opts = append(opts, mdsa.WithExecutor(exec))

		if oc.ReasoningModel != "" {
			dec := reasoner.NewModelDecomposer(s.Manager, reasoningModelConfig(oc.ReasoningModel), func() []string {
				return domainIDs(orch)
			})
			opts = append(opts, mdsa.WithPlanner(reasoner.NewPlanner(
				reasoner.WithDecomposer(dec),
				reasoner.WithLogger(logger),
			)))
		}
	}

	orch, err = mdsa.New(opts...)
	if err != nil {
		return nil, err
	}
	s.Orchestrator = orch
	s.closers = append(s.closers, orch.Close)

	domains, err := cfg.ResolveDomains()
	if err != nil {
		return nil, err
	}
	for _, d := range domains {
		if err := orch.RegisterDomain(ctx, d); err != nil {
			return nil, fmt.Errorf("failed to register domain %s: %w", d.ID, err)
		}
	}

	if err := s.loadKnowledge(ctx, cfg.Knowledge); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Stack) openStorage(sc config.StorageConfig) (ports.DocumentStore, ports.DistributedLocker, error) {
	switch sc.Kind {
	case config.StorageRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     sc.RedisAddr,
			Password: sc.Password,
			DB:       sc.DB,
		})
		s.redis = client
		store := redis.NewFromClient(client, redis.WithPrefix(sc.Prefix))
		s.closers = append(s.closers, store.Close)
		var locker ports.DistributedLocker
		if sc.LockTTL > 0 {
			locker = redis.NewLocker(client, sc.Prefix)
		}
		s.logger.Info("knowledge storage", "kind", sc.Kind, "addr", sc.RedisAddr)
		protected, err := protectStorage(store, sc)
		return protected, locker, err
	case config.StorageSQLite:
		store, err := sqlite.Open(sc.Path)
		if err != nil {
			return nil, nil, err
		}
		s.closers = append(s.closers, store.Close)
		s.logger.Info("knowledge storage", "kind", sc.Kind, "path", sc.Path)
		protected, err := protectStorage(store, sc)
		return protected, nil, err
	default:
		return nil, nil, nil
	}
}

// newSessions keeps conversations next to the knowledge on redis, in memory otherwise.
func (s *Stack) newSessions(cfg *config.Config, locker ports.DistributedLocker) *session.Manager {
	opts := []session.Option{
		session.WithMaxTurns(cfg.Server.MaxTurns),
		session.WithLogger(s.logger),
	}
	if s.redis == nil {
		return session.NewManager(memory.NewConversationStore(), opts...)
	}
	if locker != nil {
		opts = append(opts, session.WithLocker(locker, cfg.Storage.LockTTL))
	}
	store := redis.NewConversationStore(s.redis, cfg.Storage.Prefix, cfg.Server.SessionTTL)
	return session.NewManager(store, opts...)
}

// protectStorage applies PII redaction then encryption to persisted documents.
func protectStorage(store ports.DocumentStore, sc config.StorageConfig) (ports.DocumentStore, error) {
	var mws []middleware.Middleware
	if sc.RedactPII {
		patterns := sc.PIIPatterns
		if len(patterns) == 0 {
			patterns = middleware.DefaultContentPatterns
		}
		mws = append(mws, middleware.NewPIIMiddleware(middleware.PIIConfig{
			MetadataKeys:    sc.PIIMetadataKeys,
			ContentPatterns: patterns,
		}))
	}
	if sc.EncryptionKey != "" {
		active, err := middleware.ParseKey(sc.EncryptionKey)
		if err != nil {
			return nil, err
		}
		enc := middleware.EncryptionConfig{ActiveKey: active}
		for _, k := range sc.FallbackKeys {
			key, err := middleware.ParseKey(k)
			if err != nil {
				return nil, err
			}
			enc.FallbackKeys = append(enc.FallbackKeys, key)
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(enc))
	}
	return middleware.Chain(store, mws...), nil
}

func (s *Stack) newManager(cfg *config.Config, hooks domain.LifecycleHooks, locker ports.DistributedLocker) *models.Manager {
	backends := models.NewBackendSet(
		memory.NewBackend(),
		ollama.New(cfg.Ollama.URL,
			ollama.WithRateLimit(cfg.Ollama.Rate, cfg.Ollama.Burst),
			ollama.WithKeepAlive(cfg.Ollama.KeepAlive),
		),
	)

	regOpts := []models.RegistryOption{
		models.WithRegistryHooks(hooks),
		models.WithRegistryLogger(s.logger),
	}
	if cfg.Models.MaxMemoryMB > 0 {
		regOpts = append(regOpts, models.WithMaxMemoryMB(cfg.Models.MaxMemoryMB))
	}
	registry := models.NewRegistry(cfg.Models.MaxModels, regOpts...)
	s.closers = append(s.closers, func() error {
		registry.Clear()
		return nil
	})

	mgrOpts := []models.ManagerOption{
		models.WithRegistry(registry),
		models.WithLoadTimeout(cfg.Models.LoadTimeout),
		models.WithHooks(hooks),
		models.WithLogger(s.logger),
	}
	if locker != nil {
		mgrOpts = append(mgrOpts, models.WithLocker(locker, cfg.Storage.LockTTL))
	}
	return models.NewManager(backends, mgrOpts...)
}

// loadKnowledge restores persisted documents. Seeds from the configuration
// are only added to an empty store so restarts do not duplicate them.
func (s *Stack) loadKnowledge(ctx context.Context, kc config.KnowledgeConfig) error {
	r := s.Orchestrator.RAG()
	if r == nil {
		return nil
	}
	restored, err := r.Restore(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore knowledge: %w", err)
	}
	if restored > 0 {
		return nil
	}

	for _, d := range kc.Global {
		if _, err := r.AddToGlobal(ctx, d.Content, d.Metadata, d.Tags); err != nil {
			return fmt.Errorf("failed to seed global knowledge: %w", err)
		}
	}
	ids := make([]string, 0, len(kc.Local))
	for id := range kc.Local {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		for _, d := range kc.Local[id] {
			if _, err := r.AddToLocal(ctx, id, d.Content, d.Metadata, d.Tags); err != nil {
				return fmt.Errorf("failed to seed %s knowledge: %w", id, err)
			}
		}
	}
	return nil
}

// Close releases components in reverse construction order.
func (s *Stack) Close() error {
	if s.Async != nil {
		_ = s.Async.Shutdown(context.Background())
	}
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}

func reasoningModelConfig(ref string) domain.ModelConfig {
	cfg := domain.ModelConfigForTier2()
	cfg.Backend, cfg.Name = domain.ParseModelRef(ref, cfg.Backend)
	return cfg
}

func domainIDs(o *mdsa.Orchestrator) []string {
	if o == nil {
		return nil
	}
	domains := o.Domains()
	ids := make([]string, len(domains))
	for i, d := range domains {
		ids[i] = d.ID
	}
	return ids
}
