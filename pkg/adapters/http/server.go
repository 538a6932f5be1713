// Package http exposes an Orchestrator as a JSON API with a Server-Sent Events stream.
package http

//go:generate go tool oapi-codegen -package http -generate types,chi-server,spec -o api.gen.go ../../../api/openapi.yaml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/mdsa"
	"github.com/aretw0/mdsa/internal/logging"
	"github.com/aretw0/mdsa/pkg/bus"
	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/executor"
	"github.com/aretw0/mdsa/pkg/rag"
	"github.com/aretw0/mdsa/pkg/session"
)

// Orchestrator is the part of *mdsa.Orchestrator the API serves.
type Orchestrator interface {
	ProcessRequest(ctx context.Context, query string, reqCtx map[string]any) domain.Result
	RegisterDomain(ctx context.Context, d domain.Domain) error
	Domains() []domain.Domain
	Stats() mdsa.Stats
	Bus() *bus.Bus
	RAG() *rag.DualRAG
	Executor() *executor.Executor
}

var _ Orchestrator = (*mdsa.Orchestrator)(nil)

var _ ServerInterface = (*Server)(nil)

// Server holds the handlers of the API.
type Server struct {
	Orchestrator Orchestrator
	Streams      *StreamManager

	gatherer prometheus.Gatherer
	sessions *session.Manager
	logger   *slog.Logger
}

// Option configures the handler.
type Option func(*Server)

// WithGatherer serves /metrics from g. Without it /metrics is not mounted.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithSessions keeps conversation history for requests carrying a session_id.
func WithSessions(m *session.Manager) Option {
	return func(s *Server) {
		s.sessions = m
	}
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// NewHandler creates the HTTP handler for the orchestrator.
func NewHandler(o Orchestrator, opts ...Option) http.Handler {
	s := &Server{
		Orchestrator: o,
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams = NewStreamManager(o.Bus(), s.logger)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		spec, err := rawSpec()
		if err != nil {
			http.Error(w, "Failed to load spec", http.StatusInternalServerError)
			s.logger.Error("Failed to load OpenAPI spec", "err", err)
			return
		}
		w.Write(spec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerHTML))
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	handler := HandlerWithOptions(s, ChiServerOptions{
		BaseRouter:       r,
		ErrorHandlerFunc: s.paramError,
	})
	return enableCORS(handler)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>MDSA API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

// Process handles POST /v1/process. Pipeline outcomes, including errors, are
// returned as a Result with status 200; only malformed requests are rejected.
func (s *Server) Process(w http.ResponseWriter, r *http.Request) {
	var body ProcessJSONRequestBody
	if !s.decode(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Query) == "" {
		s.fail(w, http.StatusBadRequest, errors.New("query is required"))
		return
	}
	var reqCtx map[string]any
	if body.Context != nil {
		reqCtx = *body.Context
	}
	sessionID := deref(body.SessionId)
	if sessionID == "" || s.sessions == nil {
		s.respond(w, http.StatusOK, s.Orchestrator.ProcessRequest(r.Context(), body.Query, reqCtx))
		return
	}

	var res Result
	err := s.sessions.Exchange(r.Context(), sessionID, body.Query, func(ctx context.Context, history []domain.Turn) (string, error) {
		withHistory := make(map[string]any, len(reqCtx)+1)
		for k, v := range reqCtx {
			withHistory[k] = v
		}
		if len(history) > 0 {
			withHistory[domain.KeyHistory] = history
		}
		res = s.Orchestrator.ProcessRequest(ctx, body.Query, withHistory)
		if res.Status != domain.StatusSuccess {
			return "", nil
		}
		return res.Response, nil
	})
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	s.respond(w, http.StatusOK, res)
}

// GetSession handles GET /v1/sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request, id string) {
	if !s.sessionsEnabled(w) {
		return
	}
	history, err := s.sessions.History(r.Context(), id)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	if history == nil {
		history = []Turn{}
	}
	s.respond(w, http.StatusOK, Session{Id: id, History: history})
}

// DeleteSession handles DELETE /v1/sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request, id string) {
	if !s.sessionsEnabled(w) {
		return
	}
	if err := s.sessions.Delete(r.Context(), id); err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetStats handles GET /v1/stats.
func (s *Server) GetStats(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, s.Orchestrator.Stats())
}

// ListDomains handles GET /v1/domains.
func (s *Server) ListDomains(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, s.Orchestrator.Domains())
}

// RegisterDomain handles POST /v1/domains.
func (s *Server) RegisterDomain(w http.ResponseWriter, r *http.Request) {
	var body RegisterDomainJSONRequestBody
	if !s.decode(w, r, &body) {
		return
	}
	var d Domain
	switch {
	case deref(body.Predefined) != "":
		var err error
		if d, err = domain.Predefined(*body.Predefined); err != nil {
			s.fail(w, http.StatusNotFound, err)
			return
		}
	case body.Domain != nil:
		d = *body.Domain
	default:
		s.fail(w, http.StatusBadRequest, errors.New("predefined or domain is required"))
		return
	}
	if err := d.Validate(); err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	if err := s.Orchestrator.RegisterDomain(r.Context(), d); err != nil {
		s.fail(w, statusFor(err), err)
		return
	}
	s.respond(w, http.StatusCreated, d)
}

// ListModels handles GET /v1/models.
func (s *Server) ListModels(w http.ResponseWriter, r *http.Request) {
	resp := ModelsResponse{Loaded: []string{}}
	if exec := s.Orchestrator.Executor(); exec != nil {
		m := exec.Manager()
		resp.Loaded = m.ListModels()
		stats := m.Stats()
		resp.Stats = &stats
	}
	s.respond(w, http.StatusOK, resp)
}

// AddGlobal handles POST /v1/rag/global.
func (s *Server) AddGlobal(w http.ResponseWriter, r *http.Request) {
	store, ok := s.retrieval(w)
	if !ok {
		return
	}
	var body AddGlobalJSONRequestBody
	if !s.decode(w, r, &body) {
		return
	}
	id, err := store.AddToGlobal(r.Context(), body.Content, deref(body.Metadata), deref(body.Tags))
	if err != nil {
		s.fail(w, statusFor(err), err)
		return
	}
	s.respond(w, http.StatusCreated, DocumentCreated{Id: id})
}

// AddLocal handles POST /v1/rag/local/{domain_id}.
func (s *Server) AddLocal(w http.ResponseWriter, r *http.Request, domainId string) {
	store, ok := s.retrieval(w)
	if !ok {
		return
	}
	var body AddLocalJSONRequestBody
	if !s.decode(w, r, &body) {
		return
	}
	id, err := store.AddToLocal(r.Context(), domainId, body.Content, deref(body.Metadata), deref(body.Tags))
	if err != nil {
		s.fail(w, statusFor(err), err)
		return
	}
	s.respond(w, http.StatusCreated, DocumentCreated{Id: id})
}

// Retrieve handles POST /v1/rag/retrieve.
func (s *Server) Retrieve(w http.ResponseWriter, r *http.Request) {
	store, ok := s.retrieval(w)
	if !ok {
		return
	}
	var body RetrieveJSONRequestBody
	if !s.decode(w, r, &body) {
		return
	}
	opts := rag.RetrieveOptions{
		SkipLocal:  body.SkipLocal != nil && *body.SkipLocal,
		SkipGlobal: body.SkipGlobal != nil && *body.SkipGlobal,
		Tags:       deref(body.Tags),
	}
	if body.TopK != nil {
		opts.TopK = *body.TopK
	}
	res, err := store.Retrieve(r.Context(), body.Query, deref(body.Domain), opts)
	if err != nil {
		s.fail(w, statusFor(err), err)
		return
	}
	s.respond(w, http.StatusOK, res)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, Health{Status: "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if swagger, err := GetSwagger(); err == nil && swagger.Info != nil {
		apiVersion = swagger.Info.Version
	}
	s.respond(w, http.StatusOK, Info{
		App:        "mdsa-http",
		Version:    strings.TrimSpace(mdsa.Version),
		ApiVersion: apiVersion,
		Domains:    len(s.Orchestrator.Domains()),
	})
}

// SubscribeEvents handles GET /v1/events (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request, params SubscribeEventsParams) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel, err := s.Streams.Subscribe(deref(params.Channel), deref(params.CorrelationId))
	if err != nil {
		http.Error(w, fmt.Sprintf("Subscribe error: %v", err), http.StatusInternalServerError)
		return
	}
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Warn("SSE: encode failed", "err", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Type, data)
			flusher.Flush()
		}
	}
}

func (s *Server) sessionsEnabled(w http.ResponseWriter) bool {
	if s.sessions == nil {
		s.fail(w, http.StatusNotFound, errors.New("sessions are not enabled"))
		return false
	}
	return true
}

func (s *Server) retrieval(w http.ResponseWriter) (*rag.DualRAG, bool) {
	store := s.Orchestrator.RAG()
	if store == nil {
		s.fail(w, http.StatusNotImplemented, errors.New("retrieval is not configured"))
		return nil, false
	}
	return store, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.fail(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func (s *Server) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) fail(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	} else {
		s.logger.Debug("request rejected", "status", status, "err", err)
	}
	s.respond(w, status, ErrorResponse{Error: err.Error()})
}

func (s *Server) paramError(w http.ResponseWriter, r *http.Request, err error) {
	s.fail(w, http.StatusBadRequest, err)
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnknownDomain):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateDomain):
		return http.StatusConflict
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
