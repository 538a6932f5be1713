// Package mcp exposes an Orchestrator as a Model Context Protocol server.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/mdsa"
	"github.com/aretw0/mdsa/internal/logging"
	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/rag"
	"github.com/aretw0/mdsa/pkg/router"
)

// Orchestrator is the part of *mdsa.Orchestrator the MCP tools use.
type Orchestrator interface {
	ProcessRequest(ctx context.Context, query string, reqCtx map[string]any) domain.Result
	Domains() []domain.Domain
	Router() *router.Router
	RAG() *rag.DualRAG
	Stats() mdsa.Stats
}

var _ Orchestrator = (*mdsa.Orchestrator)(nil)

// Server wraps an Orchestrator and exposes it as an MCP Server.
type Server struct {
	orch      Orchestrator
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(o Orchestrator, opts ...Option) *Server {
	s := &Server{
		orch:      o,
		mcpServer: server.NewMCPServer("mdsa-mcp", strings.TrimSpace(mdsa.Version)),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and stops when ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ProcessArgs are the arguments of the process_request tool.
type ProcessArgs struct {
	Query       string `mapstructure:"query"`
	Context     string `mapstructure:"context"`
	ForceDomain string `mapstructure:"force_domain"`
}

// ClassifyArgs are the arguments of the classify tool.
type ClassifyArgs struct {
	Query string `mapstructure:"query"`
}

// RetrieveArgs are the arguments of the retrieve tool.
type RetrieveArgs struct {
	Query  string `mapstructure:"query"`
	Domain string `mapstructure:"domain"`
	TopK   int    `mapstructure:"top_k"`
	Tags   string `mapstructure:"tags"`
}

func (s *Server) registerTools() {
	processTool := mcp.NewTool("process_request",
		mcp.WithDescription("Route a query to the best domain model and return its answer."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The user request")),
		mcp.WithString("context", mcp.Description("JSON object of request options (history, use_rag, top_k, tags, timeout_ms)")),
		mcp.WithString("force_domain", mcp.Description("Skip routing and use this domain")),
		mcp.WithOutputSchema[domain.Result](),
	)
	s.mcpServer.AddTool(processTool, mcp.NewStructuredToolHandler(s.handleProcess))

	classifyTool := mcp.NewTool("classify",
		mcp.WithDescription("Classify a query without executing it."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The text to classify")),
		mcp.WithOutputSchema[router.Classification](),
	)
	s.mcpServer.AddTool(classifyTool, mcp.NewStructuredToolHandler(s.handleClassify))

	retrieveTool := mcp.NewTool("retrieve",
		mcp.WithDescription("Search the shared knowledge base and a domain's private knowledge."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
		mcp.WithString("domain", mcp.Required(), mcp.Description("Domain whose local knowledge is searched")),
		mcp.WithNumber("top_k", mcp.Description("Maximum documents per tier")),
		mcp.WithString("tags", mcp.Description("Comma separated tags every document must carry")),
	)
	s.mcpServer.AddTool(retrieveTool, mcp.NewStructuredToolHandler(s.handleRetrieve))

	s.mcpServer.AddTool(mcp.NewTool("get_stats",
		mcp.WithDescription("Get orchestrator counters, routing and model statistics."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jsonBytes, err := json.Marshal(s.orch.Stats())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode stats: %v", err)), nil
		}
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

func (s *Server) handleProcess(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (domain.Result, error) {
	var in ProcessArgs
	if err := mapstructure.WeakDecode(args, &in); err != nil {
		return domain.Result{}, fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(in.Query) == "" {
		return domain.Result{}, errors.New("query is required")
	}

	reqCtx := map[string]any{}
	if in.Context != "" {
		if err := json.Unmarshal([]byte(in.Context), &reqCtx); err != nil {
			return domain.Result{}, fmt.Errorf("context must be a JSON object: %w", err)
		}
	}
	if in.ForceDomain != "" {
		reqCtx["force_domain"] = in.ForceDomain
	}

	res := s.orch.ProcessRequest(ctx, in.Query, reqCtx)
	s.logger.Debug("MCP process_request", "correlation_id", res.Metadata.CorrelationID, "status", res.Status)
	return res, nil
}

func (s *Server) handleClassify(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (router.Classification, error) {
	var in ClassifyArgs
	if err := mapstructure.WeakDecode(args, &in); err != nil {
		return router.Classification{}, fmt.Errorf("invalid arguments: %w", err)
	}
	if len(s.orch.Router().Domains()) == 0 {
		return router.Classification{}, errors.New("no domains registered")
	}
	return s.orch.Router().ClassifyDetailed(ctx, in.Query), nil
}

func (s *Server) handleRetrieve(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (rag.Retrieval, error) {
	var in RetrieveArgs
	if err := mapstructure.WeakDecode(args, &in); err != nil {
		return rag.Retrieval{}, fmt.Errorf("invalid arguments: %w", err)
	}
	store := s.orch.RAG()
	if store == nil {
		return rag.Retrieval{}, errors.New("retrieval is not configured")
	}

	opts := rag.RetrieveOptions{TopK: in.TopK}
	for _, t := range strings.Split(in.Tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			opts.Tags = append(opts.Tags, t)
		}
	}
	return store.Retrieve(ctx, in.Query, in.Domain, opts)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("mdsa://domains", "Registered Domains",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.orch.Domains())
		if err != nil {
			return nil, fmt.Errorf("failed to encode domains: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "mdsa://domains",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
