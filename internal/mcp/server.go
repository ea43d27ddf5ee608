package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/vaultindex/internal/config"
	"github.com/Aman-CERP/vaultindex/internal/embed"
	"github.com/Aman-CERP/vaultindex/internal/queue"
	"github.com/Aman-CERP/vaultindex/internal/search"
	"github.com/Aman-CERP/vaultindex/internal/store"
	"github.com/Aman-CERP/vaultindex/pkg/version"
)

const (
	statusIndexing = "indexing"
	statusReady    = "ready"

	defaultLimit = 10
	maxLimit     = 50
)

// Searcher runs hybrid searches. *search.Engine implements it.
type Searcher interface {
	Search(ctx context.Context, query string, opts search.SearchOptions) ([]search.Result, error)
}

// Documents is read access to the index. *store.Index implements it.
type Documents interface {
	Len() int
	IDs() []string
	Get(id string) (store.Record, bool)
}

// Pipeline reports indexing state. *index.Service implements it.
type Pipeline interface {
	Progress() queue.Progress
	Failures() []queue.Failure
}

// Reader reads raw document content by key. The vault scanner implements it.
type Reader interface {
	Read(ctx context.Context, key string) ([]byte, error)
}

// Server is the MCP server for a vault index.
type Server struct {
	mcp      *mcp.Server
	engine   Searcher
	docs     Documents
	provider embed.Provider
	config   *config.Config
	logger   *slog.Logger
	rootPath string

	// Optional, set via SetPipeline and RegisterResources.
	pipeline Pipeline
	reader   Reader

	mu sync.RWMutex
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "search",
		Description: "Search the note vault. Combines keyword matching with semantic similarity, so it finds notes by meaning as well as by exact words. Set keyword_only for exact-term lookups.",
	},
	{
		Name:        "index_status",
		Description: "Report index health: document count, active embedding model, indexing progress and documents that failed to index. Use it when search results look incomplete.",
	},
}

// NewServer creates a new MCP server. provider may be nil, in which case
// index_status reports semantic search as unavailable.
func NewServer(engine Searcher, docs Documents, provider embed.Provider, cfg *config.Config, rootPath string) (*Server, error) {
	if engine == nil {
		return nil, errors.New("search engine is required")
	}
	if docs == nil {
		return nil, errors.New("document index is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}

	s := &Server{
		engine:   engine,
		docs:     docs,
		provider: provider,
		config:   cfg,
		rootPath: rootPath,
		logger:   slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{Name: version.Name, Version: version.Version},
		nil, // capabilities are inferred from registered tools/resources
	)
	s.registerTools()
	return s, nil
}

// SetLogger replaces the default logger.
func (s *Server) SetLogger(l *slog.Logger) {
	if l == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = l
}

// SetPipeline attaches the indexing pipeline so tools can report progress
// and failures.
func (s *Server) SetPipeline(p Pipeline) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipeline = p
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return version.Name, version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(tools))
	copy(out, tools)
	return out
}

// CallTool invokes a tool by name with loosely typed arguments, as decoded
// from JSON. The search tool returns markdown, index_status a struct.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "search":
		return s.handleSearchTool(ctx, args)
	case "index_status":
		return s.handleIndexStatusTool(ctx)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

// handleSearchTool handles the search tool invocation.
// Returns markdown-formatted results.
func (s *Server) handleSearchTool(ctx context.Context, args map[string]any) (string, error) {
	query, _ := args["query"].(string)
	in := SearchInput{Query: query}
	if l, ok := args["limit"].(float64); ok {
		in.Limit = int(l)
	}
	if k, ok := args["keyword_only"].(bool); ok {
		in.KeywordOnly = k
	}

	results, progress, err := s.search(ctx, in)
	if err != nil {
		return "", err
	}
	return FormatSearchResults(strings.TrimSpace(query), results, progress), nil
}

// search validates input, runs the engine and logs the call.
func (s *Server) search(ctx context.Context, in SearchInput) ([]search.Result, *IndexingProgress, error) {
	if strings.TrimSpace(in.Query) == "" {
		return nil, nil, NewInvalidParamsError("query parameter is required and must be a non-empty string")
	}
	if in.Limit < 0 {
		return nil, nil, NewInvalidParamsError("limit must not be negative")
	}

	s.mu.RLock()
	logger := s.logger
	s.mu.RUnlock()

	start := time.Now()
	requestID := generateRequestID()
	limit := clampLimit(in.Limit, defaultLimit, 1, maxLimit)

	logger.Info("mcp_search_started",
		slog.String("request_id", requestID),
		slog.String("query", in.Query),
		slog.Int("limit", limit),
		slog.Bool("keyword_only", in.KeywordOnly))

	results, err := s.engine.Search(ctx, in.Query, search.SearchOptions{
		Limit:       limit,
		KeywordOnly: in.KeywordOnly,
	})
	duration := time.Since(start)
	if err != nil {
		logger.Error("mcp_search_failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, nil, MapError(err)
	}

	logger.Info("mcp_search_completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("result_count", len(results)))

	return results, s.indexingProgress(), nil
}

// indexingProgress returns nil without a pipeline.
func (s *Server) indexingProgress() *IndexingProgress {
	s.mu.RLock()
	p := s.pipeline
	s.mu.RUnlock()
	if p == nil {
		return nil
	}

	q := p.Progress()
	out := &IndexingProgress{
		Status:     statusReady,
		Total:      q.Total,
		Pending:    q.Pending,
		Processing: q.Processing,
		Completed:  q.Completed,
		Failed:     q.Failed,
		Percent:    100,
	}
	if !q.Done() {
		out.Status = statusIndexing
	}
	if q.Total > 0 {
		out.Percent = float64(q.Completed+q.Failed) / float64(q.Total) * 100
	}
	return out
}

// handleIndexStatusTool handles the index_status tool invocation.
func (s *Server) handleIndexStatusTool(_ context.Context) (*IndexStatusOutput, error) {
	s.mu.RLock()
	pipeline := s.pipeline
	logger := s.logger
	s.mu.RUnlock()

	out := &IndexStatusOutput{
		Vault: *NewVaultDetector(s.rootPath, logger).Detect(),
		Stats: IndexStats{
			Documents:     s.docs.Len(),
			VectorBackend: s.config.Index.VectorBackend,
			Storage:       s.config.Persistence.Backend,
		},
		Embeddings: s.embeddingInfo(),
		Indexing:   s.indexingProgress(),
	}

	if pipeline != nil {
		for _, f := range pipeline.Failures() {
			out.Failures = append(out.Failures, FailureOutput{
				Key:        f.Key,
				Error:      f.LastError,
				RetryCount: f.RetryCount,
				Terminal:   f.Terminal,
				FailedAt:   f.FailedAt.UTC().Format(time.RFC3339),
			})
		}
	}

	logger.Info("mcp_index_status",
		slog.Int("documents", out.Stats.Documents),
		slog.Int("failures", len(out.Failures)))
	return out, nil
}

func (s *Server) embeddingInfo() EmbeddingInfo {
	info := EmbeddingInfo{Provider: s.config.Embeddings.Provider}
	if s.provider == nil {
		info.Provider = "none"
		info.SemanticQuality = "none"
		return info
	}

	info.Model = s.provider.ModelName()
	info.Dimensions = s.provider.Dimensions()
	if info.Provider == string(embed.ProviderStatic) {
		info.SemanticQuality = "low"
	} else {
		info.SemanticQuality = "high"
	}
	return info
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        tools[0].Name,
		Description: tools[0].Description,
	}, s.mcpSearchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        tools[1].Name,
		Description: tools[1].Description,
	}, s.mcpIndexStatusHandler)

	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(tools)))
}

// mcpSearchHandler is the MCP SDK handler for the search tool.
func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	results, progress, err := s.search(ctx, input)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	out := SearchOutput{Results: make([]SearchResultOutput, 0, len(results))}
	for _, r := range results {
		out.Results = append(out.Results, ToSearchResultOutput(r))
	}
	if progress != nil && progress.Status == statusIndexing {
		out.Indexing = progress
	}
	return nil, out, nil
}

// mcpIndexStatusHandler is the MCP SDK handler for the index_status tool.
func (s *Server) mcpIndexStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	*IndexStatusOutput,
	error,
) {
	out, err := s.handleIndexStatusTool(ctx)
	if err != nil {
		return nil, nil, MapError(err)
	}
	return nil, out, nil
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("mcp_server_stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
