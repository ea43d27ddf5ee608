package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// MaxResourceSize is the maximum document size served as a resource (1MB).
	MaxResourceSize = 1024 * 1024

	// DocumentScheme prefixes document resource URIs. Keys go in the path
	// so the host stays empty.
	DocumentScheme = "vault:///"

	// StatusURI is the URI of the index status resource.
	StatusURI = "vaultindex://status"
)

// RegisterResources registers every indexed document, plus the status
// resource, as MCP resources. Documents indexed later are reachable
// through the search tool only.
func (s *Server) RegisterResources(_ context.Context, reader Reader) error {
	if reader == nil {
		return fmt.Errorf("document reader is required")
	}

	s.mu.Lock()
	s.reader = reader
	logger := s.logger
	s.mu.Unlock()

	ids := s.docs.IDs()
	for _, id := range ids {
		s.registerDocumentResource(id)
	}
	s.registerStatusResource()

	logger.Info("mcp_resources_registered", "count", len(ids))
	return nil
}

// registerDocumentResource registers a single document.
func (s *Server) registerDocumentResource(id string) {
	desc := id
	if rec, ok := s.docs.Get(id); ok {
		if rec.Title != "" {
			desc = rec.Title
		}
		desc = fmt.Sprintf("%s (%s)", desc, humanSize(rec.Metadata.SizeBytes))
	}

	s.mcp.AddResource(
		&mcp.Resource{
			Name:        path.Base(id),
			URI:         documentURI(id),
			Description: desc,
			MIMEType:    MimeTypeForPath(id),
		},
		func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return s.handleReadResource(ctx, id)
		},
	)
}

// handleReadResource reads current document content. The key must still
// be indexed.
func (s *Server) handleReadResource(ctx context.Context, key string) (*mcp.ReadResourceResult, error) {
	if !isValidKey(key) {
		return nil, NewInvalidParamsError(fmt.Sprintf("invalid document key: %s", key))
	}
	if _, ok := s.docs.Get(key); !ok {
		return nil, NewResourceNotFoundError(documentURI(key))
	}

	s.mu.RLock()
	reader := s.reader
	s.mu.RUnlock()
	if reader == nil {
		return nil, NewResourceNotFoundError(documentURI(key))
	}

	content, err := reader.Read(ctx, key)
	if err != nil {
		return nil, MapError(err)
	}
	if len(content) > MaxResourceSize {
		return nil, &MCPError{
			Code:    ErrCodeDocumentTooLarge,
			Message: fmt.Sprintf("document too large: %d bytes (max %d)", len(content), MaxResourceSize),
		}
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      documentURI(key),
				MIMEType: MimeTypeForPath(key),
				Text:     string(content),
			},
		},
	}, nil
}

// registerStatusResource exposes index_status output as a JSON resource.
func (s *Server) registerStatusResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "status",
			URI:         StatusURI,
			Description: "Index health, indexing progress and failed documents",
			MIMEType:    "application/json",
		},
		func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return s.readStatusResource(ctx)
		},
	)
}

func (s *Server) readStatusResource(ctx context.Context) (*mcp.ReadResourceResult, error) {
	status, err := s.handleIndexStatusTool(ctx)
	if err != nil {
		return nil, MapError(err)
	}
	content, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return nil, MapError(err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: StatusURI, MIMEType: "application/json", Text: string(content)},
		},
	}, nil
}

// documentURI escapes each key segment so keys with spaces still form a
// valid URI.
func documentURI(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return DocumentScheme + strings.Join(parts, "/")
}

// isValidKey rejects absolute keys and traversal. Keys are always
// slash-separated.
func isValidKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	if len(key) >= 2 && key[1] == ':' {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}

// humanSize formats bytes as a human-readable string.
func humanSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
	)

	switch {
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
