package mcp

import (
	"path/filepath"
	"strings"
)

// mimeTypes maps note file extensions to MIME types.
var mimeTypes = map[string]string{
	// Markdown
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".mdx":      "text/markdown",

	// Other markup
	".txt":  "text/plain",
	".org":  "text/x-org",
	".rst":  "text/x-rst",
	".adoc": "text/asciidoc",
	".html": "text/html",
	".htm":  "text/html",

	// Data
	".json":   "application/json",
	".canvas": "application/json",
	".yaml":   "text/x-yaml",
	".yml":    "text/x-yaml",
	".csv":    "text/csv",
}

// MimeTypeForPath returns the MIME type for a document key.
// Returns "text/plain" for unknown types.
func MimeTypeForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if mime, ok := mimeTypes[ext]; ok {
		return mime
	}
	return "text/plain"
}
