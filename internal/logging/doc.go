// Package logging configures structured slog output for vaultindex.
//
// Logs are JSON lines written to a size-rotated file under
// ~/.vaultindex/logs/ and, outside server mode, mirrored to stderr. The
// MCP server speaks JSON-RPC over stdout, so ServeMode never writes to
// stdout or stderr.
package logging
