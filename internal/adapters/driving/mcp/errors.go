// Package mcp provides an MCP (Model Context Protocol) server adapter for Verity.
// It lets AI agents query the policy knowledge base and check answers against it.
package mcp

import "errors"

// ErrMissingQueryService is returned when the query service is not provided.
var ErrMissingQueryService = errors.New("mcp: query service is required")
