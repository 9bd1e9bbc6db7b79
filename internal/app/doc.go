// Package app builds the service graph shared by the CLI and MCP server.
//
// The graph is built once per process from configuration and passed by
// reference to every driving adapter; nothing in it is global.
package app
