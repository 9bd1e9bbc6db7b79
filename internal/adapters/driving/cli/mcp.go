package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/verity/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI agents can query the
policy knowledge base and check their drafted answers against it.

By default, the server communicates over stdio using JSON-RPC.

Use --port to start an HTTP server instead, which also serves Prometheus
metrics at /metrics.

Tools: query, multi_query, check_grounding, collection_info, route_complaint
Resources: verity://collections, verity://collections/{name}

Examples:
  # Stdio mode (default, for desktop agents)
  verity mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  verity mcp serve --port 8080`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}
	if queryService == nil {
		return errors.New("query service not configured")
	}

	ports := &mcp.Ports{
		Query:      queryService,
		Grounding:  groundingService,
		Collection: collectionService,
		Routing:    routingService,
	}

	var opts []mcp.Option
	if metrics != nil {
		opts = append(opts, mcp.WithMetricsHandler(metrics.Handler()))
	}

	server, err := mcp.NewServer(ports, opts...)
	if err != nil {
		return err
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(contextOf(cmd), addr)
	}

	return server.Run(contextOf(cmd))
}
