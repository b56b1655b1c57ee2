package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/clustream-io/clustream/pkg/cache"
	"github.com/clustream-io/clustream/pkg/clustream"
	"github.com/clustream-io/clustream/pkg/coreset"
	"github.com/clustream-io/clustream/pkg/metrics"
	"github.com/clustream-io/clustream/pkg/reducer"
	"github.com/clustream-io/clustream/pkg/types"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start clustream as an MCP server",
	Long: `Starts clustream as a Model Context Protocol (MCP) server.

This allows AI assistants like Claude, Amp, and Cursor to drive the
CluStream maintainer and coreset-tree reducer interactively.

Transports:
  stdio (default) - For local desktop apps (Claude Desktop, Cursor)
  http            - For remote/cloud deployments (hosted MCP server)

Tools exposed:
  ingest_point - Feed one timestamped feature vector into the maintainer
  reduce       - Reduce the current micro-cluster pool to k centres

Resources exposed:
  clustream://config - Current micro-cluster pool size (the maintainer's
                       h/m/t/q/dim parameters are not included)

Example:
  # Local stdio server (Claude Desktop, Cursor, Amp)
  clustream mcp

  # Remote HTTP server (hosted deployment)
  clustream mcp --transport http --port 8081

Configure in Claude Desktop (claude_desktop_config.json):
  {
    "mcpServers": {
      "clustream": {
        "command": "clustream",
        "args": ["mcp"]
      }
    }
  }

For remote MCP server:
  {
    "mcpServers": {
      "clustream": {
        "url": "https://your-server.fly.dev/mcp"
      }
    }
  }`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	// Transport settings
	mcpCmd.Flags().String("transport", "stdio", "Transport type: stdio or http")
	mcpCmd.Flags().Int("port", 8081, "HTTP server port (for http transport)")
	mcpCmd.Flags().String("host", "0.0.0.0", "HTTP server host (for http transport)")

	// Maintainer settings
	mcpCmd.Flags().Int("h", 3600, "time window width")
	mcpCmd.Flags().Int("m", 2, "relevance-stamp quantile parameter")
	mcpCmd.Flags().Float64("t", 2.0, "radius multiplier")
	mcpCmd.Flags().IntP("q", "q", 100, "micro-cluster pool size")
	mcpCmd.Flags().Int("dim", 8, "point dimensionality")
}

// MCPServer wraps the MCP server with the CluStream maintainer it drives.
type MCPServer struct {
	mu              sync.Mutex
	maintainer      *clustream.Maintainer
	metrics         *metrics.Metrics
	cache           cache.Cache
	coresetRecorder coreset.Recorder
}

func runMCP(cmd *cobra.Command, args []string) error {
	transport, _ := cmd.Flags().GetString("transport")
	port, _ := cmd.Flags().GetInt("port")
	host, _ := cmd.Flags().GetString("host")
	h, _ := cmd.Flags().GetInt("h")
	m, _ := cmd.Flags().GetInt("m")
	t, _ := cmd.Flags().GetFloat64("t")
	q, _ := cmd.Flags().GetInt("q")
	dim, _ := cmd.Flags().GetInt("dim")

	maintainer, err := clustream.New(clustream.Config{H: h, M: m, T: t, Q: q, Dim: dim})
	if err != nil {
		return fmt.Errorf("failed to create maintainer: %w", err)
	}

	met := metrics.New()
	maintainer.SetTransitionRecorder(met)

	mcpSrv := &MCPServer{
		maintainer:      maintainer,
		metrics:         met,
		cache:           cache.NewMemoryCache(cache.DefaultConfig()),
		coresetRecorder: metrics.NewRecorder(met, coreset.NewStderrRecorder()),
	}
	defer func() { _ = mcpSrv.cache.Close() }()

	// Create MCP server with capabilities
	s := server.NewMCPServer(
		"Clustream",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(false),
	)

	mcpSrv.registerTools(s)
	mcpSrv.registerResources(s)

	switch transport {
	case "stdio":
		if err := server.ServeStdio(s); err != nil {
			return fmt.Errorf("MCP server error: %w", err)
		}

	case "http":
		addr := fmt.Sprintf("%s:%d", host, port)
		fmt.Printf("clustream MCP server starting on http://%s\n", addr)
		fmt.Printf("  Endpoint: http://%s/mcp\n", addr)
		fmt.Printf("  Health:   http://%s/health\n", addr)
		fmt.Println()

		mux := http.NewServeMux()

		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok","server":"clustream-mcp"}`))
		})

		mcpHandler := server.NewStreamableHTTPServer(s, server.WithStateful(true))
		mux.Handle("/mcp", mcpHandler)

		httpServer := &http.Server{
			Addr:    addr,
			Handler: mux,
		}

		if err := httpServer.ListenAndServe(); err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}

	default:
		return fmt.Errorf("unsupported transport: %s (use 'stdio' or 'http')", transport)
	}

	return nil
}

func (m *MCPServer) registerTools(s *server.MCPServer) {
	ingestTool := mcp.NewTool("ingest_point",
		mcp.WithDescription(`Feed one timestamped feature vector into the CluStream maintainer.

WHEN TO USE: Call this once per point in a stream you're replaying or
simulating through the maintainer. The maintainer bootstraps, absorbs,
forgets, or merges micro-clusters as needed to stay within its pool
size bound.

INPUT: A timestamp and a feature vector matching the maintainer's
configured dimensionality.
OUTPUT: The resulting micro-cluster pool size.`),
		mcp.WithNumber("ts",
			mcp.Required(),
			mcp.Description("Arrival timestamp for the point"),
		),
		mcp.WithArray("features",
			mcp.Required(),
			mcp.Description("Feature vector (array of floats) matching the maintainer's dimensionality"),
		),
	)

	s.AddTool(ingestTool, m.handleIngestPoint)

	reduceTool := mcp.NewTool("reduce",
		mcp.WithDescription(`Reduce the current micro-cluster pool to k representative centres.

Splits the pool's weighted points into two halves and runs a
randomized coreset-tree k-means++ pass over their union to produce k
final weighted centres.

USE THIS when you want a snapshot of the stream's current cluster
structure rather than the raw micro-cluster pool.`),
		mcp.WithNumber("k",
			mcp.Required(),
			mcp.Description("Target number of centres (2 <= k <= current pool size)"),
		),
	)

	s.AddTool(reduceTool, m.handleReduce)
}

func (m *MCPServer) registerResources(s *server.MCPServer) {
	configResource := mcp.NewResource(
		"clustream://config",
		"Clustream Configuration",
		mcp.WithResourceDescription("Current micro-cluster pool size; the maintainer's parameters are not included"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(configResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		m.mu.Lock()
		poolSize := m.maintainer.Len()
		m.mu.Unlock()

		config := map[string]interface{}{
			"pool_size": poolSize,
		}
		configJSON, _ := json.MarshalIndent(config, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "clustream://config",
				MIMEType: "application/json",
				Text:     string(configJSON),
			},
		}, nil
	})
}

func (m *MCPServer) handleIngestPoint(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	tsRaw, ok := args["ts"]
	if !ok {
		return mcp.NewToolResultError("ts parameter is required"), nil
	}
	tsFloat, ok := tsRaw.(float64)
	if !ok {
		return mcp.NewToolResultError("ts must be a number"), nil
	}

	featuresRaw, ok := args["features"]
	if !ok {
		return mcp.NewToolResultError("features parameter is required"), nil
	}

	featuresJSON, err := json.Marshal(featuresRaw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid features format: %v", err)), nil
	}

	var features []float64
	if err := json.Unmarshal(featuresJSON, &features); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to parse features: %v", err)), nil
	}
	if len(features) == 0 {
		return mcp.NewToolResultError("features array is empty"), nil
	}

	m.mu.Lock()
	p := types.NewPoint(m.maintainer.Len(), features)
	err = m.maintainer.OfflineCluster(p, int64(tsFloat))
	poolSize := m.maintainer.Len()
	m.mu.Unlock()

	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ingest failed: %v", err)), nil
	}

	result := map[string]interface{}{"pool_size": poolSize}
	resultJSON, _ := json.MarshalIndent(result, "", "  ")
	return mcp.NewToolResultText(string(resultJSON)), nil
}

func (m *MCPServer) handleReduce(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	k := request.GetInt("k", 0)
	if k <= 0 {
		return mcp.NewToolResultError("k parameter is required and must be positive"), nil
	}

	m.mu.Lock()
	poolSize := m.maintainer.Len()
	red := reducer.NewWithCache(m.maintainer, nil, m.coresetRecorder, m.cache)
	centres, err := red.Reduce(k)
	m.mu.Unlock()

	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("reduce failed: %v", err)), nil
	}

	result := map[string]interface{}{
		"centres":   formatCentresForResponse(centres),
		"pool_size": poolSize,
		"k":         k,
	}
	resultJSON, _ := json.MarshalIndent(result, "", "  ")
	return mcp.NewToolResultText(string(resultJSON)), nil
}

func formatCentresForResponse(centres []*types.Point) []map[string]interface{} {
	result := make([]map[string]interface{}, len(centres))
	for i, c := range centres {
		coord := make([]float64, c.Dimension())
		for l := range coord {
			coord[l] = c.Coordinate(l)
		}
		result[i] = map[string]interface{}{
			"index":      c.Index,
			"weight":     c.Weight,
			"coordinate": coord,
		}
	}
	return result
}
