package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/clustream-io/clustream/pkg/cache"
	"github.com/clustream-io/clustream/pkg/clustream"
	"github.com/clustream-io/clustream/pkg/coreset"
	"github.com/clustream-io/clustream/pkg/metrics"
	"github.com/clustream-io/clustream/pkg/reducer"
	"github.com/clustream-io/clustream/pkg/sse"
	"github.com/clustream-io/clustream/pkg/telemetry"
	"github.com/clustream-io/clustream/pkg/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the clustream HTTP server",
	Long: `Starts an HTTP server that maintains a CluStream micro-cluster pool
and reduces it to k centres on demand.

Example:
  clustream serve --port 8080 --q 100 --h 3600 --dim 8

The server exposes:
  POST /ingest  - Feed one point into the maintainer
  POST /reduce  - Reduce the pool to k centres
  GET  /stream  - SSE snapshot of pool size and the last reduce's k/latency
  GET  /health  - Health check
  GET  /metrics - Prometheus metrics`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "HTTP server port")
	serveCmd.Flags().String("host", "0.0.0.0", "HTTP server host")

	serveCmd.Flags().Int("h", 3600, "time window width")
	serveCmd.Flags().Int("m", 2, "relevance-stamp quantile parameter")
	serveCmd.Flags().Float64("t", 2.0, "radius multiplier")
	serveCmd.Flags().IntP("q", "q", 100, "micro-cluster pool size")
	serveCmd.Flags().Int("dim", 8, "point dimensionality")

	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("engine.h", serveCmd.Flags().Lookup("h"))
	_ = viper.BindPFlag("engine.m", serveCmd.Flags().Lookup("m"))
	_ = viper.BindPFlag("engine.t", serveCmd.Flags().Lookup("t"))
	_ = viper.BindPFlag("engine.q", serveCmd.Flags().Lookup("q"))
	_ = viper.BindPFlag("engine.dim", serveCmd.Flags().Lookup("dim"))
}

// Server holds the HTTP server state.
type Server struct {
	mu                sync.Mutex
	maintainer        *clustream.Maintainer
	metrics           *metrics.Metrics
	tracer            *telemetry.Provider
	cache             cache.Cache
	coresetRecorder   coreset.Recorder
	lastReduceK       int
	lastReduceLatency time.Duration
}

// IngestRequest is the JSON request body for /ingest.
type IngestRequest struct {
	TS       int64     `json:"ts"`
	Features []float64 `json:"features"`
}

// ReduceRequest is the JSON request body for /reduce.
type ReduceRequest struct {
	K int `json:"k"`
}

// CentreResponse is one reduced centre in a /reduce response.
type CentreResponse struct {
	Index      int       `json:"index"`
	Weight     float64   `json:"weight"`
	Coordinate []float64 `json:"coordinate"`
}

// ReduceResponse is the JSON response for /reduce.
type ReduceResponse struct {
	Centres   []CentreResponse `json:"centres"`
	PoolSize  int              `json:"pool_size"`
	LatencyMs int64            `json:"latency_ms"`
}

func runServe(cmd *cobra.Command, args []string) error {
	port := viper.GetInt("server.port")
	host := viper.GetString("server.host")
	h := viper.GetInt("engine.h")
	m := viper.GetInt("engine.m")
	t := viper.GetFloat64("engine.t")
	q := viper.GetInt("engine.q")
	dim := viper.GetInt("engine.dim")

	maintainer, err := clustream.New(clustream.Config{H: h, M: m, T: t, Q: q, Dim: dim})
	if err != nil {
		return fmt.Errorf("failed to create maintainer: %w", err)
	}

	tracerCfg := telemetry.DefaultConfig()
	tracer, err := telemetry.Init(context.Background(), tracerCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() { _ = tracer.Shutdown(context.Background()) }()

	met := metrics.New()
	maintainer.SetTransitionRecorder(met)

	server := &Server{
		maintainer:      maintainer,
		metrics:         met,
		tracer:          tracer,
		cache:           cache.NewMemoryCache(cache.DefaultConfig()),
		coresetRecorder: metrics.NewRecorder(met, coreset.NewStderrRecorder()),
	}
	defer func() { _ = server.cache.Close() }()

	mux := http.NewServeMux()
	mux.HandleFunc("/ingest", server.metrics.Middleware("/ingest", server.handleIngest))
	mux.HandleFunc("/reduce", server.metrics.Middleware("/reduce", server.handleReduce))
	mux.HandleFunc("/stream", server.handleStream)
	mux.HandleFunc("/health", server.handleHealth)
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		server.metrics.Handler().ServeHTTP(w, r)
	})

	addr := fmt.Sprintf("%s:%d", host, port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-quit
		fmt.Fprintln(os.Stderr, "\nShutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Server shutdown error: %v\n", err)
		}
		close(done)
	}()

	fmt.Printf("clustream server starting on %s\n", addr)
	fmt.Printf("  q=%d h=%d m=%d t=%g dim=%d\n", q, h, m, t, dim)
	fmt.Println()
	fmt.Println("Endpoints:")
	fmt.Printf("  POST http://%s/ingest\n", addr)
	fmt.Printf("  POST http://%s/reduce\n", addr)
	fmt.Printf("  GET  http://%s/stream\n", addr)
	fmt.Printf("  GET  http://%s/health\n", addr)
	fmt.Println()

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	fmt.Println("Server stopped")
	return nil
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	_, span := s.tracer.StartIngest(r.Context(), len(req.Features))
	defer span.End()

	s.mu.Lock()
	p := types.NewPoint(s.maintainer.Len(), req.Features)
	err := s.maintainer.OfflineCluster(p, req.TS)
	poolSize := s.maintainer.Len()
	s.mu.Unlock()

	if err != nil {
		telemetry.RecordError(span, err)
		http.Error(w, fmt.Sprintf("Ingest failed: %v", err), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int{"pool_size": poolSize})
}

func (s *Server) handleReduce(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ReduceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	poolSize := s.maintainer.Len()
	_, span := s.tracer.StartReduce(r.Context(), req.K, poolSize)
	defer span.End()

	start := time.Now()
	red := reducer.NewWithCache(s.maintainer, nil, s.coresetRecorder, s.cache)
	centres, err := red.Reduce(req.K)
	latency := time.Since(start)
	s.lastReduceK = req.K
	s.lastReduceLatency = latency
	s.mu.Unlock()

	if err != nil {
		telemetry.RecordError(span, err)
		http.Error(w, fmt.Sprintf("Reduce failed: %v", err), http.StatusBadRequest)
		return
	}

	telemetry.RecordResult(span, poolSize, req.K, latency)
	s.metrics.RecordReduce(latency, poolSize)

	resp := ReduceResponse{
		Centres:   toCentreResponses(centres),
		PoolSize:  poolSize,
		LatencyMs: latency.Milliseconds(),
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// handleStream reports reduce progress over Server-Sent Events. Since a
// single /reduce call runs synchronously, this endpoint reports the
// current pool size plus the timing of the most recent /reduce call as
// an immediate progress snapshot.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sw := sse.NewWriter(w)
	if sw == nil {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	poolSize := s.maintainer.Len()
	lastK := s.lastReduceK
	lastLatency := s.lastReduceLatency
	s.mu.Unlock()

	stats := map[string]interface{}{"pool_size": poolSize}
	if lastK > 0 {
		stats["last_reduce_k"] = lastK
		stats["last_reduce_latency_ms"] = lastLatency.Milliseconds()
	}

	_ = sw.SendProgressWithStats(sse.StageSnapshot, 1.0, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func toCentreResponses(centres []*types.Point) []CentreResponse {
	out := make([]CentreResponse, len(centres))
	for i, c := range centres {
		coord := make([]float64, c.Dimension())
		for l := range coord {
			coord[l] = c.Coordinate(l)
		}
		out[i] = CentreResponse{Index: c.Index, Weight: c.Weight, Coordinate: coord}
	}
	return out
}
