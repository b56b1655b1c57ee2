package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clustream-io/clustream/pkg/clustream"
	"github.com/clustream-io/clustream/pkg/metrics"
	"github.com/clustream-io/clustream/pkg/sink"
	"github.com/clustream-io/clustream/pkg/source"
	"github.com/clustream-io/clustream/pkg/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Feed a point stream through the CluStream maintainer",
	Long: `Reads timestamped feature vectors from a JSONL file and feeds them
through the CluStream online maintainer one at a time, reporting the
final micro-cluster centroids to a configured sink.

Example:
  clustream run --file stream.jsonl --q 100 --h 3600 --dim 8 --sink stdout`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("file", "f", "", "path to JSONL stream file (required)")
	_ = runCmd.MarkFlagRequired("file")

	runCmd.Flags().Int("h", 3600, "time window width")
	runCmd.Flags().Int("m", 2, "relevance-stamp quantile parameter")
	runCmd.Flags().Float64("t", 2.0, "radius multiplier")
	runCmd.Flags().IntP("q", "q", 100, "micro-cluster pool size")
	runCmd.Flags().Int("dim", 8, "point dimensionality")

	runCmd.Flags().String("sink", "stdout", "centre-reporting sink: stdout, pinecone, or qdrant")
	runCmd.Flags().String("sink-host", "", "sink host (pinecone index name or qdrant host)")
	runCmd.Flags().String("sink-namespace", "", "sink namespace (pinecone namespace or qdrant collection)")
}

func runRun(cmd *cobra.Command, args []string) error {
	filePath, _ := cmd.Flags().GetString("file")
	h, _ := cmd.Flags().GetInt("h")
	m, _ := cmd.Flags().GetInt("m")
	t, _ := cmd.Flags().GetFloat64("t")
	q, _ := cmd.Flags().GetInt("q")
	dim, _ := cmd.Flags().GetInt("dim")
	sinkBackend, _ := cmd.Flags().GetString("sink")
	sinkHost, _ := cmd.Flags().GetString("sink-host")
	sinkNamespace, _ := cmd.Flags().GetString("sink-namespace")
	verbose := viper.GetBool("verbose")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nInterrupted, cleaning up...")
		cancel()
	}()

	maintainer, err := clustream.New(clustream.Config{H: h, M: m, T: t, Q: q, Dim: dim})
	if err != nil {
		return fmt.Errorf("failed to create maintainer: %w", err)
	}

	met := metrics.New()
	maintainer.SetTransitionRecorder(met)

	reportSink, closeSink, err := newSink(ctx, sinkBackend, sinkHost, sinkNamespace)
	if err != nil {
		return fmt.Errorf("failed to create sink: %w", err)
	}
	if closeSink != nil {
		defer func() { _ = closeSink() }()
	}

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open stream file: %w", err)
	}
	defer func() { _ = file.Close() }()

	src := source.NewJSONLSource(file)

	bar := progressbar.NewOptions64(
		-1,
		progressbar.OptionSetDescription("Ingesting"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("points"),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)

	start := time.Now()
	var ingested int64

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		ts, features, ok, err := src.Next(ctx)
		if err != nil {
			return fmt.Errorf("failed to read stream: %w", err)
		}
		if !ok {
			break
		}

		p := types.NewPoint(int(ingested), features)
		if err := maintainer.OfflineCluster(p, ts); err != nil {
			return fmt.Errorf("failed to ingest point %d: %w", ingested, err)
		}

		ingested++
		_ = bar.Add64(1)
	}

	_ = bar.Finish()
	fmt.Fprintln(os.Stderr)

	duration := time.Since(start)
	fmt.Println()
	fmt.Println("=== Run Complete ===")
	fmt.Println()
	fmt.Printf("Points ingested:     %d\n", ingested)
	fmt.Printf("Micro-clusters:      %d\n", maintainer.Len())
	fmt.Printf("Duration:            %v\n", duration.Round(time.Millisecond))
	if verbose {
		fmt.Printf("Throughput:          %.0f points/sec\n", float64(ingested)/duration.Seconds())
		fmt.Printf("Bootstraps:          %.0f\n", testutil.ToFloat64(met.Bootstraps))
		fmt.Printf("Absorptions:         %.0f\n", testutil.ToFloat64(met.Absorptions))
		fmt.Printf("Forgets:             %.0f\n", testutil.ToFloat64(met.Forgets))
		fmt.Printf("Merges:              %.0f\n", testutil.ToFloat64(met.Merges))
	}
	fmt.Println()

	if reportSink != nil {
		clusters := maintainer.Snapshot()
		centres := make([]*types.Point, len(clusters))
		for i, c := range clusters {
			centre := c.Centroid()
			centre.Index = i
			centres[i] = centre
		}
		if err := reportSink.Report(ctx, centres); err != nil {
			return fmt.Errorf("failed to report centres: %w", err)
		}
	}

	return nil
}

// newSink constructs the configured Sink, returning an optional close
// function for sinks that hold a connection.
func newSink(ctx context.Context, backend, host, namespace string) (sink.Sink, func() error, error) {
	switch backend {
	case "", "stdout":
		return sink.NewStdoutSink(), nil, nil
	case "pinecone":
		cfg := sink.DefaultPineconeConfig()
		cfg.APIKey = os.Getenv("PINECONE_API_KEY")
		cfg.IndexName = host
		cfg.Namespace = namespace
		s, err := sink.NewPineconeSink(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "qdrant":
		cfg := sink.QdrantConfig{Host: host, Collection: namespace}
		s, err := sink.NewQdrantSink(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported sink backend: %q", backend)
	}
}
