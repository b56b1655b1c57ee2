package sink

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/clustream-io/clustream/pkg/types"
	"github.com/pinecone-io/go-pinecone/v3/pinecone"
)

// PineconeConfig holds Pinecone sink configuration.
type PineconeConfig struct {
	APIKey    string
	IndexName string
	Namespace string

	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultPineconeConfig returns sensible retry defaults.
func DefaultPineconeConfig() PineconeConfig {
	return PineconeConfig{
		MaxRetries:     5,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
	}
}

// PineconeSink upserts centres as Pinecone vectors, one per reduce
// result, with the same retry/backoff loop as the ingestion client.
type PineconeSink struct {
	cfg     PineconeConfig
	pc      *pinecone.Client
	idxConn *pinecone.IndexConnection
	stats   *Stats
}

// Stats tracks sink operation metrics.
type Stats struct {
	UpsertedVectors int64
	FailedVectors   int64
	RetryCount      int64
}

// NewPineconeSink connects to the given Pinecone index.
func NewPineconeSink(ctx context.Context, cfg PineconeConfig) (*PineconeSink, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("sink: pinecone API key is required")
	}
	if cfg.IndexName == "" {
		return nil, fmt.Errorf("sink: pinecone index name is required")
	}

	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 100 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}

	pc, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("sink: failed to create pinecone client: %w", err)
	}

	idx, err := pc.DescribeIndex(ctx, cfg.IndexName)
	if err != nil {
		return nil, fmt.Errorf("sink: failed to describe index %q: %w", cfg.IndexName, err)
	}

	idxConn, err := pc.Index(pinecone.NewIndexConnParams{
		Host:      idx.Host,
		Namespace: cfg.Namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("sink: failed to connect to index: %w", err)
	}

	return &PineconeSink{cfg: cfg, pc: pc, idxConn: idxConn, stats: &Stats{}}, nil
}

// Report upserts each centre with ID "centre-<index>" and values equal
// to its true (un-weighted) coordinate.
func (s *PineconeSink) Report(ctx context.Context, centres []*types.Point) error {
	if len(centres) == 0 {
		return nil
	}

	vectors := make([]*pinecone.Vector, len(centres))
	for i, c := range centres {
		values := make([]float32, c.Dimension())
		for l := range values {
			values[l] = float32(c.Coordinate(l))
		}
		vectors[i] = &pinecone.Vector{
			Id:     "centre-" + strconv.Itoa(c.Index),
			Values: &values,
		}
	}

	var lastErr error
	backoff := s.cfg.InitialBackoff

	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if attempt > 0 {
			atomic.AddInt64(&s.stats.RetryCount, 1)
			time.Sleep(backoff)
			backoff = time.Duration(math.Min(float64(backoff*2), float64(s.cfg.MaxBackoff)))
		}

		_, err := s.idxConn.UpsertVectors(ctx, vectors)
		if err == nil {
			atomic.AddInt64(&s.stats.UpsertedVectors, int64(len(vectors)))
			return nil
		}

		lastErr = err
		if !isRetryableError(err) {
			break
		}
	}

	atomic.AddInt64(&s.stats.FailedVectors, int64(len(vectors)))
	return fmt.Errorf("sink: upsert failed (retry limit %d): %w", s.cfg.MaxRetries, lastErr)
}

// GetStats returns current operation statistics.
func (s *PineconeSink) GetStats() Stats {
	return Stats{
		UpsertedVectors: atomic.LoadInt64(&s.stats.UpsertedVectors),
		FailedVectors:   atomic.LoadInt64(&s.stats.FailedVectors),
		RetryCount:      atomic.LoadInt64(&s.stats.RetryCount),
	}
}

// Close releases the index connection.
func (s *PineconeSink) Close() error {
	if s.idxConn != nil {
		return s.idxConn.Close()
	}
	return nil
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "unavailable") ||
		strings.Contains(errStr, "temporarily")
}
