package sink

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/clustream-io/clustream/pkg/types"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// QdrantConfig holds Qdrant sink configuration.
type QdrantConfig struct {
	Host       string
	Collection string
	GRPCPort   int
	UseTLS     bool
}

// QdrantSink upserts centres as Qdrant points over gRPC.
type QdrantSink struct {
	cfg        QdrantConfig
	conn       *grpc.ClientConn
	points     pb.PointsClient
	collection string
}

// NewQdrantSink connects to a Qdrant instance.
func NewQdrantSink(ctx context.Context, cfg QdrantConfig) (*QdrantSink, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("sink: qdrant host is required")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("sink: qdrant collection is required")
	}
	if cfg.GRPCPort <= 0 {
		cfg.GRPCPort = 6334
	}

	var opts []grpc.DialOption
	if cfg.UseTLS {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{})))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.GRPCPort)
	conn, err := grpc.DialContext(ctx, addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("sink: failed to connect to qdrant at %s: %w", addr, err)
	}

	return &QdrantSink{
		cfg:        cfg,
		conn:       conn,
		points:     pb.NewPointsClient(conn),
		collection: cfg.Collection,
	}, nil
}

// Report upserts each centre as a Qdrant point, numeric ID equal to the
// centre's index, vector equal to its true coordinate.
func (s *QdrantSink) Report(ctx context.Context, centres []*types.Point) error {
	if len(centres) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(centres))
	for i, c := range centres {
		values := make([]float32, c.Dimension())
		for l := range values {
			values[l] = float32(c.Coordinate(l))
		}

		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Num{Num: uint64(c.Index)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: values},
				},
			},
		}
	}

	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
		Wait:           &wait,
	})
	if err != nil {
		return fmt.Errorf("sink: qdrant upsert failed: %w", err)
	}

	return nil
}

// Close releases the gRPC connection.
func (s *QdrantSink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
