// Package qdrant provides a Retriever backed by a Qdrant collection accessed
// over gRPC.
package qdrant

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/hupe1980/agentweave/core"
	"github.com/hupe1980/agentweave/logging"
	"github.com/hupe1980/agentweave/retrieval"
)

// Options configures a Store.
type Options struct {
	// ContentKey is the payload field holding the document text.
	ContentKey     string
	ScoreThreshold *float32
	// Wait makes upserts block until they are applied.
	Wait   bool
	Logger logging.Logger
}

// Store reads and writes documents of one collection.
type Store struct {
	collection  string
	points      pb.PointsClient
	collections pb.CollectionsClient
	embedder    retrieval.Embedder
	conn        *grpc.ClientConn
	opts        Options
}

// New connects to the Qdrant gRPC endpoint at addr.
func New(addr, collection string, embedder retrieval.Embedder, optFns ...func(o *Options)) (*Store, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect %s: %w", addr, err)
	}

	s := NewFromClients(collection, pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), embedder, optFns...)
	s.conn = conn

	return s, nil
}

// NewFromClients builds a Store over existing gRPC clients.
func NewFromClients(
	collection string,
	points pb.PointsClient,
	collections pb.CollectionsClient,
	embedder retrieval.Embedder,
	optFns ...func(o *Options),
) *Store {
	opts := Options{ContentKey: "content", Wait: true}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = core.EnsureLogger(opts.Logger)

	return &Store{
		collection:  collection,
		points:      points,
		collections: collections,
		embedder:    embedder,
		opts:        opts,
	}
}

// Close releases the connection opened by New.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// CreateCollection creates the collection with cosine distance.
func (s *Store) CreateCollection(ctx context.Context, vectorSize uint64) error {
	_, err := s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: pb.NewVectorsConfig(&pb.VectorParams{
			Size:     vectorSize,
			Distance: pb.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant create collection %s: %w", s.collection, err)
	}
	return nil
}

// Upsert embeds and stores documents. Document ids must be UUIDs; empty ids
// are generated.
func (s *Store) Upsert(ctx context.Context, docs ...core.Document) error {
	points := make([]*pb.PointStruct, 0, len(docs))

	for _, d := range docs {
		vec, err := s.embedder.Embed(ctx, d.Content)
		if err != nil {
			return fmt.Errorf("embed document %s: %w", d.ID, err)
		}

		id := d.ID
		if id == "" {
			id = core.NewID()
		}

		payload := map[string]any{}
		for k, v := range d.Metadata {
			payload[k] = v
		}
		payload[s.opts.ContentKey] = d.Content

		values, err := pb.TryValueMap(payload)
		if err != nil {
			return fmt.Errorf("payload of document %s: %w", id, err)
		}

		points = append(points, &pb.PointStruct{
			Id:      pb.NewID(id),
			Vectors: pb.NewVectorsDense(toFloat32(vec)),
			Payload: values,
		})
	}

	wait := s.opts.Wait
	if _, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}

	s.opts.Logger.Debug("retrieval.qdrant.upsert", "collection", s.collection, "count", len(points))

	return nil
}

// TopK implements retrieval.Retriever.
func (s *Store) TopK(ctx context.Context, query string, k int) ([]core.Document, error) {
	if k <= 0 {
		return nil, nil
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         toFloat32(vec),
		Limit:          uint64(k),
		ScoreThreshold: s.opts.ScoreThreshold,
		WithPayload:    pb.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}

	docs := make([]core.Document, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		docs = append(docs, s.toDocument(p))
	}

	retrieval.SortByScore(docs)

	return retrieval.Truncate(docs, k), nil
}

func (s *Store) toDocument(p *pb.ScoredPoint) core.Document {
	id := p.GetId().GetUuid()
	if id == "" {
		id = fmt.Sprintf("%d", p.GetId().GetNum())
	}

	doc := core.Document{ID: id, Score: float64(p.GetScore())}

	for k, v := range p.GetPayload() {
		if k == s.opts.ContentKey {
			doc.Content = v.GetStringValue()
			continue
		}

		var val any
		switch kind := v.GetKind().(type) {
		case *pb.Value_StringValue:
			val = kind.StringValue
		case *pb.Value_IntegerValue:
			val = kind.IntegerValue
		case *pb.Value_DoubleValue:
			val = kind.DoubleValue
		case *pb.Value_BoolValue:
			val = kind.BoolValue
		default:
			continue
		}

		if doc.Metadata == nil {
			doc.Metadata = map[string]any{}
		}
		doc.Metadata[k] = val
	}

	return doc
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
