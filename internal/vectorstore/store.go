// Package vectorstore wraps the Qdrant gRPC client with the collection
// lifecycle, batched-retry upserts, filtered search, scroll, and delete
// operations the indexing pipeline and retriever depend on.
package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/codecompass/codecompass-go/internal/apperr"
	"github.com/codecompass/codecompass-go/pkg/config"
)

// Point is the unit stored in the vector database: an id, its embedding,
// and a tagged-variant payload.
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// SearchResult is a single scored hit returned from Search.
type SearchResult struct {
	Point Point
	Score float64
}

// Filter restricts search/scroll/delete to points whose payload fields
// match. Fields is a conjunction of exact keyword matches; Filepaths, when
// non-empty, restricts to points whose "filepath" field is one of the
// given values.
type Filter struct {
	Fields    map[string]string
	Filepaths []string
}

// VectorStore is the interface IndexPipeline and Retriever consume,
// letting tests substitute an in-memory fake rather than talking to a
// real Qdrant instance.
type VectorStore interface {
	Initialize(ctx context.Context, dimension int, distanceMetric string) error
	BatchUpsert(ctx context.Context, points []Point, batchSize int) error
	Search(ctx context.Context, vector []float32, limit int, filter *Filter) ([]SearchResult, error)
	Scroll(ctx context.Context, filter *Filter, limit int, offset *string) ([]Point, *string, error)
	Delete(ctx context.Context, ids []string) error
	Close() error
}

// Store is the Qdrant-backed VectorStore implementation.
type Store struct {
	client     *qdrant.Client
	collection string
}

// New connects to Qdrant via gRPC using the given VectorDBConfig.
func New(cfg *config.VectorDBConfig) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: false,
	})
	if err != nil {
		return nil, apperr.New(apperr.KindTransport, "VectorStore.New", err)
	}

	return &Store{client: client, collection: cfg.CollectionName}, nil
}

// Initialize creates the collection if absent. If it already exists, its
// vector size and distance metric are verified against the requested
// configuration; a mismatch is a fatal configuration error (per spec:
// "fail with a configuration-mismatch error").
func (s *Store) Initialize(ctx context.Context, dimension int, distanceMetric string) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return apperr.New(apperr.KindTransport, "VectorStore.Initialize", err)
	}

	distance := toQdrantDistance(distanceMetric)

	if !exists {
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: &qdrant.VectorsConfig{
				Config: &qdrant.VectorsConfig_Params{
					Params: &qdrant.VectorParams{
						Size:     uint64(dimension),
						Distance: distance,
					},
				},
			},
		})
		if err != nil {
			return apperr.New(apperr.KindTransport, "VectorStore.Initialize", err)
		}
		slog.Info("created vector collection", "collection", s.collection, "dimension", dimension)
		return nil
	}

	info, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return apperr.New(apperr.KindTransport, "VectorStore.Initialize", err)
	}
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return apperr.New(apperr.KindConfiguration, "VectorStore.Initialize",
			fmt.Errorf("collection %s has no single-vector params", s.collection))
	}
	if params.GetSize() != uint64(dimension) || params.GetDistance() != distance {
		return apperr.New(apperr.KindConfiguration, "VectorStore.Initialize",
			fmt.Errorf("collection %s is configured for size=%d distance=%s, but config requires size=%d distance=%s",
				s.collection, params.GetSize(), params.GetDistance(), dimension, distance))
	}

	return nil
}

// BatchUpsert partitions points into batches of batchSize and upserts each
// under retry with exponential backoff. A batch that still fails after
// retries are exhausted aborts the call.
func (s *Store) BatchUpsert(ctx context.Context, points []Point, batchSize int) error {
	if len(points) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = len(points)
	}

	for start := 0; start < len(points); start += batchSize {
		end := start + batchSize
		if end > len(points) {
			end = len(points)
		}
		batch := points[start:end]

		if err := s.upsertWithRetry(ctx, batch); err != nil {
			return apperr.New(apperr.KindTransport, "VectorStore.BatchUpsert",
				fmt.Errorf("batch [%d:%d] of %d: %w", start, end, len(points), err))
		}
	}

	return nil
}

const (
	maxUpsertAttempts = 5
	baseBackoff       = 200 * time.Millisecond
	maxBackoff        = 5 * time.Second
)

func (s *Store) upsertWithRetry(ctx context.Context, batch []Point) error {
	qPoints := make([]*qdrant.PointStruct, len(batch))
	for i, p := range batch {
		qPoints[i] = toPointStruct(p)
	}

	var lastErr error
	for attempt := 0; attempt < maxUpsertAttempts; attempt++ {
		if attempt > 0 {
			wait := jitteredBackoff(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Points:         qPoints,
		})
		if err == nil {
			return nil
		}
		lastErr = err
		slog.Warn("vector upsert attempt failed, retrying", "attempt", attempt+1, "error", err)
	}

	return fmt.Errorf("exhausted %d attempts: %w", maxUpsertAttempts, lastErr)
}

func jitteredBackoff(attempt int) time.Duration {
	d := baseBackoff * time.Duration(1<<uint(attempt-1))
	if d > maxBackoff {
		d = maxBackoff
	}
	jitter := time.Duration(rand.Int63n(int64(d) / 2))
	return d/2 + jitter
}

// Search performs a vector similarity search, returning results ordered by
// score descending, optionally restricted by filter.
func (s *Store) Search(ctx context.Context, vector []float32, limit int, filter *Filter) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	limitU := uint64(limit)

	query := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limitU,
		WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
	}
	if f := toQdrantFilter(filter); f != nil {
		query.Filter = f
	}

	results, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, apperr.New(apperr.KindTransport, "VectorStore.Search", err)
	}

	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		p, ok := fromScoredPoint(r)
		if !ok {
			continue
		}
		out = append(out, SearchResult{Point: p, Score: float64(r.GetScore())})
	}

	return out, nil
}

// Scroll enumerates points in the collection, optionally filtered, paging
// by a limit and an opaque offset token.
func (s *Store) Scroll(ctx context.Context, filter *Filter, limit int, offset *string) ([]Point, *string, error) {
	if limit <= 0 {
		limit = 100
	}
	limitU := uint32(limit)

	req := &qdrant.ScrollPoints{
		CollectionName: s.collection,
		Limit:          &limitU,
		WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
	}
	if f := toQdrantFilter(filter); f != nil {
		req.Filter = f
	}
	if offset != nil {
		req.Offset = &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: *offset}}
	}

	resp, err := s.client.Scroll(ctx, req)
	if err != nil {
		return nil, nil, apperr.New(apperr.KindTransport, "VectorStore.Scroll", err)
	}

	points := make([]Point, 0, len(resp))
	for _, rp := range resp {
		p, ok := fromRetrievedPoint(rp)
		if !ok {
			continue
		}
		points = append(points, p)
	}

	var next *string
	if len(resp) > 0 && len(resp) == int(limitU) {
		last := resp[len(resp)-1].GetId().GetUuid()
		next = &last
	}

	return points, next, nil
}

// Delete removes points by id.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pointIds := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIds[i] = &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: id}}
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: pointIds},
			},
		},
	})
	if err != nil {
		return apperr.New(apperr.KindTransport, "VectorStore.Delete", err)
	}

	return nil
}

// Close releases the underlying gRPC connection.
func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func toQdrantDistance(metric string) qdrant.Distance {
	switch metric {
	case "dot":
		return qdrant.Distance_Dot
	case "euclidean":
		return qdrant.Distance_Euclid
	default:
		return qdrant.Distance_Cosine
	}
}

func toQdrantFilter(f *Filter) *qdrant.Filter {
	if f == nil || (len(f.Fields) == 0 && len(f.Filepaths) == 0) {
		return nil
	}

	var must []*qdrant.Condition
	for key, value := range f.Fields {
		must = append(must, fieldMatch(key, value))
	}

	if len(f.Filepaths) == 1 {
		must = append(must, fieldMatch("filepath", f.Filepaths[0]))
	} else if len(f.Filepaths) > 1 {
		var should []*qdrant.Condition
		for _, fp := range f.Filepaths {
			should = append(should, fieldMatch("filepath", fp))
		}
		must = append(must, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Filter{
				Filter: &qdrant.Filter{Should: should},
			},
		})
	}

	return &qdrant.Filter{Must: must}
}

func fieldMatch(key, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key: key,
				Match: &qdrant.Match{
					MatchValue: &qdrant.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}
