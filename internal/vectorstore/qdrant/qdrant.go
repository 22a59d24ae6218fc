// Package qdrant stores chunks in a Qdrant collection over gRPC.
package qdrant

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"chat-with-docs/internal/models"
	"chat-with-docs/internal/vectorstore"
)

var _ vectorstore.Index = (*Storage)(nil)

const (
	payloadChunkID = "chunk_id"
	payloadContent = "content"
)

// pointNamespace turns chunk IDs into stable point UUIDs; qdrant only accepts
// UUIDs or integers as point ids.
var pointNamespace = uuid.MustParse("7b0e6c6e-3a2f-4f5e-9c1d-2c4a8f1e5d90")

type Storage struct {
	client     *qdrant.Client
	collection string
	logger     zerolog.Logger

	mu    sync.Mutex
	ready bool
}

// New connects to qdrant and waits for it to become healthy.
func New(ctx context.Context, host string, port int, collection string) (*Storage, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create qdrant client: %v", models.ErrIndexUnavailable, err)
	}
	s := &Storage{client: client, collection: collection, logger: log.Logger}
	if err := s.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", models.ErrIndexUnavailable, err)
	}
	return s, nil
}

func newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return backoff.WithContext(b, ctx)
}

func (s *Storage) healthCheckWithRetry(ctx context.Context) error {
	return backoff.Retry(func() error {
		res, err := s.client.HealthCheck(ctx)
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}
		if res == nil || res.Title == "" {
			return fmt.Errorf("health check returned invalid response")
		}
		return nil
	}, newBackOff(ctx))
}

// PointID maps a chunk ID to the UUID used as its qdrant point id.
func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

// ensureCollection creates the collection on first insert, sized to the embedding.
func (s *Storage) ensureCollection(ctx context.Context, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if !exists {
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dim),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
		s.logger.Info().Str("collection", s.collection).Int("dimensions", dim).Msg("Created qdrant collection")
	}
	s.ready = true
	return nil
}

func (s *Storage) exists(ctx context.Context) (bool, error) {
	s.mu.Lock()
	ready := s.ready
	s.mu.Unlock()
	if ready {
		return true, nil
	}
	ok, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return false, fmt.Errorf("check collection: %w", err)
	}
	return ok, nil
}

func (s *Storage) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	ok, err := s.exists(ctx)
	if err != nil || !ok || len(ids) == 0 {
		return existing, err
	}
	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewIDUUID(PointID(id))
	}
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            pointIDs,
		WithPayload:    qdrant.NewWithPayloadInclude(payloadChunkID),
	})
	if err != nil {
		return nil, fmt.Errorf("get points: %w", err)
	}
	for _, p := range points {
		existing[p.Payload[payloadChunkID].GetStringValue()] = true
	}
	return existing, nil
}

// Insert upserts only the points that are not stored yet.
func (s *Storage) Insert(ctx context.Context, chunks []models.IndexedChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx, len(chunks[0].Embedding)); err != nil {
		return err
	}
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	existing, err := s.ExistingIDs(ctx, ids)
	if err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for _, c := range chunks {
		if existing[c.ID] {
			continue
		}
		existing[c.ID] = true
		payload := map[string]any{
			payloadChunkID: c.ID,
			payloadContent: c.Content,
		}
		for k, v := range c.Metadata() {
			payload[k] = v
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(PointID(c.ID)),
			Vectors: qdrant.NewVectors(c.Embedding...),
			Payload: qdrant.NewValueMap(payload),
		})
	}
	if len(points) == 0 {
		return nil
	}

	wait := true
	return backoff.Retry(func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Wait:           &wait,
			Points:         points,
		})
		return err
	}, newBackOff(ctx))
}

func (s *Storage) Search(ctx context.Context, embedding []float32, k int) ([]models.RetrievalResult, error) {
	ok, err := s.exists(ctx)
	if err != nil {
		return nil, err
	}
	if !ok || k <= 0 {
		return []models.RetrievalResult{}, nil
	}
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}
	out := make([]models.RetrievalResult, 0, len(points))
	for _, p := range points {
		meta := make(map[string]string, len(p.Payload))
		for key, v := range p.Payload {
			if key == payloadContent || key == payloadChunkID {
				continue
			}
			meta[key] = valueString(v)
		}
		out = append(out, models.RetrievalResult{
			ID:       p.Payload[payloadChunkID].GetStringValue(),
			Content:  p.Payload[payloadContent].GetStringValue(),
			Score:    p.Score,
			Metadata: meta,
		})
	}
	return out, nil
}

func valueString(v *qdrant.Value) string {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_IntegerValue:
		return strconv.FormatInt(kind.IntegerValue, 10)
	case *qdrant.Value_DoubleValue:
		return strconv.FormatFloat(kind.DoubleValue, 'f', -1, 64)
	case *qdrant.Value_BoolValue:
		return strconv.FormatBool(kind.BoolValue)
	default:
		return v.GetStringValue()
	}
}

// Clear deletes the collection. It is recreated by the next Insert.
func (s *Storage) Clear(ctx context.Context) error {
	ok, err := s.exists(ctx)
	if err != nil {
		return err
	}
	if ok {
		if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
			return fmt.Errorf("delete collection: %w", err)
		}
	}
	s.mu.Lock()
	s.ready = false
	s.mu.Unlock()
	return nil
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	ok, err := s.exists(ctx)
	if err != nil || !ok {
		return 0, err
	}
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("count points: %w", err)
	}
	return int(n), nil
}

func (s *Storage) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
