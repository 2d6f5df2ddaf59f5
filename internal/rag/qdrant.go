package rag

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// Payload field names used for chunk records in Qdrant.
const (
	payloadText       = "text"
	payloadChunkID    = "chunk_id"
	payloadTextLength = "text_length"
	payloadDocumentID = "document_id"
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements VectorStore backed by a Qdrant instance.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// NewQdrantStore creates a new QdrantStore, ensuring the target collection
// and the document_id payload index exist, and returns a ready-to-use
// VectorStore.
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	store := &QdrantStore{client: client, cfg: cfg}
	if err := store.ensureCollection(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// ensureCollection creates the Qdrant collection if it does not already
// exist, along with a keyword payload index on document_id. Every query is
// filtered by that field, so the index keeps retrieval from degrading as
// unrelated documents accumulate in the collection.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}

	_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: s.cfg.Collection,
		FieldName:      payloadDocumentID,
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to index %s field: %w", payloadDocumentID, err)
	}

	return nil
}

// Upsert stores or updates a batch of chunks with their embeddings.
// Embeddings must be pre-computed and parallel to chunks.
func (s *QdrantStore) Upsert(ctx context.Context, chunks []Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("qdrant: %d chunks but %d embeddings", len(chunks), len(embeddings))
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i, c := range chunks {
		payload := map[string]interface{}{
			payloadText:       c.Text,
			payloadChunkID:    int64(c.Ordinal),
			payloadTextLength: int64(len(c.Text)),
			payloadDocumentID: c.DocumentID,
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(c.ID),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}

	return nil
}

// Search performs a cosine similarity search restricted to the given
// document and returns the top-k results in relevance order.
func (s *QdrantStore) Search(ctx context.Context, queryEmbedding []float32, documentID string, topK int) ([]Chunk, error) {
	limit := uint64(topK)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Limit:          &limit,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch(payloadDocumentID, documentID),
			},
		},
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	chunks := make([]Chunk, 0, len(results))
	for _, r := range results {
		c := Chunk{
			ID:    r.Id.GetUuid(),
			Score: r.Score,
		}
		if p := r.Payload; p != nil {
			if v, ok := p[payloadText]; ok {
				c.Text = v.GetStringValue()
			}
			if v, ok := p[payloadDocumentID]; ok {
				c.DocumentID = v.GetStringValue()
			}
			if v, ok := p[payloadChunkID]; ok {
				c.Ordinal = int(v.GetIntegerValue())
			}
		}
		chunks = append(chunks, c)
	}

	return chunks, nil
}

// Delete removes chunks from the collection by their record IDs.
func (s *QdrantStore) Delete(ctx context.Context, ids []string) error {
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewIDUUID(id))
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete failed: %w", err)
	}

	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// Client exposes the underlying Qdrant client for readiness probes.
func (s *QdrantStore) Client() *qdrant.Client {
	return s.client
}
