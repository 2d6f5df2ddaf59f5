// Package ingestion implements the document indexing pipeline. Given a
// document's chunks it embeds them, assigns each chunk a deterministic
// record id derived from the document id and chunk ordinal, and upserts
// the results into the vector store in bounded batches. The pipeline is
// invoked by the upload endpoint and by the `clauselens ingest` CLI
// command.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/clauselens/clauselens-go/internal/rag"
)

// upsertBatchSize bounds the number of records per upsert call so a large
// document never produces an oversized request payload.
const upsertBatchSize = 20

// chunkIDNamespace is the UUIDv5 namespace for chunk record ids. The
// vector store only accepts UUID point ids, so the human-readable chunk
// key is hashed into this namespace; the key itself is recoverable from
// the record's payload (document_id + chunk_id).
var chunkIDNamespace = uuid.MustParse("8f0f4df2-74f6-4a3e-9c2b-4a1ce1b6a0d7")

// Pipeline embeds document chunks and pushes them into the vector store.
type Pipeline struct {
	// embedder converts chunk text into dense vector embeddings.
	embedder rag.Embedder

	// store persists the embedded chunks.
	store rag.VectorStore

	// log receives indexing progress and failure diagnostics.
	log *slog.Logger
}

// NewPipeline constructs a Pipeline from the provided dependencies.
func NewPipeline(embedder rag.Embedder, store rag.VectorStore, log *slog.Logger) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{embedder: embedder, store: store, log: log}, nil
}

// Index embeds all chunks and upserts them under documentID in batches.
// Any embedding or upsert failure propagates to the caller: the upload
// must be reported as failed. Batches already written are not rolled
// back; re-uploading simply indexes under a fresh document id and the
// stale vectors are never a filter match for any live session.
func (p *Pipeline) Index(ctx context.Context, chunks []string, documentID string) error {
	if len(chunks) == 0 {
		p.log.Warn("indexing zero chunks", slog.String("document_id", documentID))
		return nil
	}

	embeddings, err := p.embedder.Embed(ctx, chunks)
	if err != nil {
		return fmt.Errorf("ingestion: embedding failed for document %s: %w", documentID, err)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("ingestion: expected %d embeddings, got %d", len(chunks), len(embeddings))
	}

	for start := 0; start < len(chunks); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		records := make([]rag.Chunk, 0, end-start)
		for i := start; i < end; i++ {
			records = append(records, rag.Chunk{
				ID:         ChunkRecordID(documentID, i),
				Text:       chunks[i],
				DocumentID: documentID,
				Ordinal:    i,
			})
		}

		if err := p.store.Upsert(ctx, records, embeddings[start:end]); err != nil {
			return fmt.Errorf("ingestion: upsert failed for document %s (batch %d..%d): %w",
				documentID, start, end-1, err)
		}
	}

	p.log.Info("indexed document",
		slog.String("document_id", documentID),
		slog.Int("chunks", len(chunks)),
	)
	return nil
}

// ChunkRecordID returns the deterministic record id for a chunk: a UUIDv5
// over the key "chunk_<documentID>_<ordinal>". Re-indexing the same
// document id always maps a given ordinal to the same record, making
// Index idempotent per (document, ordinal).
func ChunkRecordID(documentID string, ordinal int) string {
	key := fmt.Sprintf("chunk_%s_%d", documentID, ordinal)
	return uuid.NewSHA1(chunkIDNamespace, []byte(key)).String()
}
