// Package rag defines the interfaces for the retrieval pipeline: vector
// storage, query-time retrieval, and embedding. Concrete implementations
// (Qdrant, the embedder backends) satisfy these interfaces so the upload
// and question-answering flows never depend on a specific backend.
package rag

import (
	"context"
)

// Chunk is one indexed segment of a document, the unit of retrieval.
type Chunk struct {
	// ID is the unique identifier of the vector record.
	ID string

	// Text is the chunk's raw text content.
	Text string

	// DocumentID is the id of the document this chunk was indexed under.
	// Retrieval filters on exact match of this field.
	DocumentID string

	// Ordinal is the chunk's position in the document's chunk sequence.
	Ordinal int

	// Score is the similarity score assigned during retrieval.
	// Zero value means the score was not computed.
	Score float32
}

// VectorStore is the interface for persisting and searching chunk
// embeddings. Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Upsert stores or updates a batch of chunks with their pre-computed
	// embeddings. The embeddings slice must be parallel to chunks:
	// embeddings[i] is the vector for chunks[i].
	Upsert(ctx context.Context, chunks []Chunk, embeddings [][]float32) error

	// Search returns the top-k most similar chunks for the query embedding,
	// restricted to chunks whose DocumentID exactly matches documentID.
	Search(ctx context.Context, queryEmbedding []float32, documentID string, topK int) ([]Chunk, error)

	// Delete removes chunks by their record IDs.
	Delete(ctx context.Context, ids []string) error

	// Close releases any resources held by the store.
	Close() error
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
