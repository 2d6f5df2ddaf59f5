package rag

import (
	"context"
	"fmt"
	"log/slog"
)

const (
	// DefaultSearchLimit is the per-question top-k passed to the vector
	// store when Search is called with limit <= 0.
	DefaultSearchLimit = 15

	// perQuestionKeep is how many of each question's results enter the
	// aggregated context set. Wider than the final cap so a single strong
	// question cannot crowd out the others.
	perQuestionKeep = 5

	// contextCap bounds the aggregated chunk set handed to the answering
	// model, keeping prompt size (and cost) predictable regardless of how
	// many questions arrive in one batch.
	contextCap = 20
)

// Retriever performs per-question filtered vector search and cross-question
// context aggregation. It combines an Embedder and a VectorStore; both are
// injected at construction so tests can substitute fakes.
type Retriever struct {
	// embedder converts query text to a dense vector.
	embedder Embedder

	// store performs the filtered vector similarity search.
	store VectorStore

	// log receives per-question retrieval diagnostics.
	log *slog.Logger
}

// NewRetriever constructs a Retriever from the given Embedder and VectorStore.
func NewRetriever(embedder Embedder, store VectorStore, log *slog.Logger) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Retriever{embedder: embedder, store: store, log: log}, nil
}

// Search embeds the query and returns the text of the top-limit chunks of
// the given document, in the store's relevance order. Matches without text
// payload are skipped. limit <= 0 uses DefaultSearchLimit.
func (r *Retriever) Search(ctx context.Context, query, documentID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("rag: embedder returned empty result for query")
	}

	chunks, err := r.store.Search(ctx, embeddings[0], documentID, limit)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search failed: %w", err)
	}

	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c.Text != "" {
			texts = append(texts, c.Text)
		}
	}

	r.log.Debug("search complete",
		slog.String("document_id", documentID),
		slog.Int("matches", len(texts)),
	)
	return texts, nil
}

// CollectContext runs Search independently for each question, keeps the
// top results of each, deduplicates by exact text equality, and caps the
// combined set. A failed search contributes nothing for that question;
// it is logged, never fatal to the batch.
//
// The set union is order-losing: chunks are returned in first-seen order
// across questions, not by global relevance.
func (r *Retriever) CollectContext(ctx context.Context, questions []string, documentID string) []string {
	seen := make(map[string]struct{})
	var combined []string

	for _, q := range questions {
		texts, err := r.Search(ctx, q, documentID, DefaultSearchLimit)
		if err != nil {
			r.log.Warn("retrieval failed for question, continuing batch",
				slog.String("document_id", documentID),
				slog.Any("error", err),
			)
			continue
		}

		keep := texts
		if len(keep) > perQuestionKeep {
			keep = keep[:perQuestionKeep]
		}
		for _, text := range keep {
			if _, dup := seen[text]; dup {
				continue
			}
			seen[text] = struct{}{}
			combined = append(combined, text)
		}
	}

	if len(combined) > contextCap {
		combined = combined[:contextCap]
	}
	return combined
}
