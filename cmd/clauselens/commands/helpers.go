package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/clauselens/clauselens-go/internal/embedder"
	"github.com/clauselens/clauselens-go/internal/rag"
)

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// embeddingBackend resolves the embedding backend name from the environment.
func embeddingBackend() string {
	return getEnvOrDefault("EMBEDDING_PROVIDER", getEnvOrDefault("MODEL_PROVIDER", "gemini"))
}

// buildVectorStore connects to Qdrant using the environment configuration,
// sizing the collection for the active embedding backend.
func buildVectorStore(ctx context.Context) (*rag.QdrantStore, error) {
	host := getEnvOrDefault("QDRANT_HOST", "localhost")
	port := getEnvInt("QDRANT_PORT", 6334)
	collection := getEnvOrDefault("QDRANT_COLLECTION", "clauselens-docs")
	vectorSize := uint64(embedder.DefaultDimensions(embeddingBackend())) //nolint:gosec // dimensions are bounded

	if v := getEnvInt("EMBEDDING_DIMENSIONS", 0); v > 0 {
		vectorSize = uint64(v) //nolint:gosec // dimensions are bounded
	}

	qs, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
		Host:       host,
		Port:       port,
		Collection: collection,
		VectorSize: vectorSize,
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
	}
	return qs, nil
}
