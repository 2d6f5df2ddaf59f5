package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/clauselens/clauselens-go/internal/chunker"
	"github.com/clauselens/clauselens-go/internal/embedder"
	"github.com/clauselens/clauselens-go/internal/extract"
	"github.com/clauselens/clauselens-go/internal/ingestion"
	"github.com/clauselens/clauselens-go/internal/logging"
)

// NewIngestCmd constructs the `clauselens ingest` command, which indexes a
// document into the vector store without the HTTP server. Useful for
// pre-loading a corpus or debugging the pipeline.
func NewIngestCmd() *cobra.Command {
	var url string
	var file string
	var contentType string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index a document into the vector store directly",
		Long: `Download or read a document, extract its text, chunk it, and index the
chunks into the Qdrant vector store. The minted document id is printed on
success and can be used to inspect the indexed points.

Exactly one of --url or --file must be given. For --file, the content type
is inferred from the extension (.pdf, .txt) unless --content-type is set.

Required environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: clauselens-docs)
  MODEL_PROVIDER       Embedding backend: ollama, openai, azure, gemini
  EMBEDDING_*          Provider-specific overrides (see README)

Examples:
  clauselens ingest --url https://example.com/lease.pdf
  clauselens ingest --file ./policy.txt
  clauselens ingest --file ./contract.bin --content-type application/pdf`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if (url == "") == (file == "") {
				return fmt.Errorf("ingest: exactly one of --url or --file is required")
			}

			if err := embedder.Validate(log); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			emb, err := embedder.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise embedder: %w", err)
			}
			log.Info("embedder initialised", slog.String("provider", embeddingBackend()))

			qstore, err := buildVectorStore(ctx)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer qstore.Close()

			pipeline, err := ingestion.NewPipeline(emb, qstore, log)
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			proc := extract.NewProcessor(0)

			var content []byte
			ct := contentType
			source := url
			if url != "" {
				var remoteType string
				content, remoteType, err = proc.Download(ctx, url)
				if err != nil {
					return fmt.Errorf("ingest: download failed: %w", err)
				}
				if ct == "" {
					ct = remoteType
				}
			} else {
				content, err = os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("ingest: read %s: %w", file, err)
				}
				if ct == "" {
					ct = contentTypeForExt(file)
				}
				source = file
			}

			text, err := proc.Extract(content, ct)
			if err != nil {
				return fmt.Errorf("ingest: extraction failed: %w", err)
			}

			chunks := chunker.New(&chunker.Config{
				ChunkSize: getEnvInt("CHUNK_SIZE", 0),
				Overlap:   getEnvInt("CHUNK_OVERLAP", 0),
				Logger:    log,
			}).Chunk(text)

			documentID := uuid.NewString()
			if err := pipeline.Index(ctx, chunks, documentID); err != nil {
				return fmt.Errorf("ingest: indexing failed: %w", err)
			}

			log.Info("document indexed",
				slog.String("source", source),
				slog.String("document_id", documentID),
				slog.Int("chunks", len(chunks)),
				slog.Int("text_length", len(text)),
			)
			fmt.Printf("indexed %d chunks, document id: %s\n", len(chunks), documentID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&url, "url", "u", "", "URL of the document to ingest")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Local file to ingest")
	cmd.Flags().StringVar(&contentType, "content-type", "", "Override the detected content type")

	return cmd
}

// contentTypeForExt maps a file extension to the MIME type the extractor
// understands. Unknown extensions fall through as text/plain.
func contentTypeForExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	default:
		return "text/plain"
	}
}
