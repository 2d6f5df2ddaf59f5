package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/clauselens/clauselens-go/internal/chunker"
	"github.com/clauselens/clauselens-go/internal/embedder"
	"github.com/clauselens/clauselens-go/internal/extract"
	"github.com/clauselens/clauselens-go/internal/ingestion"
	"github.com/clauselens/clauselens-go/internal/llm"
	"github.com/clauselens/clauselens-go/internal/logging"
	"github.com/clauselens/clauselens-go/internal/provider"
	"github.com/clauselens/clauselens-go/internal/rag"
	"github.com/clauselens/clauselens-go/internal/server"
	"github.com/clauselens/clauselens-go/internal/session"
	"github.com/clauselens/clauselens-go/internal/store"
	"github.com/clauselens/clauselens-go/internal/tracing"
)

// NewServeCmd constructs the `clauselens serve` command, which starts the
// HTTP server exposing the document QA API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ClauseLens HTTP server",
		Long: `Start the ClauseLens HTTP server.

The server exposes the document QA API under /api/v1: upload a document,
ask questions against it, summarize it, or scan it for risky clauses.
Liveness, readiness, and Prometheus metrics endpoints are included.

Examples:
  clauselens serve
  clauselens serve --port 9000
  MODEL_PROVIDER=openai clauselens serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Env (and therefore YAML config, applied in PersistentPreRunE)
			// fills host/port when the flags were not given explicitly.
			if !cmd.Flags().Changed("host") {
				host = getEnvOrDefault("CLAUSELENS_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = getEnvInt("CLAUSELENS_PORT", port)
			}

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Langfuse tracing is opt-in; a no-op when keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			if err := embedder.Validate(log); err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			emb, err := embedder.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise embedder: %w", err)
			}
			log.Info("embedder initialised", slog.String("provider", embeddingBackend()))

			qstore, err := buildVectorStore(ctx)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer qstore.Close()

			pipeline, err := ingestion.NewPipeline(emb, qstore, log)
			if err != nil {
				return fmt.Errorf("serve: failed to create indexing pipeline: %w", err)
			}
			retriever, err := rag.NewRetriever(emb, qstore, log)
			if err != nil {
				return fmt.Errorf("serve: failed to create retriever: %w", err)
			}

			chatModel, err := provider.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}
			processor, err := llm.New(chatModel)
			if err != nil {
				return fmt.Errorf("serve: failed to create processor: %w", err)
			}

			// Open the upload history store. CLAUSELENS_HISTORY_DB overrides
			// the default path (~/.clauselens/uploads.db); "disabled" turns
			// history off.
			var history *store.SQLiteStore
			dbPath := os.Getenv("CLAUSELENS_HISTORY_DB")
			if dbPath != "disabled" {
				if dbPath == "" {
					dbPath, err = store.DefaultDBPath()
					if err != nil {
						log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
						dbPath = ""
					}
				}
				if dbPath != "" {
					hs, hsErr := store.Open(dbPath)
					if hsErr != nil {
						log.Warn("history: failed to open store, disabling", slog.Any("error", hsErr))
					} else {
						history = hs
						defer func() { _ = hs.Close() }()
						log.Info("history: store opened", slog.String("path", dbPath))
					}
				}
			} else {
				log.Info("history: disabled via CLAUSELENS_HISTORY_DB=disabled")
			}

			deps := server.Deps{
				Extractor: extract.NewProcessor(0),
				Chunker: chunker.New(&chunker.Config{
					ChunkSize: getEnvInt("CHUNK_SIZE", 0),
					Overlap:   getEnvInt("CHUNK_OVERLAP", 0),
					Logger:    log,
				}),
				Indexer:   pipeline,
				Retriever: retriever,
				Answerer:  processor,
				Sessions:  session.NewStore(),
			}
			if history != nil {
				deps.History = history
			}

			srv, err := server.New(deps, &server.Config{
				Host:   host,
				Port:   port,
				Logger: log,
				Pingers: []server.Pinger{
					server.NewQdrantPinger(qstore.Client()),
					server.NewEmbedderPinger(emb, embeddingBackend()),
				},
				APIKey: os.Getenv("CLAUSELENS_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8000, "TCP port to listen on")

	return cmd
}
