package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/clauselens/clauselens-go/internal/llm"
	"github.com/clauselens/clauselens-go/internal/session"
	"github.com/clauselens/clauselens-go/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8000).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	// Must cover a full multi-question LLM round trip.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/v1/ready.
	// If empty, /api/v1/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on the document endpoints.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// Registry receives the server's Prometheus metrics and backs GET /metrics.
	// If nil, a private registry is created.
	Registry *prometheus.Registry
}

// extractor is the interface handleUpload uses to fetch and extract document
// text. *extract.Processor satisfies it; tests inject a fake.
type extractor interface {
	Download(ctx context.Context, url string) ([]byte, string, error)
	Extract(content []byte, contentType string) (string, error)
}

// splitter turns extracted document text into indexable chunks.
// *chunker.Chunker satisfies it.
type splitter interface {
	Chunk(text string) []string
}

// indexer embeds and upserts document chunks. *ingestion.Pipeline satisfies it.
type indexer interface {
	Index(ctx context.Context, chunks []string, documentID string) error
}

// contextCollector gathers the retrieval context for a question batch.
// *rag.Retriever satisfies it.
type contextCollector interface {
	CollectContext(ctx context.Context, questions []string, documentID string) []string
}

// answerer is the interface the query handlers call for the three
// LLM-backed operations. *llm.Processor satisfies it; tests inject a fake.
type answerer interface {
	GenerateAnswers(ctx context.Context, questions, chunks []string) ([]string, error)
	Summarize(ctx context.Context, text string) (string, error)
	AnalyzeRisks(ctx context.Context, text string) ([]llm.Risk, error)
}

// uploadRecorder persists the upload history. *store.SQLiteStore satisfies
// it. Recording is best-effort; a nil recorder disables history entirely.
type uploadRecorder interface {
	RecordUpload(ctx context.Context, u store.Upload) error
}

// Deps bundles the collaborators the server orchestrates.
type Deps struct {
	// Extractor downloads and extracts document text.
	Extractor extractor
	// Chunker splits extracted text into chunks.
	Chunker splitter
	// Indexer embeds and upserts chunks into the vector store.
	Indexer indexer
	// Retriever collects the per-query retrieval context.
	Retriever contextCollector
	// Answerer runs the LLM-backed operations.
	Answerer answerer
	// Sessions maps session ids to their active document.
	Sessions *session.Store
	// History records uploads for the history CLI command. Optional.
	History uploadRecorder
}

// Server is the HTTP server that exposes the document QA API.
type Server struct {
	// deps holds the orchestrated collaborators.
	deps Deps
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/v1/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// uploadResponse is the JSON response for POST /api/v1/upload.
type uploadResponse struct {
	// Message confirms the document was processed.
	Message string `json:"message"`
	// SessionID is the session the document was bound to. The same value is
	// set as the session_id cookie.
	SessionID string `json:"session_id"`
}

// runRequest is the JSON body for POST /api/v1/run.
type runRequest struct {
	// Questions is the ordered batch of questions to answer.
	Questions []string `json:"questions"`
}

// runResponse is the JSON response for POST /api/v1/run.
type runResponse struct {
	// Answers holds one answer per question, same order.
	Answers []string `json:"answers"`
}

// summaryResponse is the JSON response for POST /api/v1/summarize.
type summaryResponse struct {
	Summary string `json:"summary"`
}

// risksResponse is the JSON response for POST /api/v1/analyze/risks.
type risksResponse struct {
	Risks []llm.Risk `json:"risks"`
}
