package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/clauselens/clauselens-go/internal/llm"
	"github.com/clauselens/clauselens-go/internal/session"
	"github.com/clauselens/clauselens-go/internal/store"
)

// fakeExtractor serves canned bytes and text for upload tests.
type fakeExtractor struct {
	downloadBody []byte
	downloadType string
	downloadErr  error
	extractText  string
	extractErr   error
	lastURL      string
}

func (f *fakeExtractor) Download(_ context.Context, url string) ([]byte, string, error) {
	f.lastURL = url
	if f.downloadErr != nil {
		return nil, "", f.downloadErr
	}
	return f.downloadBody, f.downloadType, nil
}

func (f *fakeExtractor) Extract(_ []byte, _ string) (string, error) {
	if f.extractErr != nil {
		return "", f.extractErr
	}
	return f.extractText, nil
}

// fakeChunker returns a fixed chunk list.
type fakeChunker struct {
	chunks []string
}

func (f *fakeChunker) Chunk(string) []string { return f.chunks }

// fakeIndexer records the indexed batch and optionally fails.
type fakeIndexer struct {
	err        error
	lastChunks []string
	lastDocID  string
}

func (f *fakeIndexer) Index(_ context.Context, chunks []string, documentID string) error {
	f.lastChunks = chunks
	f.lastDocID = documentID
	return f.err
}

// fakeRetriever records the collected question batch.
type fakeRetriever struct {
	chunks        []string
	lastQuestions []string
	lastDocID     string
}

func (f *fakeRetriever) CollectContext(_ context.Context, questions []string, documentID string) []string {
	f.lastQuestions = questions
	f.lastDocID = documentID
	return f.chunks
}

// fakeAnswerer serves canned results for the three LLM operations.
type fakeAnswerer struct {
	answers      []string
	answersErr   error
	summary      string
	summaryErr   error
	risks        []llm.Risk
	risksErr     error
	lastText     string
	lastQuestion []string
}

func (f *fakeAnswerer) GenerateAnswers(_ context.Context, questions, _ []string) ([]string, error) {
	f.lastQuestion = questions
	if f.answersErr != nil {
		return nil, f.answersErr
	}
	// Real implementations always return one answer per question.
	if f.answers == nil {
		out := make([]string, len(questions))
		for i := range out {
			out[i] = "answer"
		}
		return out, nil
	}
	return f.answers, nil
}

func (f *fakeAnswerer) Summarize(_ context.Context, text string) (string, error) {
	f.lastText = text
	return f.summary, f.summaryErr
}

func (f *fakeAnswerer) AnalyzeRisks(_ context.Context, text string) ([]llm.Risk, error) {
	f.lastText = text
	return f.risks, f.risksErr
}

// fakeRecorder captures upload history writes.
type fakeRecorder struct {
	records []store.Upload
	err     error
}

func (f *fakeRecorder) RecordUpload(_ context.Context, u store.Upload) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, u)
	return nil
}

// testDeps returns a Deps populated with benign fakes. Individual tests
// override the collaborator under test.
func testDeps() Deps {
	return Deps{
		Extractor: &fakeExtractor{extractText: "extracted document text"},
		Chunker:   &fakeChunker{chunks: []string{"chunk one", "chunk two"}},
		Indexer:   &fakeIndexer{},
		Retriever: &fakeRetriever{chunks: []string{"relevant chunk"}},
		Answerer:  &fakeAnswerer{},
		Sessions:  session.NewStore(),
	}
}

// newTestServer constructs a Server around deps with test-friendly defaults:
// a discard logger and a private metrics registry.
func newTestServer(t *testing.T, deps Deps, cfg *Config) *Server {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	s, err := New(deps, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.stopRL)
	return s
}

// multipartBody builds a multipart form with the given fields and an optional
// file part named "file".
func multipartBody(t *testing.T, fields map[string]string, fileName string, fileContent []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		if err != nil {
			t.Fatalf("create file part: %v", err)
		}
		if _, err := fw.Write(fileContent); err != nil {
			t.Fatalf("write file part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

// doRequest runs req through the server's full middleware chain.
func doRequest(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

// sessionCookie extracts the session_id cookie from a response, or nil.
func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	return nil
}

func TestNewRejectsMissingDeps(t *testing.T) {
	t.Parallel()

	deps := testDeps()
	deps.Answerer = nil
	if _, err := New(deps, &Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}); err == nil {
		t.Fatal("New accepted nil answerer")
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, testDeps(), nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := doRequest(s, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"healthy"`) {
		t.Errorf("body = %q, want status healthy", rec.Body.String())
	}
}

// failingPinger always reports its dependency as down.
type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }
func (failingPinger) Name() string               { return "qdrant" }

func TestReadyReportsFailingDependency(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, testDeps(), &Config{Pingers: []Pinger{failingPinger{}}})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil)
	rec := doRequest(s, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ready":false`) {
		t.Errorf("body = %q, want ready false", rec.Body.String())
	}
}

func TestReadyNoPingers(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, testDeps(), nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil)
	rec := doRequest(s, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
