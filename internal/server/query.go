package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/clauselens/clauselens-go/internal/llm"
	"github.com/clauselens/clauselens-go/internal/logging"
	"github.com/clauselens/clauselens-go/internal/session"
)

// noActiveSessionMsg is returned when a query arrives without a prior upload
// in the same session. This is expected user-flow guidance, not a fault.
const noActiveSessionMsg = "no active session: upload a document first"

// activeSession resolves the request's session cookie to its bound document.
// On failure it writes the "no active session" response and returns ok=false.
func (s *Server) activeSession(w http.ResponseWriter, r *http.Request) (session.Record, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil {
		http.Error(w, noActiveSessionMsg, http.StatusBadRequest)
		return session.Record{}, false
	}
	rec, ok := s.deps.Sessions.Lookup(c.Value)
	if !ok {
		http.Error(w, noActiveSessionMsg, http.StatusBadRequest)
		return session.Record{}, false
	}
	return rec, true
}

// handleRun handles POST /api/v1/run. It retrieves context for the question
// batch and returns exactly one answer per question, in order.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	rec, ok := s.activeSession(w, r)
	if !ok {
		return
	}

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Questions) == 0 {
		http.Error(w, "questions must not be empty", http.StatusBadRequest)
		return
	}

	start := time.Now()
	chunks := s.deps.Retriever.CollectContext(r.Context(), req.Questions, rec.DocumentID)
	s.metrics.retrievalDuration.Observe(time.Since(start).Seconds())

	answers, err := s.deps.Answerer.GenerateAnswers(r.Context(), req.Questions, chunks)
	if err != nil {
		log.Error("answer generation failed", slog.Any("error", err))
		http.Error(w, "failed to generate answers", http.StatusInternalServerError)
		return
	}

	log.Info("questions answered",
		slog.String("document_id", rec.DocumentID),
		slog.Int("questions", len(req.Questions)),
		slog.Int("context_chunks", len(chunks)),
	)
	s.metrics.questionsTotal.Add(float64(len(req.Questions)))

	writeJSON(w, http.StatusOK, runResponse{Answers: answers})
}

// handleSummarize handles POST /api/v1/summarize. It summarizes the full
// document text bound to the session, not the indexed chunks.
func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	rec, ok := s.activeSession(w, r)
	if !ok {
		return
	}

	summary, err := s.deps.Answerer.Summarize(r.Context(), rec.FullText)
	if err != nil {
		log.Warn("summarization failed",
			slog.String("document_id", rec.DocumentID),
			slog.Any("error", err),
		)
		if errors.Is(err, llm.ErrDocumentTooLarge) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "failed to summarize the document", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, summaryResponse{Summary: summary})
}

// handleAnalyzeRisks handles POST /api/v1/analyze/risks. It scans the full
// document text bound to the session for risky clauses.
func (s *Server) handleAnalyzeRisks(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	rec, ok := s.activeSession(w, r)
	if !ok {
		return
	}

	risks, err := s.deps.Answerer.AnalyzeRisks(r.Context(), rec.FullText)
	if err != nil {
		log.Error("risk analysis failed",
			slog.String("document_id", rec.DocumentID),
			slog.Any("error", err),
		)
		http.Error(w, "failed to analyze the document", http.StatusInternalServerError)
		return
	}
	if risks == nil {
		risks = []llm.Risk{}
	}

	writeJSON(w, http.StatusOK, risksResponse{Risks: risks})
}
