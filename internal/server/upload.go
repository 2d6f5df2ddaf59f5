package server

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clauselens/clauselens-go/internal/logging"
	"github.com/clauselens/clauselens-go/internal/store"
)

// maxUploadBytes bounds the size of an uploaded document file.
const maxUploadBytes = 50 << 20

// sessionCookieName is the cookie carrying the caller's session id.
const sessionCookieName = "session_id"

// handleUpload handles POST /api/v1/upload. The request supplies exactly one
// of a `url` form field or a `file` multipart part. The document is
// downloaded or read, extracted, chunked, and indexed under a freshly minted
// document id, which is then bound to the caller's session. The session id
// is returned in the body and set as an HttpOnly cookie.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()

	content, contentType, source, ok := s.readUploadSource(w, r)
	if !ok {
		s.metrics.uploadsTotal.WithLabelValues("invalid").Inc()
		return
	}

	text, err := s.deps.Extractor.Extract(content, contentType)
	if err != nil {
		log.Warn("extraction failed",
			slog.String("source", source),
			slog.String("content_type", contentType),
			slog.Any("error", err),
		)
		s.metrics.uploadsTotal.WithLabelValues("invalid").Inc()
		http.Error(w, "could not extract text from the document: "+err.Error(), http.StatusBadRequest)
		return
	}

	chunks := s.deps.Chunker.Chunk(text)
	documentID := uuid.NewString()

	if err := s.deps.Indexer.Index(r.Context(), chunks, documentID); err != nil {
		log.Error("indexing failed",
			slog.String("document_id", documentID),
			slog.Int("chunks", len(chunks)),
			slog.Any("error", err),
		)
		s.metrics.uploadsTotal.WithLabelValues("error").Inc()
		http.Error(w, "failed to index the document", http.StatusInternalServerError)
		return
	}

	sessionID := s.resolveSession(r)
	s.deps.Sessions.Bind(sessionID, documentID, text)

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	if s.deps.History != nil {
		if err := s.deps.History.RecordUpload(r.Context(), store.Upload{
			SessionID:   sessionID,
			DocumentID:  documentID,
			Source:      source,
			ContentType: contentType,
			ChunkCount:  len(chunks),
			TextLength:  len(text),
		}); err != nil {
			// History is best-effort; the upload already succeeded.
			log.Warn("upload history write failed", slog.Any("error", err))
		}
	}

	log.Info("document indexed",
		slog.String("document_id", documentID),
		slog.String("session_id", sessionID),
		slog.Int("chunks", len(chunks)),
		slog.Int("text_length", len(text)),
	)
	s.metrics.uploadsTotal.WithLabelValues("ok").Inc()
	s.metrics.uploadDuration.Observe(time.Since(start).Seconds())
	s.metrics.chunksIndexed.Add(float64(len(chunks)))

	writeJSON(w, http.StatusOK, uploadResponse{
		Message:   "Document processed and indexed successfully.",
		SessionID: sessionID,
	})
}

// readUploadSource resolves the document bytes for an upload request from
// either the `url` form field or the `file` multipart part. Exactly one must
// be present. On failure it writes the error response and returns ok=false;
// no session cookie is set on any failure path.
func (s *Server) readUploadSource(w http.ResponseWriter, r *http.Request) (content []byte, contentType, source string, ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var file io.ReadCloser
	var fileName, fileType string

	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			http.Error(w, "invalid multipart form", http.StatusBadRequest)
			return nil, "", "", false
		}
		f, hdr, err := r.FormFile("file")
		if err == nil {
			file = f
			fileName = hdr.Filename
			fileType = hdr.Header.Get("Content-Type")
		}
	} else if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return nil, "", "", false
	}

	url := r.FormValue("url")

	switch {
	case url == "" && file == nil:
		http.Error(w, "provide either a url or a file", http.StatusBadRequest)
		return nil, "", "", false
	case url != "" && file != nil:
		file.Close()
		http.Error(w, "provide either a url or a file, not both", http.StatusBadRequest)
		return nil, "", "", false
	}

	if url != "" {
		body, remoteType, err := s.deps.Extractor.Download(r.Context(), url)
		if err != nil {
			logging.FromContext(r.Context()).Warn("download failed",
				slog.String("url", url),
				slog.Any("error", err),
			)
			http.Error(w, "could not download the document: "+err.Error(), http.StatusBadRequest)
			return nil, "", "", false
		}
		return body, remoteType, url, true
	}

	defer file.Close()
	body, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		http.Error(w, "could not read the uploaded file", http.StatusBadRequest)
		return nil, "", "", false
	}
	return body, strings.ToLower(fileType), fileName, true
}

// resolveSession returns the caller's session id, minting a new one when the
// request carries no recognizable session cookie.
func (s *Server) resolveSession(r *http.Request) string {
	var cookieValue string
	if c, err := r.Cookie(sessionCookieName); err == nil {
		cookieValue = c.Value
	}
	return s.deps.Sessions.ResolveOrCreate(cookieValue)
}
