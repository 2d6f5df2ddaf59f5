package embedder

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOllamaEmbedder(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "nomic-embed-text" {
			t.Errorf("model = %q, want nomic-embed-text", req.Model)
		}
		embeddings := make([][]float32, len(req.Input))
		for i := range embeddings {
			embeddings[i] = []float32{float32(i), 0.5}
		}
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: embeddings})
	}))
	defer srv.Close()

	emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "nomic-embed-text"})

	vectors, err := emb.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("got %d vectors, want 2", len(vectors))
	}
	if vectors[1][0] != 1 {
		t.Errorf("vectors[1][0] = %v, want 1", vectors[1][0])
	}
}

func TestOllamaEmbedderServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Error: "model not found"})
	}))
	defer srv.Close()

	emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "missing"})

	_, err := emb.Embed(context.Background(), []string{"text"})
	if err == nil {
		t.Fatal("Embed() succeeded, want error")
	}
	if !strings.Contains(err.Error(), "model not found") {
		t.Errorf("error %q does not surface the server message", err)
	}
}

func TestOllamaEmbedderCountMismatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{0.1}}})
	}))
	defer srv.Close()

	emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "nomic-embed-text"})

	_, err := emb.Embed(context.Background(), []string{"one", "two"})
	if err == nil {
		t.Fatal("Embed() succeeded despite a short embeddings list")
	}
}

func TestOpenAIEmbedderReordersByIndex(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		// Data deliberately out of order; Embed must place by index.
		io.WriteString(w, `{"data":[{"embedding":[2],"index":1},{"embedding":[1],"index":0}]}`)
	}))
	defer srv.Close()

	emb := NewOpenAIEmbedder(&OpenAIConfig{
		BaseURL: srv.URL + "/v1",
		APIKey:  "test-key",
		Model:   "text-embedding-3-small",
	})

	vectors, err := emb.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if vectors[0][0] != 1 || vectors[1][0] != 2 {
		t.Errorf("vectors not placed by index: %v", vectors)
	}
}

func TestOpenAIEmbedderAzureMode(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("api-key"); got != "azure-key" {
			t.Errorf("api-key header = %q", got)
		}
		if !strings.Contains(r.URL.Path, "/deployments/my-deployment/embeddings") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("api-version"); got != "2025-04-01-preview" {
			t.Errorf("api-version = %q", got)
		}
		io.WriteString(w, `{"data":[{"embedding":[0.5],"index":0}]}`)
	}))
	defer srv.Close()

	emb := NewOpenAIEmbedder(&OpenAIConfig{
		BaseURL:    srv.URL,
		APIKey:     "azure-key",
		Model:      "my-deployment",
		Azure:      true,
		APIVersion: "2025-04-01-preview",
	})

	if _, err := emb.Embed(context.Background(), []string{"a"}); err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
}

func TestOpenAIEmbedderSurfacesAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"invalid api key"}}`)
	}))
	defer srv.Close()

	emb := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL, APIKey: "bad", Model: "m"})

	_, err := emb.Embed(context.Background(), []string{"a"})
	if err == nil {
		t.Fatal("Embed() succeeded, want error")
	}
	if !strings.Contains(err.Error(), "invalid api key") {
		t.Errorf("error %q does not surface the API message", err)
	}
}

func TestDefaultDimensions(t *testing.T) {
	tests := []struct {
		backend string
		env     string
		want    int
	}{
		{backend: "ollama", want: 768},
		{backend: "gemini", want: 768},
		{backend: "openai", want: 1536},
		{backend: "azure", want: 1536},
		{backend: "ollama", env: "1024", want: 1024},
	}

	for _, tt := range tests {
		t.Setenv("EMBEDDING_DIMENSIONS", tt.env)
		if got := DefaultDimensions(tt.backend); got != tt.want {
			t.Errorf("DefaultDimensions(%q) with env %q = %d, want %d", tt.backend, tt.env, got, tt.want)
		}
	}
}

func TestLooksLikeChatModel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		model string
		want  bool
	}{
		{"nomic-embed-text", false},
		{"text-embedding-3-small", false},
		{"text-embedding-004", false},
		{"gpt-4o", true},
		{"llama3.1:8b", true},
		{"Gemini-2.0-flash", true},
		{"mistral-7b", true},
	}

	for _, tt := range tests {
		if got := looksLikeChatModel(tt.model); got != tt.want {
			t.Errorf("looksLikeChatModel(%q) = %v, want %v", tt.model, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name: "ollama needs no credentials",
			env:  map[string]string{"EMBEDDING_PROVIDER": "ollama"},
		},
		{
			name:    "openai without key",
			env:     map[string]string{"EMBEDDING_PROVIDER": "openai"},
			wantErr: "OPENAI_API_KEY",
		},
		{
			name: "openai with embedding key",
			env: map[string]string{
				"EMBEDDING_PROVIDER": "openai",
				"EMBEDDING_API_KEY":  "sk-test",
			},
		},
		{
			name: "azure without endpoint",
			env: map[string]string{
				"EMBEDDING_PROVIDER":   "azure",
				"AZURE_OPENAI_API_KEY": "key",
			},
			wantErr: "AZURE_OPENAI_ENDPOINT",
		},
		{
			name:    "gemini without key",
			env:     map[string]string{"EMBEDDING_PROVIDER": "gemini"},
			wantErr: "GOOGLE_API_KEY",
		},
		{
			name: "gemini inherited from chat provider",
			env: map[string]string{
				"MODEL_PROVIDER": "gemini",
				"GOOGLE_API_KEY": "key",
			},
		},
	}

	clearKeys := []string{
		"EMBEDDING_PROVIDER", "MODEL_PROVIDER", "EMBEDDING_API_KEY",
		"EMBEDDING_MODEL", "EMBEDDING_ENDPOINT", "OPENAI_API_KEY",
		"AZURE_OPENAI_API_KEY", "AZURE_OPENAI_ENDPOINT", "GOOGLE_API_KEY",
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range clearKeys {
				t.Setenv(k, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			err := Validate(log)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() succeeded, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}
