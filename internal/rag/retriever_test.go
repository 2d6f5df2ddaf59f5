package rag

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// fakeEmbedder returns a fixed-size zero vector per input text, or a
// configurable error.
type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, 4)
	}
	return out, nil
}

// fakeStore returns canned chunks per Search call, optionally failing on
// specific call numbers.
type fakeStore struct {
	chunks    []Chunk
	failCalls map[int]bool // 0-based Search call numbers that return an error
	calls     int
	lastTopK  int
	lastDocID string
}

func (f *fakeStore) Upsert(context.Context, []Chunk, [][]float32) error { return nil }

func (f *fakeStore) Search(_ context.Context, _ []float32, documentID string, topK int) ([]Chunk, error) {
	call := f.calls
	f.calls++
	f.lastTopK = topK
	f.lastDocID = documentID
	if f.failCalls[call] {
		return nil, errors.New("store unavailable")
	}
	if topK < len(f.chunks) {
		return f.chunks[:topK], nil
	}
	return f.chunks, nil
}

func (f *fakeStore) Delete(context.Context, []string) error { return nil }
func (f *fakeStore) Close() error                           { return nil }

func chunksNamed(texts ...string) []Chunk {
	out := make([]Chunk, len(texts))
	for i, t := range texts {
		out[i] = Chunk{ID: fmt.Sprintf("id-%d", i), Text: t, Ordinal: i}
	}
	return out
}

func TestNewRetrieverValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewRetriever(nil, &fakeStore{}, nil); err == nil {
		t.Error("NewRetriever(nil embedder) succeeded, want error")
	}
	if _, err := NewRetriever(&fakeEmbedder{}, nil, nil); err == nil {
		t.Error("NewRetriever(nil store) succeeded, want error")
	}
}

func TestSearch(t *testing.T) {
	t.Parallel()

	store := &fakeStore{chunks: chunksNamed("alpha", "beta", "", "gamma")}
	r, err := NewRetriever(&fakeEmbedder{}, store, nil)
	if err != nil {
		t.Fatal(err)
	}

	texts, err := r.Search(context.Background(), "what is covered?", "doc-1", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	// Empty-text matches are skipped; relevance order is preserved.
	want := []string{"alpha", "beta", "gamma"}
	if len(texts) != len(want) {
		t.Fatalf("got %d texts, want %d", len(texts), len(want))
	}
	for i := range want {
		if texts[i] != want[i] {
			t.Errorf("texts[%d] = %q, want %q", i, texts[i], want[i])
		}
	}

	if store.lastTopK != DefaultSearchLimit {
		t.Errorf("store saw topK=%d, want default %d", store.lastTopK, DefaultSearchLimit)
	}
	if store.lastDocID != "doc-1" {
		t.Errorf("store saw documentID=%q, want doc-1", store.lastDocID)
	}
}

func TestSearchEmbedderFailure(t *testing.T) {
	t.Parallel()

	r, err := NewRetriever(&fakeEmbedder{err: errors.New("backend down")}, &fakeStore{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Search(context.Background(), "q", "doc", 5); err == nil {
		t.Error("Search succeeded despite embedder failure, want error")
	}
}

// TestCollectContextDedup covers the fan-out contract: 3 questions against a
// 10-chunk document, each contributing its top 5, deduplicated by text. The
// aggregate can never exceed the corpus size and the cap is not binding here.
func TestCollectContextDedup(t *testing.T) {
	t.Parallel()

	store := &fakeStore{chunks: chunksNamed(
		"c0", "c1", "c2", "c3", "c4", "c5", "c6", "c7", "c8", "c9",
	)}
	r, err := NewRetriever(&fakeEmbedder{}, store, nil)
	if err != nil {
		t.Fatal(err)
	}

	got := r.CollectContext(context.Background(), []string{"q1", "q2", "q3"}, "doc")

	// Every question returns the same top 5, so dedup collapses to 5.
	if len(got) != 5 {
		t.Fatalf("got %d chunks, want 5 after dedup", len(got))
	}
	seen := map[string]bool{}
	for _, text := range got {
		if seen[text] {
			t.Errorf("duplicate chunk %q in aggregate", text)
		}
		seen[text] = true
	}
}

// TestCollectContextCap verifies the global cap: many questions with
// disjoint results must never push the aggregate past 20 chunks.
func TestCollectContextCap(t *testing.T) {
	t.Parallel()

	// A store that fabricates unique chunks per call, so nothing dedups.
	store := &uniqueStore{}
	r, err := NewRetriever(&fakeEmbedder{}, store, nil)
	if err != nil {
		t.Fatal(err)
	}

	questions := make([]string, 8)
	for i := range questions {
		questions[i] = fmt.Sprintf("question %d", i)
	}

	got := r.CollectContext(context.Background(), questions, "doc")
	if len(got) > contextCap {
		t.Errorf("aggregate has %d chunks, want <= %d", len(got), contextCap)
	}
	if len(got) != contextCap {
		t.Errorf("8 questions x 5 disjoint chunks should fill the cap exactly, got %d", len(got))
	}
}

// uniqueStore returns a fresh set of never-before-seen chunk texts on every
// Search call.
type uniqueStore struct {
	call int
}

func (u *uniqueStore) Upsert(context.Context, []Chunk, [][]float32) error { return nil }

func (u *uniqueStore) Search(_ context.Context, _ []float32, _ string, topK int) ([]Chunk, error) {
	u.call++
	out := make([]Chunk, topK)
	for i := range out {
		out[i] = Chunk{ID: fmt.Sprintf("u-%d-%d", u.call, i), Text: fmt.Sprintf("chunk %d/%d", u.call, i)}
	}
	return out, nil
}

func (u *uniqueStore) Delete(context.Context, []string) error { return nil }
func (u *uniqueStore) Close() error                           { return nil }

// TestCollectContextPartialFailure: one failed question degrades to an
// empty contribution without aborting the batch.
func TestCollectContextPartialFailure(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		chunks:    chunksNamed("a", "b", "c"),
		failCalls: map[int]bool{1: true}, // second question's search fails
	}
	r, err := NewRetriever(&fakeEmbedder{}, store, nil)
	if err != nil {
		t.Fatal(err)
	}

	got := r.CollectContext(context.Background(), []string{"q1", "q2", "q3"}, "doc")
	if len(got) != 3 {
		t.Errorf("got %d chunks, want 3 from the surviving questions", len(got))
	}
}
