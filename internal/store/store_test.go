package store

import (
	"context"
	"testing"
	"time"
)

// openTestStore opens an in-memory SQLiteStore for use in tests.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func Test_Store_RecordAndRecent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	first := Upload{
		SessionID:   "sess-1",
		DocumentID:  "doc-1",
		Source:      "https://example.com/lease.pdf",
		ContentType: "application/pdf",
		ChunkCount:  12,
		TextLength:  9500,
		CreatedAt:   time.Unix(1000, 0),
	}
	second := Upload{
		SessionID:   "sess-2",
		DocumentID:  "doc-2",
		Source:      "policy.txt",
		ContentType: "text/plain",
		ChunkCount:  3,
		TextLength:  2100,
		CreatedAt:   time.Unix(2000, 0),
	}

	if err := s.RecordUpload(ctx, first); err != nil {
		t.Fatalf("record first: %v", err)
	}
	if err := s.RecordUpload(ctx, second); err != nil {
		t.Fatalf("record second: %v", err)
	}

	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 uploads, got %d", len(got))
	}
	// Newest first.
	if got[0].DocumentID != "doc-2" || got[1].DocumentID != "doc-1" {
		t.Errorf("order = %s, %s; want doc-2, doc-1", got[0].DocumentID, got[1].DocumentID)
	}
	if got[1].ChunkCount != 12 || got[1].TextLength != 9500 {
		t.Errorf("fields not round-tripped: %+v", got[1])
	}
}

func Test_Store_RecentLimitRespected(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	for i := range 6 {
		u := Upload{
			SessionID:   "sess",
			DocumentID:  "doc",
			Source:      "source",
			ContentType: "text/plain",
			ChunkCount:  i,
			TextLength:  i * 100,
			CreatedAt:   time.Unix(int64(1000+i), 0),
		}
		if err := s.RecordUpload(ctx, u); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	got, err := s.Recent(ctx, 4)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("want 4 uploads, got %d", len(got))
	}
	if got[0].ChunkCount != 5 {
		t.Errorf("newest upload chunk_count = %d, want 5", got[0].ChunkCount)
	}
}

func Test_Store_ZeroCreatedAtFilled(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.RecordUpload(ctx, Upload{SessionID: "s", DocumentID: "d", Source: "x", ContentType: "text/plain"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	got, err := s.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 1 || got[0].CreatedAt.IsZero() {
		t.Errorf("CreatedAt was not filled: %+v", got)
	}
}
