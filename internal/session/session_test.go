package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestResolveOrCreate(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.Bind("known-session", "doc-1", "text")

	tests := []struct {
		name        string
		cookie      string
		wantKnown   bool // expect the cookie value returned unchanged
		wantValidID bool // expect a freshly minted UUID
	}{
		{name: "empty cookie mints uuid", cookie: "", wantValidID: true},
		{name: "unknown cookie mints uuid", cookie: "never-bound", wantValidID: true},
		{name: "known cookie passes through", cookie: "known-session", wantKnown: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := s.ResolveOrCreate(tc.cookie)
			if tc.wantKnown && got != tc.cookie {
				t.Errorf("ResolveOrCreate(%q) = %q, want cookie returned unchanged", tc.cookie, got)
			}
			if tc.wantValidID {
				if got == tc.cookie {
					t.Errorf("ResolveOrCreate(%q) returned the unknown cookie unchanged", tc.cookie)
				}
				if _, err := uuid.Parse(got); err != nil {
					t.Errorf("ResolveOrCreate(%q) = %q, not a valid UUID: %v", tc.cookie, got, err)
				}
			}
		})
	}
}

// TestResolveOrCreateDoesNotRegister verifies that minting an id does not
// create a session; only Bind registers.
func TestResolveOrCreateDoesNotRegister(t *testing.T) {
	t.Parallel()

	s := NewStore()
	id := s.ResolveOrCreate("")
	if _, ok := s.Lookup(id); ok {
		t.Errorf("session %q registered by ResolveOrCreate, want registration only via Bind", id)
	}
}

// TestBindOverwrite covers the last-write-wins contract: binding a session
// twice leaves Lookup returning only the most recent document.
func TestBindOverwrite(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.Bind("sess", "doc-old", "old text")
	s.Bind("sess", "doc-new", "new text")

	rec, ok := s.Lookup("sess")
	if !ok {
		t.Fatal("Lookup returned ok=false for a bound session")
	}
	if rec.DocumentID != "doc-new" || rec.FullText != "new text" {
		t.Errorf("Lookup = %+v, want the most recent binding", rec)
	}
}

func TestLookupUnknown(t *testing.T) {
	t.Parallel()

	s := NewStore()
	if rec, ok := s.Lookup("ghost"); ok {
		t.Errorf("Lookup(ghost) = %+v, ok=true, want ok=false", rec)
	}
}

// TestConcurrentAccess exercises interleaved reads and writes from
// independent sessions. Run with -race.
func TestConcurrentAccess(t *testing.T) {
	t.Parallel()

	s := NewStore()
	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("sess-%d", n)
			for j := 0; j < 50; j++ {
				s.Bind(id, fmt.Sprintf("doc-%d-%d", n, j), "text")
				if _, ok := s.Lookup(id); !ok {
					t.Errorf("session %s lost after Bind", id)
					return
				}
				s.ResolveOrCreate(id)
			}
		}(i)
	}
	wg.Wait()

	if got := s.Len(); got != 32 {
		t.Errorf("Len() = %d, want 32", got)
	}
}
