// Package session provides the in-memory store that binds a browser-held
// session identifier to the document currently active for that session.
// A session holds at most one document; every new upload under the same
// session replaces the previous binding. Records live only for the process
// lifetime; there is intentionally no persistence or expiry.
package session

import (
	"sync"

	"github.com/google/uuid"
)

// Record is the data bound to an active session.
type Record struct {
	// DocumentID is the identifier minted for the most recent upload.
	DocumentID string
	// FullText is the complete extracted text of the active document,
	// used by the summarize and risk-analysis flows.
	FullText string
}

// Store maps session ids to their active document. Safe for concurrent
// use by independent request goroutines; entries are independent and all
// operations are O(1), so a single mutex domain is sufficient.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]Record
}

// NewStore constructs an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]Record)}
}

// ResolveOrCreate returns the session id for an incoming request. If the
// cookie value names a known session it is returned unchanged; otherwise a
// fresh UUID is minted. The new id is not registered; registration
// happens only through Bind, so an upload that later fails never leaves a
// half-created session behind.
func (s *Store) ResolveOrCreate(cookieValue string) string {
	if cookieValue != "" {
		s.mu.RLock()
		_, known := s.sessions[cookieValue]
		s.mu.RUnlock()
		if known {
			return cookieValue
		}
	}
	return uuid.NewString()
}

// Bind upserts the (document id, full text) pair for a session.
// Last write wins; a previous binding is replaced wholesale.
func (s *Store) Bind(sessionID, documentID, fullText string) {
	s.mu.Lock()
	s.sessions[sessionID] = Record{DocumentID: documentID, FullText: fullText}
	s.mu.Unlock()
}

// Lookup returns the active record for a session, or ok=false when the
// session has never been bound in this process.
func (s *Store) Lookup(sessionID string) (Record, bool) {
	s.mu.RLock()
	rec, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	return rec, ok
}

// Len returns the number of bound sessions. Used by metrics.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
