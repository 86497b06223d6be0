// Package memory provides the process-local store behind the persona's
// remember/recall tooling. Each room gets two surfaces: a key/value map of
// pinned facts (fed into instruction templates) and an ordered log of
// remembered utterances that recall searches.
package memory

import (
	"fmt"
	"strings"
	"sync"

	"github.com/mindbots/voicemesh/core"
)

// record is one remembered utterance for a room.
type record struct {
	id       string
	content  string
	metadata map[string]any
}

// InMemoryStore keeps room memory in process. Recall is a case-insensitive
// substring scan over the remembered utterances, newest first, each hit
// scored 1.0. Good enough for demos and tests; production retrieval wants a
// semantic index behind the same interface.
type InMemoryStore struct {
	mu     sync.RWMutex
	facts  map[string]map[string]any // room -> key -> pinned fact
	log    map[string][]record       // room -> remembered utterances, oldest first
	nextID int
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		facts: make(map[string]map[string]any),
		log:   make(map[string][]record),
	}
}

// Get returns a copy of the pinned facts for the room.
func (m *InMemoryStore) Get(sessionID string) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	facts := make(map[string]any, len(m.facts[sessionID]))
	for k, v := range m.facts[sessionID] {
		facts[k] = v
	}
	return facts, nil
}

// Put merges the delta into the room's pinned facts.
func (m *InMemoryStore) Put(sessionID string, delta map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.facts[sessionID] == nil {
		m.facts[sessionID] = make(map[string]any, len(delta))
	}
	for k, v := range delta {
		m.facts[sessionID][k] = v
	}
	return nil
}

// Search scans the room's remembered utterances for the query, most recent
// first, up to limit results. Matching ignores case; an empty query matches
// everything.
func (m *InMemoryStore) Search(sessionID string, query string, limit int) ([]core.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(query)
	log := m.log[sessionID]

	results := []core.SearchResult{}
	for i := len(log) - 1; i >= 0 && len(results) < limit; i-- {
		rec := log[i]
		if needle != "" && !strings.Contains(strings.ToLower(rec.content), needle) {
			continue
		}
		md := make(map[string]any, len(rec.metadata))
		for k, v := range rec.metadata {
			md[k] = v
		}
		results = append(results, core.SearchResult{
			ID:       rec.id,
			Content:  rec.content,
			Score:    1.0,
			Metadata: md,
		})
	}
	return results, nil
}

// Store appends a remembered utterance to the room's log. IDs come from a
// store-wide counter so they stay unique across deletes.
func (m *InMemoryStore) Store(sessionID string, content string, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.log[sessionID] = append(m.log[sessionID], record{
		id:       fmt.Sprintf("mem_%d", m.nextID),
		content:  content,
		metadata: metadata,
	})
	m.nextID++
	return nil
}

// Delete removes one remembered utterance by ID.
func (m *InMemoryStore) Delete(sessionID string, memoryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	log := m.log[sessionID]
	for i, rec := range log {
		if rec.id == memoryID {
			m.log[sessionID] = append(log[:i], log[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("memory %q not found in room %q", memoryID, sessionID)
}
