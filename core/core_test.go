package core

import (
	"context"
)

// Shared in-package mocks for run context and tool context tests.

type mockSessionStore struct {
	sessions map[string]*Session
	applied  map[string]map[string]any
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{sessions: map[string]*Session{}, applied: map[string]map[string]any{}}
}

func (m *mockSessionStore) Get(id string) (*Session, error) {
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	s := NewSession(id)
	m.sessions[id] = s
	return s, nil
}

func (m *mockSessionStore) Create(id string) (*Session, error) { return m.Get(id) }

func (m *mockSessionStore) AppendEvent(id string, ev Event) error {
	s, _ := m.Get(id)
	s.AddEvent(ev)
	return nil
}

func (m *mockSessionStore) ApplyDelta(id string, delta map[string]any) error {
	s, _ := m.Get(id)
	s.ApplyStateDelta(delta)
	cp := map[string]any{}
	for k, v := range delta {
		cp[k] = v
	}
	m.applied[id] = cp
	return nil
}

type mockMemoryStore struct {
	stored []string
}

func (m *mockMemoryStore) Get(sessionID string) (map[string]any, error) {
	return map[string]any{}, nil
}
func (m *mockMemoryStore) Put(sessionID string, delta map[string]any) error { return nil }
func (m *mockMemoryStore) Search(sid, q string, limit int) ([]SearchResult, error) {
	return []SearchResult{{ID: "mem-1", Content: "remembered content", Score: 0.9}}, nil
}
func (m *mockMemoryStore) Store(sid, content string, metadata map[string]any) error {
	m.stored = append(m.stored, content)
	return nil
}
func (m *mockMemoryStore) Delete(sid, memoryID string) error { return nil }

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

func newRunContextForTest() (*RunContext, chan Event) {
	emit := make(chan Event, 10)
	store := newMockSessionStore()
	sess, _ := store.Create("sess-x")
	rc := NewRunContext(
		context.Background(),
		"sess-x",
		"reply-x",
		AgentInfo{Name: "Agent1", Type: "voice"},
		Content{Role: "user", Parts: []Part{TextPart{Text: "test input"}}},
		10,
		emit,
		sess,
		store,
		&mockMemoryStore{},
		noopLogger{},
	)
	return rc, emit
}
