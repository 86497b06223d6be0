package tool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mindbots/voicemesh/core"
	"github.com/mindbots/voicemesh/internal/util"
	"github.com/mindbots/voicemesh/logging"
	"github.com/stretchr/testify/assert"
)

// -------------------- Schema & Validation Tests --------------------

type sampleSchema struct {
	A string `json:"a" description:"Field A"`
	B *int   `json:"b" description:"Optional pointer field"`
	C int    `json:"c,omitempty" description:"Omit empty field"`
}

func TestCreateSchema(t *testing.T) {
	schema := util.CreateSchema(sampleSchema{})
	props, ok := schema["properties"].(map[string]any)
	assert.True(t, ok)
	// Properties present
	assert.Contains(t, props, "a")
	assert.Contains(t, props, "b")
	assert.Contains(t, props, "c")
	// Required only includes non-pointer, non-omitempty exported fields
	req, _ := schema["required"].([]string)
	if req == nil { // reflection may produce []any
		ifaceReq, _ := schema["required"].([]any)
		for _, v := range ifaceReq {
			req = append(req, v.(string))
		}
	}
	assert.ElementsMatch(t, []string{"a"}, req)
}

func TestValidateParameters(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "integer"},
		},
		// Use []any to mirror possible JSON decoded schema shape
		"required": []any{"x"},
	}

	// Success
	err := util.ValidateParameters(map[string]any{"x": 5}, schema)
	assert.NoError(t, err)

	// Missing required
	err = util.ValidateParameters(map[string]any{}, schema)
	assert.Error(t, err)
	if vErr, ok := err.(*ValidationError); ok {
		assert.Equal(t, "x", vErr.Field)
	} else {
		t.Fatalf("expected ValidationError, got %T", err)
	}

	// Wrong type
	err = util.ValidateParameters(map[string]any{"x": "not-int"}, schema)
	assert.Error(t, err)
	if vErr, ok := err.(*ValidationError); ok {
		assert.Contains(t, vErr.Message, "expected type integer")
	} else {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}

// -------------------- FunctionTool Tests --------------------

func TestFunctionTool_Success(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}

	sumTool := NewFunctionTool("sum", "Add numbers", params, func(_ *core.ToolContext, args map[string]any) (any, error) {
		a := args["a"].(float64)
		b := args["b"].(float64)
		return a + b, nil
	})

	tc := core.NewToolContext(dummyRunContext(), "fc1")
	result, err := sumTool.Call(tc, map[string]any{"a": 2.0, "b": 3.0})
	assert.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
		},
		// Use interface slice to match ValidateParameters implementation expectation
		"required": []any{"a"},
	}
	tTool := NewFunctionTool("test", "Test", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return 0, nil
	})
	tc := core.NewToolContext(dummyRunContext(), "fc2")
	_, err := tTool.Call(tc, map[string]any{})
	assert.Error(t, err)
	toolErr, ok := err.(*ToolError)
	assert.True(t, ok)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	execTool := NewFunctionTool("fail", "Fails", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, errors.New("boom")
	})
	tc := core.NewToolContext(dummyRunContext(), "fc3")
	_, err := execTool.Call(tc, map[string]any{})
	assert.Error(t, err)
	toolErr, ok := err.(*ToolError)
	assert.True(t, ok)
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
}

type memSessionService struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
}

func newMemSessionService() *memSessionService {
	return &memSessionService{sessions: map[string]*core.Session{}}
}
func (s *memSessionService) Get(id string) (*core.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return s.Create(id)
	}
	return sess.Clone(), nil
}
func (s *memSessionService) Create(id string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	newSess := core.NewSession(id)
	s.sessions[id] = newSess
	return newSess.Clone(), nil
}
func (s *memSessionService) AppendEvent(id string, ev core.Event) error {
	s.mu.Lock()
	if _, ok := s.sessions[id]; !ok {
		s.sessions[id] = core.NewSession(id)
	}
	s.sessions[id].AddEvent(ev)
	s.mu.Unlock()
	return nil
}
func (s *memSessionService) ApplyDelta(id string, delta map[string]any) error {
	s.mu.Lock()
	if _, ok := s.sessions[id]; !ok {
		s.sessions[id] = core.NewSession(id)
	}
	s.sessions[id].ApplyStateDelta(delta)
	s.mu.Unlock()
	return nil
}

type memMemoryService struct {
	mu    sync.RWMutex
	store map[string][]core.SearchResult
}

func newMemMemoryService() *memMemoryService {
	return &memMemoryService{store: map[string][]core.SearchResult{}}
}

func (m *memMemoryService) Search(sid, _ string, limit int) ([]core.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := m.store[sid]
	if limit < len(results) {
		results = results[:limit]
	}
	return results, nil
}
func (m *memMemoryService) Store(sid, content string, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mr := core.SearchResult{ID: content, Content: content, Score: 1.0, Metadata: metadata}
	m.store[sid] = append(m.store[sid], mr)
	return nil
}

func (m *memMemoryService) Delete(_, _ string) error { return nil }

// Added methods to satisfy core.MemoryStore interface
func (m *memMemoryService) Get(_ string) (map[string]any, error) { return map[string]any{}, nil }
func (m *memMemoryService) Put(_ string, _ map[string]any) error { return nil }

func dummyRunContext() *core.RunContext {
	sessSvc := newMemSessionService()
	memSvc := newMemMemoryService()

	sessionID := "room-1"
	if _, err := sessSvc.Create(sessionID); err != nil {
		panic(err)
	}

	emit := make(chan core.Event, 10)

	return core.NewRunContext(context.Background(), sessionID, "reply-1", core.AgentInfo{Name: "Agent", Type: "voice"}, core.Content{}, 10, emit, core.NewSession(sessionID), sessSvc, memSvc, logging.NoOpLogger{})
}

func TestMemoryTool_SetAndGetState(t *testing.T) {
	mt := NewMemoryTool()
	rc := dummyRunContext()
	tc := core.NewToolContext(rc, "fc-set")

	// set_state
	res, err := mt.Call(tc, map[string]any{"operation": "set_state", "key": "foo", "value": "bar"})
	assert.NoError(t, err)

	m := res.(map[string]any)
	assert.Equal(t, "foo", m["key"])
	assert.Equal(t, "bar", m["value"])
	assert.Equal(t, "bar", tc.Actions().StateDelta["foo"])

	// Apply actions to an event and commit to the session snapshot
	ev := core.Event{Actions: core.EventActions{StateDelta: map[string]any{}}}
	tc.InternalApplyActions(&ev)
	rc.Session.ApplyStateDelta(ev.Actions.StateDelta)

	// get_state
	tcGet := core.NewToolContext(rc, "fc-get")
	res, err = mt.Call(tcGet, map[string]any{"operation": "get_state", "key": "foo"})
	assert.NoError(t, err)
	gm := res.(map[string]any)
	assert.True(t, gm["exists"].(bool))
	assert.Equal(t, "bar", gm["value"])
}

func TestMemoryTool_RememberAndRecall(t *testing.T) {
	mt := NewMemoryTool()
	rc := dummyRunContext()
	tc := core.NewToolContext(rc, "fc-mem")

	_, err := mt.Call(tc, map[string]any{"operation": "remember", "content": "user prefers short answers"})
	assert.NoError(t, err)

	res, err := mt.Call(tc, map[string]any{"operation": "recall", "query": "answers"})
	assert.NoError(t, err)
	m := res.(map[string]any)
	assert.Equal(t, 1, m["count"])
}

func TestMemoryTool_EndSession(t *testing.T) {
	mt := NewMemoryTool()
	tc := core.NewToolContext(dummyRunContext(), "fc-end")

	_, err := mt.Call(tc, map[string]any{"operation": "end_session"})
	assert.NoError(t, err)
	assert.NotNil(t, tc.Actions().EndSession)
	assert.True(t, *tc.Actions().EndSession)
}

func TestMemoryTool_UnknownOperation(t *testing.T) {
	mt := NewMemoryTool()
	tc := core.NewToolContext(dummyRunContext(), "fc-bad")

	_, err := mt.Call(tc, map[string]any{"operation": "teleport"})
	assert.Error(t, err)
}

// -------------------- ToolError Formatting --------------------

func TestToolErrorFormatting(t *testing.T) {
	err := NewToolError("demo", "something failed", "E123")
	assert.Contains(t, err.Error(), "E123")
	assert.Contains(t, err.Error(), "demo")
}

// Ensure tests run quickly (sanity)
func TestToolPackageTestDuration(t *testing.T) {
	start := time.Now()
	// no-op
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}
