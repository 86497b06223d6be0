package session

import (
	"testing"

	"github.com/mindbots/voicemesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertion)
var _ core.SessionStore = (*InMemoryStore)(nil)

func TestInMemoryStore_LazyCreateAndClone(t *testing.T) {
	store := NewInMemoryStore()

	sess, err := store.Get("room-1")
	require.NoError(t, err)
	assert.Equal(t, "room-1", sess.ID)

	// Returned snapshot is a clone; mutating it must not affect the store.
	sess.SetState("k", "v")
	again, err := store.Get("room-1")
	require.NoError(t, err)
	_, ok := again.GetState("k")
	assert.False(t, ok)
}

func TestInMemoryStore_AppendEventAndApplyDelta(t *testing.T) {
	store := NewInMemoryStore()

	ev := core.NewUserTranscriptEvent("reply-1", "hello there")
	require.NoError(t, store.AppendEvent("room-1", ev))
	require.NoError(t, store.ApplyDelta("room-1", map[string]any{"topic": "greetings"}))

	sess, err := store.Get("room-1")
	require.NoError(t, err)
	assert.Len(t, sess.GetEvents(), 1)

	v, ok := sess.GetState("topic")
	assert.True(t, ok)
	assert.Equal(t, "greetings", v)
}
