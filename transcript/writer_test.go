package transcript

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFilename(t *testing.T) {
	ts := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

	name := BuildFilename("transcript", "mindbot-room", ts, "json")
	assert.Equal(t, "transcript_mindbot-room_20250314_150926.json", name)
}

func TestBuildFilenameNoCollisionAcrossSessions(t *testing.T) {
	ts := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

	first := BuildFilename("transcript", "room-a", ts, "jsonl")
	second := BuildFilename("transcript", "room-a", ts.Add(2*time.Second), "jsonl")
	assert.NotEqual(t, first, second)

	// Different rooms never collide even at the same instant.
	other := BuildFilename("transcript", "room-b", ts, "jsonl")
	assert.NotEqual(t, first, other)
}

func TestResolveDir(t *testing.T) {
	assert.Equal(t, "/data/out", ResolveDir("/data/out", "MINDBOT_LOG_DIR"))

	t.Setenv("MINDBOT_LOG_DIR", "/env/out")
	assert.Equal(t, "/env/out", ResolveDir("", "MINDBOT_LOG_DIR"))

	assert.Equal(t, DefaultDir, ResolveDir("", "MINDBOT_UNSET_DIR"))
	assert.Equal(t, DefaultDir, ResolveDir("", ""))
}

func TestLocalStoreCreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs", "nested")
	store := NewLocalStore(dir)

	require.NoError(t, store.Save("room-1", "transcript_room-1_20250314_150926.json", []byte(`{}`)))

	data, err := os.ReadFile(filepath.Join(dir, "transcript_room-1_20250314_150926.json"))
	require.NoError(t, err)
	assert.Equal(t, []byte(`{}`), data)
}

func TestWriterWritesThroughStore(t *testing.T) {
	store := NewInMemoryStore()
	ts := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

	w := NewWriter(store, func(o *WriterOptions) {
		o.Prefix = "mindbot"
		o.Now = func() time.Time { return ts }
	})

	name, err := w.Write("room-1", conversation(), NewHistoryExporter())
	require.NoError(t, err)
	assert.Equal(t, "mindbot_room-1_20250314_150926.json", name)

	data, err := store.Get("room-1", name)
	require.NoError(t, err)
	assert.Contains(t, string(data), "I am MindBot.")
}

func TestWriterPropagatesStoreError(t *testing.T) {
	// A file path as directory makes MkdirAll fail.
	f := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(f, []byte("x"), 0o644))

	w := NewWriter(NewLocalStore(filepath.Join(f, "logs")))

	_, err := w.Write("room-1", conversation(), NewAlpacaExporter())
	assert.Error(t, err)
}

func TestInMemoryStoreLifecycle(t *testing.T) {
	store := NewInMemoryStore()

	_, err := store.Get("room-1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save("room-1", "a.json", []byte("1")))
	require.NoError(t, store.Save("room-1", "b.jsonl", []byte("2")))

	names, err := store.List("room-1")
	require.NoError(t, err)
	assert.Len(t, names, 2)

	require.NoError(t, store.Delete("room-1", "a.json"))
	assert.ErrorIs(t, store.Delete("room-1", "a.json"), ErrNotFound)
}
