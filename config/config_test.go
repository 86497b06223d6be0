package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err) // explicit file must exist

	cfg, err = Load("")
	require.NoError(t, err)

	assert.Equal(t, "voicemesh-agent", cfg.Agent.Name)
	assert.Equal(t, 15*time.Second, cfg.Agent.ToolTimeout)
	assert.Equal(t, 16000, cfg.Room.SampleRate)
	assert.Equal(t, "whisper-1", cfg.Providers.OpenAI.STTModel)
	assert.Equal(t, "history", cfg.Transcript.Format)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voicemesh.yaml")
	data := []byte(`
agent:
  name: Mindbot
room:
  url: ws://media.internal:7880/rtc
  name: lobby
transcript:
  format: alpaca
  prefix: finetune
logging:
  level: debug
  format: text
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Mindbot", cfg.Agent.Name)
	assert.Equal(t, "ws://media.internal:7880/rtc", cfg.Room.URL)
	assert.Equal(t, "lobby", cfg.Room.Name)
	assert.Equal(t, "alpaca", cfg.Transcript.Format)
	assert.Equal(t, "finetune", cfg.Transcript.Prefix)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Defaults survive partial files.
	assert.Equal(t, 20, cfg.Agent.MaxHistory)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("VOICEMESH_ROOM_NAME", "env-room")
	t.Setenv("VOICEMESH_AGENT_NAME", "EnvBot")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "env-room", cfg.Room.Name)
	assert.Equal(t, "EnvBot", cfg.Agent.Name)
}

func TestSecretEnvRefResolution(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voicemesh.yaml")
	data := []byte(`
room:
  token: ${VOICEMESH_TEST_TOKEN}
providers:
  openai:
    api_key: ${VOICEMESH_TEST_OPENAI_KEY}
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	t.Setenv("VOICEMESH_TEST_TOKEN", "tok-123")
	t.Setenv("VOICEMESH_TEST_OPENAI_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tok-123", cfg.Room.Token)
	assert.Equal(t, "sk-test", cfg.Providers.OpenAI.APIKey)
}

func TestValidateRejectsUnknownTranscriptFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voicemesh.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transcript:\n  format: csv\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
