// Package config handles loading and validating the voicemesh worker
// configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mindbots/voicemesh/logging"
)

// Config is the root configuration for a voicemesh worker process.
type Config struct {
	Agent      AgentConfig      `mapstructure:"agent"`
	Room       RoomConfig       `mapstructure:"room"`
	Providers  ProvidersConfig  `mapstructure:"providers"`
	Transcript TranscriptConfig `mapstructure:"transcript"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// AgentConfig holds persona level settings.
type AgentConfig struct {
	Name            string        `mapstructure:"name"`
	ToolTimeout     time.Duration `mapstructure:"tool_timeout"`
	MaxHistory      int           `mapstructure:"max_history"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// RoomConfig holds the room server connection settings.
type RoomConfig struct {
	URL        string `mapstructure:"url"`
	Token      string `mapstructure:"token"`
	Name       string `mapstructure:"name"`
	SampleRate int    `mapstructure:"sample_rate"`
	Channels   int    `mapstructure:"channels"`
}

// ProvidersConfig configures the model provider backends.
type ProvidersConfig struct {
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
}

// OpenAIConfig holds OpenAI API settings, covering LLM, STT and TTS use.
type OpenAIConfig struct {
	APIKey    string `mapstructure:"api_key"`
	LLMModel  string `mapstructure:"llm_model"`
	STTModel  string `mapstructure:"stt_model"`
	TTSModel  string `mapstructure:"tts_model"`
	TTSVoice  string `mapstructure:"tts_voice"`
	SpeakRate string `mapstructure:"speak_rate"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// GeminiConfig holds Google Gemini API settings.
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// TranscriptConfig configures transcript export at shutdown.
type TranscriptConfig struct {
	Dir    string `mapstructure:"dir"`
	EnvKey string `mapstructure:"env_key"` // env var that overrides Dir when set
	Prefix string `mapstructure:"prefix"`
	Format string `mapstructure:"format"` // history or alpaca
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./voicemesh.yaml, ./configs/voicemesh.yaml,
// /etc/voicemesh/voicemesh.yaml.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("agent.name", "voicemesh-agent")
	v.SetDefault("agent.tool_timeout", 15*time.Second)
	v.SetDefault("agent.max_history", 20)
	v.SetDefault("agent.shutdown_timeout", 30*time.Second)
	v.SetDefault("room.url", "ws://localhost:7880/rtc")
	v.SetDefault("room.sample_rate", 16000)
	v.SetDefault("room.channels", 1)
	v.SetDefault("providers.openai.llm_model", "gpt-4o-mini")
	v.SetDefault("providers.openai.stt_model", "whisper-1")
	v.SetDefault("providers.openai.tts_model", "tts-1")
	v.SetDefault("providers.openai.tts_voice", "alloy")
	v.SetDefault("providers.anthropic.model", "claude-3-5-haiku-latest")
	v.SetDefault("providers.gemini.model", "gemini-2.0-flash")
	v.SetDefault("transcript.dir", "")
	v.SetDefault("transcript.prefix", "transcript")
	v.SetDefault("transcript.format", "history")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("voicemesh")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/voicemesh")
	}

	// Environment variables: VOICEMESH_ROOM_URL, VOICEMESH_AGENT_NAME, etc.
	v.SetEnvPrefix("VOICEMESH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The config file is optional; env vars and defaults are sufficient.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Resolve env var references in sensitive fields (e.g., "${OPENAI_API_KEY}")
	cfg.Room.Token = resolveEnvRef(cfg.Room.Token)
	cfg.Providers.OpenAI.APIKey = resolveEnvRef(cfg.Providers.OpenAI.APIKey)
	cfg.Providers.Anthropic.APIKey = resolveEnvRef(cfg.Providers.Anthropic.APIKey)
	cfg.Providers.Gemini.APIKey = resolveEnvRef(cfg.Providers.Gemini.APIKey)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Transcript.Format {
	case "", "history", "alpaca":
	default:
		return fmt.Errorf("config: unknown transcript format %q", c.Transcript.Format)
	}
	if c.Room.SampleRate < 0 || c.Room.Channels < 0 {
		return fmt.Errorf("config: negative audio format values")
	}
	return nil
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env
// var value.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		envKey := val[2 : len(val)-1]
		if envVal := os.Getenv(envKey); envVal != "" {
			return envVal
		}
	}
	return val
}

// SetupLogging builds the process logger from config.
func SetupLogging(cfg LoggingConfig) *logging.VoiceMeshLogger {
	lc := logging.DefaultLoggerConfig()
	lc.Format = cfg.Format

	switch strings.ToLower(cfg.Level) {
	case "debug":
		lc.Level = logging.LogLevelDebug
	case "warn":
		lc.Level = logging.LogLevelWarn
	case "error":
		lc.Level = logging.LogLevelError
	default:
		lc.Level = logging.LogLevelInfo
	}

	return logging.NewLogger(lc)
}
