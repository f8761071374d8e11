// Package config loads the relay's configuration.
//
// Values come from three layers, each overriding the previous one:
// built-in defaults, an optional YAML file, then environment variables.
// Command-line flags are applied by the caller on top of the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level relay configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Engine  EngineConfig  `yaml:"engine"`
	Relay   RelayConfig   `yaml:"relay"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// StorageConfig configures where run history and transcripts live.
type StorageConfig struct {
	DBPath        string `yaml:"db_path"`
	TranscriptDir string `yaml:"transcript_dir"`
}

// EngineConfig describes the supervised engine binary and its arguments.
type EngineConfig struct {
	// Name is used in heartbeat text, e.g. "Moshi engine is active...".
	Name      string `yaml:"name"`
	Binary    string `yaml:"binary"`
	ModelDir  string `yaml:"model_dir"`
	VoicePath string `yaml:"voice_path"`

	// ContextSize is the engine's context window (-c).
	ContextSize int `yaml:"context_size"`

	// Temperature is passed as -t. Thread count uses --threads.
	Temperature float64 `yaml:"temperature"`
	Threads     int     `yaml:"threads"`

	// GGUFCache adds -g.
	GGUFCache bool     `yaml:"gguf_cache"`
	ExtraArgs []string `yaml:"extra_args"`
}

// RelayConfig tunes the output relay.
type RelayConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	HistoryLines      int           `yaml:"history_lines"`
	QueueSize         int           `yaml:"queue_size"`
	DedupePeek        bool          `yaml:"dedupe_peek"`
	ReaderGrace       time.Duration `yaml:"reader_grace"`
	EchoOutput        bool          `yaml:"echo_output"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: "8000",
		},
		Storage: StorageConfig{
			DBPath:        filepath.Join("data", "runs.db"),
			TranscriptDir: filepath.Join("data", "transcripts"),
		},
		Engine: EngineConfig{
			Name:        "Moshi",
			Binary:      filepath.Join("moshi_bin", "moshi-sts"),
			ModelDir:    filepath.Join("models", "m"),
			VoicePath:   filepath.Join("models", "m", "voice.gguf"),
			ContextSize: 2500,
			Temperature: 0.5,
			Threads:     8,
			GGUFCache:   true,
		},
		Relay: RelayConfig{
			HeartbeatInterval: 5 * time.Second,
			HistoryLines:      200,
			QueueSize:         1024,
			DedupePeek:        false,
			ReaderGrace:       2 * time.Second,
			EchoOutput:        true,
		},
	}
}

// Load reads the YAML file at path over the defaults and applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.Host = getEnv("HOST", c.Server.Host)
	c.Storage.DBPath = getEnv("DB_PATH", c.Storage.DBPath)
	c.Storage.TranscriptDir = getEnv("TRANSCRIPT_DIR", c.Storage.TranscriptDir)
	c.Engine.Binary = getEnv("ENGINE_BIN", c.Engine.Binary)
	c.Engine.ModelDir = getEnv("ENGINE_MODEL_DIR", c.Engine.ModelDir)
	c.Engine.VoicePath = getEnv("ENGINE_VOICE", c.Engine.VoicePath)
}

// Validate checks that sizes and intervals are usable.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	} else if _, err := strconv.Atoi(c.Server.Port); err != nil {
		errs = append(errs, fmt.Errorf("server.port %q is not a number", c.Server.Port))
	}
	if c.Engine.Binary == "" {
		errs = append(errs, errors.New("engine.binary is required"))
	}
	if c.Engine.ContextSize <= 0 {
		errs = append(errs, fmt.Errorf("engine.context_size must be positive, got %d", c.Engine.ContextSize))
	}
	if c.Engine.Threads <= 0 {
		errs = append(errs, fmt.Errorf("engine.threads must be positive, got %d", c.Engine.Threads))
	}
	if c.Relay.HeartbeatInterval <= 0 {
		errs = append(errs, fmt.Errorf("relay.heartbeat_interval must be positive, got %s", c.Relay.HeartbeatInterval))
	}
	if c.Relay.HistoryLines < 0 {
		errs = append(errs, fmt.Errorf("relay.history_lines must not be negative, got %d", c.Relay.HistoryLines))
	}
	if c.Relay.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("relay.queue_size must be positive, got %d", c.Relay.QueueSize))
	}
	if c.Relay.ReaderGrace < 0 {
		errs = append(errs, fmt.Errorf("relay.reader_grace must not be negative, got %s", c.Relay.ReaderGrace))
	}

	return errors.Join(errs...)
}

// Args assembles the engine's argument vector. Paths are converted to the
// host's separator since the engine runs natively on Windows as well.
func (e EngineConfig) Args() []string {
	args := []string{
		"-m", filepath.FromSlash(e.ModelDir),
		"-c", strconv.Itoa(e.ContextSize),
	}
	if e.VoicePath != "" {
		args = append(args, "-v", filepath.FromSlash(e.VoicePath))
	}
	if e.GGUFCache {
		args = append(args, "-g")
	}
	args = append(args,
		"-t", strconv.FormatFloat(e.Temperature, 'f', -1, 64),
		"--threads", strconv.Itoa(e.Threads),
	)
	return append(args, e.ExtraArgs...)
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
