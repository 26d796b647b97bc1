// Package config handles application configuration.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alienxp03/rhetor/internal/core"
	"github.com/alienxp03/rhetor/internal/kv"
	"github.com/alienxp03/rhetor/internal/persona"
	"github.com/alienxp03/rhetor/internal/provider"
	"github.com/alienxp03/rhetor/internal/speech"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Defaults DefaultsConfig `yaml:"defaults"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	Speech   SpeechConfig   `yaml:"speech"`
}

// ServerConfig holds server settings.
type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins,omitempty"`
}

// StoreConfig selects and configures the key-value backend.
type StoreConfig struct {
	Backend       string `yaml:"backend"`
	Path          string `yaml:"path,omitempty"`
	RedisAddr     string `yaml:"redis_addr,omitempty"`
	RedisPassword string `yaml:"redis_password,omitempty"`
	RedisDB       int    `yaml:"redis_db,omitempty"`
}

// DefaultsConfig holds default settings.
type DefaultsConfig struct {
	Provider        string        `yaml:"provider"`
	Opponent        string        `yaml:"opponent"`
	TurnCount       int           `yaml:"turn_count"`
	AnalysisTimeout time.Duration `yaml:"analysis_timeout"`
}

// GeminiConfig holds the Gemini API settings.
type GeminiConfig struct {
	APIKey      string        `yaml:"api_key,omitempty"`
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float32       `yaml:"temperature,omitempty"`
}

// SpeechConfig holds the Replicate and Google Cloud speech settings.
type SpeechConfig struct {
	ReplicateToken string        `yaml:"replicate_token,omitempty"`
	WhisperModel   string        `yaml:"whisper_model"`
	KokoroModel    string        `yaml:"kokoro_model"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	MaxAttempts    int           `yaml:"max_attempts"`
	Google         GoogleConfig  `yaml:"google,omitempty"`
}

// GoogleConfig holds service account fields for Cloud Text-to-Speech.
type GoogleConfig struct {
	ProjectID   string `yaml:"project_id,omitempty"`
	ClientEmail string `yaml:"client_email,omitempty"`
	PrivateKey  string `yaml:"private_key,omitempty"`
}

// Credentials converts the config into speech credentials.
func (g GoogleConfig) Credentials() speech.GoogleCredentials {
	return speech.GoogleCredentials{
		ProjectID:   g.ProjectID,
		ClientEmail: g.ClientEmail,
		PrivateKey:  g.PrivateKey,
	}
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8182,
		},
		Store: StoreConfig{
			Backend: BackendSQLite,
		},
		Defaults: DefaultsConfig{
			Provider:        "gemini",
			Opponent:        persona.Default().ID,
			TurnCount:       core.DefaultTurnCount,
			AnalysisTimeout: 3 * time.Minute,
		},
		Gemini: GeminiConfig{
			Model:   provider.DefaultGeminiModel,
			Timeout: 2 * time.Minute,
		},
		Speech: SpeechConfig{
			WhisperModel: speech.DefaultWhisperModel,
			KokoroModel:  speech.DefaultKokoroModel,
			PollInterval: speech.DefaultPollInterval,
			MaxAttempts:  speech.DefaultMaxAttempts,
		},
	}
}

// Load loads configuration from the default path, then applies .env and
// process environment overrides.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigPath())
}

// LoadFrom loads configuration from a specific path.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file, proceed with defaults
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	ApplyEnvOverrides(cfg, Environment(".env"))
	return cfg, nil
}

// Save saves the configuration to the default path.
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigPath())
}

// SaveTo saves the configuration to a specific path.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Secrets may be present, keep the file private.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// OpenStore opens the configured key-value backend.
func (c *Config) OpenStore(ctx context.Context) (kv.Store, error) {
	switch strings.ToLower(c.Store.Backend) {
	case BackendMemory:
		return kv.NewMemoryStore(), nil
	case BackendSQLite, "":
		path := c.Store.Path
		if path == "" {
			path = kv.DefaultDBPath()
		}
		return kv.NewSQLiteStore(path)
	case BackendRedis:
		if c.Store.RedisAddr == "" {
			return nil, fmt.Errorf("redis backend requires an address")
		}
		return kv.NewRedisStore(ctx, kv.RedisOptions{
			Addr:     c.Store.RedisAddr,
			Password: c.Store.RedisPassword,
			DB:       c.Store.RedisDB,
		})
	default:
		return nil, fmt.Errorf("unknown store backend: %s", c.Store.Backend)
	}
}

// CreateRegistry creates a provider registry from this configuration.
func (c *Config) CreateRegistry(ctx context.Context) (*provider.Registry, error) {
	registry := provider.NewRegistry()

	gemini, err := provider.NewGeminiProvider(ctx, provider.GeminiOptions{
		APIKey:      c.Gemini.APIKey,
		Model:       c.Gemini.Model,
		Timeout:     c.Gemini.Timeout,
		Temperature: c.Gemini.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create provider gemini: %w", err)
	}
	registry.Register(gemini)

	if c.Defaults.Provider == "mock" {
		registry.Register(provider.NewMockProvider())
	}

	return registry, nil
}

// CreateProvider returns the preferred available provider.
func (c *Config) CreateProvider(ctx context.Context) (provider.Provider, error) {
	registry, err := c.CreateRegistry(ctx)
	if err != nil {
		return nil, err
	}
	return registry.First(c.Defaults.Provider)
}

// ReplicateClient builds a Replicate client, or returns
// speech.ErrMissingCredentials when no token is configured.
func (c *Config) ReplicateClient() (*speech.ReplicateClient, error) {
	return speech.NewReplicateClient(c.Speech.ReplicateToken,
		speech.WithPolling(c.Speech.PollInterval, c.Speech.MaxAttempts))
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "rhetor.yaml"
	}
	return filepath.Join(home, ".rhetor", "config.yaml")
}

// GenerateExample generates an example configuration file.
func GenerateExample() string {
	example := `# rhetor configuration file
# Place this file at ~/.rhetor/config.yaml
# Secrets are better kept in .env or the environment (see below).

server:
  port: 8182
  cors_origins: ["http://localhost:5173"]

store:
  backend: sqlite           # memory, sqlite or redis
  path: ""                  # sqlite file (default: ~/.rhetor/rhetor.db)
  redis_addr: ""            # e.g. localhost:6379
  redis_db: 0

defaults:
  provider: gemini          # gemini or mock
  opponent: socrates
  turn_count: 3             # 3 or 5 turns per topic
  analysis_timeout: 3m

gemini:
  model: gemini-2.5-flash
  timeout: 2m
  temperature: 0.8

speech:
  whisper_model: openai/whisper
  kokoro_model: jaaari/kokoro-82m
  poll_interval: 1s
  max_attempts: 60

# Environment overrides:
#   GEMINI_API_KEY, GEMINI_MODEL, REPLICATE_API_TOKEN,
#   GOOGLE_PROJECT_ID, GOOGLE_CLIENT_EMAIL, GOOGLE_PRIVATE_KEY,
#   STORE_BACKEND, STORE_PATH, REDIS_ADDR, REDIS_PASSWORD, REDIS_DB,
#   SERVER_PORT, CORS_ORIGINS, SPEECH_POLL_INTERVAL, SPEECH_MAX_ATTEMPTS
`
	return example
}
