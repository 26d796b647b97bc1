package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvKeys lists every environment variable the configuration honours.
var EnvKeys = []string{
	"SERVER_PORT",
	"CORS_ORIGINS",
	"STORE_BACKEND",
	"STORE_PATH",
	"REDIS_ADDR",
	"REDIS_PASSWORD",
	"REDIS_DB",
	"DEFAULT_PROVIDER",
	"DEFAULT_OPPONENT",
	"GEMINI_API_KEY",
	"GEMINI_MODEL",
	"REPLICATE_API_TOKEN",
	"GOOGLE_PROJECT_ID",
	"GOOGLE_CLIENT_EMAIL",
	"GOOGLE_PRIVATE_KEY",
	"SPEECH_POLL_INTERVAL",
	"SPEECH_MAX_ATTEMPTS",
}

// LoadEnv reads a .env file and returns its key-value pairs.
func LoadEnv(path string) (map[string]string, error) {
	return godotenv.Read(path)
}

// Environment merges the .env file at path with the process environment.
// Process variables win over the file.
func Environment(path string) map[string]string {
	env, err := LoadEnv(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Failed to read env file", "path", path, "error", err)
		}
		env = make(map[string]string)
	}
	for _, key := range EnvKeys {
		if val, ok := os.LookupEnv(key); ok {
			env[key] = val
		}
	}
	return env
}

// ApplyEnvOverrides updates the configuration based on environment variables.
func ApplyEnvOverrides(cfg *Config, env map[string]string) {
	// Server
	if val, ok := env["SERVER_PORT"]; ok {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Server.Port = port
		}
	}
	if val, ok := env["CORS_ORIGINS"]; ok {
		cfg.Server.CORSOrigins = splitList(val)
	}

	// Store
	if val, ok := env["STORE_BACKEND"]; ok && val != "" {
		cfg.Store.Backend = val
	}
	if val, ok := env["STORE_PATH"]; ok {
		cfg.Store.Path = val
	}
	if val, ok := env["REDIS_ADDR"]; ok {
		cfg.Store.RedisAddr = val
	}
	if val, ok := env["REDIS_PASSWORD"]; ok {
		cfg.Store.RedisPassword = val
	}
	if val, ok := env["REDIS_DB"]; ok {
		if db, err := strconv.Atoi(val); err == nil {
			cfg.Store.RedisDB = db
		}
	}

	// Defaults
	if val, ok := env["DEFAULT_PROVIDER"]; ok && val != "" {
		cfg.Defaults.Provider = val
	}
	if val, ok := env["DEFAULT_OPPONENT"]; ok && val != "" {
		cfg.Defaults.Opponent = val
	}

	// Gemini
	if val, ok := env["GEMINI_API_KEY"]; ok {
		cfg.Gemini.APIKey = val
	}
	if val, ok := env["GEMINI_MODEL"]; ok && val != "" {
		cfg.Gemini.Model = val
	}

	// Speech
	if val, ok := env["REPLICATE_API_TOKEN"]; ok {
		cfg.Speech.ReplicateToken = val
	}
	if val, ok := env["GOOGLE_PROJECT_ID"]; ok {
		cfg.Speech.Google.ProjectID = val
	}
	if val, ok := env["GOOGLE_CLIENT_EMAIL"]; ok {
		cfg.Speech.Google.ClientEmail = val
	}
	if val, ok := env["GOOGLE_PRIVATE_KEY"]; ok {
		cfg.Speech.Google.PrivateKey = val
	}
	if val, ok := env["SPEECH_POLL_INTERVAL"]; ok {
		if d, ok := parseDuration(val); ok {
			cfg.Speech.PollInterval = d
		}
	}
	if val, ok := env["SPEECH_MAX_ATTEMPTS"]; ok {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			cfg.Speech.MaxAttempts = n
		}
	}
}

// parseDuration accepts Go durations or a bare number of milliseconds.
func parseDuration(val string) (time.Duration, bool) {
	if ms, err := strconv.Atoi(val); err == nil {
		return time.Duration(ms) * time.Millisecond, true
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d, true
	}
	return 0, false
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
