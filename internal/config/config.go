package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath    string
	OutputDir string

	GeminiAPIKey        string
	GeminiAPIEndpoint   string
	GeminiTimeoutMs     int
	GeminiMinIntervalMs int
	GeminiMaxTokens     int

	MatchFuzzyThreshold float64

	ImportMaxConcurrent int
	ImportSoftMaxFileMB int
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:    getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		OutputDir: getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiAPIEndpoint:   getEnv("GEMINI_API_ENDPOINT", "https://generativelanguage.googleapis.com/v1beta/models/gemini-pro:generateContent"),
		GeminiTimeoutMs:     getEnvInt("GEMINI_TIMEOUT_MS", 30000),
		GeminiMinIntervalMs: getEnvInt("GEMINI_MIN_INTERVAL_MS", 1000),
		GeminiMaxTokens:     getEnvInt("GEMINI_MAX_OUTPUT_TOKENS", 2048),

		MatchFuzzyThreshold: getEnvFloat("MATCH_FUZZY_THRESHOLD", 0.7),

		ImportMaxConcurrent: getEnvInt("IMPORT_MAX_CONCURRENT", 3),
		ImportSoftMaxFileMB: getEnvInt("IMPORT_SOFT_MAX_FILE_MB", 10),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(getEnv(key, ""))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
