package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultAPIBaseURL = "http://localhost:5000/api"

// Config holds application configuration.
type Config struct {
	Port                 string
	APIBaseURL           string
	APITimeout           time.Duration
	CORSAllowOrigin      []string
	DatabaseURL          string
	SessionStore         string
	SQLitePath           string
	ObjectStoreType      string
	LocalStoreDir        string
	AWSRegion            string
	S3Bucket             string
	S3Prefix             string
	SSEKMSKeyID          string
	CookieSecure         bool
	WorkspaceIdleTimeout time.Duration
	LoginRatePerMinute   float64
	LoginBurst           int
	Env                  string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:                 getEnv("PORT", "8080"),
		APIBaseURL:           normalizeBaseURL(getEnv("API_URL", defaultAPIBaseURL)),
		APITimeout:           getDuration("API_TIMEOUT", 30*time.Second),
		CORSAllowOrigin:      splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000")),
		DatabaseURL:          dbURL,
		SessionStore:         normalizeSessionStore(getEnv("SESSION_STORE", ""), dbURL),
		SQLitePath:           getEnv("SESSION_SQLITE_PATH", "./data/sessions.db"),
		ObjectStoreType:      normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:        getEnv("LOCAL_STORE_DIR", "./data/exports"),
		AWSRegion:            getEnv("AWS_REGION", ""),
		S3Bucket:             getEnv("S3_BUCKET", ""),
		S3Prefix:             getEnv("S3_PREFIX", "chart-exports/"),
		SSEKMSKeyID:          getEnv("SSE_KMS_KEY_ID", ""),
		CookieSecure:         env == "production",
		WorkspaceIdleTimeout: getDuration("WORKSPACE_IDLE_TIMEOUT", 30*time.Minute),
		LoginRatePerMinute:   getFloat("LOGIN_RATE_PER_MINUTE", 10),
		LoginBurst:           getInt("LOGIN_BURST", 5),
		Env:                  env,
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil || val <= 0 {
		log.Printf("config %s invalid duration %q, using %s", key, raw, def)
		return def
	}
	return val
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config %s invalid int %q, using %d", key, raw, def)
		return def
	}
	return val
}

func getFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("config %s invalid number %q, using %v", key, raw, def)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeBaseURL(raw string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(raw), "/")
	if trimmed == "" {
		return defaultAPIBaseURL
	}
	return trimmed
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

// normalizeSessionStore picks the durable token store. Postgres wins when a
// DATABASE_URL is configured and nothing else was asked for.
func normalizeSessionStore(raw, dbURL string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "postgres", "pg":
		return "postgres"
	case "sqlite":
		return "sqlite"
	case "memory":
		return "memory"
	}
	if strings.TrimSpace(dbURL) != "" {
		return "postgres"
	}
	return "memory"
}
