package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string
	PublicBaseURL   string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	S3PublicBaseURL string
	SSEKMSKeyID     string

	DatabaseURL string

	LLMProvider       string
	LLMBaseURL        string
	LLMAPIKey         string
	LLMModel          string
	LLMTimeout        time.Duration
	LLMMaxTokens      int
	LLMJSONMode       bool
	LLMBreakerEnabled bool

	MaxPDFPages          int
	ProcessingStaleAfter time.Duration

	JWTSecret           string
	AdminToken          string
	StripeWebhookSecret string

	RateLimits RateLimits
}

// RateLimits holds per-group token bucket settings in requests per second.
type RateLimits struct {
	DefaultRate  float64
	DefaultBurst int
	UploadRate   float64
	UploadBurst  int
	ProcessRate  float64
	ProcessBurst int
	PollingRate  float64
	PollingBurst int
}

// Load reads configuration from environment variables with sensible defaults.
// Values may also come from a YAML file named by CONFIG_FILE; the environment wins.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	file, err := loadYAMLFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Printf("config: %v", err)
	}
	src := source{file: file}

	env := normalizeEnv(src.get("ENV", "dev"))
	dbURL := src.get("DATABASE_URL", "")
	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            src.get("PORT", "8080"),
		Env:             env,
		CORSAllowOrigin: splitAndTrim(src.get("CORS_ALLOW_ORIGINS", "http://localhost:3000")),
		PublicBaseURL:   strings.TrimRight(src.get("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),

		ObjectStoreType: normalizeStoreType(src.get("OBJECT_STORE", "local")),
		LocalStoreDir:   src.get("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       src.get("AWS_REGION", ""),
		S3Bucket:        src.get("S3_BUCKET", ""),
		S3Prefix:        src.get("S3_PREFIX", ""),
		S3PublicBaseURL: src.get("S3_PUBLIC_BASE_URL", ""),
		SSEKMSKeyID:     src.get("SSE_KMS_KEY_ID", ""),

		DatabaseURL: dbURL,

		LLMProvider:       normalizeProvider(src.get("LLM_PROVIDER", "openai")),
		LLMBaseURL:        src.get("LLM_BASE_URL", "https://api.venice.ai/api/v1"),
		LLMAPIKey:         src.get("LLM_API_KEY", ""),
		LLMModel:          src.get("LLM_MODEL", "qwen-2.5-vl-72b"),
		LLMTimeout:        time.Duration(src.int("LLM_TIMEOUT_SECONDS", 60)) * time.Second,
		LLMMaxTokens:      src.int("LLM_MAX_TOKENS", 2000),
		LLMJSONMode:       src.bool("LLM_JSON_MODE", true),
		LLMBreakerEnabled: src.bool("LLM_BREAKER_ENABLED", true),

		MaxPDFPages:          src.int("MAX_PDF_PAGES", 20),
		ProcessingStaleAfter: src.duration("PROCESSING_STALE_AFTER", 10*time.Minute),

		JWTSecret:           src.get("JWT_SECRET", ""),
		AdminToken:          src.get("ADMIN_TOKEN", ""),
		StripeWebhookSecret: src.get("STRIPE_WEBHOOK_SECRET", ""),

		RateLimits: RateLimits{
			DefaultRate:  src.float("RATE_LIMIT_DEFAULT_RPS", 5),
			DefaultBurst: src.int("RATE_LIMIT_DEFAULT_BURST", 20),
			UploadRate:   src.float("RATE_LIMIT_UPLOAD_RPS", 0.5),
			UploadBurst:  src.int("RATE_LIMIT_UPLOAD_BURST", 5),
			ProcessRate:  src.float("RATE_LIMIT_PROCESS_RPS", 0.5),
			ProcessBurst: src.int("RATE_LIMIT_PROCESS_BURST", 5),
			PollingRate:  src.float("RATE_LIMIT_POLLING_RPS", 10),
			PollingBurst: src.int("RATE_LIMIT_POLLING_BURST", 40),
		},
	}
}

// source resolves a key from the environment first, then the YAML file.
type source struct {
	file map[string]string
}

func (s source) get(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if val, ok := s.file[strings.ToLower(key)]; ok && val != "" {
		return val
	}
	return def
}

func (s source) int(key string, def int) int {
	raw := strings.TrimSpace(s.get(key, ""))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config %s invalid int: %v", key, err)
		return def
	}
	return v
}

func (s source) float(key string, def float64) float64 {
	raw := strings.TrimSpace(s.get(key, ""))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("config %s invalid float: %v", key, err)
		return def
	}
	return v
}

func (s source) bool(key string, def bool) bool {
	raw := strings.TrimSpace(s.get(key, ""))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("config %s invalid bool: %v", key, err)
		return def
	}
	return v
}

func (s source) duration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(s.get(key, ""))
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("config %s invalid duration: %v", key, err)
		return def
	}
	return v
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

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
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

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "openai", "venice":
		return "openai"
	default:
		return "none"
	}
}

// IsDevLike reports whether env tolerates missing infrastructure.
func (c Config) IsDevLike() bool {
	switch c.Env {
	case "dev", "local", "":
		return true
	default:
		return false
	}
}
