package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration. It is built once at process start and passed by value.
type Config struct {
	Env             string
	Port            string
	LogLevel        string
	CORSAllowOrigin []string
	MaxBodyBytes    int64

	TemplatesDir string
	GeneratedDir string
	FrontendDir  string

	AIProvider   string
	GeminiAPIKey string
	GeminiModel  string
	OpenAIAPIKey string
	OpenAIModel  string
	AITimeout    time.Duration

	ConvertTimeout time.Duration
	SofficeBin     string
	Docx2PDFBin    string

	DatabaseURL string

	ArchiveStore      string
	ArchiveDir        string
	AWSRegion         string
	S3Bucket          string
	S3Prefix          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string

	RetentionMaxAge   time.Duration
	RetentionInterval time.Duration

	RateLimitRPS      float64
	RateLimitBurst    int
	RateLimitRedisURL string

	// EnvFiles lists the .env files Load read, for the startup log.
	EnvFiles []string
}

var defaults = map[string]any{
	"ENV":                  "dev",
	"PORT":                 "8000",
	"LOG_LEVEL":            "info",
	"CORS_ALLOW_ORIGINS":   "*",
	"MAX_BODY_BYTES":       1 << 20,
	"TEMPLATES_DIR":        "./app/templates",
	"GENERATED_DIR":        "./generated",
	"FRONTEND_DIR":         "./frontend",
	"AI_PROVIDER":          "gemini",
	"GEMINI_MODEL":         "gemini-2.5-flash",
	"OPENAI_MODEL":         "gpt-4o-mini",
	"AI_TIMEOUT":           "120s",
	"CONVERT_TIMEOUT":      "120s",
	"SOFFICE_BIN":          "soffice",
	"DOCX2PDF_BIN":         "docx2pdf",
	"ARCHIVE_STORE":        "none",
	"ARCHIVE_DIR":          "./archive",
	"RETENTION_MAX_AGE":    "0s",
	"RETENTION_INTERVAL":   "10m",
	"RATE_LIMIT_RPS":       0.0,
	"RATE_LIMIT_BURST":     10,
	"RATE_LIMIT_REDIS_URL": "",
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	envFiles := loadEnvFiles(".env", "cmd/.env", "backend/.env")

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	if onLambda() {
		// Only /tmp is writable inside a Lambda container.
		v.SetDefault("GENERATED_DIR", filepath.Join(os.TempDir(), "generated"))
		v.SetDefault("ARCHIVE_DIR", filepath.Join(os.TempDir(), "archive"))
	}
	cfg := FromViper(v)
	cfg.EnvFiles = envFiles
	return cfg
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) Config {
	return Config{
		Env:             normalizeEnv(v.GetString("ENV")),
		Port:            v.GetString("PORT"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		CORSAllowOrigin: splitAndTrim(v.GetString("CORS_ALLOW_ORIGINS")),
		MaxBodyBytes:    v.GetInt64("MAX_BODY_BYTES"),

		TemplatesDir: v.GetString("TEMPLATES_DIR"),
		GeneratedDir: v.GetString("GENERATED_DIR"),
		FrontendDir:  v.GetString("FRONTEND_DIR"),

		AIProvider:   normalizeProvider(v.GetString("AI_PROVIDER")),
		GeminiAPIKey: v.GetString("GEMINI_API_KEY"),
		GeminiModel:  v.GetString("GEMINI_MODEL"),
		OpenAIAPIKey: v.GetString("OPENAI_API_KEY"),
		OpenAIModel:  v.GetString("OPENAI_MODEL"),
		AITimeout:    v.GetDuration("AI_TIMEOUT"),

		ConvertTimeout: v.GetDuration("CONVERT_TIMEOUT"),
		SofficeBin:     v.GetString("SOFFICE_BIN"),
		Docx2PDFBin:    v.GetString("DOCX2PDF_BIN"),

		DatabaseURL: v.GetString("DATABASE_URL"),

		ArchiveStore:      normalizeStoreType(v.GetString("ARCHIVE_STORE")),
		ArchiveDir:        v.GetString("ARCHIVE_DIR"),
		AWSRegion:         v.GetString("AWS_REGION"),
		S3Bucket:          v.GetString("S3_BUCKET"),
		S3Prefix:          v.GetString("S3_PREFIX"),
		S3Endpoint:        v.GetString("S3_ENDPOINT"),
		S3AccessKeyID:     v.GetString("S3_ACCESS_KEY_ID"),
		S3SecretAccessKey: v.GetString("S3_SECRET_ACCESS_KEY"),

		RetentionMaxAge:   v.GetDuration("RETENTION_MAX_AGE"),
		RetentionInterval: v.GetDuration("RETENTION_INTERVAL"),

		RateLimitRPS:      v.GetFloat64("RATE_LIMIT_RPS"),
		RateLimitBurst:    v.GetInt("RATE_LIMIT_BURST"),
		RateLimitRedisURL: v.GetString("RATE_LIMIT_REDIS_URL"),
	}
}

func onLambda() bool {
	return strings.TrimSpace(os.Getenv("AWS_LAMBDA_FUNCTION_NAME")) != ""
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

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "openai":
		return "openai"
	case "none", "off", "":
		return "none"
	default:
		return "gemini"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "local":
		return "local"
	default:
		return "none"
	}
}
