package common

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	OCR      OCRConfig
	LLM      LLMConfig
	Log      LogConfig
	Queue    QueueConfig
	Ingest   IngestConfig
}

// DatabaseConfig holds database-related configuration.
// A DSN starting with postgres:// or postgresql:// selects Postgres, anything
// else is treated as a SQLite path (":memory:" for an in-memory store).
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr        string
	GRPCAddr        string
	BodyLimit       string
	ShutdownTimeout time.Duration
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Tesseract           string
	TesseractEmbedded   bool // use the linked libtesseract (build tag gosseract)
	TesseractLang       string
	TessdataDir         string
	EnableTSVConfidence bool
	EasyOCRURL          string
	PaddleURL           string
	DocTRURL            string
	Languages           []string
	Timeout             time.Duration
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Provider     string // inference | openai
	BaseURL      string
	APIKey       string
	Model        string
	Instruction  string
	MaxNewTokens int
	Temperature  float32
	TopK         int
	Timeout      time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string
	Format     string // text | json
	File       string // rotate into this file when set
	MaxSizeMB  int
	MaxBackups int
}

// IngestConfig drives the inbox watcher; an empty WatchDir disables it
type IngestConfig struct {
	WatchDir    string
	Engine      string
	Debounce    time.Duration
	InitialScan bool
}

// QueueConfig sizes the background extraction worker pool
type QueueConfig struct {
	Workers        int
	Size           int
	ProcessTimeout time.Duration
}

// LoadConfig loads configuration from environment variables.
// Values from a .env file in the working directory are applied first;
// variables already set in the environment win.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ":memory:"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			HTTPAddr:        getEnv("HTTP_ADDR", ":5000"),
			GRPCAddr:        getEnv("GRPC_ADDR", ":8080"),
			BodyLimit:       getEnv("HTTP_BODY_LIMIT", "20M"),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		OCR: OCRConfig{
			Tesseract:           getEnv("TESSERACT_BIN", "tesseract"),
			TesseractEmbedded:   getEnvAsBool("TESSERACT_EMBEDDED", false),
			TesseractLang:       getEnv("TESSERACT_LANG", "eng"),
			TessdataDir:         getEnv("TESSDATA_PREFIX", ""),
			EnableTSVConfidence: getEnvAsBool("TESSERACT_TSV_CONFIDENCE", true),
			EasyOCRURL:          getEnv("EASYOCR_URL", ""),
			PaddleURL:           getEnv("PADDLEOCR_URL", ""),
			DocTRURL:            getEnv("DOCTR_URL", ""),
			Languages:           getEnvAsList("OCR_LANGUAGES", []string{"en"}),
			Timeout:             getEnvAsDuration("OCR_TIMEOUT", 60*time.Second),
		},
		LLM: LLMConfig{
			Provider:     strings.ToLower(getEnv("LLM_PROVIDER", "inference")),
			BaseURL:      getEnv("LLM_BASE_URL", ""),
			APIKey:       getEnv("LLM_API_KEY", ""),
			Model:        getEnv("LLM_MODEL", "mistral-7b-invoice-lora"),
			Instruction:  getEnv("LLM_INSTRUCTION", ""),
			MaxNewTokens: getEnvAsInt("LLM_MAX_NEW_TOKENS", 1024),
			Temperature:  getEnvAsFloat32("LLM_TEMPERATURE", 0.7),
			TopK:         getEnvAsInt("LLM_TOP_K", 50),
			Timeout:      getEnvAsDuration("LLM_TIMEOUT", 120*time.Second),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "text"),
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", 50),
			MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 3),
		},
		Queue: QueueConfig{
			Workers:        getEnvAsInt("QUEUE_WORKERS", 4),
			Size:           getEnvAsInt("QUEUE_SIZE", 256),
			ProcessTimeout: getEnvAsDuration("QUEUE_PROCESS_TIMEOUT", 3*time.Minute),
		},
		Ingest: IngestConfig{
			WatchDir:    getEnv("INGEST_WATCH_DIR", ""),
			Engine:      getEnv("INGEST_ENGINE", "tesseract"),
			Debounce:    getEnvAsDuration("INGEST_DEBOUNCE", 500*time.Millisecond),
			InitialScan: getEnvAsBool("INGEST_INITIAL_SCAN", true),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// IsPostgres reports whether the DSN points at Postgres rather than SQLite
func (d DatabaseConfig) IsPostgres() bool {
	return strings.HasPrefix(d.DSN, "postgres://") || strings.HasPrefix(d.DSN, "postgresql://")
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Queue.Workers <= 0 {
		return NewAppError("CONFIG_ERROR", "QUEUE_WORKERS must be positive", ErrInvalidInput)
	}
	switch c.LLM.Provider {
	case "inference", "openai":
	default:
		return NewAppError("CONFIG_ERROR", "LLM_PROVIDER must be inference or openai", ErrInvalidInput)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return NewAppError("CONFIG_ERROR", "LOG_FORMAT must be text or json", ErrInvalidInput)
	}
	return nil
}
