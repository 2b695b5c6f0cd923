package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Audit contains secondary-store parameters shared by the server and the
// retention sidecar.
type Audit struct {
	ElasticsearchAddr string
	AuditIndex        string
}

// Server holds configuration for the API + scheduler binary.
type Server struct {
	Audit
	BindAddr     string
	PostgresDSN  string
	APISecretKey string
	CronSpec     string
	OpenAIAPIKey string
	OpenAIModel  string
	WebhookURL   string
	KafkaBrokers []string
	KafkaTopic   string
	DefaultPage  int
	MaxPage      int
}

// Retention configures the audit-index cleanup loop.
type Retention struct {
	Audit
	Interval  time.Duration
	MaxAge    time.Duration
	BatchSize int
}

// LoadServer builds a Server config from environment variables.
func LoadServer() (*Server, error) {
	c := &Server{
		Audit: Audit{
			ElasticsearchAddr: getEnv("AUDIT_ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
			AuditIndex:        getEnv("AUDIT_INDEX", "threat_audit"),
		},
		BindAddr:     getEnv("SERVER_BIND_ADDR", "0.0.0.0:8000"),
		PostgresDSN:  getEnv("DATABASE_URL", ""),
		APISecretKey: getEnv("API_SECRET_KEY", ""),
		CronSpec:     getEnv("DISCOVERY_CRON", "10 5 * * *"),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", ""),
		WebhookURL:   getEnv("NOTIFY_WEBHOOK_URL", ""),
		KafkaBrokers: splitAndTrim(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "threats_created"),
		DefaultPage:  getInt("API_PAGE_SIZE", 100),
		MaxPage:      getInt("API_MAX_PAGE_SIZE", 500),
	}

	if c.PostgresDSN == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set")
	}
	if c.APISecretKey == "" {
		return nil, fmt.Errorf("API_SECRET_KEY must be set")
	}
	if c.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY must be set")
	}
	if c.DefaultPage <= 0 {
		return nil, fmt.Errorf("API_PAGE_SIZE must be positive")
	}
	if c.MaxPage <= 0 {
		return nil, fmt.Errorf("API_MAX_PAGE_SIZE must be positive")
	}
	if c.DefaultPage > c.MaxPage {
		return nil, fmt.Errorf("API_PAGE_SIZE cannot exceed API_MAX_PAGE_SIZE")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return nil, fmt.Errorf("KAFKA_TOPIC must be set when KAFKA_BROKERS is configured")
	}

	return c, nil
}

// LoadRetention builds a Retention config from environment variables.
func LoadRetention() (*Retention, error) {
	c := &Retention{
		Audit: Audit{
			ElasticsearchAddr: getEnv("AUDIT_ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
			AuditIndex:        getEnv("AUDIT_INDEX", "threat_audit"),
		},
		Interval:  getDuration("RETENTION_INTERVAL", "24h"),
		MaxAge:    getDuration("RETENTION_MAX_AGE", "2160h"),
		BatchSize: getInt("RETENTION_BATCH_SIZE", 500),
	}

	if c.MaxAge <= 0 {
		return nil, fmt.Errorf("RETENTION_MAX_AGE must be positive")
	}
	if c.Interval <= 0 {
		return nil, fmt.Errorf("RETENTION_INTERVAL must be positive")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("RETENTION_BATCH_SIZE must be positive")
	}

	return c, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
