package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr          string
	CORSOrigin    string
	Environment   string
	DatabaseURL   string
	MigrationsDir string
	// Local store
	DataDir         string
	LocalQuotaBytes int
	// Redis relays content-change events between API instances
	RedisURL string
	// MinIO Configuration
	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool
	MinIOPublicURL string
	// Search
	MeiliURL       string
	MeiliMasterKey string
	// SMTP Configuration
	SMTPHost        string
	SMTPPort        string
	SMTPUsername    string
	SMTPPassword    string
	SMTPFrom        string
	SMTPFromName    string
	ContactNotifyTo string
	// Admin
	AdminUsername     string
	AdminPassword     string
	AdminPasswordHash string
	TokenSecret       string
	TokenTTL          time.Duration
}

func Load() Config {
	return Config{
		Addr:            ":" + getenv("BACKEND_PORT", "5000"),
		CORSOrigin:      getenv("FRONTEND_URL", "http://localhost:3000"),
		Environment:     getenv("APP_ENV", "development"),
		DatabaseURL:     getenv("DATABASE_URL", ""),
		MigrationsDir:   getenv("SITE_MIGRATIONS_DIR", "./db/migrations"),
		DataDir:         getenv("SITE_DATA_DIR", "./data"),
		LocalQuotaBytes: getenvInt("SITE_LOCAL_QUOTA_BYTES", 10*1024*1024),
		RedisURL:        getenv("REDIS_URL", ""),
		MinIOEndpoint:   getenv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:  getenv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:  getenv("MINIO_SECRET_KEY", ""),
		MinIOBucket:     getenv("MINIO_BUCKET", "admin-uploads"),
		MinIOUseSSL:     getenvBool("MINIO_USE_SSL", false),
		MinIOPublicURL:  getenv("MINIO_PUBLIC_URL", ""),
		MeiliURL:        getenv("MEILI_URL", ""),
		MeiliMasterKey:  getenv("MEILI_MASTER_KEY", ""),
		// SMTP - empty by default, owner notifications disabled if not configured
		SMTPHost:        getenv("SMTP_HOST", ""),
		SMTPPort:        getenv("SMTP_PORT", "587"),
		SMTPUsername:    getenv("SMTP_USERNAME", ""),
		SMTPPassword:    getenv("SMTP_PASSWORD", ""),
		SMTPFrom:        getenv("SMTP_FROM", ""),
		SMTPFromName:    getenv("SMTP_FROM_NAME", "Sitio web"),
		ContactNotifyTo: getenv("CONTACT_NOTIFY_TO", ""),
		AdminUsername:     getenv("ADMIN_USERNAME", "admin"),
		AdminPassword:     getenv("ADMIN_PASSWORD", "admin123"),
		AdminPasswordHash: getenv("ADMIN_PASSWORD_HASH", ""),
		TokenSecret:       getenv("SITE_TOKEN_SECRET", "authorsite-dev-secret"),
		TokenTTL:          time.Duration(getenvInt("SITE_TOKEN_TTL_SECONDS", 43200)) * time.Second,
	}
}

// RemoteConfigured reports whether a database is configured. Without one the
// content and contact stores live in DataDir.
func (c Config) RemoteConfigured() bool {
	return strings.TrimSpace(c.DatabaseURL) != ""
}

func (c Config) MinIOConfigured() bool {
	return c.MinIOEndpoint != "" && c.MinIOAccessKey != "" && c.MinIOSecretKey != ""
}

func (c Config) SMTPConfigured() bool {
	return c.SMTPHost != "" && c.SMTPPort != "" && c.SMTPFrom != ""
}

// ShowErrorDetails gates the optional detail text of 500 responses.
func (c Config) ShowErrorDetails() bool {
	return c.Environment != "production"
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
