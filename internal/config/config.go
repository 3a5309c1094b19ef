package config

import (
	"os"
	"strconv"
	"time"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for any S3-compatible backend
// (MinIO, AWS S3, Cloudflare R2, ...).
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL is an optional CDN/public base URL prepended to object keys
	// when building page URLs. When empty, URLs are derived from the endpoint.
	PublicURL string
}

// ConvertConfig holds page rendering and optimization settings.
type ConvertConfig struct {
	PDFDPI         float64
	ImageMaxWidth  int
	ImageMaxHeight int
	ImageQuality   int
	SlideWidth     int
	SlideHeight    int
	MaxFileSize    int64
}

// WorkerConfig holds background conversion pool settings.
type WorkerConfig struct {
	Count              int
	QueueSize          int
	UploadConcurrency  int
	StaleTaskAge       time.Duration
	StaleCheckInterval time.Duration
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables and passed explicitly to every
// component at construction time; nothing reads ambient process state later.
type AppConfig struct {
	AppHost  string
	Port     string
	Database DatabaseConfig
	MinIO    MinIOConfig
	Convert  ConvertConfig
	Worker   WorkerConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost: getEnv("APP_HOST", "localhost:8080"),
		Port:    getEnv("PORT", "8080"), // default only for non-sensitive value
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "flipbook-storage"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			PublicURL: getEnv("MINIO_PUBLIC_URL", ""),
		},
		Convert: ConvertConfig{
			PDFDPI:         getEnvFloat("PDF_DPI", 200),
			ImageMaxWidth:  getEnvInt("IMAGE_MAX_WIDTH", 1920),
			ImageMaxHeight: getEnvInt("IMAGE_MAX_HEIGHT", 1080),
			ImageQuality:   getEnvInt("IMAGE_QUALITY", 85),
			SlideWidth:     getEnvInt("SLIDE_WIDTH", 1920),
			SlideHeight:    getEnvInt("SLIDE_HEIGHT", 1080),
			MaxFileSize:    getEnvInt64("MAX_FILE_SIZE", 500*1024*1024),
		},
		Worker: WorkerConfig{
			Count:              getEnvInt("WORKER_COUNT", 4),
			QueueSize:          getEnvInt("WORKER_QUEUE_SIZE", 100),
			UploadConcurrency:  getEnvInt("UPLOAD_CONCURRENCY", 10),
			StaleTaskAge:       getEnvDuration("STALE_TASK_AGE", 30*time.Minute),
			StaleCheckInterval: getEnvDuration("STALE_CHECK_INTERVAL", 5*time.Minute),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}
