// Package config loads process configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"mysql-dbdriver/internal/driver"
	"mysql-dbdriver/internal/native"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	// AppEnv is the running environment (development/production).
	AppEnv string

	// DBDialect selects the native client: mysql, postgres or sqlite.
	DBDialect string
	// DBDatasource is "host:port:database".
	DBDatasource string
	DBUser       string
	DBPassword   string
	// DBSerializeNative holds a process-wide lock around connect and
	// query+store, for client libraries that are not thread-safe.
	DBSerializeNative bool
	// DBIncludeTableNames qualifies result column names with their table.
	DBIncludeTableNames bool
	// DBBufferResults reads whole result sets on query; when false rows are
	// streamed from the server and the connection is busy until they are
	// consumed.
	DBBufferResults  bool
	DBConnectTimeout time.Duration
	// DBVerbose logs every driver operation.
	DBVerbose bool

	// ServerPort is the HTTP port to listen on.
	ServerPort string
	// AllowedOrigins is a list of CORS allowed domains.
	AllowedOrigins []string
	// APISecret is the shared secret for HMAC-SHA256 request signing.
	APISecret string
	// APIKeyHash is the bcrypt hash of the API key clients send in X-API-Key.
	APIKeyHash string

	// WorkerCount is the number of workers, and so of database handles.
	WorkerCount int
	// MaxDBConcurrency limits how many workers run a query at once.
	MaxDBConcurrency int64
	// DefaultTimeout is the maximum duration for an export job.
	DefaultTimeout time.Duration
	// Compression gzips export files.
	Compression bool

	// StorageType determines where to save exports: "local" or "s3".
	StorageType string
	// LocalStoragePath is the directory for local exports.
	LocalStoragePath string
	// AWSRegion is the AWS region for S3 uploads.
	AWSRegion string
	// S3Bucket is the target S3 bucket name.
	S3Bucket string
	// S3Endpoint is an optional custom endpoint (for non-AWS S3 providers like MinIO).
	S3Endpoint string
	// S3PathStyle enables path-style addressing (required for some S3 providers).
	S3PathStyle bool
	// AWS credentials. Empty means anonymous access.
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSSessionToken    string
}

// Load reads the environment, after merging a .env file in the working
// directory if there is one. Variables already set win over the file.
func Load() *Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads the environment only.
func FromEnv() *Config {
	return &Config{
		AppEnv: getEnv("APP_ENV", "development"),

		DBDialect:           getEnv("DB_DIALECT", "mysql"),
		DBDatasource:        getEnv("DB_DATASOURCE", "localhost:3306:test"),
		DBUser:              getEnv("DB_USER", "root"),
		DBPassword:          getEnv("DB_PASSWORD", ""),
		DBSerializeNative:   getEnvBool("DB_SERIALIZE_NATIVE", false),
		DBIncludeTableNames: getEnvBool("DB_INCLUDE_TABLENAMES", true),
		DBBufferResults:     getEnvBool("DB_BUFFER_RESULTS", true),
		DBConnectTimeout:    getEnvDuration("DB_CONNECT_TIMEOUT", 10*time.Second),
		DBVerbose:           getEnvBool("DB_VERBOSE", false),

		ServerPort:     getEnv("SERVER_PORT", "8080"),
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"*"}),
		APISecret:      getEnv("API_SECRET", ""),
		APIKeyHash:     getEnv("API_KEY_HASH", ""),

		WorkerCount:      getEnvInt("WORKER_COUNT", 5),
		MaxDBConcurrency: int64(getEnvInt("MAX_DB_CONCURRENCY", 3)),
		DefaultTimeout:   getEnvDuration("DEFAULT_TIMEOUT", 15*time.Minute),
		Compression:      getEnvBool("COMPRESSION", false),

		StorageType:        getEnv("STORAGE_TYPE", "local"),
		LocalStoragePath:   getEnv("LOCAL_STORAGE_PATH", "./exports"),
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		S3Bucket:           getEnv("S3_BUCKET", "my-export-bucket"),
		S3Endpoint:         getEnv("S3_ENDPOINT", ""),
		S3PathStyle:        getEnvBool("S3_PATH_STYLE", false),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSSessionToken:    getEnv("AWS_SESSION_TOKEN", ""),
	}
}

// Connector returns the native client for DBDialect.
func (c *Config) Connector() (native.Connector, error) {
	dialect, err := native.Lookup(c.DBDialect)
	if err != nil {
		return nil, fmt.Errorf("DB_DIALECT: %w", err)
	}
	return native.NewSQLConnector(dialect, c.DBBufferResults), nil
}

// DriverOptions maps the DB settings onto driver.Options. The logger is
// left to the caller.
func (c *Config) DriverOptions() driver.Options {
	return driver.Options{
		IncludeTableNames: c.DBIncludeTableNames,
		SerializeNative:   c.DBSerializeNative,
		ConnectTimeout:    c.DBConnectTimeout,
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "on", "yes":
			return true
		case "off", "no":
			return false
		}
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}
