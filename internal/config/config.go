// Package config loads the process configuration from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"boardtrace/internal/dateparse"
)

type Config struct {
	// Traceability store (SQL Server, read-only)
	TraceHost      string
	TraceDB        string
	TraceUser      string
	TracePassword  string
	TraceEncrypt   string
	TraceTrustCert string

	// Resolver pacing
	TraceChunkSize     int
	TracePacingSeconds float64

	// Operational store (MySQL in production, SQLite for local runs)
	DBDriver   string
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLCA    string
	DBPath     string // sqlite only

	// Row selection
	OnlyProcessNewerThan   string
	IncludeRowsWithoutDate bool

	// Logging
	LogLevel  string
	LogFormat string
	LogFile   string

	// Monitoring; 0 disables the metrics listener
	MetricsPort int
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		TraceHost:      getEnv("TRACE_HOST", ""),
		TraceDB:        getEnv("TRACE_DB", ""),
		TraceUser:      getEnv("TRACE_USER", ""),
		TracePassword:  getEnv("TRACE_PASSWORD", ""),
		TraceEncrypt:   getEnv("TRACE_ENCRYPT", "true"),
		TraceTrustCert: getEnv("TRACE_TRUST_CERT", "true"),

		TraceChunkSize:     getEnvInt("TRACE_CHUNK_SIZE", 200),
		TracePacingSeconds: getEnvFloat("TRACE_PACING_SECONDS", 0.25),

		DBDriver:   getEnv("DB_DRIVER", "mysql"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 3306),
		DBName:     getEnv("DB_NAME", "manufacturing"),
		DBUser:     getEnv("DB_USER", "user"),
		DBPassword: getEnv("DB_PASSWORD", getEnv("DB_PASS", "")),
		DBSSLCA:    getEnv("DB_SSL_CA", ""),
		DBPath:     getEnv("DB_PATH", "boards.db"),

		OnlyProcessNewerThan:   getEnv("ONLY_PROCESS_NEWER_THAN", ""),
		IncludeRowsWithoutDate: getEnvBool("INCLUDE_ROWS_WITHOUT_DATE", false),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
		LogFile:   getEnv("LOG_FILE", ""),

		MetricsPort: getEnvInt("METRICS_PORT", 0),
	}
}

// ValidateTrace checks the fields required to reach the traceability store.
func (c *Config) ValidateTrace() error {
	if c.TraceHost == "" {
		return fmt.Errorf("TRACE_HOST is required")
	}
	if c.TraceDB == "" {
		return fmt.Errorf("TRACE_DB is required")
	}
	if c.TraceUser == "" || c.TracePassword == "" {
		return fmt.Errorf("TRACE_USER / TRACE_PASSWORD are required")
	}
	return nil
}

// ValidateBoard checks the fields required to reach the operational store.
func (c *Config) ValidateBoard() error {
	switch c.DBDriver {
	case "mysql":
		if c.DBPassword == "" {
			return fmt.Errorf("DB_PASSWORD is required")
		}
	case "sqlite3":
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH is required for the sqlite3 driver")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (mysql or sqlite3)", c.DBDriver)
	}
	return nil
}

// TraceDSN builds the go-mssqldb connection URL.
func (c *Config) TraceDSN() string {
	q := url.Values{}
	q.Set("database", c.TraceDB)
	q.Set("encrypt", c.TraceEncrypt)
	q.Set("trustservercertificate", c.TraceTrustCert)

	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(c.TraceUser, c.TracePassword),
		Host:     c.TraceHost,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// BoardDSN builds the operational store connection string for the configured
// driver.
func (c *Config) BoardDSN() string {
	if c.DBDriver == "sqlite3" {
		return c.DBPath
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=true",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
	if c.DBSSLCA != "" {
		dsn += "&tls=custom"
	}
	return dsn
}

// Pacing returns the resolver sleep as a duration.
func (c *Config) Pacing() time.Duration {
	return time.Duration(c.TracePacingSeconds * float64(time.Second))
}

// Cutoff parses the optional row-selection cutoff. An unset value yields
// nil; a set but unparseable value is a configuration error.
func (c *Config) Cutoff() (*time.Time, error) {
	if c.OnlyProcessNewerThan == "" {
		return nil, nil
	}
	t, ok := dateparse.Coerce(c.OnlyProcessNewerThan)
	if !ok {
		return nil, fmt.Errorf("invalid ONLY_PROCESS_NEWER_THAN %q, use formats like '2025-01-01' or '01.01.2025'", c.OnlyProcessNewerThan)
	}
	return &t, nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
