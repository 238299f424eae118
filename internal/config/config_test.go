package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"TRACE_CHUNK_SIZE", "TRACE_PACING_SECONDS", "DB_DRIVER", "DB_PORT", "ONLY_PROCESS_NEWER_THAN"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, 200, cfg.TraceChunkSize)
	assert.Equal(t, 0.25, cfg.TracePacingSeconds)
	assert.Equal(t, 250*time.Millisecond, cfg.Pacing())
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, 3306, cfg.DBPort)
	assert.False(t, cfg.IncludeRowsWithoutDate)
	assert.Equal(t, 0, cfg.MetricsPort)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("TRACE_CHUNK_SIZE", "50")
	t.Setenv("TRACE_PACING_SECONDS", "1.5")
	t.Setenv("DB_PASS", "fallback-secret")
	t.Setenv("DB_PASSWORD", "")
	t.Setenv("INCLUDE_ROWS_WITHOUT_DATE", "true")

	cfg := Load()

	assert.Equal(t, 50, cfg.TraceChunkSize)
	assert.Equal(t, 1500*time.Millisecond, cfg.Pacing())
	assert.Equal(t, "fallback-secret", cfg.DBPassword, "DB_PASS is the legacy fallback for DB_PASSWORD")
	assert.True(t, cfg.IncludeRowsWithoutDate)
}

func TestValidateTrace(t *testing.T) {
	cfg := &Config{TraceHost: "trace.local", TraceDB: "TraceDB", TraceUser: "u", TracePassword: "p"}
	assert.NoError(t, cfg.ValidateTrace())

	cfg.TraceHost = ""
	assert.Error(t, cfg.ValidateTrace())
}

func TestValidateBoard(t *testing.T) {
	t.Run("mysql requires password", func(t *testing.T) {
		cfg := &Config{DBDriver: "mysql"}
		assert.Error(t, cfg.ValidateBoard())
		cfg.DBPassword = "secret"
		assert.NoError(t, cfg.ValidateBoard())
	})

	t.Run("sqlite requires path", func(t *testing.T) {
		cfg := &Config{DBDriver: "sqlite3", DBPath: "boards.db"}
		assert.NoError(t, cfg.ValidateBoard())
		cfg.DBPath = ""
		assert.Error(t, cfg.ValidateBoard())
	})

	t.Run("unknown driver", func(t *testing.T) {
		cfg := &Config{DBDriver: "postgres"}
		assert.Error(t, cfg.ValidateBoard())
	})
}

func TestDSNBuilders(t *testing.T) {
	cfg := &Config{
		TraceHost: "trace.local", TraceDB: "Trace", TraceUser: "tu", TracePassword: "tp",
		TraceEncrypt: "true", TraceTrustCert: "true",
		DBDriver: "mysql", DBHost: "db.local", DBPort: 3307, DBName: "manufacturing",
		DBUser: "mu", DBPassword: "mp",
	}

	trace := cfg.TraceDSN()
	assert.Contains(t, trace, "sqlserver://tu:tp@trace.local")
	assert.Contains(t, trace, "database=Trace")

	board := cfg.BoardDSN()
	assert.Equal(t, "mu:mp@tcp(db.local:3307)/manufacturing?charset=utf8mb4&parseTime=true", board)

	cfg.DBSSLCA = "/etc/ssl/ca.pem"
	assert.Contains(t, cfg.BoardDSN(), "&tls=custom")

	cfg.DBDriver = "sqlite3"
	cfg.DBPath = "/tmp/boards.db"
	assert.Equal(t, "/tmp/boards.db", cfg.BoardDSN())
}

func TestCutoff(t *testing.T) {
	t.Run("unset", func(t *testing.T) {
		cfg := &Config{}
		got, err := cfg.Cutoff()
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("iso", func(t *testing.T) {
		cfg := &Config{OnlyProcessNewerThan: "2025-01-01"}
		got, err := cfg.Cutoff()
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), *got)
	})

	t.Run("german", func(t *testing.T) {
		cfg := &Config{OnlyProcessNewerThan: "01.01.2025"}
		got, err := cfg.Cutoff()
		require.NoError(t, err)
		require.NotNil(t, got)
	})

	t.Run("invalid", func(t *testing.T) {
		cfg := &Config{OnlyProcessNewerThan: "not-a-date"}
		_, err := cfg.Cutoff()
		assert.Error(t, err)
	})
}
