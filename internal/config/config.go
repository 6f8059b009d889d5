package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"

	"invasivewatch/dashboard/internal/auth"
)

type Config struct {
	HTTP                HTTPConfig
	DatabaseURL         string
	PostgresWaitTimeout time.Duration
	Session             SessionConfig
	Seed                SeedConfig
	BcryptCost          int
	AuditLogFile        string
	LogLevel            string
}

type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// SessionConfig controls where client session state lives. With DATABASE_URL
// set, state goes to Postgres and StateFile is ignored; an empty StateFile
// keeps state in memory.
type SessionConfig struct {
	StateFile     string
	CheckInterval time.Duration
}

// SeedConfig overrides the embedded mock data. Empty paths use the embedded
// files.
type SeedConfig struct {
	SpeciesFile string
	ReportsFile string
	UsersFile   string
}

func Load() (Config, error) {
	cfg := Config{
		HTTP: HTTPConfig{
			Addr:            getEnv("HTTP_ADDR", ":8080"),
			ReadTimeout:     time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SEC", 10)) * time.Second,
			WriteTimeout:    time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SEC", 15)) * time.Second,
			ShutdownTimeout: time.Duration(getEnvInt("HTTP_SHUTDOWN_TIMEOUT_SEC", 20)) * time.Second,
		},
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		PostgresWaitTimeout: time.Duration(getEnvInt("POSTGRES_WAIT_TIMEOUT_SEC", 30)) * time.Second,
		Session: SessionConfig{
			StateFile:     getEnv("SESSION_STATE_FILE", "./data/client_state.json"),
			CheckInterval: time.Duration(getEnvInt("SESSION_CHECK_INTERVAL_SEC", int(auth.CheckInterval/time.Second))) * time.Second,
		},
		Seed: SeedConfig{
			SpeciesFile: getEnv("SEED_SPECIES_FILE", ""),
			ReportsFile: getEnv("SEED_REPORTS_FILE", ""),
			UsersFile:   getEnv("SEED_USERS_FILE", ""),
		},
		BcryptCost:   getEnvInt("BCRYPT_COST", bcrypt.DefaultCost),
		AuditLogFile: getEnv("AUDIT_LOG_FILE", "./data/audit.log"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
	}

	if cfg.HTTP.Addr == "" {
		return Config{}, fmt.Errorf("HTTP_ADDR must not be empty")
	}
	if cfg.HTTP.ReadTimeout <= 0 || cfg.HTTP.WriteTimeout <= 0 || cfg.HTTP.ShutdownTimeout <= 0 {
		return Config{}, fmt.Errorf("HTTP timeouts must be > 0")
	}
	if cfg.PostgresWaitTimeout <= 0 {
		return Config{}, fmt.Errorf("POSTGRES_WAIT_TIMEOUT_SEC must be > 0")
	}
	if cfg.Session.CheckInterval <= 0 {
		return Config{}, fmt.Errorf("SESSION_CHECK_INTERVAL_SEC must be > 0")
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return Config{}, fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if cfg.AuditLogFile == "" {
		return Config{}, fmt.Errorf("AUDIT_LOG_FILE must not be empty")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	return val
}

func getEnvInt(key string, fallback int) int {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}
