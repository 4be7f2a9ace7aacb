package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
)

// DBConfig describes the Postgres connection.
type DBConfig struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	SSLMode     string
	SSLRootCert string
}

// LoadDBConfig reads the connection settings from the environment.
// DB_HOST, DB_NAME, DB_USER and DB_PASSWORD are required.
func LoadDBConfig() (DBConfig, error) {
	cfg := DBConfig{
		Host:        os.Getenv("DB_HOST"),
		Database:    os.Getenv("DB_NAME"),
		User:        os.Getenv("DB_USER"),
		Password:    os.Getenv("DB_PASSWORD"),
		SSLMode:     envOr("DB_SSLMODE", "verify-full"),
		SSLRootCert: os.Getenv("DB_SSLROOTCERT"),
		Port:        5432,
	}
	if p := os.Getenv("DB_PORT"); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return DBConfig{}, fmt.Errorf("invalid DB_PORT %q: %w", p, err)
		}
		cfg.Port = port
	}
	if cfg.Host == "" || cfg.Database == "" || cfg.User == "" || cfg.Password == "" {
		return DBConfig{}, fmt.Errorf("missing required database settings (DB_HOST, DB_NAME, DB_USER, DB_PASSWORD)")
	}
	return cfg, nil
}

// ConnString builds a pgx connection URL.
func (c DBConfig) ConnString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.Database,
	}
	q := url.Values{}
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	if c.SSLRootCert != "" {
		q.Set("sslrootcert", c.SSLRootCert)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// ProcessingConfig holds runtime processing settings.
type ProcessingConfig struct {
	InputDir       string
	ArchiveDir     string
	BatchSize      int
	EnableDatabase bool
}

// LoadProcessingConfig reads processing settings from the environment, with
// local-friendly defaults.
func LoadProcessingConfig() ProcessingConfig {
	cfg := ProcessingConfig{
		InputDir:       envOr("INPUT_DIR", "data/input"),
		ArchiveDir:     envOr("ARCHIVE_DIR", "data/archive"),
		BatchSize:      1000,
		EnableDatabase: envOr("ENABLE_DATABASE", "true") == "true",
	}
	if b := os.Getenv("BATCH_SIZE"); b != "" {
		if n, err := strconv.Atoi(b); err == nil && n > 0 {
			cfg.BatchSize = n
		}
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
