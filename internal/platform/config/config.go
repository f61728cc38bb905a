package config

import (
	"fmt"
	"os"
)

// Server captures process-level configuration.
type Server struct {
	Addr        string
	Environment string // "development" or "production"
	Driver      string // "sqlite", "postgres", "mysql", "sqlserver"
	DSN         string
	Secret      string // receipt signing secret; required outside development
	KafkaBroker string // optional audit fan-out; empty disables the publisher
	AuditTopic  string
}

// FromEnv builds a Server config from environment variables so main stays lean.
//
// The signing secret has no default: running without KOROFLOW_SECRET outside
// development is a startup failure, not a runtime warning.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:        getenv("KOROFLOW_ADDR", ":8080"),
		Environment: getenv("KOROFLOW_ENV", "development"),
		Driver:      getenv("KOROFLOW_DB_DRIVER", "sqlite"),
		DSN:         getenv("KOROFLOW_DB_DSN", "file:koroflow.db?mode=memory&cache=shared"),
		Secret:      os.Getenv("KOROFLOW_SECRET"),
		KafkaBroker: os.Getenv("KOROFLOW_KAFKA_BROKER"),
		AuditTopic:  getenv("KOROFLOW_AUDIT_TOPIC", "consent.audit"),
	}

	if cfg.Secret == "" {
		if cfg.Environment != "development" {
			return Server{}, fmt.Errorf("KOROFLOW_SECRET is required when KOROFLOW_ENV=%s", cfg.Environment)
		}
		cfg.Secret = "dev-only-secret"
	}

	switch cfg.Driver {
	case "sqlite", "postgres", "mysql", "sqlserver":
	default:
		return Server{}, fmt.Errorf("unsupported KOROFLOW_DB_DRIVER %q", cfg.Driver)
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
