package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fastprodman/botledger/internal/config"
)

const (
	storagePostgres = "postgres"
	storageMemory   = "memory"
)

var errInvalidConfig = errors.New("invalid config")

type apiConfig struct {
	Port            uint16        `env:"APP_PORT" default:"8080"`
	LogLevel        slog.Level    `env:"APP_LOG_LEVEL" default:"INFO"`
	ShutdownTimeout time.Duration `env:"APP_SHUTDOWN_TIMEOUT" default:"10s"`
	CORSOrigins     []string      `env:"CORS_ORIGINS" default:"*"`

	// StorageDriver is "postgres" or "memory". The memory store loses
	// everything on restart.
	StorageDriver string `env:"STORAGE_DRIVER" default:"postgres"`
	NodeID        uint16 `env:"LEDGER_NODE_ID" default:"0"`

	Postgres config.PostgresConfig
	Auth     config.AuthConfig
	Notify   config.NotifyConfig
}

func (c *apiConfig) validate() error {
	switch c.StorageDriver {
	case storagePostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("%w: PG_DSN is required for the postgres driver", errInvalidConfig)
		}
	case storageMemory:
	default:
		return fmt.Errorf("%w: unknown STORAGE_DRIVER %q", errInvalidConfig, c.StorageDriver)
	}

	return nil
}
