package config

import "time"

type PostgresConfig struct {
	DSN             string        `env:"PG_DSN" default:""`
	MaxOpenConns    int           `env:"PG_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `env:"PG_MAX_IDLE_CONNS" default:"5"`
	ConnMaxIdleTime time.Duration `env:"PG_CONN_MAX_IDLE_TIME" default:"1m"`
	ConnMaxLifetime time.Duration `env:"PG_CONN_MAX_LIFETIME" default:"5m"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" default:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD" default:""`
	DB       int    `env:"REDIS_DB" default:"0"`
}

type AuthConfig struct {
	// SigningKey signs issued tokens (HS256). Rotating it invalidates every token.
	SigningKey string `env:"AUTH_SIGNING_KEY"`
}

// NotifyConfig selects the audit sink: "log", "webhook" or "redis".
type NotifyConfig struct {
	Driver     string        `env:"NOTIFY_DRIVER" default:"log"`
	WebhookURL string        `env:"NOTIFY_WEBHOOK_URL" default:""`
	Timeout    time.Duration `env:"NOTIFY_TIMEOUT" default:"5s"`
	RedisList  string        `env:"NOTIFY_REDIS_LIST" default:"ledger:audit"`
	QueueSize  int           `env:"NOTIFY_QUEUE_SIZE" default:"256"`
	Workers    int           `env:"NOTIFY_WORKERS" default:"2"`
	Redis      RedisConfig
}
