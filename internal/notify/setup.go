package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-redis/redis/v8"

	"github.com/fastprodman/botledger/internal/config"
)

var ErrUnknownDriver = errors.New("unknown notify driver")

// FromConfig builds the delivery sink named by cfg.Driver behind a Dispatcher.
// The returned close func drains the queue and releases the sink's resources.
func FromConfig(ctx context.Context, cfg config.NotifyConfig, logger *slog.Logger) (*Dispatcher, func(context.Context) error, error) {
	var (
		sink    Sink
		release = func() error { return nil }
	)

	switch strings.ToLower(cfg.Driver) {
	case "", "log":
		sink = NewLogSink(logger)
	case "webhook":
		if cfg.WebhookURL == "" {
			return nil, nil, fmt.Errorf("webhook driver: NOTIFY_WEBHOOK_URL is empty")
		}
		sink = NewWebhookSink(cfg.WebhookURL, cfg.Timeout, &http.Client{})
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		err := client.Ping(ctx).Err()
		if err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}

		sink = NewRedisSink(client, cfg.RedisList)
		release = client.Close
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}

	d := NewDispatcher(sink, cfg.QueueSize, cfg.Workers, logger)

	closeFn := func(ctx context.Context) error {
		return errors.Join(d.Close(ctx), release())
	}

	return d, closeFn, nil
}
