package notify

import (
	"context"
	"log/slog"
)

type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}

	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(ctx context.Context, ev Event) error {
	s.logger.InfoContext(ctx, "ledger event",
		"event_id", ev.ID,
		"action", ev.Action,
		"transaction_id", ev.TransactionID,
		"kind", ev.Kind,
		"amount", ev.Amount,
		"user", ev.User,
		"bot", ev.Bot,
		"reason", ev.Reason,
		"resulting_balance", ev.ResultingBalance,
	)

	return nil
}
