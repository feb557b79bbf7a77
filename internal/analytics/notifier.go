package analytics

import (
	"context"

	"github.com/rs/zerolog"
)

// Notifier is the hook the downstream visualization collaborator listens on.
// It is invoked once per completed ETL run.
type Notifier interface {
	SyncCompleted(ctx context.Context, connectionID string, tables []string, records int64) error
}

// LogNotifier records the completion event in the log. It stands in when no
// external visualization service is wired up.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "sync_notifier").Logger()}
}

func (n *LogNotifier) SyncCompleted(ctx context.Context, connectionID string, tables []string, records int64) error {
	n.logger.Info().
		Str("connection_id", connectionID).
		Int("tables", len(tables)).
		Int64("records", records).
		Msg("ETL run completed")
	return nil
}
