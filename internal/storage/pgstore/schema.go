package pgstore

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS tracking_records (
  identifier TEXT PRIMARY KEY,
  notifications_enabled BOOLEAN NOT NULL DEFAULT TRUE,
  started_at TIMESTAMPTZ NOT NULL,
  last_checked_at TIMESTAMPTZ NULL,
  last_status TEXT NULL,
  delivered BOOLEAN NOT NULL DEFAULT FALSE,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		// Для выборки недоставленных треков при рестарте (и будущих batch-сканов).
		`CREATE INDEX IF NOT EXISTS idx_tracking_records_delivered ON tracking_records(delivered)`,
		`
CREATE TABLE IF NOT EXISTS status_history (
  id BIGSERIAL PRIMARY KEY,
  identifier TEXT NOT NULL REFERENCES tracking_records(identifier) ON DELETE CASCADE,
  status TEXT NOT NULL,
  recorded_at TIMESTAMPTZ NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_status_history_identifier_recorded_at ON status_history(identifier, recorded_at ASC)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
