package pgstore

import (
	"context"
	"time"

	"github.com/albal/rmtrack/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// AppendHistory вставляет событие и в той же транзакции обновляет
// last_status/last_checked_at/delivered записи. Читатель никогда не видит
// новый last_status без соответствующей строки истории.
func (s *Storage) AppendHistory(ctx context.Context, identifier, status string, recordedAt time.Time, delivered bool) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
UPDATE tracking_records
SET
  last_status = $2,
  last_checked_at = $3,
  delivered = delivered OR $4,
  updated_at = now()
WHERE identifier = $1
`, identifier, status, recordedAt.UTC(), delivered)
	if err != nil {
		return errors.Wrap(err, "update record")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(models.ErrNotFound, "identifier %s", identifier)
	}

	_, err = tx.Exec(ctx, `
INSERT INTO status_history (identifier, status, recorded_at, created_at)
VALUES ($1,$2,$3, now())
`, identifier, status, recordedAt.UTC())
	if err != nil {
		return errors.Wrap(err, "insert history")
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

func (s *Storage) ListHistory(ctx context.Context, identifier string) ([]*models.StatusEvent, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, identifier, status, recorded_at, created_at
FROM status_history
WHERE identifier = $1
ORDER BY recorded_at ASC, id ASC
`, identifier)
	if err != nil {
		return nil, errors.Wrap(err, "select history")
	}
	defer rows.Close()

	var out []*models.StatusEvent
	for rows.Next() {
		var e models.StatusEvent
		if err := rows.Scan(&e.ID, &e.Identifier, &e.Status, &e.RecordedAt, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		out = append(out, &e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
