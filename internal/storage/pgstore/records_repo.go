package pgstore

import (
	"context"
	"time"

	"github.com/albal/rmtrack/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// CreateRecord вставляет запись вместе с первой строкой истории в одной
// транзакции: после неудавшегося Add в БД не остаётся записи без истории.
func (s *Storage) CreateRecord(ctx context.Context, rec models.TrackingRecord, status string, delivered bool) error {
	now := time.Now().UTC()
	startedAt := rec.StartedAt.UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
INSERT INTO tracking_records (
  identifier, notifications_enabled, started_at,
  last_checked_at, last_status, delivered,
  created_at, updated_at
)
VALUES ($1,$2,$3,$3,$4,$5,$6,$6)
ON CONFLICT (identifier) DO NOTHING
`, rec.Identifier, rec.NotificationsEnabled, startedAt, status, delivered, now)
	if err != nil {
		return errors.Wrap(err, "insert record")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(models.ErrConflict, "identifier %s", rec.Identifier)
	}

	_, err = tx.Exec(ctx, `
INSERT INTO status_history (identifier, status, recorded_at, created_at)
VALUES ($1,$2,$3, now())
`, rec.Identifier, status, startedAt)
	if err != nil {
		return errors.Wrap(err, "insert history")
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

func (s *Storage) GetRecord(ctx context.Context, identifier string) (*models.TrackingRecord, error) {
	var rec models.TrackingRecord
	var lastCheckedAt *time.Time
	var lastStatus *string
	err := s.db.QueryRow(ctx, `
SELECT
  identifier, notifications_enabled, started_at,
  last_checked_at, last_status, delivered,
  created_at, updated_at
FROM tracking_records
WHERE identifier = $1
`, identifier).Scan(
		&rec.Identifier, &rec.NotificationsEnabled, &rec.StartedAt,
		&lastCheckedAt, &lastStatus, &rec.Delivered,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.Wrapf(models.ErrNotFound, "identifier %s", identifier)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select record")
	}
	rec.LastCheckedAt = lastCheckedAt
	rec.LastStatus = lastStatus
	return &rec, nil
}

func (s *Storage) ListActiveIdentifiers(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT identifier FROM tracking_records WHERE NOT delivered ORDER BY created_at ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "select active records")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan identifier")
		}
		out = append(out, id)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// TouchChecked обновляет только last_checked_at: проверка прошла, изменений нет.
func (s *Storage) TouchChecked(ctx context.Context, identifier string, checkedAt time.Time) error {
	tag, err := s.db.Exec(ctx, `
UPDATE tracking_records
SET last_checked_at = $2, updated_at = now()
WHERE identifier = $1
`, identifier, checkedAt.UTC())
	if err != nil {
		return errors.Wrap(err, "touch record")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(models.ErrNotFound, "identifier %s", identifier)
	}
	return nil
}

// MarkDelivered фиксирует доставку без записи в историю: провайдер сообщил
// delivered при неизменившейся строке статуса.
func (s *Storage) MarkDelivered(ctx context.Context, identifier string, checkedAt time.Time) error {
	tag, err := s.db.Exec(ctx, `
UPDATE tracking_records
SET delivered = TRUE, last_checked_at = $2, updated_at = now()
WHERE identifier = $1
`, identifier, checkedAt.UTC())
	if err != nil {
		return errors.Wrap(err, "mark delivered")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(models.ErrNotFound, "identifier %s", identifier)
	}
	return nil
}

func (s *Storage) DeleteRecord(ctx context.Context, identifier string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM tracking_records WHERE identifier = $1`, identifier)
	if err != nil {
		return errors.Wrap(err, "delete record")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(models.ErrNotFound, "identifier %s", identifier)
	}
	return nil
}
