package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/smsbridge/server/internal/model"
)

// PowerDownRepo defines the interface for the power-down backup tables
type PowerDownRepo interface {
	InsertRecord(ctx context.Context, rec model.PowerDownRecord) (int64, error)
	ListUnprocessed(ctx context.Context, limit int) ([]model.PowerDownRecord, error)
	MarkProcessed(ctx context.Context, id int64) error
	UpsertCounter(ctx context.Context, name string, value int64) error
	GetCounter(ctx context.Context, name string) (int64, error)
}

type powerDownRepo struct {
	db *sql.DB
}

// NewPowerDownRepo creates a new PowerDownRepo instance
func NewPowerDownRepo(db *sql.DB) PowerDownRepo {
	return &powerDownRepo{db: db}
}

// InsertRecord stores a raw inbound message captured during a fast-store
// outage. No verdict is attached; the recovery worker replays it later.
func (r *powerDownRepo) InsertRecord(ctx context.Context, rec model.PowerDownRecord) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO power_down_sms (mobile_number, device_id, sms_message, received_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, rec.Number, rec.DeviceID, rec.Text, rec.ReceivedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert power-down record: %w", err)
	}
	return id, nil
}

// ListUnprocessed returns captured records in received-at order so replay
// preserves the original arrival sequence.
func (r *powerDownRepo) ListUnprocessed(ctx context.Context, limit int) ([]model.PowerDownRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, mobile_number, device_id, sms_message, received_at, processed, created_at
		FROM power_down_sms
		WHERE processed = FALSE
		ORDER BY received_at, id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list power-down records: %w", err)
	}
	defer rows.Close()

	var recs []model.PowerDownRecord
	for rows.Next() {
		var rec model.PowerDownRecord
		if err := rows.Scan(&rec.ID, &rec.Number, &rec.DeviceID, &rec.Text,
			&rec.ReceivedAt, &rec.Processed, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan power-down record: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate power-down records: %w", err)
	}
	return recs, nil
}

// MarkProcessed flags a replayed record so it is never replayed twice.
func (r *powerDownRepo) MarkProcessed(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE power_down_sms SET processed = TRUE WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("mark processed %d: %w", id, err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("power-down record %d: %w", id, ErrNotFound)
	}
	return nil
}

// UpsertCounter snapshots a fast-store sequence counter.
func (r *powerDownRepo) UpsertCounter(ctx context.Context, name string, value int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO power_down_counters (counter_name, counter_value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (counter_name) DO UPDATE
		SET counter_value = EXCLUDED.counter_value, updated_at = now()
	`, name, value)
	if err != nil {
		return fmt.Errorf("upsert counter %q: %w", name, err)
	}
	return nil
}

// GetCounter reads a snapshotted counter; missing counters read as 0.
func (r *powerDownRepo) GetCounter(ctx context.Context, name string) (int64, error) {
	var value int64
	err := r.db.QueryRowContext(ctx, `
		SELECT counter_value FROM power_down_counters WHERE counter_name = $1
	`, name).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("get counter %q: %w", name, err)
	}
	return value, nil
}
