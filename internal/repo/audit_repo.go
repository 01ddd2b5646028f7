package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/smsbridge/server/internal/model"
)

// AuditRepo defines the interface for the input_sms audit table
type AuditRepo interface {
	UpsertBatch(ctx context.Context, msgs []model.InboundMessage) error
	ListUnsyncedPassed(ctx context.Context, limit int) ([]model.InboundMessage, error)
	MarkSynced(ctx context.Context, seq int64) error
	GetBySeq(ctx context.Context, seq int64) (model.InboundMessage, error)
}

type auditRepo struct {
	db *sql.DB
}

// NewAuditRepo creates a new AuditRepo instance
func NewAuditRepo(db *sql.DB) AuditRepo {
	return &auditRepo{db: db}
}

const inboundColumns = `
	seq_id, mobile_number, country_code, local_mobile, device_id,
	sms_message, received_at,
	mobile_check, duplicate_check, header_hash_check, count_check,
	foreign_number_check, blacklist_check, time_window_check,
	validation_status, failed_at_check
`

// UpsertBatch copies a batch of verdict records into input_sms inside one
// transaction. Re-running after a partial failure is safe: conflicting rows
// are overwritten with identical data (records never change after verdict).
func (r *auditRepo) UpsertBatch(ctx context.Context, msgs []model.InboundMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO input_sms (`+inboundColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (seq_id) DO UPDATE SET
			mobile_check = EXCLUDED.mobile_check,
			duplicate_check = EXCLUDED.duplicate_check,
			header_hash_check = EXCLUDED.header_hash_check,
			count_check = EXCLUDED.count_check,
			foreign_number_check = EXCLUDED.foreign_number_check,
			blacklist_check = EXCLUDED.blacklist_check,
			time_window_check = EXCLUDED.time_window_check,
			validation_status = EXCLUDED.validation_status,
			failed_at_check = EXCLUDED.failed_at_check
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, m := range msgs {
		_, err := stmt.ExecContext(ctx,
			m.Seq, m.Number, m.CountryCode, m.LocalMobile, m.DeviceID,
			m.Text, m.ReceivedAt,
			int(m.MobileCheck), int(m.DuplicateCheck), int(m.HeaderHashCheck), int(m.CountCheck),
			int(m.ForeignNumberCheck), int(m.BlacklistCheck), int(m.TimeWindowCheck),
			string(m.Status), m.FailedAtCheck,
		)
		if err != nil {
			return fmt.Errorf("upsert seq %d: %w", m.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListUnsyncedPassed returns passed records not yet forwarded to the remote
// backend, oldest first.
func (r *auditRepo) ListUnsyncedPassed(ctx context.Context, limit int) ([]model.InboundMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+inboundColumns+`
		FROM input_sms
		WHERE validation_status = 'passed' AND synced_remote = FALSE
		ORDER BY seq_id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unsynced: %w", err)
	}
	defer rows.Close()

	var msgs []model.InboundMessage
	for rows.Next() {
		m, err := scanInbound(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unsynced: %w", err)
	}
	return msgs, nil
}

// MarkSynced flags a record as forwarded to the remote backend.
func (r *auditRepo) MarkSynced(ctx context.Context, seq int64) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE input_sms SET synced_remote = TRUE WHERE seq_id = $1
	`, seq)
	if err != nil {
		return fmt.Errorf("mark synced seq %d: %w", seq, err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("seq %d: %w", seq, ErrNotFound)
	}
	return nil
}

// GetBySeq returns one audit record by sequence id.
func (r *auditRepo) GetBySeq(ctx context.Context, seq int64) (model.InboundMessage, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+inboundColumns+`
		FROM input_sms
		WHERE seq_id = $1
	`, seq)
	m, err := scanInbound(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.InboundMessage{}, fmt.Errorf("seq %d: %w", seq, ErrNotFound)
		}
		return model.InboundMessage{}, err
	}
	return m, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInbound(row rowScanner) (model.InboundMessage, error) {
	var m model.InboundMessage
	var mobile, dup, header, count, foreign, blacklist, window int
	var status string
	err := row.Scan(
		&m.Seq, &m.Number, &m.CountryCode, &m.LocalMobile, &m.DeviceID,
		&m.Text, &m.ReceivedAt,
		&mobile, &dup, &header, &count,
		&foreign, &blacklist, &window,
		&status, &m.FailedAtCheck,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.InboundMessage{}, err
		}
		return model.InboundMessage{}, fmt.Errorf("scan input_sms: %w", err)
	}
	m.MobileCheck = model.CheckResult(mobile)
	m.DuplicateCheck = model.CheckResult(dup)
	m.HeaderHashCheck = model.CheckResult(header)
	m.CountCheck = model.CheckResult(count)
	m.ForeignNumberCheck = model.CheckResult(foreign)
	m.BlacklistCheck = model.CheckResult(blacklist)
	m.TimeWindowCheck = model.CheckResult(window)
	m.Status = model.ValidationStatus(status)
	return m, nil
}
