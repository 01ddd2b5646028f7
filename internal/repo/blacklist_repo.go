package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/smsbridge/server/internal/model"
)

// BlacklistRepo defines the interface for the blacklist_sms table
type BlacklistRepo interface {
	ListNumbers(ctx context.Context) ([]string, error)
	List(ctx context.Context) ([]model.BlacklistEntry, error)
}

type blacklistRepo struct {
	db *sql.DB
}

// NewBlacklistRepo creates a new BlacklistRepo instance
func NewBlacklistRepo(db *sql.DB) BlacklistRepo {
	return &blacklistRepo{db: db}
}

// ListNumbers returns every blacklisted number. The reload worker loads the
// full table each cycle and replaces the fast-store set wholesale.
func (r *blacklistRepo) ListNumbers(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT mobile_number FROM blacklist_sms`)
	if err != nil {
		return nil, fmt.Errorf("list blacklist numbers: %w", err)
	}
	defer rows.Close()

	var numbers []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan blacklist number: %w", err)
		}
		numbers = append(numbers, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blacklist: %w", err)
	}
	return numbers, nil
}

// List returns full blacklist entries (admin/reporting use).
func (r *blacklistRepo) List(ctx context.Context) ([]model.BlacklistEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, mobile_number, reason, offense_count, blacklisted_at
		FROM blacklist_sms
		ORDER BY blacklisted_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list blacklist: %w", err)
	}
	defer rows.Close()

	var entries []model.BlacklistEntry
	for rows.Next() {
		var e model.BlacklistEntry
		if err := rows.Scan(&e.ID, &e.Number, &e.Reason, &e.OffenseCount, &e.BlacklistedAt); err != nil {
			return nil, fmt.Errorf("scan blacklist entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blacklist: %w", err)
	}
	return entries, nil
}
