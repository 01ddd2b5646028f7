package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/smsbridge/server/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// SettingsRepo defines the interface for sms_settings repository operations
type SettingsRepo interface {
	Get(ctx context.Context, key string) (model.Setting, error)
	Update(ctx context.Context, key, value string) error
	List(ctx context.Context) ([]model.Setting, error)
}

type settingsRepo struct {
	db *sql.DB
}

// NewSettingsRepo creates a new SettingsRepo instance
func NewSettingsRepo(db *sql.DB) SettingsRepo {
	return &settingsRepo{db: db}
}

// Get retrieves a setting by key
func (r *settingsRepo) Get(ctx context.Context, key string) (model.Setting, error) {
	query := `
		SELECT setting_key, setting_value, value_type, category, description, updated_at
		FROM sms_settings
		WHERE setting_key = $1
	`
	var s model.Setting
	err := r.db.QueryRowContext(ctx, query, key).Scan(
		&s.Key,
		&s.Value,
		&s.ValueType,
		&s.Category,
		&s.Description,
		&s.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.Setting{}, fmt.Errorf("setting %q: %w", key, ErrNotFound)
		}
		return model.Setting{}, fmt.Errorf("query setting %q: %w", key, err)
	}
	return s, nil
}

// Update sets the value of an existing setting. Updating an unknown key is an
// error; settings are seeded by migration, never created at runtime.
func (r *settingsRepo) Update(ctx context.Context, key, value string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sms_settings SET setting_value = $2, updated_at = now()
		WHERE setting_key = $1
	`, key, value)
	if err != nil {
		return fmt.Errorf("update setting %q: %w", key, err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("setting %q: %w", key, ErrNotFound)
	}
	return nil
}

// List returns all settings ordered by category and key
func (r *settingsRepo) List(ctx context.Context) ([]model.Setting, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT setting_key, setting_value, value_type, category, description, updated_at
		FROM sms_settings
		ORDER BY category, setting_key
	`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	var settings []model.Setting
	for rows.Next() {
		var s model.Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.ValueType, &s.Category, &s.Description, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		settings = append(settings, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settings: %w", err)
	}
	return settings, nil
}
