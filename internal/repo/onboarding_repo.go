package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/smsbridge/server/internal/model"
)

// OnboardingRepo defines the interface for the onboarding_mobile audit table
type OnboardingRepo interface {
	InsertAudit(ctx context.Context, seq int64, ch model.OnboardingChallenge) error
}

type onboardingRepo struct {
	db *sql.DB
}

// NewOnboardingRepo creates a new OnboardingRepo instance
func NewOnboardingRepo(db *sql.DB) OnboardingRepo {
	return &onboardingRepo{db: db}
}

// InsertAudit writes one audit row per registration call. This is the single
// durable write on the onboarding path.
func (r *onboardingRepo) InsertAudit(ctx context.Context, seq int64, ch model.OnboardingChallenge) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO onboarding_mobile (
			seq_id, mobile_number, email, device_id, hash, salt,
			country_code, local_mobile, issued_at, user_deadline, audit_expiry
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (seq_id) DO NOTHING
	`, seq, ch.Number, ch.Email, ch.DeviceID, ch.Hash, ch.Salt,
		ch.CountryCode, ch.LocalMobile, ch.IssuedAt, ch.UserDeadline, ch.AuditExpiry)
	if err != nil {
		return fmt.Errorf("insert onboarding audit: %w", err)
	}
	return nil
}
