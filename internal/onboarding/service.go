package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/smsbridge/server/internal/faststore"
	"github.com/smsbridge/server/internal/mobile"
	"github.com/smsbridge/server/internal/model"
	"github.com/smsbridge/server/internal/repo"
	"github.com/smsbridge/server/internal/settings"
)

var (
	// ErrAlreadyValidated means the number+device pair already completed
	// validation; re-onboarding it is rejected with 409.
	ErrAlreadyValidated = errors.New("mobile and device already validated")
	// ErrBlacklisted means the number is on the blacklist.
	ErrBlacklisted = errors.New("mobile number is blacklisted")
)

// Registration is the outcome of a successful Register call.
type Registration struct {
	Hash                 string
	IssuedAt             time.Time
	UserDeadline         time.Time
	AuditExpiry          time.Time
	UserTimelimitSeconds int
	AuditTTLSeconds      int
}

// Service issues onboarding challenges. The fast store holds the live
// challenge; one audit row goes to the durable store synchronously
// (onboarding volume is far below SMS volume, so this durable write is
// acceptable on this path).
type Service struct {
	store     faststore.Store
	settings  *settings.Cache
	auditRepo repo.OnboardingRepo
	secret    []byte
}

// NewService creates the onboarding service. secret is the process-wide
// challenge-signing secret loaded once at startup.
func NewService(store faststore.Store, cache *settings.Cache, auditRepo repo.OnboardingRepo, secret string) *Service {
	return &Service{
		store:     store,
		settings:  cache,
		auditRepo: auditRepo,
		secret:    []byte(secret),
	}
}

// Register validates the number, issues a signed challenge and records it.
// A live challenge for the same number is overwritten (idempotent
// re-registration, last writer wins).
func (s *Service) Register(ctx context.Context, number, email, deviceID string) (Registration, error) {
	countryCode, local, err := mobile.Normalize(number)
	if err != nil {
		return Registration{}, err
	}

	// Redis-first prechecks: validated pairs and blacklisted numbers never
	// get a fresh challenge.
	validated, err := s.store.SIsMember(ctx, faststore.SetValidated, faststore.ValidatedMember(local, deviceID))
	if err != nil {
		return Registration{}, err
	}
	if validated {
		return Registration{}, ErrAlreadyValidated
	}
	blacklisted, err := s.store.SIsMember(ctx, faststore.SetBlacklist, local)
	if err != nil {
		return Registration{}, err
	}
	if blacklisted {
		return Registration{}, ErrBlacklisted
	}

	// Timing parameters are re-read per call; staleness is bounded by the
	// settings cache TTL.
	userLimit := s.settings.GetInt(ctx, settings.KeyUserTimelimitSeconds, 300)
	auditTTL := s.settings.GetInt(ctx, settings.KeyOnboardingTTLSeconds, 86400)
	hashLength := s.settings.GetInt(ctx, settings.KeyHashLength, 8)
	if auditTTL < userLimit {
		// The audit window governs physical deletion and must outlive the
		// user-facing deadline.
		auditTTL = userLimit
	}

	now := time.Now().UTC()
	salt := SaltFor(now)
	hash := ChallengeHash(s.secret, local, salt, hashLength)

	ch := model.OnboardingChallenge{
		Number:       number,
		Email:        email,
		DeviceID:     deviceID,
		Hash:         hash,
		Salt:         salt,
		CountryCode:  countryCode,
		LocalMobile:  local,
		IssuedAt:     now,
		UserDeadline: now.Add(time.Duration(userLimit) * time.Second),
		AuditExpiry:  now.Add(time.Duration(auditTTL) * time.Second),
	}

	seq, err := s.store.IncrWithTTL(ctx, faststore.CounterOnboarding, 0)
	if err != nil {
		return Registration{}, fmt.Errorf("assign challenge seq: %w", err)
	}

	// Store expiry follows the longer audit window; the user deadline is
	// carried as data and enforced by the time-window check.
	ttl := ch.AuditExpiry.Sub(now)
	if err := s.store.HSet(ctx, faststore.ChallengeKey(local), faststore.ChallengeFields(ch), ttl); err != nil {
		return Registration{}, fmt.Errorf("store challenge: %w", err)
	}

	if err := s.auditRepo.InsertAudit(ctx, seq, ch); err != nil {
		// The challenge is live; losing one audit row must not fail the
		// registration.
		log.Printf("Onboarding audit write failed for seq %d: %v", seq, err)
	}

	return Registration{
		Hash:                 hash,
		IssuedAt:             now,
		UserDeadline:         ch.UserDeadline,
		AuditExpiry:          ch.AuditExpiry,
		UserTimelimitSeconds: userLimit,
		AuditTTLSeconds:      auditTTL,
	}, nil
}
