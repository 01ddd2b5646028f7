package onboarding

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smsbridge/server/internal/faststore"
	"github.com/smsbridge/server/internal/mobile"
	"github.com/smsbridge/server/internal/model"
	"github.com/smsbridge/server/internal/repo"
	"github.com/smsbridge/server/internal/settings"
)

type fakeSettingsRepo map[string]string

func (f fakeSettingsRepo) Get(ctx context.Context, key string) (model.Setting, error) {
	v, ok := f[key]
	if !ok {
		return model.Setting{}, fmt.Errorf("setting %q: %w", key, repo.ErrNotFound)
	}
	return model.Setting{Key: key, Value: v}, nil
}

func (f fakeSettingsRepo) Update(ctx context.Context, key, value string) error { return nil }
func (f fakeSettingsRepo) List(ctx context.Context) ([]model.Setting, error)   { return nil, nil }

type fakeOnboardingRepo struct {
	audits []model.OnboardingChallenge
}

func (f *fakeOnboardingRepo) InsertAudit(ctx context.Context, seq int64, ch model.OnboardingChallenge) error {
	f.audits = append(f.audits, ch)
	return nil
}

func newTestService() (*Service, *faststore.Stub, *fakeOnboardingRepo) {
	store := faststore.NewStub()
	cache := settings.NewCache(store, fakeSettingsRepo{}, time.Minute)
	audit := &fakeOnboardingRepo{}
	return NewService(store, cache, audit, "test-secret"), store, audit
}

func TestRegister_issuesChallenge(t *testing.T) {
	svc, store, audit := newTestService()
	ctx := context.Background()

	reg, err := svc.Register(ctx, "+919876543210", "user@example.com", "device-1")
	require.NoError(t, err)

	assert.Len(t, reg.Hash, 8)
	assert.True(t, ValidHashFormat(reg.Hash, 8))
	assert.Equal(t, 300, reg.UserTimelimitSeconds)
	assert.True(t, reg.UserDeadline.After(reg.IssuedAt))
	assert.True(t, reg.AuditExpiry.After(reg.UserDeadline))

	// The live challenge is keyed by the 10-digit local number.
	fields, err := store.HGetAll(ctx, faststore.ChallengeKey("9876543210"))
	require.NoError(t, err)
	require.NotNil(t, fields)
	ch := faststore.ParseChallenge(fields)
	assert.Equal(t, reg.Hash, ch.Hash)
	assert.Equal(t, "+91", ch.CountryCode)
	assert.Equal(t, "9876543210", ch.LocalMobile)

	// Hash is reproducible from number, salt and secret.
	assert.Equal(t, ChallengeHash([]byte("test-secret"), "9876543210", ch.Salt, 8), ch.Hash)

	require.Len(t, audit.audits, 1)
	assert.Equal(t, "+919876543210", audit.audits[0].Number)
}

func TestRegister_reRegistrationOverwrites(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	first, err := svc.Register(ctx, "9876543210", "", "device-1")
	require.NoError(t, err)
	second, err := svc.Register(ctx, "9876543210", "", "device-1")
	require.NoError(t, err)

	fields, err := store.HGetAll(ctx, faststore.ChallengeKey("9876543210"))
	require.NoError(t, err)
	ch := faststore.ParseChallenge(fields)
	assert.Equal(t, second.Hash, ch.Hash, "last registration wins")
	_ = first
}

func TestRegister_invalidNumber(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Register(context.Background(), "12345", "", "device-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, mobile.ErrInvalidNumber)
}

func TestRegister_alreadyValidatedPair(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()
	require.NoError(t, store.SAdd(ctx, faststore.SetValidated, faststore.ValidatedMember("9876543210", "device-1")))

	_, err := svc.Register(ctx, "+919876543210", "", "device-1")
	assert.ErrorIs(t, err, ErrAlreadyValidated)

	// A different device on the same number may still register.
	_, err = svc.Register(ctx, "+919876543210", "", "device-2")
	assert.NoError(t, err)
}

func TestRegister_blacklistedNumber(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()
	require.NoError(t, store.SAdd(ctx, faststore.SetBlacklist, "9876543210"))

	_, err := svc.Register(ctx, "+919876543210", "", "device-1")
	assert.ErrorIs(t, err, ErrBlacklisted)
}

func TestRegister_storeDown(t *testing.T) {
	svc, store, _ := newTestService()
	store.SetDown(true)
	_, err := svc.Register(context.Background(), "+919876543210", "", "device-1")
	require.Error(t, err)
	assert.True(t, faststore.IsUnavailable(err))
}
