package tests

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smsbridge/server/internal/auth"
	"github.com/smsbridge/server/internal/config"
	"github.com/smsbridge/server/internal/db"
	"github.com/smsbridge/server/internal/faststore"
	httphandler "github.com/smsbridge/server/internal/http"
	"github.com/smsbridge/server/internal/http/handlers"
	"github.com/smsbridge/server/internal/ingest"
	"github.com/smsbridge/server/internal/onboarding"
	"github.com/smsbridge/server/internal/pipeline"
	"github.com/smsbridge/server/internal/remote"
	"github.com/smsbridge/server/internal/repo"
	"github.com/smsbridge/server/internal/settings"
	"github.com/smsbridge/server/internal/workers"

	_ "github.com/lib/pq"
)

func TestMain(m *testing.M) {
	// Set secrets if unset. DATABASE_URL and REDIS_URL are never defaulted;
	// integration tests skip when they are missing.
	if os.Getenv("HMAC_SECRET") == "" {
		os.Setenv("HMAC_SECRET", "test-hmac-secret-at-least-32-characters")
	}
	if os.Getenv("ADMIN_JWT_SECRET") == "" {
		os.Setenv("ADMIN_JWT_SECRET", "test-admin-secret-at-least-32-chars!!")
	}
	os.Exit(m.Run())
}

// testServer holds the wired stack for integration tests
type testServer struct {
	Server  *httptest.Server
	DB      *sql.DB
	Store   faststore.Store
	JWT     *auth.JWTService
	Workers *workers.Workers
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	if os.Getenv("DATABASE_URL") == "" || os.Getenv("REDIS_URL") == "" {
		t.Skip("DATABASE_URL and REDIS_URL required for integration tests")
	}

	cfg, err := config.Load()
	require.NoError(t, err, "config load must succeed for integration test")

	ctx := context.Background()
	database, err := db.Open(ctx, cfg.DatabaseURL)
	require.NoError(t, err, "database open must succeed; check DATABASE_URL and that test DB exists")
	t.Cleanup(func() { database.Close() })

	require.NoError(t, RunMigrations(database))
	require.NoError(t, TruncateDataTables(ctx, database))
	require.NoError(t, FlushRedis(ctx, cfg.RedisURL))

	store, err := faststore.Open(ctx, cfg.RedisURL)
	require.NoError(t, err, "fast store open must succeed; check REDIS_URL")
	t.Cleanup(func() { store.Close() })

	settingsRepo := repo.NewSettingsRepo(database)
	auditRepo := repo.NewAuditRepo(database)
	onboardingRepo := repo.NewOnboardingRepo(database)
	blacklistRepo := repo.NewBlacklistRepo(database)
	powerDownRepo := repo.NewPowerDownRepo(database)

	settingsCache := settings.NewCache(store, settingsRepo, settings.DefaultTTL)
	onboardingService := onboarding.NewService(store, settingsCache, onboardingRepo, cfg.HMACSecret)
	validationPipeline := pipeline.New(store, settingsCache)
	ingestService := ingest.NewService(store, validationPipeline, settingsCache, powerDownRepo)
	jwtService := auth.NewJWTService(cfg.AdminJWTSecret)
	workerSet := workers.New(store, settingsCache, auditRepo, blacklistRepo, powerDownRepo, ingestService, remote.NewClient(5*time.Second))

	router := httphandler.NewRouter(
		handlers.NewOnboardHandler(onboardingService),
		handlers.NewSMSHandler(ingestService),
		handlers.NewAdminHandler(settingsRepo, blacklistRepo, settingsCache, workerSet),
		handlers.NewHealthHandler(database, store),
		jwtService,
	)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testServer{Server: server, DB: database, Store: store, JWT: jwtService, Workers: workerSet}
}

func (s *testServer) postJSON(t *testing.T, path string, body interface{}, headers map[string]string) (*http.Response, map[string]interface{}) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, s.Server.URL+path, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestOnboardingValidationFlow(t *testing.T) {
	s := newTestServer(t)

	// Register a number for onboarding.
	resp, reg := s.postJSON(t, "/onboard/register", map[string]string{
		"mobile_number": "9876543210",
		"email":         "user@example.com",
		"device_id":     "device-1",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	hash, _ := reg["hash"].(string)
	require.Len(t, hash, 8)

	// The gateway delivers the challenge SMS from the E.164 form.
	resp, verdict := s.postJSON(t, "/sms/receive", map[string]string{
		"mobile_number": "+919876543210",
		"device_id":     "device-1",
		"message":       "ONBOARD:" + hash,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "passed", verdict["status"])
	assert.NotEmpty(t, verdict["message_id"])
	assert.EqualValues(t, 1, verdict["seq_id"])

	// Re-registering the validated pair is rejected.
	resp, _ = s.postJSON(t, "/onboard/register", map[string]string{
		"mobile_number": "9876543210",
		"device_id":     "device-1",
	}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestWrongHashFailsValidation(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.postJSON(t, "/onboard/register", map[string]string{
		"mobile_number": "9876543210",
		"device_id":     "device-1",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, verdict := s.postJSON(t, "/sms/receive", map[string]string{
		"mobile_number": "+919876543210",
		"device_id":     "device-1",
		"message":       "ONBOARD:AAAA2222",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "failed", verdict["status"])
	assert.Equal(t, "header_hash", verdict["failed_at_check"])
}

func TestRegisterInvalidNumber(t *testing.T) {
	s := newTestServer(t)
	resp, body := s.postJSON(t, "/onboard/register", map[string]string{
		"mobile_number": "12345",
		"device_id":     "device-1",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "invalid mobile number")
}

func TestAdminSettingsRoundTrip(t *testing.T) {
	s := newTestServer(t)

	// Unauthenticated access is rejected.
	resp, err := http.Get(s.Server.URL + "/admin/settings")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := s.JWT.SignToken("ops@example.com")
	require.NoError(t, err)
	authHeader := map[string]string{"Authorization": "Bearer " + token}

	// Update a setting through the API.
	raw, _ := json.Marshal(map[string]string{"value": "10"})
	req, err := http.NewRequest(http.MethodPut, s.Server.URL+"/admin/settings/count_check_threshold", bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
	assert.Equal(t, "10", updated["value"])

	// Unknown key is a 404.
	req, err = http.NewRequest(http.MethodPut, s.Server.URL+"/admin/settings/no_such_setting", bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// The whole catalogue lists with the token.
	getReq, err := http.NewRequest(http.MethodGet, s.Server.URL+"/admin/settings", nil)
	require.NoError(t, err)
	for k, v := range authHeader {
		getReq.Header.Set(k, v)
	}
	resp, err = http.DefaultClient.Do(getReq)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var all []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&all))
	assert.NotEmpty(t, all)
}

func TestLocalSyncPersistsVerdicts(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	resp, reg := s.postJSON(t, "/onboard/register", map[string]string{
		"mobile_number": "9876543210",
		"device_id":     "device-1",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	hash, _ := reg["hash"].(string)

	resp, _ = s.postJSON(t, "/sms/receive", map[string]string{
		"mobile_number": "+919876543210",
		"device_id":     "device-1",
		"message":       "ONBOARD:" + hash,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Drive one local sync cycle instead of waiting for the interval.
	require.NoError(t, s.Workers.SyncLocal(ctx))

	auditRepo := repo.NewAuditRepo(s.DB)
	msg, err := auditRepo.GetBySeq(ctx, 1)
	require.NoError(t, err, "audit row for seq 1 should exist after sync")
	assert.Equal(t, "passed", string(msg.Status))
	assert.Equal(t, "9876543210", msg.LocalMobile)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	resp, err := http.Get(s.Server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "up", body["database"])
	assert.Equal(t, "up", body["redis"])
}
