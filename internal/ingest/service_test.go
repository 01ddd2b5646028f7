package ingest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smsbridge/server/internal/faststore"
	"github.com/smsbridge/server/internal/model"
	"github.com/smsbridge/server/internal/pipeline"
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

// fakePowerDownRepo records captured messages in memory.
type fakePowerDownRepo struct {
	records  []model.PowerDownRecord
	counters map[string]int64
	nextID   int64
}

func newFakePowerDownRepo() *fakePowerDownRepo {
	return &fakePowerDownRepo{counters: make(map[string]int64)}
}

func (f *fakePowerDownRepo) InsertRecord(ctx context.Context, rec model.PowerDownRecord) (int64, error) {
	f.nextID++
	rec.ID = f.nextID
	f.records = append(f.records, rec)
	return rec.ID, nil
}

func (f *fakePowerDownRepo) ListUnprocessed(ctx context.Context, limit int) ([]model.PowerDownRecord, error) {
	var out []model.PowerDownRecord
	for _, r := range f.records {
		if !r.Processed {
			out = append(out, r)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakePowerDownRepo) MarkProcessed(ctx context.Context, id int64) error {
	for i := range f.records {
		if f.records[i].ID == id {
			f.records[i].Processed = true
			return nil
		}
	}
	return repo.ErrNotFound
}

func (f *fakePowerDownRepo) UpsertCounter(ctx context.Context, name string, value int64) error {
	f.counters[name] = value
	return nil
}

func (f *fakePowerDownRepo) GetCounter(ctx context.Context, name string) (int64, error) {
	return f.counters[name], nil
}

func newTestService() (*Service, *faststore.Stub, *fakePowerDownRepo) {
	store := faststore.NewStub()
	cache := settings.NewCache(store, fakeSettingsRepo{}, time.Minute)
	pl := pipeline.New(store, cache)
	powerDown := newFakePowerDownRepo()
	return NewService(store, pl, cache, powerDown), store, powerDown
}

func TestReceive_assignsSequentialIDs(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	r1, err := svc.Receive(ctx, "+919876543210", "d1", "hello", time.Now())
	require.NoError(t, err)
	r2, err := svc.Receive(ctx, "+919876543210", "d1", "hello again", time.Now())
	require.NoError(t, err)

	assert.Equal(t, int64(1), r1.Msg.Seq)
	assert.Equal(t, int64(2), r2.Msg.Seq)
	assert.False(t, r1.Deferred)
	// No challenge registered: the verdict is a normal fail, not an error.
	assert.Equal(t, model.StatusFailed, r1.Msg.Status)
	assert.Equal(t, model.CheckHeaderHash, r1.Msg.FailedAtCheck)
}

func TestReceive_fallsBackWhenStoreDown(t *testing.T) {
	svc, store, powerDown := newTestService()
	ctx := context.Background()
	receivedAt := time.Now().UTC()

	store.SetDown(true)
	result, err := svc.Receive(ctx, "+919876543210", "d1", "ONBOARD:ABCD2345", receivedAt)
	require.NoError(t, err)

	assert.True(t, result.Deferred)
	assert.Equal(t, model.StatusPending, result.Msg.Status)
	assert.Zero(t, result.Msg.Seq)

	require.Len(t, powerDown.records, 1)
	rec := powerDown.records[0]
	assert.Equal(t, "+919876543210", rec.Number)
	assert.Equal(t, "ONBOARD:ABCD2345", rec.Text)
	assert.True(t, rec.ReceivedAt.Equal(receivedAt))
	assert.False(t, rec.Processed)
}

func TestReplay_processesWithoutFallback(t *testing.T) {
	svc, store, powerDown := newTestService()
	ctx := context.Background()

	store.SetDown(true)
	_, err := svc.Receive(ctx, "+919876543210", "d1", "ONBOARD:ABCD2345", time.Now())
	require.NoError(t, err)

	// Store back: the captured record replays through the normal path and
	// gets a real sequence id and verdict.
	store.SetDown(false)
	msg, err := svc.Replay(ctx, powerDown.records[0])
	require.NoError(t, err)
	assert.Equal(t, int64(1), msg.Seq)
	assert.Equal(t, model.StatusFailed, msg.Status)

	// Store down again during replay: the error surfaces, no second capture.
	store.SetDown(true)
	_, err = svc.Replay(ctx, powerDown.records[0])
	require.Error(t, err)
	assert.True(t, faststore.IsUnavailable(err))
	assert.Len(t, powerDown.records, 1)
}
