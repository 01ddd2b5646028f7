// Package workers hosts the background loops: local audit sync, remote
// forwarding, blacklist cache reload, counter persistence and power-down
// recovery. Each loop re-reads its interval from settings every iteration so
// operators can retune without a restart.
package workers

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/smsbridge/server/internal/faststore"
	"github.com/smsbridge/server/internal/ingest"
	"github.com/smsbridge/server/internal/remote"
	"github.com/smsbridge/server/internal/repo"
	"github.com/smsbridge/server/internal/settings"
)

// Workers bundles the background loops and their shared dependencies.
type Workers struct {
	store         faststore.Store
	settings      *settings.Cache
	auditRepo     repo.AuditRepo
	blacklistRepo repo.BlacklistRepo
	powerDownRepo repo.PowerDownRepo
	ingest        *ingest.Service
	remote        *remote.Client

	// recoveryMu serializes Recover runs; storeWasDown is the health state
	// tracked by the recovery poll loop, which is its only accessor.
	recoveryMu   sync.Mutex
	storeWasDown bool
}

// New creates the worker set.
func New(
	store faststore.Store,
	cache *settings.Cache,
	auditRepo repo.AuditRepo,
	blacklistRepo repo.BlacklistRepo,
	powerDownRepo repo.PowerDownRepo,
	ingestSvc *ingest.Service,
	remoteClient *remote.Client,
) *Workers {
	return &Workers{
		store:         store,
		settings:      cache,
		auditRepo:     auditRepo,
		blacklistRepo: blacklistRepo,
		powerDownRepo: powerDownRepo,
		ingest:        ingestSvc,
		remote:        remoteClient,
	}
}

// Run starts all loops and blocks until ctx is cancelled. A loop iteration
// error is logged and the loop keeps going; only ctx cancellation stops Run.
func (w *Workers) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.loop(ctx, "local sync", settings.KeyLocalSyncInterval, 120*time.Second, w.SyncLocal)
	})
	g.Go(func() error {
		return w.loop(ctx, "remote sync", settings.KeyRemoteSyncInterval, 10*time.Second, w.syncRemote)
	})
	g.Go(func() error {
		return w.loop(ctx, "blacklist reload", settings.KeyBlacklistReloadInterval, 300*time.Second, w.reloadBlacklist)
	})
	g.Go(func() error {
		return w.loop(ctx, "counter persist", settings.KeyCounterPersistInterval, 60*time.Second, w.persistCounters)
	})
	g.Go(func() error {
		return w.loop(ctx, "recovery", settings.KeyRecoveryPollInterval, 30*time.Second, w.recoveryTick)
	})

	return g.Wait()
}

// loop runs fn on a settings-driven interval until ctx is cancelled.
func (w *Workers) loop(ctx context.Context, name, intervalKey string, fallback time.Duration, fn func(context.Context) error) error {
	timer := time.NewTimer(w.interval(ctx, intervalKey, fallback))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			log.Printf("Worker %s: %v", name, err)
		}
		timer.Reset(w.interval(ctx, intervalKey, fallback))
	}
}

func (w *Workers) interval(ctx context.Context, key string, fallback time.Duration) time.Duration {
	d := w.settings.GetSeconds(ctx, key, fallback)
	if d <= 0 {
		return fallback
	}
	return d
}
