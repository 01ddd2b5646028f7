package workers

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/smsbridge/server/internal/faststore"
)

// persistedCounters are the fast-store counters snapshotted to the durable
// store so sequence ids survive a fast-store restart.
var persistedCounters = []string{
	faststore.CounterInputSMS,
	faststore.CounterOnboarding,
	faststore.CounterSyncedLWM,
}

// persistCounters snapshots the sequence counters into power_down_counters.
// After a fast-store wipe the recovery path restores from these snapshots,
// so sequence ids keep increasing instead of restarting from zero and
// colliding with already-audited records.
func (w *Workers) persistCounters(ctx context.Context) error {
	var errs error
	for _, name := range persistedCounters {
		value, err := w.store.GetCounter(ctx, name)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("read %s: %w", name, err))
			continue
		}
		if err := w.powerDownRepo.UpsertCounter(ctx, name, value); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("snapshot %s: %w", name, err))
		}
	}
	return errs
}
