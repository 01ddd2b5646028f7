package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/smsbridge/server/internal/settings"
)

// recoveryTick drives automatic recovery. A failed ping marks the store
// down; the first healthy tick after that runs a full Recover. Healthy ticks
// also watch for captured backlog and for live counters running behind their
// durable snapshots, which catches a store that restarted empty between two
// pings without capturing any messages.
func (w *Workers) recoveryTick(ctx context.Context) error {
	if err := w.store.Ping(ctx); err != nil {
		if !w.storeWasDown {
			log.Printf("Recovery: fast store unreachable: %v", err)
		}
		w.storeWasDown = true
		return nil
	}
	if w.storeWasDown {
		w.storeWasDown = false
		return w.Recover(ctx)
	}

	regressed, err := w.countersRegressed(ctx)
	if err != nil {
		return err
	}
	if regressed {
		return w.Recover(ctx)
	}

	recs, err := w.powerDownRepo.ListUnprocessed(ctx, 1)
	if err != nil {
		return fmt.Errorf("check backlog: %w", err)
	}
	if len(recs) == 0 {
		return nil
	}
	return w.Recover(ctx)
}

// countersRegressed reports whether a live counter has fallen behind its
// durable snapshot. Snapshots only ever trail the live values, so a live
// value below its snapshot means the store lost data.
func (w *Workers) countersRegressed(ctx context.Context) (bool, error) {
	for _, name := range persistedCounters {
		snapshot, err := w.powerDownRepo.GetCounter(ctx, name)
		if err != nil {
			return false, fmt.Errorf("read %s snapshot: %w", name, err)
		}
		if snapshot == 0 {
			continue
		}
		current, err := w.store.GetCounter(ctx, name)
		if err != nil {
			return false, fmt.Errorf("read live %s: %w", name, err)
		}
		if current < snapshot {
			return true, nil
		}
	}
	return false, nil
}

// Recover restores the fast store after an outage: waits for connectivity,
// reinstates sequence counters from their durable snapshots, reloads the
// blacklist cache and replays captured messages through the normal pipeline
// in arrival order. Safe to invoke while healthy; it only moves counters
// forward and an empty backlog replays nothing. Serialized by recoveryMu so
// the poll loop, the startup warm-up and the manual admin trigger never
// drain the same backlog twice.
func (w *Workers) Recover(ctx context.Context) error {
	w.recoveryMu.Lock()
	defer w.recoveryMu.Unlock()

	backoff := retry.WithMaxDuration(30*time.Second, retry.NewExponential(time.Second))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := w.store.Ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("fast store still unreachable: %w", err)
	}

	if err := w.restoreCounters(ctx); err != nil {
		return err
	}
	if err := w.reloadBlacklist(ctx); err != nil {
		return err
	}
	return w.replayBacklog(ctx)
}

// restoreCounters reinstates each persisted counter to the larger of its
// durable snapshot and the live value. A restarted empty store gets the
// snapshot back; a store that never lost data is untouched.
func (w *Workers) restoreCounters(ctx context.Context) error {
	for _, name := range persistedCounters {
		snapshot, err := w.powerDownRepo.GetCounter(ctx, name)
		if err != nil {
			return err
		}
		current, err := w.store.GetCounter(ctx, name)
		if err != nil {
			return fmt.Errorf("read live %s: %w", name, err)
		}
		if snapshot > current {
			if err := w.store.SetCounter(ctx, name, snapshot); err != nil {
				return fmt.Errorf("restore %s: %w", name, err)
			}
			log.Printf("Recovery: counter %s restored to %d (was %d)", name, snapshot, current)
		}
	}
	return nil
}

// replayBacklog pushes captured messages through the pipeline in arrival
// order. Each record is marked processed right after its replay succeeds; a
// failure stops the drain and leaves the remainder for the next attempt.
func (w *Workers) replayBacklog(ctx context.Context) error {
	batch := w.settings.GetInt(ctx, settings.KeySyncBatchSize, 500)
	total := 0
	for {
		recs, err := w.powerDownRepo.ListUnprocessed(ctx, batch)
		if err != nil {
			return fmt.Errorf("list backlog: %w", err)
		}
		if len(recs) == 0 {
			break
		}
		for _, rec := range recs {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			msg, err := w.ingest.Replay(ctx, rec)
			if err != nil {
				return fmt.Errorf("replay record %d: %w", rec.ID, err)
			}
			if err := w.powerDownRepo.MarkProcessed(ctx, rec.ID); err != nil {
				return err
			}
			total++
			log.Printf("Recovery: replayed record %d as seq %d (%s)", rec.ID, msg.Seq, msg.Status)
		}
	}
	if total > 0 {
		log.Printf("Recovery: backlog drained, %d messages replayed", total)
	}
	return nil
}
