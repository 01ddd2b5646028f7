package workers

import (
	"context"
	"fmt"
	"log"

	"go.uber.org/multierr"

	"github.com/smsbridge/server/internal/settings"
)

// syncRemote forwards durably recorded passed records to the central
// backend, oldest first. Each record is marked synced individually so a
// failure mid-batch only delays the remainder. Per-record errors are
// collected; one bad record does not block the rest of the batch.
func (w *Workers) syncRemote(ctx context.Context) error {
	url := w.settings.GetString(ctx, settings.KeySyncURL, "")
	if url == "" {
		return nil
	}
	batch := w.settings.GetInt(ctx, settings.KeySyncBatchSize, 500)

	msgs, err := w.auditRepo.ListUnsyncedPassed(ctx, batch)
	if err != nil {
		return fmt.Errorf("list unsynced: %w", err)
	}
	if len(msgs) == 0 {
		return nil
	}

	var errs error
	pushed := 0
	for _, msg := range msgs {
		if ctx.Err() != nil {
			break
		}
		if err := w.remote.Push(ctx, url, msg); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if err := w.auditRepo.MarkSynced(ctx, msg.Seq); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		pushed++
	}
	if pushed > 0 {
		log.Printf("Remote sync: forwarded %d of %d records", pushed, len(msgs))
	}
	return errs
}
