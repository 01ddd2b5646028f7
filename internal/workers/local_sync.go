package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/smsbridge/server/internal/faststore"
	"github.com/smsbridge/server/internal/model"
	"github.com/smsbridge/server/internal/settings"
)

// SyncLocal copies verdict records from the fast store into the durable
// input_sms table. Progress is tracked by a low-water mark counter: every
// sequence id at or below it has been durably recorded. The mark only
// advances after the batch commits, so a crash mid-batch re-copies rows
// instead of losing them. Runs on the worker interval and on demand.
func (w *Workers) SyncLocal(ctx context.Context) error {
	lwm, err := w.store.GetCounter(ctx, faststore.CounterSyncedLWM)
	if err != nil {
		return fmt.Errorf("read sync mark: %w", err)
	}
	current, err := w.store.GetCounter(ctx, faststore.CounterInputSMS)
	if err != nil {
		return fmt.Errorf("read message counter: %w", err)
	}
	if current <= lwm {
		return nil
	}

	batch := int64(w.settings.GetInt(ctx, settings.KeySyncBatchSize, 500))
	stalePendingAfter := 3 * w.interval(ctx, settings.KeyLocalSyncInterval, 120*time.Second)
	high := current
	if high > lwm+batch {
		high = lwm + batch
	}

	var msgs []model.InboundMessage
	newMark := lwm
	for seq := lwm + 1; seq <= high; seq++ {
		fields, err := w.store.HGetAll(ctx, faststore.MessageKey(seq))
		if err != nil {
			return fmt.Errorf("read message %d: %w", seq, err)
		}
		if fields == nil {
			// Expired before sync caught up. Nothing left to copy; skipping
			// keeps the mark moving.
			log.Printf("Local sync: message %d expired before sync", seq)
			newMark = seq
			continue
		}
		msg := faststore.ParseMessage(fields)
		if msg.Status == model.StatusPending {
			if time.Since(msg.ReceivedAt) <= stalePendingAfter {
				// Verdict not in yet; stop here and let the next run pick
				// it up.
				break
			}
			// A record still pending this long after arrival lost its
			// pipeline run to an outage and was re-captured under a new
			// id. Skip it like an expired one so the mark keeps moving.
			log.Printf("Local sync: message %d stuck pending, skipping", seq)
			newMark = seq
			continue
		}
		msgs = append(msgs, msg)
		newMark = seq
	}

	if err := w.auditRepo.UpsertBatch(ctx, msgs); err != nil {
		return fmt.Errorf("copy batch: %w", err)
	}
	if newMark > lwm {
		if err := w.store.SetCounter(ctx, faststore.CounterSyncedLWM, newMark); err != nil {
			return fmt.Errorf("advance sync mark: %w", err)
		}
	}
	if len(msgs) > 0 {
		log.Printf("Local sync: copied %d records, mark now %d", len(msgs), newMark)
	}
	return nil
}
