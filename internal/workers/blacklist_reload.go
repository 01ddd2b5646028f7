package workers

import (
	"context"
	"fmt"
	"log"

	"github.com/smsbridge/server/internal/faststore"
)

// reloadBlacklist rebuilds the fast-store blacklist set from the durable
// table. The replacement is atomic, so the blacklist check never observes a
// half-loaded set; the durable table is the source of truth.
func (w *Workers) reloadBlacklist(ctx context.Context) error {
	numbers, err := w.blacklistRepo.ListNumbers(ctx)
	if err != nil {
		return fmt.Errorf("load blacklist: %w", err)
	}
	if err := w.store.ReplaceSet(ctx, faststore.SetBlacklist, numbers); err != nil {
		return fmt.Errorf("replace blacklist set: %w", err)
	}
	log.Printf("Blacklist reload: %d numbers cached", len(numbers))
	return nil
}
