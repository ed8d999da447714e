package profile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/waypost-app/pubflow/internal/ledger"
	"github.com/waypost-app/pubflow/internal/list"
)

// Migrate copies every non-empty list of src onto fresh topics owned by the
// destination profile, linking each new topic into dst as it goes, and ends
// by clearing the shared cache wholesale so no view serves entries keyed by
// the old topics.
//
// Each list uses the Coordinator's lazy-creation path (WriteArray with no
// duplicate detection), so a partially failed migration resumes the same way
// a partially failed add does.
func Migrate(ctx context.Context, client ledger.Client, cache *list.Cache, src Record, dst *Store, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	defer cache.Clear()

	for _, kind := range list.Kinds {
		srcTopic := src.ListTopic(kind)
		if srcTopic.Empty() {
			continue
		}

		reader := list.NewCoordinator(client, cache, kind, srcTopic, list.WithLogger(log))
		if err := reader.Load(ctx, srcTopic); err != nil {
			return fmt.Errorf("migrate %s: %w", kind, err)
		}
		items := reader.State().Items
		if len(items) == 0 {
			continue
		}

		writer := list.NewCoordinator(client, cache, kind, "",
			list.WithLogger(log),
			list.WithBackRefUpdater(dst.Updater()),
			list.WithPropagationWait(0),
		)
		if _, err := writer.WriteArray(ctx, items); err != nil {
			return fmt.Errorf("migrate %s: %w", kind, err)
		}
		log.Info("migrated list", "kind", kind.String(), "items", len(items))
	}
	return nil
}
