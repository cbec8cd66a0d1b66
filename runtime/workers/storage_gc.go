package workers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// StorageGCWorker runs BadgerDB value-log garbage collection on a
// fixed interval. Badger never reclaims value-log space on its own;
// a long-lived server has to drive it.
type StorageGCWorker struct {
	log        *slog.Logger
	db         *badger.DB
	gcInterval time.Duration
}

func NewStorageGCWorker(log *slog.Logger, db *badger.DB, gcInterval time.Duration) *StorageGCWorker {
	return &StorageGCWorker{log: log, db: db, gcInterval: gcInterval}
}

func (w *StorageGCWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping storage GC")
			return nil
		case <-ticker.C:
			// One value-log file per pass; loop until nothing is
			// left to rewrite.
			for {
				err := w.db.RunValueLogGC(0.5)
				if errors.Is(err, badger.ErrNoRewrite) {
					break
				}
				if err != nil {
					w.log.Warn("value-log GC failed", "error", err)
					break
				}
				w.log.Debug("value-log file reclaimed")
			}
		}
	}
}
