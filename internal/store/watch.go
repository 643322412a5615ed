package store

import (
	"context"

	"github.com/matheus3301/hanger/internal/bus"
	"go.uber.org/zap"
)

// Watch streams snapshots of a collection. load runs once immediately and again
// after every committed write to a document under collection; each result is
// delivered on the returned channel. Snapshots are coalesced: when the reader
// falls behind, a pending snapshot is replaced by the newer one, so readers
// never observe an older state after a newer one.
//
// A failing load is logged and delivered as the zero value of T; the stream
// keeps running. The returned function stops the watch, releases the bus
// registration and closes the channel. It is safe to call more than once.
func Watch[T any](db *DB, collection string, load func(context.Context) (T, error)) (<-chan T, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	// Subscribe before the first load so no write between the two is missed.
	// A buffer of one is enough: any pending signal already forces a reload.
	events, unsub := db.bus.Subscribe(bus.DocKind(collection+"/"), 1)
	out := make(chan T, 1)

	go func() {
		defer close(out)
		defer unsub()
		for {
			snap, err := load(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				db.logger.Warn("snapshot load failed", zap.String("collection", collection), zap.Error(err))
				var zero T
				snap = zero
			}

			select {
			case <-out:
			default:
			}
			out <- snap

			select {
			case <-events:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, cancel
}
