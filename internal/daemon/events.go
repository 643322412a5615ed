package daemon

import (
	"github.com/matheus3301/hanger/internal/bus"
	"github.com/matheus3301/hanger/internal/upload"
	"go.uber.org/zap"
)

// logUploadEvents records upload phase changes in the daemon log until the
// returned function is called.
func logUploadEvents(b *bus.Bus, logger *zap.Logger) func() {
	ch, unsub := b.Subscribe(bus.UploadPhaseChanged, 64)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case evt := <-ch:
				pc, ok := evt.Payload.(upload.PhaseChange)
				if !ok {
					continue
				}
				logger.Info("upload phase changed",
					zap.String("upload_id", pc.UploadID),
					zap.String("from", string(pc.From)),
					zap.String("to", string(pc.To)))
			case <-done:
				return
			}
		}
	}()
	return func() {
		unsub()
		close(done)
	}
}
