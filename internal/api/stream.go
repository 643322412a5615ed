package api

import "github.com/matheus3301/hanger/internal/rpc"

// forward relays snapshots from a live stream to a gRPC client until either
// side goes away. It always releases the stream.
func forward[T, W any](out rpc.Sender[W], ch <-chan T, stop func(), convert func(T) *W) error {
	defer stop()
	for {
		select {
		case v, ok := <-ch:
			if !ok {
				return nil
			}
			if err := out.Send(convert(v)); err != nil {
				return err
			}
		case <-out.Context().Done():
			return nil
		}
	}
}
