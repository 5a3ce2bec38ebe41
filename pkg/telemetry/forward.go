package telemetry

import (
	"context"
	"log"
)

// Forward publishes records from in until in closes or ctx is done. The
// station is announced online first and offline last. Publish failures are
// logged and do not stop forwarding.
func Forward(ctx context.Context, in <-chan Record, pub Publisher) error {
	if err := pub.PublishState(StateOnline); err != nil {
		log.Printf("Failed to publish state: %v", err)
	}
	defer func() {
		if err := pub.PublishState(StateOffline); err != nil {
			log.Printf("Failed to publish state: %v", err)
		}
	}()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r, ok := <-in:
			if !ok {
				return nil
			}
			if err := pub.Publish(r); err != nil {
				if failures%100 == 0 {
					log.Printf("Failed to publish record (%d failures): %v", failures+1, err)
				}
				failures++
			}
		}
	}
}
