package events

import (
	"context"
	"log"

	"bridge-backend/internal/bridge"
)

// MultiPublisher fans one bridge event out to several sinks (NATS stream,
// WebSocket hub, ...). A failing sink does not stop delivery to the others;
// the first error is returned so the endpoint can log it.
type MultiPublisher struct {
	sinks []bridge.Publisher
}

func NewMultiPublisher(sinks ...bridge.Publisher) *MultiPublisher {
	return &MultiPublisher{sinks: sinks}
}

// Add registers another sink. Not safe for concurrent use with Publish;
// call during wiring only.
func (m *MultiPublisher) Add(sink bridge.Publisher) {
	m.sinks = append(m.sinks, sink)
}

// Publish implements bridge.Publisher.
func (m *MultiPublisher) Publish(ctx context.Context, event bridge.Event) error {
	var firstErr error
	for _, sink := range m.sinks {
		if err := sink.Publish(ctx, event); err != nil {
			log.Printf("⚠️ [Events] sink delivery failed for %s event: %v", event.Type, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
