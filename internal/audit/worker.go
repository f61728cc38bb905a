package audit

import (
	"context"
	"log"
)

// Worker decouples the workflow's hot path from broker latency: the
// workflow enqueues after commit and moves on, the worker drains the inbox
// and publishes. Delivery is best effort; a full inbox drops the event
// rather than stalling a grant.
type Worker struct {
	publisher Publisher
	inbox     chan Event
	log       *log.Logger
}

func NewWorker(publisher Publisher, buffer int, logger *log.Logger) *Worker {
	if buffer <= 0 {
		buffer = 256
	}
	return &Worker{
		publisher: publisher,
		inbox:     make(chan Event, buffer),
		log:       logger,
	}
}

// Enqueue hands an event to the worker without blocking.
func (w *Worker) Enqueue(event Event) {
	select {
	case w.inbox <- event:
	default:
		if w.log != nil {
			w.log.Printf("audit inbox full, dropping %s event for %s/%s",
				event.ActionType, event.EntityType, event.EntityID)
		}
	}
}

// Run drains the inbox until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.publisher.Publish(ctx, event); err != nil && w.log != nil {
				w.log.Printf("audit publish failed for %s/%s: %v",
					event.EntityType, event.EntityID, err)
			}
		}
	}
}
