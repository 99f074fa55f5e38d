// api/util/event_bus.go

package util

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	logger "github.com/aegis-governance/aegis/api/logging"
)

// EventType names an in-process notification topic.
type EventType string

const (
	EventPipelineCompleted EventType = "pipeline.completed"
	EventAuditWriteFailed  EventType = "audit.write_failed"
	EventRuleSetActivated  EventType = "ruleset.activated"
	EventFeedbackReceived  EventType = "feedback.received"
)

// Event is what subscribers receive. Payload is the publisher's own type
// (pipeline result, audit record, rule set version) and At is stamped at
// publish time.
type Event struct {
	Type    EventType
	Payload interface{}
	At      time.Time
}

// EventHandler handles a single delivered event. Returned errors are
// collected and logged by the bus, never propagated to the publisher.
type EventHandler func(context.Context, Event) error

// EventBus fans events out to subscribers without blocking the publishing
// goroutine. Delivery is at-most-once and best-effort: a slow or failing
// handler never stalls a pipeline run.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]EventHandler
	errs        chan error
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]EventHandler),
		errs:        make(chan error, 100),
	}
}

// Subscribe registers a handler for an event type. Handlers registered
// after a Publish do not receive that event.
func (eb *EventBus) Subscribe(eventType EventType, handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], handler)
}

// Publish delivers the payload to every subscriber of the event type, each
// on its own goroutine. It returns immediately.
func (eb *EventBus) Publish(ctx context.Context, eventType EventType, payload interface{}) {
	eb.mu.RLock()
	handlers := eb.subscribers[eventType]
	eb.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	event := Event{
		Type:    eventType,
		Payload: payload,
		At:      time.Now().UTC(),
	}

	for _, handler := range handlers {
		go func(h EventHandler) {
			if err := h(ctx, event); err != nil {
				select {
				case eb.errs <- fmt.Errorf("%s handler: %w", eventType, err):
				default:
					logger.Error("Event error channel full",
						zap.String("eventType", string(eventType)),
						zap.Error(err))
				}
			}
		}(handler)
	}
}

// Start drains handler errors until the context is cancelled.
func (eb *EventBus) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case err := <-eb.errs:
				logger.Error("Event handler error", zap.Error(err))
			case <-ctx.Done():
				return
			}
		}
	}()
}
