package utils

import (
	"context"
	"sync"
)

type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type Handler func(event Event)

// EventBus fans engine signals out to attached sinks (console renderer,
// future UI transports). Publish blocks instead of dropping: feed signals
// are ordered and lossless, so backpressure propagates to the publisher.
type EventBus struct {
	subscribers map[string][]Handler
	events      chan Event
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string][]Handler),
		events:      make(chan Event, 100),
	}
}

func (eb *EventBus) Publish(event string, data interface{}) {
	eb.events <- Event{Event: event, Data: data}
}

func (eb *EventBus) Subscribe(event string, handler Handler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers[event] = append(eb.subscribers[event], handler)
}

// Run dispatches published events to subscribers until the context is
// cancelled. Handlers run on the dispatch goroutine, in publish order.
func (eb *EventBus) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-eb.events:
			eb.mu.RLock()
			handlers := eb.subscribers[e.Event]
			eb.mu.RUnlock()
			for _, handler := range handlers {
				handler(e)
			}
		}
	}
}
