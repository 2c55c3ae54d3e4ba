package monitoring

import (
	"context"

	"github.com/eben2468/srcwebsite-sub012/internal/infrastructure/eventbus"
)

// EventRecorder turns chat domain events into counters. Attach it with
// Attach; it only observes.
type EventRecorder struct {
	monitor *Monitor
}

// NewEventRecorder creates a metrics-collecting event subscriber.
func NewEventRecorder(monitor *Monitor) *EventRecorder {
	return &EventRecorder{monitor: monitor}
}

// Attach subscribes the recorder to every event on bus.
func (h *EventRecorder) Attach(bus eventbus.Bus) func() {
	return bus.Subscribe(eventbus.Wildcard, h.Handle)
}

// Handle 记录单个事件
func (h *EventRecorder) Handle(ctx context.Context, ev eventbus.Event) {
	switch p := ev.Payload().(type) {
	case eventbus.SessionStartedPayload:
		h.monitor.IncSessionStarted()
		if !p.Assigned {
			h.monitor.IncSessionQueued()
		}
	case eventbus.SessionAssignedPayload:
		if p.Auto {
			h.monitor.IncSessionAutoAssigned()
		} else {
			h.monitor.IncSessionAssigned()
		}
	case eventbus.MessageSentPayload:
		if !p.Message.IsSystem() {
			h.monitor.IncMessageSent()
		}
	case eventbus.MessagesReadPayload:
		h.monitor.AddMessagesRead(p.Count)
	case eventbus.SessionEndedPayload:
		h.monitor.IncSessionEnded()
	}
}
