package dispatch

// eventBusCapacity bounds the agent-event channel. Publishers never block on
// it — spec.md §4.H: "every agent-event publish must be non-blocking and
// lossy if the channel is full (bounded)" — so a slow or absent consumer
// cannot stall command execution.
const eventBusCapacity = 256

// Event is a single agent-visible occurrence produced while a command runs
// (an output chunk, a lifecycle marker). Shape kept deliberately small: it
// mirrors what the dispatcher itself needs to emit, not a general event
// model.
type Event struct {
	Type    string
	Content string
	Data    map[string]string
}

// EventBus is the bounded, lossy fan-out a dispatcher publishes command
// stdout/stderr chunks and structured events to. Display of these events is
// an explicit Non-goal (spec.md §1: "agent event bus display") — this type
// only models the publish side the dispatcher itself is responsible for.
type EventBus struct {
	ch chan Event
}

// NewEventBus creates a bus with the standard bounded capacity.
func NewEventBus() *EventBus {
	return &EventBus{ch: make(chan Event, eventBusCapacity)}
}

// Events exposes the receive side for a caller that wants to consume them.
func (b *EventBus) Events() <-chan Event {
	if b == nil {
		return nil
	}
	return b.ch
}

// Publish is non-blocking: if the channel is full the event is dropped
// rather than stalling the command that produced it.
func (b *EventBus) Publish(evt Event) {
	if b == nil {
		return
	}
	select {
	case b.ch <- evt:
	default:
	}
}

func (b *EventBus) publishChunk(kind, cmdID string, data []byte) {
	b.Publish(Event{
		Type:    kind,
		Content: string(data),
		Data:    map[string]string{"cmd_id": cmdID},
	})
}
