package dispatch

import "testing"

func TestEventBusPublishAndReceive(t *testing.T) {
	b := NewEventBus()
	b.Publish(Event{Type: "stdout", Content: "hi"})

	select {
	case evt := <-b.Events():
		if evt.Content != "hi" {
			t.Errorf("expected content %q, got %q", "hi", evt.Content)
		}
	default:
		t.Fatal("expected a buffered event")
	}
}

func TestEventBusDropsWhenFull(t *testing.T) {
	b := &EventBus{ch: make(chan Event, 1)}
	b.Publish(Event{Type: "stdout", Content: "first"})
	b.Publish(Event{Type: "stdout", Content: "second"})

	evt := <-b.Events()
	if evt.Content != "first" {
		t.Errorf("expected first event to survive, got %q", evt.Content)
	}
	select {
	case <-b.Events():
		t.Fatal("expected second publish to be dropped, channel should be empty")
	default:
	}
}

func TestEventBusNilReceiverIsSafe(t *testing.T) {
	var b *EventBus
	b.Publish(Event{Type: "stdout"})
	if b.Events() != nil {
		t.Error("nil bus should report nil Events channel")
	}
}
