package events

import (
	"context"
	"testing"
	"time"

	"signescrow/core/types"
)

func committed(kind string) Committed {
	return Committed{Sequence: 1, Event: &types.Event{Type: kind}}
}

func TestHubDeliversInOrder(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := hub.Subscribe(ctx, 4)

	hub.Emit(committed("first"))
	hub.Emit(committed("second"))
	for _, want := range []string{"first", "second"} {
		select {
		case evt := <-ch:
			if evt.EventType() != want {
				t.Fatalf("got %s, want %s", evt.EventType(), want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestHubDropsForSlowSubscribers(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = hub.Subscribe(ctx, 1)

	hub.Emit(committed("a"))
	hub.Emit(committed("b"))
	if hub.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", hub.Dropped())
	}
}

func TestHubClosesOnCancel(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	ch := hub.Subscribe(ctx, 1)
	if hub.Subscribers() != 1 {
		t.Fatalf("subscribers = %d", hub.Subscribers())
	}
	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatalf("subscription not closed")
	}
	if hub.Subscribers() != 0 {
		t.Fatalf("subscriber not removed")
	}
}

func TestMultiSkipsNil(t *testing.T) {
	var rec Recorder
	Multi{nil, &rec, NoopEmitter{}}.Emit(committed("x"))
	if len(rec.Events()) != 1 {
		t.Fatalf("recorder saw %d events", len(rec.Events()))
	}
}
