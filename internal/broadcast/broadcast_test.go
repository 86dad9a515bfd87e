package broadcast_test

import (
	"context"
	"testing"
	"time"

	"github.com/glaretechnologies/substrata-sub005/internal/broadcast"
	"github.com/glaretechnologies/substrata-sub005/internal/idgen"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	d := broadcast.NewDispatcher(8)
	sub := d.Subscribe("main")
	defer d.Unsubscribe("main", sub)

	d.Publish("main", broadcast.Event{Kind: broadcast.EventChatMessage, Payload: []byte("hi")})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, ok := sub.Receive(ctx)
	if !ok {
		t.Fatalf("expected an event, got none")
	}
	if ev.Kind != broadcast.EventChatMessage || string(ev.Payload) != "hi" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestPublishDoesNotCrossWorlds(t *testing.T) {
	d := broadcast.NewDispatcher(8)
	subA := d.Subscribe("a")
	subB := d.Subscribe("b")
	defer d.Unsubscribe("a", subA)
	defer d.Unsubscribe("b", subB)

	d.Publish("a", broadcast.Event{Kind: broadcast.EventChatMessage})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, ok := subB.Receive(ctx); ok {
		t.Fatalf("subscriber of world b should not receive world a's event")
	}
}

func TestUpdateObjectCoalescesByUID(t *testing.T) {
	d := broadcast.NewDispatcher(1) // capacity 1 forces coalescing to matter
	sub := d.Subscribe("main")
	defer d.Unsubscribe("main", sub)

	uid := idgen.UID(7)
	d.Publish("main", broadcast.Event{Kind: broadcast.EventUpdateObject, UID: uid, Payload: []byte("v1")})
	d.Publish("main", broadcast.Event{Kind: broadcast.EventUpdateObject, UID: uid, Payload: []byte("v2")})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, ok := sub.Receive(ctx)
	if !ok {
		t.Fatalf("expected one coalesced event")
	}
	if string(ev.Payload) != "v2" {
		t.Fatalf("got payload %q, want latest value %q", ev.Payload, "v2")
	}

	ctx2, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	if _, ok := sub.Receive(ctx2); ok {
		t.Fatalf("expected no second event: coalescing should have collapsed both into one")
	}
}

func TestFullQueueMarksLaggedInsteadOfBlocking(t *testing.T) {
	d := broadcast.NewDispatcher(1)
	sub := d.Subscribe("main")
	defer d.Unsubscribe("main", sub)

	d.Publish("main", broadcast.Event{Kind: broadcast.EventChatMessage, Payload: []byte("a")})
	d.Publish("main", broadcast.Event{Kind: broadcast.EventChatMessage, Payload: []byte("b")})

	if !sub.TakeLagged() {
		t.Fatalf("expected lagged flag to be set after overflowing capacity-1 queue")
	}
	if sub.TakeLagged() {
		t.Fatalf("TakeLagged should clear the flag on first read")
	}
}

func TestQueueDepthReflectsUndeliveredEvents(t *testing.T) {
	d := broadcast.NewDispatcher(8)
	sub := d.Subscribe("main")
	defer d.Unsubscribe("main", sub)

	if d.QueueDepth() != 0 {
		t.Fatalf("expected zero depth before any publish")
	}
	d.Publish("main", broadcast.Event{Kind: broadcast.EventChatMessage})
	d.Publish("main", broadcast.Event{Kind: broadcast.EventChatMessage})
	if got := d.QueueDepth(); got != 2 {
		t.Fatalf("got queue depth %d, want 2", got)
	}
}

func TestSubscriberCount(t *testing.T) {
	d := broadcast.NewDispatcher(8)
	if d.SubscriberCount("main") != 0 {
		t.Fatalf("expected zero subscribers initially")
	}
	sub := d.Subscribe("main")
	if d.SubscriberCount("main") != 1 {
		t.Fatalf("expected one subscriber after Subscribe")
	}
	d.Unsubscribe("main", sub)
	if d.SubscriberCount("main") != 0 {
		t.Fatalf("expected zero subscribers after Unsubscribe")
	}
}
