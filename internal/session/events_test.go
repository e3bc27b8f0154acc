package session

import (
	"context"
	"testing"
	"time"
)

func TestBroadcasterDeliversToAllSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := newBroadcaster()
	a := b.Subscribe(ctx)
	c := b.Subscribe(ctx)

	evt := Event{Type: EventLoggedIn, At: time.Now()}
	b.Publish(evt)

	for _, ch := range []<-chan Event{a, c} {
		select {
		case got := <-ch:
			if got.Type != EventLoggedIn {
				t.Fatalf("got event %q, want %q", got.Type, EventLoggedIn)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber did not receive event")
		}
	}
}

func TestBroadcasterClosesOnContextEnd(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := newBroadcaster()
	ch := b.Subscribe(ctx)
	cancel()

	select {
	case _, open := <-ch:
		if open {
			t.Fatalf("received event instead of close")
		}
	case <-time.After(time.Second):
		t.Fatalf("channel not closed after context end")
	}
}

func TestBroadcasterDropsWhenSubscriberIsSlow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := newBroadcaster()
	ch := b.Subscribe(ctx)

	// Fill the buffer and then some; Publish must never block.
	for i := 0; i < 40; i++ {
		b.Publish(Event{Type: EventRefreshed})
	}

	n := 0
	for {
		select {
		case <-ch:
			n++
		default:
			if n == 0 || n > 16 {
				t.Fatalf("buffered %d events, want 1..16", n)
			}
			return
		}
	}
}
