package events

import (
	"testing"
	"time"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	bus := NewBus()
	ch1, cancel1 := bus.Subscribe()
	ch2, cancel2 := bus.Subscribe()
	defer cancel1()
	defer cancel2()

	bus.Publish(Event{Kind: Started})

	for _, ch := range []chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Kind != Started {
				t.Fatalf("expected started, got %v", ev.Kind)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	// Overfill the subscriber buffer; Publish must not hang.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 64; i++ {
			bus.Publish(Event{Kind: IndexChanged, Old: int64(i), New: int64(i + 1)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	if len(ch) != cap(ch) {
		t.Fatalf("expected buffer full (%d), got %d", cap(ch), len(ch))
	}
}

func TestCancelClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after cancel")
	}
	// Publishing after cancel must not panic.
	bus.Publish(Event{Kind: Stopped})
}

func TestForwardReemits(t *testing.T) {
	src := make(chan Event, 1)
	bus := NewBus()
	out, cancel := bus.Subscribe()
	defer cancel()

	bus.Forward(src)
	src <- Event{Kind: SenderNeedsRestart}
	close(src)

	select {
	case ev := <-out:
		if ev.Kind != SenderNeedsRestart {
			t.Fatalf("expected sender-needs-restart, got %v", ev.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("forwarded event never arrived")
	}
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		Started:            "started",
		Stopped:            "stopped",
		IndexChanged:       "index-changed",
		SenderNeedsRestart: "sender-needs-restart",
		Kind(99):           "unknown",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
