// ABOUTME: Tests for the interruption event bus
// ABOUTME: Covers fan-out, cancellation, and non-blocking publish
package events

import (
	"testing"
	"time"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	b := NewBus()

	ch1, cancel1 := b.Subscribe()
	ch2, cancel2 := b.Subscribe()
	defer cancel1()
	defer cancel2()

	b.Publish(Signal{Kind: InterruptionBegan})

	for i, ch := range []<-chan Signal{ch1, ch2} {
		select {
		case sig := <-ch:
			if sig.Kind != InterruptionBegan {
				t.Errorf("subscriber %d got %v, want InterruptionBegan", i, sig.Kind)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d never received the signal", i)
		}
	}
}

func TestCancelClosesChannel(t *testing.T) {
	b := NewBus()

	ch, cancel := b.Subscribe()
	if b.Subscribers() != 1 {
		t.Fatalf("Subscribers() = %d, want 1", b.Subscribers())
	}

	cancel()
	if b.Subscribers() != 0 {
		t.Errorf("Subscribers() after cancel = %d, want 0", b.Subscribers())
	}

	if _, ok := <-ch; ok {
		t.Error("channel still open after cancel")
	}

	// A second cancel is a no-op.
	cancel()
}

func TestPublishNeverBlocks(t *testing.T) {
	b := NewBus()

	_, cancel := b.Subscribe()
	defer cancel()

	// Overfill the subscriber's buffer; publish must return regardless.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(Signal{Kind: InterruptionEnded})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestOrderingPreserved(t *testing.T) {
	b := NewBus()
	ch, cancel := b.Subscribe()
	defer cancel()

	b.Publish(Signal{Kind: InterruptionBegan})
	b.Publish(Signal{Kind: InterruptionEnded})

	first := <-ch
	second := <-ch
	if first.Kind != InterruptionBegan || second.Kind != InterruptionEnded {
		t.Errorf("signals out of order: %v then %v", first.Kind, second.Kind)
	}
}

func TestKindString(t *testing.T) {
	if InterruptionBegan.String() != "began" || InterruptionEnded.String() != "ended" {
		t.Error("unexpected Kind string values")
	}
}
