// ABOUTME: Single-producer, multiple-subscriber interruption event channel
// ABOUTME: Keeps ordering and cancellation of lifecycle signals explicit
package events

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Kind identifies an interruption lifecycle signal. These are events, not
// errors: they mute output and drive the session state machine.
type Kind int

const (
	// InterruptionBegan reports that an external interruption (call,
	// route change, another app taking the output) started.
	InterruptionBegan Kind = iota

	// InterruptionEnded reports that the interruption finished. Whether
	// playback resumes is the subscriber's policy, never the bus's.
	InterruptionEnded
)

func (k Kind) String() string {
	if k == InterruptionBegan {
		return "began"
	}
	return "ended"
}

// Signal is one interruption event.
type Signal struct {
	Kind Kind
}

// Bus fans interruption signals out to subscribers on the control context.
// Publish never blocks the producer: a subscriber that has fallen behind
// misses intermediate signals rather than stalling delivery to the rest.
type Bus struct {
	mu   sync.Mutex
	subs map[string]chan Signal
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]chan Signal)}
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function. The channel is buffered so the publisher is not
// coupled to the subscriber's pace.
func (b *Bus) Subscribe() (<-chan Signal, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan Signal, 4)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers a signal to every current subscriber without blocking.
func (b *Bus) Publish(sig Signal) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		select {
		case ch <- sig:
		default:
			logrus.WithFields(logrus.Fields{
				"subscriber": id,
				"signal":     sig.Kind.String(),
			}).Warn("interruption signal dropped for slow subscriber")
		}
	}
}

// Subscribers returns the current subscriber count.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
