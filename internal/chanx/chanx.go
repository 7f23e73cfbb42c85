// Copyright 2018 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package chanx provides the two channel families from spec.md §4.A: bounded
// "must-send" async senders (a failed send means the receiver side of a
// process-internal channel is gone, which is a bug, not a condition to
// handle gracefully) and broadcast senders that fan a single source out to
// many subscribers, surfacing backpressure as a "lagged" notification
// instead of silently dropping.
package chanx

import (
	"sync"

	"github.com/ferrobar/ferrobar/internal/log"
)

// DefaultCapacity is the default bound for a must-send channel, chosen to
// match spec.md §4.A's "default capacity 32-64".
const DefaultCapacity = 64

// Sender is a bounded, single-consumer channel with must-send semantics.
type Sender[T any] struct {
	ch chan T
}

// NewSender creates a Sender with the given buffer capacity.
func NewSender[T any](capacity int) *Sender[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	s := &Sender[T]{ch: make(chan T, capacity)}
	log.Register(s, "sender")
	return s
}

// Recv exposes the receiving side of the channel.
func (s *Sender[T]) Recv() <-chan T { return s.ch }

// SendExpect sends v, and fatals the process if the channel is full. On a
// bounded queue whose only consumer is part of this process and cannot
// legitimately close or stop draining during steady-state operation, a full
// buffer means a bug (a stuck consumer, or a send-rate bug), not a
// transient condition - so this call site is deliberately not "handled".
func (s *Sender[T]) SendExpect(v T) {
	select {
	case s.ch <- v:
	default:
		log.Fatal("%s: must-send channel full, consumer is stuck or missing", log.ID(s))
	}
}

// SendSpawn detaches a goroutine that performs a (possibly blocking) send,
// so that callers outside of a dedicated event loop don't block on a full
// channel. Use this from UI click handlers and other call sites that must
// not stall.
func (s *Sender[T]) SendSpawn(v T) {
	go func() { s.ch <- v }()
}

// Close closes the channel, which is how the core cancels the task reading
// from it (cooperative cancellation, spec.md §5).
func (s *Sender[T]) Close() { close(s.ch) }

// Broadcaster fans a single producer out to many consumers, each with its
// own bounded backlog. A slow consumer does not block the producer or other
// consumers: instead of dropping silently, it receives a "lagged by N"
// notification on its Lagged() channel so it can log a warning, matching
// spec.md §4.A and §5's backpressure policy.
type Broadcaster[T any] struct {
	mu     sync.Mutex
	subs   map[*Subscription[T]]struct{}
	closed bool
}

// NewBroadcaster constructs an empty broadcaster.
func NewBroadcaster[T any]() *Broadcaster[T] {
	b := &Broadcaster[T]{subs: map[*Subscription[T]]struct{}{}}
	log.Register(b, "broadcast")
	return b
}

// Subscription is one consumer's view of a Broadcaster.
type Subscription[T any] struct {
	ch     chan T
	lagged chan int
	b      *Broadcaster[T]
	missed int
}

// Subscribe creates a new subscription with the given backlog capacity
// (spec.md §5: "typical 16-64").
func (b *Broadcaster[T]) Subscribe(capacity int) *Subscription[T] {
	if capacity <= 0 {
		capacity = 32
	}
	sub := &Subscription[T]{
		ch:     make(chan T, capacity),
		lagged: make(chan int, 1),
		b:      b,
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	log.Register(sub, "sub")
	return sub
}

// Recv returns the channel of delivered values.
func (s *Subscription[T]) Recv() <-chan T { return s.ch }

// Lagged fires with the number of values dropped since the last report,
// whenever this subscription could not keep up with the producer.
func (s *Subscription[T]) Lagged() <-chan int { return s.lagged }

// Unsubscribe removes this subscription from its broadcaster.
func (s *Subscription[T]) Unsubscribe() {
	s.b.mu.Lock()
	delete(s.b.subs, s)
	s.b.mu.Unlock()
}

// Publish sends v to every current subscriber. Subscribers that are full
// are skipped (their value is merged into their lagged count) rather than
// blocking the publish - this is the "send_expect" contract made safe for
// fan-out, since a publisher (controller task) must never stall because
// one widget subscriber is slow.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for sub := range b.subs {
		select {
		case sub.ch <- v:
		default:
			sub.missed++
			select {
			case sub.lagged <- sub.missed:
			default:
			}
			log.Fine("broadcast", "%s lagged by %d", log.ID(sub), sub.missed)
		}
	}
}

// Close closes every current subscriber's channel and marks the broadcaster
// closed; this is how a client's end-of-stream (spec.md §4.D failure
// semantics) propagates to every subscriber.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for sub := range b.subs {
		close(sub.ch)
	}
	b.subs = map[*Subscription[T]]struct{}{}
}

// Notifier is a coalescing single-slot notification channel: multiple
// notifications collapse into one pending wakeup, so a UI-thread consumer
// that is busy never falls behind by more than one "something changed"
// signal. Used by base.Value-style state holders and the popup registry's
// change feed.
type Notifier struct {
	ch chan struct{}
}

// NewNotifier constructs a Notifier with capacity 1.
func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan struct{}, 1)}
}

// C returns the notification channel.
func (n *Notifier) C() <-chan struct{} { return n.ch }

// Notify signals the channel, coalescing with a pending unconsumed signal.
func (n *Notifier) Notify() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}
