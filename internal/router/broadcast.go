// Package router implements the routing fabric: a broadcast channel that
// carries every frame received on any endpoint to every endpoint's sender.
// Publishing never blocks; a subscriber that falls behind loses its oldest
// frames and is told how many it lost.
package router

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/jwidauer/mavlink-shouter/internal/mavlink"
)

// Broadcaster fans frames out to all subscriptions. Frames share their
// underlying bytes across subscribers; no copy is made per recipient.
type Broadcaster struct {
	mu       sync.RWMutex
	subs     []*Subscription
	capacity int
	closed   bool
}

// NewBroadcaster creates a broadcaster whose subscribers each buffer up to
// capacity frames.
func NewBroadcaster(capacity int) *Broadcaster {
	if capacity <= 0 {
		capacity = 1
	}
	return &Broadcaster{capacity: capacity}
}

// Subscribe registers a new subscription. Subscribing after Close returns an
// already-closed subscription.
func (b *Broadcaster) Subscribe() *Subscription {
	sub := &Subscription{ch: make(chan mavlink.Frame, b.capacity)}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs = append(b.subs, sub)
	return sub
}

// Publish delivers a frame to every subscription. A subscription with a full
// buffer loses its oldest frame instead of blocking the publisher. Publish
// reports false once the broadcaster is closed.
func (b *Broadcaster) Publish(f mavlink.Frame) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return false
	}
	for _, sub := range b.subs {
		sub.offer(f)
	}
	return true
}

// Close tears the fabric down: every subscription's Recv starts reporting
// closed once its buffer drains.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub.ch)
	}
	b.subs = nil
}

// Subscription is one consumer's view of the broadcast channel.
type Subscription struct {
	ch     chan mavlink.Frame
	lagged atomic.Uint64
}

// offer enqueues without blocking, dropping the subscriber's oldest frame on
// overflow.
func (s *Subscription) offer(f mavlink.Frame) {
	select {
	case s.ch <- f:
		return
	default:
	}
	// Buffer full: evict the oldest frame, then retry once. The retry can
	// still lose the race against a concurrent publisher refilling the
	// buffer; the frame counts as lost either way.
	select {
	case <-s.ch:
		s.lagged.Add(1)
	default:
	}
	select {
	case s.ch <- f:
	default:
		s.lagged.Add(1)
	}
}

// Recv blocks until a frame is available, the subscription is closed, or the
// context is cancelled. lagged is the number of frames this subscriber lost
// since the previous Recv; closed subscriptions and cancelled contexts report
// ok=false.
func (s *Subscription) Recv(ctx context.Context) (f mavlink.Frame, lagged uint64, ok bool) {
	select {
	case f, ok = <-s.ch:
		return f, s.lagged.Swap(0), ok
	case <-ctx.Done():
		return mavlink.Frame{}, s.lagged.Swap(0), false
	}
}
