package consensus

import (
	"sync"

	"github.com/praizmiky/massa/models"
)

// FilledBlock pairs a header with the operations it committed to, the
// broadcast payload for subscribe_new_filled_blocks (spec.md §6).
type FilledBlock struct {
	Header     models.BlockHeader
	Operations [][]byte
}

// Broadcaster fans newly-active blocks, headers, filled blocks and missing
// block ids out to any number of subscribers over buffered channels; a
// mutex guards the subscriber set, and Publish never waits on a subscriber
// (spec.md §4.9: "a full sink is a non-fatal drop"). One Broadcaster
// instance serves one of the four event kinds; Worker owns four.
type Broadcaster[T any] struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan T
	cap    int
}

// NewBroadcaster returns a Broadcaster whose subscriber channels are
// buffered to capacity.
func NewBroadcaster[T any](capacity int) *Broadcaster[T] {
	return &Broadcaster[T]{subs: make(map[int]chan T), cap: capacity}
}

// Subscribe returns a receive-only channel fed by every future Publish
// call, and a handle to pass to Unsubscribe.
func (b *Broadcaster[T]) Subscribe() (<-chan T, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	ch := make(chan T, b.cap)
	b.subs[id] = ch
	return ch, id
}

// Unsubscribe closes and removes the channel identified by id.
func (b *Broadcaster[T]) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		close(ch)
		delete(b.subs, id)
	}
}

// Publish sends event to every subscriber without blocking; a subscriber
// whose buffer is full drops the event (spec.md §4.9: "a full sink is a
// non-fatal drop (subscriber lag)").
func (b *Broadcaster[T]) Publish(event T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Close shuts down every subscriber channel, used when the worker exits
// (spec.md §5: "the worker finishes the in-flight command, emits a final
// snapshot, then joins").
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}
