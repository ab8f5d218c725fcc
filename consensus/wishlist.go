package consensus

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/holiman/bloomfilter/v2"

	"github.com/praizmiky/massa/models"
)

// blockIDHash64 adapts a models.BlockId to the hash.Hash64 interface
// bloomfilter.Filter expects, using the same xxhash already used to bucket
// PreHashSet/PreHashMap entries so a wishlist id and its status-map bucket
// agree on one hash family.
type blockIDHash64 models.BlockId

func (h blockIDHash64) Sum64() uint64                   { return xxhash.Sum64(h[:]) }
func (h blockIDHash64) Write(p []byte) (int, error)     { return len(p), nil }
func (h blockIDHash64) Sum(b []byte) []byte             { return b }
func (h blockIDHash64) Reset()                          {}
func (h blockIDHash64) Size() int                       { return 8 }
func (h blockIDHash64) BlockSize() int                  { return 8 }

// Wishlist tracks which block ids the worker has already asked the protocol
// layer for, so a dependency resolving through multiple paths (a parent and
// an endorsed block both naming the same missing id) only triggers one
// network request. It is a probabilistic front end: false
// positives only cost a skipped re-request, never correctness, since the
// driver's own dependency tracker is the source of truth for what is
// actually still missing.
type Wishlist struct {
	mu     sync.Mutex
	filter *bloomfilter.Filter
	cap    uint64
}

// NewWishlist sizes a fresh bloom filter for approximately capacity
// concurrently-outstanding wishlist entries (max_future_processing_blocks,
// spec.md §6) at a 1% false-positive rate.
func NewWishlist(capacity uint64) *Wishlist {
	if capacity == 0 {
		capacity = 1
	}
	filter, err := bloomfilter.NewOptimal(capacity, 0.01)
	if err != nil {
		// NewOptimal only fails on a zero/negative capacity or rate, both
		// guarded against above; a panic here would indicate a Wishlist
		// constructed with an impossible configuration.
		panic(err)
	}
	return &Wishlist{filter: filter, cap: capacity}
}

// ShouldRequest reports whether id has not already been requested, and
// records it as requested if so. Called once per newly-discovered missing
// dependency before emitting it to the protocol layer.
func (w *Wishlist) ShouldRequest(id models.BlockId) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	h := blockIDHash64(id)
	if w.filter.Contains(h) {
		return false
	}
	w.filter.Add(h)
	return true
}

// Reset clears every recorded entry (the filter has no way to un-set a bit
// for a single id). The worker never calls it, so in a running node an id
// stays recorded once requested and the false-positive rate grows with the
// number of ids recorded.
func (w *Wishlist) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	filter, err := bloomfilter.NewOptimal(w.cap, 0.01)
	if err != nil {
		panic(err)
	}
	w.filter = filter
}
