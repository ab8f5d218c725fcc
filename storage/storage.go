// Package storage provides the opaque block-storage handle the consensus
// graph core is built around without owning: a reference-counted store
// keyed by block id, modeled on the teacher's trie.RefCountDB (claim/drop
// instead of reference/dereference, block bytes instead of trie nodes).
package storage

import (
	"errors"
	"sync"

	"github.com/praizmiky/massa/models"
)

// ErrRefCountNegative is returned when a drop would take a block's reference
// count negative.
var ErrRefCountNegative = errors.New("storage: reference count went negative")

// ErrClosed is returned when operating on a closed store.
var ErrClosed = errors.New("storage: store is closed")

// entry holds one stored block's bytes and live reference count.
type entry struct {
	block models.WrappedBlock
	refs  int64
}

// Store is a reference-counted in-memory block store. Every ActiveBlock
// holds a claimed Handle into this store for as long as it is part of the
// graph (spec.md §5: "Resource discipline ... Parent claims are issued on
// insert and released on prune."). Safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	entries map[models.BlockId]*entry
	closed  bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{entries: make(map[models.BlockId]*entry)}
}

// Insert stores a block's bytes with a reference count of zero, if not
// already tracked. The block is not pinned until ClaimRef is called.
func (s *Store) Insert(block models.WrappedBlock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if _, ok := s.entries[block.Id]; ok {
		return
	}
	s.entries[block.Id] = &entry{block: block}
}

// Get returns the stored block, if present.
func (s *Store) Get(id models.BlockId) (models.WrappedBlock, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return models.WrappedBlock{}, false
	}
	return e.block, true
}

// Has reports whether id is tracked by the store, regardless of ref count.
func (s *Store) Has(id models.BlockId) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[id]
	return ok
}

// RefCount returns the current reference count for id.
func (s *Store) RefCount(id models.BlockId) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return 0
	}
	return e.refs
}

// ClaimRef increments id's reference count and returns a Handle whose
// Release drops exactly that one claim. Fails with false if id is unknown
// to the store (spec.md §4.4: "claim parent references ... all THREAD_COUNT
// parents must resolve for non-final blocks, else fail with MissingBlock").
func (s *Store) ClaimRef(id models.BlockId) (*Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false
	}
	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	e.refs++
	return &Handle{store: s, id: id, released: false}, true
}

// dropRef decrements id's reference count, removing the entry entirely once
// it reaches zero. Returns ErrRefCountNegative if the count would go below
// zero, which indicates a double-release bug at the call site.
func (s *Store) dropRef(id models.BlockId) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil
	}
	e.refs--
	if e.refs < 0 {
		e.refs = 0
		return ErrRefCountNegative
	}
	if e.refs == 0 {
		delete(s.entries, id)
	}
	return nil
}

// Len returns the number of tracked blocks, referenced or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close marks the store closed, preventing further inserts and claims.
// Existing handles may still be released.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Handle is a single claimed reference into a Store, implementing
// models.StorageHandle. Release is idempotent: releasing an already-released
// handle is a no-op, matching the "guaranteed on every exit path" discipline
// spec.md §5 requires of ActiveBlock's status-transition routine.
type Handle struct {
	mu       sync.Mutex
	store    *Store
	id       models.BlockId
	released bool
}

// Release drops this handle's claim. Safe to call multiple times and safe
// for concurrent use, though in practice only the worker thread calls it.
func (h *Handle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return
	}
	h.released = true
	_ = h.store.dropRef(h.id)
}

// BlockId returns the block id this handle pins.
func (h *Handle) BlockId() models.BlockId {
	return h.id
}

var _ models.StorageHandle = (*Handle)(nil)
