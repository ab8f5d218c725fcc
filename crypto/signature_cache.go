// signature_cache.go implements a cache of Schnorr signature verification
// results. Verifying a block header's signature is the most expensive
// per-block operation on the ingest path; caching the result keyed by
// (pubkey || hash || signature) avoids redundant work when the same header
// is re-delivered (duplicate gossip, re-validation after a reorg).
package crypto

import (
	"sync/atomic"

	"github.com/VictoriaMetrics/fastcache"

	"github.com/praizmiky/massa/models"
)

// DefaultSigCacheSizeBytes is the default cache size in bytes.
const DefaultSigCacheSizeBytes = 32 * 1024 * 1024

// SigCacheEntry holds a cached verification result.
type SigCacheEntry struct {
	Signer models.Address
	Valid  bool
}

// SignatureCache is a concurrent-safe cache for Schnorr signature
// verification results, backed by fastcache's fixed-size, GC-friendly byte
// cache. Exposes hit/miss counters for observability.
type SignatureCache struct {
	cache  *fastcache.Cache
	hits   atomic.Int64
	misses atomic.Int64
}

// NewSignatureCache creates a new signature verification cache with the
// given maximum size in bytes. If maxBytes <= 0, DefaultSigCacheSizeBytes is
// used.
func NewSignatureCache(maxBytes int) *SignatureCache {
	if maxBytes <= 0 {
		maxBytes = DefaultSigCacheSizeBytes
	}
	return &SignatureCache{cache: fastcache.New(maxBytes)}
}

// SigCacheKey derives a deterministic cache key from a public key, message
// hash and signature: Keccak256(pubkey || hash || sig).
func SigCacheKey(pub models.PublicKey, hash models.BlockId, sig models.Signature) models.BlockId {
	return Keccak256BlockId(pub[:], hash[:], sig[:])
}

// encodeSigCacheEntry returns the fixed 33-byte wire form of a SigCacheEntry: address(32)
// || valid(1).
func encodeSigCacheEntry(e SigCacheEntry) []byte {
	buf := make([]byte, models.AddressLength+1)
	copy(buf, e.Signer[:])
	if e.Valid {
		buf[models.AddressLength] = 1
	}
	return buf
}

func decodeSigCacheEntry(buf []byte) (SigCacheEntry, bool) {
	if len(buf) != models.AddressLength+1 {
		return SigCacheEntry{}, false
	}
	var e SigCacheEntry
	copy(e.Signer[:], buf[:models.AddressLength])
	e.Valid = buf[models.AddressLength] != 0
	return e, true
}

// Get looks up a cached verification result.
func (c *SignatureCache) Get(key models.BlockId) (SigCacheEntry, bool) {
	buf, ok := c.cache.HasGet(nil, key[:])
	if !ok {
		c.misses.Add(1)
		return SigCacheEntry{}, false
	}
	entry, ok := decodeSigCacheEntry(buf)
	if !ok {
		c.misses.Add(1)
		return SigCacheEntry{}, false
	}
	c.hits.Add(1)
	return entry, true
}

// Add inserts a verification result into the cache.
func (c *SignatureCache) Add(key models.BlockId, entry SigCacheEntry) {
	c.cache.Set(key[:], encodeSigCacheEntry(entry))
}

// Has checks whether a key exists in the cache without affecting hit/miss
// counters.
func (c *SignatureCache) Has(key models.BlockId) bool {
	return c.cache.Has(key[:])
}

// Hits returns the number of cache hits since creation.
func (c *SignatureCache) Hits() int64 { return c.hits.Load() }

// Misses returns the number of cache misses since creation.
func (c *SignatureCache) Misses() int64 { return c.misses.Load() }

// HitRate returns the cache hit rate as a fraction [0, 1].
func (c *SignatureCache) HitRate() float64 {
	h := c.hits.Load()
	m := c.misses.Load()
	total := h + m
	if total == 0 {
		return 0
	}
	return float64(h) / float64(total)
}

// Reset removes all entries from the cache and resets counters.
func (c *SignatureCache) Reset() {
	c.cache.Reset()
	c.hits.Store(0)
	c.misses.Store(0)
}

// Len returns the approximate number of entries currently in the cache.
func (c *SignatureCache) Len() int {
	var stats fastcache.Stats
	c.cache.UpdateStats(&stats)
	return int(stats.EntriesCount)
}
