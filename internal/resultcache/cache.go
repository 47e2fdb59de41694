// Package resultcache provides the content-addressed analysis report cache:
// bounded size, time-based expiry, and access-count quartile eviction.
// Payloads are stored serialized and LZ4-compressed, so a returned report is
// always a fresh value that cannot alias cache-internal state.
package resultcache

import (
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/pierrec/lz4/v4"

	"github.com/Sumatoshi-tech/codepulse/internal/analysis"
)

// Defaults used when the corresponding option is zero.
const (
	DefaultMaxEntries = 500
	DefaultTTL        = time.Hour
)

// evictionQuarter is the divisor for the quartile evicted under size pressure.
const evictionQuarter = 4

// topAccessedCount is how many entries Stats reports in TopAccessed.
const topAccessedCount = 5

// entry is one cached report. payload is LZ4-block-compressed JSON;
// rawSize is the uncompressed length needed for decompression.
type entry struct {
	key         string
	payload     []byte
	rawSize     int
	compressed  bool
	createdAt   time.Time
	accessCount int64
}

// Cache maps content hashes to compressed analysis reports. All map
// mutation happens under a single mutex; hit/miss counters are atomic for
// lock-free reads.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*entry
	maxEntries int
	ttl        time.Duration

	// now is replaceable in tests to exercise TTL expiry.
	now func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

// AccessStat is one entry's access count, for Stats.TopAccessed.
type AccessStat struct {
	Key         string `json:"key"`
	AccessCount int64  `json:"accessCount"`
}

// Stats is a read-only snapshot of cache state.
type Stats struct {
	EntryCount     int           `json:"entryCount"`
	MaxEntries     int           `json:"maxEntries"`
	TTL            time.Duration `json:"ttl"`
	EstimatedBytes int64         `json:"estimatedBytes"`
	Hits           int64         `json:"hits"`
	Misses         int64         `json:"misses"`
	TopAccessed    []AccessStat  `json:"topAccessed"`
}

// New creates a cache holding at most maxEntries reports for at most ttl.
// Zero values select the defaults.
func New(maxEntries int, ttl time.Duration) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Cache{
		entries:    make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Key returns the content hash for a code string: xxhash over the exact
// UTF-8 bytes, hex encoded. Identical submissions always map to the same
// key within a process run.
func Key(code string) string {
	sum := xxhash.Sum64String(code)

	var buf [8]byte
	for i := range buf {
		buf[i] = byte(sum >> (8 * (7 - i)))
	}

	return hex.EncodeToString(buf[:])
}

// Get returns a fresh copy of the cached report for code, or nil when
// absent. An entry past its TTL is removed and reported as a miss. A hit
// increments the entry's access counter. A payload that fails to decode is
// dropped and treated as a miss.
func (c *Cache) Get(code string) *analysis.Report {
	key := Key(code)

	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)

		return nil
	}

	if c.now().Sub(ent.createdAt) > c.ttl {
		delete(c.entries, key)
		c.misses.Add(1)

		return nil
	}

	report, err := decode(ent)
	if err != nil {
		delete(c.entries, key)
		c.misses.Add(1)

		return nil
	}

	ent.accessCount++
	c.hits.Add(1)

	return report
}

// Put stores a report under the content hash of code. At capacity the
// lowest-access-count quartile (at least one entry) is evicted first. A
// report that fails to serialize is silently not cached; the request
// pipeline treats that as an ordinary miss on the next lookup.
func (c *Cache) Put(code string, report *analysis.Report) {
	if report == nil {
		return
	}

	ent, err := encode(Key(code), report)
	if err != nil {
		return
	}

	ent.createdAt = c.now()
	ent.accessCount = 1

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[ent.key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictQuartile()
	}

	c.entries[ent.key] = ent
}

// SweepExpired removes all entries older than the TTL and, if the cache is
// still over capacity, evicts the lowest-access quartile. Returns the
// number of removed entries.
func (c *Cache) SweepExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	cutoff := c.now()

	for key, ent := range c.entries {
		if cutoff.Sub(ent.createdAt) > c.ttl {
			delete(c.entries, key)

			removed++
		}
	}

	if len(c.entries) > c.maxEntries {
		removed += c.evictQuartile()
	}

	return removed
}

// Clear empties the cache unconditionally.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry)
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Stats returns a snapshot of cache state including the most-accessed keys.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{
		EntryCount: len(c.entries),
		MaxEntries: c.maxEntries,
		TTL:        c.ttl,
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
	}

	top := make([]AccessStat, 0, len(c.entries))

	for _, ent := range c.entries {
		stats.EstimatedBytes += int64(len(ent.payload))

		top = append(top, AccessStat{Key: ent.key, AccessCount: ent.accessCount})
	}

	sort.Slice(top, func(i, j int) bool {
		if top[i].AccessCount != top[j].AccessCount {
			return top[i].AccessCount > top[j].AccessCount
		}

		return top[i].Key < top[j].Key
	})

	if len(top) > topAccessedCount {
		top = top[:topAccessedCount]
	}

	stats.TopAccessed = top

	return stats
}

// evictQuartile removes the bottom 25% of entries ranked by access count
// ascending, never fewer than one. Ties break arbitrarily (map order).
// Caller must hold c.mu.
func (c *Cache) evictQuartile() int {
	if len(c.entries) == 0 {
		return 0
	}

	victims := make([]*entry, 0, len(c.entries))
	for _, ent := range c.entries {
		victims = append(victims, ent)
	}

	sort.Slice(victims, func(i, j int) bool {
		return victims[i].accessCount < victims[j].accessCount
	})

	count := max(len(victims)/evictionQuarter, 1)

	for _, victim := range victims[:count] {
		delete(c.entries, victim.key)
	}

	return count
}

// encode serializes and compresses a report into a cache entry.
func encode(key string, report *analysis.Report) (*entry, error) {
	raw, err := json.Marshal(report)
	if err != nil {
		return nil, err
	}

	compressed := make([]byte, lz4.CompressBlockBound(len(raw)))

	written, err := lz4.CompressBlock(raw, compressed, nil)
	if err != nil || written == 0 {
		// Incompressible payloads are stored raw.
		return &entry{key: key, payload: raw, rawSize: len(raw)}, nil //nolint:nilerr
	}

	return &entry{key: key, payload: compressed[:written], rawSize: len(raw), compressed: true}, nil
}

// decode decompresses and deserializes a cache entry into a fresh report.
func decode(ent *entry) (*analysis.Report, error) {
	raw := ent.payload

	if ent.compressed {
		raw = make([]byte, ent.rawSize)

		_, err := lz4.UncompressBlock(ent.payload, raw)
		if err != nil {
			return nil, err
		}
	}

	var report analysis.Report

	err := json.Unmarshal(raw, &report)
	if err != nil {
		return nil, err
	}

	return &report, nil
}
