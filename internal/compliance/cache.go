package compliance

import (
	"fmt"
	"sync"
	"time"

	"github.com/flyingrobots/wfm-core/internal/gateway"
)

const defaultCacheTTL = 4 * time.Hour

type cacheEntry struct {
	res       Result
	expiresAt time.Time
}

// Cache memoizes ValidateOne results keyed by (employee, range), with a
// fixed TTL and explicit invalidation on block changes, rather than a
// library-level LRU: entries are small, the key space is bounded by
// employee count, and invalidation must be precise (one employee's
// block edit must not evict unrelated employees' cached results).
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

// NewCache builds a Cache with the given TTL; zero uses the 4h default
// from spec.md §4.C.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{ttl: ttl, entries: make(map[string]cacheEntry)}
}

func cacheKey(employeeID string, r gateway.Range) string {
	return fmt.Sprintf("%s|%d|%d", employeeID, r.Start.Unix(), r.End.Unix())
}

// Get returns a cached Result if present and unexpired.
func (c *Cache) Get(employeeID string, r gateway.Range) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[cacheKey(employeeID, r)]
	if !ok || time.Now().After(e.expiresAt) {
		return Result{}, false
	}
	return e.res, true
}

// Put stores a Result under the cache's TTL.
func (c *Cache) Put(employeeID string, r gateway.Range, res Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(employeeID, r)] = cacheEntry{res: res, expiresAt: time.Now().Add(c.ttl)}
}

// InvalidateEmployee drops every cached Result for one employee,
// regardless of range, called when a block change is observed for that
// employee (§4.C "invalidated on block-change").
func (c *Cache) InvalidateEmployee(employeeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := employeeID + "|"
	for k := range c.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.entries, k)
		}
	}
}
