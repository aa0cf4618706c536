package monitor

// blockCache is a bounded, per-network map that memoizes blockHash ->
// txids lookups within and across cycles. When it exceeds 2*threshold
// entries, the oldest 25% (by insertion order) are dropped.
type blockCache struct {
	maxEntries int
	order      []string
	txids      map[string][]string
}

func newBlockCache(threshold int) *blockCache {
	return &blockCache{
		maxEntries: 2 * threshold,
		txids:      make(map[string][]string),
	}
}

// get returns the cached txids for blockHash, if present.
func (c *blockCache) get(blockHash string) ([]string, bool) {
	txids, ok := c.txids[blockHash]
	return txids, ok
}

// put stores txids for blockHash, evicting the oldest 25% of entries (by
// insertion order) once the cache exceeds maxEntries.
func (c *blockCache) put(blockHash string, txids []string) {
	if _, exists := c.txids[blockHash]; !exists {
		c.order = append(c.order, blockHash)
	}
	c.txids[blockHash] = txids

	if len(c.order) <= c.maxEntries {
		return
	}

	evict := len(c.order) / 4
	if evict == 0 {
		evict = 1
	}

	for _, h := range c.order[:evict] {
		delete(c.txids, h)
	}
	c.order = c.order[evict:]
}

// clear drops all entries, called whenever a cycle fails so the next cycle
// fetches fresh data.
func (c *blockCache) clear() {
	c.order = nil
	c.txids = make(map[string][]string)
}
