package monitor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlockCacheGetPut(t *testing.T) {
	c := newBlockCache(4)

	_, ok := c.get("hash-1")
	require.False(t, ok)

	c.put("hash-1", []string{"tx-a", "tx-b"})
	txids, ok := c.get("hash-1")
	require.True(t, ok)
	require.Equal(t, []string{"tx-a", "tx-b"}, txids)
}

func TestBlockCacheEvictsOldestQuarterPastCapacity(t *testing.T) {
	c := newBlockCache(2) // maxEntries = 4

	for i := 0; i < 4; i++ {
		c.put(hashFor(i), []string{hashFor(i)})
	}
	require.Len(t, c.order, 4)

	// One more insertion pushes the cache past maxEntries and triggers
	// eviction of the oldest 25% (1 entry).
	c.put(hashFor(4), []string{hashFor(4)})

	_, ok := c.get(hashFor(0))
	require.False(t, ok, "oldest entry should have been evicted")

	for i := 1; i <= 4; i++ {
		_, ok := c.get(hashFor(i))
		require.True(t, ok)
	}
}

func TestBlockCacheClear(t *testing.T) {
	c := newBlockCache(4)
	c.put("hash-1", []string{"tx-a"})
	c.clear()

	_, ok := c.get("hash-1")
	require.False(t, ok)
	require.Empty(t, c.order)
}

func hashFor(i int) string {
	return string(rune('a' + i))
}
