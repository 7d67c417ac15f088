package store

import (
	"sort"

	lru "github.com/hashicorp/golang-lru"

	"github.com/tendermint/lightnode/types"
)

// Cache is a bounded, thread-safe record of light blocks that were fetched or
// validated but are not (yet) trusted. The least recently used entry is
// evicted once the cache is full.
//
// Nothing that decides trust reads from a Cache.
type Cache struct {
	lru *lru.Cache
}

// NewCache returns a Cache holding at most size light blocks.
func NewCache(size int) (*Cache, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: c}, nil
}

// Add records the light block at lb.Height, replacing any previous entry.
func (c *Cache) Add(lb *types.LightBlock) {
	if lb == nil || lb.SignedHeader == nil || lb.Header == nil {
		return
	}
	c.lru.Add(lb.Height, lb)
}

// Get returns the light block recorded at height, if any.
func (c *Cache) Get(height uint64) (*types.LightBlock, bool) {
	v, ok := c.lru.Get(height)
	if !ok {
		return nil, false
	}
	return v.(*types.LightBlock), true
}

// Len returns the number of recorded light blocks.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Heights returns the recorded heights in ascending order.
func (c *Cache) Heights() []uint64 {
	keys := c.lru.Keys()
	heights := make([]uint64, 0, len(keys))
	for _, k := range keys {
		heights = append(heights, k.(uint64))
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })
	return heights
}
