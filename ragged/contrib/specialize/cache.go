// Copyright 2025 go-highway Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package specialize caches shape-specialized execution plans. A plan is
// whatever can be precomputed from shapes alone (segment offsets, gather
// tables), built once per distinct shape and reused by later calls with the
// same shape. Kernels produce the same values with or without a plan.
package specialize

import (
	"sync"
	"sync/atomic"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Cache is a bounded, concurrency-safe LRU map from shape keys to plans.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	entries  *orderedmap.OrderedMap[K, V]

	hits, misses atomic.Int64
}

// NewCache returns a cache holding at most capacity plans. A capacity of 0
// disables caching: every lookup builds a fresh plan.
func NewCache[K comparable, V any](capacity int) *Cache[K, V] {
	return &Cache[K, V]{
		capacity: max(capacity, 0),
		entries:  orderedmap.New[K, V](),
	}
}

// GetOrBuild returns the plan cached under key, calling build to create and
// cache it on a miss. Build errors are returned and nothing is cached.
// build runs without the lock held, so concurrent misses on the same key
// may both build; the first to finish wins.
func (c *Cache[K, V]) GetOrBuild(key K, build func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	c.misses.Add(1)
	v, err := build()
	if err != nil || c.capacity == 0 {
		return v, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries.Get(key); ok {
		return existing, nil
	}
	c.entries.Set(key, v)
	for c.entries.Len() > c.capacity {
		c.entries.Delete(c.entries.Oldest().Key)
	}
	return v, nil
}

// Get returns the plan cached under key and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries.Get(key)
	if ok {
		c.hits.Add(1)
		_ = c.entries.MoveToBack(key)
	}
	return v, ok
}

// Len returns the number of cached plans.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Keys returns the cached keys from least to most recently used.
func (c *Cache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]K, 0, c.entries.Len())
	for pair := c.entries.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Stats reports the number of lookups served from the cache and the number
// that had to build a plan.
func (c *Cache[K, V]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Purge drops every cached plan.
func (c *Cache[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = orderedmap.New[K, V]()
}
