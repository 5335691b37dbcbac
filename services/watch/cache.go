// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package watch

import (
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/AleutianAI/licenseguard/services/scanner"
)

// DefaultCacheSize bounds the number of cached file results.
const DefaultCacheSize = 4096

var _ scanner.ResultCache = (*ResultCache)(nil)

type cacheEntry struct {
	size    int64
	modTime time.Time
	result  scanner.FileResult
}

// ResultCache is a scanner.ResultCache that reuses a file's result while its
// size and modification time are unchanged.
type ResultCache struct {
	lru    *lru.Cache[string, cacheEntry]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewResultCache creates a cache holding up to size entries.
func NewResultCache(size int) (*ResultCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &ResultCache{lru: c}, nil
}

func (c *ResultCache) Get(cand scanner.Candidate) (scanner.FileResult, bool) {
	e, ok := c.lru.Get(cand.RelPath)
	if !ok || e.size != cand.Size || !e.modTime.Equal(cand.ModTime) {
		c.misses.Add(1)
		return scanner.FileResult{}, false
	}
	c.hits.Add(1)
	return e.result, true
}

func (c *ResultCache) Put(cand scanner.Candidate, r scanner.FileResult) {
	c.lru.Add(cand.RelPath, cacheEntry{size: cand.Size, modTime: cand.ModTime, result: r})
}

// Forget drops the entry for a relative path.
func (c *ResultCache) Forget(rel string) {
	c.lru.Remove(rel)
}

// Len returns the number of cached entries.
func (c *ResultCache) Len() int {
	return c.lru.Len()
}

// Stats returns cumulative hit and miss counts.
func (c *ResultCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
