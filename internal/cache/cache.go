// Copyright 2025 Google LLC
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

package cache

import (
	"fmt"
	"strings"
)

// Cache is a bounded, ordered collection of Blocks implementing
// Frequency-Based Replacement (FBR). Blocks are held in a slice, most
// recently touched at index 0; the slice is partitioned into a new
// section [0, lastNew), a middle section [lastNew, firstOld), and an old
// section [firstOld, len(order)). Only old-section references bump a
// Block's RefCount, and only the old section is ever searched for an
// eviction victim.
//
// A Cache has no internal locking: the filesystem host adapter serializes
// every callback that touches it, so the data structure itself need not
// be reentrant.
type Cache struct {
	blocksize int
	capacity  int
	lastNew   int
	firstOld  int
	root      string // absolute, separator-terminated

	order []*Block
}

// New constructs a Cache. root is the absolute root directory the cache's
// paths are relative to; it is separator-terminated if not already.
//
// fNew and fOld must be in [0,1] with fNew+fOld <= 1, and both
// floor(capacity*fNew) and floor(capacity*fOld) must be strictly
// positive, so neither the new nor the old section is ever empty.
func New(blocksize, capacity int, fOld, fNew float64, root string) (*Cache, error) {
	if blocksize <= 0 {
		return nil, fmt.Errorf("cache: blocksize must be positive, got %d", blocksize)
	}
	if capacity < 1 {
		return nil, fmt.Errorf("cache: capacity must be at least 1, got %d", capacity)
	}
	if fNew < 0 || fNew > 1 || fOld < 0 || fOld > 1 {
		return nil, fmt.Errorf("cache: fOld and fNew must be in [0,1], got fOld=%v fNew=%v", fOld, fNew)
	}
	if fOld+fNew > 1 {
		return nil, fmt.Errorf("cache: fOld+fNew must be <= 1, got %v", fOld+fNew)
	}

	lastNew := int(float64(capacity) * fNew)
	firstOld := capacity - int(float64(capacity)*fOld)

	if lastNew <= 0 {
		return nil, fmt.Errorf("cache: floor(capacity*fNew) must be > 0, got %d", lastNew)
	}
	if capacity-firstOld <= 0 {
		return nil, fmt.Errorf("cache: floor(capacity*fOld) must be > 0, got %d", capacity-firstOld)
	}

	if !strings.HasSuffix(root, "/") {
		root += "/"
	}

	return &Cache{
		blocksize: blocksize,
		capacity:  capacity,
		lastNew:   lastNew,
		firstOld:  firstOld,
		root:      root,
		order:     make([]*Block, 0, capacity),
	}, nil
}

// Blocksize returns the fixed block size this cache was constructed with.
func (c *Cache) Blocksize() int { return c.blocksize }

// Root returns the absolute, separator-terminated root this cache's paths
// are relative to.
func (c *Cache) Root() string { return c.root }

// Len returns the number of Blocks currently resident.
func (c *Cache) Len() int { return len(c.order) }

// Lookup performs a linear scan for the Block with the given (path,
// offset) key and returns its current position, or ok=false on a miss.
// offset must be a multiple of Blocksize().
func (c *Cache) Lookup(path string, offset int64) (index int, ok bool) {
	for i, b := range c.order {
		if b.Offset == offset && b.Path == path {
			return i, true
		}
	}
	return -1, false
}

// BlockAt returns the Block currently at the given position. The returned
// pointer is owned by the cache and must not be retained past the next
// mutation.
func (c *Cache) BlockAt(index int) *Block {
	return c.order[index]
}

// Promote moves the Block at index to position 0. If index was in the old
// section (index >= firstOld) before the move, its RefCount is
// incremented; references inside the new and middle sections are
// considered locality noise and left uncounted. It returns the promoted
// Block, now resident at position 0.
func (c *Cache) Promote(index int) *Block {
	b := c.order[index]
	if index >= c.firstOld {
		b.RefCount++
	}

	copy(c.order[1:index+1], c.order[0:index])
	c.order[0] = b

	return b
}

// Insert constructs a Block with RefCount 1 from the given content and
// places it at position 0. If the cache was already at capacity, exactly
// one Block is evicted afterward so that size never exceeds capacity. It
// returns the newly inserted Block.
func (c *Cache) Insert(path string, offset int64, buffer []byte, length int) *Block {
	full := len(c.order) == c.capacity

	b := &Block{
		Path:     path,
		Offset:   offset,
		Buffer:   buffer,
		Len:      length,
		RefCount: 1,
	}

	c.order = append(c.order, nil)
	copy(c.order[1:], c.order[0:len(c.order)-1])
	c.order[0] = b

	if full {
		c.evict()
	}

	return b
}

// evict removes exactly one Block from the old section: the one with the
// smallest RefCount, breaking ties by preferring the largest index (the
// candidate closest to the tail, i.e. least recently touched). It never
// considers Blocks outside [firstOld, len(order)).
func (c *Cache) evict() {
	victim := c.firstOld
	for i := victim + 1; i < len(c.order); i++ {
		if c.order[i].RefCount <= c.order[victim].RefCount {
			victim = i
		}
	}

	c.order = append(c.order[:victim], c.order[victim+1:]...)
}

// RenameExact rewrites the path of every Block keyed by oldFullPath to
// newFullPath. Used when a regular file is renamed.
func (c *Cache) RenameExact(oldFullPath, newFullPath string) {
	for _, b := range c.order {
		if b.Path == oldFullPath {
			b.Path = newFullPath
		}
	}
}

// RenamePrefix rewrites the path of every Block whose path begins with
// oldDirPath, replacing that prefix with newDirPath. Both oldDirPath and
// newDirPath must be separator-terminated so that a path which merely
// shares a string prefix with oldDirPath, but does not lie inside it, is
// never mis-rewritten. Used when a directory subtree is renamed.
func (c *Cache) RenamePrefix(oldDirPath, newDirPath string) {
	for _, b := range c.order {
		if strings.HasPrefix(b.Path, oldDirPath) {
			b.Path = newDirPath + b.Path[len(oldDirPath):]
		}
	}
}

// Entry is one line of a cache snapshot: a Block's path relative to the
// cache's root, its 1-based block index within its file, and its
// RefCount.
type Entry struct {
	RelPath    string
	BlockIndex int64
	RefCount   int
}

// Snapshot returns every resident Block, ordered from the tail (oldest,
// most evictable) to the head (newest). This is the eviction-candidate
// order the diagnostic dump renders.
func (c *Cache) Snapshot() []Entry {
	entries := make([]Entry, len(c.order))
	for i := range c.order {
		b := c.order[len(c.order)-1-i]
		entries[i] = Entry{
			RelPath:    strings.TrimPrefix(b.Path, c.root),
			BlockIndex: b.Offset/int64(c.blocksize) + 1,
			RefCount:   b.RefCount,
		}
	}
	return entries
}

// Teardown releases every Block and empties the cache.
func (c *Cache) Teardown() {
	c.order = c.order[:0]
}
