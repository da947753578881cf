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

// Package readpipeline decomposes a (path, offset, size) read request into
// a sequence of block-aligned accesses against the block cache, fetching
// whatever is missing from the underlying file.
package readpipeline

import (
	"context"
	"unsafe"

	"github.com/orlykor/fbrfs/internal/cache"
)

// BlockFetcher performs block-aligned positional I/O against the
// underlying file identified by path. offset is always a multiple of the
// cache's block size. It fills buf and returns the number of bytes
// actually read (less than len(buf) at end-of-file, zero at or past
// end-of-file).
type BlockFetcher interface {
	FetchBlock(ctx context.Context, path string, offset int64, buf []byte) (n int, err error)
}

// Read serves up to size bytes of path starting at offset into dest,
// consulting c for each block and delegating misses to fetcher. It
// returns the number of bytes written into dest, which is always <= size
// and may be < size only at end-of-file. It never issues unaligned I/O to
// fetcher and never writes past dest[size-1].
//
// A size of 0, or an offset that is negative, returns 0 immediately and
// performs no cache mutation.
func Read(
	ctx context.Context,
	c *cache.Cache,
	fetcher BlockFetcher,
	path string,
	dest []byte,
	size int,
	offset int64,
) (int, error) {
	if size <= 0 || offset < 0 {
		return 0, nil
	}

	blocksize := int64(c.Blocksize())
	firstBlock := offset / blocksize
	skew := offset - firstBlock*blocksize

	produced := 0
	remaining := size
	inBlockStart := int(skew)

	for i := int64(0); ; i++ {
		key := firstBlock + i
		blockOffset := key * blocksize

		var block *cache.Block
		if idx, ok := c.Lookup(path, blockOffset); ok {
			block = c.Promote(idx)
		} else {
			buf := newAlignedBuffer(c.Blocksize())
			n, err := fetcher.FetchBlock(ctx, path, blockOffset, buf)
			if err != nil {
				return produced, err
			}
			if n == 0 {
				return produced, nil
			}
			block = c.Insert(path, blockOffset, buf, n)
		}

		take := block.Len - inBlockStart
		if take > remaining {
			take = remaining
		}
		if take <= 0 {
			return produced, nil
		}

		copy(dest[produced:produced+take], block.Buffer[inBlockStart:inBlockStart+take])
		produced += take

		if block.Len < c.Blocksize() {
			return produced, nil
		}

		remaining -= take
		if remaining == 0 {
			return produced, nil
		}
		inBlockStart = 0
	}
}

// newAlignedBuffer allocates a buffer of exactly size bytes, aligned to at
// least size, as required for direct I/O. No library in the retrieval
// pack offers a general-purpose aligned allocator for this narrow need
// (mmap-backed alternatives exist but are a poor fit for a single
// fixed-size block); the classic over-allocate-and-slice technique is used
// instead.
func newAlignedBuffer(size int) []byte {
	raw := make([]byte, size+size)
	start := 0
	if addr := uintptr(unsafe.Pointer(&raw[0])); addr%uintptr(size) != 0 {
		start = size - int(addr%uintptr(size))
	}
	return raw[start : start+size : start+size]
}
