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

package readpipeline_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orlykor/fbrfs/internal/cache"
	"github.com/orlykor/fbrfs/internal/readpipeline"
)

const blocksize = 4096

// fakeFile is an in-memory BlockFetcher standing in for the underlying
// file, counting how many times it is actually invoked so tests can
// assert on cache-hit behavior (testable property 6).
type fakeFile struct {
	content []byte
	fetches int
}

func (f *fakeFile) FetchBlock(ctx context.Context, path string, offset int64, buf []byte) (int, error) {
	f.fetches++
	if offset >= int64(len(f.content)) {
		return 0, nil
	}
	n := copy(buf, f.content[offset:])
	return n, nil
}

func repeatingContent(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 256)
	}
	return b
}

func newCache(t *testing.T, capacity int) *cache.Cache {
	t.Helper()
	c, err := cache.New(blocksize, capacity, 1.0/3, 1.0/3, "/root")
	require.NoError(t, err)
	return c
}

func TestReadZeroSizeIsNoop(t *testing.T) {
	c := newCache(t, 3)
	f := &fakeFile{content: repeatingContent(8192)}
	dest := make([]byte, 16)

	n, err := readpipeline.Read(context.Background(), c, f, "/root/f", dest, 0, 0)

	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, f.fetches)
	assert.Equal(t, 0, c.Len())
}

func TestReadNegativeOffsetIsNoop(t *testing.T) {
	c := newCache(t, 3)
	f := &fakeFile{content: repeatingContent(8192)}
	dest := make([]byte, 16)

	n, err := readpipeline.Read(context.Background(), c, f, "/root/f", dest, 16, -1)

	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, f.fetches)
}

// S5: unaligned read spanning two blocks.
func TestUnalignedReadSpanningTwoBlocks(t *testing.T) {
	c := newCache(t, 3)
	content := repeatingContent(8192)
	f := &fakeFile{content: content}
	dest := make([]byte, blocksize)

	n, err := readpipeline.Read(context.Background(), c, f, "/root/f", dest, blocksize, 100)

	require.NoError(t, err)
	assert.Equal(t, blocksize, n)
	assert.Equal(t, content[100:100+blocksize], dest)
	assert.Equal(t, 2, f.fetches)
	require.Equal(t, 2, c.Len())
	assert.Equal(t, int64(4096), c.BlockAt(0).Offset, "most recently touched block (second fetched) is at head")
	assert.Equal(t, int64(0), c.BlockAt(1).Offset)
}

// S6: short tail file.
func TestShortTailFile(t *testing.T) {
	c := newCache(t, 3)
	f := &fakeFile{content: repeatingContent(5000)}
	dest := make([]byte, 8192)

	n, err := readpipeline.Read(context.Background(), c, f, "/root/f", dest, 8192, 0)

	require.NoError(t, err)
	assert.Equal(t, 5000, n)

	idx, ok := c.Lookup("/root/f", 0)
	require.True(t, ok)
	assert.Equal(t, blocksize, c.BlockAt(idx).Len)

	idx, ok = c.Lookup("/root/f", 4096)
	require.True(t, ok)
	assert.Equal(t, 904, c.BlockAt(idx).Len)

	n2, err := readpipeline.Read(context.Background(), c, f, "/root/f", dest, 16, 5000)
	require.NoError(t, err)
	assert.Equal(t, 0, n2, "a read starting at EOF returns 0")
}

func TestFullyCachedRegionIssuesNoUnderlyingIO(t *testing.T) {
	c := newCache(t, 3)
	f := &fakeFile{content: repeatingContent(8192)}
	dest := make([]byte, blocksize)

	_, err := readpipeline.Read(context.Background(), c, f, "/root/f", dest, blocksize, 0)
	require.NoError(t, err)
	fetchesAfterFirst := f.fetches
	require.Greater(t, fetchesAfterFirst, 0)

	_, err = readpipeline.Read(context.Background(), c, f, "/root/f", dest, blocksize, 0)
	require.NoError(t, err)
	assert.Equal(t, fetchesAfterFirst, f.fetches, "a second read over an already-cached block must not touch the underlying file")
}

func TestRepeatedReadIsByteIdentical(t *testing.T) {
	c := newCache(t, 3)
	f := &fakeFile{content: repeatingContent(8192)}
	dest1 := make([]byte, 500)
	dest2 := make([]byte, 500)

	_, err := readpipeline.Read(context.Background(), c, f, "/root/f", dest1, 500, 1000)
	require.NoError(t, err)
	_, err = readpipeline.Read(context.Background(), c, f, "/root/f", dest2, 500, 1000)
	require.NoError(t, err)

	assert.Equal(t, dest1, dest2)
}
