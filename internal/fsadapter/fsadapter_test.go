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

package fsadapter

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/jacobsa/fuse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orlykor/fbrfs/internal/cache"
)

func TestIsMaskedPath(t *testing.T) {
	assert.True(t, isMaskedPath("/.filesystem.log"))
	assert.False(t, isMaskedPath("/.filesystem.logX"))
	assert.False(t, isMaskedPath("/dir/.filesystem.log"))
}

func TestInodeTableAssignsStablyAndLazily(t *testing.T) {
	tbl := newInodeTable()

	root, ok := tbl.pathFor(1) // fuseops.RootInodeID
	require.True(t, ok)
	assert.Equal(t, "/", root)

	a1 := tbl.idFor("/a")
	a2 := tbl.idFor("/a")
	assert.Equal(t, a1, a2, "repeated lookups of the same path return the same inode")

	b := tbl.idFor("/b")
	assert.NotEqual(t, a1, b)

	p, ok := tbl.pathFor(a1)
	require.True(t, ok)
	assert.Equal(t, "/a", p)
}

func TestInodeTableRenameFile(t *testing.T) {
	tbl := newInodeTable()
	id := tbl.idFor("/a")

	tbl.rename("/a", "/z", false)

	_, ok := tbl.pathFor(id)
	require.True(t, ok)
	p, _ := tbl.pathFor(id)
	assert.Equal(t, "/z", p)

	newID := tbl.idFor("/z")
	assert.Equal(t, id, newID, "the renamed path must resolve to the original inode, not a freshly minted one")
}

func TestInodeTableRenameDirectoryMovesSubtreeOnly(t *testing.T) {
	tbl := newInodeTable()
	dirID := tbl.idFor("/dir")
	childID := tbl.idFor("/dir/f")
	siblingID := tbl.idFor("/dir2/f")

	tbl.rename("/dir", "/renamed", true)

	p, ok := tbl.pathFor(dirID)
	require.True(t, ok)
	assert.Equal(t, "/renamed", p)

	p, ok = tbl.pathFor(childID)
	require.True(t, ok)
	assert.Equal(t, "/renamed/f", p)

	p, ok = tbl.pathFor(siblingID)
	require.True(t, ok)
	assert.Equal(t, "/dir2/f", p, "a directory with only a shared string prefix must not be affected")
}

func TestErrnoForMapsNotExistToENOENT(t *testing.T) {
	_, err := os.Open(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, fuse.ENOENT, errnoFor(err))
}

func TestErrnoForPassesThroughErrno(t *testing.T) {
	assert.Equal(t, syscall.EACCES, errnoFor(syscall.EACCES))
}

func TestNewRejectsNonexistentRoot(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), nil, nil)
	assert.Error(t, err)
}

func TestNewRejectsNonDirectoryRoot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := New(path, nil, nil)
	assert.Error(t, err)
}

func TestAttributesForPathUsesRootRelativeResolution(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "f"), []byte("hello"), 0o644))

	c, err := cache.New(4096, 4, 0.25, 0.25, root)
	require.NoError(t, err)

	fs, err := New(root, c, nil)
	require.NoError(t, err)

	attrs, err := fs.attributesForPath("/f")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), attrs.Size)
}
