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
	"strings"

	"github.com/jacobsa/fuse/fuseops"
)

// dumpInode is a reserved inode for the synthetic dump-trigger attribute
// target at the mount root; it does not correspond to any entry under the
// root directory. Real paths are allocated starting at dumpInode+1.
const dumpInode = fuseops.RootInodeID + 1

// inodeTable assigns stable fuseops.InodeID values to root-relative paths
// ("/", "/a", "/a/b", ...), lazily: an ID is minted the first time a path
// is looked up rather than by walking the whole tree up front.
type inodeTable struct {
	nextID   fuseops.InodeID
	pathToID map[string]fuseops.InodeID
	idToPath map[fuseops.InodeID]string
}

func newInodeTable() *inodeTable {
	return &inodeTable{
		nextID: dumpInode + 1,
		pathToID: map[string]fuseops.InodeID{
			"/": fuseops.RootInodeID,
		},
		idToPath: map[fuseops.InodeID]string{
			fuseops.RootInodeID: "/",
		},
	}
}

// idFor returns the inode assigned to relPath, minting one on first sight.
func (t *inodeTable) idFor(relPath string) fuseops.InodeID {
	if id, ok := t.pathToID[relPath]; ok {
		return id
	}
	id := t.nextID
	t.nextID++
	t.pathToID[relPath] = id
	t.idToPath[id] = relPath
	return id
}

// pathFor returns the root-relative path assigned to id, if any.
func (t *inodeTable) pathFor(id fuseops.InodeID) (string, bool) {
	p, ok := t.idToPath[id]
	return p, ok
}

// rename re-keys every known path under oldRel to live under newRel,
// mirroring the cache's own renameExact/renamePrefix split so inode
// identity survives a rename exactly as the underlying file does.
func (t *inodeTable) rename(oldRel, newRel string, isDir bool) {
	if !isDir {
		if id, ok := t.pathToID[oldRel]; ok {
			delete(t.pathToID, oldRel)
			t.pathToID[newRel] = id
			t.idToPath[id] = newRel
		}
		return
	}

	oldPrefix, newPrefix := oldRel, newRel
	if !strings.HasSuffix(oldPrefix, "/") {
		oldPrefix += "/"
	}
	if !strings.HasSuffix(newPrefix, "/") {
		newPrefix += "/"
	}

	renamed := make(map[string]fuseops.InodeID)
	for p, id := range t.pathToID {
		switch {
		case p == oldRel:
			renamed[newRel] = id
		case strings.HasPrefix(p, oldPrefix):
			renamed[newPrefix+strings.TrimPrefix(p, oldPrefix)] = id
		default:
			continue
		}
		delete(t.pathToID, p)
	}
	for p, id := range renamed {
		t.pathToID[p] = id
		t.idToPath[id] = p
	}
}
