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
	"context"
	"os"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
)

// Rename keeps the cache's own key space (full paths) and the inode
// table's path mapping consistent with the underlying directory tree
// after a move, even though the mount otherwise exposes no other
// mutating operation (create, write, and truncate are left to
// NotImplementedFileSystem).
func (fs *FileSystem) Rename(ctx context.Context, op *fuseops.RenameOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.oplog.Record("rename")

	oldParentRel, ok := fs.inodes.pathFor(op.OldParent)
	if !ok {
		return fuse.ENOENT
	}
	newParentRel, ok := fs.inodes.pathFor(op.NewParent)
	if !ok {
		return fuse.ENOENT
	}

	oldRel := joinRel(oldParentRel, op.OldName)
	newRel := joinRel(newParentRel, op.NewName)

	if isMaskedPath(oldRel) || isMaskedPath(newRel) {
		return fuse.ENOENT
	}

	oldFull := fs.fullPath(oldRel)
	newFull := fs.fullPath(newRel)

	fi, err := os.Lstat(oldFull)
	if err != nil {
		return errnoFor(err)
	}
	isDir := fi.IsDir()

	if err := os.Rename(oldFull, newFull); err != nil {
		return errnoFor(err)
	}

	if isDir {
		oldDir, newDir := oldFull, newFull
		if oldDir[len(oldDir)-1] != '/' {
			oldDir += "/"
		}
		if newDir[len(newDir)-1] != '/' {
			newDir += "/"
		}
		fs.cache.RenamePrefix(oldDir, newDir)
	} else {
		fs.cache.RenameExact(oldFull, newFull)
	}
	fs.inodes.rename(oldRel, newRel, isDir)

	return nil
}

func joinRel(parentRel, name string) string {
	if parentRel == "/" {
		return "/" + name
	}
	return parentRel + "/" + name
}
