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
	"github.com/jacobsa/fuse/fuseutil"
)

// dirHandle snapshots a directory's entries at OpenDir time, reading the
// directory once and handing entries out by offset rather than
// re-reading the underlying directory stream on every ReadDir call.
type dirHandle struct {
	relPath string
	entries []fuseutil.Dirent
}

func (fs *FileSystem) OpenDir(ctx context.Context, op *fuseops.OpenDirOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.oplog.Record("opendir")

	relPath, ok := fs.inodes.pathFor(op.Inode)
	if !ok || isMaskedPath(relPath) {
		return fuse.ENOENT
	}

	raw, err := os.ReadDir(fs.fullPath(relPath))
	if err != nil {
		return errnoFor(err)
	}

	entries := make([]fuseutil.Dirent, 0, len(raw))
	for _, e := range raw {
		childRel := relPath + e.Name()
		if relPath != "/" {
			childRel = relPath + "/" + e.Name()
		}
		if isMaskedPath(childRel) {
			continue
		}

		typ := fuseutil.DT_File
		if e.IsDir() {
			typ = fuseutil.DT_Directory
		}

		entries = append(entries, fuseutil.Dirent{
			Offset: fuseops.DirOffset(len(entries) + 1),
			Inode:  fs.inodes.idFor(childRel),
			Name:   e.Name(),
			Type:   typ,
		})
	}

	fs.nextHandle++
	handle := fs.nextHandle
	fs.dirHandles[handle] = &dirHandle{relPath: relPath, entries: entries}
	op.Handle = handle
	return nil
}

func (fs *FileSystem) ReadDir(ctx context.Context, op *fuseops.ReadDirOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.oplog.Record("readdir")

	dh, ok := fs.dirHandles[op.Handle]
	if !ok {
		return fuse.EIO
	}

	if op.Offset > fuseops.DirOffset(len(dh.entries)) {
		return fuse.EIO
	}

	for _, e := range dh.entries[op.Offset:] {
		n := fuseutil.WriteDirent(op.Dst[op.BytesRead:], e)
		if n == 0 {
			break
		}
		op.BytesRead += n
	}
	return nil
}

func (fs *FileSystem) ReleaseDirHandle(ctx context.Context, op *fuseops.ReleaseDirHandleOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.oplog.Record("releasedir")
	delete(fs.dirHandles, op.Handle)
	return nil
}
