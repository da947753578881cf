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

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"golang.org/x/sys/unix"

	"github.com/orlykor/fbrfs/internal/readpipeline"
)

// fileHandle owns the underlying, directly-opened file descriptor for
// one FUSE file handle, kept open from OpenFile until ReleaseFileHandle.
type fileHandle struct {
	relPath string
	fd      int
}

// posixFetcher implements readpipeline.BlockFetcher against a single
// already-open, O_DIRECT file descriptor via positional reads.
type posixFetcher struct {
	fd int
}

func (f posixFetcher) FetchBlock(ctx context.Context, path string, offset int64, buf []byte) (int, error) {
	n, err := unix.Pread(f.fd, buf, offset)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// OpenFile opens the underlying file for direct, block-aligned reads.
// Write-intending opens never reach this method: the mount is
// established with fuse.MountConfig.ReadOnly set, so the kernel itself
// rejects any open requesting write access before FUSE dispatches it
// here (see DESIGN.md).
func (fs *FileSystem) OpenFile(ctx context.Context, op *fuseops.OpenFileOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.oplog.Record("open")

	relPath, ok := fs.inodes.pathFor(op.Inode)
	if !ok || isMaskedPath(relPath) {
		return fuse.ENOENT
	}

	fd, err := unix.Open(fs.fullPath(relPath), unix.O_RDONLY|unix.O_DIRECT|unix.O_SYNC, 0)
	if err != nil {
		return errnoFor(err)
	}

	fs.nextHandle++
	handle := fs.nextHandle
	fs.fileHandles[handle] = &fileHandle{relPath: relPath, fd: fd}
	op.Handle = handle
	op.UseDirectIO = true
	return nil
}

// ReadFile holds fs.mu for the duration of the pipeline call: cache
// mutations must never interleave with other callbacks, and the cache
// has no locking of its own to enforce that itself.
func (fs *FileSystem) ReadFile(ctx context.Context, op *fuseops.ReadFileOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fh, ok := fs.fileHandles[op.Handle]
	if !ok {
		return fuse.EIO
	}
	fs.oplog.Record("read")

	n, err := readpipeline.Read(ctx, fs.cache, posixFetcher{fd: fh.fd}, fs.fullPath(fh.relPath), op.Dst, len(op.Dst), op.Offset)
	op.BytesRead = n
	if err != nil {
		return errnoFor(err)
	}
	return nil
}

func (fs *FileSystem) ReleaseFileHandle(ctx context.Context, op *fuseops.ReleaseFileHandleOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.oplog.Record("release")

	fh, ok := fs.fileHandles[op.Handle]
	if !ok {
		return nil
	}
	_ = unix.Close(fh.fd)
	delete(fs.fileHandles, op.Handle)
	return nil
}
