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

package logger

import (
	"fmt"
	"os"

	"github.com/orlykor/fbrfs/clock"
)

// OperationLog is the append-only "«unix-seconds» «operation-name»" record
// of every dispatched filesystem operation, plus the diagnostic cache
// dump appended by the dump-trigger operation. Its on-disk format is a
// fixed contract, so it is kept separate from the leveled diagnostic
// logger above.
type OperationLog struct {
	file  *os.File
	clock clock.Clock
}

// OpenOperationLog opens (creating if necessary) the append-only log at
// path. A failure to open this file is fatal: the caller should treat a
// non-nil error as reason to exit before mounting.
func OpenOperationLog(path string, c clock.Clock) (*OperationLog, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening operation log %q: %w", path, err)
	}
	return &OperationLog{file: f, clock: c}, nil
}

// Record appends one "«unix-seconds» «operation-name»" line and flushes
// it to stable storage immediately, so the log survives an unclean exit.
func (l *OperationLog) Record(operation string) {
	line := fmt.Sprintf("%d %s\n", l.clock.Now().Unix(), operation)
	if _, err := l.file.WriteString(line); err != nil {
		return
	}
	_ = l.file.Sync()
}

// RecordDump appends the diagnostic cache dump text (one line per
// resident block, already formatted by internal/dump.Format) to the log
// stream, without a timestamp.
func (l *OperationLog) RecordDump(dump string) {
	if _, err := l.file.WriteString(dump); err != nil {
		return
	}
	_ = l.file.Sync()
}

// Close releases the underlying file handle. Failures during teardown
// are swallowed: there is no action left to take on them.
func (l *OperationLog) Close() {
	_ = l.file.Close()
}
