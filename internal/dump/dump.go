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

// Package dump renders a block cache's contents in eviction-candidate
// order for the ioctl-driven diagnostic dump.
package dump

import (
	"fmt"
	"strings"

	"github.com/orlykor/fbrfs/internal/cache"
)

// Format renders entries (as produced by cache.Cache.Snapshot, tail to
// head) as one line per Block: "«relative-path» «1-based-block-index»
// «refCount»". No sorting beyond the order already present in entries.
func Format(entries []cache.Entry) string {
	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "%s %d %d\n", e.RelPath, e.BlockIndex, e.RefCount)
	}
	return sb.String()
}
