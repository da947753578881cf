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

package dump_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/orlykor/fbrfs/internal/cache"
	"github.com/orlykor/fbrfs/internal/dump"
)

func TestFormatEmptyCache(t *testing.T) {
	assert.Equal(t, "", dump.Format(nil))
}

func TestFormatRendersOneLinePerEntryInGivenOrder(t *testing.T) {
	entries := []cache.Entry{
		{RelPath: "a/b", BlockIndex: 2, RefCount: 1},
		{RelPath: "c", BlockIndex: 1, RefCount: 3},
	}

	got := dump.Format(entries)

	assert.Equal(t, "a/b 2 1\nc 1 3\n", got)
}
