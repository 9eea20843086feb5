//
// Copyright 2019-2020 Nestybox, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package runtimeset

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContains(t *testing.T) {
	s := New()
	require.NoError(t, s.Add("runc:[2:INIT]"))

	assert.True(t, s.Contains("runc:[2:INIT]"))
	assert.False(t, s.Contains("bash"))
}

func TestRemove(t *testing.T) {
	s := New()
	require.NoError(t, s.Add("runc:[2:INIT]"))
	s.Remove("runc:[2:INIT]")

	assert.False(t, s.Contains("runc:[2:INIT]"))
}

func TestAtCapacity(t *testing.T) {
	s := New()
	for i := 0; i < MaxEntries; i++ {
		require.NoError(t, s.Add(fmt.Sprintf("runtime-%d", i)))
	}

	assert.Error(t, s.Add("one-too-many"))
}
