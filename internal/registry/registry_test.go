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

package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nestybox/sysbox-lsm/internal/policy"
)

func TestResolve_NotFound(t *testing.T) {
	r := New()
	assert.Equal(t, policy.NotFound, r.Resolve(4242))
}

func TestResolve_LookupError(t *testing.T) {
	r := New()
	require.NoError(t, r.UpsertContainer(7, policy.Restricted))
	require.NoError(t, r.UpsertProcess(100, 7))

	// Simulate registry inconsistency: remove the container without
	// removing its process first (control-plane bug, §4.1 invariant
	// violation).
	r.mu.Lock()
	delete(r.containers, 7)
	r.mu.Unlock()

	assert.Equal(t, policy.LookupError, r.Resolve(100))
}

func TestResolve_Level(t *testing.T) {
	r := New()
	require.NoError(t, r.UpsertContainer(7, policy.Baseline))
	require.NoError(t, r.UpsertProcess(100, 7))

	assert.Equal(t, policy.Baseline, r.Resolve(100))
}

func TestUpsertProcess_RequiresContainer(t *testing.T) {
	r := New()
	err := r.UpsertProcess(100, 7)
	assert.Error(t, err)
}

func TestUpsertProcess_Idempotent(t *testing.T) {
	r := New()
	require.NoError(t, r.UpsertContainer(7, policy.Restricted))

	require.NoError(t, r.UpsertProcess(100, 7))
	require.NoError(t, r.UpsertProcess(100, 7))

	assert.Equal(t, 1, r.ProcessCount())
}

func TestRemoveContainer_NotFound(t *testing.T) {
	r := New()
	assert.Error(t, r.RemoveContainer(1))
}

func TestRemoveProcess_NotFound(t *testing.T) {
	r := New()
	assert.Error(t, r.RemoveProcess(1))
}

func TestUpsertContainer_InvalidLevel(t *testing.T) {
	r := New()
	assert.Error(t, r.UpsertContainer(1, policy.NotFound))
	assert.Error(t, r.UpsertContainer(1, policy.LookupError))
}

// TestConcurrentAccess exercises the concurrency model of §5: many readers
// and writers racing on disjoint pids/container ids must never panic or
// corrupt either table.
func TestConcurrentAccess(t *testing.T) {
	r := New()
	require.NoError(t, r.UpsertContainer(1, policy.Restricted))

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(2)
		pid := int32(i)
		go func() {
			defer wg.Done()
			_ = r.UpsertProcess(pid, 1)
		}()
		go func() {
			defer wg.Done()
			r.Resolve(pid)
		}()
	}
	wg.Wait()

	assert.Equal(t, 200, r.ProcessCount())
}
