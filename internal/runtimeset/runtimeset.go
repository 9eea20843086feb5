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

// Package runtimeset implements the `runtimes` table of §3 and §6: a small
// hashed set of container-runtime init-process names (e.g. `runc:[2:INIT]`),
// consulted by internal/lineage's disabled-by-default
// deny-unwrapped-runtime pathway (§4.4, §12).
package runtimeset

import (
	"errors"
	"hash/fnv"
	"sync"
)

// MaxEntries is the fixed capacity of the runtimes table (§6).
const MaxEntries = 16

// Set is the hashed runtime-init-name table. Keys are hash(name); values are
// a marker byte, matching the BPF map's `key=hash(name), value=marker`
// layout (§6).
type Set struct {
	mu      sync.RWMutex
	entries map[uint32]struct{}
}

// New returns an empty Set.
func New() *Set {
	return &Set{entries: make(map[uint32]struct{})}
}

// Hash computes the table key for a process comm string, using the same
// FNV-1a algorithm the control plane is expected to use when populating the
// BPF-side `runtimes` map, so a name added here and one added directly to
// the kernel map via the same hash function collide identically.
func Hash(name string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return h.Sum32()
}

// Add registers a runtime init-process name. Returns an error if the set is
// already at capacity.
func (s *Set) Add(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := Hash(name)
	if _, exists := s.entries[key]; !exists && len(s.entries) >= MaxEntries {
		return errAtCapacity
	}
	s.entries[key] = struct{}{}
	return nil
}

// Remove unregisters a runtime init-process name.
func (s *Set) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, Hash(name))
}

// Contains reports whether name (by its hash) is a known runtime init-process
// name. Backs the "deny unwrapped runtime process" pathway of §4.4/§12:
// internal/lineage.Tracker consults this only when DenyUnwrappedRuntime is
// set (default false).
func (s *Set) Contains(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[Hash(name)]
	return ok
}

var errAtCapacity = errors.New("runtime name table at capacity (16 entries)")
