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

// Package rules implements the path allow/deny rule tables (§4.2, C2) and
// the bounded prefix matcher (§4.3, C3) consulted by every hook decision
// unit that evaluates a path.
package rules

import (
	"bytes"
	"fmt"
	"sync"

	grpcCodes "google.golang.org/grpc/codes"
	grpcStatus "google.golang.org/grpc/status"
)

const (
	// MaxEntries is the fixed capacity of a rule table (§3).
	MaxEntries = 128
	// PathLen is the fixed width of a path-prefix field, NUL-terminated
	// (§3).
	PathLen = 64
)

// PathPrefix is the fixed-width value stored in a rule table slot. It
// mirrors the BPF map value struct `struct accessed_path { unsigned char path[64]; }`
// byte for byte so the same struct can be marshaled into an *ebpf.Map.
type PathPrefix struct {
	Path [PathLen]byte
}

// Len returns the prefix length, stopping at the first NUL byte (or at
// PathLen if none is present). A zero-length prefix is treated specially by
// Table.MatchAny: it is always skipped, never matched.
func (p PathPrefix) Len() int {
	n := bytes.IndexByte(p.Path[:], 0)
	if n < 0 {
		return PathLen
	}
	return n
}

// NewPathPrefix builds a PathPrefix from a Go string, truncating to PathLen
// bytes if necessary (callers populating rule tables are expected to use
// prefixes well under the bound; truncation here is a safety net, not a
// documented control-plane behavior).
func NewPathPrefix(s string) PathPrefix {
	var p PathPrefix
	n := copy(p.Path[:], s)
	_ = n
	return p
}

// Table is a fixed-capacity, keyed set of path prefixes — one of the six
// rule tables in §3 (split by policy level and hook class). Duplicate
// prefixes are permitted; the decision logic never depends on the key, only
// on iteration over all entries, so the backing store here is a plain Go map
// keyed by an opaque uint32 slot for parity with the BPF map's key type.
type Table struct {
	mu      sync.RWMutex
	entries map[uint32]PathPrefix
}

// NewTable returns an empty rule table.
func NewTable() *Table {
	return &Table{entries: make(map[uint32]PathPrefix)}
}

// Upsert writes a prefix into the given slot. Returns an error if the table
// is at capacity and slot is not already occupied.
func (t *Table) Upsert(slot uint32, prefix PathPrefix) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.entries[slot]; !exists && len(t.entries) >= MaxEntries {
		return grpcStatus.Errorf(grpcCodes.ResourceExhausted,
			"rule table at capacity (%d entries)", MaxEntries)
	}

	t.entries[slot] = prefix
	return nil
}

// Remove deletes the prefix at slot, if any.
func (t *Table) Remove(slot uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, slot)
}

// Len returns the number of occupied slots.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// MatchAny iterates every non-null, non-empty entry and returns true on the
// first prefix match against candidate (§4.3). Candidate is compared against
// the first n bytes of the entry's prefix, where n is the prefix's own
// length (clamped to PathLen) — this is a prefix match, not equality, by
// design: one rule entry covers an entire subtree.
//
// A zero-length prefix is always skipped: an empty prefix would otherwise
// match every candidate, defeating the allow/deny tables entirely (§4.3,
// invariant 2 of §8).
func (t *Table) MatchAny(candidate string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, p := range t.entries {
		n := p.Len()
		if n == 0 {
			continue
		}
		if len(candidate) < n {
			continue
		}
		if string(p.Path[:n]) == candidate[:n] {
			return true
		}
	}
	return false
}

// String implements fmt.Stringer for trace-log friendliness.
func (t *Table) String() string {
	return fmt.Sprintf("ruleTable{entries=%d/%d}", t.Len(), MaxEntries)
}
