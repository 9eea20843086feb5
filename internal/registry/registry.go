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

// Package registry implements the process/container registry tables (§4.1,
// C1 of SPEC_FULL.md): the shared state the control plane publishes into and
// the hook decision units read from.
//
// In production the kernel-side programs read these same logical tables out
// of BPF maps (internal/bpfloader mirrors writes through to them);
// this package is the in-process, lock-protected view used by the daemon's
// control-plane-facing API and by the pure-Go decision engine
// (internal/decision) that mirrors the in-kernel algorithm for testing.
package registry

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/nestybox/sysbox-libs/formatter"
	grpcCodes "google.golang.org/grpc/codes"
	grpcStatus "google.golang.org/grpc/status"

	"github.com/nestybox/sysbox-lsm/internal/policy"
)

// cid renders a numeric container id through formatter.ContainerID, the
// same truncate-for-display Stringer the teacher uses for its (string)
// container ids, so trace lines stay visually consistent across both
// codebases.
func cid(id uint32) formatter.ContainerID {
	return formatter.ContainerID{strconv.FormatUint(uint64(id), 10)}
}

// ContainerRecord is the value half of the containers table (§3).
type ContainerRecord struct {
	PolicyLevel policy.Level
}

// ProcessRecord is the value half of the processes table (§3).
type ProcessRecord struct {
	ContainerID uint32
}

// Registry is the shared process→container and container→policy table pair
// (C1). Safe for concurrent use; readers and writers may race arbitrarily
// and will always observe a coherent (never torn) record for a given key,
// per §5.
type Registry struct {
	mu sync.RWMutex

	containers map[uint32]ContainerRecord
	processes  map[int32]ProcessRecord
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		containers: make(map[uint32]ContainerRecord),
		processes:  make(map[int32]ProcessRecord),
	}
}

// UpsertContainer creates or updates a container record. Called by the
// external control plane before any process of the container exists.
func (r *Registry) UpsertContainer(id uint32, level policy.Level) error {
	if !level.Valid() {
		return grpcStatus.Errorf(grpcCodes.InvalidArgument,
			"container %s: invalid policy level %v", cid(id), level)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.containers[id] = ContainerRecord{PolicyLevel: level}
	return nil
}

// RemoveContainer removes a container record. The control plane must remove
// all of the container's process records strictly before calling this; it
// is not re-validated here (removal order is a control-plane invariant, not
// one this table can cheaply enforce without scanning every process record
// on every delete).
func (r *Registry) RemoveContainer(id uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.containers[id]; !ok {
		return grpcStatus.Errorf(grpcCodes.NotFound, "container %s not found", cid(id))
	}
	delete(r.containers, id)
	return nil
}

// UpsertProcess creates or updates a process record. Idempotent: writing the
// same (pid, containerID) pair twice succeeds both times. The referenced
// container must already exist (§4.1 invariant); callers that need to
// register a container's init process in one step should call
// UpsertContainer first.
func (r *Registry) UpsertProcess(pid int32, containerID uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.containers[containerID]; !ok {
		return grpcStatus.Errorf(grpcCodes.FailedPrecondition,
			"process %d: container %s does not exist", pid, cid(containerID))
	}

	r.processes[pid] = ProcessRecord{ContainerID: containerID}
	return nil
}

// RemoveProcess removes a process record. Called on task exit.
func (r *Registry) RemoveProcess(pid int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.processes[pid]; !ok {
		return grpcStatus.Errorf(grpcCodes.NotFound, "process %d not found", pid)
	}
	delete(r.processes, pid)
	return nil
}

// FindProcess is the lookup-only view the hook decision units and the
// lineage tracker consult. ok is false when no record exists for pid.
func (r *Registry) FindProcess(pid int32) (rec ProcessRecord, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok = r.processes[pid]
	return
}

// FindContainer is the lookup-only view used to resolve a process record's
// container id to a policy level.
func (r *Registry) FindContainer(id uint32) (rec ContainerRecord, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok = r.containers[id]
	return
}

// Resolve walks processes → containers for pid and returns the policy level
// that applies to it, or one of the two lookup-outcome sentinels (§3, §4.5).
func (r *Registry) Resolve(pid int32) policy.Level {
	proc, ok := r.FindProcess(pid)
	if !ok {
		return policy.NotFound
	}

	cntr, ok := r.FindContainer(proc.ContainerID)
	if !ok {
		return policy.LookupError
	}

	return cntr.PolicyLevel
}

// ContainerCount returns the number of live container records. Exposed for
// observability/tests, mirroring state/containerDB.go's ContainerDBSize.
func (r *Registry) ContainerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.containers)
}

// ProcessCount returns the number of live process records.
func (r *Registry) ProcessCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.processes)
}

// String implements fmt.Stringer for trace-log friendliness.
func (r *Registry) String() string {
	return fmt.Sprintf("registry{containers=%d, processes=%d}",
		r.ContainerCount(), r.ProcessCount())
}
