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

// Package lineage implements the lineage tracker (§4.4, C4): on every new
// process, inherit container membership from the parent. Fed by two
// independent kernel event sources (the tp_btf/sched_process_fork
// tracepoint and the lsm/task_alloc hook) — each alone misses some children
// (§9, "Lineage duplication"), so HandleNewProcess must be idempotent and
// safe to call twice for the same child.
package lineage

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/nestybox/sysbox-lsm/internal/policy"
	"github.com/nestybox/sysbox-lsm/internal/registry"
	"github.com/nestybox/sysbox-lsm/internal/runtimeset"
)

// ErrUnwrappedRuntime is returned when DenyUnwrappedRuntime is set and
// childComm matches a registered container-runtime init-process name whose
// parent was never containerized (§4.4, §9, §12). The caller hook maps this
// to -EPERM like any other lineage error.
var ErrUnwrappedRuntime = errors.New("lineage: unwrapped runtime init process denied")

// Tracker propagates container membership down a process tree.
type Tracker struct {
	reg *registry.Registry

	// Runtimes is the known-runtime-init-name table (§3, §6), consulted
	// only when DenyUnwrappedRuntime is set.
	Runtimes *runtimeset.Set

	// DenyUnwrappedRuntime gates the pathway (§9, §12) that denies a
	// runtime-init process whose parent was never registered by the
	// control plane — i.e. one that bypassed normal container creation.
	// Left false by default: whether to enable it is a deployment
	// decision, not this engine's (see DESIGN.md).
	DenyUnwrappedRuntime bool
}

// NewTracker returns a lineage Tracker backed by reg, with an empty runtime
// name table and DenyUnwrappedRuntime disabled.
func NewTracker(reg *registry.Registry) *Tracker {
	return &Tracker{reg: reg, Runtimes: runtimeset.New()}
}

// HandleNewProcess implements the algorithm of §4.4 for a (parent, child)
// pair delivered by either task-fork or task-alloc. childComm is the
// child's comm name, consulted only when DenyUnwrappedRuntime is set.
// Returns nil on success (including the two "nothing to do" cases:
// idempotent re-entry, and parent not containerized) and a non-nil error
// for the LookupError case or, when enabled, the unwrapped-runtime-deny
// case — both of which the caller hook must map to -EPERM.
func (t *Tracker) HandleNewProcess(parentPid, childPid int32, childComm string) error {
	// 1. Idempotent re-entry: already registered.
	if _, ok := t.reg.FindProcess(childPid); ok {
		return nil
	}

	// 2. Parent not containerized: child isn't either, unless it's itself
	// an unwrapped runtime-init process and denial is enabled.
	parentRec, ok := t.reg.FindProcess(parentPid)
	if !ok {
		if t.DenyUnwrappedRuntime && t.Runtimes.Contains(childComm) {
			logrus.Errorf("lineage: pid %d (%s) is an unwrapped runtime "+
				"init process, denying", childPid, childComm)
			return ErrUnwrappedRuntime
		}
		return nil
	}

	// 3. Resolve the parent's container; missing container is the
	// LookupError case.
	if _, ok := t.reg.FindContainer(parentRec.ContainerID); !ok {
		logrus.Errorf("lineage: parent pid %d points at missing container %d",
			parentPid, parentRec.ContainerID)
		return policy.ErrLookupInconsistent
	}

	// 4. Insert.
	if err := t.reg.UpsertProcess(childPid, parentRec.ContainerID); err != nil {
		return err
	}

	logrus.Debugf("lineage: pid %d inherits container %d from parent %d",
		childPid, parentRec.ContainerID, parentPid)
	return nil
}
