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

package decision

import "github.com/nestybox/sysbox-lsm/internal/policy"

// TaskAlloc implements the lsm/task_alloc hook (§4.5, §9): runs the lineage
// tracker's handle_new_process algorithm on clone(), then folds in prevRet
// per the combinator chain. This hook and SchedProcessFork below share the
// same underlying lineage.Tracker call; each alone misses some children
// (§9, "Lineage duplication"), so both must be wired to real kernel events
// in production.
func (e *Engine) TaskAlloc(parentPid, childPid int32, childComm string, prevRet int) int {
	v := policy.Allow()
	if err := e.Lineage.HandleNewProcess(parentPid, childPid, childComm); err != nil {
		v = policy.FailClosed()
	}
	return policy.Combine(v, prevRet)
}

// SchedProcessFork implements the tp_btf/sched_process_fork tracepoint
// program (§4.5, §6). Tracepoint programs are not chained with a prior
// program's return value — there is no ret_prev argument for a raw
// tracepoint — so this returns its own verdict directly, matching the
// original BPF program's signature.
func (e *Engine) SchedProcessFork(parentPid, childPid int32, childComm string) int {
	if err := e.Lineage.HandleNewProcess(parentPid, childPid, childComm); err != nil {
		return -policy.EPERM
	}
	return 0
}
