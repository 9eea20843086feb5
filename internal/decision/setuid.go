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

import (
	"github.com/sirupsen/logrus"

	"github.com/nestybox/sysbox-lsm/internal/policy"
)

// SetuidArgs carries the task_fix_setuid hook's credential transition.
type SetuidArgs struct {
	OldUID uint32
	NewUID uint32
}

// TaskFixSetuid implements the lsm/task_fix_setuid hook (§4.5): deny a
// non-system user (old UID at or above the engine's SetuidThreshold)
// escalating to root, for Restricted and Baseline processes.
func (e *Engine) TaskFixSetuid(pid int32, args SetuidArgs, prevRet int) int {
	st, level := e.resolveState(pid, "task_fix_setuid")

	var v policy.Verdict
	switch st {
	case stateFailClosed:
		v = policy.FailClosed()
	case stateBypass:
		v = policy.Allow()
	case stateEvaluate:
		if args.NewUID == 0 && args.OldUID >= e.SetuidThreshold {
			logrus.Debugf("lsm: hook=task_fix_setuid pid=%d policy=%s old=%d new=%d verdict=deny",
				pid, level, args.OldUID, args.NewUID)
			v = policy.Deny()
		} else {
			v = policy.Allow()
		}
	}

	return policy.Combine(v, prevRet)
}
