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

// Syslog implements the lsm/syslog hook (§4.5). Restricted and Baseline are
// treated identically: both deny. pid is the acting task's pid; prevRet is
// the previous LSM program's return value in the chain (§4.6).
func (e *Engine) Syslog(pid int32, prevRet int) int {
	st, level := e.resolveState(pid, "syslog")

	var v policy.Verdict
	switch st {
	case stateFailClosed:
		v = policy.FailClosed()
	case stateBypass:
		v = policy.Allow()
	case stateEvaluate:
		// Restricted and Baseline are identical here: deny.
		v = policy.Deny()
		logrus.Debugf("lsm: hook=syslog pid=%d policy=%s verdict=deny", pid, level)
	}

	return policy.Combine(v, prevRet)
}
