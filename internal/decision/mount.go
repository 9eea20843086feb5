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

// MountArgs carries the sb_mount hook's arguments, already bounded-copied by
// the caller via the safe kernel-string-read primitive of §4.3. Representing
// the read outcome explicitly (rather than just a string) lets TypeNull and
// DevNameOK reproduce the two distinct "read came back empty" failure modes
// §4.5 calls out: a null type is a documented fail-open quirk, a failed
// dev_name read is a hard -EFAULT.
type MountArgs struct {
	// Type is the mount type string (bounded to 5 bytes by the caller).
	Type string
	// TypeNull is true when the kernel pointer for type was NULL. Some
	// sandbox tooling issues mounts with an empty type; denying those broke
	// them, so this fails open rather than denying or faulting (§4.5).
	TypeNull bool

	// DevName is the mount source string (bounded to 64 bytes).
	DevName string
	// DevNameOK is false when the bounded read of dev_name failed. Unlike
	// TypeNull this maps to -EFAULT for a bind mount: the mount source is
	// required to evaluate the rule table. Non-bind mounts never consult it.
	DevNameOK bool
}

// SbMount implements the lsm/sb_mount hook (§4.5). Only bind mounts are
// mediated; any other mount type passes through unconditionally.
func (e *Engine) SbMount(pid int32, args MountArgs, prevRet int) int {
	st, level := e.resolveState(pid, "sb_mount")

	var v policy.Verdict
	switch st {
	case stateFailClosed:
		v = policy.FailClosed()
	case stateBypass:
		v = policy.Allow()
	case stateEvaluate:
		v = e.evaluateMount(pid, level, args)
	}

	return policy.Combine(v, prevRet)
}

func (e *Engine) evaluateMount(pid int32, level policy.Level, args MountArgs) policy.Verdict {
	if args.TypeNull {
		logrus.Debugf("lsm: hook=sb_mount pid=%d policy=%s type=null verdict=allow (quirk)", pid, level)
		return policy.Allow()
	}

	if args.Type != "bind" {
		logrus.Debugf("lsm: hook=sb_mount pid=%d policy=%s type=%s verdict=allow (unmediated)", pid, level, args.Type)
		return policy.Allow()
	}

	if !args.DevNameOK {
		logrus.Warnf("lsm: hook=sb_mount pid=%d policy=%s verdict=fault (dev_name unreadable)", pid, level)
		return policy.IoFault()
	}

	table := e.Tables.MountAllow[level]
	if table != nil && table.MatchAny(args.DevName) {
		logrus.Debugf("lsm: hook=sb_mount pid=%d policy=%s dev_name=%s verdict=allow", pid, level, args.DevName)
		return policy.Allow()
	}

	logrus.Debugf("lsm: hook=sb_mount pid=%d policy=%s dev_name=%s verdict=deny", pid, level, args.DevName)
	return policy.Deny()
}
