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

// FileOpenArgs carries the file_open hook's resolved path. PathOK is false
// when the kernel's d_path primitive failed to fill the 64-byte bounded
// buffer (a real possibility: real filesystem paths routinely exceed 64
// bytes). That failure is opportunistic here, unlike sb_mount's dev_name
// read — it fails open rather than faulting (§4.5, §7, §9).
type FileOpenArgs struct {
	Path   string
	PathOK bool
}

// FileOpen implements the lsm/file_open hook (§4.5). Restricted scans
// access-deny then access-allow with a default-deny outcome; Baseline does
// the same against its own tables. The root path "/" is special-cased to
// always allow, since a root prefix entry in an allow table would otherwise
// match every path.
func (e *Engine) FileOpen(pid int32, args FileOpenArgs, prevRet int) int {
	st, level := e.resolveState(pid, "file_open")

	var v policy.Verdict
	switch st {
	case stateFailClosed:
		v = policy.FailClosed()
	case stateBypass:
		v = policy.Allow()
	case stateEvaluate:
		v = e.evaluateFileOpen(pid, level, args)
	}

	return policy.Combine(v, prevRet)
}

func (e *Engine) evaluateFileOpen(pid int32, level policy.Level, args FileOpenArgs) policy.Verdict {
	if !args.PathOK {
		logrus.Warnf("lsm: hook=file_open pid=%d policy=%s verdict=allow (path unreadable)", pid, level)
		return policy.Allow()
	}

	if args.Path == "/" {
		logrus.Debugf("lsm: hook=file_open pid=%d policy=%s path=/ verdict=allow (root special case)", pid, level)
		return policy.Allow()
	}

	if deny := e.Tables.AccessDeny[level]; deny != nil && deny.MatchAny(args.Path) {
		logrus.Debugf("lsm: hook=file_open pid=%d policy=%s path=%s verdict=deny (deny-list match)",
			pid, level, args.Path)
		return policy.Deny()
	}

	if allow := e.Tables.AccessAllow[level]; allow != nil && allow.MatchAny(args.Path) {
		logrus.Debugf("lsm: hook=file_open pid=%d policy=%s path=%s verdict=allow", pid, level, args.Path)
		return policy.Allow()
	}

	logrus.Debugf("lsm: hook=file_open pid=%d policy=%s path=%s verdict=deny (default-deny)",
		pid, level, args.Path)
	return policy.Deny()
}
