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

package policy

import "errors"

// ErrLookupInconsistent is returned by components outside the hook decision
// units (the lineage tracker) when a process record references a container
// record that no longer exists. Hook-level callers map this to -EPERM, same
// as a KindLookupInconsistent Verdict.
var ErrLookupInconsistent = errors.New("lsm: process registry points at missing container record")

// Errno values a hook decision unit may return to the kernel. Negative of
// these is what the syscall ultimately sees (-EPERM, -EFAULT).
const (
	EPERM  = 1
	EFAULT = 14
	// ENAMETOOLONG is reserved for bounded-buffer overflows in path
	// walking; no current hook path produces it (paths are clamped, never
	// rejected). bpf/lsm.bpf.c defines only EPERM and EFAULT.
	ENAMETOOLONG = 36
)

// Kind enumerates the five terminal error kinds a hook invocation can reach.
type Kind int

const (
	// KindAllow is the neutral/allow outcome (Bypass, or an evaluated
	// match). Carries verdict 0.
	KindAllow Kind = iota
	// KindIoFault is a kernel-string read failure. Maps to -EFAULT when
	// the string was required for the decision, and is folded into
	// KindAllow by the caller when the read was opportunistic (file_open's
	// d_path).
	KindIoFault
	// KindLookupInconsistent is a process record pointing at a missing
	// container record. Maps to -EPERM.
	KindLookupInconsistent
	// KindPolicyDeny is a normal rule-evaluated deny. Maps to -EPERM.
	KindPolicyDeny
	// KindPrevDeny means a prior LSM program in the chain already denied;
	// this program's local verdict is discarded.
	KindPrevDeny
)

// Verdict is the outcome of a single hook decision unit, prior to C6
// combination with the previous program's return value.
type Verdict struct {
	Kind Kind
	// Errno is the raw return value this program would produce on its own,
	// before the combinator chain of §4.6 is applied. 0 means allow.
	Errno int
}

// Allow is the neutral/allow verdict.
func Allow() Verdict { return Verdict{Kind: KindAllow, Errno: 0} }

// Deny returns a KindPolicyDeny verdict mapped to -EPERM.
func Deny() Verdict { return Verdict{Kind: KindPolicyDeny, Errno: -EPERM} }

// FailClosed returns a KindLookupInconsistent verdict mapped to -EPERM.
func FailClosed() Verdict { return Verdict{Kind: KindLookupInconsistent, Errno: -EPERM} }

// IoFault returns a KindIoFault verdict mapped to -EFAULT.
func IoFault() Verdict { return Verdict{Kind: KindIoFault, Errno: -EFAULT} }

// Combine implements the result combinator (§4.6, C6): a non-zero previous
// return always wins, regardless of what this program's local verdict was.
// this still runs to completion for its side effects (registry updates,
// trace logs) even when prevRet will override its return value.
func Combine(this Verdict, prevRet int) int {
	if prevRet != 0 {
		return prevRet
	}
	return this.Errno
}
