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

// Package policy holds the ordered policy-level enum shared by the registry,
// the rule tables and every hook decision unit. It mirrors the
// container_policy_level enum in the in-kernel BPF programs (bpf/lsm.bpf.c)
// value for value, so a level read out of a BPF map can be cast directly to
// a Level without translation.
package policy

// Level is a three-valued ordered policy enum plus two lookup-outcome
// sentinels. Ordering matters: Restricted < Baseline < Privileged.
type Level int32

const (
	// LookupError means the registry is inconsistent for the process being
	// resolved (a process record points at a container record that no
	// longer exists). Hooks must fail closed on this value.
	LookupError Level = iota - 2
	// NotFound means the process is not containerized; hooks return the
	// neutral verdict regardless of hook-specific arguments.
	NotFound

	// Restricted is the most restrictive policy level.
	Restricted
	// Baseline is the middle policy level.
	Baseline
	// Privileged bypasses all further hook checks.
	Privileged
)

func (l Level) String() string {
	switch l {
	case LookupError:
		return "lookup-error"
	case NotFound:
		return "not-found"
	case Restricted:
		return "restricted"
	case Baseline:
		return "baseline"
	case Privileged:
		return "privileged"
	default:
		return "unknown"
	}
}

// Valid reports whether l is one of the three assignable container policy
// levels (excludes the two lookup-outcome sentinels).
func (l Level) Valid() bool {
	return l == Restricted || l == Baseline || l == Privileged
}
