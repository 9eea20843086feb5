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

package rules

import "github.com/nestybox/sysbox-lsm/internal/policy"

// TableSet groups the six rule tables of §3: one per (Restricted, Baseline)
// x (mount-allow, access-allow, access-deny). Privileged has no tables: it
// bypasses rule evaluation entirely (§4.5).
//
// The in-kernel BPF programs need one compile-time-resolved map reference
// per table (§9, "Two-phase policy switch") and so switch on level twice;
// this Go mirror has no such restriction and resolves the table in one step
// via the maps below.
type TableSet struct {
	MountAllow  map[policy.Level]*Table
	AccessAllow map[policy.Level]*Table
	AccessDeny  map[policy.Level]*Table
}

// NewTableSet allocates all six tables, empty.
func NewTableSet() *TableSet {
	return &TableSet{
		MountAllow: map[policy.Level]*Table{
			policy.Restricted: NewTable(),
			policy.Baseline:   NewTable(),
		},
		AccessAllow: map[policy.Level]*Table{
			policy.Restricted: NewTable(),
			policy.Baseline:   NewTable(),
		},
		AccessDeny: map[policy.Level]*Table{
			policy.Restricted: NewTable(),
			policy.Baseline:   NewTable(),
		},
	}
}
