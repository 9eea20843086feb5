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

package bpfloader

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// The loader's Load/AttachAll paths require a running Linux kernel with BPF
// LSM support and an actual compiled object file, so they're exercised in
// integration environments rather than here. What's safe to pin down as a
// unit test is the naming contract against §6: these names must match
// whatever bpf/lsm.bpf.c's program functions and map definitions declare,
// since a rename on one side and not the other fails silently at runtime
// (missing-map/missing-program errors) rather than at compile time.
func TestProgramNames_MatchHookSurface(t *testing.T) {
	assert.Equal(t, "syslog_audit", ProgramNames.Syslog)
	assert.Equal(t, "mount_audit", ProgramNames.SbMount)
	assert.Equal(t, "setuid_audit", ProgramNames.TaskFixSetuid)
	assert.Equal(t, "open_audit", ProgramNames.FileOpen)
	assert.Equal(t, "clone_audit", ProgramNames.TaskAlloc)
	assert.Equal(t, "sched_process_fork", ProgramNames.ProcessFork)
}

func TestMapNames_MatchExternalInterface(t *testing.T) {
	assert.Equal(t, "runtimes", MapNames.Runtimes)
	assert.Equal(t, "containers", MapNames.Containers)
	assert.Equal(t, "processes", MapNames.Processes)
	assert.Equal(t, "allowed_paths_mount_restricted", MapNames.MountAllowRestricted)
	assert.Equal(t, "denied_paths_access_baseline", MapNames.AccessDenyBaseline)
}
