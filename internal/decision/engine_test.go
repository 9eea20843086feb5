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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nestybox/sysbox-lsm/internal/policy"
	"github.com/nestybox/sysbox-lsm/internal/rules"
)

// Scenario 1 (§8): syslog, Restricted process, prev_ret=0 -> -EPERM.
func TestScenario_Syslog_Restricted(t *testing.T) {
	e := New()
	require.NoError(t, e.Registry.UpsertContainer(1, policy.Restricted))
	require.NoError(t, e.Registry.UpsertProcess(4242, 1))

	assert.Equal(t, -policy.EPERM, e.Syslog(4242, 0))
}

// Scenario 2 (§8): sb_mount, Baseline, bind mount matching the baseline
// mount-allow table -> allow.
func TestScenario_SbMount_BaselineAllow(t *testing.T) {
	e := New()
	require.NoError(t, e.Registry.UpsertContainer(1, policy.Baseline))
	require.NoError(t, e.Registry.UpsertProcess(100, 1))
	require.NoError(t, e.Tables.MountAllow[policy.Baseline].Upsert(0, rules.NewPathPrefix("/var/lib/kubelet")))

	args := MountArgs{Type: "bind", DevName: "/var/lib/kubelet/pods/x", DevNameOK: true}
	assert.Equal(t, 0, e.SbMount(100, args, 0))
}

// Scenario 3 (§8): sb_mount, Restricted, non-bind type -> allow regardless
// of dev_name.
func TestScenario_SbMount_NonBindUnmediated(t *testing.T) {
	e := New()
	require.NoError(t, e.Registry.UpsertContainer(1, policy.Restricted))
	require.NoError(t, e.Registry.UpsertProcess(100, 1))

	args := MountArgs{Type: "tmpfs", DevName: "anything", DevNameOK: true}
	assert.Equal(t, 0, e.SbMount(100, args, 0))
}

// Scenario 4 (§8): file_open, Restricted, path "/" -> allow (root special
// case).
func TestScenario_FileOpen_RootSpecialCase(t *testing.T) {
	e := New()
	require.NoError(t, e.Registry.UpsertContainer(1, policy.Restricted))
	require.NoError(t, e.Registry.UpsertProcess(100, 1))

	args := FileOpenArgs{Path: "/", PathOK: true}
	assert.Equal(t, 0, e.FileOpen(100, args, 0))
}

// Scenario 5 (§8): file_open, Baseline, path in both deny and allow tables
// -> deny wins.
func TestScenario_FileOpen_DenyBeatsAllow(t *testing.T) {
	e := New()
	require.NoError(t, e.Registry.UpsertContainer(1, policy.Baseline))
	require.NoError(t, e.Registry.UpsertProcess(100, 1))
	require.NoError(t, e.Tables.AccessDeny[policy.Baseline].Upsert(0, rules.NewPathPrefix("/etc/shadow")))
	require.NoError(t, e.Tables.AccessAllow[policy.Baseline].Upsert(0, rules.NewPathPrefix("/etc")))

	args := FileOpenArgs{Path: "/etc/shadow", PathOK: true}
	assert.Equal(t, -policy.EPERM, e.FileOpen(100, args, 0))
}

// Scenario 6 (§8): task_fix_setuid threshold behavior.
func TestScenario_TaskFixSetuid(t *testing.T) {
	e := New()
	require.NoError(t, e.Registry.UpsertContainer(1, policy.Restricted))
	require.NoError(t, e.Registry.UpsertProcess(100, 1))

	assert.Equal(t, -policy.EPERM, e.TaskFixSetuid(100, SetuidArgs{OldUID: 1000, NewUID: 0}, 0))
	assert.Equal(t, 0, e.TaskFixSetuid(100, SetuidArgs{OldUID: 0, NewUID: 0}, 0))
	assert.Equal(t, 0, e.TaskFixSetuid(100, SetuidArgs{OldUID: 1000, NewUID: 1001}, 0))
}

// Scenario 7 (§8): lineage propagation across two fork generations.
func TestScenario_LineagePropagation(t *testing.T) {
	e := New()
	require.NoError(t, e.Registry.UpsertContainer(7, policy.Restricted))
	require.NoError(t, e.Registry.UpsertProcess(100, 7))

	assert.Equal(t, 0, e.TaskAlloc(100, 200, "app", 0))
	assert.Equal(t, -policy.EPERM, e.Syslog(200, 0))

	assert.Equal(t, 0, e.TaskAlloc(200, 300, "app", 0))
	assert.Equal(t, -policy.EPERM, e.Syslog(300, 0))
}

// Scenario 8 (§8): the combinator — a prior program's deny always wins.
func TestScenario_CombinatorPrevDenyWins(t *testing.T) {
	e := New()
	require.NoError(t, e.Registry.UpsertContainer(1, policy.Privileged))
	require.NoError(t, e.Registry.UpsertProcess(100, 1))

	const eacces = -13
	assert.Equal(t, eacces, e.Syslog(100, eacces))
}

// Invariant 4 (§8): Privileged allows regardless of hook arguments.
func TestInvariant_PrivilegedAlwaysAllows(t *testing.T) {
	e := New()
	require.NoError(t, e.Registry.UpsertContainer(1, policy.Privileged))
	require.NoError(t, e.Registry.UpsertProcess(100, 1))

	assert.Equal(t, 0, e.Syslog(100, 0))
	assert.Equal(t, 0, e.SbMount(100, MountArgs{Type: "bind", DevName: "/nope", DevNameOK: true}, 0))
	assert.Equal(t, 0, e.FileOpen(100, FileOpenArgs{Path: "/etc/shadow", PathOK: true}, 0))
	assert.Equal(t, 0, e.TaskFixSetuid(100, SetuidArgs{OldUID: 1000, NewUID: 0}, 0))
}

// Invariant 5 (§8): NotFound allows regardless of hook arguments.
func TestInvariant_NotFoundAlwaysAllows(t *testing.T) {
	e := New()

	assert.Equal(t, 0, e.Syslog(999, 0))
	assert.Equal(t, 0, e.FileOpen(999, FileOpenArgs{Path: "/etc/shadow", PathOK: true}, 0))
}

// Invariant 1 (§8): registry inconsistency denies and is surfaced as
// LookupError, not silently allowed.
func TestInvariant_LookupErrorFailsClosed(t *testing.T) {
	e := New()
	require.NoError(t, e.Registry.UpsertContainer(1, policy.Restricted))
	require.NoError(t, e.Registry.UpsertProcess(100, 1))
	require.NoError(t, e.Registry.RemoveContainer(1))

	assert.Equal(t, -policy.EPERM, e.Syslog(100, 0))
	assert.Equal(t, -policy.EPERM, e.FileOpen(100, FileOpenArgs{Path: "/", PathOK: true}, 0))
}

func TestSbMount_DevNameUnreadableFaults(t *testing.T) {
	e := New()
	require.NoError(t, e.Registry.UpsertContainer(1, policy.Restricted))
	require.NoError(t, e.Registry.UpsertProcess(100, 1))

	args := MountArgs{Type: "bind", DevNameOK: false}
	assert.Equal(t, -policy.EFAULT, e.SbMount(100, args, 0))
}

func TestSbMount_NullTypeAllowsAsQuirk(t *testing.T) {
	e := New()
	require.NoError(t, e.Registry.UpsertContainer(1, policy.Restricted))
	require.NoError(t, e.Registry.UpsertProcess(100, 1))

	args := MountArgs{TypeNull: true}
	assert.Equal(t, 0, e.SbMount(100, args, 0))
}

func TestFileOpen_UnreadablePathAllowsOpportunistically(t *testing.T) {
	e := New()
	require.NoError(t, e.Registry.UpsertContainer(1, policy.Restricted))
	require.NoError(t, e.Registry.UpsertProcess(100, 1))

	args := FileOpenArgs{PathOK: false}
	assert.Equal(t, 0, e.FileOpen(100, args, 0))
}

func TestFileOpen_DefaultDenyWhenNoRuleMatches(t *testing.T) {
	e := New()
	require.NoError(t, e.Registry.UpsertContainer(1, policy.Restricted))
	require.NoError(t, e.Registry.UpsertProcess(100, 1))

	args := FileOpenArgs{Path: "/some/unlisted/path", PathOK: true}
	assert.Equal(t, -policy.EPERM, e.FileOpen(100, args, 0))
}

func TestSchedProcessFork_NotChainedWithPrevRet(t *testing.T) {
	e := New()
	require.NoError(t, e.Registry.UpsertContainer(7, policy.Restricted))
	require.NoError(t, e.Registry.UpsertProcess(100, 7))

	assert.Equal(t, 0, e.SchedProcessFork(100, 200, "app"))
	assert.Equal(t, policy.Restricted, e.Registry.Resolve(200))
}

// §12: the disabled-by-default unwrapped-runtime-deny pathway, enabled.
func TestTaskAlloc_DenyUnwrappedRuntime(t *testing.T) {
	e := New()
	e.Lineage.DenyUnwrappedRuntime = true
	require.NoError(t, e.Lineage.Runtimes.Add("runc:[2:INIT]"))

	// Pid 900's parent (800) has no process record: an init process
	// arriving without going through the control plane first.
	assert.Equal(t, -policy.EPERM, e.TaskAlloc(800, 900, "runc:[2:INIT]", 0))
	assert.Equal(t, policy.NotFound, e.Registry.Resolve(900))
}

// §12: left disabled by default, the same arrival is a silent allow.
func TestTaskAlloc_UnwrappedRuntimeAllowedWhenDisabled(t *testing.T) {
	e := New()
	require.NoError(t, e.Lineage.Runtimes.Add("runc:[2:INIT]"))

	assert.Equal(t, 0, e.TaskAlloc(800, 900, "runc:[2:INIT]", 0))
}
