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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nestybox/sysbox-lsm/internal/decision"
	"github.com/nestybox/sysbox-lsm/internal/policy"
)

const sampleSeed = `
setuid_threshold = 500

[[container]]
id = 7
policy_level = "restricted"

[[process]]
pid = 100
container_id = 7

[[mount_allow]]
slot = 0
policy_level = "restricted"
path = "/var/lib/kubelet"

[[access_deny]]
slot = 0
policy_level = "restricted"
path = "/etc/shadow"
`

func writeSeed(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadAndApply(t *testing.T) {
	path := writeSeed(t, sampleSeed)

	seed, err := Load(path)
	require.NoError(t, err)

	e := decision.New()
	require.NoError(t, seed.Apply(e))

	assert.Equal(t, uint32(500), e.SetuidThreshold)
	assert.Equal(t, policy.Restricted, e.Registry.Resolve(100))
	assert.True(t, e.Tables.MountAllow[policy.Restricted].MatchAny("/var/lib/kubelet/x"))
	assert.True(t, e.Tables.AccessDeny[policy.Restricted].MatchAny("/etc/shadow"))
}

func TestApply_DenyUnwrappedRuntime(t *testing.T) {
	path := writeSeed(t, `
deny_unwrapped_runtime = true
runtime_names = ["runc:[2:INIT]"]
`)

	seed, err := Load(path)
	require.NoError(t, err)

	e := decision.New()
	require.NoError(t, seed.Apply(e))

	assert.True(t, e.Lineage.DenyUnwrappedRuntime)
	assert.True(t, e.Lineage.Runtimes.Contains("runc:[2:INIT]"))
	assert.Equal(t, -policy.EPERM, e.TaskAlloc(800, 900, "runc:[2:INIT]", 0))
}

func TestApply_UnknownPolicyLevel(t *testing.T) {
	path := writeSeed(t, `
[[container]]
id = 1
policy_level = "bogus"
`)
	seed, err := Load(path)
	require.NoError(t, err)

	e := decision.New()
	assert.Error(t, seed.Apply(e))
}
