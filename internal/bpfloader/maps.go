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
	"fmt"

	"github.com/cilium/ebpf"

	"github.com/nestybox/sysbox-lsm/internal/policy"
	"github.com/nestybox/sysbox-lsm/internal/registry"
	"github.com/nestybox/sysbox-lsm/internal/rules"
)

// containerValue mirrors `struct container` in bpf/map_structs.h (a single
// enum container_policy_level field, 4 bytes) byte for byte.
type containerValue struct {
	PolicyLevel int32
}

// processValue mirrors `struct process { u32 container_id; }`.
type processValue struct {
	ContainerID uint32
}

// pathValue mirrors `struct accessed_path { unsigned char path[64]; }`.
type pathValue struct {
	Path [rules.PathLen]byte
}

// MapNames are the BPF map names the collection is expected to expose,
// matching the External Interfaces table of §6.
var MapNames = struct {
	Runtimes              string
	Containers            string
	Processes             string
	MountAllowRestricted  string
	MountAllowBaseline    string
	AccessAllowRestricted string
	AccessAllowBaseline   string
	AccessDenyRestricted  string
	AccessDenyBaseline    string
}{
	Runtimes:              "runtimes",
	Containers:            "containers",
	Processes:             "processes",
	MountAllowRestricted:  "allowed_paths_mount_restricted",
	MountAllowBaseline:    "allowed_paths_mount_baseline",
	AccessAllowRestricted: "allowed_paths_access_restricted",
	AccessAllowBaseline:   "allowed_paths_access_baseline",
	AccessDenyRestricted:  "denied_paths_access_restricted",
	AccessDenyBaseline:    "denied_paths_access_baseline",
}

// Maps bundles the live *ebpf.Map handles the daemon publishes
// control-plane updates through.
type Maps struct {
	Runtimes   *ebpf.Map
	Containers *ebpf.Map
	Processes  *ebpf.Map

	MountAllow  map[policy.Level]*ebpf.Map
	AccessAllow map[policy.Level]*ebpf.Map
	AccessDeny  map[policy.Level]*ebpf.Map
}

// FromCollection resolves the named maps out of a loaded *ebpf.Collection.
func FromCollection(coll *ebpf.Collection) (*Maps, error) {
	get := func(name string) (*ebpf.Map, error) {
		m, ok := coll.Maps[name]
		if !ok {
			return nil, fmt.Errorf("bpfloader: collection missing map %q", name)
		}
		return m, nil
	}

	runtimes, err := get(MapNames.Runtimes)
	if err != nil {
		return nil, err
	}
	containers, err := get(MapNames.Containers)
	if err != nil {
		return nil, err
	}
	processes, err := get(MapNames.Processes)
	if err != nil {
		return nil, err
	}

	mountAllowR, err := get(MapNames.MountAllowRestricted)
	if err != nil {
		return nil, err
	}
	mountAllowB, err := get(MapNames.MountAllowBaseline)
	if err != nil {
		return nil, err
	}
	accessAllowR, err := get(MapNames.AccessAllowRestricted)
	if err != nil {
		return nil, err
	}
	accessAllowB, err := get(MapNames.AccessAllowBaseline)
	if err != nil {
		return nil, err
	}
	accessDenyR, err := get(MapNames.AccessDenyRestricted)
	if err != nil {
		return nil, err
	}
	accessDenyB, err := get(MapNames.AccessDenyBaseline)
	if err != nil {
		return nil, err
	}

	return &Maps{
		Runtimes:   runtimes,
		Containers: containers,
		Processes:  processes,
		MountAllow: map[policy.Level]*ebpf.Map{
			policy.Restricted: mountAllowR,
			policy.Baseline:   mountAllowB,
		},
		AccessAllow: map[policy.Level]*ebpf.Map{
			policy.Restricted: accessAllowR,
			policy.Baseline:   accessAllowB,
		},
		AccessDeny: map[policy.Level]*ebpf.Map{
			policy.Restricted: accessDenyR,
			policy.Baseline:   accessDenyB,
		},
	}, nil
}

// PublishContainer writes a container record through to the `containers`
// BPF map, keeping the kernel-side view consistent with the in-process
// registry (§5: the whole record is published in one ebpf.Map.Put call, so a
// concurrent in-kernel reader never observes a torn struct).
func (m *Maps) PublishContainer(id uint32, rec registry.ContainerRecord) error {
	v := containerValue{PolicyLevel: int32(rec.PolicyLevel)}
	return m.Containers.Put(&id, &v)
}

// PublishProcess writes a process record through to the `processes` BPF map.
func (m *Maps) PublishProcess(pid int32, rec registry.ProcessRecord) error {
	key := uint32(pid)
	v := processValue{ContainerID: rec.ContainerID}
	return m.Processes.Put(&key, &v)
}

// RemoveContainer deletes a container record from the `containers` BPF map.
func (m *Maps) RemoveContainer(id uint32) error {
	return m.Containers.Delete(&id)
}

// RemoveProcess deletes a process record from the `processes` BPF map.
func (m *Maps) RemoveProcess(pid int32) error {
	key := uint32(pid)
	return m.Processes.Delete(&key)
}

// PublishRule writes one rule-table slot through to the given class's BPF
// map for level.
func PublishRule(byLevel map[policy.Level]*ebpf.Map, level policy.Level, slot uint32, prefix rules.PathPrefix) error {
	m, ok := byLevel[level]
	if !ok {
		return fmt.Errorf("bpfloader: no rule map for policy level %s", level)
	}
	v := pathValue{Path: prefix.Path}
	return m.Put(&slot, &v)
}
