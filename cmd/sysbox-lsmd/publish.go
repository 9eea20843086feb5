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

package main

import (
	"fmt"

	"github.com/cilium/ebpf"

	"github.com/nestybox/sysbox-lsm/internal/bpfloader"
	"github.com/nestybox/sysbox-lsm/internal/config"
	"github.com/nestybox/sysbox-lsm/internal/policy"
	"github.com/nestybox/sysbox-lsm/internal/registry"
	"github.com/nestybox/sysbox-lsm/internal/rules"
)

// publishSeedToMaps mirrors a just-applied seed file through to the live
// BPF maps, so a standalone sysbox-lsmd started with --seed enforces the
// same state in-kernel that engine.Registry/engine.Tables hold in process,
// without waiting for an external control plane to publish anything.
func publishSeedToMaps(maps *bpfloader.Maps, seed *config.Seed) error {
	for _, c := range seed.Containers {
		level, err := config.ParseLevel(c.PolicyLevel)
		if err != nil {
			return fmt.Errorf("container %d: %w", c.ID, err)
		}
		if err := maps.PublishContainer(c.ID, registry.ContainerRecord{PolicyLevel: level}); err != nil {
			return fmt.Errorf("container %d: %w", c.ID, err)
		}
	}

	for _, p := range seed.Processes {
		if err := maps.PublishProcess(p.PID, registry.ProcessRecord{ContainerID: p.ContainerID}); err != nil {
			return fmt.Errorf("process %d: %w", p.PID, err)
		}
	}

	if err := publishRuleSeeds(maps.MountAllow, seed.MountAllow); err != nil {
		return fmt.Errorf("mount_allow: %w", err)
	}
	if err := publishRuleSeeds(maps.AccessAllow, seed.AccessAllow); err != nil {
		return fmt.Errorf("access_allow: %w", err)
	}
	if err := publishRuleSeeds(maps.AccessDeny, seed.AccessDeny); err != nil {
		return fmt.Errorf("access_deny: %w", err)
	}

	return nil
}

func publishRuleSeeds(byLevel map[policy.Level]*ebpf.Map, seeds []config.PathRuleSeed) error {
	for _, r := range seeds {
		level, err := config.ParseLevel(r.PolicyLevel)
		if err != nil {
			return err
		}
		if err := bpfloader.PublishRule(byLevel, level, r.Slot, rules.NewPathPrefix(r.Path)); err != nil {
			return err
		}
	}
	return nil
}
