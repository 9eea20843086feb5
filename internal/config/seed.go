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

// Package config reads the daemon's optional on-disk seed file: a snapshot
// of containers, processes and rule tables an operator can pre-load before
// the external control plane (§1, Out of scope) takes over and starts
// publishing its own updates. It is a convenience for local testing and
// cold-start bring-up, not a replacement for the control-plane contract at
// the map boundary (§6).
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/nestybox/sysbox-lsm/internal/decision"
	"github.com/nestybox/sysbox-lsm/internal/policy"
	"github.com/nestybox/sysbox-lsm/internal/rules"
)

// Seed is the on-disk shape of the seed file.
type Seed struct {
	SetuidThreshold      uint32          `toml:"setuid_threshold"`
	DenyUnwrappedRuntime bool            `toml:"deny_unwrapped_runtime"`
	RuntimeNames         []string        `toml:"runtime_names"`
	Containers           []ContainerSeed `toml:"container"`
	Processes            []ProcessSeed   `toml:"process"`
	MountAllow           []PathRuleSeed  `toml:"mount_allow"`
	AccessAllow          []PathRuleSeed  `toml:"access_allow"`
	AccessDeny           []PathRuleSeed  `toml:"access_deny"`
}

// ContainerSeed seeds one container record.
type ContainerSeed struct {
	ID          uint32 `toml:"id"`
	PolicyLevel string `toml:"policy_level"`
}

// ProcessSeed seeds one process record.
type ProcessSeed struct {
	PID         int32  `toml:"pid"`
	ContainerID uint32 `toml:"container_id"`
}

// PathRuleSeed seeds one rule-table entry.
type PathRuleSeed struct {
	Slot        uint32 `toml:"slot"`
	PolicyLevel string `toml:"policy_level"`
	Path        string `toml:"path"`
}

// Load parses a TOML seed file at path.
func Load(path string) (*Seed, error) {
	var s Seed
	if _, err := toml.DecodeFile(path, &s); err != nil {
		return nil, fmt.Errorf("config: decoding seed file %s: %w", path, err)
	}
	return &s, nil
}

// Apply populates an Engine's registry and rule tables from the seed.
func (s *Seed) Apply(e *decision.Engine) error {
	if s.SetuidThreshold != 0 {
		e.SetuidThreshold = s.SetuidThreshold
	}

	e.Lineage.DenyUnwrappedRuntime = s.DenyUnwrappedRuntime
	for _, name := range s.RuntimeNames {
		if err := e.Lineage.Runtimes.Add(name); err != nil {
			return fmt.Errorf("config: runtime_names: %w", err)
		}
	}

	for _, c := range s.Containers {
		level, err := ParseLevel(c.PolicyLevel)
		if err != nil {
			return fmt.Errorf("config: container %d: %w", c.ID, err)
		}
		if err := e.Registry.UpsertContainer(c.ID, level); err != nil {
			return fmt.Errorf("config: container %d: %w", c.ID, err)
		}
	}

	for _, p := range s.Processes {
		if err := e.Registry.UpsertProcess(p.PID, p.ContainerID); err != nil {
			return fmt.Errorf("config: process %d: %w", p.PID, err)
		}
	}

	if err := applyRules(e.Tables.MountAllow, s.MountAllow); err != nil {
		return fmt.Errorf("config: mount_allow: %w", err)
	}
	if err := applyRules(e.Tables.AccessAllow, s.AccessAllow); err != nil {
		return fmt.Errorf("config: access_allow: %w", err)
	}
	if err := applyRules(e.Tables.AccessDeny, s.AccessDeny); err != nil {
		return fmt.Errorf("config: access_deny: %w", err)
	}

	return nil
}

func applyRules(byLevel map[policy.Level]*rules.Table, seeds []PathRuleSeed) error {
	for _, r := range seeds {
		level, err := ParseLevel(r.PolicyLevel)
		if err != nil {
			return err
		}
		table, ok := byLevel[level]
		if !ok {
			return fmt.Errorf("policy level %s has no rule table of this class", level)
		}
		if err := table.Upsert(r.Slot, rules.NewPathPrefix(r.Path)); err != nil {
			return err
		}
	}
	return nil
}

// ParseLevel parses a seed file's policy_level string into a policy.Level.
func ParseLevel(s string) (policy.Level, error) {
	switch s {
	case "restricted":
		return policy.Restricted, nil
	case "baseline":
		return policy.Baseline, nil
	case "privileged":
		return policy.Privileged, nil
	default:
		return policy.NotFound, fmt.Errorf("unrecognized policy level %q", s)
	}
}
