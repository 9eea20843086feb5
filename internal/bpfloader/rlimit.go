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

// Package bpfloader wires internal/decision's pure-Go engine to real BPF
// maps and hook attachment points via cilium/ebpf, the way a production
// deployment of this engine actually runs.
package bpfloader

import (
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// BumpMemlockRlimit raises RLIMIT_MEMLOCK so the kernel will let this
// process pin the BPF maps and programs it is about to load. Kernels before
// 5.11 charge all BPF memory against RLIMIT_MEMLOCK.
func BumpMemlockRlimit() error {
	rlim := unix.Rlimit{Cur: unix.RLIM_INFINITY, Max: unix.RLIM_INFINITY}

	if err := unix.Setrlimit(unix.RLIMIT_MEMLOCK, &rlim); err != nil {
		rlim.Cur = 512 * 1024 * 1024
		rlim.Max = 512 * 1024 * 1024

		if err := unix.Setrlimit(unix.RLIMIT_MEMLOCK, &rlim); err != nil {
			logrus.Warnf("bpfloader: failed to raise RLIMIT_MEMLOCK: %v; continuing, may fail if maps are large", err)
			return nil
		}
	}

	return nil
}
