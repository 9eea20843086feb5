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
	"github.com/cilium/ebpf/link"
	"github.com/sirupsen/logrus"
)

// ProgramNames are the function names of bpf/lsm.bpf.c's programs, the keys
// the loaded collection exposes them under (their SEC() annotations name the
// hooks of §6, External Interfaces). AttachLSM resolves the hook from the
// program's own BTF type information, so the loader only needs to know
// which programs in the collection to attach and which one is the raw
// tracepoint.
var ProgramNames = struct {
	Syslog        string
	SbMount       string
	TaskFixSetuid string
	FileOpen      string
	TaskAlloc     string
	ProcessFork   string
}{
	Syslog:        "syslog_audit",
	SbMount:       "mount_audit",
	TaskFixSetuid: "setuid_audit",
	FileOpen:      "open_audit",
	TaskAlloc:     "clone_audit",
	ProcessFork:   "sched_process_fork",
}

// Loader loads the compiled BPF object, resolves its maps, and attaches its
// programs to their kernel hooks.
type Loader struct {
	ObjectPath string

	coll  *ebpf.Collection
	links []link.Link
}

// NewLoader returns a Loader for the compiled object at objectPath (the
// output of building bpf/lsm.bpf.c with clang+libbpf CO-RE conventions,
// analogous to a bpf2go-generated `_bpfel.o`).
func NewLoader(objectPath string) *Loader {
	return &Loader{ObjectPath: objectPath}
}

// Load reads the CollectionSpec and instantiates it, pinning nothing by
// default (the control plane decides map pinning policy, out of scope here
// per §1).
func (l *Loader) Load() (*ebpf.Collection, error) {
	spec, err := ebpf.LoadCollectionSpec(l.ObjectPath)
	if err != nil {
		return nil, fmt.Errorf("bpfloader: loading collection spec from %s: %w", l.ObjectPath, err)
	}

	coll, err := ebpf.NewCollection(spec)
	if err != nil {
		return nil, fmt.Errorf("bpfloader: instantiating collection: %w", err)
	}

	l.coll = coll
	return coll, nil
}

// AttachAll attaches the five LSM hooks and the one tracepoint program
// (§6). The attached links are kept on the Loader for the daemon's
// lifetime; Close() detaches them on shutdown.
func (l *Loader) AttachAll() error {
	if l.coll == nil {
		return fmt.Errorf("bpfloader: Load must be called before AttachAll")
	}

	for _, name := range lsmPrograms() {
		prog, ok := l.coll.Programs[name]
		if !ok {
			return fmt.Errorf("bpfloader: collection missing program %q", name)
		}

		lk, err := link.AttachLSM(link.LSMOptions{Program: prog})
		if err != nil {
			return fmt.Errorf("bpfloader: attaching lsm program %q: %w", name, err)
		}
		l.links = append(l.links, lk)
		logrus.Infof("bpfloader: attached lsm hook %s", name)
	}

	forkProg, ok := l.coll.Programs[ProgramNames.ProcessFork]
	if !ok {
		return fmt.Errorf("bpfloader: collection missing program %q", ProgramNames.ProcessFork)
	}

	tpLink, err := link.AttachTracing(link.TracingOptions{Program: forkProg})
	if err != nil {
		return fmt.Errorf("bpfloader: attaching tracepoint program %q: %w", ProgramNames.ProcessFork, err)
	}
	l.links = append(l.links, tpLink)
	logrus.Infof("bpfloader: attached tracepoint %s", ProgramNames.ProcessFork)

	return nil
}

func lsmPrograms() []string {
	return []string{
		ProgramNames.Syslog,
		ProgramNames.SbMount,
		ProgramNames.TaskFixSetuid,
		ProgramNames.FileOpen,
		ProgramNames.TaskAlloc,
	}
}

// Close detaches every attached link and closes the collection.
func (l *Loader) Close() error {
	for _, lk := range l.links {
		if err := lk.Close(); err != nil {
			logrus.Warnf("bpfloader: error closing link: %v", err)
		}
	}
	if l.coll != nil {
		l.coll.Close()
	}
	return nil
}
