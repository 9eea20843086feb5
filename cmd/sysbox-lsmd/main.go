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
	"math/rand"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	systemd "github.com/coreos/go-systemd/daemon"
	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/nestybox/sysbox-lsm/internal/bpfloader"
	"github.com/nestybox/sysbox-lsm/internal/config"
	"github.com/nestybox/sysbox-lsm/internal/decision"
	"github.com/nestybox/sysbox-lsm/internal/trace"
)

const (
	lsmdRunDir    string = "/run/sysbox-lsmd"
	lsmdPidFile   string = lsmdRunDir + "/sysbox-lsmd.pid"
	defaultObject string = "/usr/lib/sysbox-lsm/lsm.bpf.o"
	usage         string = `sysbox-lsmd container security engine

sysbox-lsmd loads the lsm.bpf.c LSM/tracepoint programs, keeps the
in-kernel container and process registry in sync with its control-plane
seed (or an external publisher writing to the same BPF maps), and runs
until signaled to stop.
`
)

// Globals populated at build time (go build -ldflags "-X main.version=..."),
// mirroring the teacher daemon's version-stamping convention.
var (
	edition  string
	version  string
	commitId string
	builtAt  string
	builtBy  string
)

func exitHandler(signalChan chan os.Signal, loader *bpfloader.Loader, prof interface{ Stop() }) {
	var printStack = false

	s := <-signalChan

	logrus.Warnf("sysbox-lsmd caught signal: %s", s)
	logrus.Info("Stopping (gracefully) ...")

	systemd.SdNotify(false, systemd.SdNotifyStopping)

	switch s {
	case syscall.SIGABRT, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGSEGV:
		printStack = true
	}

	if printStack {
		stacktrace := make([]byte, 32768)
		length := runtime.Stack(stacktrace, true)
		logrus.Warnf("\n\n%s\n", string(stacktrace[:length]))
	}

	if err := loader.Close(); err != nil {
		logrus.Warnf("error detaching bpf programs: %v", err)
	}

	if prof != nil {
		prof.Stop()
	}

	if err := destroyPidFile(lsmdPidFile); err != nil {
		logrus.Warnf("failed to destroy sysbox-lsmd pid file: %v", err)
	}

	logrus.Info("Exiting ...")
	os.Exit(0)
}

func runProfiler(ctx *cli.Context) (interface{ Stop() }, error) {
	var prof interface{ Stop() }

	cpuProfOn := ctx.Bool("cpu-profiling")
	memProfOn := ctx.Bool("memory-profiling")

	if cpuProfOn && memProfOn {
		return nil, fmt.Errorf("unsupported parameter combination: cpu and memory profiling")
	}
	if !(cpuProfOn || memProfOn) {
		return nil, nil
	}

	if cpuProfOn {
		prof = profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook)
	}
	if memProfOn {
		prof = profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.NoShutdownHook)
	}

	return prof, nil
}

func setupRunDir() error {
	if err := os.MkdirAll(lsmdRunDir, 0700); err != nil {
		return fmt.Errorf("failed to create %s: %s", lsmdRunDir, err)
	}
	return nil
}

func main() {
	app := cli.NewApp()
	app.Name = "sysbox-lsmd"
	app.Usage = usage
	app.Version = version

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "bpf-object",
			Value: defaultObject,
			Usage: "path to the compiled lsm.bpf.c object",
		},
		cli.StringFlag{
			Name:  "seed",
			Value: "",
			Usage: "optional TOML seed file to pre-load containers, processes and rule tables",
		},
		cli.StringFlag{
			Name:  "log",
			Value: "",
			Usage: "log file path or empty string for stderr output (default: \"\")",
		},
		cli.StringFlag{
			Name:  "log-level",
			Value: "info",
			Usage: "log categories to include (debug, info, warning, error, fatal)",
		},
		cli.StringFlag{
			Name:  "log-format",
			Value: "text",
			Usage: "log format; must be json or text",
		},
		cli.BoolFlag{
			Name:   "cpu-profiling",
			Usage:  "enable cpu-profiling data collection",
			Hidden: true,
		},
		cli.BoolFlag{
			Name:   "memory-profiling",
			Usage:  "enable memory-profiling data collection",
			Hidden: true,
		},
	}

	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Printf("sysbox-lsmd\n"+
			"\tedition: \t%s\n"+
			"\tversion: \t%s\n"+
			"\tcommit: \t%s\n"+
			"\tbuilt at: \t%s\n"+
			"\tbuilt by: \t%s\n",
			edition, c.App.Version, commitId, builtAt, builtBy)
	}

	app.Before = func(ctx *cli.Context) error {
		rand.Seed(time.Now().UnixNano())

		if err := trace.Setup(ctx.GlobalString("log"), ctx.GlobalString("log-format"), ctx.GlobalString("log-level")); err != nil {
			logrus.Fatalf("%v. Exiting ...", err)
			return err
		}

		return nil
	}

	app.Action = func(ctx *cli.Context) error {
		logrus.Info("Initiating sysbox-lsmd ...")

		if err := checkPidFile(lsmdPidFile); err != nil {
			return err
		}

		if err := setupRunDir(); err != nil {
			return fmt.Errorf("failed to setup the sysbox-lsmd run dir: %v", err)
		}

		if err := bpfloader.BumpMemlockRlimit(); err != nil {
			return fmt.Errorf("failed to raise memlock rlimit: %v", err)
		}

		objectPath := ctx.GlobalString("bpf-object")
		logrus.Infof("bpf object = %s", objectPath)

		loader := bpfloader.NewLoader(objectPath)
		coll, err := loader.Load()
		if err != nil {
			return fmt.Errorf("failed to load bpf collection: %v", err)
		}

		maps, err := bpfloader.FromCollection(coll)
		if err != nil {
			return fmt.Errorf("failed to resolve bpf maps: %v", err)
		}

		if err := loader.AttachAll(); err != nil {
			return fmt.Errorf("failed to attach bpf programs: %v", err)
		}

		engine := decision.New()

		if seedPath := ctx.GlobalString("seed"); seedPath != "" {
			seed, err := config.Load(seedPath)
			if err != nil {
				return fmt.Errorf("failed to load seed file %s: %v", seedPath, err)
			}
			if err := seed.Apply(engine); err != nil {
				return fmt.Errorf("failed to apply seed file %s: %v", seedPath, err)
			}
			if err := publishSeedToMaps(maps, seed); err != nil {
				return fmt.Errorf("failed to publish seed to bpf maps: %v", err)
			}
			logrus.Infof("applied seed file %s", seedPath)
		}

		prof, err := runProfiler(ctx)
		if err != nil {
			logrus.Fatal(err)
		}

		exitChan := make(chan os.Signal, 1)
		signal.Notify(exitChan, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGSEGV, syscall.SIGQUIT)
		go exitHandler(exitChan, loader, prof)

		systemd.SdNotify(false, systemd.SdNotifyReady)

		if err := createPidFile(lsmdPidFile); err != nil {
			return fmt.Errorf("failed to create sysbox-lsmd.pid file: %s", err)
		}

		logrus.Info("Ready ...")

		select {}
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}
