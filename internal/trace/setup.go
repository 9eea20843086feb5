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

// Package trace configures the daemon's logrus output, userspace stand-in
// for the kernel's printk-style debug facility (§6, Observability): every
// decision point logged here carries hook/pid/policy/verdict fields. The
// in-kernel programs print trace lines only for lineage inheritance,
// unwrapped-runtime denials and registry lookup errors; their per-hook
// verdicts are not traced.
package trace

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Setup configures logrus output destination, format and level, matching
// cmd/sysbox-fs/main.go's `--log`/`--log-format`/`--log-level` handling.
func Setup(logPath, logFormat, logLevel string) error {
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND|os.O_SYNC, 0666)
		if err != nil {
			return fmt.Errorf("opening log file %s: %w", logPath, err)
		}
		logrus.SetOutput(f)
	} else {
		logrus.SetOutput(os.Stderr)
	}

	if logFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
			FullTimestamp:   true,
		})
	}

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("log-level %q not recognized: %w", logLevel, err)
	}
	logrus.SetLevel(level)

	return nil
}
