// Copyright 2026 Google LLC. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fakecargo stands in for `cargo build` in tests. A test binary
// re-executes itself with EnvVar set and calls Main from TestMain; Main writes
// a synthetic firmware image where cargo would have put the example.
package fakecargo

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/imxrt-bootlayout/internal/layout"
	"github.com/google/imxrt-bootlayout/internal/testonly/elfbuild"
)

const (
	// EnvVar switches a test binary into fake cargo mode.
	EnvVar = "IMXRT_BOOTLAYOUT_FAKE_CARGO"
	// EnvExit makes the fake build fail with the given exit status.
	EnvExit = "FAKE_CARGO_EXIT"
	// EnvSleep delays the fake build by the given duration.
	EnvSleep = "FAKE_CARGO_SLEEP"
	// EnvArgs names a file the fake build writes its arguments to, one per line.
	EnvArgs = "FAKE_CARGO_ARGS"
)

// Enabled reports whether the current process should act as cargo.
func Enabled() bool {
	return os.Getenv(EnvVar) == "1"
}

func firmware(board string, nonboot bool) (elfbuild.Firmware, bool) {
	var fw elfbuild.Firmware
	switch board {
	case "teensy4":
		fw = elfbuild.Teensy4()
	case "__dcd":
		fw = elfbuild.Teensy4()
		fw.DCD = []byte{0xD2, 0x00, 0x08, 0x41, 0xC0, 0x00, 0x04, 0x00}
	case "imxrt1010evk":
		fw = elfbuild.IMXRT1010EVK()
	case "imxrt1170evk-cm7":
		fw = elfbuild.IMXRT1170EVK()
		if nonboot {
			fw = elfbuild.IMXRT1170EVKNonBoot()
		}
	default:
		return fw, false
	}
	return fw, true
}

// Main runs a fake `cargo build` with the given arguments (without the
// program name) and returns the process exit status.
func Main(args []string) int {
	if p := os.Getenv(EnvArgs); p != "" {
		if err := os.WriteFile(p, []byte(strings.Join(args, "\n")), 0o644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
	}
	if d := os.Getenv(EnvSleep); d != "" {
		dur, err := time.ParseDuration(d)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		time.Sleep(dur)
	}
	if s := os.Getenv(EnvExit); s != "" {
		n, _ := strconv.Atoi(s)
		fmt.Fprintf(os.Stderr, "error: forced failure %d\n", n)
		return n
	}

	if len(args) == 0 || args[0] != "build" {
		fmt.Fprintln(os.Stderr, "error: only build is supported")
		return 2
	}
	fs := flag.NewFlagSet("cargo build", flag.ContinueOnError)
	example := fs.String("example", "", "")
	features := fs.String("features", "", "")
	target := fs.String("target", "", "")
	targetDir := fs.String("target-dir", "target", "")
	fs.Bool("quiet", false, "")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	var board string
	var nonboot bool
	for _, f := range strings.Split(*features, ",") {
		switch f {
		case "board/rtic":
		case "board/nonboot":
			nonboot = true
		default:
			board = strings.TrimPrefix(f, "board/")
		}
	}
	if board == "__dcd_missize" {
		fmt.Fprintln(os.Stderr, "error: linking with `rust-lld` failed: DCD size must be a multiple of 4")
		return 101
	}
	fw, ok := firmware(board, nonboot)
	if !ok {
		fmt.Fprintf(os.Stderr, "error: unknown board %q\n", board)
		return 101
	}
	for _, o := range []struct {
		env string
		dst *uint64
	}{
		{layout.EnvStack, &fw.StackSize},
		{layout.EnvHeap, &fw.HeapSize},
	} {
		v, ok := os.LookupEnv(o.env)
		if !ok {
			continue
		}
		n, err := layout.ParseSize(v)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %s: %v\n", o.env, err)
			return 101
		}
		*o.dst = n
	}

	out := filepath.Join(*targetDir, *target, "debug", "examples", *example)
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if err := os.WriteFile(out, fw.Bytes(), 0o755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	return 0
}
