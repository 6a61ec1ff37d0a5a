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

// layout_check builds i.MX RT example firmware for one or more boards and
// checks that each image has the memory layout its board expects.
//
// Usage:
//
//	go run ./cmd/layout_check --logtostderr --cargo_dir=/path/to/imxrt-rt --boards=teensy4,imxrt1010evk
//
// An existing image can be checked without building it:
//
//	go run ./cmd/layout_check --logtostderr --elf=/path/to/example --boards=teensy4
//
// Stack and heap sizes can be changed for the build, and the checker then
// expects the new sizes:
//
//	go run ./cmd/layout_check --cargo_dir=... --boards=teensy4 --override=BOARD_STACK=4096 --override=BOARD_HEAP=8K
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/golang/glog"
	"github.com/google/imxrt-bootlayout/cmd/layout_check/impl"
	"github.com/google/imxrt-bootlayout/internal/build"
)

var (
	elfFile        = flag.String("elf", "", "Path to an ELF image to check instead of building one")
	boards         = flag.String("boards", "", "Comma separated board profiles to check. Defaults to all when building")
	profilesFile   = flag.String("profiles", "", "YAML file with board profiles. Defaults to the built-in profiles")
	cargoDir       = flag.String("cargo_dir", "", "Root of the cargo workspace to build the examples in")
	cargoBinary    = flag.String("cargo", "cargo", "cargo executable")
	buildTimeout   = flag.Duration("build_timeout", build.DefaultTimeout, "Maximum duration of a single build")
	parallelism    = flag.Int("parallelism", 2, "Maximum number of boards built and checked at once")
	signingKeyFile = flag.String("signing_key_file", "", "File holding a note signer key used to attest passing images")
	jsonOut        = flag.Bool("json", false, "Write reports as JSON")
	overrides      = overrideFlag{}
)

func init() {
	flag.Var(overrides, "override", "KEY=VALUE build variable, e.g. BOARD_STACK=4096. May be repeated")
}

// overrideFlag collects repeated KEY=VALUE flags.
type overrideFlag map[string]string

func (o overrideFlag) String() string {
	kv := make([]string, 0, len(o))
	for k, v := range o {
		kv = append(kv, k+"="+v)
	}
	return strings.Join(kv, ",")
}

func (o overrideFlag) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	if !ok || k == "" {
		return fmt.Errorf("want KEY=VALUE, got %q", s)
	}
	o[k] = v
	return nil
}

func main() {
	flag.Parse()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var bs []string
	if *boards != "" {
		bs = strings.Split(*boards, ",")
	}
	if err := impl.Main(ctx, impl.CheckOpts{
		ELFFile:        *elfFile,
		Boards:         bs,
		ProfilesFile:   *profilesFile,
		Overrides:      overrides,
		CargoDir:       *cargoDir,
		CargoBinary:    *cargoBinary,
		BuildTimeout:   *buildTimeout,
		Parallelism:    *parallelism,
		SigningKeyFile: *signingKeyFile,
		JSON:           *jsonOut,
	}); err != nil {
		glog.Exit(err.Error())
	}
}
