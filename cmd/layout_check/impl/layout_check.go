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

// Package impl is the implementation of the layout checker, which builds
// firmware images for a set of boards (or takes an existing ELF file) and
// checks each one against its board's expected memory layout.
package impl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/google/imxrt-bootlayout/api"
	"github.com/google/imxrt-bootlayout/internal/attest"
	"github.com/google/imxrt-bootlayout/internal/build"
	"github.com/google/imxrt-bootlayout/internal/layout"
	"github.com/google/imxrt-bootlayout/internal/report"
	"golang.org/x/mod/sumdb/note"
	"golang.org/x/sync/errgroup"
)

// CheckOpts encapsulates options for a layout check run.
type CheckOpts struct {
	// ELFFile is an already built image. When set nothing is built.
	ELFFile string
	// Boards to check. Empty means every known profile, and is only allowed
	// when building.
	Boards []string
	// ProfilesFile is a YAML file of board profiles replacing the built-in ones.
	ProfilesFile string
	// Overrides are BOARD_STACK / BOARD_HEAP style build variables.
	Overrides map[string]string

	CargoDir     string
	CargoBinary  string
	BuildTimeout time.Duration
	Parallelism  int

	// SigningKeyFile holds a note signer key used to attest passing images.
	SigningKeyFile string
	JSON           bool

	// Builder replaces cargo when set.
	Builder build.Builder
	// Output defaults to stdout.
	Output io.Writer
}

// ErrFailed is returned by Main when at least one board did not pass.
var ErrFailed = errors.New("layout check failed")

func Main(ctx context.Context, opts CheckOpts) error {
	profiles := layout.Boards()
	if opts.ProfilesFile != "" {
		b, err := os.ReadFile(opts.ProfilesFile)
		if err != nil {
			return fmt.Errorf("failed to read profiles: %w", err)
		}
		if profiles, err = layout.LoadProfiles(b); err != nil {
			return err
		}
	}
	boards := opts.Boards
	if len(boards) == 0 {
		if opts.ELFFile != "" {
			return errors.New("--boards is required with --elf")
		}
		boards = layout.Names(profiles)
	}
	ps := make([]layout.Profile, 0, len(boards))
	for _, b := range boards {
		p, ok := layout.Find(profiles, b)
		if !ok {
			return fmt.Errorf("unknown board %q, want one of %s", b, strings.Join(layout.Names(profiles), ", "))
		}
		ps = append(ps, p)
	}
	if err := build.ValidateOverrides(opts.Overrides); err != nil {
		return err
	}

	var g report.Generator
	if opts.SigningKeyFile != "" {
		s, err := attest.LoadSigner(opts.SigningKeyFile)
		if err != nil {
			return err
		}
		g.Signers = []note.Signer{s}
	}

	c := &checker{opts: opts, gen: g, builder: opts.Builder}
	if c.builder == nil && opts.ELFFile == "" {
		if opts.CargoDir == "" {
			return errors.New("one of --cargo_dir or --elf is required")
		}
		c.builder = &build.Cargo{Dir: opts.CargoDir, Binary: opts.CargoBinary, Timeout: opts.BuildTimeout}
	}

	reports := make([]api.Report, len(ps))
	eg, ctx := errgroup.WithContext(ctx)
	if opts.Parallelism > 0 {
		eg.SetLimit(opts.Parallelism)
	}
	for i, p := range ps {
		i, p := i, p
		eg.Go(func() error {
			// Failures are recorded in the report and never cancel other boards.
			reports[i] = c.check(ctx, p)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	if err := write(opts, reports); err != nil {
		return err
	}
	failed := 0
	for _, r := range reports {
		if !r.Passed() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d board(s)", ErrFailed, failed, len(reports))
	}
	glog.Infof("All %d board(s) passed", len(reports))
	return nil
}

type checker struct {
	opts    CheckOpts
	gen     report.Generator
	builder build.Builder
}

// check produces the report for a single board.
func (c *checker) check(ctx context.Context, base layout.Profile) api.Report {
	p, err := base.WithOverrides(c.opts.Overrides)
	if err != nil {
		return api.Report{Board: base.Name, Error: err.Error()}
	}

	path := c.opts.ELFFile
	if path == "" {
		req := build.Request{Board: p.BuildBoard(), NonBoot: !p.Boot, Overrides: c.opts.Overrides}
		path, err = c.builder.Build(ctx, req)
		if p.ExpectBuildFailure {
			return expectedFailure(p, err)
		}
		if err != nil {
			return api.Report{Board: p.Name, Error: err.Error()}
		}
	} else if p.ExpectBuildFailure {
		return api.Report{Board: p.Name, Error: "profile only describes a failing build"}
	}

	image, err := os.ReadFile(path)
	if err != nil {
		return api.Report{Board: p.Name, Error: fmt.Sprintf("failed to read image: %v", err)}
	}
	r := c.gen.Generate(image, p)
	glog.V(1).Infof("%s", r)
	return r
}

// expectedFailure passes only if the build ran and exited unsuccessfully.
func expectedFailure(p layout.Profile, err error) api.Report {
	var se *build.SubprocessError
	switch {
	case err == nil:
		return api.Report{Board: p.Name, Error: "build succeeded, want failure"}
	case errors.As(err, &se):
		glog.Infof("%s: build failed as expected with exit status %d", p.Name, se.ExitStatus)
		return api.Report{Board: p.Name, Violations: []api.Violation{}}
	default:
		return api.Report{Board: p.Name, Error: err.Error()}
	}
}

func write(opts CheckOpts, reports []api.Report) error {
	w := opts.Output
	if w == nil {
		w = os.Stdout
	}
	if opts.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}
	for _, r := range reports {
		if _, err := fmt.Fprintln(w, r); err != nil {
			return err
		}
	}
	return nil
}
