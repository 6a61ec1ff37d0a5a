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

// Package build produces firmware images to check by running the board
// support package's cargo build.
package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/google/imxrt-bootlayout/internal/layout"
)

const (
	// DefaultExample is the example every board profile describes.
	DefaultExample = "blink-rtic"
	// DefaultTarget is the Cortex-M7 hard float target triple.
	DefaultTarget = "thumbv7em-none-eabihf"
	// DefaultTimeout bounds a single build.
	DefaultTimeout = 10 * time.Minute

	stderrTail = 4096
)

// Request describes one image to build.
type Request struct {
	// Board is the board feature, e.g. "teensy4" or "__dcd".
	Board string
	// NonBoot builds an image without boot metadata.
	NonBoot bool
	// Overrides are passed to the build as environment variables.
	Overrides map[string]string
}

// Builder produces the ELF file for a Request and returns its path.
type Builder interface {
	Build(ctx context.Context, req Request) (string, error)
}

// SubprocessError is returned when the build ran and failed.
type SubprocessError struct {
	Board      string
	ExitStatus int
	// Stderr holds the end of the build's error output.
	Stderr string
}

func (e *SubprocessError) Error() string {
	return fmt.Sprintf("build of %q failed with exit status %d", e.Board, e.ExitStatus)
}

// Cargo builds images with cargo in a board support package checkout.
type Cargo struct {
	// Dir is the root of the cargo workspace.
	Dir string
	// Binary is the cargo executable. Defaults to "cargo".
	Binary  string
	Example string
	Target  string
	Timeout time.Duration
}

func (c *Cargo) binary() string {
	if c.Binary != "" {
		return c.Binary
	}
	return "cargo"
}

func (c *Cargo) example() string {
	if c.Example != "" {
		return c.Example
	}
	return DefaultExample
}

func (c *Cargo) target() string {
	if c.Target != "" {
		return c.Target
	}
	return DefaultTarget
}

func (c *Cargo) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

func targetDir(req Request) string {
	d := "target/" + req.Board
	if req.NonBoot {
		d += "-nonboot"
	}
	return d
}

// Args returns the cargo command line for req, without the program name.
func (c *Cargo) Args(req Request) []string {
	features := []string{"board/" + req.Board, "board/rtic"}
	if req.NonBoot {
		features = append(features, "board/nonboot")
	}
	return []string{
		"build",
		"--example=" + c.example(),
		"--features=" + strings.Join(features, ","),
		"--target=" + c.target(),
		"--target-dir=" + targetDir(req),
		"--quiet",
	}
}

// OutputPath returns where the image for req is written, relative to Dir.
func (c *Cargo) OutputPath(req Request) string {
	return filepath.Join(filepath.FromSlash(targetDir(req)), c.target(), "debug", "examples", c.example())
}

// ValidateOverrides checks the sizes the linker script will read. Unknown
// variables are allowed and passed through.
func ValidateOverrides(env map[string]string) error {
	for _, k := range []string{layout.EnvStack, layout.EnvHeap} {
		if v, ok := env[k]; ok {
			if _, err := layout.ParseSize(v); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
		}
	}
	return nil
}

// Build runs cargo and returns the path of the built image.
func (c *Cargo) Build(ctx context.Context, req Request) (string, error) {
	if req.Board == "" {
		return "", errors.New("no board to build")
	}
	if err := ValidateOverrides(req.Overrides); err != nil {
		return "", fmt.Errorf("invalid overrides for %q: %w", req.Board, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	args := c.Args(req)
	cmd := exec.CommandContext(ctx, c.binary(), args...)
	cmd.Dir = c.Dir
	cmd.Env = cmd.Environ()
	keys := make([]string, 0, len(req.Overrides))
	for k := range req.Overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cmd.Env = append(cmd.Env, k+"="+req.Overrides[k])
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	glog.Infof("Building %s: %s %s", req.Board, c.binary(), strings.Join(args, " "))
	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("build of %q did not finish: %w", req.Board, ctxErr)
		}
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			tail := stderr.String()
			if len(tail) > stderrTail {
				tail = tail[len(tail)-stderrTail:]
			}
			glog.V(1).Infof("Build of %s failed:\n%s", req.Board, tail)
			return "", &SubprocessError{Board: req.Board, ExitStatus: ee.ExitCode(), Stderr: tail}
		}
		return "", fmt.Errorf("failed to run %s: %w", c.binary(), err)
	}
	glog.Infof("Built %s in %v", req.Board, time.Since(start))
	return filepath.Join(c.Dir, c.OutputPath(req)), nil
}
