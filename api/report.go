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

// Package api contains the types shared by the layout checking tools and the
// layout server.
package api

import (
	"fmt"
	"strings"
)

// Violation is one broken layout rule.
type Violation struct {
	// Field names what was checked, e.g. ".text LMA" or "IVT boot data".
	Field    string
	Expected string
	Actual   string
}

// String returns a one line description of the violation.
func (v Violation) String() string {
	return fmt.Sprintf("%s: expected %s, got %s", v.Field, v.Expected, v.Actual)
}

// Report is the outcome of checking one image against one board profile.
type Report struct {
	Board string
	// ImageSHA512 is the hex SHA512 of the ELF image that was checked.
	ImageSHA512 string `json:",omitempty"`
	Violations  []Violation
	// Error is set when the image could not be produced or checked at all.
	Error string `json:",omitempty"`
	// Attestation is a signed note over the report, present for passing
	// reports when the checker was given a signing key.
	Attestation []byte `json:",omitempty"`
}

// Passed returns true if the image was checked and no rule was broken.
func (r Report) Passed() bool {
	return r.Error == "" && len(r.Violations) == 0
}

// String returns a compact multi-line summary of the report.
func (r Report) String() string {
	var b strings.Builder
	switch {
	case r.Error != "":
		fmt.Fprintf(&b, "%s: ERROR: %s", r.Board, r.Error)
	case len(r.Violations) == 0:
		fmt.Fprintf(&b, "%s: PASS", r.Board)
	default:
		fmt.Fprintf(&b, "%s: FAIL (%d violations)", r.Board, len(r.Violations))
		for _, v := range r.Violations {
			fmt.Fprintf(&b, "\n  %s", v)
		}
	}
	return b.String()
}
