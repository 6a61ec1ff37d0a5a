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

// Package report turns an ELF image and a board profile into an api.Report.
package report

import (
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/golang/glog"
	"github.com/google/imxrt-bootlayout/api"
	"github.com/google/imxrt-bootlayout/internal/attest"
	"github.com/google/imxrt-bootlayout/internal/elfimage"
	"github.com/google/imxrt-bootlayout/internal/layout"
	"golang.org/x/mod/sumdb/note"
)

// Hash returns the hex SHA512 of an image, as used in reports and the store.
func Hash(image []byte) string {
	h := sha512.Sum512(image)
	return hex.EncodeToString(h[:])
}

// Generator checks images and attests to the ones that pass.
// The zero value checks without signing.
type Generator struct {
	Signers []note.Signer
}

// Generate checks image against p. Problems with the image or the profile are
// recorded in the report's Error field rather than returned.
func (g Generator) Generate(image []byte, p layout.Profile) api.Report {
	r := api.Report{
		Board:       p.Name,
		ImageSHA512: Hash(image),
		Violations:  []api.Violation{},
	}
	img, err := elfimage.Parse(image)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	if err := layout.Check(img, p); err != nil {
		var vs layout.Violations
		if !errors.As(err, &vs) {
			r.Error = err.Error()
			return r
		}
		r.Violations = vs
		glog.Infof("%s: %d layout violation(s) in image %.16s", p.Name, len(vs), r.ImageSHA512)
		return r
	}
	if len(g.Signers) > 0 {
		att, err := attest.Sign(attest.Statement{Board: p.Name, ImageSHA512: r.ImageSHA512}, g.Signers...)
		if err != nil {
			r.Error = fmt.Sprintf("failed to sign report: %v", err)
			return r
		}
		r.Attestation = att
	}
	return r
}
