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

// Package attest signs and verifies statements that a firmware image passed
// the layout checks for a board. Statements are signed notes, in the format
// of golang.org/x/mod/sumdb/note.
package attest

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/mod/sumdb/note"
)

// Origin is the first line of every statement.
const Origin = "imxrt-bootlayout/layout-check/v0"

// Statement asserts that the image with the given hash has the layout the
// named board profile expects.
type Statement struct {
	Board       string
	ImageSHA512 string
}

// Marshal returns the note text for the statement.
func (s Statement) Marshal() (string, error) {
	if s.Board == "" || strings.ContainsAny(s.Board, "\n ") {
		return "", fmt.Errorf("invalid board name %q", s.Board)
	}
	if b, err := hex.DecodeString(s.ImageSHA512); err != nil || len(b) != 64 {
		return "", fmt.Errorf("invalid image hash %q", s.ImageSHA512)
	}
	return fmt.Sprintf("%s\n%s\n%s\n", Origin, s.Board, s.ImageSHA512), nil
}

// ParseStatement parses note text written by Marshal.
func ParseStatement(text string) (Statement, error) {
	lines := strings.Split(text, "\n")
	if len(lines) != 4 || lines[3] != "" {
		return Statement{}, errors.New("statement must be three lines")
	}
	if lines[0] != Origin {
		return Statement{}, fmt.Errorf("unknown origin %q", lines[0])
	}
	s := Statement{Board: lines[1], ImageSHA512: lines[2]}
	if _, err := s.Marshal(); err != nil {
		return Statement{}, err
	}
	return s, nil
}

// Sign returns the signed note for s.
func Sign(s Statement, signers ...note.Signer) ([]byte, error) {
	text, err := s.Marshal()
	if err != nil {
		return nil, err
	}
	return note.Sign(&note.Note{Text: text}, signers...)
}

// Open verifies a signed statement with the given verifiers and returns it.
func Open(msg []byte, verifiers ...note.Verifier) (Statement, error) {
	n, err := note.Open(msg, note.VerifierList(verifiers...))
	if err != nil {
		return Statement{}, fmt.Errorf("failed to verify statement: %w", err)
	}
	return ParseStatement(n.Text)
}

// LoadSigner reads a note signer key from the file at path and returns a
// timestamped Signer for it.
func LoadSigner(path string) (note.Signer, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}
	s, err := NewSigner(strings.TrimSpace(string(b)))
	if err != nil {
		return nil, fmt.Errorf("invalid signing key in %q: %w", path, err)
	}
	return s, nil
}
