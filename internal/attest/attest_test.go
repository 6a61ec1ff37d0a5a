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

package attest

import (
	"bytes"
	"crypto/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/mod/sumdb/note"
)

var hash = strings.Repeat("ab", 64)

func keys(t *testing.T, name string) (string, string) {
	t.Helper()
	skey, vkey, err := note.GenerateKey(rand.Reader, name)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return skey, vkey
}

func TestSignOpen(t *testing.T) {
	skey, vkey := keys(t, "layout-checker")
	when := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, err := newSigner(skey, func() time.Time { return when })
	if err != nil {
		t.Fatalf("newSigner: %v", err)
	}
	v, err := NewVerifier(vkey)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	want := Statement{Board: "teensy4", ImageSHA512: hash}
	msg, err := Sign(want, s)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !bytes.HasPrefix(msg, []byte(Origin+"\nteensy4\n")) {
		t.Errorf("unexpected note text:\n%s", msg)
	}
	got, err := Open(msg, v)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Statement diff (-want +got):\n%s", diff)
	}

	n, err := note.Open(msg, note.VerifierList(v))
	if err != nil {
		t.Fatalf("note.Open: %v", err)
	}
	at, err := SignedAt(n.Sigs[0])
	if err != nil {
		t.Fatalf("SignedAt: %v", err)
	}
	if !at.Equal(when) {
		t.Errorf("SignedAt: got %v, want %v", at, when)
	}
}

func TestOpenFailures(t *testing.T) {
	skey, vkey := keys(t, "layout-checker")
	_, otherVKey := keys(t, "layout-checker")
	s, err := NewSigner(skey)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	msg, err := Sign(Statement{Board: "imxrt1010evk", ImageSHA512: hash}, s)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	v, _ := NewVerifier(vkey)
	other, _ := NewVerifier(otherVKey)
	plain, err := note.NewVerifier(vkey)
	if err != nil {
		t.Fatalf("note.NewVerifier: %v", err)
	}

	for _, test := range []struct {
		desc string
		msg  []byte
		v    note.Verifier
	}{
		{desc: "wrong key", msg: msg, v: other},
		{desc: "untimestamped verifier", msg: msg, v: plain},
		{desc: "tampered", msg: bytes.Replace(msg, []byte("imxrt1010evk"), []byte("imxrt1170evk"), 1), v: v},
	} {
		t.Run(test.desc, func(t *testing.T) {
			if _, err := Open(test.msg, test.v); err == nil {
				t.Error("Open: got nil error")
			}
		})
	}
}

func TestStatement(t *testing.T) {
	for _, test := range []struct {
		desc    string
		s       Statement
		wantErr bool
	}{
		{desc: "ok", s: Statement{Board: "imxrt1170evk-cm7-nonboot", ImageSHA512: hash}},
		{desc: "no board", s: Statement{ImageSHA512: hash}, wantErr: true},
		{desc: "newline in board", s: Statement{Board: "a\nb", ImageSHA512: hash}, wantErr: true},
		{desc: "short hash", s: Statement{Board: "teensy4", ImageSHA512: "abcd"}, wantErr: true},
		{desc: "not hex", s: Statement{Board: "teensy4", ImageSHA512: strings.Repeat("zz", 64)}, wantErr: true},
	} {
		t.Run(test.desc, func(t *testing.T) {
			text, err := test.s.Marshal()
			if gotErr := err != nil; gotErr != test.wantErr {
				t.Fatalf("Marshal: got err %v, want err %t", err, test.wantErr)
			}
			if err != nil {
				return
			}
			got, err := ParseStatement(text)
			if err != nil {
				t.Fatalf("ParseStatement: %v", err)
			}
			if diff := cmp.Diff(test.s, got); diff != "" {
				t.Errorf("Statement diff (-want +got):\n%s", diff)
			}
		})
	}

	for _, text := range []string{"", Origin + "\nteensy4\n", "other/v0\nteensy4\n" + hash + "\n", Origin + "\nteensy4\n" + hash} {
		if _, err := ParseStatement(text); err == nil {
			t.Errorf("ParseStatement(%q): got nil error", text)
		}
	}
}

func TestKeys(t *testing.T) {
	skey, vkey := keys(t, "k")
	for _, test := range []struct {
		desc    string
		f       func() error
		wantErr bool
	}{
		{desc: "signer", f: func() error { _, err := NewSigner(skey); return err }},
		{desc: "verifier", f: func() error { _, err := NewVerifier(vkey); return err }},
		{desc: "verifier key as signer", f: func() error { _, err := NewSigner(vkey); return err }, wantErr: true},
		{desc: "signer key as verifier", f: func() error { _, err := NewVerifier(skey); return err }, wantErr: true},
		{desc: "bad hash", f: func() error { _, err := NewVerifier("k+00000000+" + strings.SplitN(vkey, "+", 3)[2]); return err }, wantErr: true},
		{desc: "garbage", f: func() error { _, err := NewVerifier("nonsense"); return err }, wantErr: true},
	} {
		t.Run(test.desc, func(t *testing.T) {
			if err := test.f(); (err != nil) != test.wantErr {
				t.Errorf("got err %v, want err %t", err, test.wantErr)
			}
		})
	}
}

func TestTimestampedKeyHash(t *testing.T) {
	skey, vkey := keys(t, "k")
	s, err := NewSigner(skey)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	v, err := NewVerifier(vkey)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	plain, err := note.NewVerifier(vkey)
	if err != nil {
		t.Fatalf("note.NewVerifier: %v", err)
	}
	if s.KeyHash() != v.KeyHash() {
		t.Errorf("signer hash %08x != verifier hash %08x", s.KeyHash(), v.KeyHash())
	}
	if v.KeyHash() == plain.KeyHash() {
		t.Errorf("timestamped key hash %08x equals the plain Ed25519 one", v.KeyHash())
	}
}

func TestLoadSigner(t *testing.T) {
	skey, vkey := keys(t, "file-key")
	dir := t.TempDir()
	good := filepath.Join(dir, "good")
	if err := os.WriteFile(good, []byte(skey+"\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	bad := filepath.Join(dir, "bad")
	if err := os.WriteFile(bad, []byte(vkey), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s, err := LoadSigner(good)
	if err != nil {
		t.Fatalf("LoadSigner: %v", err)
	}
	v, err := NewVerifier(vkey)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	if s.Name() != "file-key" || s.KeyHash() != v.KeyHash() {
		t.Errorf("got signer (%s, %08x), want (%s, %08x)", s.Name(), s.KeyHash(), v.Name(), v.KeyHash())
	}
	for _, p := range []string{bad, filepath.Join(dir, "missing")} {
		if _, err := LoadSigner(p); err == nil {
			t.Errorf("LoadSigner(%q): got nil error", p)
		}
	}
}
