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
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/mod/sumdb/note"
)

const (
	// algEd25519WithTimestamp is the key type byte hashed into the key ID of
	// timestamped signers, keeping their IDs apart from plain Ed25519 ones.
	algEd25519WithTimestamp = 3

	timestampSize = 8
)

// NewSigner constructs a Signer that produces timestamped Ed25519 signatures
// from a standard encoded note signer key, as made by note.GenerateKey.
//
// The returned Signer has a different key hash from a non-timestamped one,
// so its signatures only verify with a Verifier from NewVerifier.
func NewSigner(skey string) (note.Signer, error) {
	return newSigner(skey, time.Now)
}

func newSigner(skey string, now func() time.Time) (note.Signer, error) {
	// The note package checks the encoding, name, key hash and algorithm.
	std, err := note.NewSigner(skey)
	if err != nil {
		return nil, err
	}
	seed, err := rawKey(skey)
	if err != nil {
		return nil, err
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &signer{
		name: std.Name(),
		hash: timestampedKeyHash(std.Name(), pub),
		priv: priv,
		now:  now,
	}, nil
}

// NewVerifier constructs a Verifier for signatures made by NewSigner, from
// the standard encoded verifier key of the same key pair.
func NewVerifier(vkey string) (note.Verifier, error) {
	std, err := note.NewVerifier(vkey)
	if err != nil {
		return nil, err
	}
	pub, err := rawKey(vkey)
	if err != nil {
		return nil, err
	}
	return &verifier{
		name: std.Name(),
		hash: timestampedKeyHash(std.Name(), pub),
		pub:  ed25519.PublicKey(pub),
	}, nil
}

// rawKey returns the key bytes of an encoded note key that note.NewSigner or
// note.NewVerifier has already accepted, without the algorithm byte.
func rawKey(encoded string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(encoded[strings.LastIndex(encoded, "+")+1:])
	if err != nil || len(b) < 2 {
		return nil, errors.New("malformed key")
	}
	return b[1:], nil
}

func timestampedKeyHash(name string, pub ed25519.PublicKey) uint32 {
	h := sha256.New()
	fmt.Fprintf(h, "%s\n", name)
	h.Write([]byte{algEd25519WithTimestamp})
	h.Write(pub)
	return binary.BigEndian.Uint32(h.Sum(nil))
}

// timestamped returns the message actually signed: a zero byte, which no
// note text can start with, then the timestamp and the note text.
func timestamped(t uint64, msg []byte) []byte {
	m := make([]byte, 1, 1+timestampSize+len(msg))
	m = binary.LittleEndian.AppendUint64(m, t)
	return append(m, msg...)
}

type signer struct {
	name string
	hash uint32
	priv ed25519.PrivateKey
	now  func() time.Time
}

func (s *signer) Name() string    { return s.name }
func (s *signer) KeyHash() uint32 { return s.hash }

// Sign returns the signing time followed by the Ed25519 signature.
func (s *signer) Sign(msg []byte) ([]byte, error) {
	t := uint64(s.now().Unix())
	sig := binary.LittleEndian.AppendUint64(make([]byte, 0, timestampSize+ed25519.SignatureSize), t)
	return append(sig, ed25519.Sign(s.priv, timestamped(t, msg))...), nil
}

type verifier struct {
	name string
	hash uint32
	pub  ed25519.PublicKey
}

func (v *verifier) Name() string    { return v.name }
func (v *verifier) KeyHash() uint32 { return v.hash }

func (v *verifier) Verify(msg, sig []byte) bool {
	if len(sig) != timestampSize+ed25519.SignatureSize {
		return false
	}
	t := binary.LittleEndian.Uint64(sig)
	return ed25519.Verify(v.pub, timestamped(t, msg), sig[timestampSize:])
}

// SignedAt returns the time recorded in a signature made by NewSigner.
func SignedAt(sig note.Signature) (time.Time, error) {
	b, err := base64.StdEncoding.DecodeString(sig.Base64)
	if err != nil {
		return time.Time{}, err
	}
	// The first four bytes are the key hash.
	if len(b) != 4+timestampSize+ed25519.SignatureSize {
		return time.Time{}, errors.New("not a timestamped signature")
	}
	return time.Unix(int64(binary.LittleEndian.Uint64(b[4:])), 0).UTC(), nil
}
