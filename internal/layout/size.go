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

package layout

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseSize parses a byte count written as a decimal integer, optionally
// followed by K or k for KiB. "4096" and "4K" are the same size.
func ParseSize(s string) (uint64, error) {
	mult := uint64(1)
	digits := s
	if n := len(s); n > 0 && (s[n-1] == 'K' || s[n-1] == 'k') {
		mult = 1024
		digits = s[:n-1]
	}
	if digits == "" || strings.TrimLeft(digits, "0123456789") != "" {
		return 0, fmt.Errorf("invalid size %q: want a decimal number of bytes with an optional K suffix", s)
	}
	v, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if v > math.MaxUint64/mult {
		return 0, fmt.Errorf("invalid size %q: overflows 64 bits", s)
	}
	return v * mult, nil
}

// Size is a byte count in a profile file. It accepts anything ParseSize
// does, as well as plain YAML integers such as 0x10000000.
type Size uint64

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Size) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: size must be a scalar", n.Line)
	}
	if v, err := ParseSize(n.Value); err == nil {
		*s = Size(v)
		return nil
	}
	var v uint64
	if err := n.Decode(&v); err != nil {
		return fmt.Errorf("line %d: invalid size %q", n.Line, n.Value)
	}
	*s = Size(v)
	return nil
}
