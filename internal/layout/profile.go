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
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Memory region names used in profiles.
const (
	ITCM  = "ITCM"
	DTCM  = "DTCM"
	OCRAM = "OCRAM"
	FLASH = "FLASH"
)

// Section names, in the order the linker places them.
const (
	SectionStack       = ".stack"
	SectionVectorTable = ".vector_table"
	SectionXIP         = ".xip"
	SectionText        = ".text"
	SectionRodata      = ".rodata"
	SectionData        = ".data"
	SectionBSS         = ".bss"
	SectionUninit      = ".uninit"
	SectionHeap        = ".heap"
)

// Environment variables understood by the linker script.
const (
	EnvStack = "BOARD_STACK"
	EnvHeap  = "BOARD_HEAP"
)

// Chain is the order sections are linked in. Only .xip may be absent.
var Chain = []string{
	SectionStack,
	SectionVectorTable,
	SectionXIP,
	SectionText,
	SectionRodata,
	SectionData,
	SectionBSS,
	SectionUninit,
	SectionHeap,
}

var (
	loaded = []string{SectionVectorTable, SectionXIP, SectionText, SectionRodata, SectionData}
	noLoad = []string{SectionStack, SectionBSS, SectionUninit, SectionHeap}
)

func optional(section string) bool {
	return section == SectionXIP
}

// Region is a contiguous memory window. A zero Size leaves the end unchecked.
type Region struct {
	Base uint64 `yaml:"base"`
	Size Size   `yaml:"size"`
}

// Contains reports whether [addr, addr+size) lies inside the region.
func (r Region) Contains(addr, size uint64) bool {
	if addr < r.Base {
		return false
	}
	if r.Size == 0 {
		return true
	}
	off := addr - r.Base
	return off <= uint64(r.Size) && size <= uint64(r.Size)-off
}

func (r Region) String() string {
	if r.Size == 0 {
		return fmt.Sprintf("[0x%x, ...)", r.Base)
	}
	return fmt.Sprintf("[0x%x, 0x%x)", r.Base, r.Base+uint64(r.Size))
}

// Placement says where a section runs and how it is stored.
type Placement struct {
	// Region holds the section's run-time address. FLASH means execute in place.
	Region string `yaml:"region"`
	// Packed sections are stored directly behind the previous loaded section.
	Packed bool `yaml:"packed"`
}

// Profile is the expected layout of one board's firmware image.
type Profile struct {
	Name string `yaml:"name"`
	// Boot profiles carry FCB, IVT and boot data in a .boot section.
	Boot bool `yaml:"boot"`

	Regions   map[string]Region    `yaml:"regions"`
	Placement map[string]Placement `yaml:"placement"`

	StackSize       Size `yaml:"stack_size"`
	HeapSize        Size `yaml:"heap_size"`
	VectorTableSize Size `yaml:"vector_table_size"`

	// ImageStart is the load address of the vector table.
	ImageStart    uint64   `yaml:"image_start"`
	FCBAddress    uint64   `yaml:"fcb_address"`
	FlexRAMConfig uint64   `yaml:"flexram_config"`
	XIPSymbols    []string `yaml:"xip_symbols"`

	// CargoBoard is the board feature to build with, if different from Name.
	CargoBoard string `yaml:"build_board"`
	// ExpectBuildFailure marks profiles whose image must not link.
	ExpectBuildFailure bool `yaml:"expect_build_failure"`
}

// BuildBoard returns the board feature the image is built with.
func (p Profile) BuildBoard() string {
	if p.CargoBoard != "" {
		return p.CargoBoard
	}
	return p.Name
}

// Validate checks that the profile is usable by Check.
func (p Profile) Validate() error {
	if p.Name == "" {
		return errors.New("profile has no name")
	}
	if _, ok := p.Regions[FLASH]; !ok {
		return fmt.Errorf("profile %q: no %s region", p.Name, FLASH)
	}
	for _, s := range Chain {
		pl, ok := p.Placement[s]
		if !ok {
			if optional(s) {
				continue
			}
			return fmt.Errorf("profile %q: no placement for %s", p.Name, s)
		}
		if _, ok := p.Regions[pl.Region]; !ok {
			return fmt.Errorf("profile %q: %s placed in unknown region %q", p.Name, s, pl.Region)
		}
	}
	for _, s := range noLoad {
		if p.Placement[s].Region == FLASH {
			return fmt.Errorf("profile %q: %s is not loaded and cannot live in %s", p.Name, s, FLASH)
		}
	}
	if pl := p.Placement[SectionVectorTable]; pl.Packed {
		return fmt.Errorf("profile %q: %s starts the image and cannot be packed", p.Name, SectionVectorTable)
	}
	for s := range p.Placement {
		if !inChain(s) {
			return fmt.Errorf("profile %q: placement for unknown section %q", p.Name, s)
		}
	}
	if p.VectorTableSize == 0 {
		return fmt.Errorf("profile %q: vector_table_size must be set", p.Name)
	}
	if !p.Regions[FLASH].Contains(p.ImageStart, 0) {
		return fmt.Errorf("profile %q: image_start 0x%x is outside %s %s", p.Name, p.ImageStart, FLASH, p.Regions[FLASH])
	}
	return nil
}

func inChain(s string) bool {
	for _, c := range Chain {
		if c == s {
			return true
		}
	}
	return false
}

// WithOverrides returns a copy of the profile expecting the stack and heap
// sizes set by BOARD_STACK and BOARD_HEAP in env. Other variables are ignored.
func (p Profile) WithOverrides(env map[string]string) (Profile, error) {
	for _, o := range []struct {
		key string
		dst *Size
	}{
		{EnvStack, &p.StackSize},
		{EnvHeap, &p.HeapSize},
	} {
		v, ok := env[o.key]
		if !ok {
			continue
		}
		n, err := ParseSize(v)
		if err != nil {
			return Profile{}, fmt.Errorf("%s: %w", o.key, err)
		}
		*o.dst = Size(n)
	}
	return p, nil
}

type profileFile struct {
	Boards []Profile `yaml:"boards"`
}

// LoadProfiles parses a YAML document with a top level "boards" list. Unknown
// keys, duplicate names and invalid profiles are errors.
func LoadProfiles(b []byte) ([]Profile, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	var f profileFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse profiles: %w", err)
	}
	seen := make(map[string]bool)
	for _, p := range f.Boards {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("duplicate profile %q", p.Name)
		}
		seen[p.Name] = true
	}
	return f.Boards, nil
}

//go:embed boards.yaml
var boardsYAML []byte

// Boards returns the built-in board profiles.
func Boards() []Profile {
	ps, err := LoadProfiles(boardsYAML)
	if err != nil {
		panic(fmt.Sprintf("built-in profiles: %v", err))
	}
	return ps
}

// Find returns the profile with the given name.
func Find(ps []Profile, name string) (Profile, bool) {
	for _, p := range ps {
		if p.Name == name {
			return p, true
		}
	}
	return Profile{}, false
}

// Names returns the sorted names of the profiles.
func Names(ps []Profile) []string {
	r := make([]string, 0, len(ps))
	for _, p := range ps {
		r = append(r, p.Name)
	}
	sort.Strings(r)
	return r
}
