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

// Package elfimage indexes a linked firmware ELF file so that its symbols,
// sections and program headers can be queried by name.
//
// An Image is built once by Parse and never modified afterwards; all the
// records it hands out are copies.
package elfimage

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/golang/glog"
)

// Symbol is an entry from the ELF symbol table.
//
// Value is the link-time value of the symbol. For most symbols this is an
// address, but some symbols use it to carry a constant computed by the linker.
type Symbol struct {
	Name  string
	Value uint64
	Size  uint64
}

// Section is a section header.
type Section struct {
	Name string
	Type elf.SectionType
	// Addr is the run-time address (VMA) of the section.
	Addr   uint64
	Size   uint64
	Offset uint64
	Flags  elf.SectionFlag
}

// End returns the first run-time address after the section.
func (s Section) End() uint64 {
	return s.Addr + s.Size
}

// NoBits reports whether the section occupies no space in the file.
func (s Section) NoBits() bool {
	return s.Type == elf.SHT_NOBITS
}

// Segment is a program header.
type Segment struct {
	Type     elf.ProgType
	Flags    elf.ProgFlag
	Offset   uint64
	FileSize uint64
	VirtAddr uint64
	MemSize  uint64
	PhysAddr uint64
}

// Image is an indexed ELF file.
type Image struct {
	raw     []byte
	class   elf.Class
	machine elf.Machine
	entry   uint64

	symbols  []Symbol
	sections []Section
	segments []Segment

	symbolByName  map[string]int
	sectionByName map[string]int
}

// Load reads and parses the ELF file at path.
func Load(path string) (*Image, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ELF file %q: %w", path, err)
	}
	return Parse(b)
}

// Parse indexes the ELF image held in b.
//
// Only little-endian images are accepted. An image without a symbol table is
// valid and simply has no symbols.
func Parse(b []byte) (*Image, error) {
	f, err := elf.NewFile(bytes.NewReader(b))
	if err != nil {
		return nil, &MalformedBinaryError{Reason: "not an ELF image", Err: err}
	}
	defer f.Close()

	if f.Data != elf.ELFDATA2LSB {
		return nil, &MalformedBinaryError{Reason: fmt.Sprintf("unsupported byte order %v", f.Data)}
	}

	img := &Image{
		raw:           b,
		class:         f.Class,
		machine:       f.Machine,
		entry:         f.Entry,
		sections:      make([]Section, 0, len(f.Sections)),
		segments:      make([]Segment, 0, len(f.Progs)),
		symbolByName:  make(map[string]int),
		sectionByName: make(map[string]int),
	}

	for _, s := range f.Sections {
		img.sections = append(img.sections, Section{
			Name:   s.Name,
			Type:   s.Type,
			Addr:   s.Addr,
			Size:   s.Size,
			Offset: s.Offset,
			Flags:  s.Flags,
		})
	}
	for _, p := range f.Progs {
		img.segments = append(img.segments, Segment{
			Type:     p.Type,
			Flags:    p.Flags,
			Offset:   p.Off,
			FileSize: p.Filesz,
			VirtAddr: p.Vaddr,
			MemSize:  p.Memsz,
			PhysAddr: p.Paddr,
		})
	}

	syms, err := f.Symbols()
	switch {
	case errors.Is(err, elf.ErrNoSymbols):
		glog.V(2).Info("ELF image has no symbol table")
	case err != nil:
		return nil, &MalformedBinaryError{Reason: "unreadable symbol table", Err: err}
	}
	img.symbols = make([]Symbol, 0, len(syms))
	for _, s := range syms {
		img.symbols = append(img.symbols, Symbol{Name: s.Name, Value: s.Value, Size: s.Size})
	}

	// Names are expected to be unique. If they are not, the first record
	// wins, which is what a front-to-back search of the tables would return.
	for i, s := range img.sections {
		if _, ok := img.sectionByName[s.Name]; !ok && s.Name != "" {
			img.sectionByName[s.Name] = i
		}
	}
	for i, s := range img.symbols {
		if _, ok := img.symbolByName[s.Name]; !ok && s.Name != "" {
			img.symbolByName[s.Name] = i
		}
	}

	glog.V(2).Infof("Indexed ELF image: %d sections, %d segments, %d symbols", len(img.sections), len(img.segments), len(img.symbols))
	return img, nil
}

// Class returns the ELF class (32 or 64 bit) of the image.
func (i *Image) Class() elf.Class {
	return i.class
}

// Machine returns the target machine of the image.
func (i *Image) Machine() elf.Machine {
	return i.machine
}

// Entry returns the entry point recorded in the ELF header.
func (i *Image) Entry() uint64 {
	return i.entry
}

// Size returns the length of the raw image in bytes.
func (i *Image) Size() int {
	return len(i.raw)
}

// Symbol returns the symbol with the given name, if present.
func (i *Image) Symbol(name string) (Symbol, bool) {
	idx, ok := i.symbolByName[name]
	if !ok {
		return Symbol{}, false
	}
	return i.symbols[idx], true
}

// Section returns the section with the given name, if present.
func (i *Image) Section(name string) (Section, bool) {
	idx, ok := i.sectionByName[name]
	if !ok {
		return Section{}, false
	}
	return i.sections[idx], true
}

// LookupSymbol is like Symbol, but returns a *MissingSymbolError if there is
// no such symbol.
func (i *Image) LookupSymbol(name string) (Symbol, error) {
	s, ok := i.Symbol(name)
	if !ok {
		return Symbol{}, &MissingSymbolError{Name: name}
	}
	return s, nil
}

// LookupSection is like Section, but returns a *MissingSectionError if there
// is no such section.
func (i *Image) LookupSection(name string) (Section, error) {
	s, ok := i.Section(name)
	if !ok {
		return Section{}, &MissingSectionError{Name: name}
	}
	return s, nil
}

// Symbols returns the symbol table in file order.
func (i *Image) Symbols() []Symbol {
	return append([]Symbol(nil), i.symbols...)
}

// Sections returns the section headers in file order.
func (i *Image) Sections() []Section {
	return append([]Section(nil), i.sections...)
}

// Segments returns all program headers in file order.
func (i *Image) Segments() []Segment {
	return append([]Segment(nil), i.segments...)
}

// LoadSegments returns the PT_LOAD program headers in file order.
func (i *Image) LoadSegments() []Segment {
	var r []Segment
	for _, p := range i.segments {
		if p.Type == elf.PT_LOAD {
			r = append(r, p)
		}
	}
	return r
}

// Uint32At returns the little-endian word stored at the given file offset.
func (i *Image) Uint32At(offset uint64) (uint32, error) {
	if offset > uint64(len(i.raw)) || uint64(len(i.raw))-offset < 4 {
		return 0, &MalformedBinaryError{Reason: fmt.Sprintf("word at file offset 0x%x is beyond the end of the %d byte image", offset, len(i.raw))}
	}
	return binary.LittleEndian.Uint32(i.raw[offset : offset+4]), nil
}
