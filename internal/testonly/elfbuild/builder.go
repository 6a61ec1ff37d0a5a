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

// Package elfbuild writes small, well-formed ELF files for use in tests.
//
// The file layout is fixed: ELF header, section contents in the order they
// were added, .symtab, .strtab, .shstrtab, section headers and finally the
// program headers. Because the program headers come last, adding segments
// never moves section contents, so Offset can be used before Bytes.
package elfbuild

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
)

// Section describes a section to emit.
type Section struct {
	Name string
	// Type defaults to SHT_PROGBITS.
	Type  elf.SectionType
	Flags elf.SectionFlag
	Addr  uint64
	// Size is only used for SHT_NOBITS sections, others take the length of Data.
	Size uint64
	Data []byte
}

func (s Section) size() uint64 {
	if s.Type == elf.SHT_NOBITS {
		return s.Size
	}
	return uint64(len(s.Data))
}

// Symbol describes an absolute symbol to emit.
type Symbol struct {
	Name  string
	Value uint64
	Size  uint64
}

type segment struct {
	raw      *elf.ProgHeader
	lma      uint64
	sections []string
}

// Builder accumulates sections, symbols and segments.
type Builder struct {
	// Class defaults to ELFCLASS32.
	Class elf.Class
	// BigEndian selects ELFDATA2MSB output.
	BigEndian bool
	// Machine defaults to EM_ARM.
	Machine elf.Machine

	sections []Section
	symbols  []Symbol
	segments []segment
}

// New returns an empty 32-bit little-endian ARM builder.
func New() *Builder {
	return &Builder{Class: elf.ELFCLASS32, Machine: elf.EM_ARM}
}

// AddSection appends a section.
func (b *Builder) AddSection(s Section) *Builder {
	if s.Type == elf.SHT_NULL {
		s.Type = elf.SHT_PROGBITS
	}
	b.sections = append(b.sections, s)
	return b
}

// AddSymbol appends an absolute symbol.
func (b *Builder) AddSymbol(name string, value, size uint64) *Builder {
	b.symbols = append(b.symbols, Symbol{Name: name, Value: value, Size: size})
	return b
}

// AddLoad appends a PT_LOAD segment spanning the named sections, which must
// have been added contiguously and in this order. The segment's virtual
// address is that of the first section and its physical address is lma.
func (b *Builder) AddLoad(lma uint64, sections ...string) *Builder {
	b.segments = append(b.segments, segment{lma: lma, sections: sections})
	return b
}

// AddProg appends a program header verbatim.
func (b *Builder) AddProg(h elf.ProgHeader) *Builder {
	b.segments = append(b.segments, segment{raw: &h})
	return b
}

func (b *Builder) is64() bool {
	return b.Class == elf.ELFCLASS64
}

func (b *Builder) order() binary.ByteOrder {
	if b.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func (b *Builder) headerSize() uint64 {
	if b.is64() {
		return 64
	}
	return 52
}

func align(v, a uint64) uint64 {
	return (v + a - 1) &^ (a - 1)
}

// offsets returns the file offset of every added section.
func (b *Builder) offsets() []uint64 {
	offs := make([]uint64, len(b.sections))
	off := b.headerSize()
	for i, s := range b.sections {
		off = align(off, 4)
		offs[i] = off
		if s.Type != elf.SHT_NOBITS {
			off += uint64(len(s.Data))
		}
	}
	return offs
}

func (b *Builder) index(name string) int {
	for i, s := range b.sections {
		if s.Name == name {
			return i
		}
	}
	panic(fmt.Sprintf("elfbuild: no section named %q", name))
}

// Offset returns the file offset the named section will have.
func (b *Builder) Offset(name string) uint64 {
	return b.offsets()[b.index(name)]
}

func (b *Builder) progHeaders(offs []uint64) []elf.ProgHeader {
	var r []elf.ProgHeader
	for _, seg := range b.segments {
		if seg.raw != nil {
			r = append(r, *seg.raw)
			continue
		}
		first := b.index(seg.sections[0])
		h := elf.ProgHeader{
			Type:  elf.PT_LOAD,
			Flags: elf.PF_R,
			Off:   offs[first],
			Vaddr: b.sections[first].Addr,
			Paddr: seg.lma,
			Align: 4,
		}
		for _, name := range seg.sections {
			i := b.index(name)
			s := b.sections[i]
			if s.Type != elf.SHT_NOBITS {
				if end := offs[i] + s.size() - h.Off; end > h.Filesz {
					h.Filesz = end
				}
			}
			if end := s.Addr + s.size() - h.Vaddr; end > h.Memsz {
				h.Memsz = end
			}
			if s.Flags&elf.SHF_EXECINSTR != 0 {
				h.Flags |= elf.PF_X
			}
			if s.Flags&elf.SHF_WRITE != 0 {
				h.Flags |= elf.PF_W
			}
		}
		r = append(r, h)
	}
	return r
}

type strtab struct {
	buf bytes.Buffer
}

func newStrtab() *strtab {
	t := &strtab{}
	t.buf.WriteByte(0)
	return t
}

func (t *strtab) add(s string) uint32 {
	if s == "" {
		return 0
	}
	off := uint32(t.buf.Len())
	t.buf.WriteString(s)
	t.buf.WriteByte(0)
	return off
}

// Bytes serialises the file. It panics if a segment names an unknown section.
func (b *Builder) Bytes() []byte {
	ord := b.order()
	offs := b.offsets()
	progs := b.progHeaders(offs)

	// Section indices: 0 is null, then user sections, then the three tables.
	symtabIdx := len(b.sections) + 1
	strtabIdx := symtabIdx + 1
	shstrtabIdx := strtabIdx + 1
	shnum := shstrtabIdx + 1

	shstr := newStrtab()
	str := newStrtab()

	var symtab bytes.Buffer
	symEntSize := uint64(16)
	if b.is64() {
		symEntSize = 24
		binary.Write(&symtab, ord, elf.Sym64{})
		for _, s := range b.symbols {
			binary.Write(&symtab, ord, elf.Sym64{
				Name:  str.add(s.Name),
				Info:  elf.ST_INFO(elf.STB_GLOBAL, elf.STT_NOTYPE),
				Shndx: uint16(elf.SHN_ABS),
				Value: s.Value,
				Size:  s.Size,
			})
		}
	} else {
		binary.Write(&symtab, ord, elf.Sym32{})
		for _, s := range b.symbols {
			binary.Write(&symtab, ord, elf.Sym32{
				Name:  str.add(s.Name),
				Value: uint32(s.Value),
				Size:  uint32(s.Size),
				Info:  elf.ST_INFO(elf.STB_GLOBAL, elf.STT_NOTYPE),
				Shndx: uint16(elf.SHN_ABS),
			})
		}
	}

	type hdr struct {
		name              uint32
		typ               elf.SectionType
		flags             elf.SectionFlag
		addr, off, size   uint64
		link, info        uint32
		addralign, entsiz uint64
	}
	hdrs := []hdr{{}}

	var out bytes.Buffer
	out.Write(make([]byte, b.headerSize()))
	pad := func(a uint64) {
		for uint64(out.Len())%a != 0 {
			out.WriteByte(0)
		}
	}
	for i, s := range b.sections {
		pad(4)
		if uint64(out.Len()) != offs[i] {
			panic("elfbuild: section offset mismatch")
		}
		if s.Type != elf.SHT_NOBITS {
			out.Write(s.Data)
		}
		hdrs = append(hdrs, hdr{
			name:      shstr.add(s.Name),
			typ:       s.Type,
			flags:     s.Flags,
			addr:      s.Addr,
			off:       offs[i],
			size:      s.size(),
			addralign: 4,
		})
	}

	pad(8)
	hdrs = append(hdrs, hdr{
		name:      shstr.add(".symtab"),
		typ:       elf.SHT_SYMTAB,
		off:       uint64(out.Len()),
		size:      uint64(symtab.Len()),
		link:      uint32(strtabIdx),
		info:      1,
		addralign: 4,
		entsiz:    symEntSize,
	})
	out.Write(symtab.Bytes())

	hdrs = append(hdrs, hdr{
		name:      shstr.add(".strtab"),
		typ:       elf.SHT_STRTAB,
		off:       uint64(out.Len()),
		size:      uint64(str.buf.Len()),
		addralign: 1,
	})
	out.Write(str.buf.Bytes())

	shstrName := shstr.add(".shstrtab")
	hdrs = append(hdrs, hdr{
		name:      shstrName,
		typ:       elf.SHT_STRTAB,
		off:       uint64(out.Len()),
		size:      uint64(shstr.buf.Len()),
		addralign: 1,
	})
	out.Write(shstr.buf.Bytes())

	pad(8)
	shoff := uint64(out.Len())
	for _, h := range hdrs {
		if b.is64() {
			binary.Write(&out, ord, elf.Section64{
				Name: h.name, Type: uint32(h.typ), Flags: uint64(h.flags),
				Addr: h.addr, Off: h.off, Size: h.size,
				Link: h.link, Info: h.info, Addralign: h.addralign, Entsize: h.entsiz,
			})
		} else {
			binary.Write(&out, ord, elf.Section32{
				Name: h.name, Type: uint32(h.typ), Flags: uint32(h.flags),
				Addr: uint32(h.addr), Off: uint32(h.off), Size: uint32(h.size),
				Link: h.link, Info: h.info, Addralign: uint32(h.addralign), Entsize: uint32(h.entsiz),
			})
		}
	}

	phoff := uint64(0)
	if len(progs) > 0 {
		phoff = uint64(out.Len())
	}
	for _, p := range progs {
		if b.is64() {
			binary.Write(&out, ord, elf.Prog64{
				Type: uint32(p.Type), Flags: uint32(p.Flags), Off: p.Off,
				Vaddr: p.Vaddr, Paddr: p.Paddr, Filesz: p.Filesz, Memsz: p.Memsz, Align: p.Align,
			})
		} else {
			binary.Write(&out, ord, elf.Prog32{
				Type: uint32(p.Type), Off: uint32(p.Off), Vaddr: uint32(p.Vaddr), Paddr: uint32(p.Paddr),
				Filesz: uint32(p.Filesz), Memsz: uint32(p.Memsz), Flags: uint32(p.Flags), Align: uint32(p.Align),
			})
		}
	}

	data := elf.ELFDATA2LSB
	if b.BigEndian {
		data = elf.ELFDATA2MSB
	}
	class := b.Class
	if class == elf.ELFCLASSNONE {
		class = elf.ELFCLASS32
	}
	var ident [elf.EI_NIDENT]byte
	copy(ident[:], elf.ELFMAG)
	ident[elf.EI_CLASS] = byte(class)
	ident[elf.EI_DATA] = byte(data)
	ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	var eh bytes.Buffer
	if b.is64() {
		binary.Write(&eh, ord, elf.Header64{
			Ident: ident, Type: uint16(elf.ET_EXEC), Machine: uint16(b.Machine),
			Version: uint32(elf.EV_CURRENT), Phoff: phoff, Shoff: shoff,
			Ehsize: 64, Phentsize: 56, Phnum: uint16(len(progs)),
			Shentsize: 64, Shnum: uint16(shnum), Shstrndx: uint16(shstrtabIdx),
		})
	} else {
		binary.Write(&eh, ord, elf.Header32{
			Ident: ident, Type: uint16(elf.ET_EXEC), Machine: uint16(b.Machine),
			Version: uint32(elf.EV_CURRENT), Phoff: uint32(phoff), Shoff: uint32(shoff),
			Ehsize: 52, Phentsize: 32, Phnum: uint16(len(progs)),
			Shentsize: 40, Shnum: uint16(shnum), Shstrndx: uint16(shstrtabIdx),
		})
	}

	r := out.Bytes()
	copy(r, eh.Bytes())
	return r
}
