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

package elfbuild

import (
	"debug/elf"
	"encoding/binary"
)

const (
	// IVTOffset is where the image vector table sits relative to the start of flash.
	IVTOffset = 0x1000
	// DCDOffset is where a device configuration data block sits relative to the IVT.
	DCDOffset = 0x40

	ivtHeader = 0x402000D1
	flash     = "FLASH"
)

// Firmware describes an i.MX RT firmware image, laid out the way the
// imxrt-rt linker script places sections.
type Firmware struct {
	// Boot includes the .boot section with FCB, IVT and boot data.
	Boot bool
	// FlashBase is the start of the FlexSPI flash window.
	FlashBase uint64
	// ImageOffset is the distance from FlashBase to the vector table's load address.
	ImageOffset uint64
	// FCBOffset is the distance from FlashBase to the flash configuration block.
	FCBOffset uint64
	// Regions maps RAM region names to base addresses.
	Regions map[string]uint64
	// Placement maps section names to the region holding their run-time
	// address. "FLASH" means the section executes in place.
	Placement map[string]string

	StackSize       uint64
	HeapSize        uint64
	VectorTableSize uint64
	XIPSize         uint64
	TextSize        uint64
	RodataSize      uint64
	DataSize        uint64
	BSSSize         uint64
	UninitSize      uint64

	FlexRAMConfig uint64
	// DCD is linked into .boot as DEVICE_CONFIGURATION_DATA when non-nil.
	DCD []byte

	// Skew is added to the run-time address of the named sections after layout.
	Skew map[string]uint64
	// Omit lists sections and symbols to leave out of the file.
	Omit []string
	// IVTHeader replaces the IVT header word when non-zero.
	IVTHeader uint32
	// IVTVectorTable, IVTDCD and IVTBootData replace the matching IVT
	// pointers when non-zero.
	IVTVectorTable uint32
	IVTDCD         uint32
	IVTBootData    uint32
	// IVTReserved is written to the reserved IVT word.
	IVTReserved uint32

	// Symbols replaces the value of the named symbols.
	Symbols map[string]uint64
	// LMASkew is added to the load address of the named loaded sections.
	// Sections after them follow on from the skewed address.
	LMASkew map[string]uint64
	// NoLoadLMA gives the named NOLOAD sections a PT_LOAD segment that
	// stores them at the given address.
	NoLoadLMA map[string]uint64
}

func or32(v, def uint32) uint32 {
	if v != 0 {
		return v
	}
	return def
}

func (f Firmware) omitted(name string) bool {
	for _, o := range f.Omit {
		if o == name {
			return true
		}
	}
	return false
}

// Teensy4 returns the default teensy4 blink-rtic layout.
func Teensy4() Firmware {
	return Firmware{
		Boot:        true,
		FlashBase:   0x6000_0000,
		ImageOffset: 0x2000,
		FCBOffset:   0,
		Regions:     map[string]uint64{"ITCM": 0, "DTCM": 0x2000_0000, "OCRAM": 0x2020_0000},
		Placement: map[string]string{
			".stack": "DTCM", ".vector_table": "DTCM", ".xip": flash, ".text": flash,
			".rodata": "DTCM", ".data": "DTCM", ".bss": "DTCM", ".uninit": "DTCM", ".heap": "DTCM",
		},
		StackSize:       8 * 1024,
		HeapSize:        1024,
		VectorTableSize: 16*4 + 240*4,
		XIPSize:         0x40,
		TextSize:        0x1236,
		RodataSize:      0x120,
		DataSize:        4,
		BSSSize:         0x2a,
		UninitSize:      0x10,
		FlexRAMConfig:   0b11111111_101010101010101010101010,
	}
}

// IMXRT1010EVK returns the default imxrt1010evk blink-rtic layout.
func IMXRT1010EVK() Firmware {
	f := Teensy4()
	f.FCBOffset = 0x400
	f.Placement = map[string]string{
		".stack": "DTCM", ".vector_table": "DTCM", ".xip": flash, ".text": "ITCM",
		".rodata": flash, ".data": "OCRAM", ".bss": "OCRAM", ".uninit": "OCRAM", ".heap": "DTCM",
	}
	f.FlexRAMConfig = 0b11_10_0101
	return f
}

// IMXRT1170EVK returns the default imxrt1170evk-cm7 blink-rtic layout.
func IMXRT1170EVK() Firmware {
	f := Teensy4()
	f.FlashBase = 0x3000_0000
	f.FCBOffset = 0x400
	f.Regions = map[string]uint64{"ITCM": 0, "DTCM": 0x2000_0000, "OCRAM": 0x2024_0000}
	f.Placement = map[string]string{
		".stack": "DTCM", ".vector_table": "DTCM", ".xip": flash, ".text": "ITCM",
		".rodata": "DTCM", ".data": "OCRAM", ".bss": "OCRAM", ".uninit": "OCRAM", ".heap": "DTCM",
	}
	f.HeapSize = 0
	f.FlexRAMConfig = 0b1111111111111111_1010101010101010
	return f
}

// IMXRT1170EVKNonBoot returns the imxrt1170evk-cm7 layout built without boot
// metadata, 16 KiB into flash.
func IMXRT1170EVKNonBoot() Firmware {
	f := IMXRT1170EVK()
	f.Boot = false
	f.ImageOffset = 16 * 1024
	return f
}

func put32(b []byte, off uint64, v uint32) {
	binary.LittleEndian.PutUint32(b[off:off+4], v)
}

// Bytes lays out and serialises the firmware.
func (f Firmware) Bytes() []byte {
	b := New()
	symbol := func(name string, value, size uint64) {
		if v, ok := f.Symbols[name]; ok {
			value = v
		}
		if !f.omitted(name) {
			b.AddSymbol(name, value, size)
		}
	}
	section := func(s Section, lma uint64) {
		if f.omitted(s.Name) {
			return
		}
		b.AddSection(s)
		b.AddLoad(lma, s.Name)
	}

	vtLMA := f.FlashBase + f.ImageOffset
	if f.Boot {
		boot := make([]byte, f.ImageOffset)
		ivt := f.FlashBase + IVTOffset
		dcdStart := ivt + DCDOffset
		var dcdPtr uint64
		if f.DCD != nil {
			dcdPtr = dcdStart
			copy(boot[dcdStart-f.FlashBase:], f.DCD)
		}
		i := uint64(IVTOffset)
		put32(boot, i, or32(f.IVTHeader, ivtHeader))
		put32(boot, i+4, or32(f.IVTVectorTable, uint32(vtLMA)))
		put32(boot, i+8, f.IVTReserved)
		put32(boot, i+12, or32(f.IVTDCD, uint32(dcdPtr)))
		put32(boot, i+16, or32(f.IVTBootData, uint32(ivt+32)))
		put32(boot, i+20, uint32(ivt))
		// Boot data: image start, image length, plugin flag.
		put32(boot, i+32, uint32(f.FlashBase))
		put32(boot, i+36, 0x20_0000)
		copy(boot[f.FCBOffset:], "FCFB")

		section(Section{Name: ".boot", Flags: elf.SHF_ALLOC, Addr: f.FlashBase, Data: boot}, f.FlashBase)
		symbol("__ivt", ivt, 0)
		symbol("FLEXSPI_CONFIGURATION_BLOCK", f.FlashBase+f.FCBOffset, 512)
		symbol("__dcd_start", dcdStart, 0)
		symbol("__dcd_end", dcdStart+uint64(len(f.DCD)), 0)
		symbol("__dcd", dcdPtr, 0)
		if f.DCD != nil {
			symbol("DEVICE_CONFIGURATION_DATA", dcdStart, uint64(len(f.DCD)))
		}
	}
	symbol("__flexram_config", f.FlexRAMConfig, 0)

	cursor := make(map[string]uint64, len(f.Regions))
	for k, v := range f.Regions {
		cursor[k] = v
	}
	lma := vtLMA

	type reloc struct {
		name           string
		vma, lma, size uint64
	}
	var relocs []reloc

	// noload places a NOBITS section at the next free address of its region.
	noload := func(name string, size, alignment uint64) {
		r := f.Placement[name]
		vma := align(cursor[r], alignment)
		cursor[r] = vma + size
		vma += f.Skew[name]
		section(Section{Name: name, Type: elf.SHT_NOBITS, Flags: elf.SHF_ALLOC | elf.SHF_WRITE, Addr: vma, Size: size}, vma)
		if l, ok := f.NoLoadLMA[name]; ok && !f.omitted(name) {
			relocs = append(relocs, reloc{name: name, vma: vma, lma: l, size: size})
		}
	}
	// load places a section whose contents are stored in flash.
	load := func(name string, size uint64, flags elf.SectionFlag) uint64 {
		r := f.Placement[name]
		l := align(lma, 4) + f.LMASkew[name]
		lma = l + size
		vma := l
		if r != flash {
			vma = align(cursor[r], 4)
			cursor[r] = vma + size
		}
		vma += f.Skew[name]
		data := make([]byte, size)
		for i := range data {
			data[i] = byte(i)
		}
		section(Section{Name: name, Flags: elf.SHF_ALLOC | flags, Addr: vma, Data: data}, l)
		return vma
	}

	noload(".stack", f.StackSize, 4)

	// The vector table is 1 KiB aligned and starts the image.
	vtVMA := align(cursor[f.Placement[".vector_table"]], 1024)
	cursor[f.Placement[".vector_table"]] = vtVMA + f.VectorTableSize
	vt := make([]byte, f.VectorTableSize)
	if len(vt) >= 8 {
		put32(vt, 0, uint32(f.Regions[f.Placement[".stack"]]+f.StackSize))
		put32(vt, 4, uint32(vtLMA+f.VectorTableSize+1))
	}
	section(Section{Name: ".vector_table", Flags: elf.SHF_ALLOC, Addr: vtVMA + f.Skew[".vector_table"], Data: vt}, lma)
	lma += f.VectorTableSize

	xip := load(".xip", f.XIPSize, elf.SHF_EXECINSTR)
	symbol("increment_data", xip, 4)
	load(".text", f.TextSize, elf.SHF_EXECINSTR)
	load(".rodata", f.RodataSize, 0)
	load(".data", f.DataSize, elf.SHF_WRITE)
	noload(".bss", f.BSSSize, 4)
	noload(".uninit", f.UninitSize, 4)
	noload(".heap", f.HeapSize, 4)

	// A segment whose file size covers a NOBITS section translates it like
	// any loaded section.
	for _, r := range relocs {
		b.AddProg(elf.ProgHeader{
			Type:   elf.PT_LOAD,
			Flags:  elf.PF_R | elf.PF_W,
			Off:    b.Offset(r.name),
			Vaddr:  r.vma,
			Paddr:  r.lma,
			Filesz: r.size,
			Memsz:  r.size,
			Align:  4,
		})
	}
	return b.Bytes()
}
