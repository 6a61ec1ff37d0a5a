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

// Package bootmeta decodes the boot ROM metadata linked into an i.MX RT
// firmware image: the image vector table (IVT), the FlexSPI configuration
// block (FCB), the FlexRAM bank configuration and the device configuration
// data (DCD) linkage.
package bootmeta

import (
	"fmt"

	"github.com/golang/glog"
	"github.com/google/imxrt-bootlayout/internal/elfimage"
)

const (
	// IVTHeader is the tag, length and version word that opens every IVT.
	IVTHeader = 0x402000D1
	// BootDataOffset is the distance from the IVT to the boot data structure.
	BootDataOffset = 32
	// FCBSize is the size of the FlexSPI configuration block in bytes.
	FCBSize = 512

	// SymIVT marks the start of the image vector table.
	SymIVT = "__ivt"
	// SymFCB is the FlexSPI configuration block.
	SymFCB = "FLEXSPI_CONFIGURATION_BLOCK"
	// SymFlexRAMConfig carries the FlexRAM bank configuration in its value.
	SymFlexRAMConfig = "__flexram_config"
	// SymDCD is the user supplied device configuration data block.
	SymDCD = "DEVICE_CONFIGURATION_DATA"
	// SymDCDStart and SymDCDEnd bracket the DCD region of .boot.
	SymDCDStart = "__dcd_start"
	SymDCDEnd   = "__dcd_end"
	// SymDCDPointer holds the value written to the IVT's DCD field.
	SymDCDPointer = "__dcd"

	// SectionBoot holds the FCB, IVT, boot data and DCD.
	SectionBoot = ".boot"

	// ivtReadSize covers the IVT words up to and including boot data.
	ivtReadSize = 20
)

// IVT is the image vector table read by the boot ROM.
type IVT struct {
	Header uint32
	// VectorTable points at the ARM vector table, the entry of the image.
	VectorTable uint32
	DCD         uint32
	BootData    uint32
}

// DecodeIVT reads the IVT addressed by __ivt out of the .boot section.
func DecodeIVT(img *elfimage.Image) (IVT, error) {
	sym, err := img.LookupSymbol(SymIVT)
	if err != nil {
		return IVT{}, err
	}
	boot, err := img.LookupSection(SectionBoot)
	if err != nil {
		return IVT{}, err
	}
	if sym.Value < boot.Addr || sym.Value-boot.Addr >= boot.Size {
		return IVT{}, &elfimage.MalformedBinaryError{Reason: fmt.Sprintf("%s (0x%x) lies outside %s [0x%x, 0x%x)", SymIVT, sym.Value, SectionBoot, boot.Addr, boot.End())}
	}
	if boot.Size-(sym.Value-boot.Addr) < ivtReadSize {
		return IVT{}, &elfimage.MalformedBinaryError{Reason: fmt.Sprintf("IVT at 0x%x is cut short by the end of %s at 0x%x", sym.Value, SectionBoot, boot.End())}
	}
	off := boot.Offset + (sym.Value - boot.Addr)

	var ivt IVT
	// Offset 8 is reserved.
	for _, f := range []struct {
		at  uint64
		dst *uint32
	}{
		{0, &ivt.Header},
		{4, &ivt.VectorTable},
		{12, &ivt.DCD},
		{16, &ivt.BootData},
	} {
		w, err := img.Uint32At(off + f.at)
		if err != nil {
			return IVT{}, fmt.Errorf("IVT word at +%d: %w", f.at, err)
		}
		*f.dst = w
	}
	glog.V(2).Infof("IVT at 0x%x: %+v", sym.Value, ivt)
	return ivt, nil
}

// FCB is the location of the FlexSPI configuration block.
type FCB struct {
	Address uint64
	Size    uint64
}

// DecodeFCB returns the address and size of the FCB.
func DecodeFCB(img *elfimage.Image) (FCB, error) {
	sym, err := img.LookupSymbol(SymFCB)
	if err != nil {
		return FCB{}, err
	}
	return FCB{Address: sym.Value, Size: sym.Size}, nil
}

// DecodeFlexRAMConfig returns the FlexRAM bank configuration word. The linker
// stores the word as the value of the symbol, not at its address.
func DecodeFlexRAMConfig(img *elfimage.Image) (uint64, error) {
	sym, err := img.LookupSymbol(SymFlexRAMConfig)
	if err != nil {
		return 0, err
	}
	return sym.Value, nil
}

// DCD describes how a device configuration data block is linked.
type DCD struct {
	// Linked is set when the image carries a DEVICE_CONFIGURATION_DATA block.
	Linked bool
	// Size is the length of that block.
	Size uint64

	Start uint64
	End   uint64
	// Pointer is the value of __dcd, valid when HasPointer is set.
	Pointer    uint64
	HasPointer bool
}

// DecodeDCD reads the DCD linkage symbols. The start and end markers are
// required; the block itself and the __dcd pointer are optional.
func DecodeDCD(img *elfimage.Image) (DCD, error) {
	start, err := img.LookupSymbol(SymDCDStart)
	if err != nil {
		return DCD{}, err
	}
	end, err := img.LookupSymbol(SymDCDEnd)
	if err != nil {
		return DCD{}, err
	}
	d := DCD{Start: start.Value, End: end.Value}
	if s, ok := img.Symbol(SymDCD); ok {
		d.Linked = true
		d.Size = s.Size
	}
	if p, ok := img.Symbol(SymDCDPointer); ok {
		d.Pointer = p.Value
		d.HasPointer = true
	}
	return d, nil
}
