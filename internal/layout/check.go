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

// Package layout checks a linked i.MX RT firmware image against the memory
// layout expected for its board.
package layout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang/glog"
	"github.com/google/imxrt-bootlayout/api"
	"github.com/google/imxrt-bootlayout/internal/bootmeta"
	"github.com/google/imxrt-bootlayout/internal/elfimage"
)

const vectorTableAlign = 1024

// Violations is returned by Check when the image breaks one or more rules.
type Violations []api.Violation

func (v Violations) Error() string {
	s := make([]string, 0, len(v))
	for _, x := range v {
		s = append(s, x.String())
	}
	return fmt.Sprintf("%d layout violation(s): %s", len(v), strings.Join(s, "; "))
}

func hex(v uint64) string {
	return fmt.Sprintf("0x%x", v)
}

func alignUp(v, a uint64) uint64 {
	return (v + a - 1) &^ (a - 1)
}

type checker struct {
	img *elfimage.Image
	p   Profile

	sections map[string]elfimage.Section
	// unplaced sections are linked but have no placement in the profile.
	unplaced map[string]bool
	vs       Violations
}

func (c *checker) add(field, expected, actual string) {
	glog.V(2).Infof("%s: %s: expected %s, got %s", c.p.Name, field, expected, actual)
	c.vs = append(c.vs, api.Violation{Field: field, Expected: expected, Actual: actual})
}

func (c *checker) expect(field string, want, got uint64) bool {
	if want != got {
		c.add(field, hex(want), hex(got))
		return false
	}
	return true
}

// fail records that an anchor could not be read.
func (c *checker) fail(field string, err error) {
	var mse *elfimage.MissingSymbolError
	var msec *elfimage.MissingSectionError
	switch {
	case errors.As(err, &mse):
		c.add("symbol "+mse.Name, "present", "missing")
	case errors.As(err, &msec):
		c.add("section "+msec.Name, "present", "missing")
	default:
		c.add(field, "readable", err.Error())
	}
}

// Check verifies img against p. It returns nil if every rule holds, a
// Violations error listing each broken rule, or another error if p itself is
// unusable.
func Check(img *elfimage.Image, p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	c := &checker{img: img, p: p, sections: make(map[string]elfimage.Section), unplaced: make(map[string]bool)}
	for _, name := range Chain {
		s, ok := img.Section(name)
		if !ok {
			if !optional(name) {
				c.add("section "+name, "present", "missing")
			}
			continue
		}
		c.sections[name] = s
		if _, ok := p.Placement[name]; !ok {
			c.add(name+" placement", "present", "missing")
			c.unplaced[name] = true
		}
	}

	c.checkVMAChain()
	c.checkVectorTable()
	c.checkSizes()
	c.checkLMAChain()
	c.checkNoLoad()
	if p.Boot {
		c.checkBoot()
	} else {
		c.checkNonBoot()
	}
	c.checkFlexRAM()
	c.checkXIPSymbols()

	if len(c.vs) == 0 {
		glog.V(2).Infof("%s: layout OK", p.Name)
		return nil
	}
	return c.vs
}

// checkVMAChain walks each RAM region in link order. The first section of a
// region starts at its base and every following one starts at the next word
// boundary after its predecessor.
func (c *checker) checkVMAChain() {
	prev := make(map[string]elfimage.Section)
	for _, name := range Chain {
		s, ok := c.sections[name]
		if !ok || c.unplaced[name] {
			continue
		}
		rname := c.p.Placement[name].Region
		if rname == FLASH {
			continue
		}
		r := c.p.Regions[rname]
		field := name + " VMA"
		switch p, ok := prev[rname]; {
		case !ok:
			c.expect(field, r.Base, s.Addr)
		case name == SectionVectorTable && p.Name == SectionStack:
			// Checked by checkVectorTable.
		default:
			c.expect(field, alignUp(p.End(), 4), s.Addr)
		}
		if !r.Contains(s.Addr, s.Size) {
			c.add(field, "within "+rname+" "+r.String(), fmt.Sprintf("[0x%x, 0x%x)", s.Addr, s.End()))
		}
		prev[rname] = s
	}
}

func (c *checker) checkVectorTable() {
	vt, ok := c.sections[SectionVectorTable]
	if !ok {
		return
	}
	if vt.Addr%vectorTableAlign != 0 {
		c.add(SectionVectorTable+" alignment", fmt.Sprintf("multiple of 0x%x", vectorTableAlign), hex(vt.Addr))
	}
	if stack, ok := c.sections[SectionStack]; ok {
		c.expect(SectionVectorTable+" VMA", stack.End(), vt.Addr)
	}
	c.expect(SectionVectorTable+" size", uint64(c.p.VectorTableSize), vt.Size)
}

func (c *checker) checkSizes() {
	if s, ok := c.sections[SectionStack]; ok {
		c.expect(SectionStack+" size", uint64(c.p.StackSize), s.Size)
	}
	if s, ok := c.sections[SectionHeap]; ok {
		c.expect(SectionHeap+" size", uint64(c.p.HeapSize), s.Size)
	}
}

// checkLMAChain verifies that loaded sections are stored in flash, in link
// order, starting at the image start.
func (c *checker) checkLMAChain() {
	flash := c.p.Regions[FLASH]
	var (
		prevLMA, prevSize uint64
		first             = true
	)
	for _, name := range loaded {
		s, ok := c.sections[name]
		if !ok {
			continue
		}
		lma := c.img.LoadAddress(s)
		if c.unplaced[name] {
			// Nothing to expect, but later sections follow it.
			prevLMA, prevSize, first = lma, s.Size, false
			continue
		}
		field := name + " LMA"
		if !flash.Contains(lma, s.Size) {
			c.add(field, "within "+FLASH+" "+flash.String(), fmt.Sprintf("[0x%x, 0x%x)", lma, lma+s.Size))
		}
		switch {
		case first && name == SectionVectorTable:
			c.expect(field, c.p.ImageStart, lma)
		case first:
			// The vector table is missing and has been reported.
		case c.p.Placement[name].Packed:
			c.expect(field, alignUp(prevLMA+prevSize, 4), lma)
		default:
			if bound := alignUp(prevLMA+prevSize, 4); lma < bound {
				c.add(field, ">= "+hex(bound), hex(lma))
			}
		}
		if c.p.Placement[name].Region == FLASH {
			// Executes in place.
			c.expect(name+" VMA", lma, s.Addr)
		}
		glog.V(2).Infof("%s: %s VMA 0x%x LMA 0x%x size 0x%x", c.p.Name, name, s.Addr, lma, s.Size)
		prevLMA, prevSize, first = lma, s.Size, false
	}
}

func (c *checker) checkNoLoad() {
	for _, name := range noLoad {
		if s, ok := c.sections[name]; ok {
			c.expect(name+" LMA", s.Addr, c.img.LoadAddress(s))
		}
	}
}

func (c *checker) checkBoot() {
	ivt, ivtErr := bootmeta.DecodeIVT(c.img)
	if ivtErr != nil {
		c.fail("IVT", ivtErr)
	} else {
		c.expect("IVT header", bootmeta.IVTHeader, uint64(ivt.Header))
		if vt, ok := c.sections[SectionVectorTable]; ok {
			c.expect("IVT vector table", c.img.LoadAddress(vt), uint64(ivt.VectorTable))
		}
		// DecodeIVT succeeded, so __ivt exists.
		sym, _ := c.img.Symbol(bootmeta.SymIVT)
		c.expect("IVT boot data", sym.Value+bootmeta.BootDataOffset, uint64(ivt.BootData))
	}

	if d, err := bootmeta.DecodeDCD(c.img); err != nil {
		c.fail("DCD", err)
	} else if !d.Linked {
		if ivtErr == nil {
			c.expect("IVT DCD", 0, uint64(ivt.DCD))
		}
		c.expect(bootmeta.SymDCDEnd, d.Start, d.End)
		if d.HasPointer {
			c.expect(bootmeta.SymDCDPointer, 0, d.Pointer)
		}
	} else {
		if ivtErr == nil {
			c.expect("IVT DCD", d.Start, uint64(ivt.DCD))
		}
		c.expect(bootmeta.SymDCDEnd, d.Start+d.Size, d.End)
		if d.HasPointer {
			c.expect(bootmeta.SymDCDPointer, d.Start, d.Pointer)
		} else {
			c.add("symbol "+bootmeta.SymDCDPointer, "present", "missing")
		}
		if d.Size%4 != 0 {
			c.add(bootmeta.SymDCD+" size", "multiple of 4", hex(d.Size))
		}
	}

	if fcb, err := bootmeta.DecodeFCB(c.img); err != nil {
		c.fail("FCB", err)
	} else {
		c.expect("FCB address", c.p.FCBAddress, fcb.Address)
		c.expect("FCB size", bootmeta.FCBSize, fcb.Size)
	}
}

// checkNonBoot verifies that an image meant to be started by another
// program carries no boot metadata.
func (c *checker) checkNonBoot() {
	if _, ok := c.img.Section(bootmeta.SectionBoot); ok {
		c.add("section "+bootmeta.SectionBoot, "absent", "present")
	}
	for _, name := range []string{bootmeta.SymFCB, bootmeta.SymDCDStart, bootmeta.SymDCDEnd, bootmeta.SymDCDPointer, bootmeta.SymDCD} {
		if _, ok := c.img.Symbol(name); ok {
			c.add("symbol "+name, "absent", "present")
		}
	}
	if _, err := bootmeta.DecodeIVT(c.img); err == nil {
		c.add("IVT", "absent", "present")
	}
}

func (c *checker) checkFlexRAM() {
	v, err := bootmeta.DecodeFlexRAMConfig(c.img)
	if err != nil {
		c.fail("FlexRAM config", err)
		return
	}
	c.expect("FlexRAM config", c.p.FlexRAMConfig, v)
}

// checkXIPSymbols verifies that each listed symbol lies strictly inside the
// flash window.
func (c *checker) checkXIPSymbols() {
	flash := c.p.Regions[FLASH]
	for _, name := range c.p.XIPSymbols {
		s, err := c.img.LookupSymbol(name)
		if err != nil {
			c.fail(name, err)
			continue
		}
		inside := s.Value > flash.Base && (flash.Size == 0 || s.Value-flash.Base < uint64(flash.Size))
		if !inside {
			c.add(name+" address", "inside "+FLASH+" "+flash.String(), hex(s.Value))
		}
	}
}
