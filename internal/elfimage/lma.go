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

package elfimage

import (
	"debug/elf"

	"github.com/golang/glog"
)

// contains reports whether the section lies inside the segment, both in the
// file and in memory.
func (p Segment) contains(s Section) bool {
	return s.Offset >= p.Offset &&
		(s.Offset-p.Offset)+s.Size <= p.FileSize &&
		s.Addr >= p.VirtAddr &&
		(s.Addr-p.VirtAddr)+s.Size <= p.MemSize
}

// LoadAddress returns the load address (LMA) of the section: where its
// contents live in the image as it is written to flash.
//
// The first PT_LOAD segment, in header order, that contains the section
// translates its run-time address. A section that no loadable segment
// contains, such as a NOLOAD section, is loaded where it runs.
func (i *Image) LoadAddress(s Section) uint64 {
	for _, p := range i.segments {
		if p.Type != elf.PT_LOAD || !p.contains(s) {
			continue
		}
		// Wrapping is fine here: the result is correct modulo 2^64 even
		// when the physical address is below the virtual one.
		lma := s.Addr + p.PhysAddr - p.VirtAddr
		glog.V(2).Infof("Section %s: VMA 0x%x LMA 0x%x", s.Name, s.Addr, lma)
		return lma
	}
	return s.Addr
}

// SectionLoadAddress returns the load address of the named section.
func (i *Image) SectionLoadAddress(name string) (uint64, error) {
	s, err := i.LookupSection(name)
	if err != nil {
		return 0, err
	}
	return i.LoadAddress(s), nil
}
