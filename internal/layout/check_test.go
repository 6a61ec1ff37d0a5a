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

package layout_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/imxrt-bootlayout/api"
	"github.com/google/imxrt-bootlayout/internal/elfimage"
	"github.com/google/imxrt-bootlayout/internal/layout"
	"github.com/google/imxrt-bootlayout/internal/testonly/elfbuild"
)

func board(t *testing.T, name string) layout.Profile {
	t.Helper()
	p, ok := layout.Find(layout.Boards(), name)
	if !ok {
		t.Fatalf("no built-in profile %q", name)
	}
	return p
}

func check(t *testing.T, fw elfbuild.Firmware, p layout.Profile) []api.Violation {
	t.Helper()
	img, err := elfimage.Parse(fw.Bytes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	err = layout.Check(img, p)
	if err == nil {
		return nil
	}
	var vs layout.Violations
	if !errors.As(err, &vs) {
		t.Fatalf("Check: got %v, want Violations", err)
	}
	return vs
}

func TestCheckBuiltinBoards(t *testing.T) {
	fakeDCD := elfbuild.Teensy4()
	fakeDCD.DCD = []byte{0xD2, 0x00, 0x08, 0x41, 0xC0, 0x00, 0x04, 0x00}

	for _, test := range []struct {
		board string
		fw    elfbuild.Firmware
	}{
		{board: "imxrt1010evk", fw: elfbuild.IMXRT1010EVK()},
		{board: "teensy4", fw: elfbuild.Teensy4()},
		{board: "teensy4-fake-dcd", fw: fakeDCD},
		{board: "imxrt1170evk-cm7", fw: elfbuild.IMXRT1170EVK()},
		{board: "imxrt1170evk-cm7-nonboot", fw: elfbuild.IMXRT1170EVKNonBoot()},
	} {
		t.Run(test.board, func(t *testing.T) {
			if vs := check(t, test.fw, board(t, test.board)); len(vs) != 0 {
				t.Errorf("Check: got violations %v", vs)
			}
		})
	}
}

func TestCheckViolations(t *testing.T) {
	skewBSS := elfbuild.Teensy4()
	skewBSS.Skew = map[string]uint64{".bss": 4}

	skewVT := elfbuild.Teensy4()
	skewVT.Skew = map[string]uint64{".vector_table": 0x10}

	skewXIP := elfbuild.Teensy4()
	skewXIP.Skew = map[string]uint64{".text": 8}

	skewITCM := elfbuild.IMXRT1010EVK()
	skewITCM.Skew = map[string]uint64{".text": 0x100}

	badHeader := elfbuild.IMXRT1010EVK()
	badHeader.IVTHeader = 0x402000D0

	missizedDCD := elfbuild.Teensy4()
	missizedDCD.DCD = make([]byte, 7)

	noText := elfbuild.Teensy4()
	noText.Omit = []string{".text"}

	wrongFlexRAM := elfbuild.Teensy4()
	wrongFlexRAM.FlexRAMConfig = 0xE5

	noFlexRAM := elfbuild.Teensy4()
	noFlexRAM.Omit = []string{"__flexram_config"}

	bigStack := elfbuild.Teensy4()
	bigStack.StackSize = 4096
	bigStack.HeapSize = 8192

	noStack := elfbuild.IMXRT1010EVK()
	noStack.Omit = []string{".stack"}

	xipSymbols := board(t, "teensy4")
	xipSymbols.XIPSymbols = []string{"increment_data", "__flexram_config", "nope"}

	noXIPPlacement := board(t, "teensy4")
	noXIPPlacement.Placement = make(map[string]layout.Placement)
	for k, v := range board(t, "teensy4").Placement {
		if k != layout.SectionXIP {
			noXIPPlacement.Placement[k] = v
		}
	}

	fakeDCD := func() elfbuild.Firmware {
		f := elfbuild.Teensy4()
		f.DCD = []byte{0xD2, 0x00, 0x08, 0x41, 0xC0, 0x00, 0x04, 0x00}
		return f
	}

	badBootData := elfbuild.Teensy4()
	badBootData.IVTBootData = 0x6000_1024

	strayDCD := elfbuild.Teensy4()
	strayDCD.IVTDCD = 0x6000_1040

	wrongDCD := fakeDCD()
	wrongDCD.IVTDCD = 0x6000_1044

	badVectorTable := elfbuild.Teensy4()
	badVectorTable.IVTVectorTable = 0x6000_2400

	reserved := elfbuild.Teensy4()
	reserved.IVTReserved = 0xDEADBEEF

	strayDCDPointer := elfbuild.Teensy4()
	strayDCDPointer.Symbols = map[string]uint64{"__dcd": 0x6000_1040}

	emptyDCDEnd := elfbuild.Teensy4()
	emptyDCDEnd.Symbols = map[string]uint64{"__dcd_end": 0x6000_1044}

	shortDCDEnd := fakeDCD()
	shortDCDEnd.Symbols = map[string]uint64{"__dcd_end": 0x6000_104c}

	gapBeforeData := elfbuild.Teensy4()
	gapBeforeData.LMASkew = map[string]uint64{".data": 8}

	loadedUninit := elfbuild.Teensy4()
	loadedUninit.NoLoadLMA = map[string]uint64{".uninit": 0x6000_4000}

	for _, test := range []struct {
		desc    string
		fw      elfbuild.Firmware
		profile layout.Profile
		want    []api.Violation
	}{
		{
			desc:    "bss not behind data",
			fw:      skewBSS,
			profile: board(t, "teensy4"),
			want: []api.Violation{
				{Field: ".bss VMA", Expected: "0x20002524", Actual: "0x20002528"},
				{Field: ".uninit VMA", Expected: "0x20002554", Actual: "0x20002550"},
			},
		}, {
			desc:    "vector table misaligned",
			fw:      skewVT,
			profile: board(t, "teensy4"),
			want: []api.Violation{
				{Field: ".rodata VMA", Expected: "0x20002410", Actual: "0x20002400"},
				{Field: ".vector_table alignment", Expected: "multiple of 0x400", Actual: "0x20002010"},
				{Field: ".vector_table VMA", Expected: "0x20002000", Actual: "0x20002010"},
			},
		}, {
			desc:    "flash code not executed in place",
			fw:      skewXIP,
			profile: board(t, "teensy4"),
			want: []api.Violation{
				{Field: ".text VMA", Expected: "0x60002440", Actual: "0x60002448"},
			},
		}, {
			desc:    "text not at ITCM base",
			fw:      skewITCM,
			profile: board(t, "imxrt1010evk"),
			want: []api.Violation{
				{Field: ".text VMA", Expected: "0x0", Actual: "0x100"},
			},
		}, {
			desc:    "bad IVT header",
			fw:      badHeader,
			profile: board(t, "imxrt1010evk"),
			want: []api.Violation{
				{Field: "IVT header", Expected: "0x402000d1", Actual: "0x402000d0"},
			},
		}, {
			desc:    "DCD not a multiple of 4",
			fw:      missizedDCD,
			profile: board(t, "teensy4-fake-dcd"),
			want: []api.Violation{
				{Field: "DEVICE_CONFIGURATION_DATA size", Expected: "multiple of 4", Actual: "0x7"},
			},
		}, {
			desc:    "missing section",
			fw:      noText,
			profile: board(t, "teensy4"),
			want: []api.Violation{
				{Field: "section .text", Expected: "present", Actual: "missing"},
			},
		}, {
			desc:    "missing stack",
			fw:      noStack,
			profile: board(t, "imxrt1010evk"),
			want: []api.Violation{
				{Field: "section .stack", Expected: "present", Actual: "missing"},
				{Field: ".vector_table VMA", Expected: "0x20000000", Actual: "0x20002000"},
			},
		}, {
			desc:    "wrong FlexRAM config",
			fw:      wrongFlexRAM,
			profile: board(t, "teensy4"),
			want: []api.Violation{
				{Field: "FlexRAM config", Expected: "0xffaaaaaa", Actual: "0xe5"},
			},
		}, {
			desc:    "missing FlexRAM config",
			fw:      noFlexRAM,
			profile: board(t, "teensy4"),
			want: []api.Violation{
				{Field: "symbol __flexram_config", Expected: "present", Actual: "missing"},
			},
		}, {
			desc:    "stack and heap overridden",
			fw:      bigStack,
			profile: board(t, "teensy4"),
			want: []api.Violation{
				{Field: ".stack size", Expected: "0x2000", Actual: "0x1000"},
				{Field: ".heap size", Expected: "0x400", Actual: "0x2000"},
			},
		}, {
			desc:    "XIP symbols",
			fw:      elfbuild.Teensy4(),
			profile: xipSymbols,
			want: []api.Violation{
				{Field: "__flexram_config address", Expected: "inside FLASH [0x60000000, 0x70000000)", Actual: "0xffaaaaaa"},
				{Field: "symbol nope", Expected: "present", Actual: "missing"},
			},
		}, {
			desc:    "linked section without placement",
			fw:      elfbuild.Teensy4(),
			profile: noXIPPlacement,
			want: []api.Violation{
				{Field: ".xip placement", Expected: "present", Actual: "missing"},
			},
		}, {
			desc:    "IVT boot data pointer",
			fw:      badBootData,
			profile: board(t, "teensy4"),
			want: []api.Violation{
				{Field: "IVT boot data", Expected: "0x60001020", Actual: "0x60001024"},
			},
		}, {
			desc:    "IVT DCD pointer without DCD",
			fw:      strayDCD,
			profile: board(t, "teensy4"),
			want: []api.Violation{
				{Field: "IVT DCD", Expected: "0x0", Actual: "0x60001040"},
			},
		}, {
			desc:    "IVT DCD pointer off the DCD",
			fw:      wrongDCD,
			profile: board(t, "teensy4-fake-dcd"),
			want: []api.Violation{
				{Field: "IVT DCD", Expected: "0x60001040", Actual: "0x60001044"},
			},
		}, {
			desc:    "IVT vector table pointer",
			fw:      badVectorTable,
			profile: board(t, "teensy4"),
			want: []api.Violation{
				{Field: "IVT vector table", Expected: "0x60002000", Actual: "0x60002400"},
			},
		}, {
			desc:    "reserved IVT word ignored",
			fw:      reserved,
			profile: board(t, "teensy4"),
		}, {
			desc:    "__dcd set without DCD",
			fw:      strayDCDPointer,
			profile: board(t, "teensy4"),
			want: []api.Violation{
				{Field: "__dcd", Expected: "0x0", Actual: "0x60001040"},
			},
		}, {
			desc:    "__dcd_end past empty DCD",
			fw:      emptyDCDEnd,
			profile: board(t, "teensy4"),
			want: []api.Violation{
				{Field: "__dcd_end", Expected: "0x60001040", Actual: "0x60001044"},
			},
		}, {
			desc:    "__dcd_end disagrees with DCD size",
			fw:      shortDCDEnd,
			profile: board(t, "teensy4-fake-dcd"),
			want: []api.Violation{
				{Field: "__dcd_end", Expected: "0x60001048", Actual: "0x6000104c"},
			},
		}, {
			desc:    "gap before packed section",
			fw:      gapBeforeData,
			profile: board(t, "teensy4"),
			want: []api.Violation{
				{Field: ".data LMA", Expected: "0x60003798", Actual: "0x600037a0"},
			},
		}, {
			desc:    "no-load section stored in flash",
			fw:      loadedUninit,
			profile: board(t, "teensy4"),
			want: []api.Violation{
				{Field: ".uninit LMA", Expected: "0x20002550", Actual: "0x60004000"},
			},
		}, {
			desc:    "non-boot image, boot profile",
			fw:      elfbuild.IMXRT1170EVKNonBoot(),
			profile: board(t, "imxrt1170evk-cm7"),
			want: []api.Violation{
				{Field: ".vector_table LMA", Expected: "0x30002000", Actual: "0x30004000"},
				{Field: "symbol __ivt", Expected: "present", Actual: "missing"},
				{Field: "symbol __dcd_start", Expected: "present", Actual: "missing"},
				{Field: "symbol FLEXSPI_CONFIGURATION_BLOCK", Expected: "present", Actual: "missing"},
			},
		}, {
			desc:    "boot image, non-boot profile",
			fw:      elfbuild.IMXRT1170EVK(),
			profile: board(t, "imxrt1170evk-cm7-nonboot"),
			want: []api.Violation{
				{Field: ".vector_table LMA", Expected: "0x30004000", Actual: "0x30002000"},
				{Field: "section .boot", Expected: "absent", Actual: "present"},
				{Field: "symbol FLEXSPI_CONFIGURATION_BLOCK", Expected: "absent", Actual: "present"},
				{Field: "symbol __dcd_start", Expected: "absent", Actual: "present"},
				{Field: "symbol __dcd_end", Expected: "absent", Actual: "present"},
				{Field: "symbol __dcd", Expected: "absent", Actual: "present"},
				{Field: "IVT", Expected: "absent", Actual: "present"},
			},
		},
	} {
		t.Run(test.desc, func(t *testing.T) {
			got := check(t, test.fw, test.profile)
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("violations diff (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCheckOverrides(t *testing.T) {
	for _, test := range []struct {
		desc  string
		env   map[string]string
		stack uint64
		heap  uint64
	}{
		{
			desc:  "bytes",
			env:   map[string]string{"BOARD_STACK": "4096", "THIS_WONT_BE_CONSIDERED": "12288", "BOARD_HEAP": "8192"},
			stack: 4 * 1024,
			heap:  8 * 1024,
		}, {
			desc:  "kib",
			env:   map[string]string{"BOARD_STACK": "5K", "BOARD_HEAP": "9k"},
			stack: 5 * 1024,
			heap:  9 * 1024,
		},
	} {
		t.Run(test.desc, func(t *testing.T) {
			p, err := board(t, "teensy4").WithOverrides(test.env)
			if err != nil {
				t.Fatalf("WithOverrides: %v", err)
			}
			fw := elfbuild.Teensy4()
			fw.StackSize = test.stack
			fw.HeapSize = test.heap
			if vs := check(t, fw, p); len(vs) != 0 {
				t.Errorf("Check: got violations %v", vs)
			}
		})
	}
}

func TestCheckInvalidProfile(t *testing.T) {
	img, err := elfimage.Parse(elfbuild.Teensy4().Bytes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	err = layout.Check(img, layout.Profile{Name: "empty"})
	if err == nil {
		t.Fatal("Check: got nil error for an empty profile")
	}
	var vs layout.Violations
	if errors.As(err, &vs) {
		t.Errorf("Check: got Violations %v, want a profile error", vs)
	}
}

func TestViolationsError(t *testing.T) {
	vs := layout.Violations{
		{Field: ".stack size", Expected: "0x2000", Actual: "0x1000"},
		{Field: "IVT header", Expected: "0x402000d1", Actual: "0x0"},
	}
	got := vs.Error()
	for _, want := range []string{"2 layout violation(s)", ".stack size: expected 0x2000, got 0x1000", "IVT header"} {
		if !strings.Contains(got, want) {
			t.Errorf("Error() = %q, want it to contain %q", got, want)
		}
	}
}
