package xarch

import (
	"fmt"

	"golang.org/x/arch/arm64/arm64asm"

	"disarm/disasm"
)

// ARM64 register ids.
const (
	a64FFR  disasm.RegID = 1
	a64FP   disasm.RegID = 2 // x29
	a64LR   disasm.RegID = 3 // x30
	a64NZCV disasm.RegID = 4
	a64SP   disasm.RegID = 5
	a64VG   disasm.RegID = 6
	a64WSP  disasm.RegID = 7
	a64WZR  disasm.RegID = 8
	a64XZR  disasm.RegID = 9
	a64ZA   disasm.RegID = 10
	a64B0   disasm.RegID = 11
	a64D0   disasm.RegID = 43
	a64H0   disasm.RegID = 75
	a64P0   disasm.RegID = 107
	a64Q0   disasm.RegID = 123
	a64S0   disasm.RegID = 155
	a64W0   disasm.RegID = 187
	a64X0   disasm.RegID = 218 // x0-x28
	a64Z0   disasm.RegID = 247
	a64V0   disasm.RegID = 279
	a64End  disasm.RegID = 311
)

var arm64RegNames = func() []string {
	names := make([]string, a64End)
	fixed := map[disasm.RegID]string{
		a64FFR: "ffr", a64FP: "x29", a64LR: "x30", a64NZCV: "nzcv", a64SP: "sp",
		a64VG: "vg", a64WSP: "wsp", a64WZR: "wzr", a64XZR: "xzr", a64ZA: "za",
	}
	for id, n := range fixed {
		names[id] = n
	}
	bank := func(first disasm.RegID, n int, prefix string) {
		for i := range n {
			names[first+disasm.RegID(i)] = fmt.Sprintf("%s%d", prefix, i)
		}
	}
	bank(a64B0, 32, "b")
	bank(a64D0, 32, "d")
	bank(a64H0, 32, "h")
	bank(a64P0, 16, "p")
	bank(a64Q0, 32, "q")
	bank(a64S0, 32, "s")
	bank(a64W0, 31, "w")
	bank(a64X0, 29, "x")
	bank(a64Z0, 32, "z")
	bank(a64V0, 32, "v")
	return names
}()

// a64RegByName maps the decoder's register spelling ("X1", "V0") back to the
// register, for arguments that only expose their text.
var a64RegByName = func() map[string]arm64asm.Reg {
	m := make(map[string]arm64asm.Reg)
	for r := arm64asm.W0; r <= arm64asm.V31; r++ {
		m[r.String()] = r
	}
	return m
}()

// a64RegID maps a general or SIMD register. Register 31 is the zero
// register here; use a64RegSPID where it means the stack pointer.
func a64RegID(r arm64asm.Reg) disasm.RegID {
	switch {
	case r >= arm64asm.W0 && r <= arm64asm.W30:
		return a64W0 + disasm.RegID(r-arm64asm.W0)
	case r == arm64asm.WZR:
		return a64WZR
	case r >= arm64asm.X0 && r <= arm64asm.X28:
		return a64X0 + disasm.RegID(r-arm64asm.X0)
	case r == arm64asm.X29:
		return a64FP
	case r == arm64asm.X30:
		return a64LR
	case r == arm64asm.XZR:
		return a64XZR
	case r >= arm64asm.B0 && r <= arm64asm.B31:
		return a64B0 + disasm.RegID(r-arm64asm.B0)
	case r >= arm64asm.H0 && r <= arm64asm.H31:
		return a64H0 + disasm.RegID(r-arm64asm.H0)
	case r >= arm64asm.S0 && r <= arm64asm.S31:
		return a64S0 + disasm.RegID(r-arm64asm.S0)
	case r >= arm64asm.D0 && r <= arm64asm.D31:
		return a64D0 + disasm.RegID(r-arm64asm.D0)
	case r >= arm64asm.Q0 && r <= arm64asm.Q31:
		return a64Q0 + disasm.RegID(r-arm64asm.Q0)
	case r >= arm64asm.V0 && r <= arm64asm.V31:
		return a64V0 + disasm.RegID(r-arm64asm.V0)
	}
	return 0
}

func a64RegSPID(r arm64asm.RegSP) disasm.RegID {
	switch arm64asm.Reg(r) {
	case arm64asm.SP:
		return a64SP
	case arm64asm.WSP:
		return a64WSP
	}
	return a64RegID(arm64asm.Reg(r))
}

func a64RegName(id disasm.RegID) string {
	return lookupName(arm64RegNames, id)
}

func isSIMDReg(r arm64asm.Reg) bool {
	return r >= arm64asm.B0 && r <= arm64asm.V31
}

// sysreg packs the MRS/MSR system register fields.
func sysreg(op0, op1, crn, crm, op2 uint32) uint32 {
	return op0<<14 | op1<<11 | crn<<7 | crm<<3 | op2
}

var arm64SysregNames = map[uint32]string{
	sysreg(3, 3, 4, 2, 0):  "nzcv",
	sysreg(3, 3, 4, 2, 1):  "daif",
	sysreg(3, 3, 4, 4, 0):  "fpcr",
	sysreg(3, 3, 4, 4, 1):  "fpsr",
	sysreg(3, 3, 13, 0, 2): "tpidr_el0",
	sysreg(3, 3, 13, 0, 3): "tpidrro_el0",
	sysreg(3, 3, 0, 0, 1):  "ctr_el0",
	sysreg(3, 3, 0, 0, 7):  "dczid_el0",
	sysreg(3, 3, 14, 0, 0): "cntfrq_el0",
	sysreg(3, 3, 14, 0, 1): "cntpct_el0",
	sysreg(3, 3, 14, 0, 2): "cntvct_el0",
	sysreg(3, 0, 0, 0, 0):  "midr_el1",
	sysreg(3, 0, 0, 0, 5):  "mpidr_el1",
	sysreg(3, 0, 1, 0, 0):  "sctlr_el1",
	sysreg(3, 0, 2, 0, 0):  "ttbr0_el1",
	sysreg(3, 0, 2, 0, 1):  "ttbr1_el1",
	sysreg(3, 0, 2, 0, 2):  "tcr_el1",
	sysreg(3, 0, 4, 0, 0):  "spsr_el1",
	sysreg(3, 0, 4, 0, 1):  "elr_el1",
	sysreg(3, 0, 4, 1, 0):  "sp_el0",
	sysreg(3, 0, 4, 2, 2):  "currentel",
	sysreg(3, 0, 5, 2, 0):  "esr_el1",
	sysreg(3, 0, 6, 0, 0):  "far_el1",
	sysreg(3, 0, 12, 0, 0): "vbar_el1",
	sysreg(3, 0, 13, 0, 4): "tpidr_el1",
}

// PSTATE field codes.
const (
	a64PStateSPSel   uint8 = 0x05
	a64PStateDAIFSet uint8 = 0x1e
	a64PStateDAIFClr uint8 = 0x1f
)

var a64VASByName = map[string]disasm.Arm64VAS{
	"16B": disasm.Arm64VAS16B, "8B": disasm.Arm64VAS8B, "B": disasm.Arm64VAS1B,
	"8H": disasm.Arm64VAS8H, "4H": disasm.Arm64VAS4H, "H": disasm.Arm64VAS1H,
	"4S": disasm.Arm64VAS4S, "2S": disasm.Arm64VAS2S, "S": disasm.Arm64VAS1S,
	"2D": disasm.Arm64VAS2D, "1D": disasm.Arm64VAS1D, "D": disasm.Arm64VAS1D,
	"1Q": disasm.Arm64VAS1Q,
}

var a64ExtByName = map[string]disasm.Arm64Extender{
	"UXTB": disasm.Arm64ExtUXTB, "UXTH": disasm.Arm64ExtUXTH,
	"UXTW": disasm.Arm64ExtUXTW, "UXTX": disasm.Arm64ExtUXTX,
	"SXTB": disasm.Arm64ExtSXTB, "SXTH": disasm.Arm64ExtSXTH,
	"SXTW": disasm.Arm64ExtSXTW, "SXTX": disasm.Arm64ExtSXTX,
}

var a64ShiftByName = map[string]disasm.Arm64ShiftType{
	"LSL": disasm.Arm64ShiftLSL, "MSL": disasm.Arm64ShiftMSL,
	"LSR": disasm.Arm64ShiftLSR, "ASR": disasm.Arm64ShiftASR,
	"ROR": disasm.Arm64ShiftROR,
}
