package xarch

import (
	"fmt"

	"golang.org/x/arch/arm/armasm"

	"disarm/disasm"
)

// ARM32 register ids.
const (
	a32APSR     disasm.RegID = 1
	a32APSRNZCV disasm.RegID = 2
	a32CPSR     disasm.RegID = 3
	a32FPEXC    disasm.RegID = 4
	a32FPINST   disasm.RegID = 5
	a32FPSCR    disasm.RegID = 6
	a32FPSCRNZ  disasm.RegID = 7
	a32FPSID    disasm.RegID = 8
	a32ITSTATE  disasm.RegID = 9
	a32LR       disasm.RegID = 10
	a32PC       disasm.RegID = 11
	a32SP       disasm.RegID = 12
	a32SPSR     disasm.RegID = 13
	a32D0       disasm.RegID = 14
	a32FPINST2  disasm.RegID = 46
	a32MVFR0    disasm.RegID = 47
	a32Q0       disasm.RegID = 50
	a32R0       disasm.RegID = 66 // r0-r12
	a32S0       disasm.RegID = 79
	a32End      disasm.RegID = 111
)

var arm32RegNames = func() []string {
	names := make([]string, a32End)
	fixed := map[disasm.RegID]string{
		a32APSR: "apsr", a32APSRNZCV: "apsr_nzcv", a32CPSR: "cpsr", a32FPEXC: "fpexc",
		a32FPINST: "fpinst", a32FPSCR: "fpscr", a32FPSCRNZ: "fpscr_nzcv", a32FPSID: "fpsid",
		a32ITSTATE: "itstate", a32LR: "lr", a32PC: "pc", a32SP: "sp", a32SPSR: "spsr",
		a32FPINST2: "fpinst2",
	}
	for id, n := range fixed {
		names[id] = n
	}
	bank := func(first disasm.RegID, n int, prefix string) {
		for i := range n {
			names[first+disasm.RegID(i)] = fmt.Sprintf("%s%d", prefix, i)
		}
	}
	bank(a32D0, 32, "d")
	bank(a32MVFR0, 3, "mvfr")
	bank(a32Q0, 16, "q")
	bank(a32R0, 13, "r")
	bank(a32S0, 32, "s")
	names[a32R0+9] = "sb"
	names[a32R0+10] = "sl"
	names[a32R0+11] = "fp"
	names[a32R0+12] = "ip"
	return names
}()

func a32RegID(r armasm.Reg) disasm.RegID {
	switch {
	case r == armasm.SP:
		return a32SP
	case r == armasm.LR:
		return a32LR
	case r == armasm.PC:
		return a32PC
	case r >= armasm.R0 && r <= armasm.R12:
		return a32R0 + disasm.RegID(r-armasm.R0)
	case r >= armasm.S0 && r <= armasm.S31:
		return a32S0 + disasm.RegID(r-armasm.S0)
	case r >= armasm.D0 && r <= armasm.D31:
		return a32D0 + disasm.RegID(r-armasm.D0)
	case r == armasm.APSR:
		return a32APSR
	case r == armasm.APSR_nzcv:
		return a32APSRNZCV
	case r == armasm.FPSCR:
		return a32FPSCR
	}
	return 0
}

func a32RegName(id disasm.RegID) string {
	return lookupName(arm32RegNames, id)
}

var a32ShiftTypes = [...]disasm.Arm32ShiftType{
	armasm.ShiftLeft:        disasm.Arm32ShiftLSL,
	armasm.ShiftRight:       disasm.Arm32ShiftLSR,
	armasm.ShiftRightSigned: disasm.Arm32ShiftASR,
	armasm.RotateRight:      disasm.Arm32ShiftROR,
	armasm.RotateRightExt:   disasm.Arm32ShiftRRX,
}

var a32ShiftRegTypes = [...]disasm.Arm32ShiftType{
	armasm.ShiftLeft:        disasm.Arm32ShiftLSLReg,
	armasm.ShiftRight:       disasm.Arm32ShiftLSRReg,
	armasm.ShiftRightSigned: disasm.Arm32ShiftASRReg,
	armasm.RotateRight:      disasm.Arm32ShiftRORReg,
	armasm.RotateRightExt:   disasm.Arm32ShiftRRXReg,
}

func a32Shift(s armasm.Shift, byReg bool) disasm.Arm32ShiftType {
	if int(s) >= len(a32ShiftTypes) {
		return disasm.Arm32ShiftInvalid
	}
	if byReg {
		return a32ShiftRegTypes[s]
	}
	return a32ShiftTypes[s]
}

var a32CondByName = map[string]disasm.Arm32CC{
	"EQ": disasm.Arm32CCEQ, "NE": disasm.Arm32CCNE, "CS": disasm.Arm32CCHS,
	"CC": disasm.Arm32CCLO, "MI": disasm.Arm32CCMI, "PL": disasm.Arm32CCPL,
	"VS": disasm.Arm32CCVS, "VC": disasm.Arm32CCVC, "HI": disasm.Arm32CCHI,
	"LS": disasm.Arm32CCLS, "GE": disasm.Arm32CCGE, "LT": disasm.Arm32CCLT,
	"GT": disasm.Arm32CCGT, "LE": disasm.Arm32CCLE, "ZZ": disasm.Arm32CCAL,
}

// Barrier option names, indexed by the 4-bit option field.
var a32BarrierNames = [16]string{
	2: "oshst", 3: "osh", 6: "nshst", 7: "nsh",
	10: "ishst", 11: "ish", 14: "st", 15: "sy",
}
