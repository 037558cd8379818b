package disasm

import "fmt"

// RegID is an engine register identifier. Zero is the invalid register.
type RegID uint16

// GroupID is an engine instruction-group identifier.
type GroupID uint16

// Generic group identifiers shared by every architecture. Architecture
// specific groups start at 128.
const (
	GroupInvalid GroupID = iota
	GroupJump
	GroupCall
	GroupRet
	GroupInt
	GroupIRet
	GroupPrivilege
	GroupBranchRelative
)

var groupNames = [...]string{
	GroupJump:           "jump",
	GroupCall:           "call",
	GroupRet:            "return",
	GroupInt:            "int",
	GroupIRet:           "iret",
	GroupPrivilege:      "privilege",
	GroupBranchRelative: "branch_relative",
}

// GenericGroupName names the architecture independent groups. It returns ""
// for GroupInvalid and for architecture groups.
func GenericGroupName(id GroupID) string {
	if int(id) < len(groupNames) {
		return groupNames[id]
	}
	return ""
}

// Arm32CC is an ARM32 condition code.
type Arm32CC uint8

const (
	Arm32CCInvalid Arm32CC = iota
	Arm32CCEQ
	Arm32CCNE
	Arm32CCHS
	Arm32CCLO
	Arm32CCMI
	Arm32CCPL
	Arm32CCVS
	Arm32CCVC
	Arm32CCHI
	Arm32CCLS
	Arm32CCGE
	Arm32CCLT
	Arm32CCGT
	Arm32CCLE
	Arm32CCAL
)

var ccNames = [...]string{"invalid", "eq", "ne", "hs", "lo", "mi", "pl", "vs", "vc", "hi", "ls", "ge", "lt", "gt", "le", "al", "nv"}

func (c Arm32CC) String() string {
	if int(c) <= int(Arm32CCAL) {
		return ccNames[c]
	}
	return fmt.Sprintf("Arm32CC(%d)", uint8(c))
}

// Arm64CC is an ARM64 condition code.
type Arm64CC uint8

const (
	Arm64CCInvalid Arm64CC = iota
	Arm64CCEQ
	Arm64CCNE
	Arm64CCHS
	Arm64CCLO
	Arm64CCMI
	Arm64CCPL
	Arm64CCVS
	Arm64CCVC
	Arm64CCHI
	Arm64CCLS
	Arm64CCGE
	Arm64CCLT
	Arm64CCGT
	Arm64CCLE
	Arm64CCAL
	Arm64CCNV
)

func (c Arm64CC) String() string {
	if int(c) < len(ccNames) {
		return ccNames[c]
	}
	return fmt.Sprintf("Arm64CC(%d)", uint8(c))
}

// Arm32ShiftType is the shift applied to an ARM32 register operand. The
// *Reg variants shift by a register whose id is the shift value.
type Arm32ShiftType uint8

const (
	Arm32ShiftInvalid Arm32ShiftType = iota
	Arm32ShiftASR
	Arm32ShiftLSL
	Arm32ShiftLSR
	Arm32ShiftROR
	Arm32ShiftRRX
	Arm32ShiftASRReg
	Arm32ShiftLSLReg
	Arm32ShiftLSRReg
	Arm32ShiftRORReg
	Arm32ShiftRRXReg
)

var arm32ShiftNames = [...]string{"invalid", "asr", "lsl", "lsr", "ror", "rrx", "asr", "lsl", "lsr", "ror", "rrx"}

func (t Arm32ShiftType) String() string {
	if int(t) < len(arm32ShiftNames) {
		return arm32ShiftNames[t]
	}
	return fmt.Sprintf("Arm32ShiftType(%d)", uint8(t))
}

// ByRegister reports whether the shift amount is held in a register.
func (t Arm32ShiftType) ByRegister() bool {
	return t >= Arm32ShiftASRReg && t <= Arm32ShiftRRXReg
}

// Arm32Shift is a shift type and amount (or register id for the *Reg types).
type Arm32Shift struct {
	Type  Arm32ShiftType
	Value uint32
}

// Arm64ShiftType is the shift applied to an ARM64 operand.
type Arm64ShiftType uint8

const (
	Arm64ShiftInvalid Arm64ShiftType = iota
	Arm64ShiftLSL
	Arm64ShiftMSL
	Arm64ShiftLSR
	Arm64ShiftASR
	Arm64ShiftROR
)

var arm64ShiftNames = [...]string{"invalid", "lsl", "msl", "lsr", "asr", "ror"}

func (t Arm64ShiftType) String() string {
	if int(t) < len(arm64ShiftNames) {
		return arm64ShiftNames[t]
	}
	return fmt.Sprintf("Arm64ShiftType(%d)", uint8(t))
}

// Arm64Shift is a shift type and amount.
type Arm64Shift struct {
	Type  Arm64ShiftType
	Value uint32
}

// Arm64VAS is a vector arrangement specifier.
type Arm64VAS uint8

const (
	Arm64VASInvalid Arm64VAS = iota
	Arm64VAS16B
	Arm64VAS8B
	Arm64VAS4B
	Arm64VAS1B
	Arm64VAS8H
	Arm64VAS4H
	Arm64VAS2H
	Arm64VAS1H
	Arm64VAS4S
	Arm64VAS2S
	Arm64VAS1S
	Arm64VAS2D
	Arm64VAS1D
	Arm64VAS1Q
)

var vasNames = [...]string{"invalid", "16b", "8b", "4b", "1b", "8h", "4h", "2h", "1h", "4s", "2s", "1s", "2d", "1d", "1q"}

func (v Arm64VAS) String() string {
	if int(v) < len(vasNames) {
		return vasNames[v]
	}
	return fmt.Sprintf("Arm64VAS(%d)", uint8(v))
}

// Arm64Extender is the extend applied to an ARM64 register operand.
type Arm64Extender uint8

const (
	Arm64ExtInvalid Arm64Extender = iota
	Arm64ExtUXTB
	Arm64ExtUXTH
	Arm64ExtUXTW
	Arm64ExtUXTX
	Arm64ExtSXTB
	Arm64ExtSXTH
	Arm64ExtSXTW
	Arm64ExtSXTX
)

var extNames = [...]string{"invalid", "uxtb", "uxth", "uxtw", "uxtx", "sxtb", "sxth", "sxtw", "sxtx"}

func (e Arm64Extender) String() string {
	if int(e) < len(extNames) {
		return extNames[e]
	}
	return fmt.Sprintf("Arm64Extender(%d)", uint8(e))
}

// SETEND operand codes.
const (
	SetendInvalid Arm32Setend = iota
	SetendBE
	SetendLE
)
