package disasm

import "fmt"

// Arm64OpType is the discriminant of an Arm64Operand.
type Arm64OpType uint8

const (
	Arm64OpInvalid Arm64OpType = iota
	Arm64OpReg
	Arm64OpImm
	Arm64OpMem
	Arm64OpFP
	Arm64OpCImm
	Arm64OpRegMRS
	Arm64OpRegMSR
	Arm64OpPState
	Arm64OpSys
	Arm64OpPrefetch
	Arm64OpBarrier
)

var arm64OpNames = [...]string{"invalid", "reg", "imm", "mem", "fp", "cimm", "reg_mrs", "reg_msr", "pstate", "sys", "prefetch", "barrier"}

func (t Arm64OpType) String() string {
	if int(t) < len(arm64OpNames) {
		return arm64OpNames[t]
	}
	return fmt.Sprintf("Arm64OpType(%d)", uint8(t))
}

// Arm64Value is the payload of an ARM64 operand. Its implementations are
// exactly the Arm64* payload types of this package.
type Arm64Value interface {
	arm64Kind() Arm64OpType
}

type (
	Arm64Reg      RegID
	Arm64Imm      int64
	Arm64FP       float64
	Arm64CImm     int64
	Arm64RegMRS   uint32
	Arm64RegMSR   uint32
	Arm64PState   uint8
	Arm64Sys      uint32
	Arm64Prefetch uint8
	Arm64Barrier  uint8
)

// Arm64Mem is a memory reference.
type Arm64Mem struct {
	Base  RegID
	Index RegID
	Disp  int32
}

func (Arm64Reg) arm64Kind() Arm64OpType      { return Arm64OpReg }
func (Arm64Imm) arm64Kind() Arm64OpType      { return Arm64OpImm }
func (Arm64Mem) arm64Kind() Arm64OpType      { return Arm64OpMem }
func (Arm64FP) arm64Kind() Arm64OpType       { return Arm64OpFP }
func (Arm64CImm) arm64Kind() Arm64OpType     { return Arm64OpCImm }
func (Arm64RegMRS) arm64Kind() Arm64OpType   { return Arm64OpRegMRS }
func (Arm64RegMSR) arm64Kind() Arm64OpType   { return Arm64OpRegMSR }
func (Arm64PState) arm64Kind() Arm64OpType   { return Arm64OpPState }
func (Arm64Sys) arm64Kind() Arm64OpType      { return Arm64OpSys }
func (Arm64Prefetch) arm64Kind() Arm64OpType { return Arm64OpPrefetch }
func (Arm64Barrier) arm64Kind() Arm64OpType  { return Arm64OpBarrier }

// Arm64Operand is one operand of an ARM64 instruction. Build one with
// NewArm64Operand: the zero value has VectorIndex 0, which reads as lane 0.
// Each typed accessor returns an *OperandKindError when the operand holds a
// different kind.
type Arm64Operand struct {
	VectorIndex int32 // -1 when the operand has no lane index
	VAS         Arm64VAS
	Shift       Arm64Shift
	Ext         Arm64Extender
	value       Arm64Value
}

// NewArm64Operand returns an operand holding v with no lane index, shift or
// extend.
func NewArm64Operand(v Arm64Value) Arm64Operand {
	return Arm64Operand{VectorIndex: -1, value: v}
}

// Kind returns the operand's discriminant.
func (op Arm64Operand) Kind() Arm64OpType {
	if op.value == nil {
		return Arm64OpInvalid
	}
	return op.value.arm64Kind()
}

// Value returns the payload for use in an exhaustive type switch. It is nil
// for an invalid operand.
func (op Arm64Operand) Value() Arm64Value { return op.value }

func arm64As[T Arm64Value](op Arm64Operand, want Arm64OpType) (T, error) {
	v, ok := op.value.(T)
	if !ok {
		var zero T
		return zero, &OperandKindError{Mode: ModeARM64, Want: want.String(), Got: op.Kind().String()}
	}
	return v, nil
}

// Reg returns the register of an Arm64OpReg operand.
func (op Arm64Operand) Reg() (RegID, error) {
	v, err := arm64As[Arm64Reg](op, Arm64OpReg)
	return RegID(v), err
}

// Imm returns the immediate of an Arm64OpImm operand.
func (op Arm64Operand) Imm() (int64, error) {
	v, err := arm64As[Arm64Imm](op, Arm64OpImm)
	return int64(v), err
}

// Mem returns the memory reference of an Arm64OpMem operand.
func (op Arm64Operand) Mem() (Arm64Mem, error) {
	return arm64As[Arm64Mem](op, Arm64OpMem)
}

// FP returns the floating point immediate of an Arm64OpFP operand.
func (op Arm64Operand) FP() (float64, error) {
	v, err := arm64As[Arm64FP](op, Arm64OpFP)
	return float64(v), err
}

// CImm returns the cN field of an Arm64OpCImm operand, as in sys and sysl.
func (op Arm64Operand) CImm() (int64, error) {
	v, err := arm64As[Arm64CImm](op, Arm64OpCImm)
	return int64(v), err
}

// RegMRS returns the encoded system register read by mrs.
func (op Arm64Operand) RegMRS() (uint32, error) {
	v, err := arm64As[Arm64RegMRS](op, Arm64OpRegMRS)
	return uint32(v), err
}

// RegMSR returns the encoded system register written by msr.
func (op Arm64Operand) RegMSR() (uint32, error) {
	v, err := arm64As[Arm64RegMSR](op, Arm64OpRegMSR)
	return uint32(v), err
}

// PState returns the PSTATE field of an Arm64OpPState operand.
func (op Arm64Operand) PState() (uint8, error) {
	v, err := arm64As[Arm64PState](op, Arm64OpPState)
	return uint8(v), err
}

// Sys returns the system-instruction operand, an unsigned 32-bit value
// widened to 64 bits.
func (op Arm64Operand) Sys() (uint64, error) {
	v, err := arm64As[Arm64Sys](op, Arm64OpSys)
	return uint64(v), err
}

// Prefetch returns the prfm operation of an Arm64OpPrefetch operand.
func (op Arm64Operand) Prefetch() (uint8, error) {
	v, err := arm64As[Arm64Prefetch](op, Arm64OpPrefetch)
	return uint8(v), err
}

// Barrier returns the barrier option of an Arm64OpBarrier operand.
func (op Arm64Operand) Barrier() (uint8, error) {
	v, err := arm64As[Arm64Barrier](op, Arm64OpBarrier)
	return uint8(v), err
}

func (op Arm64Operand) String() string {
	var s string
	switch v := op.value.(type) {
	case Arm64Reg:
		s = fmt.Sprintf("reg %d", v)
	case Arm64Imm:
		s = fmt.Sprintf("imm %#x", int64(v))
	case Arm64Mem:
		s = fmt.Sprintf("mem base=%d index=%d disp=%#x", v.Base, v.Index, v.Disp)
	case Arm64FP:
		s = fmt.Sprintf("fp %g", float64(v))
	case Arm64CImm:
		s = fmt.Sprintf("cimm %d", int64(v))
	case Arm64RegMRS:
		s = fmt.Sprintf("reg_mrs %#x", uint32(v))
	case Arm64RegMSR:
		s = fmt.Sprintf("reg_msr %#x", uint32(v))
	case Arm64PState:
		s = fmt.Sprintf("pstate %#x", uint8(v))
	case Arm64Sys:
		s = fmt.Sprintf("sys %#x", uint32(v))
	case Arm64Prefetch:
		s = fmt.Sprintf("prefetch %#x", uint8(v))
	case Arm64Barrier:
		s = fmt.Sprintf("barrier %#x", uint8(v))
	default:
		s = "invalid"
	}
	if op.Shift.Type != Arm64ShiftInvalid {
		s += fmt.Sprintf(" shift=%s:%d", op.Shift.Type, op.Shift.Value)
	}
	if op.Ext != Arm64ExtInvalid {
		s += " ext=" + op.Ext.String()
	}
	if op.VAS != Arm64VASInvalid {
		s += " vas=" + op.VAS.String()
	}
	if op.VectorIndex != -1 {
		s += fmt.Sprintf(" lane=%d", op.VectorIndex)
	}
	return s
}
