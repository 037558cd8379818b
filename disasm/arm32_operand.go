package disasm

import "fmt"

// Arm32OpType is the discriminant of an Arm32Operand.
type Arm32OpType uint8

const (
	Arm32OpInvalid Arm32OpType = iota
	Arm32OpReg
	Arm32OpImm
	Arm32OpMem
	Arm32OpFP
	Arm32OpCImm
	Arm32OpPImm
	Arm32OpSetend
	Arm32OpSysReg
)

var arm32OpNames = [...]string{"invalid", "reg", "imm", "mem", "fp", "cimm", "pimm", "setend", "sysreg"}

func (t Arm32OpType) String() string {
	if int(t) < len(arm32OpNames) {
		return arm32OpNames[t]
	}
	return fmt.Sprintf("Arm32OpType(%d)", uint8(t))
}

// Arm32Value is the payload of an ARM32 operand. Its implementations are
// exactly the Arm32* payload types of this package.
type Arm32Value interface {
	arm32Kind() Arm32OpType
}

type (
	Arm32Reg    RegID
	Arm32Imm    int32
	Arm32FP     float64
	Arm32CImm   int32
	Arm32PImm   int32
	Arm32Setend int8
	Arm32SysReg int32
)

// Arm32Mem is a memory reference. Scale is 1, or -1 when the index is
// subtracted.
type Arm32Mem struct {
	Base  RegID
	Index RegID
	Scale int32
	Disp  int32
}

func (Arm32Reg) arm32Kind() Arm32OpType    { return Arm32OpReg }
func (Arm32Imm) arm32Kind() Arm32OpType    { return Arm32OpImm }
func (Arm32Mem) arm32Kind() Arm32OpType    { return Arm32OpMem }
func (Arm32FP) arm32Kind() Arm32OpType     { return Arm32OpFP }
func (Arm32CImm) arm32Kind() Arm32OpType   { return Arm32OpCImm }
func (Arm32PImm) arm32Kind() Arm32OpType   { return Arm32OpPImm }
func (Arm32Setend) arm32Kind() Arm32OpType { return Arm32OpSetend }
func (Arm32SysReg) arm32Kind() Arm32OpType { return Arm32OpSysReg }

// Arm32Operand is one operand of an ARM32 instruction. Build one with
// NewArm32Operand: the zero value has VectorIndex 0, which reads as lane 0.
// Each typed accessor returns an *OperandKindError when the operand holds a
// different kind.
type Arm32Operand struct {
	VectorIndex int32 // -1 when the operand has no lane index
	Shift       Arm32Shift
	Subtracted  bool
	value       Arm32Value
}

// NewArm32Operand returns an operand holding v with no lane index or shift.
func NewArm32Operand(v Arm32Value) Arm32Operand {
	return Arm32Operand{VectorIndex: -1, value: v}
}

// Kind returns the operand's discriminant.
func (op Arm32Operand) Kind() Arm32OpType {
	if op.value == nil {
		return Arm32OpInvalid
	}
	return op.value.arm32Kind()
}

// Value returns the payload for use in an exhaustive type switch. It is nil
// for an invalid operand.
func (op Arm32Operand) Value() Arm32Value { return op.value }

func arm32As[T Arm32Value](op Arm32Operand, want Arm32OpType) (T, error) {
	v, ok := op.value.(T)
	if !ok {
		var zero T
		return zero, &OperandKindError{Mode: ModeARM32, Want: want.String(), Got: op.Kind().String()}
	}
	return v, nil
}

// Reg returns the register of an Arm32OpReg operand.
func (op Arm32Operand) Reg() (RegID, error) {
	v, err := arm32As[Arm32Reg](op, Arm32OpReg)
	return RegID(v), err
}

// Imm returns the immediate of an Arm32OpImm operand.
func (op Arm32Operand) Imm() (int32, error) {
	v, err := arm32As[Arm32Imm](op, Arm32OpImm)
	return int32(v), err
}

// Mem returns the memory reference of an Arm32OpMem operand.
func (op Arm32Operand) Mem() (Arm32Mem, error) {
	return arm32As[Arm32Mem](op, Arm32OpMem)
}

// FP returns the floating point immediate of an Arm32OpFP operand, such as
// the expanded constant of vmov.f32.
func (op Arm32Operand) FP() (float64, error) {
	v, err := arm32As[Arm32FP](op, Arm32OpFP)
	return float64(v), err
}

// CImm returns the coprocessor register number of an Arm32OpCImm operand.
func (op Arm32Operand) CImm() (int32, error) {
	v, err := arm32As[Arm32CImm](op, Arm32OpCImm)
	return int32(v), err
}

// PImm returns the coprocessor number of an Arm32OpPImm operand.
func (op Arm32Operand) PImm() (int32, error) {
	v, err := arm32As[Arm32PImm](op, Arm32OpPImm)
	return int32(v), err
}

// Setend returns SetendBE or SetendLE for an Arm32OpSetend operand.
func (op Arm32Operand) Setend() (int8, error) {
	v, err := arm32As[Arm32Setend](op, Arm32OpSetend)
	return int8(v), err
}

// SysReg returns the system register of an Arm32OpSysReg operand.
func (op Arm32Operand) SysReg() (int32, error) {
	v, err := arm32As[Arm32SysReg](op, Arm32OpSysReg)
	return int32(v), err
}

func (op Arm32Operand) String() string {
	var s string
	switch v := op.value.(type) {
	case Arm32Reg:
		s = fmt.Sprintf("reg %d", v)
	case Arm32Imm:
		s = fmt.Sprintf("imm %#x", int32(v))
	case Arm32Mem:
		s = fmt.Sprintf("mem base=%d index=%d scale=%d disp=%#x", v.Base, v.Index, v.Scale, v.Disp)
	case Arm32FP:
		s = fmt.Sprintf("fp %g", float64(v))
	case Arm32CImm:
		s = fmt.Sprintf("cimm %d", int32(v))
	case Arm32PImm:
		s = fmt.Sprintf("pimm %d", int32(v))
	case Arm32Setend:
		s = fmt.Sprintf("setend %d", int8(v))
	case Arm32SysReg:
		s = fmt.Sprintf("sysreg %d", int32(v))
	default:
		s = "invalid"
	}
	if op.Shift.Type != Arm32ShiftInvalid {
		s += fmt.Sprintf(" shift=%s:%d", op.Shift.Type, op.Shift.Value)
	}
	if op.VectorIndex != -1 {
		s += fmt.Sprintf(" lane=%d", op.VectorIndex)
	}
	if op.Subtracted {
		s += " subtracted"
	}
	return s
}
