package disasm

import (
	"fmt"
	"slices"
)

// Insn is the part of a decoded instruction shared by every architecture.
// Its implementations are *Arm32Insn and *Arm64Insn; type-switch on them
// for the architecture specific detail.
type Insn interface {
	Mode() Mode
	ID() uint32
	Address() uint64
	Size() int
	Bytes() []byte
	Mnemonic() string
	OpStr() string
	RegsRead() []RegID
	RegsWrite() []RegID
	Groups() []GroupID
	InGroup(g GroupID) bool
	String() string

	insn()
}

// InsnCommon holds the fields every instruction variant carries. Size is
// len(Bytes).
type InsnCommon struct {
	ID        uint32
	Address   uint64
	Bytes     []byte
	Mnemonic  string
	OpStr     string
	RegsRead  []RegID
	RegsWrite []RegID
	Groups    []GroupID
}

// cloneOrNil copies s, mapping an empty slice to nil.
func cloneOrNil[S ~[]E, E any](s S) S {
	if len(s) == 0 {
		return nil
	}
	return slices.Clone(s)
}

func (c InsnCommon) clone() InsnCommon {
	c.Bytes = cloneOrNil(c.Bytes)
	c.RegsRead = cloneOrNil(c.RegsRead)
	c.RegsWrite = cloneOrNil(c.RegsWrite)
	c.Groups = cloneOrNil(c.Groups)
	return c
}

type insnBase struct {
	c InsnCommon
}

func (b *insnBase) ID() uint32         { return b.c.ID }
func (b *insnBase) Address() uint64    { return b.c.Address }
func (b *insnBase) Size() int          { return len(b.c.Bytes) }
func (b *insnBase) Bytes() []byte      { return cloneOrNil(b.c.Bytes) }
func (b *insnBase) Mnemonic() string   { return b.c.Mnemonic }
func (b *insnBase) OpStr() string      { return b.c.OpStr }
func (b *insnBase) RegsRead() []RegID  { return cloneOrNil(b.c.RegsRead) }
func (b *insnBase) RegsWrite() []RegID { return cloneOrNil(b.c.RegsWrite) }
func (b *insnBase) Groups() []GroupID  { return cloneOrNil(b.c.Groups) }
func (b *insnBase) insn()              {}

// InGroup reports whether the instruction belongs to group g.
func (b *insnBase) InGroup(g GroupID) bool { return slices.Contains(b.c.Groups, g) }

func (b *insnBase) String() string {
	if b.c.OpStr == "" {
		return fmt.Sprintf("%#x: %s", b.c.Address, b.c.Mnemonic)
	}
	return fmt.Sprintf("%#x: %s %s", b.c.Address, b.c.Mnemonic, b.c.OpStr)
}

// Arm32Detail is the ARM32 specific part of an instruction.
type Arm32Detail struct {
	Usermode    bool
	VectorSize  int32
	VectorData  int32
	CPSMode     int32
	CPSFlag     int32
	CC          Arm32CC
	UpdateFlags bool
	Writeback   bool
	MemBarrier  int32
	Operands    []Arm32Operand
}

// Arm32Insn is a decoded ARM32 instruction. It is immutable; accessors
// that return slices return copies.
type Arm32Insn struct {
	insnBase
	d Arm32Detail
}

// NewArm32Insn builds an instruction from its parts. The slices are copied.
func NewArm32Insn(c InsnCommon, d Arm32Detail) *Arm32Insn {
	d.Operands = cloneOrNil(d.Operands)
	return &Arm32Insn{insnBase: insnBase{c: c.clone()}, d: d}
}

func (*Arm32Insn) Mode() Mode                 { return ModeARM32 }
func (i *Arm32Insn) Usermode() bool           { return i.d.Usermode }
func (i *Arm32Insn) VectorSize() int32        { return i.d.VectorSize }
func (i *Arm32Insn) VectorData() int32        { return i.d.VectorData }
func (i *Arm32Insn) CPSMode() int32           { return i.d.CPSMode }
func (i *Arm32Insn) CPSFlag() int32           { return i.d.CPSFlag }
func (i *Arm32Insn) CC() Arm32CC              { return i.d.CC }
func (i *Arm32Insn) UpdatesFlags() bool       { return i.d.UpdateFlags }
func (i *Arm32Insn) WritebackRequired() bool  { return i.d.Writeback }
func (i *Arm32Insn) MemBarrier() int32        { return i.d.MemBarrier }
func (i *Arm32Insn) Operands() []Arm32Operand { return cloneOrNil(i.d.Operands) }

// Arm64Detail is the ARM64 specific part of an instruction.
type Arm64Detail struct {
	CC          Arm64CC
	UpdateFlags bool
	Writeback   bool
	Operands    []Arm64Operand
}

// Arm64Insn is a decoded ARM64 instruction. It is immutable; accessors
// that return slices return copies.
type Arm64Insn struct {
	insnBase
	d Arm64Detail
}

// NewArm64Insn builds an instruction from its parts. The slices are copied.
func NewArm64Insn(c InsnCommon, d Arm64Detail) *Arm64Insn {
	d.Operands = cloneOrNil(d.Operands)
	return &Arm64Insn{insnBase: insnBase{c: c.clone()}, d: d}
}

func (*Arm64Insn) Mode() Mode                 { return ModeARM64 }
func (i *Arm64Insn) CC() Arm64CC              { return i.d.CC }
func (i *Arm64Insn) UpdatesFlags() bool       { return i.d.UpdateFlags }
func (i *Arm64Insn) WritebackRequired() bool  { return i.d.Writeback }
func (i *Arm64Insn) Operands() []Arm64Operand { return cloneOrNil(i.d.Operands) }
