package disasm

import (
	"errors"
	"testing"
)

func TestArm32OperandAccessors(t *testing.T) {
	tests := []struct {
		name string
		op   Arm32Operand
		kind Arm32OpType
	}{
		{"reg", NewArm32Operand(Arm32Reg(66)), Arm32OpReg},
		{"imm", NewArm32Operand(Arm32Imm(-4)), Arm32OpImm},
		{"mem", NewArm32Operand(Arm32Mem{Base: 12, Scale: 1, Disp: 8}), Arm32OpMem},
		{"fp", NewArm32Operand(Arm32FP(1.5)), Arm32OpFP},
		{"cimm", NewArm32Operand(Arm32CImm(7)), Arm32OpCImm},
		{"pimm", NewArm32Operand(Arm32PImm(15)), Arm32OpPImm},
		{"setend", NewArm32Operand(SetendBE), Arm32OpSetend},
		{"sysreg", NewArm32Operand(Arm32SysReg(3)), Arm32OpSysReg},
		{"invalid", Arm32Operand{}, Arm32OpInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.op.Kind(); got != tt.kind {
				t.Fatalf("Kind = %s, want %s", got, tt.kind)
			}
			accessors := map[Arm32OpType]func() error{
				Arm32OpReg:    func() error { _, err := tt.op.Reg(); return err },
				Arm32OpImm:    func() error { _, err := tt.op.Imm(); return err },
				Arm32OpMem:    func() error { _, err := tt.op.Mem(); return err },
				Arm32OpFP:     func() error { _, err := tt.op.FP(); return err },
				Arm32OpCImm:   func() error { _, err := tt.op.CImm(); return err },
				Arm32OpPImm:   func() error { _, err := tt.op.PImm(); return err },
				Arm32OpSetend: func() error { _, err := tt.op.Setend(); return err },
				Arm32OpSysReg: func() error { _, err := tt.op.SysReg(); return err },
			}
			for kind, call := range accessors {
				err := call()
				if kind == tt.kind {
					if err != nil {
						t.Errorf("%s accessor: %v", kind, err)
					}
					continue
				}
				if !errors.Is(err, ErrInvalidOperandKind) {
					t.Errorf("%s accessor on %s operand: err = %v", kind, tt.kind, err)
				}
			}
		})
	}
}

func TestArm32OperandValues(t *testing.T) {
	mem := Arm32Mem{Base: 12, Index: 67, Scale: -1, Disp: 0}
	op := NewArm32Operand(mem)
	if op.VectorIndex != -1 {
		t.Errorf("VectorIndex = %d, want -1", op.VectorIndex)
	}
	got, err := op.Mem()
	if err != nil || got != mem {
		t.Errorf("Mem() = %+v, %v", got, err)
	}
	if v, err := NewArm32Operand(Arm32Imm(-4)).Imm(); err != nil || v != -4 {
		t.Errorf("Imm() = %d, %v", v, err)
	}
	if v, err := NewArm32Operand(SetendLE).Setend(); err != nil || Arm32Setend(v) != SetendLE {
		t.Errorf("Setend() = %d, %v", v, err)
	}
}

func TestArm64OperandAccessors(t *testing.T) {
	tests := []struct {
		name string
		op   Arm64Operand
		kind Arm64OpType
	}{
		{"reg", NewArm64Operand(Arm64Reg(2)), Arm64OpReg},
		{"imm", NewArm64Operand(Arm64Imm(3804)), Arm64OpImm},
		{"mem", NewArm64Operand(Arm64Mem{Base: 5, Disp: -16}), Arm64OpMem},
		{"fp", NewArm64Operand(Arm64FP(0.5)), Arm64OpFP},
		{"cimm", NewArm64Operand(Arm64CImm(7)), Arm64OpCImm},
		{"mrs", NewArm64Operand(Arm64RegMRS(0xda10)), Arm64OpRegMRS},
		{"msr", NewArm64Operand(Arm64RegMSR(0xda10)), Arm64OpRegMSR},
		{"pstate", NewArm64Operand(Arm64PState(5)), Arm64OpPState},
		{"sys", NewArm64Operand(Arm64Sys(0x1ba1)), Arm64OpSys},
		{"prefetch", NewArm64Operand(Arm64Prefetch(0)), Arm64OpPrefetch},
		{"barrier", NewArm64Operand(Arm64Barrier(11)), Arm64OpBarrier},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.op.Kind(); got != tt.kind {
				t.Fatalf("Kind = %s, want %s", got, tt.kind)
			}
			accessors := map[Arm64OpType]func() error{
				Arm64OpReg:      func() error { _, err := tt.op.Reg(); return err },
				Arm64OpImm:      func() error { _, err := tt.op.Imm(); return err },
				Arm64OpMem:      func() error { _, err := tt.op.Mem(); return err },
				Arm64OpFP:       func() error { _, err := tt.op.FP(); return err },
				Arm64OpCImm:     func() error { _, err := tt.op.CImm(); return err },
				Arm64OpRegMRS:   func() error { _, err := tt.op.RegMRS(); return err },
				Arm64OpRegMSR:   func() error { _, err := tt.op.RegMSR(); return err },
				Arm64OpPState:   func() error { _, err := tt.op.PState(); return err },
				Arm64OpSys:      func() error { _, err := tt.op.Sys(); return err },
				Arm64OpPrefetch: func() error { _, err := tt.op.Prefetch(); return err },
				Arm64OpBarrier:  func() error { _, err := tt.op.Barrier(); return err },
			}
			for kind, call := range accessors {
				err := call()
				if kind == tt.kind {
					if err != nil {
						t.Errorf("%s accessor: %v", kind, err)
					}
					continue
				}
				var oke *OperandKindError
				if !errors.As(err, &oke) {
					t.Fatalf("%s accessor on %s operand: err = %v", kind, tt.kind, err)
				}
				if oke.Mode != ModeARM64 || oke.Got != tt.kind.String() || oke.Want != kind.String() {
					t.Errorf("error = %+v", oke)
				}
			}
		})
	}
}

func TestNewOperandHasNoLane(t *testing.T) {
	a32 := NewArm32Operand(Arm32Reg(1))
	a64 := NewArm64Operand(Arm64Imm(4))
	if a32.VectorIndex != -1 || a64.VectorIndex != -1 {
		t.Errorf("VectorIndex = %d, %d; want -1", a32.VectorIndex, a64.VectorIndex)
	}
	if a32.Shift.Type != Arm32ShiftInvalid || a64.Ext != Arm64ExtInvalid {
		t.Errorf("new operands carry a shift or extend: %+v %+v", a32, a64)
	}

	var zero Arm64Operand
	if zero.Kind() != Arm64OpInvalid || zero.VectorIndex != 0 {
		t.Errorf("zero operand = %v lane %d", zero.Kind(), zero.VectorIndex)
	}
	if _, err := zero.Reg(); !errors.Is(err, ErrInvalidOperandKind) {
		t.Errorf("zero.Reg() error = %v", err)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"arm64", ModeARM64, false},
		{"AArch64", ModeARM64, false},
		{" a64 ", ModeARM64, false},
		{"arm", ModeARM32, false},
		{"A32", ModeARM32, false},
		{"thumb", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseMode(%q) = %s, %v", tt.in, got, err)
		}
	}

	var m Mode
	if err := m.UnmarshalText([]byte("aarch64")); err != nil || m != ModeARM64 {
		t.Errorf("UnmarshalText = %s, %v", m, err)
	}
	if b, err := ModeARM32.MarshalText(); err != nil || string(b) != "arm32" {
		t.Errorf("MarshalText = %q, %v", b, err)
	}
	if _, err := Mode(9).MarshalText(); err == nil {
		t.Error("MarshalText accepted an invalid mode")
	}
}

func TestGenericGroupName(t *testing.T) {
	for id, want := range map[GroupID]string{
		GroupInvalid:        "",
		GroupJump:           "jump",
		GroupCall:           "call",
		GroupRet:            "return",
		GroupBranchRelative: "branch_relative",
		128:                 "",
	} {
		if got := GenericGroupName(id); got != want {
			t.Errorf("GenericGroupName(%d) = %q, want %q", id, got, want)
		}
	}
}

func TestInsnAccessorsCopy(t *testing.T) {
	in := NewArm64Insn(InsnCommon{
		ID:       1,
		Address:  0x1000,
		Bytes:    []byte{1, 2, 3, 4},
		Mnemonic: "nop",
		RegsRead: []RegID{4},
		Groups:   []GroupID{},
	}, Arm64Detail{Operands: []Arm64Operand{NewArm64Operand(Arm64Imm(1))}})

	in.Bytes()[0] = 0xff
	in.RegsRead()[0] = 9
	in.Operands()[0] = NewArm64Operand(Arm64Reg(1))
	if in.Bytes()[0] != 1 || in.RegsRead()[0] != 4 || in.Operands()[0].Kind() != Arm64OpImm {
		t.Error("accessors expose internal storage")
	}
	if in.Groups() != nil || in.RegsWrite() != nil {
		t.Error("empty lists should be reported as absent")
	}
	if in.Size() != 4 || in.String() != "0x1000: nop" {
		t.Errorf("Size = %d, String = %q", in.Size(), in.String())
	}
}
