package xarch

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/arch/arm64/arm64asm"

	"disarm/disasm"
)

// ARM64 architecture groups.
const (
	a64GroupCrypto  disasm.GroupID = 128
	a64GroupFPARMv8 disasm.GroupID = 129
	a64GroupNEON    disasm.GroupID = 130
	a64GroupCRC     disasm.GroupID = 131
)

var arm64GroupNames = map[disasm.GroupID]string{
	a64GroupCrypto:  "crypto",
	a64GroupFPARMv8: "fparmv8",
	a64GroupNEON:    "neon",
	a64GroupCRC:     "crc",
}

// arm64InsnNames is indexed by arm64asm.Op, which doubles as the
// instruction id.
var arm64InsnNames = func() []string {
	names := make([]string, 1<<11)
	last := 0
	for op := arm64asm.Op(1); int(op) < len(names); op++ {
		s := op.String()
		if strings.HasPrefix(s, "Op(") {
			continue
		}
		names[op] = strings.ToLower(s)
		last = int(op)
	}
	return names[:last+1]
}()

var a64CondCodes = [8][2]disasm.Arm64CC{
	{disasm.Arm64CCEQ, disasm.Arm64CCNE},
	{disasm.Arm64CCHS, disasm.Arm64CCLO},
	{disasm.Arm64CCMI, disasm.Arm64CCPL},
	{disasm.Arm64CCVS, disasm.Arm64CCVC},
	{disasm.Arm64CCHI, disasm.Arm64CCLS},
	{disasm.Arm64CCGE, disasm.Arm64CCLT},
	{disasm.Arm64CCGT, disasm.Arm64CCLE},
	{disasm.Arm64CCAL, disasm.Arm64CCNV},
}

func a64Cond(c arm64asm.Cond) disasm.Arm64CC {
	invert := (c.Value&1 == 1) != c.Invert
	if invert {
		return a64CondCodes[c.Value>>1&7][1]
	}
	return a64CondCodes[c.Value>>1&7][0]
}

var (
	a64FlagSetters = opSet(arm64asm.ADDS, arm64asm.SUBS, arm64asm.CMP, arm64asm.CMN,
		arm64asm.TST, arm64asm.ANDS, arm64asm.BICS, arm64asm.ADCS, arm64asm.SBCS,
		arm64asm.NEGS, arm64asm.NGCS, arm64asm.CCMP, arm64asm.CCMN, arm64asm.FCMP,
		arm64asm.FCMPE, arm64asm.FCCMP, arm64asm.FCCMPE)
	a64FlagReaders = opSet(arm64asm.CSEL, arm64asm.CSINC, arm64asm.CSINV, arm64asm.CSNEG,
		arm64asm.CSET, arm64asm.CSETM, arm64asm.CINC, arm64asm.CINV, arm64asm.CNEG,
		arm64asm.FCSEL, arm64asm.CCMP, arm64asm.CCMN, arm64asm.FCCMP, arm64asm.FCCMPE,
		arm64asm.ADC, arm64asm.ADCS, arm64asm.SBC, arm64asm.SBCS, arm64asm.NGC, arm64asm.NGCS)
	a64SysOps = opSet(arm64asm.SYS, arm64asm.SYSL, arm64asm.DC, arm64asm.IC,
		arm64asm.AT, arm64asm.TLBI)
)

func opSet(ops ...arm64asm.Op) map[arm64asm.Op]bool {
	m := make(map[arm64asm.Op]bool, len(ops))
	for _, op := range ops {
		m[op] = true
	}
	return m
}

// a64Builder accumulates the operands of one instruction.
type a64Builder struct {
	inst  arm64asm.Inst
	pc    uint64
	mnem  string
	text  []string
	ops   []disasm.Arm64Operand
	cc    disasm.Arm64CC
	wb    bool
	simd  bool
	fpreg bool
}

func buildARM64(r rawInsn) *disasm.Arm64Insn {
	inst := r.a64
	b := &a64Builder{inst: inst, pc: r.addr, mnem: strings.ToLower(inst.Op.String())}
	for i, arg := range inst.Args {
		if arg == nil {
			break
		}
		b.arg(i, arg)
	}
	if inst.Op == arm64asm.RET {
		if reg, ok := inst.Args[0].(arm64asm.Reg); ok && reg == arm64asm.X30 {
			b.text = nil
		}
	}

	var read, write []disasm.RegID
	if a64FlagReaders[inst.Op] || b.cc != disasm.Arm64CCInvalid && inst.Op == arm64asm.B {
		read = append(read, a64NZCV)
	}
	if a64FlagSetters[inst.Op] {
		write = append(write, a64NZCV)
	}
	if inst.Op == arm64asm.BL || inst.Op == arm64asm.BLR {
		write = append(write, a64LR)
	}

	enc := r.enc
	return disasm.NewArm64Insn(disasm.InsnCommon{
		ID:        uint32(inst.Op),
		Address:   r.addr,
		Bytes:     enc[:],
		Mnemonic:  b.mnem,
		OpStr:     joinOperands(b.text),
		RegsRead:  read,
		RegsWrite: write,
		Groups:    b.groups(),
	}, disasm.Arm64Detail{
		CC:          b.cc,
		UpdateFlags: a64FlagSetters[inst.Op],
		Writeback:   b.wb,
		Operands:    b.ops,
	})
}

func (b *a64Builder) groups() []disasm.GroupID {
	var g []disasm.GroupID
	switch b.inst.Op {
	case arm64asm.BL:
		g = append(g, disasm.GroupCall, disasm.GroupJump, disasm.GroupBranchRelative)
	case arm64asm.BLR:
		g = append(g, disasm.GroupCall, disasm.GroupJump)
	case arm64asm.B, arm64asm.CBZ, arm64asm.CBNZ, arm64asm.TBZ, arm64asm.TBNZ:
		g = append(g, disasm.GroupJump, disasm.GroupBranchRelative)
	case arm64asm.BR:
		g = append(g, disasm.GroupJump)
	case arm64asm.RET:
		g = append(g, disasm.GroupJump, disasm.GroupRet)
	case arm64asm.SVC, arm64asm.BRK, arm64asm.HLT:
		g = append(g, disasm.GroupInt)
	case arm64asm.HVC, arm64asm.SMC:
		g = append(g, disasm.GroupInt, disasm.GroupPrivilege)
	case arm64asm.ERET, arm64asm.DRPS:
		g = append(g, disasm.GroupIRet, disasm.GroupPrivilege)
	case arm64asm.TLBI, arm64asm.AT, arm64asm.DCPS1, arm64asm.DCPS2, arm64asm.DCPS3:
		g = append(g, disasm.GroupPrivilege)
	}

	name := b.mnem
	switch {
	case strings.HasPrefix(name, "crc32"):
		g = append(g, a64GroupCRC)
	case strings.HasPrefix(name, "aes"), strings.HasPrefix(name, "sha1"),
		strings.HasPrefix(name, "sha256"), strings.HasPrefix(name, "sha512"),
		strings.HasPrefix(name, "sha3"), strings.HasPrefix(name, "pmull"):
		g = append(g, a64GroupCrypto)
	case b.simd:
		g = append(g, a64GroupNEON)
	case b.fpreg || strings.HasPrefix(name, "f") || name == "scvtf" || name == "ucvtf":
		g = append(g, a64GroupFPARMv8)
	}
	return g
}

func (b *a64Builder) add(text string, op disasm.Arm64Operand) {
	if text != "" {
		b.text = append(b.text, text)
	}
	b.ops = append(b.ops, op)
}

func (b *a64Builder) reg(r arm64asm.Reg) {
	if isSIMDReg(r) {
		b.fpreg = true
	}
	id := a64RegID(r)
	b.add(a64RegName(id), disasm.NewArm64Operand(disasm.Arm64Reg(id)))
}

func (b *a64Builder) arg(i int, arg arm64asm.Arg) {
	switch a := arg.(type) {
	case arm64asm.Reg:
		b.reg(a)

	case arm64asm.RegSP:
		id := a64RegSPID(a)
		b.add(a64RegName(id), disasm.NewArm64Operand(disasm.Arm64Reg(id)))

	case arm64asm.ImmShift:
		imm, shift, amount := parseImmShift(a.String())
		op := disasm.NewArm64Operand(disasm.Arm64Imm(int64(imm)))
		text := immText(imm)
		if shift != disasm.Arm64ShiftInvalid {
			op.Shift = disasm.Arm64Shift{Type: shift, Value: amount}
			text += fmt.Sprintf(", %s #%d", shift, amount)
		}
		b.add(text, op)

	case arm64asm.RegExtshiftAmount:
		b.regExtShift(a.String())

	case arm64asm.PCRel:
		var target int64
		if b.inst.Op == arm64asm.ADRP {
			target = int64(b.pc&^0xfff) + int64(a)
		} else {
			target = int64(b.pc) + int64(a)
		}
		b.add(immText(uint64(target)), disasm.NewArm64Operand(disasm.Arm64Imm(target)))

	case arm64asm.MemImmediate:
		b.memImmediate(a)

	case arm64asm.MemExtend:
		b.memExtend(a)

	case arm64asm.Imm:
		b.add(immText(a.Imm), disasm.NewArm64Operand(disasm.Arm64Imm(int64(a.Imm))))

	case arm64asm.Imm64:
		b.add(immText(a.Imm), disasm.NewArm64Operand(disasm.Arm64Imm(int64(a.Imm))))

	case arm64asm.Imm_hint:
		b.add(immText(uint8(a)), disasm.NewArm64Operand(disasm.Arm64Imm(int64(a))))

	case arm64asm.Imm_clrex:
		text := immText(uint8(a))
		if a == 15 {
			text = ""
		}
		b.add(text, disasm.NewArm64Operand(disasm.Arm64Imm(int64(a))))

	case arm64asm.Imm_dcps:
		text := immText(uint16(a))
		if a == 0 {
			text = ""
		}
		b.add(text, disasm.NewArm64Operand(disasm.Arm64Imm(int64(a))))

	case arm64asm.Cond:
		b.cc = a64Cond(a)
		if b.inst.Op == arm64asm.B && i == 0 {
			b.mnem = "b." + b.cc.String()
			return
		}
		b.text = append(b.text, b.cc.String())

	case arm64asm.Imm_c:
		b.add(fmt.Sprintf("c%d", uint8(a)), disasm.NewArm64Operand(disasm.Arm64CImm(int64(a))))

	case arm64asm.Imm_option:
		text := strings.ToLower(a.String())
		if strings.HasPrefix(text, "#") {
			text = immText(uint8(a))
		}
		if b.inst.Op == arm64asm.ISB && a == 15 {
			text = ""
		}
		b.add(text, disasm.NewArm64Operand(disasm.Arm64Barrier(uint8(a))))

	case arm64asm.Imm_prfop:
		text := strings.ToLower(a.String())
		if strings.HasPrefix(text, "#") {
			text = immText(uint8(a))
		}
		b.add(text, disasm.NewArm64Operand(disasm.Arm64Prefetch(uint8(a))))

	case arm64asm.Pstatefield:
		var code uint8
		switch a {
		case arm64asm.SPSel:
			code = a64PStateSPSel
		case arm64asm.DAIFSet:
			code = a64PStateDAIFSet
		case arm64asm.DAIFClr:
			code = a64PStateDAIFClr
		}
		b.add(strings.ToLower(a.String()), disasm.NewArm64Operand(disasm.Arm64PState(code)))

	case arm64asm.Systemreg:
		b.systemReg(a.String())

	case arm64asm.Imm_fp:
		f, _ := strconv.ParseFloat(strings.TrimPrefix(a.String(), "#"), 64)
		b.add(fmt.Sprintf("#%.8f", f), disasm.NewArm64Operand(disasm.Arm64FP(f)))

	case arm64asm.RegisterWithArrangement:
		b.arrangement(a.String())

	case arm64asm.RegisterWithArrangementAndIndex:
		b.arrangement(a.String())

	default:
		text := strings.ToLower(arg.String())
		if !a64SysOps[b.inst.Op] {
			b.text = append(b.text, text)
			return
		}
		enc := b.inst.Enc
		sys := sysreg(0, enc>>16&7, enc>>12&15, enc>>8&15, enc>>5&7)
		b.add(text, disasm.NewArm64Operand(disasm.Arm64Sys(sys)))
		if strings.Contains(text, ", ") {
			id := a64RegID(arm64asm.X0 + arm64asm.Reg(enc&31))
			b.ops = append(b.ops, disasm.NewArm64Operand(disasm.Arm64Reg(id)))
		}
	}
}

// parseImmShift reads "#0x790", "#0x1, LSL #12" or "#0xff, MSL #8".
func parseImmShift(s string) (uint64, disasm.Arm64ShiftType, uint32) {
	head, tail, _ := strings.Cut(s, ", ")
	imm, _ := strconv.ParseUint(strings.TrimPrefix(head, "#"), 0, 64)
	if tail == "" {
		return imm, disasm.Arm64ShiftInvalid, 0
	}
	kind, amount, _ := strings.Cut(tail, " #")
	n, _ := strconv.ParseUint(amount, 10, 32)
	return imm, a64ShiftByName[kind], uint32(n)
}

// regExtShift handles "X1", "X1, LSL #3", "W2, UXTW" and "W2, SXTW #2".
func (b *a64Builder) regExtShift(s string) {
	name, tail, _ := strings.Cut(s, ", ")
	r := a64RegByName[name]
	id := a64RegID(r)
	op := disasm.NewArm64Operand(disasm.Arm64Reg(id))
	text := a64RegName(id)
	if tail != "" {
		kind, amount, _ := strings.Cut(tail, " #")
		n, _ := strconv.ParseUint(amount, 10, 32)
		if st, ok := a64ShiftByName[kind]; ok {
			op.Shift = disasm.Arm64Shift{Type: st, Value: uint32(n)}
		} else {
			op.Ext = a64ExtByName[kind]
			if n != 0 {
				op.Shift = disasm.Arm64Shift{Type: disasm.Arm64ShiftLSL, Value: uint32(n)}
			}
		}
		text += ", " + strings.ToLower(tail)
	}
	b.add(text, op)
}

// memImmOffset extracts the immediate from a MemImmediate's text, which is
// the only place the decoder exposes it.
func memImmOffset(s string) int32 {
	i := strings.LastIndexByte(s, '#')
	if i < 0 {
		return 0
	}
	j := i + 1
	for j < len(s) && (s[j] == '-' || s[j] >= '0' && s[j] <= '9') {
		j++
	}
	v, _ := strconv.ParseInt(s[i+1:j], 10, 32)
	return int32(v)
}

func (b *a64Builder) memImmediate(a arm64asm.MemImmediate) {
	base := a64RegSPID(a.Base)
	baseName := a64RegName(base)
	s := a.String()

	switch a.Mode {
	case arm64asm.AddrPostReg:
		_, post, _ := strings.Cut(s, "], ")
		idx := a64RegID(a64RegByName[post])
		b.wb = true
		b.add("["+baseName+"]", disasm.NewArm64Operand(disasm.Arm64Mem{Base: base}))
		b.add(a64RegName(idx), disasm.NewArm64Operand(disasm.Arm64Reg(idx)))
		return
	case arm64asm.AddrPostIndex:
		disp := memImmOffset(s)
		b.wb = true
		b.add("["+baseName+"]", disasm.NewArm64Operand(disasm.Arm64Mem{Base: base}))
		b.add(immText(disp), disasm.NewArm64Operand(disasm.Arm64Imm(int64(disp))))
		return
	}

	disp := memImmOffset(s)
	text := "[" + baseName
	if disp != 0 {
		text += ", " + immText(disp)
	}
	text += "]"
	if a.Mode == arm64asm.AddrPreIndex {
		text += "!"
		b.wb = true
	}
	b.add(text, disasm.NewArm64Operand(disasm.Arm64Mem{Base: base, Disp: disp}))
}

func (b *a64Builder) memExtend(a arm64asm.MemExtend) {
	base := a64RegSPID(a.Base)
	index := a64RegID(a.Index)
	ext := a.Extend.String()
	lower := strings.ToLower(ext)

	var suffix string
	switch {
	case a.ShiftMustBeZero && a.Amount != 0:
		suffix = ", " + lower + " #0"
	case !a.ShiftMustBeZero && a.Amount != 0:
		suffix = fmt.Sprintf(", %s #%d", lower, a.Amount)
	case ext != "LSL":
		suffix = ", " + lower
	}

	op := disasm.NewArm64Operand(disasm.Arm64Mem{Base: base, Index: index})
	amount := uint32(a.Amount)
	if a.ShiftMustBeZero {
		amount = 0
	}
	if ext == "LSL" {
		if amount != 0 {
			op.Shift = disasm.Arm64Shift{Type: disasm.Arm64ShiftLSL, Value: amount}
		}
	} else {
		op.Ext = a64ExtByName[ext]
		if amount != 0 {
			op.Shift = disasm.Arm64Shift{Type: disasm.Arm64ShiftLSL, Value: amount}
		}
	}
	b.add("["+a64RegName(base)+", "+a64RegName(index)+suffix+"]", op)
}

func (b *a64Builder) systemReg(s string) {
	var op0, op1, crn, crm, op2 uint32
	fmt.Sscanf(s, "S%d_%d_C%d_C%d_%d", &op0, &op1, &crn, &crm, &op2)
	enc := sysreg(op0, op1, crn, crm, op2)
	text, ok := arm64SysregNames[enc]
	if !ok {
		text = strings.ToLower(s)
	}
	if b.inst.Op == arm64asm.MSR {
		b.add(text, disasm.NewArm64Operand(disasm.Arm64RegMSR(enc)))
		return
	}
	b.add(text, disasm.NewArm64Operand(disasm.Arm64RegMRS(enc)))
}

// arrangement handles "V0.16B", "{V0.16B, V1.16B}", "{V0.16B-V3.16B}" and
// the indexed forms "V1.S[2]" and "{V0.B, V1.B}[3]".
func (b *a64Builder) arrangement(s string) {
	b.simd = true
	index := int32(-1)
	if strings.HasSuffix(s, "]") {
		open := strings.LastIndexByte(s, '[')
		n, _ := strconv.Atoi(s[open+1 : len(s)-1])
		index = int32(n)
		s = s[:open]
	}
	list := strings.HasPrefix(s, "{")
	s = strings.Trim(s, "{}")

	var elems []string
	if lo, hi, ok := strings.Cut(s, "-"); ok {
		first, arr, _ := strings.Cut(lo, ".")
		last, _, _ := strings.Cut(hi, ".")
		from, to := a64RegByName[first]-arm64asm.V0, a64RegByName[last]-arm64asm.V0
		for r := from; ; r = (r + 1) & 31 {
			elems = append(elems, (arm64asm.V0 + r).String()+"."+arr)
			if r == to {
				break
			}
		}
	} else {
		elems = strings.Split(s, ", ")
	}

	texts := make([]string, 0, len(elems))
	for _, e := range elems {
		name, arr, _ := strings.Cut(e, ".")
		id := a64RegID(a64RegByName[name])
		op := disasm.NewArm64Operand(disasm.Arm64Reg(id))
		op.VAS = a64VASByName[arr]
		op.VectorIndex = index
		b.ops = append(b.ops, op)
		texts = append(texts, a64RegName(id)+"."+strings.ToLower(arr))
	}
	text := strings.Join(texts, ", ")
	if list {
		text = "{" + text + "}"
	}
	if index >= 0 {
		text += fmt.Sprintf("[%d]", index)
	}
	b.text = append(b.text, text)
}
