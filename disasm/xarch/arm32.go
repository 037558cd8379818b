package xarch

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"golang.org/x/arch/arm/armasm"

	"disarm/disasm"
)

// ARM32 architecture groups.
const (
	a32GroupARM    disasm.GroupID = 128
	a32GroupVFP    disasm.GroupID = 129
	a32GroupNEON   disasm.GroupID = 130
	a32GroupCrypto disasm.GroupID = 131
)

var arm32GroupNames = map[disasm.GroupID]string{
	a32GroupARM:    "arm",
	a32GroupVFP:    "vfp",
	a32GroupNEON:   "neon",
	a32GroupCrypto: "crypto",
}

// a32OpInfo is the decoder's dotted opcode ("ADD.S.EQ", "VCVT.F32.S32")
// split into the parts the listing needs.
type a32OpInfo struct {
	key      string // base plus variant letters, lowercase; names the instruction id
	mnemonic string
	cc       disasm.Arm32CC
	setFlags bool
	vecSize  int32
}

var a32TypeSuffixes = map[string]struct {
	text string
	size int32
}{
	"F16": {".f16", 16}, "F32": {".f32", 32}, "F64": {".f64", 64},
	"S32": {".s32", 32}, "U32": {".u32", 32}, "32": {".32", 32},
	"FXS16": {".s16", 16}, "FXS32": {".s32", 32},
	"FXU16": {".u16", 16}, "FXU32": {".u32", 32},
}

func parseA32Op(s string) a32OpInfo {
	parts := strings.Split(s, ".")
	info := a32OpInfo{cc: disasm.Arm32CCAL}
	key := strings.ToLower(parts[0])
	var cond, types string
	for _, p := range parts[1:] {
		if cc, ok := a32CondByName[p]; ok {
			info.cc = cc
			if p != "ZZ" {
				cond = cc.String()
			}
			continue
		}
		if t, ok := a32TypeSuffixes[p]; ok {
			types += t.text
			if info.vecSize == 0 {
				info.vecSize = t.size
			}
			continue
		}
		if p == "S" {
			info.setFlags = true
			continue
		}
		key += strings.ToLower(p)
	}
	info.key = key
	info.mnemonic = key
	if info.setFlags {
		info.mnemonic += "s"
	}
	info.mnemonic += cond + types
	return info
}

// arm32Ops holds the parsed form of every opcode the decoder knows, and
// arm32InsnNames the dense instruction ids derived from their keys.
var arm32Ops, arm32InsnIDs, arm32InsnNames = func() ([]a32OpInfo, map[string]uint32, []string) {
	ops := make([]a32OpInfo, 1<<13)
	var keys []string
	last := 0
	for op := armasm.Op(1); int(op) < len(ops); op++ {
		s := op.String()
		if strings.HasPrefix(s, "Op(") {
			continue
		}
		ops[op] = parseA32Op(s)
		keys = append(keys, ops[op].key)
		last = int(op)
	}
	slices.Sort(keys)
	keys = slices.Compact(keys)
	ids := make(map[string]uint32, len(keys))
	names := make([]string, 1, len(keys)+1)
	for i, k := range keys {
		ids[k] = uint32(i + 1)
		names = append(names, k)
	}
	return ops[:last+1], ids, names
}()

func a32Info(op armasm.Op) a32OpInfo {
	if int(op) < len(arm32Ops) && arm32Ops[op].key != "" {
		return arm32Ops[op]
	}
	return a32OpInfo{key: strings.ToLower(op.String()), mnemonic: strings.ToLower(op.String()), cc: disasm.Arm32CCAL}
}

// a32Builder accumulates the operands of one instruction.
type a32Builder struct {
	inst armasm.Inst
	pc   uint64
	text []string
	ops  []disasm.Arm32Operand
	wb   bool
	mb   int32
	pcrl bool
	regs []disasm.RegID // registers named in a register list

	// vfpImm marks vmov.f32/vmov.f64, whose only immediate is the packed
	// 8-bit floating point constant.
	vfpImm bool
}

// vfpExpandImm unpacks the VFP modified immediate abcdefgh into
// (-1)^a * 2^(NOT(b):cd - 3) * (1 + efgh/16). The value is exact in both
// single and double precision.
func vfpExpandImm(imm8 uint8) float64 {
	exp := int(imm8>>4&7^4) - 3
	v := math.Ldexp(1+float64(imm8&0xf)/16, exp)
	if imm8&0x80 != 0 {
		v = -v
	}
	return v
}

func buildARM32(r rawInsn) *disasm.Arm32Insn {
	inst := r.a32
	info := a32Info(inst.Op)
	b := &a32Builder{inst: inst, pc: r.addr}
	b.vfpImm = info.key == "vmov" && (info.vecSize == 32 || info.vecSize == 64)
	for _, arg := range inst.Args {
		if arg == nil {
			break
		}
		b.arg(arg)
	}

	key := info.key
	flags := info.setFlags || key == "cmp" || key == "cmn" || key == "tst" || key == "teq"
	var read, write []disasm.RegID
	if info.cc != disasm.Arm32CCAL {
		read = append(read, a32CPSR)
	}
	switch key {
	case "push", "pop":
		read = append(read, a32SP)
		write = append(write, a32SP)
	case "bl", "blx":
		write = append(write, a32LR)
	}
	if flags {
		write = append(write, a32CPSR)
	}

	var groups []disasm.GroupID
	switch key {
	case "bl":
		groups = append(groups, disasm.GroupCall, disasm.GroupJump)
	case "blx":
		groups = append(groups, disasm.GroupCall, disasm.GroupJump)
	case "b":
		groups = append(groups, disasm.GroupJump)
	case "bx", "bxj":
		groups = append(groups, disasm.GroupJump)
		if reg, ok := inst.Args[0].(armasm.Reg); ok && reg == armasm.LR {
			groups = append(groups, disasm.GroupRet)
		}
	case "pop", "ldm":
		if slices.Contains(b.regs, a32PC) {
			groups = append(groups, disasm.GroupJump, disasm.GroupRet)
		}
	case "svc", "bkpt":
		groups = append(groups, disasm.GroupInt)
	}
	if b.pcrl {
		groups = append(groups, disasm.GroupBranchRelative)
	}
	groups = append(groups, a32GroupARM)
	if strings.HasPrefix(key, "v") {
		groups = append(groups, a32GroupVFP)
	}

	enc := r.enc
	return disasm.NewArm32Insn(disasm.InsnCommon{
		ID:        arm32InsnIDs[key],
		Address:   r.addr,
		Bytes:     enc[:],
		Mnemonic:  info.mnemonic,
		OpStr:     joinOperands(b.text),
		RegsRead:  read,
		RegsWrite: write,
		Groups:    groups,
	}, disasm.Arm32Detail{
		VectorSize:  info.vecSize,
		CC:          info.cc,
		UpdateFlags: flags,
		Writeback:   b.wb,
		MemBarrier:  b.mb,
		Operands:    b.ops,
	})
}

func (b *a32Builder) add(text string, op disasm.Arm32Operand) {
	if text != "" {
		b.text = append(b.text, text)
	}
	b.ops = append(b.ops, op)
}

func (b *a32Builder) reg(r armasm.Reg) disasm.RegID {
	id := a32RegID(r)
	b.add(a32RegName(id), disasm.NewArm32Operand(disasm.Arm32Reg(id)))
	return id
}

func (b *a32Builder) shiftText(s armasm.Shift, count uint8) string {
	if s == armasm.RotateRightExt {
		return ", rrx"
	}
	return fmt.Sprintf(", %s #%d", strings.ToLower(s.String()), count)
}

func (b *a32Builder) arg(arg armasm.Arg) {
	switch a := arg.(type) {
	case armasm.Reg:
		b.reg(a)

	case armasm.Imm:
		switch b.inst.Op {
		case armasm.DMB, armasm.DSB, armasm.ISB:
			b.barrier(uint32(a))
			return
		}
		if b.vfpImm {
			v := vfpExpandImm(uint8(a))
			b.add(fmt.Sprintf("#%e", v), disasm.NewArm32Operand(disasm.Arm32FP(v)))
			return
		}
		b.add(immText(int32(a)), disasm.NewArm32Operand(disasm.Arm32Imm(int32(a))))

	case armasm.ImmAlt:
		v := int32(a.Imm())
		b.add(immText(v), disasm.NewArm32Operand(disasm.Arm32Imm(v)))

	case armasm.PCRel:
		b.pcrl = true
		target := int64(b.pc) + 8 + int64(a)
		b.add(immText(uint32(target)), disasm.NewArm32Operand(disasm.Arm32Imm(int32(target))))

	case armasm.RegX:
		id := a32RegID(a.Reg)
		op := disasm.NewArm32Operand(disasm.Arm32Reg(id))
		op.VectorIndex = int32(a.Index)
		b.add(fmt.Sprintf("%s[%d]", a32RegName(id), a.Index), op)

	case armasm.RegList:
		var names []string
		for i := range 16 {
			if a&(1<<i) == 0 {
				continue
			}
			id := a32RegID(armasm.Reg(i))
			b.regs = append(b.regs, id)
			names = append(names, a32RegName(id))
			b.ops = append(b.ops, disasm.NewArm32Operand(disasm.Arm32Reg(id)))
		}
		b.text = append(b.text, "{"+strings.Join(names, ", ")+"}")

	case armasm.Endian:
		v := disasm.SetendLE
		if a == armasm.BigEndian {
			v = disasm.SetendBE
		}
		b.add(strings.ToLower(a.String()), disasm.NewArm32Operand(v))

	case armasm.RegShift:
		id := a32RegID(a.Reg)
		op := disasm.NewArm32Operand(disasm.Arm32Reg(id))
		text := a32RegName(id)
		if a.Shift != armasm.ShiftLeft || a.Count != 0 {
			op.Shift = disasm.Arm32Shift{Type: a32Shift(a.Shift, false), Value: uint32(a.Count)}
			text += b.shiftText(a.Shift, a.Count)
		}
		b.add(text, op)

	case armasm.RegShiftReg:
		id := a32RegID(a.Reg)
		count := a32RegID(a.RegCount)
		op := disasm.NewArm32Operand(disasm.Arm32Reg(id))
		op.Shift = disasm.Arm32Shift{Type: a32Shift(a.Shift, true), Value: uint32(count)}
		b.add(fmt.Sprintf("%s, %s %s", a32RegName(id), strings.ToLower(a.Shift.String()), a32RegName(count)), op)

	case armasm.Mem:
		b.mem(a)

	default:
		b.text = append(b.text, strings.ToLower(arg.String()))
	}
}

func (b *a32Builder) barrier(option uint32) {
	option &= 15
	b.mb = int32(option) + 1
	text := a32BarrierNames[option]
	if text == "" {
		text = immText(option)
	}
	if b.inst.Op == armasm.ISB && option == 15 {
		text = ""
	}
	b.text = append(b.text, text)
}

func (b *a32Builder) mem(m armasm.Mem) {
	base := a32RegID(m.Base)
	baseName := a32RegName(base)

	switch m.Mode {
	case armasm.AddrLDM:
		b.reg(m.Base)
		return
	case armasm.AddrLDM_WB:
		b.wb = true
		b.add(baseName+"!", disasm.NewArm32Operand(disasm.Arm32Reg(base)))
		return
	}

	var index disasm.RegID
	var x string
	var shift disasm.Arm32Shift
	sub := m.Sign < 0
	if m.Sign != 0 {
		index = a32RegID(m.Index)
		if sub {
			x = "-"
		}
		x += a32RegName(index)
		if m.Shift != armasm.ShiftLeft || m.Count != 0 {
			shift = disasm.Arm32Shift{Type: a32Shift(m.Shift, false), Value: uint32(m.Count)}
			x += b.shiftText(m.Shift, m.Count)
		}
	} else if m.Offset != 0 || m.Mode == armasm.AddrPreIndex {
		x = immText(m.Offset)
	}

	if m.Mode == armasm.AddrPostIndex {
		b.wb = true
		b.add("["+baseName+"]", disasm.NewArm32Operand(disasm.Arm32Mem{Base: base, Scale: 1}))
		if index != 0 {
			op := disasm.NewArm32Operand(disasm.Arm32Reg(index))
			op.Shift = shift
			op.Subtracted = sub
			b.add(x, op)
			return
		}
		if x == "" {
			x = immText(m.Offset)
		}
		b.add(x, disasm.NewArm32Operand(disasm.Arm32Imm(int32(m.Offset))))
		return
	}

	mem := disasm.Arm32Mem{Base: base, Index: index, Scale: 1, Disp: int32(m.Offset)}
	if sub {
		mem.Scale = -1
	}
	op := disasm.NewArm32Operand(mem)
	op.Shift = shift
	op.Subtracted = sub || m.Offset < 0
	text := "[" + baseName
	if x != "" {
		text += ", " + x
	}
	text += "]"
	if m.Mode == armasm.AddrPreIndex {
		text += "!"
		b.wb = true
	}
	b.add(text, op)
}
