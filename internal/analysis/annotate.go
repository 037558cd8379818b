package analysis

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"disarm/disasm"
)

// minStringLen keeps short byte runs from being reported as strings.
const minStringLen = 4

// Annotate turns a decoded set into a listing. With an image it inserts a
// label line at every symbol start, names branch targets, resolves ARM64
// ADRP+ADD/LDR pairs and ARM32 literal-pool loads, and shows strings they
// point at. img may be nil.
func Annotate(rs *disasm.ResultSet, names Names, img Image) []AnnotatedInst {
	listing := make([]AnnotatedInst, 0, rs.Len())
	pages := make(map[disasm.RegID]uint64)

	for _, in := range rs.All() {
		va := in.Address()
		if img != nil {
			if s, off, ok := img.SymbolAt(va); ok && off == 0 {
				listing = append(listing, AnnotatedInst{VA: va, Mnemonic: CachedDemangle(s.Name) + ":"})
				clear(pages)
			}
		}

		a := AnnotatedInst{
			VA:       va,
			Bytes:    in.Bytes(),
			Insn:     in,
			Mnemonic: in.Mnemonic(),
			Operands: in.OpStr(),
		}
		if t, ok := branchTarget(in); ok {
			if name := SymbolName(img, t); name != "" {
				a.Annotations = append(a.Annotations, name)
			}
		}
		switch x := in.(type) {
		case *disasm.Arm64Insn:
			a.Annotations = append(a.Annotations, annotateArm64(x, pages, img)...)
		case *disasm.Arm32Insn:
			a.Annotations = append(a.Annotations, annotateArm32(x, names, img)...)
		}
		listing = append(listing, a)
	}
	return listing
}

// branchTarget returns the destination of a PC-relative branch or call.
func branchTarget(in disasm.Insn) (uint64, bool) {
	if !in.InGroup(disasm.GroupBranchRelative) {
		return 0, false
	}
	switch x := in.(type) {
	case *disasm.Arm64Insn:
		ops := x.Operands()
		for i := len(ops) - 1; i >= 0; i-- {
			if v, err := ops[i].Imm(); err == nil {
				return uint64(v), true
			}
		}
	case *disasm.Arm32Insn:
		ops := x.Operands()
		for i := len(ops) - 1; i >= 0; i-- {
			if v, err := ops[i].Imm(); err == nil {
				return uint64(uint32(v)), true
			}
		}
	}
	return 0, false
}

// describe names what lives at addr: a symbol, a string, or nothing.
func describe(img Image, addr uint64) string {
	if name := SymbolName(img, addr); name != "" {
		return name
	}
	if s, ok := ReadCString(img, addr, minStringLen, MaxStringLength); ok {
		return strconv.Quote(s)
	}
	return ""
}

func addrNote(img Image, prefix string, addr uint64) []string {
	notes := []string{fmt.Sprintf("%s%#x", prefix, addr)}
	if d := describe(img, addr); d != "" {
		notes = append(notes, d)
	}
	return notes
}

// annotateArm64 follows ADRP pages per register within a function.
func annotateArm64(in *disasm.Arm64Insn, pages map[disasm.RegID]uint64, img Image) []string {
	ops := in.Operands()
	if len(ops) == 0 {
		return nil
	}
	dst, dstErr := ops[0].Reg()

	var notes []string
	switch in.Mnemonic() {
	case "adrp":
		if page, err := ops[1].Imm(); err == nil && dstErr == nil {
			pages[dst] = uint64(page)
		}
		return nil
	case "add":
		if len(ops) == 3 {
			src, err1 := ops[1].Reg()
			off, err2 := ops[2].Imm()
			if page, ok := pages[src]; ok && err1 == nil && err2 == nil && ops[2].Shift.Value == 0 {
				notes = addrNote(img, "", page+uint64(off))
			}
		}
	case "adr":
		if v, err := ops[1].Imm(); err == nil {
			notes = addrNote(img, "", uint64(v))
		}
	default:
		for _, op := range ops {
			m, err := op.Mem()
			if err != nil || m.Index != 0 {
				continue
			}
			if page, ok := pages[m.Base]; ok {
				notes = addrNote(img, "[", page+uint64(int64(m.Disp)))
				notes[0] += "]"
			}
		}
		if strings.HasPrefix(in.Mnemonic(), "ld") && len(ops) == 2 {
			// ldr x0, #label
			if v, err := ops[1].Imm(); err == nil {
				notes = addrNote(img, "=", uint64(v))
			}
		}
	}
	if dstErr == nil && writesFirstOperand(in.Mnemonic()) {
		delete(pages, dst)
	}
	return notes
}

// writesFirstOperand reports whether an ARM64 mnemonic's first operand is a
// destination register.
func writesFirstOperand(mnem string) bool {
	for _, p := range []string{"st", "cmp", "cmn", "tst", "cb", "tb", "b", "ret", "prfm", "msr"} {
		if strings.HasPrefix(mnem, p) && !strings.HasPrefix(mnem, "bic") && !strings.HasPrefix(mnem, "bfi") && !strings.HasPrefix(mnem, "bfx") {
			return false
		}
	}
	return true
}

// annotateArm32 resolves loads from the literal pool.
func annotateArm32(in *disasm.Arm32Insn, names Names, img Image) []string {
	if !strings.HasPrefix(in.Mnemonic(), "ldr") || names == nil {
		return nil
	}
	for _, op := range in.Operands() {
		m, err := op.Mem()
		if err != nil || m.Index != 0 {
			continue
		}
		if base, _ := names.RegName(m.Base); base != "pc" {
			continue
		}
		lit := uint64(int64(in.Address()) + 8 + int64(m.Disp))
		notes := []string{fmt.Sprintf("[%#x]", lit)}
		if img == nil {
			return notes
		}
		word, err := img.ReadVA(lit, 4)
		if err != nil || len(word) < 4 {
			return notes
		}
		v := uint64(binary.LittleEndian.Uint32(word))
		return append(notes, addrNote(img, "=", v)...)
	}
	return nil
}
