package cmd

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"disarm/disasm"
	"disarm/internal/analysis"
	"disarm/internal/ui/colorize"
)

// writeText prints the annotated listing, one line per instruction or
// label, with optional per-instruction detail underneath.
func writeText(w io.Writer, h *disasm.Handle, rs *disasm.ResultSet, src *source, detail bool) error {
	for _, line := range analysis.Annotate(rs, h, src.image()) {
		if _, err := fmt.Fprintln(w, colorize.InstructionLine(line.String())); err != nil {
			return err
		}
		if !detail || line.IsLabel() {
			continue
		}
		for _, d := range detailLines(h, line.Insn) {
			if _, err := fmt.Fprintf(w, "%10s   %s\n", "", d); err != nil {
				return err
			}
		}
	}
	return nil
}

// detailLines describes an instruction's bytes, operands, registers and
// groups using the handle's names.
func detailLines(h *disasm.Handle, in disasm.Insn) []string {
	lines := []string{"bytes: " + hex.EncodeToString(in.Bytes())}
	for i, op := range operandDetails(h, in) {
		lines = append(lines, fmt.Sprintf("op[%d]: %s", i, op))
	}
	if r := regNames(h, in.RegsRead()); len(r) > 0 {
		lines = append(lines, "regs read: "+strings.Join(r, ", "))
	}
	if r := regNames(h, in.RegsWrite()); len(r) > 0 {
		lines = append(lines, "regs write: "+strings.Join(r, ", "))
	}
	if g := groupNames(h, in.Groups()); len(g) > 0 {
		lines = append(lines, "groups: "+strings.Join(g, ", "))
	}
	if flags := insnFlags(in); flags != "" {
		lines = append(lines, flags)
	}
	return lines
}

func insnFlags(in disasm.Insn) string {
	var parts []string
	switch x := in.(type) {
	case *disasm.Arm32Insn:
		if x.CC() != disasm.Arm32CCAL && x.CC() != disasm.Arm32CCInvalid {
			parts = append(parts, "cc: "+x.CC().String())
		}
		if x.UpdatesFlags() {
			parts = append(parts, "update-flags")
		}
		if x.WritebackRequired() {
			parts = append(parts, "writeback")
		}
		if x.MemBarrier() != 0 {
			parts = append(parts, fmt.Sprintf("barrier: %d", x.MemBarrier()))
		}
	case *disasm.Arm64Insn:
		if x.CC() != disasm.Arm64CCInvalid {
			parts = append(parts, "cc: "+x.CC().String())
		}
		if x.UpdatesFlags() {
			parts = append(parts, "update-flags")
		}
		if x.WritebackRequired() {
			parts = append(parts, "writeback")
		}
	}
	return strings.Join(parts, ", ")
}

func regName(h *disasm.Handle, id disasm.RegID) string {
	if name, err := h.RegName(id); err == nil && name != "" {
		return name
	}
	return fmt.Sprintf("reg%d", id)
}

func regNames(h *disasm.Handle, ids []disasm.RegID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, regName(h, id))
	}
	return out
}

func groupNames(h *disasm.Handle, ids []disasm.GroupID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		name, err := h.GroupName(id)
		if err != nil || name == "" {
			name = fmt.Sprintf("group%d", id)
		}
		out = append(out, name)
	}
	return out
}

// operandDetails renders operands with register names in place of ids.
func operandDetails(h *disasm.Handle, in disasm.Insn) []string {
	var out []string
	switch x := in.(type) {
	case *disasm.Arm32Insn:
		for _, op := range x.Operands() {
			out = append(out, arm32Operand(h, op))
		}
	case *disasm.Arm64Insn:
		for _, op := range x.Operands() {
			out = append(out, arm64Operand(h, op))
		}
	}
	return out
}

func arm32Operand(h *disasm.Handle, op disasm.Arm32Operand) string {
	var s string
	switch v := op.Value().(type) {
	case disasm.Arm32Reg:
		s = "reg " + regName(h, disasm.RegID(v))
	case disasm.Arm32Mem:
		s = "mem [" + regName(h, v.Base)
		if v.Index != 0 {
			sign := ""
			if v.Scale == -1 {
				sign = "-"
			}
			s += ", " + sign + regName(h, v.Index)
		}
		if v.Disp != 0 {
			s += fmt.Sprintf(", #%#x", v.Disp)
		}
		s += "]"
	default:
		return op.String()
	}
	if op.Shift.Type != disasm.Arm32ShiftInvalid {
		if op.Shift.Type.ByRegister() {
			s += fmt.Sprintf(", %s %s", op.Shift.Type, regName(h, disasm.RegID(op.Shift.Value)))
		} else {
			s += fmt.Sprintf(", %s #%d", op.Shift.Type, op.Shift.Value)
		}
	}
	if op.Subtracted {
		s += " (subtracted)"
	}
	return s
}

func arm64Operand(h *disasm.Handle, op disasm.Arm64Operand) string {
	var s string
	switch v := op.Value().(type) {
	case disasm.Arm64Reg:
		s = "reg " + regName(h, disasm.RegID(v))
	case disasm.Arm64Mem:
		s = "mem [" + regName(h, v.Base)
		if v.Index != 0 {
			s += ", " + regName(h, v.Index)
		}
		if v.Disp != 0 {
			s += fmt.Sprintf(", #%#x", v.Disp)
		}
		s += "]"
	default:
		return op.String()
	}
	if op.VAS != disasm.Arm64VASInvalid {
		s += "." + op.VAS.String()
	}
	if op.VectorIndex != -1 {
		s += fmt.Sprintf("[%d]", op.VectorIndex)
	}
	if op.Shift.Type != disasm.Arm64ShiftInvalid {
		s += fmt.Sprintf(", %s #%d", op.Shift.Type, op.Shift.Value)
	}
	if op.Ext != disasm.Arm64ExtInvalid {
		s += ", " + op.Ext.String()
	}
	return s
}

// insnRecord is the JSON form of one listing line.
type insnRecord struct {
	Address     string   `json:"address"`
	Label       string   `json:"label,omitempty"`
	Bytes       string   `json:"bytes,omitempty"`
	Mnemonic    string   `json:"mnemonic,omitempty"`
	OpStr       string   `json:"op_str,omitempty"`
	Annotations []string `json:"annotations,omitempty"`
	Detail      *detail  `json:"detail,omitempty"`
}

type detail struct {
	ID        uint32   `json:"id"`
	Operands  []string `json:"operands"`
	RegsRead  []string `json:"regs_read"`
	RegsWrite []string `json:"regs_write"`
	Groups    []string `json:"groups"`
	CC        string   `json:"cc,omitempty"`
	Flags     bool     `json:"update_flags,omitempty"`
	Writeback bool     `json:"writeback,omitempty"`
}

type listingDoc struct {
	Mode         disasm.Mode  `json:"mode"`
	Engine       string       `json:"engine"`
	Source       string       `json:"source"`
	Instructions []insnRecord `json:"instructions"`
}

func listingRecords(h *disasm.Handle, rs *disasm.ResultSet, src *source, withDetail bool) []insnRecord {
	lines := analysis.Annotate(rs, h, src.image())
	recs := make([]insnRecord, 0, len(lines))
	for _, line := range lines {
		r := insnRecord{Address: fmt.Sprintf("%#x", line.VA)}
		if line.IsLabel() {
			r.Label = strings.TrimSuffix(line.Mnemonic, ":")
			recs = append(recs, r)
			continue
		}
		r.Bytes = hex.EncodeToString(line.Bytes)
		r.Mnemonic = line.Mnemonic
		r.OpStr = line.Operands
		r.Annotations = line.Annotations
		if withDetail {
			r.Detail = insnDetail(h, line.Insn)
		}
		recs = append(recs, r)
	}
	return recs
}

func insnDetail(h *disasm.Handle, in disasm.Insn) *detail {
	d := &detail{
		ID:        in.ID(),
		Operands:  operandDetails(h, in),
		RegsRead:  regNames(h, in.RegsRead()),
		RegsWrite: regNames(h, in.RegsWrite()),
		Groups:    groupNames(h, in.Groups()),
	}
	switch x := in.(type) {
	case *disasm.Arm32Insn:
		d.CC, d.Flags, d.Writeback = x.CC().String(), x.UpdatesFlags(), x.WritebackRequired()
	case *disasm.Arm64Insn:
		d.CC, d.Flags, d.Writeback = x.CC().String(), x.UpdatesFlags(), x.WritebackRequired()
	}
	return d
}

// writeJSON prints the listing as one indented JSON document.
func writeJSON(w io.Writer, h *disasm.Handle, rs *disasm.ResultSet, src *source, withDetail bool) error {
	doc := listingDoc{
		Mode:         rs.Mode(),
		Engine:       h.Engine(),
		Source:       src.name,
		Instructions: listingRecords(h, rs, src, withDetail),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
