package analysis

import (
	"fmt"
	"strings"

	"disarm/disasm"
	"disarm/internal/elfx"
)

// Image is the part of an ELF image the annotator reads. *elfx.Image
// implements it.
type Image interface {
	SymbolAt(va uint64) (elfx.Symbol, uint64, bool)
	ReadVA(va, n uint64) ([]byte, error)
}

// Names resolves register ids. *disasm.Handle implements it.
type Names interface {
	RegName(id disasm.RegID) (string, error)
	GroupName(id disasm.GroupID) (string, error)
}

// AnnotatedInst represents a disassembled instruction with annotations.
// A Mnemonic ending in ':' is a label line and Insn is nil.
type AnnotatedInst struct {
	VA          uint64
	Bytes       []byte
	Insn        disasm.Insn
	Mnemonic    string
	Operands    string
	Annotations []string // Comments to display
}

// IsLabel reports whether a is a symbol label rather than an instruction.
func (a AnnotatedInst) IsLabel() bool {
	return a.Insn == nil && strings.HasSuffix(a.Mnemonic, ":")
}

// String formats the instruction with fixed-width columns and trailing
// "; " annotations. It returns plain text; colorization is applied after
// formatting.
func (a AnnotatedInst) String() string {
	if a.IsLabel() {
		return fmt.Sprintf("%x  %s", a.VA, a.Mnemonic)
	}

	// No 0x prefix, the colorizer keys on the bare address column.
	addr := fmt.Sprintf("%x", a.VA)
	base := fmt.Sprintf("%-10s %-6s %-30s", addr, a.Mnemonic, a.Operands)

	if len(a.Annotations) > 0 {
		return fmt.Sprintf("%s ; %s", base, strings.Join(a.Annotations, ", "))
	}
	return strings.TrimRight(base, " ")
}
